package ui

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Gleipnir-Technology/bounce/state"
	"github.com/fatih/color"
	"github.com/leaanthony/go-ansi-parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labels(lines [][]*ansi.StyledText) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		var b strings.Builder
		for _, seg := range line {
			b.WriteString(seg.Label)
		}
		out = append(out, b.String())
	}
	return out
}

func TestFitToWidthSplitsLines(t *testing.T) {
	parsed, err := ansi.Parse("one\ntwo\x1b[31mred\x1b[0m\nthree")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "twored", "three"}, labels(fitToWidth(80, parsed)))
}

func TestFitToWidthWraps(t *testing.T) {
	parsed, err := ansi.Parse("abcdefgh")
	require.NoError(t, err)
	assert.Equal(t, []string{"abc", "def", "gh"}, labels(fitToWidth(3, parsed)))
}

func TestStripColorCodes(t *testing.T) {
	assert.Equal(t, "plain red", StripColorCodes([]byte("plain \x1b[31mred\x1b[0m")))
}

func TestFlatDump(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer
	u, err := NewFlat(&out)
	require.NoError(t, err)

	s := state.New()
	s.Builder.Status = state.StatusBuilderFailed
	s.Builder.BuildCurrent = &state.Process{Output: []byte("main.go:3: undefined: x\n")}
	s.Trigger = &state.Trigger{Builds: 2, Coalesced: 5, LastPath: "main.go"}

	ctx, cancel := context.WithCancel(context.Background())
	states := make(chan *state.Bounce)
	done := make(chan error)
	go func() {
		done <- u.Run(ctx, make(chan Event), states)
	}()
	states <- s
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("ui did not stop")
	}

	line := out.String()
	assert.Contains(t, line, "builder failed")
	assert.Contains(t, line, "runner waiting")
	assert.Contains(t, line, "build #2 (5 changes, last main.go)")
	assert.Contains(t, line, "main.go:3: undefined: x")
}

func TestDescribeTrigger(t *testing.T) {
	assert.Equal(t, "no changes yet", describeTrigger(nil))
	assert.Equal(t, "build #1 (1 changes, last a.go) +pending",
		describeTrigger(&state.Trigger{Builds: 1, Coalesced: 1, LastPath: "a.go", Pending: true}))
}
