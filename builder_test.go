package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type builderHarness struct {
	clock   *clockwork.FakeClock
	events  chan EventBuilder
	flush   chan struct{}
	changes chan Change
}

func startBuilder(t *testing.T, command ...string) *builderHarness {
	t.Helper()
	h := &builderHarness{
		clock:   clockwork.NewFakeClock(),
		events:  make(chan EventBuilder, 64),
		flush:   make(chan struct{}, 1),
		changes: make(chan Change),
	}
	b := &Builder{
		Clock:    h.clock,
		Command:  command,
		Debounce: 300 * time.Millisecond,
		Flush:    h.flush,
		OnEvent:  h.events,
		Target:   t.TempDir(),
		ToBuild:  h.changes,
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- b.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("builder did not stop")
		}
	})
	return h
}

// waitFor skips events until one of type want arrives.
func (h *builderHarness) waitFor(t *testing.T, want EventBuilderType) EventBuilder {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case evt := <-h.events:
			if evt.Type == want {
				return evt
			}
		case <-timeout:
			t.Fatalf("no builder event %d", want)
			return EventBuilder{}
		}
	}
}

func (h *builderHarness) change(t *testing.T, path string) {
	t.Helper()
	h.changes <- Change{At: h.clock.Now(), Path: path}
	evt := h.waitFor(t, EventBuildQueued)
	assert.True(t, evt.Trigger.Pending)
}

func TestBuilderStartupBuild(t *testing.T) {
	h := startBuilder(t, "sh", "-c", "echo built")

	evt := h.waitFor(t, EventBuildSuccess)
	assert.Equal(t, 1, evt.Trigger.Builds)
	assert.Equal(t, "(startup)", evt.Trigger.LastPath)
	require.NotNil(t, evt.Process)
	assert.Equal(t, "built\n", string(evt.Process.Output))
}

func TestBuilderCoalescesBurst(t *testing.T) {
	h := startBuilder(t, "sh", "-c", "echo built")
	h.waitFor(t, EventBuildSuccess)

	h.change(t, "a.go")
	h.clock.Advance(100 * time.Millisecond)
	h.change(t, "b.go")
	h.clock.Advance(100 * time.Millisecond)
	h.change(t, "c.go")

	// 299ms after the last change nothing has been built
	h.clock.Advance(299 * time.Millisecond)
	quiet := time.After(50 * time.Millisecond)
	for waiting := true; waiting; {
		select {
		case evt := <-h.events:
			// late output of the startup build is fine
			require.Equal(t, 1, evt.Trigger.Builds, "unexpected event %d", evt.Type)
		case <-quiet:
			waiting = false
		}
	}

	h.clock.Advance(time.Millisecond)
	evt := h.waitFor(t, EventBuildSuccess)
	assert.Equal(t, 2, evt.Trigger.Builds)
	assert.Equal(t, 3, evt.Trigger.Coalesced)
	assert.Equal(t, "c.go", evt.Trigger.LastPath)
	assert.False(t, evt.Trigger.Pending)
}

func TestBuilderFlush(t *testing.T) {
	h := startBuilder(t, "sh", "-c", "echo built")
	h.waitFor(t, EventBuildSuccess)

	h.change(t, "main.go")
	h.flush <- struct{}{}

	evt := h.waitFor(t, EventBuildSuccess)
	assert.Equal(t, 2, evt.Trigger.Builds)
	assert.Equal(t, "main.go", evt.Trigger.LastPath)
}

func TestBuilderFailure(t *testing.T) {
	h := startBuilder(t, "sh", "-c", "echo 'main.go:3: undefined: x' >&2; exit 1")

	evt := h.waitFor(t, EventBuildFailure)
	require.NotNil(t, evt.Process)
	assert.Contains(t, string(evt.Process.Output), "undefined: x")
	require.NotNil(t, evt.Process.ExitCode)
	assert.Equal(t, 1, *evt.Process.ExitCode)
}

func TestBuilderMissingCommand(t *testing.T) {
	h := startBuilder(t, "/nonexistent/bounce-compiler")

	evt := h.waitFor(t, EventBuildFailure)
	require.NotNil(t, evt.Process)
	assert.Contains(t, string(evt.Process.Output), "bounce-compiler")
}

func TestBuilderNeedsCommand(t *testing.T) {
	b := &Builder{}
	assert.Error(t, b.Run(context.Background()))
}

func TestBuildOutputPath(t *testing.T) {
	dir := t.TempDir()
	out, err := buildOutputPath(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".bounce", "bin", filepath.Base(dir)), out)
	assert.DirExists(t, filepath.Dir(out))

	assert.Equal(t, []string{"go", "build", "-o", out, "."}, buildCommand(out))
}
