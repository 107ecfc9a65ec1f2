package ui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Gleipnir-Technology/bounce/state"
	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
)

type uiFlat struct {
	out     io.Writer
	last    string
	bad     *color.Color
	good    *color.Color
	neutral *color.Color
}

func newUIFlat(out io.Writer) (*uiFlat, error) {
	return &uiFlat{
		out:     out,
		bad:     color.New(color.FgRed, color.Bold),
		good:    color.New(color.FgGreen),
		neutral: color.New(color.FgYellow),
	}, nil
}
func (u *uiFlat) Close() {}
func (u *uiFlat) Run(ctx context.Context, chanOnEvent chan<- Event, chanNewState <-chan *state.Bounce) error {
	logger := log.Ctx(ctx).With().Caller().Logger()
	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("context ended, exiting UI")
			return nil
		case s := <-chanNewState:
			u.dump(s)
		}
	}
}
func (u *uiFlat) dump(s *state.Bounce) {
	if s == nil || s.Builder == nil || s.Runner == nil {
		return
	}
	line := fmt.Sprintf("builder %s\trunner %s\t%s\t%s\n",
		u.paintBuilder(s.Builder.Status),
		u.paintRunner(s.Runner.Status),
		describeTrigger(s.Trigger),
		StripColorCodes([]byte(latestOutput(s))),
	)
	if line == u.last {
		return
	}
	u.last = line
	io.WriteString(u.out, line)
}
func (u *uiFlat) paintBuilder(s state.StatusBuilder) string {
	switch s {
	case state.StatusBuilderFailed:
		return u.bad.Sprint(s.String())
	case state.StatusBuilderOK:
		return u.good.Sprint(s.String())
	}
	return u.neutral.Sprint(s.String())
}
func (u *uiFlat) paintRunner(s state.StatusRunner) string {
	switch s {
	case state.StatusRunnerStopErr:
		return u.bad.Sprint(s.String())
	case state.StatusRunnerRunning, state.StatusRunnerStopOK:
		return u.good.Sprint(s.String())
	}
	return u.neutral.Sprint(s.String())
}

func describeTrigger(t *state.Trigger) string {
	if t == nil || t.Builds == 0 {
		return "no changes yet"
	}
	desc := fmt.Sprintf("build #%d (%d changes, last %s)", t.Builds, t.Coalesced, t.LastPath)
	if t.Pending {
		desc += " +pending"
	}
	return desc
}

func latestOutput(s *state.Bounce) string {
	output := "waiting..."
	if s.Builder.Status != state.StatusBuilderOK {
		if s.Builder.BuildCurrent != nil && len(s.Builder.BuildCurrent.Output) > 0 {
			output = string(s.Builder.BuildCurrent.Output)
		} else if s.Builder.BuildPrevious != nil && len(s.Builder.BuildPrevious.Output) > 0 {
			output = string(s.Builder.BuildPrevious.Output)
		} else {
			output = "no build output"
		}
	} else {
		if s.Runner.RunCurrent != nil && len(s.Runner.RunCurrent.Output) > 0 {
			output = string(s.Runner.RunCurrent.Output)
		} else if s.Runner.RunPrevious != nil && len(s.Runner.RunPrevious.Output) > 0 {
			output = string(s.Runner.RunPrevious.Output)
		} else {
			output = "no run output"
		}
	}
	return strings.TrimSpace(output)
}
