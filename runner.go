package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/Gleipnir-Technology/bounce/process"
	"github.com/Gleipnir-Technology/bounce/state"
	"github.com/rs/zerolog/log"
)

type EventRunnerType int

const (
	EventRunnerOutput EventRunnerType = iota
	EventRunnerStart
	EventRunnerStopOK
	EventRunnerStopErr
	EventRunnerWaiting
)

type EventRunner struct {
	Message string
	Process *state.Process
	Type    EventRunnerType
}

// Runner (re)starts the freshly built program each time DoRestart fires.
type Runner struct {
	Binary      string
	DoRestart   <-chan struct{}
	Env         []string
	OnEvent     chan<- EventRunner
	StopTimeout time.Duration
	Target      string
}

func (r *Runner) Run(ctx context.Context) error {
	logger := log.Ctx(ctx)
	logger.Info().Str("build", r.Binary).Msg("Build output")
	p := process.New(r.Binary)
	p.SetDir(r.Target)
	p.SetEnv(r.Env)
	sub_exit := p.OnExit.Subscribe()
	sub_output := p.OnOutput.Subscribe()
	sub_start := p.OnStart.Subscribe()
	defer sub_exit.Close()
	defer sub_output.Close()
	defer sub_start.Close()
	defer p.Stop(r.StopTimeout)

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("closing runner")
			return nil
		case <-r.DoRestart:
			r.restart(ctx, p)
		case <-sub_start.C:
			r.emit(ctx, EventRunner{Process: p.Snapshot(), Type: EventRunnerStart})
		case <-sub_output.C:
			r.emit(ctx, EventRunner{Process: p.Snapshot(), Type: EventRunnerOutput})
		case s := <-sub_exit.C:
			if p.Running() {
				// the previous child, replaced by a restart
				continue
			}
			snap := p.Snapshot()
			if s != nil && s.Success() {
				r.emit(ctx, EventRunner{Process: snap, Type: EventRunnerStopOK})
			} else {
				msg := "exited"
				if s != nil {
					msg = s.String()
				}
				r.emit(ctx, EventRunner{Message: msg, Process: snap, Type: EventRunnerStopErr})
			}
		}
	}
}

func (r *Runner) restart(ctx context.Context, p *process.Process) {
	logger := log.Ctx(ctx)
	logger.Debug().Msg("runner restart")
	// Avoid infinite recursion when we self-host
	if filepath.Base(r.Binary) == "bounce" {
		logger.Info().Msg("Refusing to infinitely recurse on bounce")
		r.emit(ctx, EventRunner{
			Message: "no recursing!",
			Process: &state.Process{Output: []byte("bounce: refusing to run itself\n")},
			Type:    EventRunnerStopOK,
		})
		return
	}
	if _, err := os.Stat(r.Binary); os.IsNotExist(err) {
		logger.Info().Str("build_output", r.Binary).Msg("Build output doesn't exist")
		r.emit(ctx, EventRunner{Type: EventRunnerWaiting})
		return
	}
	if err := p.Restart(ctx, r.StopTimeout); err != nil {
		logger.Error().Err(err).Str("build_output", r.Binary).Msg("Failed to start")
		r.emit(ctx, EventRunner{Message: err.Error(), Type: EventRunnerStopErr})
	}
}

func (r *Runner) emit(ctx context.Context, evt EventRunner) {
	select {
	case r.OnEvent <- evt:
	case <-ctx.Done():
	}
}
