package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Gleipnir-Technology/bounce/config"
	"github.com/Gleipnir-Technology/bounce/state"
	"github.com/Gleipnir-Technology/bounce/ui"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const stopTimeout = 3 * time.Second

// manager owns the state snapshot. Every other component talks to it over
// channels and only ever sees clones.
type manager struct {
	binary   string
	cfg      config.Config
	identity string
	ui       ui.UI

	chanBuilderEvents chan EventBuilder
	chanChanges       chan Change
	chanFlush         chan struct{}
	chanRunnerEvents  chan EventRunner
	chanRunnerRestart chan struct{}
	chanUIEvents      chan ui.Event
	chanUIState       chan *state.Bounce
	chanWebState      chan *state.Bounce
	state             *state.Bounce
}

func newManager(cfg config.Config, binary string, identity string, u ui.UI) *manager {
	s := state.New()
	s.Identity = identity
	return &manager{
		binary:            binary,
		cfg:               cfg,
		identity:          identity,
		ui:                u,
		chanBuilderEvents: make(chan EventBuilder),
		chanChanges:       make(chan Change, 64),
		chanFlush:         make(chan struct{}, 1),
		chanRunnerEvents:  make(chan EventRunner),
		chanRunnerRestart: make(chan struct{}, 1),
		chanUIEvents:      make(chan ui.Event),
		chanUIState:       make(chan *state.Bounce, 1),
		chanWebState:      make(chan *state.Bounce, 1),
		state:             s,
	}
}

func (mgr *manager) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(log.Logger.WithContext(ctx))
	defer cancel()
	upstream, err := mgr.cfg.UpstreamURL()
	if err != nil {
		return err
	}

	watcher := Watcher{
		Extensions: mgr.cfg.Extensions,
		Ignore:     mgr.cfg.Ignore,
		OnChange:   mgr.chanChanges,
		Target:     mgr.cfg.Target,
	}
	builder := Builder{
		Command:  buildCommand(mgr.binary),
		Debounce: mgr.cfg.Debounce,
		Flush:    mgr.chanFlush,
		OnEvent:  mgr.chanBuilderEvents,
		Target:   mgr.cfg.Target,
		ToBuild:  mgr.chanChanges,
	}
	runner := Runner{
		Binary:      mgr.binary,
		DoRestart:   mgr.chanRunnerRestart,
		Env:         []string{"BOUNCE_USER_ID=" + mgr.identity},
		OnEvent:     mgr.chanRunnerEvents,
		StopTimeout: stopTimeout,
		Target:      mgr.cfg.Target,
	}
	ws := NewWebserver(mgr.cfg.Bind, upstream, mgr.chanWebState)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(named("watcher", func() error { return watcher.Run(ctx) }))
	g.Go(named("builder", func() error { return builder.Run(ctx) }))
	g.Go(named("runner", func() error { return runner.Run(ctx) }))
	g.Go(named("webserver", func() error { return ws.Run(ctx) }))
	g.Go(named("ui", func() error { return mgr.ui.Run(ctx, mgr.chanUIEvents, mgr.chanUIState) }))
	g.Go(func() error {
		mgr.loop(ctx, cancel)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("something died")
		return fmt.Errorf("something died: %w", err)
	}
	return nil
}

func (mgr *manager) loop(ctx context.Context, cancel context.CancelFunc) {
	logger := log.Ctx(ctx)
	mgr.publish()
	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("exiting state run loop")
			return
		case evt := <-mgr.chanBuilderEvents:
			mgr.handleEventBuilder(ctx, evt)
		case evt := <-mgr.chanRunnerEvents:
			mgr.handleEventRunner(ctx, evt)
		case evt := <-mgr.chanUIEvents:
			if mgr.handleEventUI(ctx, evt) {
				cancel()
				return
			}
		}
		mgr.publish()
	}
}

func (mgr *manager) handleEventBuilder(ctx context.Context, evt EventBuilder) {
	logger := log.Ctx(ctx)
	trigger := evt.Trigger
	mgr.state.Trigger = &trigger
	switch evt.Type {
	case EventBuildOutput:
		logger.Debug().Msg("build output")
		mgr.state.Builder.BuildCurrent = evt.Process
	case EventBuildFailure:
		logger.Debug().Msg("build failure")
		mgr.state.Builder.Status = state.StatusBuilderFailed
		mgr.state.Builder.BuildCurrent = evt.Process
	case EventBuildQueued:
		logger.Debug().Msg("build queued")
	case EventBuildStart:
		logger.Debug().Msg("build start")
		mgr.state.Builder.Status = state.StatusBuilderCompiling
		mgr.state.Builder.BuildPrevious = mgr.state.Builder.BuildCurrent
		mgr.state.Builder.BuildCurrent = nil
	case EventBuildSuccess:
		logger.Debug().Msg("build success")
		mgr.state.Builder.Status = state.StatusBuilderOK
		mgr.state.Builder.BuildCurrent = evt.Process
		notify(mgr.chanRunnerRestart)
	default:
		logger.Debug().Msg("build unknown")
	}
}

func (mgr *manager) handleEventRunner(ctx context.Context, evt EventRunner) {
	logger := log.Ctx(ctx)
	switch evt.Type {
	case EventRunnerOutput:
		logger.Debug().Msg("runner output")
		mgr.state.Runner.RunCurrent = evt.Process
	case EventRunnerStart:
		logger.Debug().Msg("runner start")
		mgr.state.Runner.Status = state.StatusRunnerRunning
		mgr.state.Runner.RunPrevious = mgr.state.Runner.RunCurrent
		mgr.state.Runner.RunCurrent = evt.Process
	case EventRunnerStopOK:
		logger.Debug().Msg("runner stop ok")
		mgr.state.Runner.Status = state.StatusRunnerStopOK
		if evt.Process != nil {
			mgr.state.Runner.RunCurrent = evt.Process
		}
	case EventRunnerStopErr:
		logger.Debug().Str("message", evt.Message).Msg("runner stop err")
		mgr.state.Runner.Status = state.StatusRunnerStopErr
		if evt.Process != nil {
			mgr.state.Runner.RunCurrent = evt.Process
		}
	case EventRunnerWaiting:
		logger.Debug().Msg("runner waiting")
		mgr.state.Runner.Status = state.StatusRunnerWaiting
	default:
		logger.Debug().Msg("runner unknown")
	}
}

// handleEventUI reports whether the user asked to exit.
func (mgr *manager) handleEventUI(ctx context.Context, evt ui.Event) bool {
	logger := log.Ctx(ctx)
	switch evt.Type {
	case ui.EventExit:
		logger.Debug().Msg("exit requested from ui")
		return true
	case ui.EventFlush:
		logger.Debug().Msg("build now requested from ui")
		notify(mgr.chanFlush)
	case ui.EventRestart:
		logger.Debug().Msg("restart requested from ui")
		notify(mgr.chanRunnerRestart)
	case ui.EventResize, ui.EventUpdate:
		logger.Debug().Msg("updating clients")
	}
	return false
}

func (mgr *manager) publish() {
	latest(mgr.chanUIState, mgr.state.Clone())
	latest(mgr.chanWebState, mgr.state.Clone())
}

// latest replaces whatever value is still waiting in ch. ch must have a
// buffer.
func latest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func named(name string, run func() error) func() error {
	return func() error {
		if err := run(); err != nil {
			return fmt.Errorf("%s died: %w", name, err)
		}
		return nil
	}
}
