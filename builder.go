package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Gleipnir-Technology/bounce/debounce"
	"github.com/Gleipnir-Technology/bounce/process"
	"github.com/Gleipnir-Technology/bounce/state"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type EventBuilderType int

const (
	EventBuildFailure EventBuilderType = iota
	EventBuildOutput
	EventBuildQueued
	EventBuildStart
	EventBuildSuccess
)

type EventBuilder struct {
	Process *state.Process
	Trigger state.Trigger
	Type    EventBuilderType
}

// Builder turns bursts of source changes into single builds. Every change
// re-arms the debouncer; the build starts once the sources have been quiet for
// Debounce. A change arriving mid-build queues exactly one follow-up build.
type Builder struct {
	Clock    clockwork.Clock
	Command  []string
	Debounce time.Duration
	Flush    <-chan struct{}
	OnEvent  chan<- EventBuilder
	Target   string
	ToBuild  <-chan Change

	building  bool
	coalesced int
	queued    *Change
	trigger   state.Trigger
}

func (b *Builder) Run(ctx context.Context) error {
	logger := log.Ctx(ctx)
	if len(b.Command) == 0 {
		return errors.New("builder has no command")
	}
	p := process.New(b.Command[0], b.Command[1:]...)
	p.SetDir(b.Target)
	sub_exit := p.OnExit.Subscribe()
	sub_output := p.OnOutput.Subscribe()
	sub_start := p.OnStart.Subscribe()
	defer sub_exit.Close()
	defer sub_output.Close()
	defer sub_start.Close()
	defer p.Stop(3 * time.Second)

	fire := make(chan Change, 1)
	opts := []debounce.Option{
		debounce.WithContext(ctx),
		debounce.WithLogger(logger.With().Str("component", "debounce").Logger()),
	}
	if b.Clock != nil {
		opts = append(opts, debounce.WithClock(b.Clock))
	}
	// a fire the loop has not picked up yet is replaced, the newest change wins
	debouncer := debounce.New(b.Debounce, func(c Change) { latest(fire, c) }, opts...)
	defer debouncer.Close()

	b.start(ctx, p, Change{At: time.Now(), Path: "(startup)"})
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Shutdown builder")
			return nil
		case c := <-b.ToBuild:
			b.coalesced++
			b.trigger.Pending = true
			debouncer.Call(c)
			b.emit(ctx, EventBuilder{Trigger: b.trigger, Type: EventBuildQueued})
		case <-b.Flush:
			if !debouncer.Flush() {
				logger.Debug().Msg("flush requested with nothing pending")
			}
		case c := <-fire:
			if b.building {
				b.queued = &c
				continue
			}
			b.start(ctx, p, c)
		case <-sub_start.C:
			logger.Debug().Msg("build process started")
			b.emit(ctx, EventBuilder{Trigger: b.trigger, Type: EventBuildStart})
		case <-sub_output.C:
			b.emit(ctx, EventBuilder{Process: p.Snapshot(), Trigger: b.trigger, Type: EventBuildOutput})
		case s := <-sub_exit.C:
			b.building = false
			t := EventBuildFailure
			if s != nil && s.ExitCode() == 0 {
				t = EventBuildSuccess
			}
			logger.Info().Int("build", b.trigger.Builds).Bool("ok", t == EventBuildSuccess).Msg("build finished")
			b.trigger.Pending = debouncer.Pending() || b.queued != nil
			b.emit(ctx, EventBuilder{Process: p.Snapshot(), Trigger: b.trigger, Type: t})
			if b.queued != nil {
				c := *b.queued
				b.queued = nil
				b.start(ctx, p, c)
			}
		}
	}
}

func (b *Builder) start(ctx context.Context, p *process.Process, c Change) {
	logger := log.Ctx(ctx)
	b.trigger = state.Trigger{
		Builds:    b.trigger.Builds + 1,
		Coalesced: b.coalesced,
		LastAt:    c.At,
		LastPath:  c.Path,
	}
	b.coalesced = 0
	logger.Info().Str("path", c.Path).Int("coalesced", b.trigger.Coalesced).Msg("rebuild.")
	if err := p.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to start build")
		b.emit(ctx, EventBuilder{
			Process: &state.Process{Output: fmt.Appendf(nil, "bounce: %v\n", err)},
			Trigger: b.trigger,
			Type:    EventBuildFailure,
		})
		return
	}
	b.building = true
}

func (b *Builder) emit(ctx context.Context, evt EventBuilder) {
	select {
	case b.OnEvent <- evt:
	case <-ctx.Done():
	}
}

func buildCommand(output string) []string {
	return []string{"go", "build", "-o", output, "."}
}

// buildOutputPath keeps the binary inside a hidden directory so the watcher
// ignores it.
func buildOutputPath(target string) (string, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolve target %s: %w", target, err)
	}
	dir := filepath.Join(abs, ".bounce", "bin")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create build dir: %w", err)
	}
	return filepath.Join(dir, filepath.Base(abs)), nil
}
