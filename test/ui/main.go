package main

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/Gleipnir-Technology/bounce/state"
	"github.com/Gleipnir-Technology/bounce/ui"
)

// Drives the TUI with a fake build loop: a build every few seconds, each
// folding a growing number of changes, followed by a run that prints a line
// per second.
func main() {
	upstreamURL, err := url.Parse("http://localhost:8080")
	if err != nil {
		fmt.Printf("url parse: %v\n", err)
		os.Exit(1)
	}
	u, err := ui.NewTUI("test", *upstreamURL)
	if err != nil {
		fmt.Printf("new tui: %v\n", err)
		os.Exit(2)
	}
	defer u.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	on_ui := make(chan ui.Event)
	do_ui := make(chan *state.Bounce)
	go func() {
		if err := u.Run(ctx, on_ui, do_ui); err != nil {
			fmt.Printf("ui run: %v", err)
			os.Exit(3)
		}
	}()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	counter := 0
	s := state.New()
	s.Identity = "test-user"
	s.Runner.RunCurrent = &state.Process{}
	for {
		select {
		case <-ticker.C:
			counter++
			switch {
			case counter%5 == 0:
				s.Builder.Status = state.StatusBuilderCompiling
				s.Trigger.Pending = true
			case counter%5 == 1 && counter > 1:
				s.Builder.Status = state.StatusBuilderOK
				s.Trigger.Builds++
				s.Trigger.Coalesced = counter / 5
				s.Trigger.LastPath = "main.go"
				s.Trigger.LastAt = time.Now()
				s.Trigger.Pending = false
				s.Runner.Status = state.StatusRunnerRunning
				s.Runner.RunCurrent = &state.Process{}
			default:
				// a fresh Process per tick, the UI may still be drawing the last one
				output := bytes.Clone(s.Runner.RunCurrent.Output)
				s.Runner.RunCurrent = &state.Process{Output: fmt.Appendf(output, "\x1b[32mtick\x1b[0m %d\n", counter)}
			}
			do_ui <- s.Clone()
		case evt := <-on_ui:
			switch evt.Type {
			case ui.EventExit:
				return
			case ui.EventFlush:
				counter = 4
			}
		}
	}
}
