package ui

import (
	"context"
	"io"
	"net/url"

	"github.com/Gleipnir-Technology/bounce/state"
)

type EventType int

const (
	EventNone EventType = iota
	EventExit
	EventFlush   // build now instead of waiting out the debounce
	EventRestart // restart the running program
	EventResize
	EventUpdate // forcibly update clients
)

type Event struct {
	Type EventType
}
type UI interface {
	Close()
	Run(context.Context, chan<- Event, <-chan *state.Bounce) error
}

func NewTUI(target string, upstream url.URL) (UI, error) {
	return newUITcell(target, upstream)
}

func NewFlat(out io.Writer) (UI, error) {
	return newUIFlat(out)
}
