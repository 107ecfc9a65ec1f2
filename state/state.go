// Package state holds the snapshots passed from the manager loop to the UI
// and the webserver.
package state

import "time"

type Bounce struct {
	Builder  *Builder `json:"builder"`
	Runner   *Runner  `json:"runner"`
	Trigger  *Trigger `json:"trigger"`
	Identity string   `json:"identity"`
}
type Process struct {
	ExitCode *int   `json:"exitCode,omitempty"`
	Output   []byte `json:"-"`
	Stderr   []byte `json:"-"`
	Stdout   []byte `json:"-"`
}

// Trigger describes the debounced change that caused the latest build.
type Trigger struct {
	Builds    int       `json:"builds"`
	Coalesced int       `json:"coalesced"` // change events folded into the latest build
	LastPath  string    `json:"lastPath"`
	LastAt    time.Time `json:"lastAt"`
	Pending   bool      `json:"pending"`
}
type StatusBuilder int

const (
	StatusBuilderCompiling StatusBuilder = iota
	StatusBuilderFailed
	StatusBuilderOK
)

type Builder struct {
	BuildPrevious *Process      `json:"-"`
	BuildCurrent  *Process      `json:"current,omitempty"`
	Status        StatusBuilder `json:"status"`
}
type Runner struct {
	RunPrevious *Process     `json:"-"`
	RunCurrent  *Process     `json:"current,omitempty"`
	Status      StatusRunner `json:"status"`
}
type StatusRunner int

const (
	StatusRunnerRunning StatusRunner = iota
	StatusRunnerStopOK
	StatusRunnerStopErr
	StatusRunnerWaiting
)

func New() *Bounce {
	return &Bounce{
		Builder: &Builder{Status: StatusBuilderOK},
		Runner:  &Runner{Status: StatusRunnerWaiting},
		Trigger: &Trigger{},
	}
}

// Clone copies the snapshot so it can cross goroutines while the manager
// keeps mutating its own copy.
func (b *Bounce) Clone() *Bounce {
	c := &Bounce{Identity: b.Identity}
	if b.Builder != nil {
		builder := *b.Builder
		c.Builder = &builder
	}
	if b.Runner != nil {
		runner := *b.Runner
		c.Runner = &runner
	}
	if b.Trigger != nil {
		trigger := *b.Trigger
		c.Trigger = &trigger
	}
	return c
}

func (s StatusBuilder) String() string {
	return StatusStringBuilder(s)
}

func (s StatusBuilder) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s StatusRunner) String() string {
	return StatusStringRunner(s)
}

func (s StatusRunner) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func StatusStringBuilder(s StatusBuilder) string {
	switch s {
	case StatusBuilderCompiling:
		return "compiling"
	case StatusBuilderFailed:
		return "failed"
	case StatusBuilderOK:
		return "ok"
	}
	return "unknown"
}

func StatusStringRunner(s StatusRunner) string {
	switch s {
	case StatusRunnerRunning:
		return "running"
	case StatusRunnerStopOK:
		return "ok"
	case StatusRunnerStopErr:
		return "error"
	case StatusRunnerWaiting:
		return "waiting"
	}
	return "unknown"
}
