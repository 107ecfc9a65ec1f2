package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/Gleipnir-Technology/bounce/state"
	"github.com/rs/zerolog/log"
)

var ErrRunning = errors.New("process already running")

// Process runs one child at a time and publishes its lifecycle and output.
type Process struct {
	OnExit   *SubscriptionManager[*os.ProcessState]
	OnOutput *SubscriptionManager[[]byte]
	OnStart  *SubscriptionManager[struct{}]
	OnStderr *SubscriptionManager[[]byte]
	OnStdout *SubscriptionManager[[]byte]

	args []string
	dir  string
	env  []string
	name string

	mu       sync.Mutex
	cmd      *exec.Cmd
	exitCode *int
	exited   chan struct{} // closed when the current child has been reaped
	output   bytes.Buffer  // interleaved stdout and stderr
	stderr   bytes.Buffer
	stdout   bytes.Buffer
}

func New(name string, args ...string) *Process {
	return &Process{
		OnExit:   NewSubscriptionManager[*os.ProcessState](),
		OnOutput: NewSubscriptionManager[[]byte](),
		OnStart:  NewSubscriptionManager[struct{}](),
		OnStderr: NewSubscriptionManager[[]byte](),
		OnStdout: NewSubscriptionManager[[]byte](),
		args:     args,
		name:     name,
	}
}

func (p *Process) SetDir(d string) {
	p.mu.Lock()
	p.dir = d
	p.mu.Unlock()
}

// SetEnv appends env to the inherited environment of later starts.
func (p *Process) SetEnv(env []string) {
	p.mu.Lock()
	p.env = env
	p.mu.Unlock()
}

func (p *Process) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd != nil
}

func (p *Process) Signal(s syscall.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil {
		return fmt.Errorf("%s is not running", p.name)
	}
	return p.cmd.Process.Signal(s)
}

// Start launches the child. Output buffers are reset; ErrRunning is returned
// if the previous child has not exited yet.
func (p *Process) Start(ctx context.Context) error {
	logger := log.Ctx(ctx)
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		return ErrRunning
	}
	p.output.Reset()
	p.stdout.Reset()
	p.stderr.Reset()
	p.exitCode = nil

	cmd := exec.Command(p.name, p.args...)
	cmd.Dir = p.dir
	if len(p.env) > 0 {
		cmd.Env = append(os.Environ(), p.env...)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start '%s': %w", p.name, err)
	}
	p.cmd = cmd
	exited := make(chan struct{})
	p.exited = exited

	var readers sync.WaitGroup
	readers.Add(2)
	go p.scan(&readers, stdout, p.OnStdout, &p.stdout)
	go p.scan(&readers, stderr, p.OnStderr, &p.stderr)

	go func() {
		// Wait closes the pipes, so every line must be read first.
		readers.Wait()
		err := cmd.Wait()
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			logger.Warn().Err(err).Str("name", p.name).Msg("wait on child")
		}
		code := -1
		if cmd.ProcessState != nil {
			code = cmd.ProcessState.ExitCode()
		}
		p.mu.Lock()
		p.exitCode = &code
		p.cmd = nil
		p.mu.Unlock()
		// Publish before releasing Stop so a restart reports exit ahead of start.
		p.OnExit.Publish(cmd.ProcessState)
		close(exited)
	}()

	logger.Debug().Str("name", p.name).Int("pid", cmd.Process.Pid).Msg("child started")
	p.OnStart.Publish(struct{}{})
	return nil
}

// Stop interrupts the child and waits for it to exit. After timeout the child
// is killed. Stop does not return until the child has been reaped.
func (p *Process) Stop(timeout time.Duration) {
	p.mu.Lock()
	cmd := p.cmd
	exited := p.exited
	p.mu.Unlock()
	if cmd == nil {
		return
	}

	if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
		log.Debug().Err(err).Str("name", p.name).Msg("interrupt failed, killing")
		cmd.Process.Kill()
	}
	select {
	case <-exited:
		return
	case <-time.After(timeout):
	}
	log.Warn().Str("name", p.name).Dur("timeout", timeout).Msg("child ignored interrupt, killing")
	cmd.Process.Kill()
	<-exited
}

// Restart stops the current child, if any, and starts a new one.
func (p *Process) Restart(ctx context.Context, timeout time.Duration) error {
	p.Stop(timeout)
	return p.Start(ctx)
}

// Snapshot copies the buffered output for the UI.
func (p *Process) Snapshot() *state.Process {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := &state.Process{
		Output: bytes.Clone(p.output.Bytes()),
		Stderr: bytes.Clone(p.stderr.Bytes()),
		Stdout: bytes.Clone(p.stdout.Bytes()),
	}
	if p.exitCode != nil {
		code := *p.exitCode
		s.ExitCode = &code
	}
	return s
}

func (p *Process) scan(wg *sync.WaitGroup, r io.Reader, mgr *SubscriptionManager[[]byte], buf *bytes.Buffer) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := bytes.Clone(scanner.Bytes())
		p.mu.Lock()
		buf.Write(line)
		buf.WriteByte('\n')
		p.output.Write(line)
		p.output.WriteByte('\n')
		p.mu.Unlock()
		mgr.Publish(line)
		p.OnOutput.Publish(line)
	}
}
