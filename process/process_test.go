package process

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitExit(t *testing.T, sub *Subscription[*os.ProcessState]) *os.ProcessState {
	t.Helper()
	select {
	case s := <-sub.C:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("child did not exit")
	}
	return nil
}

func TestProcessOutputAndExit(t *testing.T) {
	p := New("sh", "-c", "echo out; echo err 1>&2; exit 3")
	exit := p.OnExit.Subscribe()
	defer exit.Close()
	start := p.OnStart.Subscribe()
	defer start.Close()

	require.NoError(t, p.Start(context.Background()))
	select {
	case <-start.C:
	case <-time.After(time.Second):
		t.Fatal("no start event")
	}

	s := waitExit(t, exit)
	assert.Equal(t, 3, s.ExitCode())
	assert.False(t, p.Running())

	snap := p.Snapshot()
	require.NotNil(t, snap.ExitCode)
	assert.Equal(t, 3, *snap.ExitCode)
	assert.Equal(t, "out\n", string(snap.Stdout))
	assert.Equal(t, "err\n", string(snap.Stderr))
	assert.Contains(t, string(snap.Output), "out\n")
	assert.Contains(t, string(snap.Output), "err\n")
}

func TestProcessDirAndEnv(t *testing.T) {
	dir := t.TempDir()
	p := New("sh", "-c", "pwd; echo $BOUNCE_TEST")
	p.SetDir(dir)
	p.SetEnv([]string{"BOUNCE_TEST=yes"})
	exit := p.OnExit.Subscribe()
	defer exit.Close()

	require.NoError(t, p.Start(context.Background()))
	waitExit(t, exit)
	assert.Contains(t, string(p.Snapshot().Stdout), "yes\n")
}

func TestProcessStartWhileRunning(t *testing.T) {
	p := New("sleep", "10")
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop(time.Second)

	assert.ErrorIs(t, p.Start(context.Background()), ErrRunning)
}

func TestProcessStop(t *testing.T) {
	p := New("sleep", "10")
	exit := p.OnExit.Subscribe()
	defer exit.Close()

	require.NoError(t, p.Start(context.Background()))
	assert.True(t, p.Running())

	began := time.Now()
	p.Stop(time.Second)
	assert.Less(t, time.Since(began), 5*time.Second)
	assert.False(t, p.Running())
	waitExit(t, exit)

	// stopping an exited process is a no-op
	p.Stop(time.Second)
}

func TestProcessRestart(t *testing.T) {
	p := New("sh", "-c", "echo hi")
	exit := p.OnExit.Subscribe()
	defer exit.Close()

	require.NoError(t, p.Start(context.Background()))
	waitExit(t, exit)
	require.NoError(t, p.Restart(context.Background(), time.Second))
	waitExit(t, exit)
	assert.Equal(t, "hi\n", string(p.Snapshot().Stdout))
}

func TestProcessStartFailure(t *testing.T) {
	p := New("/definitely/not/a/binary")
	assert.Error(t, p.Start(context.Background()))
	assert.False(t, p.Running())
}

func TestSubscriptionManager(t *testing.T) {
	m := NewSubscriptionManager[int]()
	a := m.SubscribeSize(1)
	b := m.Subscribe()
	assert.Equal(t, 2, m.Len())

	m.Publish(1)
	m.Publish(2) // a is full
	assert.Equal(t, 1, <-a.C)
	assert.Equal(t, 1, <-b.C)
	assert.Equal(t, 2, <-b.C)
	assert.Equal(t, 1, m.Dropped())

	a.Close()
	a.Close()
	assert.Equal(t, 1, m.Len())
	_, ok := <-a.C
	assert.False(t, ok)

	m.Publish(3)
	assert.Equal(t, 3, <-b.C)
}
