package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldProcess(t *testing.T) {
	w := Watcher{
		Extensions: []string{".go", ".tmpl"},
		Ignore:     []string{"generated"},
		Target:     "/src/app",
	}
	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"write go", fsnotify.Event{Name: "/src/app/main.go", Op: fsnotify.Write}, true},
		{"create template", fsnotify.Event{Name: "/src/app/views/index.tmpl", Op: fsnotify.Create}, true},
		{"remove", fsnotify.Event{Name: "/src/app/old.go", Op: fsnotify.Remove}, true},
		{"rename", fsnotify.Event{Name: "/src/app/new.go", Op: fsnotify.Rename}, true},
		{"chmod only", fsnotify.Event{Name: "/src/app/main.go", Op: fsnotify.Chmod}, false},
		{"other extension", fsnotify.Event{Name: "/src/app/README.md", Op: fsnotify.Write}, false},
		{"hidden file", fsnotify.Event{Name: "/src/app/.main.go", Op: fsnotify.Write}, false},
		{"hidden dir", fsnotify.Event{Name: "/src/app/.bounce/bin/x.go", Op: fsnotify.Write}, false},
		{"vendor", fsnotify.Event{Name: "/src/app/vendor/lib/lib.go", Op: fsnotify.Write}, false},
		{"ignored", fsnotify.Event{Name: "/src/app/generated/api.go", Op: fsnotify.Write}, false},
		{"nested", fsnotify.Event{Name: "/src/app/internal/store/store.go", Op: fsnotify.Write}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.shouldProcess(tt.event))
		})
	}
}

func TestShouldProcessHiddenParentOfTarget(t *testing.T) {
	// only directories below the target count
	w := Watcher{Extensions: []string{".go"}, Target: "/home/me/.cache/app"}
	assert.True(t, w.shouldProcess(fsnotify.Event{Name: "/home/me/.cache/app/main.go", Op: fsnotify.Write}))
}

func TestAddCreatedSkipsIgnoredDirectories(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{".cache", "node_modules", "vendor", "generated", "pkg/inner"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, name), 0755))
	}
	watcher, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer watcher.Close()

	w := Watcher{Ignore: []string{"generated"}, Target: dir}
	for _, name := range []string{".cache", "node_modules", "vendor", "generated", "pkg"} {
		require.NoError(t, w.addCreated(watcher, filepath.Join(dir, name)))
	}
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "pkg"),
		filepath.Join(dir, "pkg", "inner"),
	}, watcher.WatchList())
}

func TestWatcherReportsChanges(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pkg"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0755))

	changes := make(chan Change, 64)
	w := Watcher{
		Extensions: []string{".go"},
		OnChange:   changes,
		Target:     dir,
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
	}()
	defer func() {
		cancel()
		assert.NoError(t, <-done)
	}()

	// Run registers its watches asynchronously, keep writing until seen.
	path := filepath.Join(dir, "pkg", "a.go")
	var got Change
	require.Eventually(t, func() bool {
		assert.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "HEAD.go"), []byte("x"), 0644))
		assert.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
		assert.NoError(t, os.WriteFile(path, []byte("package pkg\n"), 0644))
		select {
		case got = <-changes:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, path, got.Path)
	assert.False(t, got.At.IsZero())
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	dir := t.TempDir()
	changes := make(chan Change, 64)
	w := Watcher{
		Extensions: []string{".go"},
		OnChange:   changes,
		Target:     dir,
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
	}()
	defer func() {
		cancel()
		assert.NoError(t, <-done)
	}()

	// wait for the root watch first
	require.Eventually(t, func() bool {
		assert.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0644))
		select {
		case <-changes:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))
	path := filepath.Join(sub, "b.go")
	require.Eventually(t, func() bool {
		assert.NoError(t, os.WriteFile(path, []byte("package sub\n"), 0644))
		for {
			select {
			case c := <-changes:
				if c.Path == path {
					return true
				}
			case <-time.After(50 * time.Millisecond):
				return false
			}
		}
	}, 5*time.Second, 10*time.Millisecond)
}
