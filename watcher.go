package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Change is one relevant file system event.
type Change struct {
	At   time.Time
	Op   fsnotify.Op
	Path string
}

type Watcher struct {
	Extensions []string
	Ignore     []string
	OnChange   chan<- Change
	Target     string
}

func (w Watcher) Run(ctx context.Context) error {
	logger := log.Ctx(ctx)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := w.addRecursive(watcher, w.Target); err != nil {
		return err
	}
	logger.Info().Str("target", w.Target).Strs("extensions", w.Extensions).Msg("watching for changes")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("closing watcher")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addCreated(watcher, event.Name); err != nil {
						logger.Warn().Err(err).Str("dir", event.Name).Msg("failed to watch new directory")
					}
					continue
				}
			}
			if !w.shouldProcess(event) {
				continue
			}
			logger.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("source changed")
			select {
			case w.OnChange <- Change{At: time.Now(), Op: event.Op, Path: event.Name}:
			case <-ctx.Done():
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("watcher error")
		}
	}
}

// addCreated watches a directory that appeared after startup. Unlike the
// target itself it is subject to the same skip rules as any other subdirectory.
func (w Watcher) addCreated(watcher *fsnotify.Watcher, dir string) error {
	if w.skipDir(filepath.Base(dir)) {
		return nil
	}
	return w.addRecursive(watcher, dir)
}

func (w Watcher) addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", path, err)
		}
		return nil
	})
}

func (w Watcher) skipDir(name string) bool {
	if strings.HasPrefix(name, ".") || name == "vendor" || name == "node_modules" {
		return true
	}
	return slices.Contains(w.Ignore, name)
}

func (w Watcher) shouldProcess(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if rel, err := filepath.Rel(w.Target, filepath.Dir(event.Name)); err == nil {
		for _, dir := range strings.Split(filepath.ToSlash(rel), "/") {
			if dir != "." && dir != ".." && w.skipDir(dir) {
				return false
			}
		}
	}
	return slices.Contains(w.Extensions, filepath.Ext(base))
}
