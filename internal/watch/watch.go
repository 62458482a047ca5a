// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package watch rebuilds a site whenever its source tree changes.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/pdiddy/gasper/internal/site"
)

// Builder runs one full build.
type Builder interface {
	Build(ctx context.Context) (site.Summary, error)
}

// Watcher delivers filesystem events under a site root and runs one
// synchronous full rebuild per relevant event. Events that arrive during a
// rebuild are queued by fsnotify and handled in order afterwards.
type Watcher struct {
	root      string
	outputDir string
	builder   Builder
	logger    *slog.Logger
	fsw       *fsnotify.Watcher

	// OnBuild, when set, observes the outcome of every rebuild.
	OnBuild func(site.Summary, error)
}

// New watches every directory under root except outputDir and hidden
// directories.
func New(root, outputDir string, builder Builder, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving site directory: %w", err)
	}
	absOut, err := filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("resolving output directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	w := &Watcher{root: absRoot, outputDir: absOut, builder: builder, logger: logger, fsw: fsw}
	if err := w.addDirsRecursive(absRoot); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Close stops delivering events.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run handles events until ctx is canceled or the watcher is closed. A failed
// rebuild is logged and the loop keeps waiting for further changes.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watching for changes", "site", w.root)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod || w.ignored(ev.Name) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = w.addDirsRecursive(ev.Name)
		}
	}
	w.logger.Info("change detected, rebuilding", "path", ev.Name, "op", ev.Op.String())
	w.rebuild(ctx)
}

func (w *Watcher) rebuild(ctx context.Context) {
	summary, err := w.builder.Build(ctx)
	if err != nil {
		w.logger.Error("rebuild failed", "build.id", summary.ID, "error", err)
	}
	if w.OnBuild != nil {
		w.OnBuild(summary, err)
	}
}

// ignored reports whether a change at path should not trigger a rebuild.
func (w *Watcher) ignored(path string) bool {
	abs, err := filepath.Abs(path)
	if err == nil && (abs == w.outputDir || strings.HasPrefix(abs, w.outputDir+string(filepath.Separator))) {
		return true
	}
	return ShouldIgnore(path)
}

func (w *Watcher) addDirsRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path == w.outputDir || (path != w.root && strings.HasPrefix(d.Name(), ".")) {
			return fs.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("watch add failed", "dir", path, "error", err)
		}
		return nil
	})
}

// ShouldIgnore reports whether path names a hidden file, an editor swap or
// backup file, or an OS metadata file.
func ShouldIgnore(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "."):
		return true
	case strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	case base == "Thumbs.db", base == "4913": // 4913 is the file vim probes writability with
		return true
	}
	return false
}
