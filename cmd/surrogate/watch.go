package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/funvibe/surrogate/internal/config"
	"github.com/funvibe/surrogate/internal/pipeline"
	"github.com/funvibe/surrogate/internal/report"
)

// settle is how long the watcher waits for a burst of writes to end.
const settle = 200 * time.Millisecond

// inputFiles lists the files a build of opts reads.
func inputFiles(optsPath string, opts *config.Options) []string {
	files := []string{optsPath}
	if opts.Hierarchy.Universe != "" {
		files = append(files, opts.Resolve(opts.Hierarchy.Universe))
	}
	if opts.Reflection.Enabled {
		files = append(files, opts.Resolve(opts.Reflection.Facts))
	}
	if opts.DynamicClasses.Enabled && opts.DynamicClasses.File != "" {
		files = append(files, opts.Resolve(opts.DynamicClasses.File))
	}
	return files
}

// watch rebuilds whenever one of the inputs changes, until ctx is done.
// Directories are watched instead of files so editors that replace files
// on save are noticed.
func watch(ctx context.Context, path string, opts *config.Options, rep *report.Reporter) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	watched := make(map[string]bool)
	dirs := make(map[string]bool)
	add := func(o *config.Options) error {
		for k := range watched {
			delete(watched, k)
		}
		for _, f := range inputFiles(path, o) {
			abs, err := filepath.Abs(f)
			if err != nil {
				return err
			}
			watched[abs] = true
			dir := filepath.Dir(abs)
			if !dirs[dir] {
				if err := w.Add(dir); err != nil {
					return fmt.Errorf("watching %s: %w", dir, err)
				}
				dirs[dir] = true
			}
		}
		return nil
	}
	if opts.Hierarchy.Go != nil {
		dir := opts.Resolve(opts.Hierarchy.Go.Dir)
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		dirs[dir] = true
	}
	if err := add(opts); err != nil {
		return err
	}

	build := func() {
		out, err := pipeline.Run(ctx, pipeline.Build(), opts, rep)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				rep.Errorf("watch", "%v", err)
			}
			return
		}
		summarize(out, opts, rep, false)
	}
	build()
	rep.Warnf("watch", "watching %d inputs, press Ctrl-C to stop", len(watched))

	timer := time.NewTimer(settle)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			abs, _ := filepath.Abs(ev.Name)
			if watched[abs] || (opts.Hierarchy.Go != nil && filepath.Ext(abs) == ".go") {
				timer.Reset(settle)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			rep.Errorf("watch", "%v", err)
		case <-timer.C:
			next, err := config.LoadOptions(path)
			if err != nil {
				rep.Errorf("watch", "%v", err)
				continue
			}
			opts = next
			if err := add(opts); err != nil {
				return err
			}
			build()
		}
	}
}
