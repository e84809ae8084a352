package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/s1s5/python-graphql-compiler/config"
	"github.com/s1s5/python-graphql-compiler/plugins"
)

const watchDebounce = 200 * time.Millisecond

// watch regenerates whenever a query file or a local schema file changes,
// until ctx is done. Bursts of events within watchDebounce trigger one run.
func watch(ctx context.Context, cfg *config.Config) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dirs, err := watchDirs(cfg)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	slog.InfoContext(ctx, "watching", "dirs", dirs)

	schemaFiles := make(map[string]bool, len(cfg.SchemaFilename))
	for _, f := range cfg.SchemaFilename {
		schemaFiles[absPath(f)] = true
	}

	var (
		timer        *time.Timer
		fire         <-chan time.Time
		reloadSchema bool
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			switch {
			case schemaFiles[absPath(event.Name)]:
				reloadSchema = true
			case cfg.IsQueryFile(event.Name):
			default:
				continue
			}
			slog.DebugContext(ctx, "change detected", "path", event.Name, "op", event.Op.String())

			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.ErrorContext(ctx, "watch failed", "error", err)
		case <-fire:
			fire = nil
			if reloadSchema {
				if err := cfg.LoadSchema(ctx); err != nil {
					slog.ErrorContext(ctx, "failed to load schema", "error", err)
					continue
				}
				reloadSchema = false
			}
			if err := plugins.GenerateCode(ctx, cfg); err != nil {
				slog.ErrorContext(ctx, "failed to generate code", "error", err)
			}
		}
	}
}

// watchDirs lists the directories holding query files, every directory under
// a query directory and the directories of local schema files.
func watchDirs(cfg *config.Config) ([]string, error) {
	var dirs []string
	for _, q := range cfg.Query {
		info, err := os.Stat(q)
		if err != nil || !info.IsDir() {
			continue
		}
		if err := filepath.WalkDir(q, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				dirs = append(dirs, path)
			}
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to walk query at root %s: %w", q, err)
		}
	}

	files, err := cfg.QueryFiles()
	if err != nil {
		return nil, err
	}
	for _, f := range append(files, cfg.SchemaFilename...) {
		dirs = append(dirs, filepath.Dir(f))
	}

	for i, dir := range dirs {
		dirs[i] = filepath.Clean(dir)
	}
	slices.Sort(dirs)
	return slices.Compact(dirs), nil
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
