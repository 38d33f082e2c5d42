// Package watch re-runs the pipeline whenever exports land in an inbox
// directory.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AngelCh415/moi-etl/internal/ingest"
)

// Handler receives the exports found in the inbox. It is only called when a
// Shopify export is among them.
type Handler func(ctx context.Context, files ingest.Files) error

type Watcher struct {
	dir      string
	handle   Handler
	log      *slog.Logger
	debounce time.Duration

	pending  bool
	lastSeen time.Time
}

func New(dir string, h Handler, log *slog.Logger) *Watcher {
	return &Watcher{dir: dir, handle: h, log: log, debounce: 500 * time.Millisecond}
}

// Run blocks until ctx is cancelled. Bursts of writes are coalesced into one
// pipeline run once the directory has been quiet for the debounce period.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.log.Info("watching inbox", slog.String("dir", w.dir))

	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if relevant(ev) {
				w.pending = true
				w.lastSeen = time.Now()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watch error", slog.String("err", err.Error()))
		case <-tick.C:
			if w.pending && time.Since(w.lastSeen) >= w.debounce {
				w.pending = false
				w.fire(ctx)
			}
		}
	}
}

func (w *Watcher) fire(ctx context.Context) {
	files, err := Scan(w.dir)
	if err != nil {
		w.log.Error("scan inbox", slog.String("err", err.Error()))
		return
	}
	if files.Shopify == nil {
		w.log.Info("inbox has no shopify export yet")
		return
	}
	if err := w.handle(ctx, files); err != nil {
		w.log.Error("pipeline run failed", slog.String("err", err.Error()))
	}
}

func relevant(ev fsnotify.Event) bool {
	if !strings.EqualFold(filepath.Ext(ev.Name), ".csv") {
		return false
	}
	return ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0
}

// Scan classifies every .csv in dir. When two files look like the same
// platform, the most recently modified wins.
func Scan(dir string) (ingest.Files, error) {
	var fs ingest.Files
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fs, err
	}
	type candidate struct {
		path string
		mod  time.Time
	}
	var cs []candidate
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		cs = append(cs, candidate{path: filepath.Join(dir, e.Name()), mod: info.ModTime()})
	}
	sort.Slice(cs, func(i, j int) bool { return cs[i].mod.Before(cs[j].mod) })
	for _, c := range cs {
		b, err := os.ReadFile(c.path)
		if err != nil {
			return fs, err
		}
		fs.Assign(ingest.SourceFile{Name: filepath.Base(c.path), Content: b})
	}
	return fs, nil
}
