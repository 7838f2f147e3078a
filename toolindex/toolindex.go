// Package toolindex loads planner tool descriptors from a directory of JSON
// files and keeps the in-memory index current by watching the directory for
// changes. The index is advisory: load failures degrade to an empty index so
// a broken descriptor never prevents the service from starting.
package toolindex

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Tool is one descriptor loaded from a `<id>.json` file in the tools
// directory.
type Tool struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Snapshot is the status view of the index surfaced by the API.
type Snapshot struct {
	Directory string    `json:"directory"`
	Count     int       `json:"count"`
	Names     []string  `json:"names"`
	LoadedAt  time.Time `json:"loadedAt"`
}

// Index holds the loaded tools. Safe for concurrent use.
type Index struct {
	dir string
	log *slog.Logger

	mu       sync.RWMutex
	tools    map[string]Tool
	loadedAt time.Time
}

// Load reads every *.json descriptor under dir. A missing directory or an
// unreadable descriptor is logged and skipped, never fatal.
func Load(dir string, log *slog.Logger) *Index {
	if log == nil {
		log = slog.Default()
	}
	ix := &Index{dir: dir, log: log, tools: map[string]Tool{}}
	ix.reload()
	return ix
}

func (ix *Index) reload() {
	tools := map[string]Tool{}

	err := filepath.WalkDir(ix.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			ix.log.Warn("toolindex.read.fail", slog.String("path", p), slog.String("err", err.Error()))
			return nil
		}
		var t Tool
		if err := json.Unmarshal(data, &t); err != nil {
			ix.log.Warn("toolindex.parse.fail", slog.String("path", p), slog.String("err", err.Error()))
			return nil
		}
		if t.ID == "" {
			t.ID = strings.TrimSuffix(d.Name(), ".json")
		}
		tools[t.ID] = t
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		ix.log.Warn("toolindex.walk.fail", slog.String("dir", ix.dir), slog.String("err", err.Error()))
	}

	ix.mu.Lock()
	ix.tools = tools
	ix.loadedAt = time.Now()
	ix.mu.Unlock()

	ix.log.Info("toolindex.loaded", slog.String("dir", ix.dir), slog.Int("count", len(tools)))
}

// Get returns the tool with the given id.
func (ix *Index) Get(id string) (Tool, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	t, ok := ix.tools[id]
	return t, ok
}

// Snapshot returns the current status view.
func (ix *Index) Snapshot() Snapshot {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	names := make([]string, 0, len(ix.tools))
	for _, t := range ix.tools {
		name := t.Name
		if name == "" {
			name = t.ID
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return Snapshot{Directory: ix.dir, Count: len(ix.tools), Names: names, LoadedAt: ix.loadedAt}
}

// Watch reloads the index whenever the tools directory changes, until ctx is
// done. If fsnotify is unavailable the index simply stays static.
func (ix *Index) Watch(ctx context.Context) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		ix.log.Warn("toolindex.watch.unavailable", slog.String("err", err.Error()))
		return
	}
	defer func() {
		// Best-effort watcher close; no actionable error handling path.
		_ = w.Close()
	}()

	if err := w.Add(ix.dir); err != nil {
		ix.log.Warn("toolindex.watch.fail", slog.String("dir", ix.dir), slog.String("err", err.Error()))
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				ix.reload()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			ix.log.Warn("toolindex.watch.err", slog.String("err", err.Error()))
		}
	}
}
