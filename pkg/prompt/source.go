package prompt

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Source provides the current facts.
type Source interface {
	Facts() *Facts
}

// Static is a Source that never changes.
type Static struct {
	facts *Facts
}

// NewStatic creates a Static source. A nil facts value uses DefaultFacts.
func NewStatic(f *Facts) *Static {
	if f == nil {
		f = DefaultFacts()
	}
	return &Static{facts: f}
}

func (s *Static) Facts() *Facts { return s.facts }

// Watcher is a Source backed by a TOML file that is reloaded when it changes.
// A file that fails to parse leaves the previous facts in place.
type Watcher struct {
	path    string
	current atomic.Pointer[Facts]
	watcher *fsnotify.Watcher
	logger  *zap.Logger
}

// NewWatcher loads path and starts watching its directory. Run must be called to
// process change events.
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	f, err := LoadFacts(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	// Editors often replace files by rename, so watch the directory.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", path, err)
	}

	w := &Watcher{
		path:    filepath.Clean(path),
		watcher: fw,
		logger:  logger,
	}
	w.current.Store(f)
	return w, nil
}

func (w *Watcher) Facts() *Facts { return w.current.Load() }

// Run processes file events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("facts watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	f, err := LoadFacts(w.path)
	if err != nil {
		w.logger.Warn("keeping previous facts", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.current.Store(f)
	w.logger.Info("facts reloaded", zap.String("path", w.path), zap.String("school", f.School.Name))
}
