package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long a new file must go without further writes
// before it is queued. Producers rarely create a file in one write.
const DefaultSettle = 250 * time.Millisecond

// watcher reports files that appear in a directory after they settle.
type watcher struct {
	fs     *fsnotify.Watcher
	dir    string
	settle time.Duration
	log    *slog.Logger
}

func newWatcher(dir string, settle time.Duration, log *slog.Logger) (*watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}
	return &watcher{fs: fw, dir: dir, settle: settle, log: log}, nil
}

func (w *watcher) Close() error {
	return w.fs.Close()
}

// run submits settled files until ctx ends, returning ctx.Err(), or until
// the pool refuses work. Names already submitted are ignored, so rewriting
// a processed file does not reprocess it.
func (w *watcher) run(ctx context.Context, sub *submitter) error {
	w.log.Info("watching for new files", "dir", w.dir, "settle", w.settle)

	pending := make(map[string]*time.Timer)
	ready := make(chan string)
	done := make(chan struct{})
	defer func() {
		close(done)
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(event.Name)
			if t, ok := pending[name]; ok {
				t.Reset(w.settle)
				continue
			}
			pending[name] = time.AfterFunc(w.settle, func() {
				select {
				case ready <- name:
				case <-done:
				}
			})

		case name := <-ready:
			delete(pending, name)
			info, err := os.Stat(filepath.Join(w.dir, name))
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			if err := sub.submit(name); err != nil {
				return err
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watcher error", "error", err)
		}
	}
}
