package localstore

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher surfaces store-file writes made by other processes sharing the same
// device store, so those changes are picked up without waiting for the next
// poll tick. In-process writes already notify through Store.Subscribe.
type Watcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// WatchFile watches the store file and invokes fn on every write to it.
// Watching the containing directory covers atomic rename-style rewrites and
// sqlite sidecar files.
func WatchFile(path string, log zerolog.Logger, fn func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create store watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	base := filepath.Base(path)
	w := &Watcher{watcher: fw, done: make(chan struct{})}

	go func() {
		defer close(w.done)
		for {
			select {
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				name := filepath.Base(event.Name)
				if name != base && name != base+"-wal" && name != base+"-journal" {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					fn()
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("store watcher error")
			}
		}
	}()

	return w, nil
}

// Close stops the watcher and waits for its event loop to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
