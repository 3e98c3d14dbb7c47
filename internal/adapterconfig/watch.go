package adapterconfig

import (
	"log"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a Table from its backing file whenever the file changes.
// It never touches a session already in flight: Table.Resolve is called
// once per Start/Attach and the returned Profile is then owned by that
// session for its lifetime (see SPEC_FULL.md's Open Question resolution on
// config hot-reload scope).
type Watcher struct {
	fs  *fsnotify.Watcher
	log *log.Logger
}

// NewWatcher starts watching path for writes and reloads table on each one.
// The returned Watcher must be closed to release the underlying inotify/
// kqueue handle.
func NewWatcher(table *Table, path string, logger *log.Logger) (*Watcher, error) {
	if logger == nil {
		logger = log.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fw.Add(path); err != nil {
		_ = fw.Close()

		return nil, err
	}

	w := &Watcher{fs: fw, log: logger}

	go w.loop(table, path)

	return w, nil
}

func (w *Watcher) loop(table *Table, path string) {
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			if err := table.LoadFile(path); err != nil {
				w.log.Printf("adapterconfig: reload %s failed: %v", path, err)

				continue
			}

			w.log.Printf("adapterconfig: reloaded adapter profiles from %s", path)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}

			w.log.Printf("adapterconfig: watch error: %v", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
