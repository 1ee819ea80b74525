// Package watcher re-imports a set of trace files whenever one of them
// changes on disk, for a live "re-run the tool on save" workflow.
package watcher

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/traceboard/traceboard/internal/util"
)

// FileEvent describes one change to a watched trace file.
type FileEvent struct {
	Path      string
	Operation string
}

// FileWatcher watches the parent directories of the given trace files
// and forwards events for exactly those files. Watching the parents
// rather than the files themselves survives the rename-and-replace
// write pattern most tracing tools use.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	files   map[string]bool
	events  chan FileEvent
}

func NewFileWatcher(paths []string) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	fw := &FileWatcher{
		watcher: watcher,
		files:   make(map[string]bool),
		events:  make(chan FileEvent, 100),
	}

	dirs := make(map[string]bool)
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			watcher.Close()
			return nil, err
		}
		fw.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, err
		}
	}

	go fw.processEvents()

	return fw, nil
}

func (fw *FileWatcher) processEvents() {
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				close(fw.events)
				return
			}

			abs, err := filepath.Abs(event.Name)
			if err != nil || !fw.files[abs] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			fw.events <- FileEvent{Path: abs, Operation: event.Op.String()}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				close(fw.events)
				return
			}
			util.LogError("trace file monitoring error: " + err.Error())
		}
	}
}

// Events returns the change stream. It is closed when the watcher is.
func (fw *FileWatcher) Events() <-chan FileEvent {
	return fw.events
}

func (fw *FileWatcher) Close() error {
	return fw.watcher.Close()
}
