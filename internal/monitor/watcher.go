package monitor

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// quietPeriod is how long the tree must stay unchanged before a wake-up.
const quietPeriod = 200 * time.Millisecond

// watcher turns bursts of filesystem events under a root into single
// wake-ups on C.
type watcher struct {
	C <-chan struct{}

	w      *fsnotify.Watcher
	c      chan struct{}
	logger *slog.Logger
	wg     sync.WaitGroup
}

func newWatcher(root string, logger *slog.Logger) (*watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := addDirsRecursive(fw, root); err != nil {
		fw.Close()
		return nil, err
	}
	c := make(chan struct{}, 1)
	w := &watcher{C: c, w: fw, c: c, logger: logger}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *watcher) run() {
	defer w.wg.Done()

	var (
		debounce *time.Timer
		fire     <-chan time.Time
	)
	schedule := func() {
		if debounce == nil {
			debounce = time.NewTimer(quietPeriod)
			fire = debounce.C
		} else {
			debounce.Reset(quietPeriod)
		}
	}
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-fire:
			select {
			case w.c <- struct{}{}:
			default:
			}

		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}
			if isArkPath(ev.Name) {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addDirsRecursive(w.w, ev.Name); err != nil {
						w.logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", err.Error()))
					}
				}
			}
			schedule()

		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			// Dropped events mean the tree may have changed unseen.
			w.logger.Warn("watcher: error", slog.String("error", err.Error()))
			schedule()
		}
	}
}

// Close stops the watcher and waits for its goroutine.
func (w *watcher) Close() error {
	err := w.w.Close()
	w.wg.Wait()
	return err
}

func isArkPath(p string) bool {
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if part == ".ark" {
			return true
		}
	}
	return false
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".ark" {
				return filepath.SkipDir
			}
			return w.Add(path)
		}
		return nil
	})
}
