// Package watch re-formats files in the policy directories as they change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tliron/commonlog"

	"github.com/jsvensson/dirfmt/internal/driver"
)

const defaultDebounce = 100 * time.Millisecond

// Watcher formats eligible files through a Driver whenever they are
// written or created.
type Watcher struct {
	driver    *driver.Driver
	log       commonlog.Logger
	debounce  time.Duration
	onResult  func(driver.Result)
	ready     chan struct{}
	readyOnce sync.Once
}

type Option func(*Watcher)

// WithDebounce sets how long a path must stay quiet before it is formatted.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithResults registers a callback invoked for every file the watcher
// formats. It runs on the watcher goroutine.
func WithResults(fn func(driver.Result)) Option {
	return func(w *Watcher) { w.onResult = fn }
}

func New(d *driver.Driver, opts ...Option) *Watcher {
	w := &Watcher{
		driver:   d,
		log:      commonlog.GetLogger("dirfmt.watch"),
		debounce: defaultDebounce,
		onResult: func(driver.Result) {},
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Ready is closed once every directory is being watched by the first
// call to Watch.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Watch holds the run lock and formats changed files until ctx is done.
// The files the watcher writes itself come back as events and settle as
// unchanged on the next format.
func (w *Watcher) Watch(ctx context.Context) error {
	unlock, err := w.driver.Lock()
	if err != nil {
		return err
	}
	defer unlock()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fw.Close()

	root := w.driver.Root()
	for _, dir := range w.driver.Policy().Dirs {
		if err := fw.Add(filepath.Join(root, dir)); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		w.log.Debugf("watching %s", dir)
	}
	w.readyOnce.Do(func() { close(w.ready) })

	// done releases debounce timers still waiting to deliver after Watch
	// has returned.
	done := make(chan struct{})
	defer close(done)

	due := make(chan string)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !w.driver.Policy().Eligible(filepath.Base(event.Name)) {
				continue
			}
			rel, err := filepath.Rel(root, event.Name)
			if err != nil {
				continue
			}
			if t, ok := timers[rel]; ok {
				t.Reset(w.debounce)
				continue
			}
			timers[rel] = time.AfterFunc(w.debounce, func() {
				select {
				case due <- rel:
				case <-done:
				}
			})

		case rel := <-due:
			delete(timers, rel)
			res := w.driver.FormatFile(ctx, rel)
			if res.Status == driver.StatusFailed && errors.Is(res.Err, fs.ErrNotExist) {
				// Removed again before the debounce fired.
				continue
			}
			w.onResult(res)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warningf("watch error: %s", err.Error())
		}
	}
}
