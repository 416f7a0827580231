package slot

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/yndnr/savekeep-go/internal/core/domain"
	"github.com/yndnr/savekeep-go/internal/telemetry/logger"
)

// EventKind classifies a slot change.
type EventKind string

const (
	EventWritten EventKind = "written"
	EventRemoved EventKind = "removed"
)

// Event is a change to a slot file observed on disk.
type Event struct {
	Slot domain.SlotIndex
	Kind EventKind
	Path string
}

// Watcher reports slot files changing in the catalog directory, including
// changes made by other processes. Cached metadata of changed slots is
// invalidated before callbacks run.
type Watcher struct {
	catalog   *Catalog
	watcher   *fsnotify.Watcher
	callbacks []func(Event)
	mu        sync.RWMutex
	done      chan struct{}
	stopOnce  sync.Once
	logger    logger.Logger
}

// NewWatcher creates a watcher for the catalog directory. The directory is
// created if it does not exist.
func NewWatcher(c *Catalog) (*Watcher, error) {
	if err := c.EnsureDir(); err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, domain.ErrIO.WithDetails("create watcher").WithCause(err)
	}
	if err := fw.Add(c.Dir()); err != nil {
		fw.Close()
		return nil, domain.ErrIO.WithDetails("watch save dir").WithCause(err)
	}

	return &Watcher{
		catalog: c,
		watcher: fw,
		done:    make(chan struct{}),
		logger:  c.logger.With("component", "slot_watcher"),
	}, nil
}

// OnChange registers a callback for slot events.
func (w *Watcher) OnChange(callback func(Event)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start blocks until Stop is called.
func (w *Watcher) Start() {
	w.logger.Info("slot watcher started", "dir", w.catalog.Dir())

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if e, ok := translate(ev); ok {
				w.catalog.Invalidate(e.Slot)
				w.logger.Debug("slot changed", "slot", int(e.Slot), "kind", string(e.Kind))
				w.notify(e)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("slot watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// StartAsync starts watching in a goroutine.
func (w *Watcher) StartAsync() {
	go w.Start()
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.logger.Info("slot watcher stopped")
	})
	return err
}

func (w *Watcher) notify(e Event) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, cb := range w.callbacks {
		cb(e)
	}
}

// translate maps a raw event to a slot event. Temp files never match since
// their names do not parse as slot files.
func translate(ev fsnotify.Event) (Event, bool) {
	s, _, ok := domain.ParseSlotFileName(filepath.Base(ev.Name))
	if !ok {
		return Event{}, false
	}
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		return Event{Slot: s, Kind: EventWritten, Path: ev.Name}, true
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return Event{Slot: s, Kind: EventRemoved, Path: ev.Name}, true
	}
	return Event{}, false
}
