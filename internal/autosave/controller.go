// Package autosave drives debounced persistence of builder working copies.
// Per page it runs the state machine Idle -> Dirty -> Saving -> Idle/Error:
// edits restart a debounce timer, the timer fire writes the latest state
// through the saver unless the content matches the last persisted snapshot,
// and a failed save leaves the dirty flag set so the next edit or a manual
// save retries.
package autosave

import (
	"errors"
	"sync"
	"time"

	"github.com/Hampilk/trebujton-sub000/internal/layout"
	"github.com/Hampilk/trebujton-sub000/internal/store"
)

// DefaultDebounce is the quiet period after the last edit before a save is
// issued.
const DefaultDebounce = 5000 * time.Millisecond

// State names one page's position in the autosave state machine.
type State string

const (
	StateIdle   State = "idle"
	StateDirty  State = "dirty"
	StateSaving State = "saving"
	StateError  State = "error"
)

// ErrSaveInFlight is returned by SaveNow while a save for the page is already
// running; the caller retries after it resolves.
var ErrSaveInFlight = errors.New("save already in flight")

// ErrNothingToSave is returned by SaveNow when the working copy is clean or
// matches the persisted snapshot.
var ErrNothingToSave = errors.New("nothing to save")

// Saver persists one page's pending state. The overrides bag is nil when only
// the layout changed; editedBy names the user the edits are attributed to and
// is empty when the store never saw one.
type Saver interface {
	SaveLayout(pageID string, doc *layout.Document, overrides map[string]interface{}, editedBy string) error
}

// SaverFunc adapts a function to the Saver interface.
type SaverFunc func(pageID string, doc *layout.Document, overrides map[string]interface{}, editedBy string) error

// SaveLayout implements Saver.
func (f SaverFunc) SaveLayout(pageID string, doc *layout.Document, overrides map[string]interface{}, editedBy string) error {
	return f(pageID, doc, overrides, editedBy)
}

// Controller watches the store's dirty state and debounces writes. One timer
// exists per page; no two saves for the same page ever run concurrently.
type Controller struct {
	mu       sync.Mutex
	store    *store.Store
	saver    Saver
	debounce time.Duration
	timers   map[string]*time.Timer
	saving   map[string]bool
	closed   bool
}

// New creates a controller over the given store and saver. A non-positive
// debounce falls back to DefaultDebounce.
func New(st *store.Store, saver Saver, debounce time.Duration) *Controller {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Controller{
		store:    st,
		saver:    saver,
		debounce: debounce,
		timers:   make(map[string]*time.Timer),
		saving:   make(map[string]bool),
	}
}

// NotifyEdit signals that the working copy for pageID changed. The debounce
// timer restarts, so only the latest state is ever written. An edit arriving
// while a save is in flight is picked up after that save resolves.
func (c *Controller) NotifyEdit(pageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.saving[pageID] {
		return
	}
	c.scheduleLocked(pageID)
}

// SaveNow is the manual save path. It bypasses the debounce timer but keeps
// the no-op suppression: ErrNothingToSave when the page is clean or already
// matches the persisted snapshot, ErrSaveInFlight while a save is running.
func (c *Controller) SaveNow(pageID string) error {
	c.mu.Lock()
	if timer, ok := c.timers[pageID]; ok {
		timer.Stop()
		delete(c.timers, pageID)
	}
	c.mu.Unlock()

	return c.flush(pageID, true)
}

// State reports the page's position in the state machine.
func (c *Controller) State(pageID string) State {
	c.mu.Lock()
	saving := c.saving[pageID]
	c.mu.Unlock()

	if saving {
		return StateSaving
	}
	status := c.store.Status(pageID)
	switch {
	case status.SaveError != "":
		return StateError
	case status.Dirty:
		return StateDirty
	}
	return StateIdle
}

// Cancel stops the pending debounce timer for one page without flushing.
func (c *Controller) Cancel(pageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if timer, ok := c.timers[pageID]; ok {
		timer.Stop()
		delete(c.timers, pageID)
	}
}

// Close cancels every pending timer without flushing and detaches the
// controller from the store: an in-flight save finishes in the background but
// its result is dropped. Unsaved edits at close time are lost by contract.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	for pageID, timer := range c.timers {
		timer.Stop()
		delete(c.timers, pageID)
	}
}

// scheduleLocked restarts the debounce timer for pageID. Callers hold c.mu.
func (c *Controller) scheduleLocked(pageID string) {
	if timer, ok := c.timers[pageID]; ok {
		timer.Stop()
	}
	c.timers[pageID] = time.AfterFunc(c.debounce, func() {
		// Error outcome is recorded on the store; the timer path has no
		// caller to report to.
		_ = c.flush(pageID, false)
	})
}

func (c *Controller) flush(pageID string, manual bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if c.saving[pageID] {
		c.mu.Unlock()
		if manual {
			return ErrSaveInFlight
		}
		return nil
	}
	delete(c.timers, pageID)

	plan, ok := c.store.BeginSave(pageID)
	if !ok {
		c.mu.Unlock()
		if manual {
			return ErrNothingToSave
		}
		return nil
	}

	// Unchanged-content edit (undo-then-redo): no write is issued.
	if plan.Snapshot == c.store.Snapshot(pageID) {
		c.store.CompleteSave(pageID, plan.Snapshot)
		c.mu.Unlock()
		if manual {
			return ErrNothingToSave
		}
		return nil
	}

	c.saving[pageID] = true
	c.mu.Unlock()

	err := c.saver.SaveLayout(pageID, plan.Doc, plan.Overrides, plan.EditedBy)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.saving, pageID)

	if c.closed {
		// Torn down while the save was in flight; drop the result.
		return err
	}
	if err != nil {
		c.store.RecordSaveError(pageID, err.Error())
		return err
	}

	c.store.CompleteSave(pageID, plan.Snapshot)
	// An edit that landed during the save re-dirtied the store; queue it for
	// the next debounce cycle.
	if c.store.IsDirty(pageID) {
		c.scheduleLocked(pageID)
	}
	return nil
}
