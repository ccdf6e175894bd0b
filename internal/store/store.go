// Package store holds the builder's working copies: per page, the current
// (possibly unsaved) layout document, a dirty flag, and a snapshot of the
// last successfully persisted state. It is a cache over the pages/page_layouts
// tables and is never persisted itself.
package store

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Hampilk/trebujton-sub000/internal/layout"
)

// Status is the read-only view of one page's editing state, shaped for the
// builder status surface.
type Status struct {
	PageID      string    `json:"pageId"`
	Loaded      bool      `json:"loaded"`
	Dirty       bool      `json:"dirty"`
	LoadError   string    `json:"loadError,omitempty"`
	SaveError   string    `json:"saveError,omitempty"`
	LastSavedAt time.Time `json:"lastSavedAt,omitzero"`
}

type pageState struct {
	doc            *layout.Document
	overrides      map[string]interface{}
	overridesDirty bool
	editedBy       string
	dirty          bool
	snapshot       string
	loadError      string
	saveError      string
	lastSavedAt    time.Time
	loaded         bool
}

// Store is an explicit, injected object and never a package singleton. All
// methods are safe for concurrent use. No operation other than Reset discards
// a working copy with unsaved changes.
type Store struct {
	mu      sync.Mutex
	current string
	pages   map[string]*pageState
}

// New returns an empty store.
func New() *Store {
	return &Store{pages: make(map[string]*pageState)}
}

// SetCurrentPage marks which page is active. Cached state of other pages is
// untouched.
func (s *Store) SetCurrentPage(pageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = pageID
}

// CurrentPage returns the active page identifier.
func (s *Store) CurrentPage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// LoadSucceeded replaces the working copy for pageID with freshly loaded
// state, clears the dirty flag, and records the persisted snapshot.
func (s *Store) LoadSucceeded(pageID string, doc *layout.Document, overrides map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc == nil {
		doc = layout.Empty()
	}
	st := &pageState{
		doc:       doc.Clone(),
		overrides: cloneOverrides(overrides),
		loaded:    true,
	}
	st.snapshot = encodeState(st.doc, st.overrides)
	s.pages[pageID] = st
}

// LoadFailed records a load error for pageID. An existing working copy is
// left alone.
func (s *Store) LoadFailed(pageID string, errorMessage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(pageID).loadError = errorMessage
}

// UpdateInstances merges the given widget instances into the working copy and
// marks it dirty. Keys in the update replace existing instances; other
// instances are preserved.
func (s *Store) UpdateInstances(pageID string, instances map[string]layout.Widget) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state(pageID)
	for id, w := range instances {
		st.doc.Instances[id] = w
	}
	st.dirty = true
}

// UpdateGeometry replaces the ordered geometry array of the working copy and
// marks it dirty.
func (s *Store) UpdateGeometry(pageID string, layoutArray []layout.GridItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state(pageID)
	st.doc.Layout = append([]layout.GridItem(nil), layoutArray...)
	st.dirty = true
}

// UpdateOverrides merges a partial theme-override bag into the working copy
// and marks it dirty.
func (s *Store) UpdateOverrides(pageID string, partial map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state(pageID)
	if st.overrides == nil {
		st.overrides = make(map[string]interface{}, len(partial))
	}
	for k, v := range partial {
		st.overrides[k] = v
	}
	st.overridesDirty = true
	st.dirty = true
}

// RecordEditor notes which user made the pending edits. The value travels
// with the save plan so persisted rows and audit entries name the acting
// user rather than a synthetic one.
func (s *Store) RecordEditor(pageID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if userID != "" {
		s.state(pageID).editedBy = userID
	}
}

// MarkSaved clears the dirty flag and records the current working copy as the
// persisted snapshot.
func (s *Store) MarkSaved(pageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state(pageID)
	st.snapshot = encodeState(st.doc, st.overrides)
	st.dirty = false
	st.overridesDirty = false
	st.saveError = ""
	st.lastSavedAt = time.Now().UTC()
}

// SavePlan is the unit of work handed to a saver: a copy of the document, the
// override bag when it was edited since the last save, the user the edits are
// attributed to, and the canonical encoding of exactly the state being
// written.
type SavePlan struct {
	Doc       *layout.Document
	Overrides map[string]interface{}
	EditedBy  string
	Snapshot  string
}

// BeginSave captures a save plan for the current working copy. Returns false
// when the page is not dirty.
func (s *Store) BeginSave(pageID string) (*SavePlan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.pages[pageID]
	if !ok || !st.dirty {
		return nil, false
	}
	plan := &SavePlan{
		Doc:      st.doc.Clone(),
		EditedBy: st.editedBy,
		Snapshot: encodeState(st.doc, st.overrides),
	}
	if st.overridesDirty {
		plan.Overrides = cloneOverrides(st.overrides)
	}
	return plan, true
}

// CompleteSave records a successful save of the state identified by the
// snapshot the plan carried. An edit that arrived while the save was in
// flight keeps the page dirty, because the working copy no longer matches the
// persisted snapshot.
func (s *Store) CompleteSave(pageID string, snapshot string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state(pageID)
	st.snapshot = snapshot
	st.dirty = encodeState(st.doc, st.overrides) != snapshot
	if !st.dirty {
		st.overridesDirty = false
	}
	st.saveError = ""
	st.lastSavedAt = time.Now().UTC()
}

// RecordSaveError records the error but leaves the dirty flag set, so the
// unsaved change is preserved for a retry.
func (s *Store) RecordSaveError(pageID string, errorMessage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(pageID).saveError = errorMessage
}

// Reset drops the cached state for pageID. This is the only operation that
// may discard unsaved changes.
func (s *Store) Reset(pageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pages, pageID)
}

// Document returns a deep copy of the working copy, and whether the page is
// tracked at all.
func (s *Store) Document(pageID string) (*layout.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.pages[pageID]
	if !ok {
		return nil, false
	}
	return st.doc.Clone(), true
}

// Pending returns what a save should write: the working copy and, only when
// the overrides were edited since the last save, the override bag.
func (s *Store) Pending(pageID string) (*layout.Document, map[string]interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.pages[pageID]
	if !ok || !st.dirty {
		return nil, nil, false
	}
	var overrides map[string]interface{}
	if st.overridesDirty {
		overrides = cloneOverrides(st.overrides)
	}
	return st.doc.Clone(), overrides, true
}

// IsDirty reports whether the working copy differs from the last persisted
// state according to the dirty flag.
func (s *Store) IsDirty(pageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.pages[pageID]
	return ok && st.dirty
}

// Snapshot returns the canonical encoding of the last persisted state.
func (s *Store) Snapshot(pageID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.pages[pageID]
	if !ok {
		return ""
	}
	return st.snapshot
}

// Encoded returns the canonical encoding of the current working copy.
func (s *Store) Encoded(pageID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.pages[pageID]
	if !ok {
		return ""
	}
	return encodeState(st.doc, st.overrides)
}

// Status returns the read-only editing state for pageID.
func (s *Store) Status(pageID string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{PageID: pageID}
	st, ok := s.pages[pageID]
	if !ok {
		return status
	}
	status.Loaded = st.loaded
	status.Dirty = st.dirty
	status.LoadError = st.loadError
	status.SaveError = st.saveError
	status.LastSavedAt = st.lastSavedAt
	return status
}

// state returns the tracked state for pageID, creating an empty untracked
// entry on first touch. Callers must hold s.mu.
func (s *Store) state(pageID string) *pageState {
	st, ok := s.pages[pageID]
	if !ok {
		st = &pageState{doc: layout.Empty()}
		st.snapshot = encodeState(st.doc, st.overrides)
		s.pages[pageID] = st
	}
	return st
}

// encodeState produces the canonical encoding the dirty comparison runs on.
// Document and override map both marshal with sorted keys, so equal states
// always encode equal.
func encodeState(doc *layout.Document, overrides map[string]interface{}) string {
	encoded, err := doc.Encode()
	if err != nil {
		// Documents are built from decoded JSON; re-encoding cannot fail
		// outside of programmer error.
		return fmt.Sprintf("!encode-error: %v", err)
	}
	if len(overrides) == 0 {
		return encoded
	}
	overridesJSON, err := json.Marshal(overrides)
	if err != nil {
		return fmt.Sprintf("!encode-error: %v", err)
	}
	return encoded + "|" + string(overridesJSON)
}

func cloneOverrides(overrides map[string]interface{}) map[string]interface{} {
	if overrides == nil {
		return nil
	}
	out := make(map[string]interface{}, len(overrides))
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
