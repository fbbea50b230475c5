package collection

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type State int

const (
	StateIdle State = iota
	StateDirty
	StateSaving
	StateReconciling
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDirty:
		return "dirty"
	case StateSaving:
		return "saving"
	case StateReconciling:
		return "reconciling"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Store is the part of the collection store a Session writes through.
type Store interface {
	FetchCollection(ctx context.Context, id int) (*Collection, error)
	// SaveCollection writes metadata and groups atomically.
	SaveCollection(ctx context.Context, c Collection) error
}

type SaveResult struct {
	Collection Collection
	Items      []Item
	// Stale is set when the write succeeded but the re-fetch did not, so
	// Items is the locally saved order rather than the store's copy.
	Stale bool
}

// Session tracks the reorder/save cycle of a single collection:
// idle -> dirty -> saving -> reconciling -> idle.
//
// Only one Save runs at a time. A reorder that arrives while a save is in
// flight is kept and becomes the dirty state once the save finishes.
type Session struct {
	store  Store
	logger *zap.Logger

	mu       sync.Mutex
	state    State
	meta     Collection
	baseline []Item
	dirty    []Item
	pending  []Item
}

func NewSession(c Collection, store Store, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		store:    store,
		logger:   logger.With(zap.Int("collection_id", c.ID)),
		state:    StateIdle,
		meta:     c,
		baseline: c.Ordered(),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CanSave reports whether there are unsaved changes and no save in flight.
func (s *Session) CanSave() bool {
	return s.State() == StateDirty
}

// Items returns the newest ordering the user has produced.
func (s *Session) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Item(nil), s.current()...)
}

// Collection returns the last confirmed collection metadata and groups.
func (s *Session) Collection() Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

func (s *Session) current() []Item {
	switch {
	case s.pending != nil:
		return s.pending
	case s.dirty != nil:
		return s.dirty
	default:
		return s.baseline
	}
}

// Reorder replaces the in-memory ordering. items must hold the same keys as
// the current ordering. Nothing is persisted until Save.
func (s *Session) Reorder(items []Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !sameKeys(items, s.current()) {
		return ErrInvalidReorder
	}
	items = append([]Item(nil), items...)

	switch s.state {
	case StateSaving, StateReconciling:
		s.pending = items
		s.logger.Debug("reorder queued behind in-flight save")
	default:
		if sameOrder(items, s.baseline) {
			s.dirty = nil
			s.state = StateIdle
			return nil
		}
		s.dirty = items
		s.state = StateDirty
	}
	return nil
}

// Move moves the item at index from to index to.
func (s *Session) Move(from, to int) error {
	items := s.Items()
	if from < 0 || from >= len(items) || to < 0 || to >= len(items) {
		return fmt.Errorf("move %d -> %d: index out of range [0,%d)", from, to, len(items))
	}
	it := items[from]
	items = append(items[:from], items[from+1:]...)
	items = append(items[:to], append([]Item{it}, items[to:]...)...)
	return s.Reorder(items)
}

// Save writes the dirty ordering and its verse groups, then re-fetches the
// collection and folds locally known verse text back into it.
//
// A failed write leaves the dirty ordering in place. A failed re-fetch still
// counts as saved; the result is marked Stale.
func (s *Session) Save(ctx context.Context) (SaveResult, error) {
	s.mu.Lock()
	switch s.state {
	case StateSaving, StateReconciling:
		s.mu.Unlock()
		return SaveResult{}, ErrSaveInFlight
	case StateIdle:
		s.mu.Unlock()
		return SaveResult{}, ErrNothingToSave
	}
	dirty := s.dirty
	meta := s.meta
	s.state = StateSaving
	s.mu.Unlock()

	tokens := EncodeOrder(dirty)
	meta.OrderTokens = tokens
	meta.Groups = Groups(dirty)

	if err := s.store.SaveCollection(ctx, meta); err != nil {
		return SaveResult{}, s.persistFailed(err)
	}

	s.setState(StateReconciling)

	fetched, err := s.store.FetchCollection(ctx, meta.ID)
	if err != nil {
		s.logger.Warn("re-fetch after save failed, keeping local order", zap.Error(err))
		saved := withItems(meta, dirty)
		s.finish(saved, dirty)
		return SaveResult{Collection: saved, Items: dirty, Stale: true}, nil
	}

	confirmed := *fetched
	confirmed.Groups = PreserveText(confirmed.Groups, Groups(dirty))
	confirmed.OrderTokens = tokens
	items := Reconcile(confirmed.Items(), tokens)
	s.finish(confirmed, items)

	s.logger.Debug("collection order saved", zap.String("verse_order", tokens))
	return SaveResult{Collection: confirmed, Items: items}, nil
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) persistFailed(err error) error {
	s.mu.Lock()
	if s.pending != nil {
		s.dirty = s.pending
		s.pending = nil
	}
	s.state = StateDirty
	s.mu.Unlock()

	s.logger.Warn("collection save failed", zap.Error(err))
	return &SaveError{Stage: StagePersist, Err: err}
}

func (s *Session) finish(c Collection, items []Item) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.meta = c
	s.baseline = items
	s.dirty = nil
	s.state = StateIdle
	if s.pending != nil && !sameOrder(s.pending, items) {
		s.dirty = s.pending
		s.state = StateDirty
	}
	s.pending = nil
}

// PreserveText copies verse text from local groups onto fetched groups with
// the same reference. Store round trips do not always echo verse text, which
// is filled in by a separate lookup.
func PreserveText(fetched, local []VerseGroup) []VerseGroup {
	byRef := make(map[string]VerseGroup, len(local))
	for _, g := range local {
		byRef[referenceKey(g.Reference)] = g
	}

	out := make([]VerseGroup, len(fetched))
	for i, g := range fetched {
		out[i] = g
		l, ok := byRef[referenceKey(g.Reference)]
		if !ok {
			continue
		}
		if len(g.Verses) == 0 {
			out[i].Verses = append([]Verse{}, l.Verses...)
			continue
		}

		text := make(map[string]string, len(l.Verses))
		for _, v := range l.Verses {
			if v.Text != "" {
				text[referenceKey(v.Reference)] = v.Text
			}
		}
		verses := make([]Verse, len(g.Verses))
		for j, v := range g.Verses {
			if t, ok := text[referenceKey(v.Reference)]; ok {
				v.Text = t
			}
			verses[j] = v
		}
		out[i].Verses = verses
	}
	return out
}

func withItems(c Collection, items []Item) Collection {
	c.Groups = Groups(items)
	c.Notes = nil
	for _, it := range items {
		if it.Note != nil {
			c.Notes = append(c.Notes, *it.Note)
		}
	}
	return c
}

func sameOrder(a, b []Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].OrderKey().lookup() != b[i].OrderKey().lookup() {
			return false
		}
	}
	return true
}

func sameKeys(a, b []Item) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, it := range a {
		counts[it.OrderKey().lookup()]++
	}
	for _, it := range b {
		k := it.OrderKey().lookup()
		if counts[k] == 0 {
			return false
		}
		counts[k]--
	}
	return true
}
