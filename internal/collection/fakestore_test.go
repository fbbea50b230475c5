package collection

import (
	"context"
	"errors"
	"sync"
)

var errStoreDown = errors.New("store unavailable")

// memRepo is an in-memory Repository. It can drop verse text on read, fail
// individual calls, and block SaveCollection until released.
type memRepo struct {
	mu          sync.Mutex
	collections map[int]Collection
	nextID      int

	stripText     bool
	failSave      bool
	failUpdate    bool
	failFetchNext bool

	saveStarted chan struct{}
	saveRelease chan struct{}

	saves   int
	updates int
}

func newMemRepo(cs ...Collection) *memRepo {
	r := &memRepo{collections: make(map[int]Collection), nextID: 100}
	for _, c := range cs {
		r.collections[c.ID] = c
	}
	return r
}

func (r *memRepo) FetchCollection(_ context.Context, id int) (*Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFetchNext {
		r.failFetchNext = false
		return nil, errStoreDown
	}
	c, ok := r.collections[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := c
	out.Groups = make([]VerseGroup, len(c.Groups))
	for i, g := range c.Groups {
		g.Verses = append([]Verse(nil), g.Verses...)
		if r.stripText {
			for j := range g.Verses {
				g.Verses[j].Text = ""
			}
		}
		out.Groups[i] = g
	}
	out.Notes = append([]Note(nil), c.Notes...)
	return &out, nil
}

// SaveCollection applies metadata and groups together or not at all.
func (r *memRepo) SaveCollection(_ context.Context, c Collection) error {
	if r.saveStarted != nil {
		r.saveStarted <- struct{}{}
		<-r.saveRelease
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if r.failSave {
		return errStoreDown
	}
	cur, ok := r.collections[c.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Title = c.Title
	cur.Visibility = c.Visibility
	cur.OrderTokens = c.OrderTokens
	cur.Groups = append([]VerseGroup(nil), c.Groups...)
	r.collections[c.ID] = cur
	return nil
}

func (r *memRepo) UpdateCollection(_ context.Context, c Collection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	if r.failUpdate {
		return errStoreDown
	}
	cur, ok := r.collections[c.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Title = c.Title
	cur.Visibility = c.Visibility
	cur.OrderTokens = c.OrderTokens
	r.collections[c.ID] = cur
	return nil
}

func (r *memRepo) CreateCollection(_ context.Context, c Collection) (*Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	r.collections[c.ID] = c
	return &c, nil
}

func (r *memRepo) ListOwnedCollections(_ context.Context, owner int) ([]Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Collection
	for _, c := range r.collections {
		if c.Owner == owner {
			c.Groups, c.Notes = nil, nil
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memRepo) AddNote(_ context.Context, id int, n Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.collections[id]
	if !ok {
		return ErrNotFound
	}
	for _, existing := range c.Notes {
		if existing.ID == n.ID {
			return ErrNoteExists
		}
	}
	c.Notes = append(c.Notes, n)
	r.collections[id] = c
	return nil
}

func (r *memRepo) DeleteNote(_ context.Context, id int, noteID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.collections[id]
	if !ok {
		return ErrNotFound
	}
	for i, n := range c.Notes {
		if n.ID == noteID {
			c.Notes = append(c.Notes[:i:i], c.Notes[i+1:]...)
			r.collections[id] = c
			return nil
		}
	}
	return ErrNoteNotFound
}

func (r *memRepo) get(id int) Collection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collections[id]
}

func group(ref string, verses ...Verse) VerseGroup {
	return VerseGroup{Reference: ref, Verses: verses}
}

func verse(ref, text string) Verse {
	return Verse{Reference: ref, Text: text}
}

func keysOf(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.OrderKey().Token
	}
	return out
}
