package collection

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taiwoajasa245/verse-collections-api/internal/savelock"
)

// CollectionService is the entry point for every collection mutation. All
// writes to one collection are serialized through the save lock, and
// creates for one owner through the owner lock.
type CollectionService struct {
	repo    Repository
	locker  savelock.Locker
	limits  Limits
	metrics *Metrics
	logger  *zap.Logger
}

func NewCollectionService(repo Repository, locker savelock.Locker, limits Limits, metrics *Metrics, logger *zap.Logger) *CollectionService {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollectionService{
		repo:    repo,
		locker:  locker,
		limits:  limits,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *CollectionService) Create(ctx context.Context, owner int, author, title string, groups []VerseGroup) (*Collection, error) {
	var created *Collection
	err := s.withLock(ctx, ownerKey(owner), func() error {
		var err error
		created, err = s.create(ctx, owner, author, title, groups)
		return err
	})
	return created, err
}

func (s *CollectionService) create(ctx context.Context, owner int, author, title string, groups []VerseGroup) (*Collection, error) {
	existing, err := s.repo.ListOwnedCollections(ctx, owner)
	if err != nil {
		return nil, err
	}
	if s.limits.atCollectionLimit(len(existing)) {
		return nil, rejected(ErrLimitExceeded, ReasonCollectionLimit)
	}

	merged := s.merge(nil, ownedBy(groups, owner))
	if s.limits.tooManyGroups(len(merged)) {
		return nil, rejected(ErrLimitExceeded, ReasonTooManyPassages)
	}

	c := Collection{
		Title:      strings.TrimSpace(title),
		Author:     author,
		Owner:      owner,
		Visibility: VisibilityPrivate,
		Groups:     merged,
	}
	c.OrderTokens = EncodeOrder(c.Items())

	created, err := s.repo.CreateCollection(ctx, c)
	if err != nil {
		s.logger.Error("create collection", zap.Int("owner", owner), zap.Error(err))
		return nil, err
	}
	return created, nil
}

// Get returns the ordered view of a collection. Private collections of other
// users are reported as not found.
func (s *CollectionService) Get(ctx context.Context, viewer, id int) (View, error) {
	c, err := s.repo.FetchCollection(ctx, id)
	if err != nil {
		return View{}, err
	}
	if c.Owner != viewer && c.Visibility != VisibilityPublic {
		return View{}, ErrNotFound
	}
	return NewView(*c), nil
}

func (s *CollectionService) ListOwned(ctx context.Context, owner int) ([]Collection, error) {
	return s.repo.ListOwnedCollections(ctx, owner)
}

// AddVerses merges groups into the collection. Passages the collection
// already has gain any new verses; new passages go to the end of the order.
func (s *CollectionService) AddVerses(ctx context.Context, owner, id int, groups []VerseGroup) (View, error) {
	var view View
	err := s.withLock(ctx, collectionKey(id), func() error {
		c, err := s.loadOwned(ctx, owner, id)
		if err != nil {
			return err
		}

		merged := s.merge(c.Groups, ownedBy(groups, owner))
		if s.limits.tooManyGroups(len(merged)) {
			return rejected(ErrLimitExceeded, ReasonTooManyPassages)
		}

		c.Groups = merged
		c.OrderTokens = EncodeOrder(c.Ordered())
		if err := s.repo.SaveCollection(ctx, *c); err != nil {
			return err
		}
		view = NewView(*c)
		return nil
	})
	return view, err
}

func (s *CollectionService) AddNote(ctx context.Context, owner, id int, text string) (Note, error) {
	note := Note{ID: uuid.NewString(), Text: text}
	err := s.withLock(ctx, collectionKey(id), func() error {
		c, err := s.loadOwned(ctx, owner, id)
		if err != nil {
			return err
		}
		if err := s.repo.AddNote(ctx, id, note); err != nil {
			return err
		}
		c.OrderTokens = EncodeOrder(append(c.Ordered(), NoteItem(note)))
		return s.repo.UpdateCollection(ctx, *c)
	})
	if err != nil {
		return Note{}, err
	}
	return note, nil
}

func (s *CollectionService) RemoveNote(ctx context.Context, owner, id int, noteID string) error {
	return s.withLock(ctx, collectionKey(id), func() error {
		c, err := s.loadOwned(ctx, owner, id)
		if err != nil {
			return err
		}
		if err := s.repo.DeleteNote(ctx, id, noteID); err != nil {
			return err
		}

		remaining := c.Notes[:0:0]
		for _, n := range c.Notes {
			if n.ID != noteID {
				remaining = append(remaining, n)
			}
		}
		c.Notes = remaining
		c.OrderTokens = EncodeOrder(c.Ordered())
		return s.repo.UpdateCollection(ctx, *c)
	})
}

// SaveOrder persists a client's reordering of the collection. items must hold
// exactly the collection's passages and notes. Verse text the client sends is
// kept even when the store does not echo it back.
func (s *CollectionService) SaveOrder(ctx context.Context, owner, id int, items []Item) (SaveResult, error) {
	var res SaveResult
	err := s.withLock(ctx, collectionKey(id), func() error {
		c, err := s.loadOwned(ctx, owner, id)
		if err != nil {
			return err
		}

		session := NewSession(*c, s.repo, s.logger)
		if err := session.Reorder(adoptStored(*c, items)); err != nil {
			return err
		}
		if !session.CanSave() {
			res = SaveResult{Collection: *c, Items: session.Items()}
			return nil
		}

		res, err = session.Save(ctx)
		return err
	})

	switch {
	case err != nil:
		s.metrics.Saves.WithLabelValues("failed").Inc()
	case res.Stale:
		s.metrics.Saves.WithLabelValues("stale").Inc()
	default:
		s.metrics.Saves.WithLabelValues("saved").Inc()
	}
	return res, err
}

// Publish makes the collection public. Duplicate passages are folded first so
// nobody imports them.
func (s *CollectionService) Publish(ctx context.Context, owner, id int) (View, error) {
	var view View
	err := s.withLock(ctx, collectionKey(id), func() error {
		c, err := s.loadOwned(ctx, owner, id)
		if err != nil {
			return err
		}

		c.Groups = s.merge(c.Groups, nil)
		c.OrderTokens = EncodeOrder(c.Ordered())
		c.Visibility = VisibilityPublic

		if err := s.repo.SaveCollection(ctx, *c); err != nil {
			return err
		}
		view = NewView(*c)
		return nil
	})
	return view, err
}

// Import copies a published collection into owner's library. Notes are not
// copied and progress starts over.
func (s *CollectionService) Import(ctx context.Context, owner, sourceID int) (*Collection, error) {
	var created *Collection
	err := s.withLock(ctx, ownerKey(owner), func() error {
		var err error
		created, err = s.importFrom(ctx, owner, sourceID)
		return err
	})
	return created, err
}

func (s *CollectionService) importFrom(ctx context.Context, owner, sourceID int) (*Collection, error) {
	src, err := s.repo.FetchCollection(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if src.Visibility != VisibilityPublic {
		return nil, ErrNotPublished
	}

	existing, err := s.repo.ListOwnedCollections(ctx, owner)
	if err != nil {
		return nil, err
	}

	prepared, err := PrepareImport(ImportSource{
		Title:       src.Title,
		Author:      src.Author,
		Groups:      src.Groups,
		OrderTokens: src.OrderTokens,
	}, owner, existing, s.limits)
	if err != nil {
		var rej *RejectedError
		if errors.As(err, &rej) {
			s.metrics.Imports.WithLabelValues("rejected").Inc()
			s.logger.Info("import rejected",
				zap.Int("owner", owner), zap.Int("source_id", sourceID), zap.String("reason", rej.Reason))
		}
		return nil, err
	}

	created, err := s.repo.CreateCollection(ctx, Collection{
		Title:       CopyTitle(src.Title),
		Author:      src.Author,
		Owner:       owner,
		Visibility:  VisibilityPrivate,
		OrderTokens: prepared.OrderTokens,
		Groups:      prepared.Groups,
	})
	if err != nil {
		s.metrics.Imports.WithLabelValues("failed").Inc()
		return nil, err
	}
	s.metrics.Imports.WithLabelValues("imported").Inc()
	return created, nil
}

func (s *CollectionService) loadOwned(ctx context.Context, owner, id int) (*Collection, error) {
	c, err := s.repo.FetchCollection(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Owner != owner {
		return nil, ErrForbidden
	}
	return c, nil
}

func collectionKey(id int) string { return "collection:" + strconv.Itoa(id) }

// ownerKey serializes the list-then-create sequence that enforces the
// per-user collection cap.
func ownerKey(owner int) string { return "owner:" + strconv.Itoa(owner) }

func (s *CollectionService) withLock(ctx context.Context, key string, fn func() error) error {
	release, err := s.locker.Acquire(ctx, key)
	if err != nil {
		if errors.Is(err, savelock.ErrLocked) {
			return ErrSaveInFlight
		}
		return err
	}
	defer release()
	return fn()
}

func (s *CollectionService) merge(a, b []VerseGroup) []VerseGroup {
	merged := Merge(a, b)
	if folded := len(a) + len(b) - len(merged); folded > 0 {
		s.metrics.MergedDupes.Add(float64(folded))
	}
	return merged
}

func ownedBy(groups []VerseGroup, owner int) []VerseGroup {
	out := make([]VerseGroup, len(groups))
	for i, g := range groups {
		g.ID = 0
		g.Owner = owner
		out[i] = g
	}
	return out
}

// adoptStored swaps client items for the stored items with the same key so
// server-side fields survive the round trip; only verse text is taken from
// the client. Unknown items are left as sent and fail the reorder check.
func adoptStored(c Collection, items []Item) []Item {
	stored := make(map[string]Item, len(c.Groups)+len(c.Notes))
	for _, it := range c.Items() {
		stored[it.OrderKey().lookup()] = it
	}

	out := make([]Item, len(items))
	for i, it := range items {
		st, ok := stored[it.OrderKey().lookup()]
		switch {
		case !ok:
			out[i] = it
		case st.Group != nil && it.Group != nil:
			out[i] = GroupItem(PreserveText([]VerseGroup{*st.Group}, []VerseGroup{*it.Group})[0])
		default:
			out[i] = st
		}
	}
	return out
}
