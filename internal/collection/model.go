package collection

import "time"

const (
	VisibilityPrivate = "private"
	VisibilityPublic  = "public"
)

type Verse struct {
	Reference string `json:"reference"`
	Text      string `json:"text"`
	Number    *int   `json:"number,omitempty"`
}

// VerseGroup is a passage of one or more verses saved as a single collection item.
type VerseGroup struct {
	ID             int        `json:"id,omitempty"`
	Reference      string     `json:"reference" validate:"required"`
	Verses         []Verse    `json:"verses"`
	Owner          int        `json:"owner,omitempty"`
	Progress       int        `json:"progress,omitempty"`
	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at,omitempty"`
}

type Note struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type Collection struct {
	ID          int          `json:"id,omitempty"`
	Title       string       `json:"title"`
	Author      string       `json:"author"`
	Owner       int          `json:"owner"`
	Visibility  string       `json:"visibility"`
	OrderTokens string       `json:"verse_order"`
	Groups      []VerseGroup `json:"verse_groups"`
	Notes       []Note       `json:"notes"`
	CreatedAt   time.Time    `json:"created_at,omitempty"`
	UpdatedAt   time.Time    `json:"updated_at,omitempty"`
}

// Items returns the collection's groups followed by its notes, unordered.
func (c Collection) Items() []Item {
	items := make([]Item, 0, len(c.Groups)+len(c.Notes))
	for i := range c.Groups {
		items = append(items, GroupItem(c.Groups[i]))
	}
	for i := range c.Notes {
		items = append(items, NoteItem(c.Notes[i]))
	}
	return items
}

// Ordered returns the collection's items in verse_order.
func (c Collection) Ordered() []Item {
	return Reconcile(c.Items(), c.OrderTokens)
}

// Item holds exactly one of Group or Note.
type Item struct {
	Group *VerseGroup `json:"verse_group,omitempty"`
	Note  *Note       `json:"note,omitempty"`
}

func GroupItem(g VerseGroup) Item { return Item{Group: &g} }

func NoteItem(n Note) Item { return Item{Note: &n} }

func (i Item) IsNote() bool { return i.Note != nil }

// OrderKey implements Orderable. Groups match case-insensitively on their
// normalized reference, notes match exactly on their id.
func (i Item) OrderKey() OrderKey {
	if i.Note != nil {
		return OrderKey{Token: i.Note.ID}
	}
	if i.Group != nil {
		return OrderKey{Token: NormalizeReference(i.Group.Reference), FoldCase: true}
	}
	return OrderKey{}
}

// Groups extracts the verse groups from items, preserving order.
func Groups(items []Item) []VerseGroup {
	var groups []VerseGroup
	for _, it := range items {
		if it.Group != nil {
			groups = append(groups, *it.Group)
		}
	}
	return groups
}

// View is the read model returned to clients: metadata plus ordered items.
type View struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Owner       int    `json:"owner"`
	Visibility  string `json:"visibility"`
	OrderTokens string `json:"verse_order"`
	Items       []Item `json:"items"`
}

func NewView(c Collection) View {
	items := c.Ordered()
	if items == nil {
		items = []Item{}
	}
	return View{
		ID:          c.ID,
		Title:       c.Title,
		Author:      c.Author,
		Owner:       c.Owner,
		Visibility:  c.Visibility,
		OrderTokens: c.OrderTokens,
		Items:       items,
	}
}
