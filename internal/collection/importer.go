package collection

import (
	"strings"
)

const copySuffix = "(Copy)"

// Limits are the per-user business limits. Zero means unlimited.
type Limits struct {
	MaxGroupsPerCollection int
	MaxCollectionsPerUser  int
}

func (l Limits) atCollectionLimit(owned int) bool {
	return l.MaxCollectionsPerUser > 0 && owned >= l.MaxCollectionsPerUser
}

func (l Limits) tooManyGroups(n int) bool {
	return l.MaxGroupsPerCollection > 0 && n > l.MaxGroupsPerCollection
}

// ImportSource is the published collection being copied.
type ImportSource struct {
	Title       string
	Author      string
	Groups      []VerseGroup
	OrderTokens string
}

type ImportResult struct {
	Groups      []VerseGroup
	OrderTokens string
}

// PrepareImport builds the verse groups and verse_order for a copy of src
// owned by targetOwner. Ownership, ids, progress and timestamps are reset.
// The import is rejected when it would exceed limits or when existing
// already holds a copy of src.
func PrepareImport(src ImportSource, targetOwner int, existing []Collection, limits Limits) (ImportResult, error) {
	if limits.atCollectionLimit(len(existing)) {
		return ImportResult{}, rejected(ErrLimitExceeded, ReasonCollectionLimit)
	}
	for _, c := range existing {
		if isSameCollection(src, c) {
			return ImportResult{}, rejected(ErrImportDuplicate, ReasonAlreadySaved)
		}
	}

	stripped := make([]VerseGroup, 0, len(src.Groups))
	for _, g := range src.Groups {
		stripped = append(stripped, VerseGroup{
			Reference: g.Reference,
			Verses:    g.Verses,
			Owner:     targetOwner,
		})
	}
	groups := Merge(stripped, nil)

	if limits.tooManyGroups(len(groups)) {
		return ImportResult{}, rejected(ErrLimitExceeded, ReasonTooManyPassages)
	}

	items := make([]Item, len(groups))
	for i := range groups {
		items[i] = GroupItem(groups[i])
	}
	ordered := Reconcile(items, strings.Join(uniqueTokens(src.OrderTokens), orderSeparator))

	return ImportResult{
		Groups:      Groups(ordered),
		OrderTokens: EncodeOrder(ordered),
	}, nil
}

// CopyTitle is the title given to an imported collection.
func CopyTitle(title string) string {
	return strings.TrimSpace(title) + " " + copySuffix
}

func isSameCollection(src ImportSource, c Collection) bool {
	if strings.EqualFold(strings.TrimSpace(src.Author), strings.TrimSpace(c.Author)) &&
		strings.EqualFold(baseTitle(src.Title), baseTitle(c.Title)) {
		return true
	}
	srcOrder := strings.Join(DecodeOrder(src.OrderTokens), orderSeparator)
	return srcOrder != "" && srcOrder == strings.Join(DecodeOrder(c.OrderTokens), orderSeparator)
}

func baseTitle(title string) string {
	t := strings.TrimSpace(title)
	if len(t) >= len(copySuffix) && strings.EqualFold(t[len(t)-len(copySuffix):], copySuffix) {
		t = strings.TrimSpace(t[:len(t)-len(copySuffix)])
	}
	return t
}
