package collection

import "strings"

// NormalizeReference trims s and collapses internal whitespace runs to a single space.
func NormalizeReference(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// referenceKey is the comparison key for group and verse references.
func referenceKey(s string) string {
	return strings.ToLower(NormalizeReference(s))
}

// Normalize canonicalizes a verse group. The reference is whitespace-normalized
// (casing kept) and duplicate verses are dropped, first occurrence wins.
func Normalize(g VerseGroup) VerseGroup {
	g.Reference = NormalizeReference(g.Reference)
	g.Verses = dedupeVerses(g.Verses)
	return g
}

func dedupeVerses(verses []Verse) []Verse {
	if len(verses) == 0 {
		return []Verse{}
	}
	seen := make(map[string]struct{}, len(verses))
	out := make([]Verse, 0, len(verses))
	for _, v := range verses {
		key := referenceKey(v.Reference)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		v.Reference = strings.TrimSpace(v.Reference)
		out = append(out, v)
	}
	return out
}
