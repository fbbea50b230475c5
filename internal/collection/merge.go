package collection

// Merge combines two sets of verse groups keyed by normalized reference.
// Groups from a come first in their original order, followed by groups from b
// whose key was not already present. Every group comes out normalized;
// colliding groups keep the first group's reference casing and the union of
// their verses.
//
// Every "is this the same passage" decision in the package goes through Merge
// or MergeInto.
func Merge(a, b []VerseGroup) []VerseGroup {
	out := make([]VerseGroup, 0, len(a)+len(b))
	index := make(map[string]int, len(a)+len(b))

	add := func(g VerseGroup) {
		key := referenceKey(g.Reference)
		if i, ok := index[key]; ok {
			out[i] = MergeInto(out[i], g)
			return
		}
		index[key] = len(out)
		out = append(out, Normalize(g))
	}
	for _, g := range a {
		add(g)
	}
	for _, g := range b {
		add(g)
	}
	return out
}

// MergeInto appends incoming's verses to existing, dropping verses existing
// already has. Every other field comes from existing.
func MergeInto(existing, incoming VerseGroup) VerseGroup {
	verses := make([]Verse, 0, len(existing.Verses)+len(incoming.Verses))
	verses = append(verses, existing.Verses...)
	verses = append(verses, incoming.Verses...)

	merged := existing
	merged.Reference = NormalizeReference(existing.Reference)
	merged.Verses = dedupeVerses(verses)
	return merged
}

// SameReference reports whether two references name the same passage.
func SameReference(a, b string) bool {
	return referenceKey(a) == referenceKey(b)
}
