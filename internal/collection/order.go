package collection

import "strings"

const orderSeparator = ","

// OrderKey is the token an item contributes to verse_order. FoldCase items
// (verse groups) match tokens case-insensitively; the rest match exactly.
type OrderKey struct {
	Token    string
	FoldCase bool
}

func (k OrderKey) lookup() string {
	if k.FoldCase {
		return "g:" + strings.ToLower(k.Token)
	}
	return "n:" + k.Token
}

// Orderable is anything that can be placed by a verse_order string.
type Orderable interface {
	OrderKey() OrderKey
}

// EncodeOrder joins the order tokens of items with commas.
// Tokens containing a comma are not escaped and will split on decode.
func EncodeOrder[T Orderable](items []T) string {
	tokens := make([]string, 0, len(items))
	for _, it := range items {
		tokens = append(tokens, it.OrderKey().Token)
	}
	return strings.Join(tokens, orderSeparator)
}

// DecodeOrder splits a verse_order string into trimmed, non-empty tokens.
func DecodeOrder(s string) []string {
	parts := strings.Split(s, orderSeparator)
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// Reconcile orders items by the verse_order string. Items named by a token
// come first in token order; the rest follow in their original relative order.
// Tokens with no matching item are skipped.
//
// Keys are assumed unique. When two items share a key the later one is kept
// and the earlier one is dropped, so callers should Merge groups first.
func Reconcile[T Orderable](items []T, tokens string) []T {
	order := DecodeOrder(tokens)
	if len(order) == 0 {
		return append([]T(nil), items...)
	}

	index := make(map[string]int, len(items))
	for i, it := range items {
		index[it.OrderKey().lookup()] = i
	}

	out := make([]T, 0, len(items))
	placed := make([]bool, len(items))
	for _, tok := range order {
		// A token may name a group or a note; groups are tried first.
		groupKey := OrderKey{Token: NormalizeReference(tok), FoldCase: true}.lookup()
		noteKey := OrderKey{Token: tok}.lookup()
		for _, key := range []string{groupKey, noteKey} {
			i, ok := index[key]
			if !ok {
				continue
			}
			delete(index, key)
			placed[i] = true
			out = append(out, items[i])
			break
		}
	}

	for i, it := range items {
		if placed[i] {
			continue
		}
		if j, ok := index[it.OrderKey().lookup()]; ok && j == i {
			out = append(out, it)
		}
	}
	return out
}

// uniqueTokens drops empty and repeated tokens, comparing case-insensitively.
func uniqueTokens(s string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range DecodeOrder(s) {
		key := strings.ToLower(tok)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tok)
	}
	return out
}
