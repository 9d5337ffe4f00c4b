package fields

import (
	"sort"
	"strings"

	"cubitai/pkg/core/dataset"
)

// Resolve matches a canonical field key against a dataset's column names.
// Exact matches (lowercased header equals a keyword) always win; only when no
// exact match exists does it fall back to substring matching in column order.
// The two phases are strictly ordered so a later exact candidate never loses
// to an earlier accidental substring hit. Returns ("", false) when nothing
// matches.
//
// Resolution is computed fresh per request; the column set varies per user.
func Resolve(columns []string, key string) (string, bool) {
	return matchKeywords(columns, Lookup(key).Keywords)
}

// ResolveAll resolves every registered canonical field against one column set.
// Unresolved fields are simply absent from the result.
func ResolveAll(columns []string) map[string]string {
	resolved := make(map[string]string)
	for key := range Registry {
		if col, ok := Resolve(columns, key); ok {
			resolved[key] = col
		}
	}
	return resolved
}

// FindValueByKeywords looks up a value in a single record whose key matches
// any keyword, exact first and substring second, the same policy as Resolve
// applied to one record's keys. Used by the ranking reducer where records may
// not share a uniform column set.
func FindValueByKeywords(rec dataset.Record, keywords []string) (string, bool) {
	lowerKeys := make(map[string]string, len(rec))
	keyOrder := make([]string, 0, len(rec))
	for k := range rec {
		lowerKeys[strings.ToLower(k)] = k
		keyOrder = append(keyOrder, k)
	}
	// Record keys carry no order of their own; scan them sorted so repeated
	// runs over the same record agree.
	sort.Strings(keyOrder)

	// Exact match first
	for _, kw := range keywords {
		if orig, ok := lowerKeys[strings.ToLower(kw)]; ok {
			return rec[orig], true
		}
	}

	// Partial match next
	for _, k := range keyOrder {
		kl := strings.ToLower(k)
		for _, kw := range keywords {
			if strings.Contains(kl, strings.ToLower(kw)) {
				return rec[k], true
			}
		}
	}
	return "", false
}

// MatchesKeywords reports whether any header token matches the keyword family,
// exact or substring. Used by plausibility pre-checks.
func MatchesKeywords(columns []string, keywords []string) bool {
	_, ok := matchKeywords(columns, keywords)
	return ok
}

func matchKeywords(columns []string, keywords []string) (string, bool) {
	if len(keywords) == 0 {
		return "", false
	}

	lowered := make([]string, len(columns))
	for i, c := range columns {
		lowered[i] = strings.ToLower(c)
	}

	// Phase 1: exact match over all columns
	for i, lc := range lowered {
		for _, kw := range keywords {
			if lc == strings.ToLower(kw) {
				return columns[i], true
			}
		}
	}

	// Phase 2: substring match in column order
	for i, lc := range lowered {
		for _, kw := range keywords {
			if strings.Contains(lc, strings.ToLower(kw)) {
				return columns[i], true
			}
		}
	}
	return "", false
}
