package dedup

import (
	"strings"
	"unicode"
)

// AuthorJaccard returns |A∩B| / |A∪B| over the lower-cased, trimmed author
// sets of a and b. Blank names are ignored. Two empty sets score 0.
func AuthorJaccard(a, b []string) float64 {
	setA := authorSet(a)
	setB := authorSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	inter := 0
	for name := range setA {
		if _, ok := setB[name]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

// NormalizeName normalizes an author name for loose comparison:
//   - Converts to lowercase
//   - Reorders "Last, First" to "First Last"
//   - Drops every rune that is neither a letter nor a space
//   - Collapses runs of spaces and trims the result
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}

	if idx := strings.Index(name, ","); idx >= 0 {
		last := strings.TrimSpace(name[:idx])
		first := strings.TrimSpace(name[idx+1:])
		if first != "" {
			name = first + " " + last
		} else {
			name = last
		}
	}

	var sb strings.Builder
	sb.Grow(len(name))
	prevSpace := false

	for _, r := range name {
		if unicode.IsLetter(r) {
			sb.WriteRune(r)
			prevSpace = false
		} else if unicode.IsSpace(r) {
			if !prevSpace && sb.Len() > 0 {
				sb.WriteRune(' ')
				prevSpace = true
			}
		}
	}

	return strings.TrimRight(sb.String(), " ")
}

func authorSet(authors []string) map[string]struct{} {
	set := make(map[string]struct{}, len(authors))
	for _, a := range authors {
		if name := strings.ToLower(strings.TrimSpace(a)); name != "" {
			set[name] = struct{}{}
		}
	}
	return set
}
