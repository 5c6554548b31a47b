package search

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// maxExpansions caps the variants added to the original query.
const maxExpansions = 3

type substitution struct {
	term         string
	pattern      *regexp.Regexp
	replacements []string
}

func newSubstitution(term string, replacements ...string) substitution {
	return substitution{
		term:         term,
		pattern:      regexp.MustCompile(`(?i)` + regexp.QuoteMeta(term)),
		replacements: replacements,
	}
}

// substitutions is scanned in order; every matching entry contributes all
// of its replacements before the variant list is capped.
var substitutions = []substitution{
	newSubstitution("machine learning", "ML", "artificial intelligence", "neural networks"),
	newSubstitution("neural network", "deep learning", "neural net", "ANN"),
	newSubstitution("climate change", "global warming", "climate crisis"),
}

// Expander widens a query into a bounded set of variants.
type Expander struct {
	// Now supplies the current year for year-suffixed variants. Defaults to time.Now.
	Now func() time.Time
}

// Expand returns q followed by up to three variants when semantic is set.
// Variants come from the synonym table, then, for queries without digits,
// q suffixed with the current and previous year. Duplicates are removed
// keeping the first occurrence, so q is always first.
func (e Expander) Expand(q string, semantic bool) []string {
	if !semantic {
		return []string{q}
	}

	var variants []string
	lower := strings.ToLower(q)
	for _, s := range substitutions {
		if !strings.Contains(lower, s.term) {
			continue
		}
		for _, r := range s.replacements {
			variants = append(variants, s.pattern.ReplaceAllLiteralString(q, r))
		}
	}

	if !strings.ContainsFunc(q, unicode.IsDigit) {
		year := e.now().Year()
		variants = append(variants,
			q+" "+strconv.Itoa(year),
			q+" "+strconv.Itoa(year-1),
		)
	}

	if len(variants) > maxExpansions {
		variants = variants[:maxExpansions]
	}

	out := make([]string, 0, 1+len(variants))
	seen := make(map[string]struct{}, 1+len(variants))
	for _, v := range append([]string{q}, variants...) {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func (e Expander) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}
