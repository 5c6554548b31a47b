// Package dedup collapses duplicate papers returned by different providers.
//
// Two papers are the same work when they share a DOI; papers without a DOI
// are compared on a truncated title and author prefix.
package dedup

import (
	"strings"

	"github.com/helixir/scholar-aggregator/internal/domain"
)

const (
	titleKeyRunes  = 50
	authorKeyRunes = 30
)

// Key derives the identity key of a paper: its lower-cased DOI when present,
// otherwise the first 50 runes of the title and the first 30 runes of the
// space-joined author list, separated by "|".
func Key(p *domain.Paper) string {
	if doi := strings.ToLower(strings.TrimSpace(p.DOI)); doi != "" {
		return doi
	}
	title := truncateRunes(strings.ToLower(strings.TrimSpace(p.Title)), titleKeyRunes)
	authors := truncateRunes(strings.ToLower(strings.TrimSpace(strings.Join(p.Authors, " "))), authorKeyRunes)
	return title + "|" + authors
}

// Deduplicate returns papers with later duplicates removed. The first
// occurrence of each key wins and relative order is preserved. Nil entries
// are dropped. Applying it twice changes nothing.
func Deduplicate(papers []*domain.Paper) []*domain.Paper {
	seen := make(map[string]struct{}, len(papers))
	out := make([]*domain.Paper, 0, len(papers))
	for _, p := range papers {
		if p == nil {
			continue
		}
		key := Key(p)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Count reports how many entries Deduplicate would remove.
func Count(papers []*domain.Paper) int {
	return len(papers) - len(Deduplicate(papers))
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
