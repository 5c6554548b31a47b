package recommend

import (
	"math"
	"strings"
	"time"

	"github.com/helixir/scholar-aggregator/internal/dedup"
)

// Enrich stamps confidence, diversity and recommended_at onto every
// recommendation in the batch.
func Enrich(recs []Recommendation, now time.Time) {
	for i := range recs {
		recs[i].Confidence = math.Min(recs[i].Score/10, 1)
		recs[i].Diversity = Diversity(recs, i)
		recs[i].RecommendedAt = now
	}
}

// Diversity is the mean of 1 - overlap between recs[i] and every other
// member of the batch, where overlap averages the author Jaccard index and
// a same-journal indicator. A singleton batch scores 1.
func Diversity(recs []Recommendation, i int) float64 {
	if len(recs) <= 1 {
		return 1
	}
	self := recs[i].Paper
	var sum float64
	for j, other := range recs {
		if j == i {
			continue
		}
		overlap := (dedup.AuthorJaccard(self.Authors, other.Authors) + sameJournal(self.Journal, other.Journal)) / 2
		sum += 1 - overlap
	}
	return sum / float64(len(recs)-1)
}

func sameJournal(a, b string) float64 {
	if a != "" && b != "" && strings.EqualFold(a, b) {
		return 1
	}
	return 0
}
