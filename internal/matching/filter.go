package matching

import (
	"strconv"
	"strings"

	"investmatch/internal/models"
)

// CategoryAny is the wildcard accepted wherever a category filter applies.
const CategoryAny = "any"

// BrowseFilter is the public proposal browse predicate: category equality
// (wildcard allowed) AND requiredInvestment at most MaxInvestment.
// MaxInvestment arrives as the raw form value; anything that does not parse
// as a number means "no upper bound".
type BrowseFilter struct {
	Category      string
	MaxInvestment string
}

// FilterProposals applies the browse predicate client-side over the full
// collection. This holds only while the collection is small; past that, the
// same filter shape is served by the search index.
func FilterProposals(proposals []models.Proposal, filter BrowseFilter) []models.Proposal {
	category := strings.TrimSpace(filter.Category)
	wildcard := category == "" || strings.EqualFold(category, CategoryAny)

	threshold, bounded := parseThreshold(filter.MaxInvestment)

	out := []models.Proposal{}
	for _, p := range proposals {
		if !wildcard && string(p.Category) != category {
			continue
		}
		if bounded && p.RequiredInvestment > threshold {
			continue
		}
		out = append(out, p)
	}
	return out
}

func parseThreshold(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	threshold, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return threshold, true
}
