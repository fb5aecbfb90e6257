package ledger

import "github.com/JaimeStill/terra/internal/badges"

// EvaluateBadges returns, in catalog order, the badges met by totals that
// are not already held.
func EvaluateBadges(catalog *badges.Catalog, held []string, totals badges.Totals) []string {
	have := make(map[string]struct{}, len(held))
	for _, id := range held {
		have[id] = struct{}{}
	}

	earned := make([]string, 0)
	for _, d := range catalog.All() {
		if _, ok := have[d.ID]; ok {
			continue
		}
		if d.Earned(totals) {
			earned = append(earned, d.ID)
		}
	}
	return earned
}
