package engine

import (
	"fmt"
	"time"

	"github.com/username/tradefolio/src/models"
)

// dedupeLegs drops legs that exactly duplicate an already-accepted leg along
// (date, symbol, action, quantity, average price, account).
//
// Brokers legitimately report several identical fills for one contract on one
// day; to keep those, closing-side legs that collide with a seen key are
// retained under a monotonically increasing occurrence suffix. A colliding
// leg at occurrence zero is a true export glitch and is dropped.
func dedupeLegs(legs []models.TradeLeg) ([]models.TradeLeg, []models.Diagnostic) {
	seen := make(map[string]bool, len(legs))
	occurrences := make(map[string]int)

	var kept []models.TradeLeg
	var diags []models.Diagnostic
	for _, leg := range legs {
		key := dedupKey(leg)
		if leg.ActionNorm == models.EffectClose {
			if n := occurrences[key]; n > 0 {
				key = fmt.Sprintf("%s#%d", key, n)
			}
			occurrences[dedupKey(leg)]++
		}
		if seen[key] {
			diags = append(diags, models.Diagnostic{
				Kind:    models.DiagDuplicateRow,
				Symbol:  leg.Symbol,
				Date:    leg.Date.Format("2006-01-02"),
				Message: fmt.Sprintf("duplicate %s leg dropped: qty %s @ %s", leg.Action, leg.Quantity, leg.AveragePrice),
			})
			continue
		}
		seen[key] = true
		kept = append(kept, leg)
	}
	return kept, diags
}

func dedupKey(leg models.TradeLeg) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		leg.Date.UTC().Format(time.RFC3339),
		leg.Symbol,
		leg.Action,
		leg.Quantity.String(),
		leg.AveragePrice.String(),
		leg.Account,
	)
}
