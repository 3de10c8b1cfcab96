package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/username/tradefolio/src/models"
)

// matchedSet collects matched trades with set semantics over MatchedTrade.Key,
// so re-running the same batch cannot emit indistinguishable duplicates.
type matchedSet struct {
	seen   map[string]bool
	trades []models.MatchedTrade
}

func newMatchedSet() *matchedSet {
	return &matchedSet{seen: make(map[string]bool)}
}

func (s *matchedSet) add(t models.MatchedTrade) {
	key := t.Key()
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	s.trades = append(s.trades, t)
}

// matchCloses consumes closing legs in ascending date order, draining the
// oldest open lot(s) of each contract until the closing quantity is
// exhausted. Each iteration strictly decreases either the unmatched close
// quantity or the queue length, so the loop always terminates.
func matchCloses(book *lotBook, closes []models.TradeLeg) ([]models.MatchedTrade, []models.Diagnostic) {
	set := newMatchedSet()
	var diags []models.Diagnostic

	for _, closeLeg := range closes {
		key := closeLeg.ContractKey()
		remaining := closeLeg.Quantity.Abs()

		for remaining.GreaterThan(epsilon) {
			lot := book.oldest(key)
			if lot == nil {
				// No open lot left for this contract: the excess close is a
				// data error or predates the tracked history. Discard it,
				// never synthesize a negative lot.
				diags = append(diags, models.Diagnostic{
					Kind:    models.DiagUnmatchedClose,
					Symbol:  closeLeg.Symbol,
					Date:    closeLeg.Date.Format("2006-01-02"),
					Message: fmt.Sprintf("close quantity %s has no matching open lot", remaining),
				})
				break
			}

			match := decimal.Min(lot.RemainingQuantity, remaining)

			// Buy prices are stored negative and sell prices positive, so the
			// sum prices the round trip for long and short alike. One formula,
			// every instrument type.
			profitLoss := lot.AveragePrice.Add(closeLeg.AveragePrice).Mul(match)

			set.add(models.MatchedTrade{
				OpenDate:         lot.Date,
				CloseDate:        closeLeg.Date,
				Symbol:           closeLeg.Symbol,
				UnderlyingSymbol: closeLeg.UnderlyingSymbol,
				CallOrPut:        closeLeg.CallOrPut,
				Quantity:         match,
				OpenPrice:        lot.AveragePrice,
				ClosePrice:       closeLeg.AveragePrice,
				ProfitLoss:       profitLoss,
				Commissions:      prorate(lot.Commissions, match, lot.OriginalQuantity).Add(prorate(closeLeg.Commissions, match, closeLeg.Quantity)),
				Fees:             prorate(lot.Fees, match, lot.OriginalQuantity).Add(prorate(closeLeg.Fees, match, closeLeg.Quantity)),
				Account:          closeLeg.Account,
			})

			lot.RemainingQuantity = lot.RemainingQuantity.Sub(match)
			remaining = remaining.Sub(match)
			if !lot.RemainingQuantity.GreaterThan(epsilon) {
				book.popOldest(key)
			}
		}
	}
	return set.trades, diags
}

// prorate attributes a leg's fixed per-fill amount to one matched slice in
// proportion to the quantity consumed, so a leg split across several matches
// is never double-counted.
func prorate(total, matched, original decimal.Decimal) decimal.Decimal {
	if !original.GreaterThan(decimal.Zero) {
		return decimal.Zero
	}
	if matched.Equal(original) {
		return total
	}
	return total.Mul(matched).Div(original)
}
