package engine

import (
	"sort"

	"github.com/username/tradefolio/src/models"
)

// sortMatchedTrades orders realized trades most-recently-closed first, with
// deterministic tiebreaks so identical inputs always render identically.
func sortMatchedTrades(trades []models.MatchedTrade) {
	sort.SliceStable(trades, func(i, j int) bool {
		if !trades[i].CloseDate.Equal(trades[j].CloseDate) {
			return trades[i].CloseDate.After(trades[j].CloseDate)
		}
		if !trades[i].OpenDate.Equal(trades[j].OpenDate) {
			return trades[i].OpenDate.After(trades[j].OpenDate)
		}
		return trades[i].ContractKey() < trades[j].ContractKey()
	})
}

// collectOpenLots re-exposes the book's residual lots as the next run's
// carry-over, each annotated with its carrying value.
func collectOpenLots(book *lotBook) []models.OpenLot {
	lots := book.remaining()
	for i := range lots {
		lots[i].MarketValue = lots[i].RemainingQuantity.Mul(lots[i].AveragePrice.Abs())
	}
	return lots
}
