package engine

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/username/tradefolio/src/models"
)

// epsilon bounds the residual quantity treated as fully consumed.
var epsilon = decimal.New(1, -6)

// lotBook holds, per contract key, the FIFO queue of open lots for one
// matching run. Queues are ordered by insertion: carried-over lots first
// (strictly older), then the batch's opening legs in ascending date order.
// The book is constructed per invocation and never shared.
type lotBook struct {
	queues map[string][]*models.OpenLot
}

func newLotBook() *lotBook {
	return &lotBook{queues: make(map[string][]*models.OpenLot)}
}

// seed inserts previously-open lots carried over from a prior run. Lots with
// nothing remaining are ignored. Each lot is keyed by its own contract key,
// recomputed from its leg fields.
func (b *lotBook) seed(carryOver []models.OpenLot) {
	for _, lot := range carryOver {
		if !lot.RemainingQuantity.GreaterThan(decimal.Zero) {
			continue
		}
		lot := lot
		lot.CarriedOver = true
		if lot.OriginalQuantity.IsZero() {
			lot.OriginalQuantity = lot.RemainingQuantity
		}
		key := lot.ContractKey()
		b.queues[key] = append(b.queues[key], &lot)
	}
}

// open appends a new lot for an opening leg of the current batch.
func (b *lotBook) open(leg models.TradeLeg) {
	lot := &models.OpenLot{
		TradeLeg:          leg,
		RemainingQuantity: leg.Quantity,
		OriginalQuantity:  leg.Quantity,
	}
	key := leg.ContractKey()
	b.queues[key] = append(b.queues[key], lot)
}

// oldest returns the head of a contract's queue, or nil when it is empty.
func (b *lotBook) oldest(key string) *models.OpenLot {
	q := b.queues[key]
	if len(q) == 0 {
		return nil
	}
	return q[0]
}

// popOldest removes a drained lot from the head of a contract's queue.
func (b *lotBook) popOldest(key string) {
	q := b.queues[key]
	if len(q) == 0 {
		return
	}
	if len(q) == 1 {
		delete(b.queues, key)
		return
	}
	b.queues[key] = q[1:]
}

// remaining returns every lot still carrying quantity above epsilon, in
// deterministic (contract key, queue) order, as the carry-over candidates for
// the next run.
func (b *lotBook) remaining() []models.OpenLot {
	keys := make([]string, 0, len(b.queues))
	for key := range b.queues {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var lots []models.OpenLot
	for _, key := range keys {
		for _, lot := range b.queues[key] {
			if lot.RemainingQuantity.GreaterThan(epsilon) {
				lots = append(lots, *lot)
			}
		}
	}
	return lots
}
