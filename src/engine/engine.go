// Package engine turns raw brokerage trade-execution rows plus the previous
// run's open lots into realized (matched) trades and the updated open-lot set,
// using FIFO inventory accounting per contract.
//
// One Run call is a pure transformation: it performs no I/O, holds no state
// across invocations, and either returns a complete result or an error for
// the whole batch. Row-level problems become diagnostics, not errors.
package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/username/tradefolio/src/models"
)

// ErrContractKey reports a programmer/invariant error in contract-key
// construction. The whole batch is aborted: the output is financial and must
// never be partially correct.
var ErrContractKey = errors.New("invalid contract key component")

// Result is the complete output of one matching run. MatchedTrades are
// sorted descending by close date; OpenLots are the carry-over input for the
// next run and must be persisted verbatim.
type Result struct {
	MatchedTrades  []models.MatchedTrade `json:"matched_trades"`
	OpenLots       []models.OpenLot      `json:"open_lots"`
	MoneyMovements []models.CashMovement `json:"money_movements"`
	Diagnostics    []models.Diagnostic   `json:"diagnostics"`
}

// Engine is stateless; one value can serve concurrent runs for independent
// accounts because Run shares nothing between calls.
type Engine struct{}

func New() *Engine {
	return &Engine{}
}

// Run processes one batch of raw legs against one snapshot of prior open
// lots. The account tag is attached to every leg; ownership isolation is the
// caller's concern.
func (e *Engine) Run(rawLegs []models.RawLeg, carryOver []models.OpenLot, account string) (*Result, error) {
	result := &Result{}

	var legs []models.TradeLeg
	for _, raw := range rawLegs {
		if strings.TrimSpace(raw[colType]) == typeMoneyMovement {
			result.MoneyMovements = append(result.MoneyMovements, passthroughCashMovement(raw, account))
			continue
		}
		leg, diag := normalizeLeg(raw, account)
		if diag != nil {
			result.Diagnostics = append(result.Diagnostics, *diag)
			continue
		}
		legs = append(legs, leg)
	}

	legs, dupDiags := dedupeLegs(legs)
	result.Diagnostics = append(result.Diagnostics, dupDiags...)

	for _, leg := range legs {
		if err := validateContractKey(leg); err != nil {
			return nil, err
		}
	}

	// Global ordering: FIFO depends on queues being built and drained in
	// ascending date order within each contract.
	sort.SliceStable(legs, func(i, j int) bool {
		ki, kj := legs[i].ContractKey(), legs[j].ContractKey()
		if ki != kj {
			return ki < kj
		}
		return legs[i].Date.Before(legs[j].Date)
	})

	book := newLotBook()
	book.seed(carryOver)

	var closes []models.TradeLeg
	for _, leg := range legs {
		switch leg.ActionNorm {
		case models.EffectOpen:
			book.open(leg)
		case models.EffectClose:
			closes = append(closes, leg)
		}
	}

	matched, matchDiags := matchCloses(book, closes)
	result.Diagnostics = append(result.Diagnostics, matchDiags...)

	sortMatchedTrades(matched)
	result.MatchedTrades = matched
	result.OpenLots = collectOpenLots(book)
	return result, nil
}

func validateContractKey(leg models.TradeLeg) error {
	for _, part := range []string{leg.Symbol, leg.UnderlyingSymbol, leg.CallOrPut} {
		if strings.Contains(part, models.ContractKeyDelimiter) {
			return fmt.Errorf("%w: %q contains reserved delimiter", ErrContractKey, part)
		}
	}
	return nil
}

// passthroughCashMovement carries a money-movement row through unchanged;
// cash events are not inventory events and never reach the matcher.
func passthroughCashMovement(raw models.RawLeg, account string) models.CashMovement {
	mm := models.CashMovement{
		SubType:     strings.TrimSpace(raw[colSubType]),
		Description: strings.TrimSpace(raw[colDesc]),
		Account:     account,
	}
	if date, err := parseLegDate(raw[colDate]); err == nil {
		mm.Date = date
	}
	if amount, err := parseSignedNumber(raw[colValue]); err == nil {
		mm.Amount = amount
	}
	return mm
}
