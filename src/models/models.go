package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RawLeg is one row of a brokerage export, keyed by column header.
// No invariants hold at this stage; fields may be missing entirely.
type RawLeg map[string]string

// InstrumentType classifies the tradable contract of a leg.
type InstrumentType string

const (
	InstrumentEquity       InstrumentType = "Equity"
	InstrumentEquityOption InstrumentType = "Equity Option"
	InstrumentFuture       InstrumentType = "Future"
	InstrumentFutureOption InstrumentType = "Future Option"
	InstrumentOther        InstrumentType = "Other"
)

// Action is the broker-reported order action, collapsed to a closed set.
type Action string

const (
	ActionBuyToOpen   Action = "BUY_TO_OPEN"
	ActionSellToOpen  Action = "SELL_TO_OPEN"
	ActionBuyToClose  Action = "BUY_TO_CLOSE"
	ActionSellToClose Action = "SELL_TO_CLOSE"
	ActionBuy         Action = "BUY"
	ActionSell        Action = "SELL"
)

// PositionEffect is the normalized open/close classification derived from
// Action, InstrumentType and the source row type. Never user-supplied.
type PositionEffect string

const (
	EffectOpen  PositionEffect = "OPEN"
	EffectClose PositionEffect = "CLOSE"
)

// ContractKeyDelimiter joins symbol, underlying and option type into a
// contract identity. It is rejected inside any of the three components.
const ContractKeyDelimiter = "|"

// TradeLeg is one normalized execution (fill) of a buy or sell.
type TradeLeg struct {
	Date             time.Time       `json:"date"`
	Symbol           string          `json:"symbol"`
	UnderlyingSymbol string          `json:"underlying_symbol"`
	InstrumentType   InstrumentType  `json:"instrument_type"`
	CallOrPut        string          `json:"call_or_put,omitempty"`
	Action           Action          `json:"action"`
	ActionNorm       PositionEffect  `json:"action_norm"`
	Quantity         decimal.Decimal `json:"quantity"`
	AveragePrice     decimal.Decimal `json:"average_price"` // signed: negative cost for buys, positive proceeds for sells
	Commissions      decimal.Decimal `json:"commissions"`
	Fees             decimal.Decimal `json:"fees"`
	Account          string          `json:"account"`
	SourceType       string          `json:"source_type,omitempty"` // raw "Type" column, e.g. "Trade", "Receive Deliver"
	Description      string          `json:"description,omitempty"`
}

// ContractKey groups legs belonging to the same tradable instrument.
func (l TradeLeg) ContractKey() string {
	return l.Symbol + ContractKeyDelimiter + l.UnderlyingSymbol + ContractKeyDelimiter + l.CallOrPut
}

// OpenLot is an opened quantity awaiting a matching close. It is owned by the
// lot book for the duration of one matching run; a lot whose remaining
// quantity reaches zero is removed from the book.
type OpenLot struct {
	TradeLeg
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	OriginalQuantity  decimal.Decimal `json:"original_quantity"`
	CarriedOver       bool            `json:"carried_over"`
	MarketValue       decimal.Decimal `json:"market_value"` // remaining * |average_price|; a carrying value, not P/L
}

// MatchedTrade is a closed (realized) position slice. Immutable once emitted.
type MatchedTrade struct {
	OpenDate         time.Time       `json:"open_date"`
	CloseDate        time.Time       `json:"close_date"`
	Symbol           string          `json:"symbol"`
	UnderlyingSymbol string          `json:"underlying_symbol"`
	CallOrPut        string          `json:"call_or_put,omitempty"`
	Quantity         decimal.Decimal `json:"quantity"`
	OpenPrice        decimal.Decimal `json:"open_price"`
	ClosePrice       decimal.Decimal `json:"close_price"`
	ProfitLoss       decimal.Decimal `json:"profit_loss"`
	Commissions      decimal.Decimal `json:"commissions"`
	Fees             decimal.Decimal `json:"fees"`
	Account          string          `json:"account"`
}

// ContractKey mirrors TradeLeg.ContractKey for the matched pair.
func (t MatchedTrade) ContractKey() string {
	return t.Symbol + ContractKeyDelimiter + t.UnderlyingSymbol + ContractKeyDelimiter + t.CallOrPut
}

// Key uniquely identifies a matched trade so two matcher passes cannot emit
// indistinguishable duplicate records.
func (t MatchedTrade) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		t.ContractKey(),
		t.OpenDate.UTC().Format(time.RFC3339),
		t.CloseDate.UTC().Format(time.RFC3339),
		t.Quantity.String(),
		t.OpenPrice.String(),
		t.ClosePrice.String(),
	)
}

// CashMovement is a non-inventory cash event (deposit, withdrawal, account
// fee). The engine passes these through untouched.
type CashMovement struct {
	Date        time.Time       `json:"date"`
	SubType     string          `json:"sub_type"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Account     string          `json:"account"`
}

// Diagnostic kinds reported by the engine.
const (
	DiagRejectedRow        = "rejected_row"
	DiagUnclassifiedAction = "unclassified_action"
	DiagDuplicateRow       = "duplicate_row"
	DiagUnmatchedClose     = "unmatched_close"
)

// Diagnostic is a non-fatal, row-level report surfaced to the caller
// alongside the matching result ("N rows skipped").
type Diagnostic struct {
	Kind    string `json:"kind"`
	Symbol  string `json:"symbol,omitempty"`
	Date    string `json:"date,omitempty"`
	Message string `json:"message"`
}
