package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/tradefolio/src/models"
)

// Column names of the brokerage export this engine ingests.
const (
	colDate       = "Date"
	colType       = "Type"
	colSubType    = "Sub Type"
	colAction     = "Action"
	colSymbol     = "Symbol"
	colInstrument = "Instrument Type"
	colDesc       = "Description"
	colValue      = "Value"
	colQuantity   = "Quantity"
	colAvgPrice   = "Average Price"
	colComm       = "Commissions"
	colFees       = "Fees"
	colUnderlying = "Underlying Symbol"
	colCallOrPut  = "Call or Put"
)

// typeMoneyMovement marks cash events that are not inventory events and are
// excluded upstream of the normalizer.
const typeMoneyMovement = "Money Movement"

const typeReceiveDeliver = "Receive Deliver"

var dateLayouts = []string{
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05-07:00",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"1/2/06",
}

// indexOptionRoots are cash-settled index-style contracts whose
// Receive Deliver rows settle in cash rather than shares.
var indexOptionRoots = map[string]bool{
	"SPX": true, "SPXW": true, "XSP": true,
	"NDX": true, "NDXP": true,
	"RUT": true, "RUTW": true,
	"VIX": true, "VIXW": true,
}

// normalizeLeg cleans one raw export row into a TradeLeg. A nil diagnostic
// means the leg was accepted; otherwise the row is dropped with the reason.
func normalizeLeg(raw models.RawLeg, account string) (models.TradeLeg, *models.Diagnostic) {
	symbol := strings.TrimSpace(raw[colSymbol])

	date, err := parseLegDate(raw[colDate])
	if err != nil {
		return models.TradeLeg{}, &models.Diagnostic{
			Kind:    models.DiagRejectedRow,
			Symbol:  symbol,
			Date:    strings.TrimSpace(raw[colDate]),
			Message: fmt.Sprintf("unparsable date %q", raw[colDate]),
		}
	}

	quantity, err := parseSignedNumber(raw[colQuantity])
	if err != nil {
		return models.TradeLeg{}, rejectLeg(raw, symbol, fmt.Sprintf("unparsable quantity %q", raw[colQuantity]))
	}
	avgPrice, err := parseSignedNumber(raw[colAvgPrice])
	if err != nil {
		return models.TradeLeg{}, rejectLeg(raw, symbol, fmt.Sprintf("unparsable average price %q", raw[colAvgPrice]))
	}

	// Commissions and fees tolerate blank or junk values; the leg survives.
	commissions, err := parseSignedNumber(raw[colComm])
	if err != nil {
		commissions = decimal.Zero
	}
	fees, err := parseSignedNumber(raw[colFees])
	if err != nil {
		fees = decimal.Zero
	}

	leg := models.TradeLeg{
		Date:             date,
		Symbol:           symbol,
		UnderlyingSymbol: strings.TrimSpace(raw[colUnderlying]),
		InstrumentType:   mapInstrumentType(raw[colInstrument]),
		CallOrPut:        strings.ToUpper(strings.TrimSpace(raw[colCallOrPut])),
		Quantity:         quantity.Abs(),
		AveragePrice:     avgPrice,
		Commissions:      commissions.Abs(),
		Fees:             fees.Abs(),
		Account:          account,
		SourceType:       strings.TrimSpace(raw[colType]),
		Description:      strings.TrimSpace(raw[colDesc]),
	}

	if leg.Symbol == "" {
		return models.TradeLeg{}, rejectLeg(raw, symbol, "missing symbol")
	}

	action := strings.TrimSpace(raw[colAction])
	if action == "" && leg.SourceType == typeReceiveDeliver && !isClosingDelivery(leg) {
		return models.TradeLeg{}, &models.Diagnostic{
			Kind:    models.DiagUnclassifiedAction,
			Symbol:  leg.Symbol,
			Date:    leg.Date.Format("2006-01-02"),
			Message: fmt.Sprintf("receive/deliver row not recognized as settlement, assignment or exercise: %q", leg.Description),
		}
	}
	if action == "" && leg.SourceType != typeReceiveDeliver {
		return models.TradeLeg{}, &models.Diagnostic{
			Kind:    models.DiagUnclassifiedAction,
			Symbol:  leg.Symbol,
			Date:    leg.Date.Format("2006-01-02"),
			Message: "missing action on non receive/deliver row",
		}
	}

	normalizeInstrumentFields(&leg, action)

	leg.ActionNorm = classifyEffect(leg)
	if leg.ActionNorm == "" {
		return models.TradeLeg{}, &models.Diagnostic{
			Kind:    models.DiagUnclassifiedAction,
			Symbol:  leg.Symbol,
			Date:    leg.Date.Format("2006-01-02"),
			Message: fmt.Sprintf("unrecognized action %q", action),
		}
	}
	return leg, nil
}

func rejectLeg(raw models.RawLeg, symbol, msg string) *models.Diagnostic {
	return &models.Diagnostic{
		Kind:    models.DiagRejectedRow,
		Symbol:  symbol,
		Date:    strings.TrimSpace(raw[colDate]),
		Message: msg,
	}
}

// normalizeInstrumentFields applies the per-instrument cleanups: option
// symbols lose internal whitespace, actions collapse to the closed enum, and
// futures derive the underlying from the contract-month code.
func normalizeInstrumentFields(leg *models.TradeLeg, rawAction string) {
	switch leg.InstrumentType {
	case models.InstrumentEquityOption, models.InstrumentFutureOption:
		leg.Symbol = stripWhitespace(leg.Symbol)
		leg.Action = collapseOptionAction(rawAction)
		if leg.InstrumentType == models.InstrumentFutureOption && len(leg.UnderlyingSymbol) > 2 {
			leg.UnderlyingSymbol = leg.UnderlyingSymbol[:len(leg.UnderlyingSymbol)-2]
		}
	case models.InstrumentFuture:
		leg.Action = collapseEquityAction(rawAction)
		leg.UnderlyingSymbol = futureUnderlying(leg.Symbol)
	case models.InstrumentEquity:
		leg.Action = collapseEquityAction(rawAction)
		if leg.UnderlyingSymbol == "" {
			leg.UnderlyingSymbol = leg.Symbol
		}
	default:
		if a := collapseOptionAction(rawAction); a != "" {
			leg.Action = a
		} else {
			leg.Action = collapseEquityAction(rawAction)
		}
	}
	if leg.UnderlyingSymbol == "" {
		leg.UnderlyingSymbol = leg.Symbol
	}
}

// collapseOptionAction tolerates broker formatting noise ("Buy to Open",
// "BUY_TO_OPEN", "RECEIVE_DELIVER,BUY_TO_CLOSE") around the four option
// actions.
func collapseOptionAction(action string) models.Action {
	up := strings.ToUpper(action)
	up = strings.ReplaceAll(up, " ", "_")
	up = strings.ReplaceAll(up, "-", "_")
	switch {
	case strings.Contains(up, "BUY_TO_OPEN"):
		return models.ActionBuyToOpen
	case strings.Contains(up, "SELL_TO_OPEN"):
		return models.ActionSellToOpen
	case strings.Contains(up, "BUY_TO_CLOSE"):
		return models.ActionBuyToClose
	case strings.Contains(up, "SELL_TO_CLOSE"):
		return models.ActionSellToClose
	}
	return ""
}

func collapseEquityAction(action string) models.Action {
	// Open/close variants appear on equities too (broker noise); honor them
	// before collapsing to plain Buy/Sell.
	if a := collapseOptionAction(action); a != "" {
		return a
	}
	up := strings.ToUpper(action)
	switch {
	case strings.HasPrefix(up, "BUY"):
		return models.ActionBuy
	case strings.HasPrefix(up, "SELL"):
		return models.ActionSell
	}
	return ""
}

// classifyEffect derives the OPEN/CLOSE classification per the fixed rules;
// it returns "" only for a leg whose action never resolved.
func classifyEffect(leg models.TradeLeg) models.PositionEffect {
	switch leg.Action {
	case models.ActionBuyToOpen, models.ActionSellToOpen, models.ActionBuy:
		return models.EffectOpen
	case models.ActionBuyToClose, models.ActionSellToClose, models.ActionSell:
		return models.EffectClose
	}
	// Settlement, assignment and exercise deliveries close positions even
	// though the export carries no explicit action.
	if leg.SourceType == typeReceiveDeliver {
		return models.EffectClose
	}
	return ""
}

// isClosingDelivery decides whether an action-less Receive Deliver row is a
// position-closing event: cash settlement for index-style contracts,
// assignment/expiration/exercise for everything else.
func isClosingDelivery(leg models.TradeLeg) bool {
	desc := strings.ToLower(leg.Description)
	if isIndexStyleSymbol(leg.Symbol) {
		return strings.Contains(desc, "cash settle")
	}
	return strings.Contains(desc, "assign") ||
		strings.Contains(desc, "expir") ||
		strings.Contains(desc, "exercise")
}

func isIndexStyleSymbol(symbol string) bool {
	root := symbol
	if i := strings.IndexAny(symbol, " \t"); i >= 0 {
		root = symbol[:i]
	}
	return indexOptionRoots[strings.ToUpper(root)]
}

// futureUnderlying strips the contract month/year code: the trailing 2
// characters, or 3 when the raw symbol is longer than 6.
func futureUnderlying(symbol string) string {
	n := 2
	if len(symbol) > 6 {
		n = 3
	}
	if len(symbol) <= n {
		return symbol
	}
	return symbol[:len(symbol)-n]
}

func mapInstrumentType(s string) models.InstrumentType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "EQUITY", "STOCK":
		return models.InstrumentEquity
	case "EQUITY OPTION":
		return models.InstrumentEquityOption
	case "FUTURE":
		return models.InstrumentFuture
	case "FUTURE OPTION", "FUTURES OPTION":
		return models.InstrumentFutureOption
	}
	return models.InstrumentOther
}

// parseSignedNumber parses broker-formatted numerics: currency symbols and
// thousands separators are dropped, "(12.34)" reads as -12.34. Blank input
// is an error so callers decide between rejection and a zero default.
func parseSignedNumber(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty numeric field")
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer("$", "", "€", "", ",", "", " ", "").Replace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

func parseLegDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date field")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("no known layout matches %q", s)
}

func stripWhitespace(s string) string {
	return strings.Join(strings.Fields(s), "")
}
