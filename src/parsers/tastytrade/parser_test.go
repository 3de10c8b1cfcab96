package tastytrade

import (
	"strings"
	"testing"
)

func TestParseHeaderKeyedRows(t *testing.T) {
	csvData := `Date,Type,Sub Type,Action,Symbol,Instrument Type,Description,Value,Quantity,Average Price,Commissions,Fees,Underlying Symbol,Call or Put
2024-01-03T10:15:00-0500,Trade,Buy to Open,BUY_TO_OPEN,AAPL,Equity,Bought 10 AAPL @ 185.00,-1850.00,10,-185.00,-1.00,-0.10,AAPL,
2024-02-05T11:00:00-0500,Trade,Sell to Close,SELL_TO_CLOSE,AAPL,Equity,Sold 10 AAPL @ 195.00,1950.00,10,195.00,0.00,-0.12,AAPL,
`
	parser := NewParser()
	legs, err := parser.Parse(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(legs) != 2 {
		t.Fatalf("Parse() returned %d legs, want 2", len(legs))
	}
	if got := legs[0]["Action"]; got != "BUY_TO_OPEN" {
		t.Errorf("legs[0][Action] = %q, want %q", got, "BUY_TO_OPEN")
	}
	if got := legs[1]["Average Price"]; got != "195.00" {
		t.Errorf("legs[1][Average Price] = %q, want %q", got, "195.00")
	}
	if got := legs[0]["Call or Put"]; got != "" {
		t.Errorf("legs[0][Call or Put] = %q, want empty", got)
	}
}

func TestParseStripsHeaderBOM(t *testing.T) {
	csvData := "\uFEFFDate,Type,Symbol\n2024-01-03,Trade,AAPL\n"
	parser := NewParser()
	legs, err := parser.Parse(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(legs) != 1 {
		t.Fatalf("Parse() returned %d legs, want 1", len(legs))
	}
	if got := legs[0]["Date"]; got != "2024-01-03" {
		t.Errorf("legs[0][Date] = %q, want %q", got, "2024-01-03")
	}
}

func TestParseShortRow(t *testing.T) {
	csvData := "Date,Type,Symbol\n2024-01-03,Trade\n"
	parser := NewParser()
	legs, err := parser.Parse(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := legs[0]["Symbol"]; got != "" {
		t.Errorf("legs[0][Symbol] = %q, want empty for short row", got)
	}
}

func TestParseMissingHeader(t *testing.T) {
	parser := NewParser()
	if _, err := parser.Parse(strings.NewReader("")); err == nil {
		t.Error("Parse() with empty input expected error, got nil")
	}
}
