package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/username/tradefolio/src/models"
)

func TestParseSignedNumber(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain", "150.25", "150.25", false},
		{"negative", "-150.25", "-150.25", false},
		{"currency symbol", "$1,234.56", "1234.56", false},
		{"parenthesized negative", "(12.34)", "-12.34", false},
		{"parenthesized with currency", "($1,000.00)", "-1000", false},
		{"blank", "", "", true},
		{"whitespace only", "   ", "", true},
		{"junk", "n/a", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSignedNumber(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseSignedNumber(%q) = %s, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseSignedNumber(%q) error: %v", tt.in, err)
			}
			if want := decimal.RequireFromString(tt.want); !got.Equal(want) {
				t.Errorf("parseSignedNumber(%q) = %s, want %s", tt.in, got, want)
			}
		})
	}
}

func TestNormalizeLegActions(t *testing.T) {
	tests := []struct {
		name       string
		raw        models.RawLeg
		wantAction models.Action
		wantEffect models.PositionEffect
	}{
		{
			name: "equity buy collapses to Buy",
			raw: models.RawLeg{
				"Date": "2024-01-02", "Type": "Trade", "Action": "BUY",
				"Symbol": "AAPL", "Instrument Type": "Equity",
				"Quantity": "10", "Average Price": "-150.00",
			},
			wantAction: models.ActionBuy,
			wantEffect: models.EffectOpen,
		},
		{
			name: "equity sell variant collapses to Sell",
			raw: models.RawLeg{
				"Date": "2024-02-01", "Type": "Trade", "Action": "Sell",
				"Symbol": "AAPL", "Instrument Type": "Equity",
				"Quantity": "10", "Average Price": "160.00",
			},
			wantAction: models.ActionSell,
			wantEffect: models.EffectClose,
		},
		{
			name: "option action tolerates spacing noise",
			raw: models.RawLeg{
				"Date": "2024-01-02", "Type": "Trade", "Action": "Buy to Open",
				"Symbol": "AAPL  240119C00190000", "Instrument Type": "Equity Option",
				"Underlying Symbol": "AAPL", "Call or Put": "CALL",
				"Quantity": "1", "Average Price": "-2.50",
			},
			wantAction: models.ActionBuyToOpen,
			wantEffect: models.EffectOpen,
		},
		{
			name: "option close action",
			raw: models.RawLeg{
				"Date": "2024-01-20", "Type": "Trade", "Action": "SELL_TO_CLOSE",
				"Symbol": "AAPL  240119C00190000", "Instrument Type": "Equity Option",
				"Underlying Symbol": "AAPL", "Call or Put": "CALL",
				"Quantity": "1", "Average Price": "3.10",
			},
			wantAction: models.ActionSellToClose,
			wantEffect: models.EffectClose,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leg, diag := normalizeLeg(tt.raw, "acct-1")
			if diag != nil {
				t.Fatalf("normalizeLeg rejected row: %+v", diag)
			}
			if leg.Action != tt.wantAction {
				t.Errorf("Action = %q, want %q", leg.Action, tt.wantAction)
			}
			if leg.ActionNorm != tt.wantEffect {
				t.Errorf("ActionNorm = %q, want %q", leg.ActionNorm, tt.wantEffect)
			}
		})
	}
}

func TestNormalizeLegSymbols(t *testing.T) {
	t.Run("option symbol loses internal whitespace", func(t *testing.T) {
		leg, diag := normalizeLeg(models.RawLeg{
			"Date": "2024-01-02", "Type": "Trade", "Action": "BUY_TO_OPEN",
			"Symbol": "AAPL  240119C00190000", "Instrument Type": "Equity Option",
			"Underlying Symbol": "AAPL", "Call or Put": "CALL",
			"Quantity": "1", "Average Price": "-2.50",
		}, "acct-1")
		if diag != nil {
			t.Fatalf("rejected: %+v", diag)
		}
		if leg.Symbol != "AAPL240119C00190000" {
			t.Errorf("Symbol = %q, want %q", leg.Symbol, "AAPL240119C00190000")
		}
	})

	t.Run("future derives underlying from month code", func(t *testing.T) {
		tests := []struct{ symbol, want string }{
			{"/ESZ3", "/ES"},
			{"/MESZ23", "/MES"}, // len > 6 strips three
		}
		for _, tt := range tests {
			leg, diag := normalizeLeg(models.RawLeg{
				"Date": "2024-01-02", "Type": "Trade", "Action": "BUY",
				"Symbol": tt.symbol, "Instrument Type": "Future",
				"Quantity": "1", "Average Price": "-4500.00",
			}, "acct-1")
			if diag != nil {
				t.Fatalf("rejected %q: %+v", tt.symbol, diag)
			}
			if leg.UnderlyingSymbol != tt.want {
				t.Errorf("UnderlyingSymbol(%q) = %q, want %q", tt.symbol, leg.UnderlyingSymbol, tt.want)
			}
		}
	})

	t.Run("future option strips month code from underlying", func(t *testing.T) {
		leg, diag := normalizeLeg(models.RawLeg{
			"Date": "2024-01-02", "Type": "Trade", "Action": "SELL_TO_OPEN",
			"Symbol": "./ESZ3 EW4Z3 231222P4500", "Instrument Type": "Future Option",
			"Underlying Symbol": "/ESZ3", "Call or Put": "PUT",
			"Quantity": "1", "Average Price": "12.00",
		}, "acct-1")
		if diag != nil {
			t.Fatalf("rejected: %+v", diag)
		}
		if leg.UnderlyingSymbol != "/ES" {
			t.Errorf("UnderlyingSymbol = %q, want %q", leg.UnderlyingSymbol, "/ES")
		}
		if leg.Symbol != "./ESZ3EW4Z3231222P4500" {
			t.Errorf("Symbol = %q, want internal whitespace stripped", leg.Symbol)
		}
	})
}

func TestNormalizeLegReceiveDeliver(t *testing.T) {
	t.Run("index cash settlement closes", func(t *testing.T) {
		leg, diag := normalizeLeg(models.RawLeg{
			"Date": "2024-01-19", "Type": "Receive Deliver",
			"Symbol": "SPXW  240119C04800000", "Instrument Type": "Equity Option",
			"Underlying Symbol": "SPX", "Call or Put": "CALL",
			"Description": "Cash settled exercising index option",
			"Quantity":    "1", "Average Price": "0.00",
		}, "acct-1")
		if diag != nil {
			t.Fatalf("rejected: %+v", diag)
		}
		if leg.ActionNorm != models.EffectClose {
			t.Errorf("ActionNorm = %q, want CLOSE", leg.ActionNorm)
		}
	})

	t.Run("assignment closes non-index contract", func(t *testing.T) {
		leg, diag := normalizeLeg(models.RawLeg{
			"Date": "2024-01-19", "Type": "Receive Deliver",
			"Symbol": "AAPL  240119P00180000", "Instrument Type": "Equity Option",
			"Underlying Symbol": "AAPL", "Call or Put": "PUT",
			"Description": "Removal of option due to assignment",
			"Quantity":    "1", "Average Price": "0.00",
		}, "acct-1")
		if diag != nil {
			t.Fatalf("rejected: %+v", diag)
		}
		if leg.ActionNorm != models.EffectClose {
			t.Errorf("ActionNorm = %q, want CLOSE", leg.ActionNorm)
		}
	})

	t.Run("expiration closes non-index contract", func(t *testing.T) {
		leg, diag := normalizeLeg(models.RawLeg{
			"Date": "2024-01-19", "Type": "Receive Deliver",
			"Symbol": "TSLA  240119C00300000", "Instrument Type": "Equity Option",
			"Underlying Symbol": "TSLA", "Call or Put": "CALL",
			"Description": "Removal of option due to expiration",
			"Quantity":    "2", "Average Price": "0.00",
		}, "acct-1")
		if diag != nil {
			t.Fatalf("rejected: %+v", diag)
		}
		if leg.ActionNorm != models.EffectClose {
			t.Errorf("ActionNorm = %q, want CLOSE", leg.ActionNorm)
		}
	})

	t.Run("unrecognized delivery is excluded", func(t *testing.T) {
		_, diag := normalizeLeg(models.RawLeg{
			"Date": "2024-01-19", "Type": "Receive Deliver",
			"Symbol": "AAPL", "Instrument Type": "Equity",
			"Description": "Stock merger adjustment",
			"Quantity":    "10", "Average Price": "0.00",
		}, "acct-1")
		if diag == nil {
			t.Fatal("expected unclassified diagnostic, got accepted leg")
		}
		if diag.Kind != models.DiagUnclassifiedAction {
			t.Errorf("Kind = %q, want %q", diag.Kind, models.DiagUnclassifiedAction)
		}
	})

	t.Run("missing action outside receive/deliver is excluded", func(t *testing.T) {
		_, diag := normalizeLeg(models.RawLeg{
			"Date": "2024-01-02", "Type": "Trade",
			"Symbol": "AAPL", "Instrument Type": "Equity",
			"Quantity": "10", "Average Price": "-150.00",
		}, "acct-1")
		if diag == nil {
			t.Fatal("expected unclassified diagnostic, got accepted leg")
		}
		if diag.Kind != models.DiagUnclassifiedAction {
			t.Errorf("Kind = %q, want %q", diag.Kind, models.DiagUnclassifiedAction)
		}
	})
}

func TestNormalizeLegRejections(t *testing.T) {
	base := func() models.RawLeg {
		return models.RawLeg{
			"Date": "2024-01-02", "Type": "Trade", "Action": "BUY",
			"Symbol": "AAPL", "Instrument Type": "Equity",
			"Quantity": "10", "Average Price": "-150.00",
			"Commissions": "1.00", "Fees": "0.12",
		}
	}

	t.Run("bad date is a hard rejection", func(t *testing.T) {
		raw := base()
		raw["Date"] = "not-a-date"
		if _, diag := normalizeLeg(raw, "a"); diag == nil || diag.Kind != models.DiagRejectedRow {
			t.Fatalf("diag = %+v, want rejected_row", diag)
		}
	})

	t.Run("bad quantity is a hard rejection", func(t *testing.T) {
		raw := base()
		raw["Quantity"] = "ten"
		if _, diag := normalizeLeg(raw, "a"); diag == nil || diag.Kind != models.DiagRejectedRow {
			t.Fatalf("diag = %+v, want rejected_row", diag)
		}
	})

	t.Run("bad average price is a hard rejection", func(t *testing.T) {
		raw := base()
		raw["Average Price"] = ""
		if _, diag := normalizeLeg(raw, "a"); diag == nil || diag.Kind != models.DiagRejectedRow {
			t.Fatalf("diag = %+v, want rejected_row", diag)
		}
	})

	t.Run("blank commissions and fees default to zero", func(t *testing.T) {
		raw := base()
		raw["Commissions"] = ""
		raw["Fees"] = "n/a"
		leg, diag := normalizeLeg(raw, "a")
		if diag != nil {
			t.Fatalf("rejected: %+v", diag)
		}
		if !leg.Commissions.IsZero() || !leg.Fees.IsZero() {
			t.Errorf("Commissions = %s, Fees = %s, want both zero", leg.Commissions, leg.Fees)
		}
	})

	t.Run("quantity is stored unsigned", func(t *testing.T) {
		raw := base()
		raw["Quantity"] = "-10"
		leg, diag := normalizeLeg(raw, "a")
		if diag != nil {
			t.Fatalf("rejected: %+v", diag)
		}
		if !leg.Quantity.Equal(decimal.RequireFromString("10")) {
			t.Errorf("Quantity = %s, want 10", leg.Quantity)
		}
	})
}
