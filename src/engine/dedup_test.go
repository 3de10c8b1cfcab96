package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/tradefolio/src/models"
)

func testLeg(date string, symbol string, action models.Action, effect models.PositionEffect, qty, price string) models.TradeLeg {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return models.TradeLeg{
		Date:             d,
		Symbol:           symbol,
		UnderlyingSymbol: symbol,
		InstrumentType:   models.InstrumentEquity,
		Action:           action,
		ActionNorm:       effect,
		Quantity:         decimal.RequireFromString(qty),
		AveragePrice:     decimal.RequireFromString(price),
		Commissions:      decimal.Zero,
		Fees:             decimal.Zero,
		Account:          "acct-1",
	}
}

func TestDedupeDropsDuplicateOpen(t *testing.T) {
	open := testLeg("2024-01-02", "AAPL", models.ActionBuy, models.EffectOpen, "10", "-150")
	kept, diags := dedupeLegs([]models.TradeLeg{open, open})

	if len(kept) != 1 {
		t.Fatalf("kept %d legs, want 1", len(kept))
	}
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	if diags[0].Kind != models.DiagDuplicateRow {
		t.Errorf("Kind = %q, want %q", diags[0].Kind, models.DiagDuplicateRow)
	}
}

func TestDedupeKeepsRepeatedIdenticalCloses(t *testing.T) {
	// Two separate fills the broker exported as two identical rows: both are
	// legitimate and must survive as distinct occurrences.
	close1 := testLeg("2024-02-01", "AAPL", models.ActionSell, models.EffectClose, "5", "160")
	kept, diags := dedupeLegs([]models.TradeLeg{close1, close1, close1})

	if len(kept) != 3 {
		t.Fatalf("kept %d close legs, want 3", len(kept))
	}
	if len(diags) != 0 {
		t.Fatalf("got %d diagnostics, want none: %+v", len(diags), diags)
	}
}

func TestDedupeKeyBoundaries(t *testing.T) {
	a := testLeg("2024-01-02", "AAPL", models.ActionBuy, models.EffectOpen, "10", "-150")
	differentPrice := testLeg("2024-01-02", "AAPL", models.ActionBuy, models.EffectOpen, "10", "-151")
	differentDay := testLeg("2024-01-03", "AAPL", models.ActionBuy, models.EffectOpen, "10", "-150")
	differentAccount := a
	differentAccount.Account = "acct-2"

	kept, diags := dedupeLegs([]models.TradeLeg{a, differentPrice, differentDay, differentAccount})
	if len(kept) != 4 {
		t.Fatalf("kept %d legs, want all 4 distinct legs", len(kept))
	}
	if len(diags) != 0 {
		t.Fatalf("got %d diagnostics, want none", len(diags))
	}
}
