package services

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/tradefolio/src/database"
	"github.com/username/tradefolio/src/engine"
	"github.com/username/tradefolio/src/logger"
	"github.com/username/tradefolio/src/models"
)

func newTestUploadService(t *testing.T) *uploadServiceImpl {
	t.Helper()
	logger.InitLogger("error")
	database.InitDB(filepath.Join(t.TempDir(), "test.db"))
	return &uploadServiceImpl{
		matchingEngine: engine.New(),
		reportCache:    cache.New(DefaultCacheExpiration, CacheCleanupInterval),
	}
}

func TestOpenLotCarryingValueSurvivesReload(t *testing.T) {
	s := newTestUploadService(t)
	const userID = int64(42)

	lot := models.OpenLot{
		TradeLeg: models.TradeLeg{
			Date:             time.Date(2024, 1, 3, 10, 15, 0, 0, time.UTC),
			Symbol:           "AAPL",
			UnderlyingSymbol: "AAPL",
			InstrumentType:   models.InstrumentEquity,
			Action:           models.ActionBuyToOpen,
			ActionNorm:       models.EffectOpen,
			Quantity:         decimal.NewFromInt(10),
			AveragePrice:     decimal.NewFromInt(-150),
			Account:          "5WT00001",
		},
		RemainingQuantity: decimal.NewFromInt(10),
		OriginalQuantity:  decimal.NewFromInt(10),
		MarketValue:       decimal.NewFromInt(1500),
	}

	if err := s.persistRunResult(userID, &engine.Result{OpenLots: []models.OpenLot{lot}}); err != nil {
		t.Fatalf("persistRunResult() error = %v", err)
	}

	got, err := fetchUserOpenLots(userID)
	if err != nil {
		t.Fatalf("fetchUserOpenLots() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("fetchUserOpenLots() returned %d lots, want 1", len(got))
	}

	want := lot.RemainingQuantity.Mul(lot.AveragePrice.Abs())
	if !got[0].MarketValue.Equal(want) {
		t.Errorf("reloaded MarketValue = %s, want %s", got[0].MarketValue, want)
	}
	if !got[0].RemainingQuantity.Equal(lot.RemainingQuantity) {
		t.Errorf("reloaded RemainingQuantity = %s, want %s", got[0].RemainingQuantity, lot.RemainingQuantity)
	}
}

func TestOpenLotCarryingValueTracksPartialRemainder(t *testing.T) {
	s := newTestUploadService(t)
	const userID = int64(43)

	lot := models.OpenLot{
		TradeLeg: models.TradeLeg{
			Date:             time.Date(2024, 2, 5, 11, 0, 0, 0, time.UTC),
			Symbol:           "MSFT",
			UnderlyingSymbol: "MSFT",
			InstrumentType:   models.InstrumentEquity,
			Action:           models.ActionBuyToOpen,
			ActionNorm:       models.EffectOpen,
			Quantity:         decimal.NewFromInt(20),
			AveragePrice:     decimal.NewFromFloat(-402.50),
			Account:          "5WT00001",
		},
		RemainingQuantity: decimal.NewFromInt(7),
		OriginalQuantity:  decimal.NewFromInt(20),
		MarketValue:       decimal.NewFromFloat(2817.50),
	}

	if err := s.persistRunResult(userID, &engine.Result{OpenLots: []models.OpenLot{lot}}); err != nil {
		t.Fatalf("persistRunResult() error = %v", err)
	}

	got, err := fetchUserOpenLots(userID)
	if err != nil {
		t.Fatalf("fetchUserOpenLots() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("fetchUserOpenLots() returned %d lots, want 1", len(got))
	}

	// Only the unmatched remainder carries value, not the original fill.
	want := decimal.NewFromFloat(2817.50)
	if !got[0].MarketValue.Equal(want) {
		t.Errorf("reloaded MarketValue = %s, want %s", got[0].MarketValue, want)
	}
}
