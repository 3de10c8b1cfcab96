package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/username/tradefolio/src/logger"
	"github.com/username/tradefolio/src/models"
	"github.com/username/tradefolio/src/services"
	"github.com/username/tradefolio/src/utils"
)

type PortfolioHandler struct {
	uploadService services.UploadService
	priceService  services.PriceService
}

func NewPortfolioHandler(uploadService services.UploadService, priceService services.PriceService) *PortfolioHandler {
	return &PortfolioHandler{
		uploadService: uploadService,
		priceService:  priceService,
	}
}

func (h *PortfolioHandler) HandleGetOpenLots(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	logger.L.Debug("Handling GetOpenLots", "userID", userID)

	openLots, err := h.uploadService.GetOpenLots(userID)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving open lots for userID %d: %v", userID, err), http.StatusInternalServerError)
		return
	}
	if openLots == nil {
		openLots = []models.OpenLot{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(openLots)
}

func (h *PortfolioHandler) HandleGetMatchedTrades(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	logger.L.Debug("Handling GetMatchedTrades", "userID", userID)

	matchedTrades, err := h.uploadService.GetMatchedTrades(userID)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving matched trades for userID %d: %v", userID, err), http.StatusInternalServerError)
		return
	}
	if matchedTrades == nil {
		matchedTrades = []models.MatchedTrade{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(matchedTrades)
}

func (h *PortfolioHandler) HandleGetCurrentHoldingsValue(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	logger.L.Debug("Handling GetCurrentHoldingsValue", "userID", userID)

	openLots, err := h.uploadService.GetOpenLots(userID)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving open lots for userID %d: %v", userID, err), http.StatusInternalServerError)
		return
	}

	// Live quotes only make sense for plain equities. Options and futures
	// keep their carrying value.
	symbolSet := make(map[string]bool)
	for _, lot := range openLots {
		if lot.InstrumentType == models.InstrumentEquity && lot.Symbol != "" {
			symbolSet[lot.Symbol] = true
		}
	}
	symbols := make([]string, 0, len(symbolSet))
	for symbol := range symbolSet {
		symbols = append(symbols, symbol)
	}

	prices, err := h.priceService.GetCurrentPrices(symbols)
	if err != nil {
		// Carrying values still make a useful response.
		logger.L.Warn("Could not fetch some or all current prices", "userID", userID, "error", err)
	}

	type LotWithValue struct {
		models.OpenLot
		CurrentPrice    float64 `json:"current_price"`
		LiveMarketValue float64 `json:"live_market_value"`
		PriceStatus     string  `json:"price_status"`
	}

	response := []LotWithValue{}
	for _, lot := range openLots {
		currentPrice := 0.0
		marketValue, _ := lot.MarketValue.Float64()
		status := "UNAVAILABLE"

		if priceInfo, found := prices[lot.Symbol]; found && priceInfo.Status == "OK" {
			status = "OK"
			currentPrice = priceInfo.Price
			remaining, _ := lot.RemainingQuantity.Float64()
			marketValue = priceInfo.Price * remaining
		}

		response = append(response, LotWithValue{
			OpenLot:         lot,
			CurrentPrice:    utils.RoundFloat(currentPrice, 4),
			LiveMarketValue: utils.RoundFloat(marketValue, 2),
			PriceStatus:     status,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
