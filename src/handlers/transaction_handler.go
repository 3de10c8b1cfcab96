package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/username/tradefolio/src/logger"
	"github.com/username/tradefolio/src/services"
	"github.com/username/tradefolio/src/utils"
)

type TransactionHandler struct {
	uploadService services.UploadService
}

func NewTransactionHandler(uploadService services.UploadService) *TransactionHandler {
	return &TransactionHandler{uploadService: uploadService}
}

func (h *TransactionHandler) HandleDeleteAllTradeData(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	logger.L.Info("Handling DeleteAllTradeData", "userID", userID)

	if err := h.uploadService.DeleteUserData(userID); err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error deleting trade data for userID %d: %v", userID, err), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TransactionHandler) HandleHasData(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	hasData, err := h.uploadService.HasData(userID)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error checking trade data for userID %d: %v", userID, err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"hasData": hasData})
}
