package services

import (
	"errors"
	"io"

	"github.com/google/uuid"
	"github.com/username/tradefolio/src/models"
)

var (
	ErrParsingFailed    = errors.New("parsing failed")
	ErrProcessingFailed = errors.New("processing failed")
)

// UploadResult holds everything one matching run produced: the realized
// trades, the surviving open lots, pass-through cash movements and the
// row-level diagnostics.
type UploadResult struct {
	ImportID       uuid.UUID             `json:"import_id"`
	MatchedTrades  []models.MatchedTrade `json:"matched_trades"`
	OpenLots       []models.OpenLot      `json:"open_lots"`
	MoneyMovements []models.CashMovement `json:"money_movements"`
	Diagnostics    []models.Diagnostic   `json:"diagnostics"`
}

// UploadService defines the interface for the core upload processing logic.
type UploadService interface {
	ProcessUpload(fileReader io.Reader, userID int64, source, account string) (*UploadResult, error)
	GetLatestUploadResult(userID int64) (*UploadResult, error)
	GetMatchedTrades(userID int64) ([]models.MatchedTrade, error)
	GetOpenLots(userID int64) ([]models.OpenLot, error)
	DeleteUserData(userID int64) error
	HasData(userID int64) (bool, error)
	InvalidateUserCache(userID int64)
}
