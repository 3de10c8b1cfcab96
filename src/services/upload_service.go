package services

import (
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/tradefolio/src/database"
	"github.com/username/tradefolio/src/engine"
	"github.com/username/tradefolio/src/logger"
	"github.com/username/tradefolio/src/models"
	"github.com/username/tradefolio/src/parsers"
)

const (
	// Long-lived caches for full per-user results
	ckMatchedTrades = "res_matched_trades_user_%d"
	ckOpenLots      = "res_open_lots_user_%d"

	// Short-lived, aggregate cache
	ckLatestUploadResult = "agg_latest_upload_result_user_%d"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

const dbDateLayout = time.RFC3339

type uploadServiceImpl struct {
	matchingEngine *engine.Engine
	reportCache    *cache.Cache
}

func NewUploadService(matchingEngine *engine.Engine, reportCache *cache.Cache) UploadService {
	return &uploadServiceImpl{
		matchingEngine: matchingEngine,
		reportCache:    reportCache,
	}
}

func (s *uploadServiceImpl) ProcessUpload(fileReader io.Reader, userID int64, source, account string) (*UploadResult, error) {
	overallStartTime := time.Now()
	logger.L.Info("ProcessUpload START", "userID", userID, "source", source, "account", account)

	parser, err := parsers.GetParser(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	rawLegs, err := parser.Parse(fileReader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	// Lots left open by earlier uploads are drained first, oldest first.
	carryOver, err := fetchUserOpenLots(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: loading carried-over lots: %v", ErrProcessingFailed, err)
	}

	runResult, err := s.matchingEngine.Run(rawLegs, carryOver, account)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessingFailed, err)
	}

	if err := s.persistRunResult(userID, runResult); err != nil {
		return nil, err
	}

	s.InvalidateUserCache(userID)

	result := &UploadResult{
		ImportID:       uuid.New(),
		MatchedTrades:  runResult.MatchedTrades,
		OpenLots:       runResult.OpenLots,
		MoneyMovements: runResult.MoneyMovements,
		Diagnostics:    runResult.Diagnostics,
	}
	s.reportCache.Set(fmt.Sprintf(ckLatestUploadResult, userID), result, DefaultCacheExpiration)

	logger.L.Info("ProcessUpload END",
		"userID", userID,
		"importID", result.ImportID,
		"matchedTrades", len(result.MatchedTrades),
		"openLots", len(result.OpenLots),
		"diagnostics", len(result.Diagnostics),
		"duration", time.Since(overallStartTime))
	return result, nil
}

// persistRunResult writes one run's output in a single transaction: matched
// trades are appended (duplicates by trade key are ignored) and the open lot
// snapshot fully replaces the previous one.
func (s *uploadServiceImpl) persistRunResult(userID int64, runResult *engine.Result) error {
	dbTx, err := database.DB.Begin()
	if err != nil {
		return fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	tradeStmt, err := dbTx.Prepare(`INSERT OR IGNORE INTO matched_trades
		(user_id, trade_key, open_date, close_date, symbol, underlying_symbol, call_or_put, quantity, open_price, close_price, profit_loss, commissions, fees, account)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing matched trade insert: %w", err)
	}
	defer tradeStmt.Close()

	for _, trade := range runResult.MatchedTrades {
		_, err := tradeStmt.Exec(
			userID,
			trade.Key(),
			trade.OpenDate.Format(dbDateLayout),
			trade.CloseDate.Format(dbDateLayout),
			trade.Symbol,
			trade.UnderlyingSymbol,
			trade.CallOrPut,
			trade.Quantity.String(),
			trade.OpenPrice.String(),
			trade.ClosePrice.String(),
			trade.ProfitLoss.String(),
			trade.Commissions.String(),
			trade.Fees.String(),
			trade.Account,
		)
		if err != nil {
			return fmt.Errorf("error inserting matched trade (%s): %w", trade.Symbol, err)
		}
	}

	if _, err := dbTx.Exec(`DELETE FROM open_lots WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("error clearing previous open lots: %w", err)
	}

	lotStmt, err := dbTx.Prepare(`INSERT INTO open_lots
		(user_id, date, symbol, underlying_symbol, instrument_type, call_or_put, action, average_price, commissions, fees, account, remaining_quantity, original_quantity, carried_over)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing open lot insert: %w", err)
	}
	defer lotStmt.Close()

	for _, lot := range runResult.OpenLots {
		_, err := lotStmt.Exec(
			userID,
			lot.Date.Format(dbDateLayout),
			lot.Symbol,
			lot.UnderlyingSymbol,
			string(lot.InstrumentType),
			lot.CallOrPut,
			string(lot.Action),
			lot.AveragePrice.String(),
			lot.Commissions.String(),
			lot.Fees.String(),
			lot.Account,
			lot.RemainingQuantity.String(),
			lot.OriginalQuantity.String(),
			lot.CarriedOver,
		)
		if err != nil {
			return fmt.Errorf("error inserting open lot (%s): %w", lot.Symbol, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("error committing run result: %w", err)
	}
	return nil
}

// InvalidateUserCache clears all cached data for a user, forcing a rebuild on the next request.
func (s *uploadServiceImpl) InvalidateUserCache(userID int64) {
	keysToDelete := []string{
		fmt.Sprintf(ckMatchedTrades, userID),
		fmt.Sprintf(ckOpenLots, userID),
		fmt.Sprintf(ckLatestUploadResult, userID),
	}
	for _, key := range keysToDelete {
		s.reportCache.Delete(key)
	}
	logger.L.Info("Invalidated all caches for user", "userID", userID)
}

func (s *uploadServiceImpl) GetLatestUploadResult(userID int64) (*UploadResult, error) {
	cacheKey := fmt.Sprintf(ckLatestUploadResult, userID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		logger.L.Debug("Cache hit for GetLatestUploadResult", "userID", userID)
		return cached.(*UploadResult), nil
	}
	logger.L.Info("Cache miss for GetLatestUploadResult, rebuilding from DB", "userID", userID)

	matchedTrades, err := s.GetMatchedTrades(userID)
	if err != nil {
		return nil, err
	}
	openLots, err := s.GetOpenLots(userID)
	if err != nil {
		return nil, err
	}

	// Cash movements and diagnostics belong to a single run and are not
	// persisted, so a rebuilt result carries none.
	result := &UploadResult{
		MatchedTrades: matchedTrades,
		OpenLots:      openLots,
	}
	s.reportCache.Set(cacheKey, result, DefaultCacheExpiration)
	return result, nil
}

func (s *uploadServiceImpl) GetMatchedTrades(userID int64) ([]models.MatchedTrade, error) {
	cacheKey := fmt.Sprintf(ckMatchedTrades, userID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.([]models.MatchedTrade), nil
	}

	trades, err := fetchUserMatchedTrades(userID)
	if err != nil {
		return nil, err
	}
	s.reportCache.Set(cacheKey, trades, cache.NoExpiration)
	return trades, nil
}

func (s *uploadServiceImpl) GetOpenLots(userID int64) ([]models.OpenLot, error) {
	cacheKey := fmt.Sprintf(ckOpenLots, userID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.([]models.OpenLot), nil
	}

	lots, err := fetchUserOpenLots(userID)
	if err != nil {
		return nil, err
	}
	s.reportCache.Set(cacheKey, lots, cache.NoExpiration)
	return lots, nil
}

func (s *uploadServiceImpl) DeleteUserData(userID int64) error {
	dbTx, err := database.DB.Begin()
	if err != nil {
		return fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.Exec(`DELETE FROM matched_trades WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("error deleting matched trades for userID %d: %w", userID, err)
	}
	if _, err := dbTx.Exec(`DELETE FROM open_lots WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("error deleting open lots for userID %d: %w", userID, err)
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("error committing delete for userID %d: %w", userID, err)
	}

	s.InvalidateUserCache(userID)
	logger.L.Info("Deleted all trade data for user", "userID", userID)
	return nil
}

func (s *uploadServiceImpl) HasData(userID int64) (bool, error) {
	var count int
	err := database.DB.QueryRow(
		`SELECT (SELECT COUNT(1) FROM matched_trades WHERE user_id = ?) + (SELECT COUNT(1) FROM open_lots WHERE user_id = ?)`,
		userID, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("error counting trade data for userID %d: %w", userID, err)
	}
	return count > 0, nil
}

func fetchUserMatchedTrades(userID int64) ([]models.MatchedTrade, error) {
	logger.L.Debug("Fetching matched trades from DB", "userID", userID)
	rows, err := database.DB.Query(`SELECT open_date, close_date, symbol, underlying_symbol, call_or_put, quantity, open_price, close_price, profit_loss, commissions, fees, account
		FROM matched_trades WHERE user_id = ? ORDER BY close_date DESC, open_date DESC, symbol ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying matched trades for userID %d: %w", userID, err)
	}
	defer rows.Close()

	var trades []models.MatchedTrade
	for rows.Next() {
		var trade models.MatchedTrade
		var openDate, closeDate string
		var quantity, openPrice, closePrice, profitLoss, commissions, fees string
		scanErr := rows.Scan(&openDate, &closeDate, &trade.Symbol, &trade.UnderlyingSymbol, &trade.CallOrPut,
			&quantity, &openPrice, &closePrice, &profitLoss, &commissions, &fees, &trade.Account)
		if scanErr != nil {
			return nil, fmt.Errorf("error scanning matched trade row for userID %d: %w", userID, scanErr)
		}
		if trade.OpenDate, err = time.Parse(dbDateLayout, openDate); err != nil {
			return nil, fmt.Errorf("error parsing stored open date %q: %w", openDate, err)
		}
		if trade.CloseDate, err = time.Parse(dbDateLayout, closeDate); err != nil {
			return nil, fmt.Errorf("error parsing stored close date %q: %w", closeDate, err)
		}
		if err := scanDecimals([]decimalColumn{
			{quantity, &trade.Quantity},
			{openPrice, &trade.OpenPrice},
			{closePrice, &trade.ClosePrice},
			{profitLoss, &trade.ProfitLoss},
			{commissions, &trade.Commissions},
			{fees, &trade.Fees},
		}); err != nil {
			return nil, fmt.Errorf("error decoding matched trade row for userID %d: %w", userID, err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over matched trade rows for userID %d: %w", userID, err)
	}
	logger.L.Debug("DB fetch complete", "userID", userID, "matchedTradeCount", len(trades))
	return trades, nil
}

func fetchUserOpenLots(userID int64) ([]models.OpenLot, error) {
	logger.L.Debug("Fetching open lots from DB", "userID", userID)
	rows, err := database.DB.Query(`SELECT date, symbol, underlying_symbol, instrument_type, call_or_put, action, average_price, commissions, fees, account, remaining_quantity, original_quantity, carried_over
		FROM open_lots WHERE user_id = ? ORDER BY date ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying open lots for userID %d: %w", userID, err)
	}
	defer rows.Close()

	var lots []models.OpenLot
	for rows.Next() {
		var lot models.OpenLot
		var date, instrumentType, action string
		var averagePrice, commissions, fees, remaining, original string
		var carriedOver sql.NullBool
		scanErr := rows.Scan(&date, &lot.Symbol, &lot.UnderlyingSymbol, &instrumentType, &lot.CallOrPut, &action,
			&averagePrice, &commissions, &fees, &lot.Account, &remaining, &original, &carriedOver)
		if scanErr != nil {
			return nil, fmt.Errorf("error scanning open lot row for userID %d: %w", userID, scanErr)
		}
		if lot.Date, err = time.Parse(dbDateLayout, date); err != nil {
			return nil, fmt.Errorf("error parsing stored lot date %q: %w", date, err)
		}
		lot.InstrumentType = models.InstrumentType(instrumentType)
		lot.Action = models.Action(action)
		lot.ActionNorm = models.EffectOpen
		lot.CarriedOver = carriedOver.Valid && carriedOver.Bool
		if err := scanDecimals([]decimalColumn{
			{averagePrice, &lot.AveragePrice},
			{commissions, &lot.Commissions},
			{fees, &lot.Fees},
			{remaining, &lot.RemainingQuantity},
			{original, &lot.OriginalQuantity},
		}); err != nil {
			return nil, fmt.Errorf("error decoding open lot row for userID %d: %w", userID, err)
		}
		lot.Quantity = lot.OriginalQuantity
		// Carrying value is derived, not stored; rebuild it the same way the
		// matching run does.
		lot.MarketValue = lot.RemainingQuantity.Mul(lot.AveragePrice.Abs())
		lots = append(lots, lot)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over open lot rows for userID %d: %w", userID, err)
	}
	logger.L.Debug("DB fetch complete", "userID", userID, "openLotCount", len(lots))
	return lots, nil
}

type decimalColumn struct {
	text   string
	target *decimal.Decimal
}

func scanDecimals(columns []decimalColumn) error {
	for _, col := range columns {
		if col.text == "" {
			*col.target = decimal.Zero
			continue
		}
		value, err := decimal.NewFromString(col.text)
		if err != nil {
			return fmt.Errorf("invalid stored decimal %q: %w", col.text, err)
		}
		*col.target = value
	}
	return nil
}
