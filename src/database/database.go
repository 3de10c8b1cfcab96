package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/tradefolio/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Checking database migrations", "databasePath", databasePath)
	} else {
		stdlog.Println("Checking database migrations for:", databasePath)
	}
	migrateOpenLotsTable()

	// Decimal quantities and prices are stored as TEXT so no precision is
	// lost round-tripping through the store.
	createTableStatement := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		auth_provider TEXT DEFAULT 'local',
		is_email_verified BOOLEAN DEFAULT FALSE,
		email_verification_token TEXT,
		email_verification_token_expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		user_agent TEXT,
		client_ip TEXT,
		is_blocked BOOLEAN DEFAULT FALSE,
		expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS matched_trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		trade_key TEXT NOT NULL,
		open_date TEXT NOT NULL,
		close_date TEXT NOT NULL,
		symbol TEXT NOT NULL,
		underlying_symbol TEXT,
		call_or_put TEXT,
		quantity TEXT,
		open_price TEXT,
		close_price TEXT,
		profit_loss TEXT,
		commissions TEXT,
		fees TEXT,
		account TEXT,
		FOREIGN KEY(user_id) REFERENCES users(id),
		UNIQUE(user_id, trade_key)
	);

	CREATE TABLE IF NOT EXISTS open_lots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		symbol TEXT NOT NULL,
		underlying_symbol TEXT,
		instrument_type TEXT,
		call_or_put TEXT,
		action TEXT,
		average_price TEXT,
		commissions TEXT,
		fees TEXT,
		account TEXT,
		remaining_quantity TEXT,
		original_quantity TEXT,
		carried_over BOOLEAN DEFAULT FALSE,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);
	`

	_, err = DB.Exec(createTableStatement)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

// migrateOpenLotsTable backfills columns added after the first release.
func migrateOpenLotsTable() {
	var tableName string
	err := DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='open_lots'").Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			return // table will be created with the full schema
		}
		stdlog.Printf("Error checking for 'open_lots' table: %v", err)
		return
	}

	rows, err := DB.Query("PRAGMA table_info(open_lots)")
	if err != nil {
		stdlog.Printf("Error querying table schema for 'open_lots': %v", err)
		return
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			stdlog.Printf("Error scanning column info for 'open_lots': %v", err)
			return
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		stdlog.Printf("Error iterating over column info for 'open_lots': %v", err)
		return
	}

	if _, ok := columnExists["carried_over"]; !ok {
		if _, err := DB.Exec("ALTER TABLE open_lots ADD COLUMN carried_over BOOLEAN DEFAULT FALSE"); err != nil {
			stdlog.Printf("Error adding 'carried_over' column to 'open_lots': %v", err)
		} else {
			stdlog.Println("Added 'carried_over' column to 'open_lots' table")
		}
	}
	if _, ok := columnExists["original_quantity"]; !ok {
		if _, err := DB.Exec("ALTER TABLE open_lots ADD COLUMN original_quantity TEXT"); err != nil {
			stdlog.Printf("Error adding 'original_quantity' column to 'open_lots': %v", err)
		} else {
			stdlog.Println("Added 'original_quantity' column to 'open_lots' table")
			if _, err := DB.Exec("UPDATE open_lots SET original_quantity = remaining_quantity WHERE original_quantity IS NULL"); err != nil {
				stdlog.Printf("Error backfilling original_quantity: %v", err)
			}
		}
	}
}
