package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/portfoly/backend/src/logger"
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
	migrateTransactionTable()

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS portfolios (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		created_at INTEGER DEFAULT (strftime('%s','now'))
	);

	CREATE TABLE IF NOT EXISTS assets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		api_symbol TEXT NOT NULL,
		type TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		quantity REAL NOT NULL,
		price REAL NOT NULL,
		date INTEGER NOT NULL,
		portfolio_id INTEGER,
		asset_id INTEGER,
		created_at INTEGER DEFAULT (strftime('%s','now'))
	);
	`

	_, err = DB.Exec(createTableStatement)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}

	seedAssets()

	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

// seedAssets inserts the default tradable assets. Relies on the UNIQUE
// constraint on assets.symbol so re-running startup is idempotent.
func seedAssets() {
	seedStatement := `
	INSERT OR IGNORE INTO assets (symbol, name, api_symbol, type) VALUES
	('BTC', 'Bitcoin', 'bitcoin', 'crypto'),
	('ETH', 'Ethereum', 'ethereum', 'crypto'),
	('XU100', 'BIST 100', 'XU100.IS', 'bist'),
	('EREGL', 'Eregli Demir Celik', 'EREGL.IS', 'bist'),
	('GARAN', 'Garanti Bankasi', 'GARAN.IS', 'bist'),
	('AKBNK', 'Akbank', 'AKBNK.IS', 'bist');
	`
	if _, err := DB.Exec(seedStatement); err != nil {
		if logger.L != nil {
			logger.L.Error("failed to seed default assets", "error", err)
		} else {
			stdlog.Printf("failed to seed default assets: %v", err)
		}
	}
}

func migrateTransactionTable() {
	var tableName string
	err := DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='transactions'").Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			if logger.L != nil {
				logger.L.Info("'transactions' table does not exist, no migration needed as table will be created.")
			} else {
				stdlog.Println("'transactions' table does not exist, no migration needed as table will be created.")
			}
			return
		}
		if logger.L != nil {
			logger.L.Error("Error checking for 'transactions' table", "error", err)
		} else {
			stdlog.Printf("Error checking for 'transactions' table: %v", err)
		}
		return
	}

	rows, err := DB.Query("PRAGMA table_info(transactions)")
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error querying table schema for 'transactions'", "error", err)
		} else {
			stdlog.Printf("Error querying table schema for 'transactions': %v", err)
		}
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
			if logger.L != nil {
				logger.L.Error("Error scanning column info for 'transactions'", "error", err)
			} else {
				stdlog.Printf("Error scanning column info for 'transactions': %v", err)
			}
			return
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		if logger.L != nil {
			logger.L.Error("Error iterating over column info for 'transactions'", "error", err)
		} else {
			stdlog.Printf("Error iterating over column info for 'transactions': %v", err)
		}
		return
	}

	if _, ok := columnExists["created_at"]; !ok {
		// SQLite rejects non-constant defaults in ALTER TABLE.
		_, err := DB.Exec("ALTER TABLE transactions ADD COLUMN created_at INTEGER")
		if err != nil {
			logger.L.Error("Error adding 'created_at' column to 'transactions' table", "error", err)
		} else {
			logger.L.Info("Added 'created_at' column to 'transactions' table")
		}
	}
}
