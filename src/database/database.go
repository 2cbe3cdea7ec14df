package database

import (
	"database/sql"
	"fmt"
	stdlog "log"

	"github.com/username/cryptotax/src/logger"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var (
	DB             *sql.DB
	CurrentDialect = SQLite
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ledger_transactions (
	id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	occurred_at TEXT,
	type TEXT NOT NULL,
	asset TEXT,
	amount TEXT,
	usd_value TEXT,
	fee_usd TEXT,
	description TEXT,
	status TEXT NOT NULL DEFAULT 'confirmed',
	hash_id TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, id),
	UNIQUE(user_id, hash_id)
);

CREATE INDEX IF NOT EXISTS idx_ledger_transactions_user_time
	ON ledger_transactions (user_id, occurred_at);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS ledger_transactions (
	id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	occurred_at TIMESTAMPTZ,
	type TEXT NOT NULL,
	asset TEXT,
	amount NUMERIC,
	usd_value NUMERIC,
	fee_usd NUMERIC,
	description TEXT,
	status TEXT NOT NULL DEFAULT 'confirmed',
	hash_id TEXT NOT NULL,
	created_at TIMESTAMPTZ DEFAULT NOW(),
	PRIMARY KEY (user_id, id),
	UNIQUE(user_id, hash_id)
);

CREATE INDEX IF NOT EXISTS idx_ledger_transactions_user_time
	ON ledger_transactions (user_id, occurred_at);
`

// Columns added after the first release of the ledger table. Older sqlite
// files are brought forward by migrateLedgerTable.
var ledgerColumnMigrations = []struct {
	name       string
	sqliteType string
	pgType     string
}{
	{"fee_usd", "TEXT", "NUMERIC"},
	{"description", "TEXT", "TEXT"},
	{"created_at", "TIMESTAMP", "TIMESTAMPTZ"},
}

// Open connects to the ledger store and ensures its schema. An in-memory
// sqlite database is pinned to a single connection, otherwise every pooled
// connection would see its own empty database.
func Open(driver, dsn string) (*sql.DB, Dialect, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, Dialect{}, err
	}

	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("failed to open %s database: %w", dialect.Driver, err)
	}
	if dialect == SQLite && (dsn == ":memory:" || dsn == "") {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, Dialect{}, fmt.Errorf("failed to ping %s database: %w", dialect.Driver, err)
	}

	if err := EnsureSchema(db, dialect); err != nil {
		db.Close()
		return nil, Dialect{}, err
	}
	return db, dialect, nil
}

// InitDB opens the configured store into the package globals and exits the
// process when the store cannot be prepared.
func InitDB(driver, dsn string) {
	db, dialect, err := Open(driver, dsn)
	if err != nil {
		logger.L.Error("Failed to initialize database", "driver", driver, "error", err)
		stdlog.Fatalf("failed to initialize database: %v", err)
	}
	DB = db
	CurrentDialect = dialect
	logger.L.Info("Database initialized", "driver", dialect.Driver)
}

// EnsureSchema migrates existing tables and creates missing ones.
func EnsureSchema(db *sql.DB, dialect Dialect) error {
	logger.L.Info("Checking database migrations", "driver", dialect.Driver)

	schema := sqliteSchema
	if dialect == Postgres {
		schema = postgresSchema
	}

	if err := migrateLedgerTable(db, dialect); err != nil {
		return err
	}
	if _, err := db.Exec(schema); err != nil {
		logger.L.Error("failed to create tables", "error", err)
		return fmt.Errorf("failed to create tables: %w", err)
	}
	logger.L.Info("Database tables ensured/created.")
	return nil
}

func migrateLedgerTable(db *sql.DB, dialect Dialect) error {
	if dialect == Postgres {
		for _, col := range ledgerColumnMigrations {
			stmt := fmt.Sprintf("ALTER TABLE IF EXISTS ledger_transactions ADD COLUMN IF NOT EXISTS %s %s", col.name, col.pgType)
			if _, err := db.Exec(stmt); err != nil {
				return fmt.Errorf("failed to add column %s: %w", col.name, err)
			}
		}
		return migratePostgresLedgerKey(db)
	}

	var tableName string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='ledger_transactions'").Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			logger.L.Info("'ledger_transactions' table does not exist, no migration needed as table will be created.")
			return nil
		}
		return fmt.Errorf("error checking for 'ledger_transactions' table: %w", err)
	}

	rows, err := db.Query("PRAGMA table_info(ledger_transactions)")
	if err != nil {
		return fmt.Errorf("error querying table schema for 'ledger_transactions': %w", err)
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	var keyColumns []string
	for rows.Next() {
		var cid, pk, notnull int
		var name, dataType string
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &dataType, &notnull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("error scanning column info for 'ledger_transactions': %w", err)
		}
		columnExists[name] = true
		if pk > 0 {
			keyColumns = append(keyColumns, name)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating over column info for 'ledger_transactions': %w", err)
	}

	for _, col := range ledgerColumnMigrations {
		if columnExists[col.name] {
			continue
		}
		// sqlite rejects non-constant defaults in ADD COLUMN, so created_at is added bare.
		if _, err := db.Exec(fmt.Sprintf("ALTER TABLE ledger_transactions ADD COLUMN %s %s", col.name, col.sqliteType)); err != nil {
			logger.L.Error("Error adding column to 'ledger_transactions'", "column", col.name, "error", err)
			return fmt.Errorf("failed to add column %s: %w", col.name, err)
		}
		logger.L.Info("Added column to 'ledger_transactions' table", "column", col.name)
	}

	if len(keyColumns) == 1 && keyColumns[0] == "id" {
		return rebuildSQLiteLedgerKey(db)
	}
	return nil
}

const ledgerColumns = "id, user_id, occurred_at, type, asset, amount, usd_value, fee_usd, description, status, hash_id, created_at"

// rebuildSQLiteLedgerKey moves a table keyed on id alone to the per-user key.
// sqlite cannot alter a primary key in place, so the table is copied.
func rebuildSQLiteLedgerKey(db *sql.DB) error {
	logger.L.Info("Rebuilding 'ledger_transactions' with primary key (user_id, id)")
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin ledger key migration: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		"ALTER TABLE ledger_transactions RENAME TO ledger_transactions_old",
		"DROP INDEX IF EXISTS idx_ledger_transactions_user_time",
		sqliteSchema,
		fmt.Sprintf("INSERT INTO ledger_transactions (%s) SELECT %s FROM ledger_transactions_old", ledgerColumns, ledgerColumns),
		"DROP TABLE ledger_transactions_old",
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("ledger key migration failed: %w", err)
		}
	}
	return tx.Commit()
}

const postgresLedgerKeyHasUserSQL = `SELECT COUNT(*)
FROM information_schema.table_constraints c
JOIN information_schema.key_column_usage k
	ON k.constraint_name = c.constraint_name AND k.table_name = c.table_name
WHERE c.table_name = 'ledger_transactions' AND c.constraint_type = 'PRIMARY KEY' AND k.column_name = 'user_id'`

func migratePostgresLedgerKey(db *sql.DB) error {
	var exists bool
	if err := db.QueryRow("SELECT to_regclass('ledger_transactions') IS NOT NULL").Scan(&exists); err != nil {
		return fmt.Errorf("error checking for 'ledger_transactions' table: %w", err)
	}
	if !exists {
		return nil
	}
	var n int
	if err := db.QueryRow(postgresLedgerKeyHasUserSQL).Scan(&n); err != nil {
		return fmt.Errorf("error reading ledger primary key: %w", err)
	}
	if n > 0 {
		return nil
	}
	logger.L.Info("Moving 'ledger_transactions' primary key to (user_id, id)")
	_, err := db.Exec("ALTER TABLE ledger_transactions DROP CONSTRAINT IF EXISTS ledger_transactions_pkey, ADD PRIMARY KEY (user_id, id)")
	if err != nil {
		return fmt.Errorf("failed to migrate ledger primary key: %w", err)
	}
	return nil
}
