package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Dialect selects which DDL EnsureSchema applies.  Queries issued by the
// repositories are written to run unchanged on both.
type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite"
)

// mysqlSchema is applied statement by statement because the driver is not
// opened with multiStatements.  Money columns hold integer cents.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS sellers (
    id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    email         VARCHAR(255) NOT NULL,
    password_hash VARCHAR(255) NOT NULL,
    created_at    DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
    UNIQUE KEY uq_sellers_email (email)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS sales (
    id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    seller_id     BIGINT UNSIGNED NOT NULL,
    title         VARCHAR(255) NOT NULL,
    address       VARCHAR(512) NOT NULL DEFAULT '',
    latitude      DOUBLE NULL,
    longitude     DOUBLE NULL,
    preview_start DATETIME(6) NULL,
    claim_start   DATETIME(6) NOT NULL,
    claim_end     DATETIME(6) NOT NULL,
    pickup_start  DATETIME(6) NOT NULL,
    pickup_end    DATETIME(6) NOT NULL,
    access_code   VARCHAR(32) NOT NULL,
    status        VARCHAR(16) NOT NULL DEFAULT 'active',
    created_at    DATETIME(6) NOT NULL,
    UNIQUE KEY uq_sales_access_code (access_code),
    KEY idx_sales_seller (seller_id),
    CONSTRAINT fk_sales_seller FOREIGN KEY (seller_id) REFERENCES sellers(id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS items (
    id                 BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    sale_id            BIGINT UNSIGNED NOT NULL,
    title              VARCHAR(255) NOT NULL,
    description        TEXT NOT NULL,
    starting_price     BIGINT NOT NULL,
    current_high_offer BIGINT NOT NULL DEFAULT 0,
    offer_count        INT NOT NULL DEFAULT 0,
    status             VARCHAR(16) NOT NULL DEFAULT 'available',
    winning_offer_id   BIGINT UNSIGNED NULL,
    qr_code            VARCHAR(32) NOT NULL,
    created_at         DATETIME(6) NOT NULL,
    UNIQUE KEY uq_items_qr_code (qr_code),
    KEY idx_items_sale (sale_id),
    CONSTRAINT fk_items_sale FOREIGN KEY (sale_id) REFERENCES sales(id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS buyers (
    id                BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    sale_id           BIGINT UNSIGNED NOT NULL,
    name              VARCHAR(255) NOT NULL,
    email             VARCHAR(255) NULL,
    phone             VARCHAR(32) NULL,
    auth_code         VARCHAR(128) NOT NULL DEFAULT '',
    auth_code_expires DATETIME(6) NULL,
    auth_attempts     INT NOT NULL DEFAULT 0,
    auth_verified     TINYINT(1) NOT NULL DEFAULT 0,
    session_token     VARCHAR(128) NULL,
    session_expires   DATETIME(6) NULL,
    last_activity     DATETIME(6) NULL,
    created_at        DATETIME(6) NOT NULL,
    UNIQUE KEY uq_buyers_sale_email (sale_id, email),
    UNIQUE KEY uq_buyers_sale_phone (sale_id, phone),
    UNIQUE KEY uq_buyers_session (session_token),
    CONSTRAINT fk_buyers_sale FOREIGN KEY (sale_id) REFERENCES sales(id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS offers (
    id           BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    item_id      BIGINT UNSIGNED NOT NULL,
    buyer_id     BIGINT UNSIGNED NOT NULL,
    offer_amount BIGINT NOT NULL,
    max_offer    BIGINT NULL,
    status       VARCHAR(16) NOT NULL DEFAULT 'active',
    seller_notes TEXT NULL,
    created_at   DATETIME(6) NOT NULL,
    updated_at   DATETIME(6) NOT NULL,
    KEY idx_offers_item_status (item_id, status),
    KEY idx_offers_buyer (buyer_id),
    CONSTRAINT fk_offers_item FOREIGN KEY (item_id) REFERENCES items(id),
    CONSTRAINT fk_offers_buyer FOREIGN KEY (buyer_id) REFERENCES buyers(id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS offer_history (
    id           BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    offer_id     BIGINT UNSIGNED NOT NULL,
    item_id      BIGINT UNSIGNED NOT NULL,
    buyer_id     BIGINT UNSIGNED NOT NULL,
    offer_amount BIGINT NOT NULL,
    action       VARCHAR(16) NOT NULL,
    created_at   DATETIME(6) NOT NULL,
    KEY idx_history_item (item_id, id),
    CONSTRAINT fk_history_offer FOREIGN KEY (offer_id) REFERENCES offers(id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// sqliteSchema mirrors mysqlSchema for the in-memory test store.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS sellers (
    id            INTEGER PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS sales (
    id            INTEGER PRIMARY KEY,
    seller_id     INTEGER NOT NULL REFERENCES sellers(id),
    title         TEXT NOT NULL,
    address       TEXT NOT NULL DEFAULT '',
    latitude      REAL,
    longitude     REAL,
    preview_start DATETIME,
    claim_start   DATETIME NOT NULL,
    claim_end     DATETIME NOT NULL,
    pickup_start  DATETIME NOT NULL,
    pickup_end    DATETIME NOT NULL,
    access_code   TEXT NOT NULL UNIQUE,
    status        TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'cancelled')),
    created_at    DATETIME NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS items (
    id                 INTEGER PRIMARY KEY,
    sale_id            INTEGER NOT NULL REFERENCES sales(id),
    title              TEXT NOT NULL,
    description        TEXT NOT NULL,
    starting_price     INTEGER NOT NULL,
    current_high_offer INTEGER NOT NULL DEFAULT 0,
    offer_count        INTEGER NOT NULL DEFAULT 0,
    status             TEXT NOT NULL DEFAULT 'available' CHECK (status IN ('available', 'claimed')),
    winning_offer_id   INTEGER,
    qr_code            TEXT NOT NULL UNIQUE,
    created_at         DATETIME NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS buyers (
    id                INTEGER PRIMARY KEY,
    sale_id           INTEGER NOT NULL REFERENCES sales(id),
    name              TEXT NOT NULL,
    email             TEXT,
    phone             TEXT,
    auth_code         TEXT NOT NULL DEFAULT '',
    auth_code_expires DATETIME,
    auth_attempts     INTEGER NOT NULL DEFAULT 0,
    auth_verified     INTEGER NOT NULL DEFAULT 0,
    session_token     TEXT UNIQUE,
    session_expires   DATETIME,
    last_activity     DATETIME,
    created_at        DATETIME NOT NULL,
    UNIQUE (sale_id, email),
    UNIQUE (sale_id, phone)
)`,
	`CREATE TABLE IF NOT EXISTS offers (
    id           INTEGER PRIMARY KEY,
    item_id      INTEGER NOT NULL REFERENCES items(id),
    buyer_id     INTEGER NOT NULL REFERENCES buyers(id),
    offer_amount INTEGER NOT NULL,
    max_offer    INTEGER,
    status       TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'winning', 'outbid', 'rejected', 'expired')),
    seller_notes TEXT,
    created_at   DATETIME NOT NULL,
    updated_at   DATETIME NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_offers_item_status ON offers(item_id, status)`,
	`CREATE TABLE IF NOT EXISTS offer_history (
    id           INTEGER PRIMARY KEY,
    offer_id     INTEGER NOT NULL REFERENCES offers(id),
    item_id      INTEGER NOT NULL,
    buyer_id     INTEGER NOT NULL,
    offer_amount INTEGER NOT NULL,
    action       TEXT NOT NULL CHECK (action IN ('placed', 'increased', 'accepted')),
    created_at   DATETIME NOT NULL
)`,
}

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(ctx context.Context, db *sql.DB, dialect Dialect) error {
	stmts := mysqlSchema
	if dialect == DialectSQLite {
		stmts = sqliteSchema
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}
