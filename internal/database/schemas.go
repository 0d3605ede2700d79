package database

// schemas maps database names to their schema DDL. Two-database
// architecture: portfolio.db holds mutable state, ledger.db holds the
// append-only audit trail.
var schemas = map[string]string{
	"portfolio": portfolioSchema,
	"ledger":    ledgerSchema,
}

const portfolioSchema = `
CREATE TABLE IF NOT EXISTS portfolios (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    name TEXT NOT NULL,
    auto_rebalance INTEGER NOT NULL DEFAULT 0,
    max_slippage REAL NOT NULL DEFAULT 1.0,
    check_interval INTEGER NOT NULL DEFAULT 86400,
    last_rebalance_timestamp TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_portfolios_user ON portfolios(user_id);

CREATE TABLE IF NOT EXISTS assets (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    portfolio_id INTEGER NOT NULL,
    symbol TEXT NOT NULL,
    amount REAL NOT NULL,
    last_updated DATETIME DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (portfolio_id) REFERENCES portfolios (id),
    UNIQUE (portfolio_id, symbol)
);

CREATE TABLE IF NOT EXISTS analysis_snapshots (
    portfolio_id INTEGER PRIMARY KEY,
    snapshot BLOB NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS rebalance_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    portfolio_id INTEGER NOT NULL,
    event_type TEXT NOT NULL,
    details TEXT NOT NULL,
    timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_events_portfolio ON rebalance_events(portfolio_id, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_events_type ON rebalance_events(portfolio_id, event_type, timestamp DESC);
`
