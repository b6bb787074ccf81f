package database

// engineSchema is the DDL for the engine database: the daily price history,
// symbol metadata and stored optimization results. Dates and timestamps are
// Unix seconds; weights are a msgpack blob so symbol order survives.
const engineSchema = `
CREATE TABLE IF NOT EXISTS daily_prices (
	symbol TEXT NOT NULL,
	date INTEGER NOT NULL,
	open REAL NOT NULL,
	high REAL NOT NULL,
	low REAL NOT NULL,
	close REAL NOT NULL,
	volume REAL,
	PRIMARY KEY (symbol, date)
);

CREATE INDEX IF NOT EXISTS idx_daily_prices_date ON daily_prices(date);

CREATE TABLE IF NOT EXISTS symbols (
	symbol TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	sector TEXT NOT NULL DEFAULT '',
	market_cap REAL NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS optimization_results (
	id TEXT PRIMARY KEY,
	method TEXT NOT NULL,
	weights BLOB NOT NULL,
	expected_return REAL NOT NULL,
	volatility REAL NOT NULL,
	sharpe_ratio REAL NOT NULL,
	diversification_score REAL NOT NULL,
	risk_level TEXT NOT NULL,
	confidence REAL NOT NULL,
	iterations INTEGER NOT NULL,
	converged INTEGER NOT NULL,
	warning TEXT,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_optimization_results_created
	ON optimization_results(created_at);
`

// schemas maps database names to their DDL. Migrate is a no-op for names
// that are not listed here.
var schemas = map[string]string{
	"engine": engineSchema,
}
