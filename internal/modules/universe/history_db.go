package universe

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/database"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/optimization"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/pkg/formulas"
)

// HistoryDB provides access to the stored daily price history. It backs both
// the universe HTTP API and the symbol resolution used by the optimization
// and risk modules.
type HistoryDB struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryDB creates a new history database accessor.
func NewHistoryDB(db *sql.DB, log zerolog.Logger) *HistoryDB {
	return &HistoryDB{
		db:  db,
		log: log.With().Str("component", "history_db").Logger(),
	}
}

// UpsertPrices inserts or replaces daily price bars for a symbol in a single
// transaction. Bars are keyed by (symbol, date), so re-ingesting a day
// overwrites the previous row.
func (h *HistoryDB) UpsertPrices(symbol string, prices []DailyPrice) error {
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if len(prices) == 0 {
		return nil
	}

	err := database.WithTransaction(h.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO daily_prices
			(symbol, date, open, high, low, close, volume)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, price := range prices {
			dateUnix, err := dateToUnix(price.Date)
			if err != nil {
				return fmt.Errorf("failed to parse date %s: %w", price.Date, err)
			}

			volume := sql.NullFloat64{}
			if price.Volume != nil {
				volume.Float64 = *price.Volume
				volume.Valid = true
			}

			_, err = stmt.Exec(symbol, dateUnix, price.Open, price.High, price.Low, price.Close, volume)
			if err != nil {
				return fmt.Errorf("failed to insert daily price for %s: %w", price.Date, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	h.log.Info().
		Str("symbol", symbol).
		Int("count", len(prices)).
		Msg("Upserted daily prices")

	return nil
}

// UpsertSymbolMeta inserts or replaces the metadata row for a symbol.
func (h *HistoryDB) UpsertSymbolMeta(info SymbolInfo) error {
	if info.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}

	_, err := h.db.Exec(`
		INSERT OR REPLACE INTO symbols (symbol, name, sector, market_cap, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, info.Symbol, info.Name, info.Sector, info.MarketCap, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert symbol metadata: %w", err)
	}

	h.log.Debug().Str("symbol", info.Symbol).Msg("Upserted symbol metadata")
	return nil
}

// DailyPrices fetches the most recent price bars for a symbol, oldest first.
// A non-positive limit returns the full history.
func (h *HistoryDB) DailyPrices(ctx context.Context, symbol string, limit int) ([]DailyPrice, error) {
	if limit <= 0 {
		limit = -1 // SQLite reads a negative LIMIT as unlimited
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT date, open, high, low, close, volume
		FROM daily_prices
		WHERE symbol = ?
		ORDER BY date DESC
		LIMIT ?
	`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var prices []DailyPrice
	for rows.Next() {
		var p DailyPrice
		var dateUnix int64
		var volume sql.NullFloat64

		if err := rows.Scan(&dateUnix, &p.Open, &p.High, &p.Low, &p.Close, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}

		p.Date = unixToDate(dateUnix)
		if volume.Valid {
			v := volume.Float64
			p.Volume = &v
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	reversePrices(prices)
	return prices, nil
}

// Closes returns the most recent stored closes for a symbol, oldest first.
// It satisfies the history source the risk handlers consume.
func (h *HistoryDB) Closes(ctx context.Context, symbol string, lookbackDays int) ([]float64, error) {
	if lookbackDays <= 0 {
		lookbackDays = formulas.TradingDaysPerYear
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT close
		FROM daily_prices
		WHERE symbol = ?
		ORDER BY date DESC
		LIMIT ?
	`, symbol, lookbackDays)
	if err != nil {
		return nil, fmt.Errorf("failed to query closes: %w", err)
	}
	defer rows.Close()

	var closes []float64
	for rows.Next() {
		var c float64
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan close: %w", err)
		}
		closes = append(closes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating closes: %w", err)
	}

	for i, j := 0, len(closes)-1; i < j; i, j = i+1, j-1 {
		closes[i], closes[j] = closes[j], closes[i]
	}
	return closes, nil
}

// Records resolves symbols to asset records with price history and metadata
// attached. It satisfies the record source the optimization handlers consume.
// A symbol with no stored history is an error rather than a silent omission.
func (h *HistoryDB) Records(ctx context.Context, symbols []string, lookbackDays int) ([]optimization.AssetRecord, error) {
	if lookbackDays <= 0 {
		lookbackDays = formulas.TradingDaysPerYear
	}

	meta, err := h.symbolMeta(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]optimization.AssetRecord, 0, len(symbols))
	for _, symbol := range symbols {
		prices, err := h.DailyPrices(ctx, symbol, lookbackDays)
		if err != nil {
			return nil, err
		}
		if len(prices) == 0 {
			return nil, fmt.Errorf("symbol %s: %w", symbol, optimization.ErrNoHistory)
		}

		samples := make([]optimization.PriceSample, len(prices))
		for i, p := range prices {
			samples[i] = optimization.PriceSample{Close: p.Close, Volume: p.Volume}
		}

		record := optimization.AssetRecord{Symbol: symbol, Samples: samples}
		if m, ok := meta[symbol]; ok {
			record.Sector = m.Sector
			record.MarketCap = m.MarketCap
		}
		records = append(records, record)
	}
	return records, nil
}

// ListSymbols returns every symbol with stored history, with metadata and
// coverage attached. Symbols without a metadata row still appear.
func (h *HistoryDB) ListSymbols(ctx context.Context) ([]SymbolInfo, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT p.symbol,
			   COALESCE(s.name, ''),
			   COALESCE(s.sector, ''),
			   COALESCE(s.market_cap, 0),
			   COUNT(*),
			   MIN(p.date),
			   MAX(p.date)
		FROM daily_prices p
		LEFT JOIN symbols s ON s.symbol = p.symbol
		GROUP BY p.symbol
		ORDER BY p.symbol
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	defer rows.Close()

	var infos []SymbolInfo
	for rows.Next() {
		var info SymbolInfo
		var firstUnix, lastUnix int64

		err := rows.Scan(&info.Symbol, &info.Name, &info.Sector, &info.MarketCap,
			&info.Observations, &firstUnix, &lastUnix)
		if err != nil {
			return nil, fmt.Errorf("failed to scan symbol info: %w", err)
		}

		info.FirstDate = unixToDate(firstUnix)
		info.LastDate = unixToDate(lastUnix)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}
	return infos, nil
}

// DeleteOlderThan removes price bars dated before the cutoff and reports how
// many rows went away. Used by the retention job.
func (h *HistoryDB) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := h.db.Exec(`DELETE FROM daily_prices WHERE date < ?`, cutoff.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old prices: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted prices: %w", err)
	}
	if affected > 0 {
		h.log.Info().
			Int64("rows_deleted", affected).
			Time("cutoff", cutoff).
			Msg("Deleted old daily prices")
	}
	return affected, nil
}

// symbolMeta loads the full metadata table keyed by symbol.
func (h *HistoryDB) symbolMeta(ctx context.Context) (map[string]SymbolInfo, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT symbol, name, sector, market_cap FROM symbols`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbol metadata: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]SymbolInfo)
	for rows.Next() {
		var info SymbolInfo
		if err := rows.Scan(&info.Symbol, &info.Name, &info.Sector, &info.MarketCap); err != nil {
			return nil, fmt.Errorf("failed to scan symbol metadata: %w", err)
		}
		meta[info.Symbol] = info
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbol metadata: %w", err)
	}
	return meta, nil
}

func reversePrices(prices []DailyPrice) {
	for i, j := 0, len(prices)-1; i < j; i, j = i+1, j-1 {
		prices[i], prices[j] = prices[j], prices[i]
	}
}

// dateToUnix converts a YYYY-MM-DD date to a Unix timestamp at midnight UTC.
func dateToUnix(date string) (int64, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}

// unixToDate converts a Unix timestamp back to its YYYY-MM-DD calendar day.
func unixToDate(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02")
}
