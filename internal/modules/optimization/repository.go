package optimization

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// ResultRepository persists optimization results. Weights are stored as a
// msgpack-encoded entry list so the symbol order survives the round trip.
type ResultRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewResultRepository(db *sql.DB, log zerolog.Logger) *ResultRepository {
	return &ResultRepository{
		db:  db,
		log: log.With().Str("repository", "optimization_results").Logger(),
	}
}

// Save inserts a result. The result's own ID and timestamp are kept as-is.
func (r *ResultRepository) Save(result *OptimizationResult) error {
	if result == nil {
		return fmt.Errorf("cannot save nil result")
	}

	weightsBlob, err := msgpack.Marshal(result.Weights.Entries())
	if err != nil {
		return fmt.Errorf("failed to encode weights: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO optimization_results
		(id, method, weights, expected_return, volatility, sharpe_ratio,
		 diversification_score, risk_level, confidence, iterations, converged,
		 warning, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.ID,
		string(result.Method),
		weightsBlob,
		result.ExpectedReturn,
		result.Volatility,
		result.SharpeRatio,
		result.DiversificationScore,
		string(result.RiskLevel),
		result.Confidence,
		result.Iterations,
		result.Converged,
		result.Warning,
		result.Timestamp.UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert optimization result: %w", err)
	}

	r.log.Debug().Str("id", result.ID).Str("method", string(result.Method)).Msg("stored optimization result")
	return nil
}

// Get fetches one result by ID. Returns (nil, nil) when no row matches.
func (r *ResultRepository) Get(id string) (*OptimizationResult, error) {
	row := r.db.QueryRow(`
		SELECT id, method, weights, expected_return, volatility, sharpe_ratio,
			   diversification_score, risk_level, confidence, iterations,
			   converged, warning, created_at
		FROM optimization_results
		WHERE id = ?
	`, id)

	result, err := scanResult(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load optimization result %s: %w", id, err)
	}
	return result, nil
}

// List returns the most recent results, newest first.
func (r *ResultRepository) List(limit int) ([]*OptimizationResult, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(`
		SELECT id, method, weights, expected_return, volatility, sharpe_ratio,
			   diversification_score, risk_level, confidence, iterations,
			   converged, warning, created_at
		FROM optimization_results
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list optimization results: %w", err)
	}
	defer rows.Close()

	var results []*OptimizationResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan optimization result: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate optimization results: %w", err)
	}
	return results, nil
}

// DeleteOlderThan removes results created before the cutoff and reports how
// many rows went away.
func (r *ResultRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM optimization_results WHERE created_at < ?`, cutoff.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune optimization results: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned optimization results: %w", err)
	}
	if affected > 0 {
		r.log.Info().Int64("deleted", affected).Time("cutoff", cutoff).Msg("pruned old optimization results")
	}
	return affected, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResult(row rowScanner) (*OptimizationResult, error) {
	var (
		result        OptimizationResult
		method        string
		riskLevel     string
		weightsBlob   []byte
		warning       sql.NullString
		createdAtUnix int64
	)

	err := row.Scan(
		&result.ID,
		&method,
		&weightsBlob,
		&result.ExpectedReturn,
		&result.Volatility,
		&result.SharpeRatio,
		&result.DiversificationScore,
		&riskLevel,
		&result.Confidence,
		&result.Iterations,
		&result.Converged,
		&warning,
		&createdAtUnix,
	)
	if err != nil {
		return nil, err
	}

	var entries []WeightEntry
	if err := msgpack.Unmarshal(weightsBlob, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode weights: %w", err)
	}

	symbols := make([]string, len(entries))
	values := make([]float64, len(entries))
	for i, e := range entries {
		symbols[i] = e.Symbol
		values[i] = e.Weight
	}
	weights, err := newRawWeightVector(symbols, values)
	if err != nil {
		return nil, fmt.Errorf("stored weights are invalid: %w", err)
	}

	result.Method = Method(method)
	result.RiskLevel = RiskLevel(riskLevel)
	result.Weights = weights
	result.Warning = warning.String
	result.Timestamp = time.Unix(createdAtUnix, 0).UTC()
	return &result, nil
}
