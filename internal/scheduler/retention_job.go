package scheduler

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/events"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/optimization"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/universe"
)

// RetentionJob prunes old daily prices and optimization results so the
// engine database does not grow without bound.
type RetentionJob struct {
	history             *universe.HistoryDB
	repo                *optimization.ResultRepository
	bus                 *events.Bus
	priceRetentionDays  int
	resultRetentionDays int
	log                 zerolog.Logger
}

// NewRetentionJob creates a new retention job. The bus may be nil.
func NewRetentionJob(
	history *universe.HistoryDB,
	repo *optimization.ResultRepository,
	bus *events.Bus,
	priceRetentionDays int,
	resultRetentionDays int,
	log zerolog.Logger,
) *RetentionJob {
	return &RetentionJob{
		history:             history,
		repo:                repo,
		bus:                 bus,
		priceRetentionDays:  priceRetentionDays,
		resultRetentionDays: resultRetentionDays,
		log:                 log.With().Str("job", "retention").Logger(),
	}
}

// Name returns the job name
func (j *RetentionJob) Name() string {
	return "retention"
}

// Run prunes rows older than the configured retention windows.
func (j *RetentionJob) Run() error {
	now := time.Now().UTC()

	priceCutoff := now.AddDate(0, 0, -j.priceRetentionDays)
	deletedPrices, err := j.history.DeleteOlderThan(priceCutoff)
	if err != nil {
		return fmt.Errorf("failed to prune daily prices: %w", err)
	}

	resultCutoff := now.AddDate(0, 0, -j.resultRetentionDays)
	deletedResults, err := j.repo.DeleteOlderThan(resultCutoff)
	if err != nil {
		return fmt.Errorf("failed to prune optimization results: %w", err)
	}

	if j.bus != nil && deletedResults > 0 {
		j.bus.Publish("scheduler", &events.ResultsPrunedData{Deleted: deletedResults})
	}

	j.log.Info().
		Int64("deleted_prices", deletedPrices).
		Int64("deleted_results", deletedResults).
		Time("price_cutoff", priceCutoff).
		Time("result_cutoff", resultCutoff).
		Msg("Retention pruning completed")

	return nil
}
