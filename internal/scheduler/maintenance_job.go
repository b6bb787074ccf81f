package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/database"
	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/utils"
)

// MaintenanceJob keeps the engine database healthy: WAL checkpoint, vacuum,
// and an integrity check, with before/after size statistics.
type MaintenanceJob struct {
	db  *database.DB
	log zerolog.Logger
}

// NewMaintenanceJob creates a new maintenance job
func NewMaintenanceJob(db *database.DB, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		db:  db,
		log: log.With().Str("job", "db_maintenance").Logger(),
	}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "db_maintenance"
}

// Run executes the maintenance pass. VACUUM can be slow on large databases,
// so this job belongs in a quiet window.
func (j *MaintenanceJob) Run() error {
	defer utils.OperationTimer("db_maintenance", j.log)()

	before, err := j.db.GetStats()
	if err != nil {
		j.log.Warn().Err(err).Msg("Failed to read database stats before maintenance")
	}

	if err := j.db.WALCheckpoint(""); err != nil {
		return fmt.Errorf("wal checkpoint failed: %w", err)
	}

	if err := j.db.Vacuum(); err != nil {
		return fmt.Errorf("vacuum failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := j.db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("integrity check failed after maintenance: %w", err)
	}

	after, err := j.db.GetStats()
	if err != nil {
		j.log.Warn().Err(err).Msg("Failed to read database stats after maintenance")
		return nil
	}

	event := j.log.Info().
		Int64("size_bytes", after.SizeBytes).
		Int64("wal_size_bytes", after.WALSizeBytes).
		Int64("freelist_pages", after.FreelistCount)
	if before != nil {
		event = event.Int64("reclaimed_bytes", before.SizeBytes-after.SizeBytes)
	}
	event.Msg("Database maintenance completed")

	return nil
}
