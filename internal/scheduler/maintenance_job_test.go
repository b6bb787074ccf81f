package scheduler

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/appadaycreator/jquants-stock-prediction-sub005/internal/modules/universe"
	enginetest "github.com/appadaycreator/jquants-stock-prediction-sub005/internal/testing"
)

func TestMaintenanceJob_Run(t *testing.T) {
	db := enginetest.NewTestDB(t)

	history := universe.NewHistoryDB(db.Conn(), zerolog.Nop())
	prices := enginetest.NewDailyPriceFixtures("7203.T", 50, time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC))
	require.NoError(t, history.UpsertPrices("7203.T", prices))

	job := NewMaintenanceJob(db, zerolog.Nop())
	require.NoError(t, job.Run())
}
