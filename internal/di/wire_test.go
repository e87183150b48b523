package di

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/finfolio/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:                t.TempDir(),
		AlphaVantageAPIKey:     "test-key",
		AlphaVantageBaseURL:    "http://127.0.0.1:1",
		AlphaVantageDailyLimit: 25,
		QuoteCacheTTL:          time.Minute,
		QuoteFetchTimeout:      time.Second,
		QuoteRetention:         time.Hour,
		WatchlistPollInterval:  time.Minute,
		SuggestionQuietWindow:  10 * time.Millisecond,
		ValuationConcurrency:   2,
		StoreBackend:           config.StoreBackendSQLite,
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	assert.NotNil(t, container.RecordsDB)
	assert.NotNil(t, container.ClientDataDB)
	assert.NotNil(t, container.RecordStore)
	assert.NotNil(t, container.QuoteCache)
	assert.NotNil(t, container.PositionStore)
	assert.NotNil(t, container.ValuationEngine)
	assert.NotNil(t, container.WatchlistService)
	assert.NotNil(t, container.Synchronizer)
	assert.NotNil(t, container.Suggester)
	assert.Nil(t, container.BackupService)

	assert.NotNil(t, jobs.ClientDataCleanup)
	assert.NotNil(t, jobs.QuotePrune)
	assert.NotNil(t, jobs.BudgetReset)
	assert.NotNil(t, jobs.DailyMaintenance)
	assert.Nil(t, jobs.Backup)

	names := make([]string, 0)
	for _, st := range container.Scheduler.Status() {
		names = append(names, st.Name)
	}
	assert.Equal(t, []string{"client_data_cleanup", "daily_maintenance", "quote_cache_prune", "upstream_budget_reset"}, names)
}

func TestWire_HoldingsSurviveRestart(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	first, _, err := Wire(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	_, err = first.PositionStore.Upsert(ctx, "u1", "AAPL", 10, decimalFromString(t, "100"), time.Time{})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, _, err := Wire(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })

	holdings, err := second.PositionStore.ListFor(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, "AAPL", holdings[0].Symbol)
}

func TestWire_MemoryBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreBackend = config.StoreBackendMemory
	cfg.Backup = &config.BackupConfig{Bucket: "finfolio-backups", Schedule: "0 30 3 * * *", Region: "auto"}

	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	assert.Nil(t, container.RecordsDB)
	assert.Len(t, container.Databases(), 1)
	assert.Nil(t, container.BackupService, "nothing durable to back up")
	assert.Nil(t, jobs.Backup)
}
