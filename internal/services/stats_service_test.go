package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/novelmovie/novelmovie/internal/llm"
	"github.com/novelmovie/novelmovie/internal/llm/llmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestStats(t *testing.T, dir string, now time.Time) (*StatsService, *time.Time) {
	t.Helper()
	s, err := NewStatsService(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	clock := now
	s.mutex.Lock()
	s.now = func() time.Time { return clock }
	s.stats.LastUpdated = clock
	s.mutex.Unlock()
	return s, &clock
}

func TestStatsRecordAndPersist(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	day := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	s, _ := newTestStats(t, dir, day)

	s.RecordLLMUsage("openrouter", 120, nil)
	s.RecordLLMUsage("openrouter", 30, errors.New("boom"))
	s.RecordLLMUsage("google", 50, nil)

	stats := s.GetUsageStats()
	assert.Equal(t, 3, stats.TodayRequests)
	assert.Equal(t, 1, stats.TodayFailures)
	assert.Equal(t, 200, stats.MonthlyTokens)
	assert.Equal(t, 3, stats.DailyRequests["2026-03-14"])
	assert.Equal(t, 200, stats.MonthlyTokenLog["2026-03"])
	assert.Equal(t, map[string]int{"openrouter": 2, "google": 1}, stats.ProviderRequests)

	// the copy is detached
	stats.ProviderRequests["google"] = 99
	assert.Equal(t, 1, s.GetUsageStats().ProviderRequests["google"])

	require.NoError(t, s.Close())

	reloaded, err := NewStatsService(dir)
	require.NoError(t, err)
	defer reloaded.Close()
	assert.Equal(t, 200, reloaded.GetUsageStats().MonthlyTokenLog["2026-03"])
}

func TestStatsRollPeriod(t *testing.T) {
	s, clock := newTestStats(t, t.TempDir(), time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC))

	s.RecordLLMUsage("google", 10, nil)
	assert.Equal(t, 1, s.GetUsageStats().TodayRequests)

	s.mutex.Lock()
	*clock = clock.Add(2 * time.Hour)
	s.mutex.Unlock()

	stats := s.GetUsageStats()
	assert.Equal(t, 0, stats.TodayRequests)
	assert.Equal(t, 0, stats.MonthlyTokens)
	assert.Equal(t, 10, stats.MonthlyTokenLog["2026-03"])
	assert.Equal(t, 1, stats.DailyRequests["2026-03-31"])
}

func TestStatsReset(t *testing.T) {
	s, _ := newTestStats(t, t.TempDir(), time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	s.RecordLLMUsage("google", 10, nil)

	require.NoError(t, s.ResetStats())
	stats := s.GetUsageStats()
	assert.Zero(t, stats.TodayRequests)
	assert.Empty(t, stats.ProviderRequests)
}

func TestLLMServiceReportsUsage(t *testing.T) {
	s, _ := newTestStats(t, t.TempDir(), time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))

	svc := NewLLMServiceWithProvider("fake", llmtest.NewProvider("hello"))
	svc.SetUsageRecorder(s)

	_, err := svc.Complete(context.Background(), llm.CompletionRequest{Prompt: "hi"})
	require.NoError(t, err)

	stats := s.GetUsageStats()
	assert.Equal(t, 1, stats.TodayRequests)
	assert.Equal(t, 1, stats.ProviderRequests["fake"])
}
