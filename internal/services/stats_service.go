// internal/services/stats_service.go
package services

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/novelmovie/novelmovie/internal/utils"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
	// daily buckets older than this are dropped on save
	dailyRetention = 90
)

// UsageStats counts LLM calls and tokens over time.
type UsageStats struct {
	TodayRequests    int            `json:"todayRequests"`
	TodayFailures    int            `json:"todayFailures"`
	MonthlyTokens    int            `json:"monthlyTokens"`
	DailyRequests    map[string]int `json:"dailyRequests"`
	MonthlyTokenLog  map[string]int `json:"monthlyTokenLog"`
	ProviderRequests map[string]int `json:"providerRequests"`
	LastUpdated      time.Time      `json:"lastUpdated"`
}

// UsageRecorder receives one event per completed LLM call.
type UsageRecorder interface {
	RecordLLMUsage(provider string, tokens int, err error)
}

// StatsService persists LLM usage counters to a JSON file under the data dir.
// Writes are batched; Close flushes.
type StatsService struct {
	statsFile    string
	mutex        sync.Mutex
	stats        *UsageStats
	isDirty      bool
	lastSaveTime time.Time
	saveInterval time.Duration
	now          func() time.Time
	stop         chan struct{}
	closeOnce    sync.Once
}

// NewStatsService loads dataDir/stats/usage_stats.json or starts empty.
func NewStatsService(dataDir string) (*StatsService, error) {
	basePath := filepath.Join(dataDir, "stats")
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create stats directory: %w", err)
	}

	s := &StatsService{
		statsFile:    filepath.Join(basePath, "usage_stats.json"),
		saveInterval: 30 * time.Second,
		now:          time.Now,
		stop:         make(chan struct{}),
	}

	stats, err := s.loadStats()
	if err != nil {
		if !os.IsNotExist(err) {
			utils.GetLogger().Named("stats").Warn("usage stats unreadable, starting fresh", map[string]interface{}{"error": err.Error()})
		}
		stats = newUsageStats(s.now())
	}
	s.stats = stats
	s.rollPeriod(s.now())

	go s.periodicSave()
	return s, nil
}

func newUsageStats(now time.Time) *UsageStats {
	return &UsageStats{
		DailyRequests:    make(map[string]int),
		MonthlyTokenLog:  make(map[string]int),
		ProviderRequests: make(map[string]int),
		LastUpdated:      now,
	}
}

func (s *StatsService) loadStats() (*UsageStats, error) {
	data, err := os.ReadFile(s.statsFile)
	if err != nil {
		return nil, err
	}
	var stats UsageStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("failed to parse stats data: %w", err)
	}
	if stats.DailyRequests == nil {
		stats.DailyRequests = make(map[string]int)
	}
	if stats.MonthlyTokenLog == nil {
		stats.MonthlyTokenLog = make(map[string]int)
	}
	if stats.ProviderRequests == nil {
		stats.ProviderRequests = make(map[string]int)
	}
	return &stats, nil
}

// rollPeriod resets the today and this-month counters when the period changed.
func (s *StatsService) rollPeriod(now time.Time) {
	last := s.stats.LastUpdated
	if now.Format(dayLayout) != last.Format(dayLayout) {
		s.stats.TodayRequests = 0
		s.stats.TodayFailures = 0
		s.isDirty = true
	}
	if now.Format(monthLayout) != last.Format(monthLayout) {
		s.stats.MonthlyTokens = 0
		s.isDirty = true
	}
}

// RecordLLMUsage implements UsageRecorder.
func (s *StatsService) RecordLLMUsage(provider string, tokens int, err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	s.rollPeriod(now)

	s.stats.TodayRequests++
	if err != nil {
		s.stats.TodayFailures++
	}
	s.stats.MonthlyTokens += tokens
	s.stats.DailyRequests[now.Format(dayLayout)]++
	s.stats.MonthlyTokenLog[now.Format(monthLayout)] += tokens
	if provider != "" {
		s.stats.ProviderRequests[provider]++
	}
	s.stats.LastUpdated = now
	s.isDirty = true

	if now.Sub(s.lastSaveTime) > s.saveInterval {
		if err := s.saveLocked(); err != nil {
			utils.GetLogger().Named("stats").Warn("failed to save usage stats", map[string]interface{}{"error": err.Error()})
		}
	}
}

// GetUsageStats returns a copy of the counters.
func (s *StatsService) GetUsageStats() *UsageStats {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.rollPeriod(s.now())
	return &UsageStats{
		TodayRequests:    s.stats.TodayRequests,
		TodayFailures:    s.stats.TodayFailures,
		MonthlyTokens:    s.stats.MonthlyTokens,
		DailyRequests:    maps.Clone(s.stats.DailyRequests),
		MonthlyTokenLog:  maps.Clone(s.stats.MonthlyTokenLog),
		ProviderRequests: maps.Clone(s.stats.ProviderRequests),
		LastUpdated:      s.stats.LastUpdated,
	}
}

// ResetStats clears every counter.
func (s *StatsService) ResetStats() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.stats = newUsageStats(s.now())
	s.isDirty = true
	return s.saveLocked()
}

func (s *StatsService) saveLocked() error {
	if !s.isDirty {
		return nil
	}

	cutoff := s.now().AddDate(0, 0, -dailyRetention).Format(dayLayout)
	for day := range s.stats.DailyRequests {
		if day < cutoff {
			delete(s.stats.DailyRequests, day)
		}
	}

	data, err := json.MarshalIndent(s.stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize stats: %w", err)
	}
	tempFile := s.statsFile + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp stats file: %w", err)
	}
	if err := os.Rename(tempFile, s.statsFile); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to replace stats file: %w", err)
	}

	s.isDirty = false
	s.lastSaveTime = s.now()
	return nil
}

func (s *StatsService) periodicSave() {
	ticker := time.NewTicker(s.saveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mutex.Lock()
			if err := s.saveLocked(); err != nil {
				utils.GetLogger().Named("stats").Warn("periodic stats save failed", map[string]interface{}{"error": err.Error()})
			}
			s.mutex.Unlock()
		case <-s.stop:
			return
		}
	}
}

// Close stops the save loop and flushes pending counters.
func (s *StatsService) Close() error {
	s.closeOnce.Do(func() { close(s.stop) })

	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.saveLocked()
}
