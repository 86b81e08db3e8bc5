package utils

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCountersAreConcurrencySafe(t *testing.T) {
	m := NewMetricsCollector()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncrementCounter("hits")
			m.IncGauge("running")
			m.DecGauge("running")
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 50, m.GetCounterValue("hits"))
	assert.EqualValues(t, 0, m.GetGauge("running"))
	assert.EqualValues(t, 0, m.GetCounterValue("missing"))
}

func TestHistogramSnapshot(t *testing.T) {
	m := NewMetricsCollector()
	m.RecordHistogram("latency", 30)
	m.RecordHistogram("latency", 10)
	m.RecordHistogram("latency", 20)

	h := m.GetMetrics()["histograms"].(map[string]map[string]int64)["latency"]
	assert.EqualValues(t, 3, h["count"])
	assert.EqualValues(t, 60, h["sum"])
	assert.EqualValues(t, 10, h["min"])
	assert.EqualValues(t, 30, h["max"])
}

func TestDomainRecorders(t *testing.T) {
	m := NewMetricsCollector()
	m.RecordAPIRequest("POST", 201, 5*time.Millisecond)
	m.RecordAPIRequest("GET", 404, time.Millisecond)
	m.RecordLLMRequest("OpenRouter", 120, time.Second, nil)
	m.RecordLLMRequest("OpenRouter", 0, time.Second, errors.New("down"))
	m.RecordLibraryRequest(503, time.Millisecond, nil)

	assert.EqualValues(t, 2, m.GetCounterValue("api_requests_total"))
	assert.EqualValues(t, 1, m.GetCounterValue("api_responses_2xx"))
	assert.EqualValues(t, 1, m.GetCounterValue("api_responses_4xx"))
	assert.EqualValues(t, 2, m.GetCounterValue("llm_requests_openrouter"))
	assert.EqualValues(t, 120, m.GetCounterValue("llm_tokens_total"))
	assert.EqualValues(t, 1, m.GetCounterValue("llm_errors_total"))
	assert.EqualValues(t, 1, m.GetCounterValue("character_library_failures_total"))
}
