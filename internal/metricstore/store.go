// Package metricstore holds ingested metrics in memory and computes
// per-type aggregate summaries. Durable persistence is out of scope; the
// store exists to give the caching and resilience layers real data to
// serve.
package metricstore

import (
	"errors"
	"sync"
	"time"
)

// Periods accepted by Summarize.
const (
	PeriodAll    = "all"
	PeriodDaily  = "daily"
	PeriodHourly = "hourly"
)

// ErrInvalidPeriod is returned for an unrecognized summary period.
var ErrInvalidPeriod = errors.New("metricstore: period must be one of: all, daily, hourly")

// Metric is a single ingested data point.
type Metric struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Type      string    `json:"type"`
}

// Summary aggregates metrics of one type over a period.
type Summary struct {
	Type         string  `json:"type"`
	Period       string  `json:"period"`
	Count        int     `json:"count"`
	AverageValue float64 `json:"average_value"`
	MinValue     float64 `json:"min_value"`
	MaxValue     float64 `json:"max_value"`
	LatestValue  float64 `json:"latest_value"`
}

// Store is an append-only in-memory metric store.
type Store struct {
	mu      sync.RWMutex
	metrics []Metric
	now     func() time.Time
}

// New creates an empty metric store.
func New() *Store {
	return &Store{now: time.Now}
}

// SetClock overrides the time source used for period cutoffs. Intended
// for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Add appends a metric. Timestamps are normalized to UTC.
func (s *Store) Add(m Metric) {
	m.Timestamp = m.Timestamp.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, m)
	recordIngested(m.Type)
}

// List returns up to limit most recent metrics in insertion order,
// optionally filtered by type. An empty type matches everything.
func (s *Store) List(metricType string, limit int) []Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []Metric
	if metricType == "" {
		filtered = s.metrics
	} else {
		for _, m := range s.metrics {
			if m.Type == metricType {
				filtered = append(filtered, m)
			}
		}
	}

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}

	out := make([]Metric, len(filtered))
	copy(out, filtered)
	return out
}

// Len returns the total number of stored metrics.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.metrics)
}

// Summarize aggregates metrics of the given type over the period. Metrics
// outside the period window are excluded; an empty result yields a zeroed
// summary, not an error. LatestValue is the most recently ingested value.
func (s *Store) Summarize(metricType, period string) (Summary, error) {
	var cutoff time.Time

	s.mu.RLock()
	defer s.mu.RUnlock()

	switch period {
	case PeriodAll:
	case PeriodDaily:
		cutoff = s.now().UTC().Add(-24 * time.Hour)
	case PeriodHourly:
		cutoff = s.now().UTC().Add(-time.Hour)
	default:
		return Summary{}, ErrInvalidPeriod
	}

	summary := Summary{Type: metricType, Period: period}

	var sum float64
	for _, m := range s.metrics {
		if m.Type != metricType {
			continue
		}
		if !cutoff.IsZero() && m.Timestamp.Before(cutoff) {
			continue
		}

		if summary.Count == 0 {
			summary.MinValue = m.Value
			summary.MaxValue = m.Value
		} else {
			if m.Value < summary.MinValue {
				summary.MinValue = m.Value
			}
			if m.Value > summary.MaxValue {
				summary.MaxValue = m.Value
			}
		}
		summary.Count++
		summary.LatestValue = m.Value
		sum += m.Value
	}

	if summary.Count > 0 {
		summary.AverageValue = sum / float64(summary.Count)
	}
	return summary, nil
}
