package portfolio

import (
	"fmt"
	"sync"
	"time"
)

// dayPerf is one day's entry in the PerformanceTracker's rolling window.
type dayPerf struct {
	Date     time.Time
	WinRates map[string]float64
}

// PerformanceTracker implements SUPPLEMENTED FEATURES item 4's "OKR-style
// running performance snapshot": the Multi-Day Driver feeds it one entry per
// closed day, and the Per-Day Orchestrator reads back a RecentWindow to pass
// into the next day's PM Decide call, grounded on
// original_source/src/okr/okr_manager.py's rolling win-rate bookkeeping.
type PerformanceTracker struct {
	mu   sync.Mutex
	days []dayPerf
}

func NewPerformanceTracker() *PerformanceTracker {
	return &PerformanceTracker{}
}

// RecordDay appends one day's per-agent win rates. Callers pass a fraction
// in [0,1] per agent ID; agents with no scored tickers that day are
// omitted rather than recorded as 0.
func (t *PerformanceTracker) RecordDay(date time.Time, winRates map[string]float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make(map[string]float64, len(winRates))
	for k, v := range winRates {
		cp[k] = v
	}
	t.days = append(t.days, dayPerf{Date: date, WinRates: cp})
}

// RecentWindow averages the last n recorded days' win rates per agent, the
// shape the Portfolio Manager's Decide call consumes.
func (t *PerformanceTracker) RecentWindow(n int) PerformanceSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n <= 0 || len(t.days) == 0 {
		return PerformanceSnapshot{}
	}
	start := len(t.days) - n
	if start < 0 {
		start = 0
	}
	window := t.days[start:]

	sums := map[string]float64{}
	counts := map[string]int{}
	for _, d := range window {
		for agent, rate := range d.WinRates {
			sums[agent] += rate
			counts[agent]++
		}
	}

	winRates := make(map[string]float64, len(sums))
	for agent, sum := range sums {
		winRates[agent] = sum / float64(counts[agent])
	}

	return PerformanceSnapshot{
		Days:     len(window),
		WinRates: winRates,
		Summary:  fmt.Sprintf("%d-day rolling window over %d agents", len(window), len(winRates)),
	}
}
