package portfolio

import (
	"testing"
	"time"
)

func TestPerformanceTrackerRecentWindowAveragesLastNDays(t *testing.T) {
	tr := NewPerformanceTracker()
	base := time.Date(2026, 7, 27, 0, 0, 0, 0, time.UTC)

	tr.RecordDay(base, map[string]float64{"market": 1.0})
	tr.RecordDay(base.AddDate(0, 0, 1), map[string]float64{"market": 0.0})
	tr.RecordDay(base.AddDate(0, 0, 2), map[string]float64{"market": 0.5})

	snap := tr.RecentWindow(2)
	if snap.Days != 2 {
		t.Fatalf("expected a 2-day window, got %d", snap.Days)
	}
	if got := snap.WinRates["market"]; got < 0.24 || got > 0.26 {
		t.Fatalf("expected ~0.25 averaging last 2 days (0.0, 0.5), got %v", got)
	}
}

func TestPerformanceTrackerRecentWindowOmitsUnscoredAgents(t *testing.T) {
	tr := NewPerformanceTracker()
	day := time.Now()
	tr.RecordDay(day, map[string]float64{"market": 1.0})

	snap := tr.RecentWindow(5)
	if _, ok := snap.WinRates["fundamentals"]; ok {
		t.Fatal("expected an agent with no recorded days to be omitted, not zeroed")
	}
}

func TestPerformanceTrackerRecentWindowEmpty(t *testing.T) {
	tr := NewPerformanceTracker()
	snap := tr.RecentWindow(3)
	if snap.Days != 0 || len(snap.WinRates) != 0 {
		t.Fatalf("expected a zero-value snapshot with no recorded days, got %+v", snap)
	}
}

func TestPerformanceTrackerRecentWindowClampsToAvailableDays(t *testing.T) {
	tr := NewPerformanceTracker()
	tr.RecordDay(time.Now(), map[string]float64{"market": 1.0})

	snap := tr.RecentWindow(10)
	if snap.Days != 1 {
		t.Fatalf("expected the window to clamp to 1 available day, got %d", snap.Days)
	}
}
