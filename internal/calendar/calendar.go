// Package calendar implements the Exchange Calendar external collaborator
// (§6, optional) plus SUPPLEMENTED FEATURES item 5's documented fallback:
// when no real calendar is wired in, trading days are the naive
// previous-weekday sequence.
//
// Grounded on original_source/src/scheduler/enhanced_multi_day_manager.py's
// documented fallback behavior (see SPEC_FULL.md's SUPPLEMENTED FEATURES).
package calendar

import "time"

// Calendar is the capability contract §6 names.
type Calendar interface {
	TradingDays(start, end time.Time) []time.Time
	LastTradingDay(date time.Time) time.Time
}

// NaiveWeekdays is the zero-value Exchange Calendar: every Monday-Friday is
// a trading day, with no holiday awareness. Used whenever no real exchange
// calendar collaborator is configured.
type NaiveWeekdays struct{}

func (NaiveWeekdays) TradingDays(start, end time.Time) []time.Time {
	var days []time.Time
	for d := normalizeDate(start); !d.After(normalizeDate(end)); d = d.AddDate(0, 0, 1) {
		if isWeekday(d) {
			days = append(days, d)
		}
	}
	return days
}

func (NaiveWeekdays) LastTradingDay(date time.Time) time.Time {
	d := normalizeDate(date).AddDate(0, 0, -1)
	for !isWeekday(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

func isWeekday(d time.Time) bool {
	wd := d.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
