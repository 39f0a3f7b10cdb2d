// Package orchestrator implements the Per-Day Orchestrator (C9): runs the
// full analyst -> risk -> portfolio-manager -> communication -> trade
// pipeline for one trading day, enforcing phase ordering and the
// deferred-execution contract in live mode (§4.9).
//
// Grounded on the teacher's internal/cli command-runner shape (one
// exported Run* entry point per concern, directories ensured up front) and
// on golang.org/x/sync/errgroup for the worker-pool fan-out §5 specifies
// — the teacher itself schedules its agent graph through eino's own
// executor, which this package does not reuse (see DESIGN.md).
package orchestrator

import (
	"sync"
	"time"

	"github.com/dyike/CortexGo/internal/domain"
)

// CommunicationLogs mirrors §4.9 step 1's communication_logs field.
type CommunicationLogs struct {
	PrivateChats          []domain.CommunicationTranscript
	Meetings              []domain.CommunicationTranscript
	CommunicationDecisions []domain.CommunicationDecision
}

// AnalystStatus records §4.9's "status ok/error/no_result" per analyst,
// the bookkeeping P2 requires ("either analyst_signals[A] is fully merged
// or A is marked error/no_result").
type AnalystStatus string

const (
	StatusOK       AnalystStatus = "ok"
	StatusError    AnalystStatus = "error"
	StatusNoResult AnalystStatus = "no_result"
)

// DayState is §9's decomposed "dynamic state bag": explicit fields,
// passed by reference. Parallel analyst tasks are not handed copies: every
// round-one task reads the same DayState's ticker and date fields and writes
// only through mergeRoundOne; round-two prompts are built from
// snapshotRoundOne's copy.
type DayState struct {
	Tickers       []domain.Ticker
	LookbackStart time.Time
	EndDate       time.Time
	TradingDate   time.Time
	IsLiveMode    bool

	// Portfolio is the carry-in view for portfolio mode; nil in signal mode.
	// It is a read-only snapshot — the Orchestrator never mutates it
	// in place, matching §5's "Portfolio is single-writer (trade executor)
	// and lives inside the Multi-Day Driver".
	Portfolio *domain.Portfolio

	AnalystSignalsR1 map[string]map[domain.Ticker]domain.AnalystSignalR1
	AnalystSignalsR2 map[string]domain.AnalystSignalR2
	AnalystStatus    map[string]AnalystStatus

	RiskByTicker  map[domain.Ticker]domain.RiskAssessment
	CurrentPrices map[domain.Ticker]float64

	CommunicationLogs CommunicationLogs
	Notifications     []domain.Notification

	// mu guards AnalystSignalsR1/R2/AnalystStatus merges, per §5's
	// "written by analyst tasks only through the Orchestrator, which holds
	// a mutex around each merge".
	mu sync.Mutex
}

func newDayState(tickers []domain.Ticker, tradingDate time.Time, isLiveMode bool, carryIn *domain.Portfolio) *DayState {
	return &DayState{
		Tickers:          tickers,
		LookbackStart:    tradingDate.AddDate(0, 0, -30),
		EndDate:          tradingDate,
		TradingDate:      tradingDate,
		IsLiveMode:       isLiveMode,
		Portfolio:        carryIn,
		AnalystSignalsR1: map[string]map[domain.Ticker]domain.AnalystSignalR1{},
		AnalystSignalsR2: map[string]domain.AnalystSignalR2{},
		AnalystStatus:    map[string]AnalystStatus{},
		RiskByTicker:     map[domain.Ticker]domain.RiskAssessment{},
		CurrentPrices:    map[domain.Ticker]float64{},
	}
}

// mergeRoundOne commits one agent's full per-ticker round-1 result under a
// serial merge (§4.9 ordering guarantee: "no round-2 task observes a
// partial round-1 merge").
func (s *DayState) mergeRoundOne(agentID string, byTicker map[domain.Ticker]domain.AnalystSignalR1, status AnalystStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AnalystSignalsR1[agentID] = byTicker
	s.AnalystStatus[agentID] = status
}

// mergeRoundTwo commits one agent's round-2 payload under the same mutex.
func (s *DayState) mergeRoundTwo(agentID string, signal domain.AnalystSignalR2) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AnalystSignalsR2[agentID] = signal
}

// snapshotRoundOne returns a deep-enough copy of the committed round-1
// results for building round-2 prompts, so round-2 tasks never observe a
// live, still-mutating map.
func (s *DayState) snapshotRoundOne() map[string]map[domain.Ticker]domain.AnalystSignalR1 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]map[domain.Ticker]domain.AnalystSignalR1, len(s.AnalystSignalsR1))
	for agentID, byTicker := range s.AnalystSignalsR1 {
		cp := make(map[domain.Ticker]domain.AnalystSignalR1, len(byTicker))
		for t, sig := range byTicker {
			cp[t] = sig
		}
		out[agentID] = cp
	}
	return out
}
