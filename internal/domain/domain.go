// Package domain holds the shared data model (§3): the value types that
// flow between components. None of these types own mutation rights over
// shared state; ownership rules are enforced by the packages that hold
// them (internal/portfolio owns Portfolio, internal/memory owns Memory
// Records, internal/orchestrator owns DayState).
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ticker is an opaque, case-sensitive symbol used as a key across all state.
type Ticker = string

// Signal is one of the analyst-layer enum values.
type Signal string

const (
	SignalBullish Signal = "bullish"
	SignalBearish Signal = "bearish"
	SignalNeutral Signal = "neutral"
)

// Action is one of the PM-layer enum values (§9 open question: the spec
// deliberately keeps the signal triple at the analyst layer and the action
// triple at the PM layer; the Portfolio Manager's decision call in
// internal/portfolio is what turns signals into actions).
type Action string

const (
	ActionLong  Action = "long"
	ActionShort Action = "short"
	ActionHold  Action = "hold"
)

// Urgency is a Notification's urgency level.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// RiskLevel is the basic-mode Risk Manager output bucket.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very_high"
	RiskUnknown  RiskLevel = "unknown"
)

// CommunicationType selects the shape the Communication Coordinator runs.
type CommunicationType string

const (
	CommNone        CommunicationType = "none"
	CommPrivateChat CommunicationType = "private_chat"
	CommMeeting     CommunicationType = "meeting"
)

// PriceBar is an immutable daily OHLCV record for one ticker.
type PriceBar struct {
	Ticker Ticker
	Date   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

// Position tracks the long and short legs of one ticker independently
// (not netted) until an explicit close, per §3's Portfolio invariant.
type Position struct {
	Long           int64
	Short          int64
	LongCostBasis  decimal.Decimal
	ShortCostBasis decimal.Decimal
}

// Portfolio is exclusively owned by the Multi-Day Driver; mutated only by
// the trade executor.
type Portfolio struct {
	Cash              decimal.Decimal
	Positions         map[Ticker]*Position
	MarginRequirement decimal.Decimal
	MarginUsed        decimal.Decimal
}

// Clone returns a deep copy, used whenever a read-only view must be handed
// to per-day state without risking aliasing into the driver's live value.
func (p *Portfolio) Clone() *Portfolio {
	out := &Portfolio{
		Cash:              p.Cash,
		MarginRequirement: p.MarginRequirement,
		MarginUsed:        p.MarginUsed,
		Positions:         make(map[Ticker]*Position, len(p.Positions)),
	}
	for t, pos := range p.Positions {
		cp := *pos
		out.Positions[t] = &cp
	}
	return out
}

// PositionFor returns the position for ticker, creating a zero-valued one
// if absent (never stored until first mutated by the caller).
func (p *Portfolio) PositionFor(ticker Ticker) Position {
	if pos, ok := p.Positions[ticker]; ok {
		return *pos
	}
	return Position{LongCostBasis: decimal.Zero, ShortCostBasis: decimal.Zero}
}

// ToolResult is produced by C3, immutable, and never thrown as an error to
// the caller — execution failures are captured inline (§4.3).
type ToolResult struct {
	ToolName   string
	Signal     Signal
	Confidence float64 // [0,100]
	Metrics    map[string]float64
	Reasoning  string
	Error      string
}

// ToolSelection is the output of C4's select step.
type ToolSelection struct {
	Strategy      string
	SelectedTools []SelectedTool
	Count         int
}

type SelectedTool struct {
	ToolName string
	Reason   string
}

// ToolAnalysis bundles the executed tool results and the synthesis metadata
// an Analyst Signal carries forward into round 2.
type ToolAnalysis struct {
	ToolResults      []ToolResult
	Successful       int
	Failed           int
	SynthesisDetails string
}

// AnalystSignalR1 is the first-round per-ticker output of C5.
type AnalystSignalR1 struct {
	Ticker         Ticker
	Signal         Signal
	Confidence     float64
	Reasoning      string
	ToolSelection  ToolSelection
	ToolAnalysis   ToolAnalysis
	Metadata       map[string]string
}

// TickerSignal is one entry of a round-2 analyst payload.
type TickerSignal struct {
	Ticker     Ticker
	Signal     Signal
	Confidence float64
	Reasoning  string
}

// AnalystSignalR2 is the second-round output of C5, per analyst.
type AnalystSignalR2 struct {
	AnalystID     string
	AnalystName   string
	TickerSignals []TickerSignal
	Timestamp     time.Time
}

// IsEmptyResult implements gateway.EmptyGuard: an empty ticker_signals list
// counts as a structural parse failure (§4.1's empty-response guard).
func (r AnalystSignalR2) IsEmptyResult() bool { return len(r.TickerSignals) == 0 }

// VolatilityInfo is the volatility half of a basic-mode Risk Assessment.
type VolatilityInfo struct {
	AnnualizedVolatility float64
	DailyVolatility      float64
	VolatilityPercentile float64
	DataPoints           int
}

// RiskAssessment covers both basic and portfolio modes; unused fields for
// the other mode are left zero.
type RiskAssessment struct {
	Mode             string // "basic" | "portfolio"
	RiskLevel        RiskLevel
	RiskScore        float64
	CurrentPrice     decimal.Decimal
	VolatilityInfo   VolatilityInfo
	RiskAssessment   string

	MaxShares             int64
	RemainingPositionLimit decimal.Decimal
	Reasoning             string
}

// PortfolioDecision is one per ticker, produced by C7.
type PortfolioDecision struct {
	Ticker     Ticker
	Action     Action
	Quantity   int64 // 0 in direction mode
	Confidence float64
	Reasoning  string
}

// Notification is broadcast fan-out to all registered agents.
type Notification struct {
	ID          string
	SenderAgent string
	Content     string
	Urgency     Urgency
	Category    string
	Timestamp   time.Time
}

// CommunicationDecision is C8's per-cycle gate.
type CommunicationDecision struct {
	ShouldCommunicate bool
	Type              CommunicationType
	TargetAnalysts    []string
	DiscussionTopic   string
	Reasoning         string
}

// TranscriptTurn is one utterance in a Communication Transcript.
type TranscriptTurn struct {
	Speaker   string
	Content   string
	Round     int
	Timestamp time.Time
}

// CommunicationTranscript is the ordered record of one dialog (private
// chat or meeting), plus any signal adjustments that occurred during it.
type CommunicationTranscript struct {
	ID                string
	Type              CommunicationType
	Participants      []string
	Turns             []TranscriptTurn
	SignalAdjustments []TickerSignal
}

// MemoryRecord is owned by the agent named in UserID; only that agent's
// reflection may update or delete it (§3, §4.10 "strict ownership").
type MemoryRecord struct {
	ID        string
	UserID    string
	Content   string
	Metadata  map[string]string
	CreatedAt time.Time
}

// DayResult is the per-day output the Multi-Day Driver accumulates.
type DayResult struct {
	Date        time.Time
	PreMarket   PreMarketResult
	PostMarket  PostMarketResult
}

// PreMarketResult bundles what the Per-Day Orchestrator returns before
// (or instead of, in live mode) trade execution.
type PreMarketResult struct {
	Signals        map[string]any // canonical per-agent signal payloads
	FinalDecisions map[Ticker]PortfolioDecision
	TradesDeferred bool
	CurrentPrices  map[Ticker]decimal.Decimal
	LiveEnv        map[string]any
	RawResults     map[string]any
}

// PostMarketResult bundles the Reflection Engine's output for one day.
type PostMarketResult struct {
	ReflectionResults []ReflectionOutcome
}

// ReflectionOutcome records one memory operation attempt by the Reflection
// Engine, whether it was applied or refused.
type ReflectionOutcome struct {
	AnalystID   string
	Operation   string // "none" | "search_and_update" | "search_and_delete"
	Applied     bool
	RefusedWhy  string
}
