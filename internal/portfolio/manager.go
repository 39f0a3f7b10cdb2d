// Package portfolio implements the Portfolio Manager (C7): aggregates
// per-ticker analyst signals, risk info, and recalled memories into
// decisions, plus the trade executor that turns those decisions into
// Portfolio mutations (§4.7, §4.9's "invoke the trade executor").
//
// Grounded on the teacher's decimal-based cash/position bookkeeping
// (internal/dataflows/longport.go's quote-to-decimal conversions) and the
// Model Gateway's CallStructured helper for the decision call.
package portfolio

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dyike/CortexGo/internal/domain"
	"github.com/dyike/CortexGo/internal/gateway"
	"github.com/dyike/CortexGo/internal/memory"
	"github.com/dyike/CortexGo/internal/utils"
)

// Mode mirrors §4.7's two Portfolio Manager modes.
type Mode string

const (
	ModeDirection Mode = "direction"
	ModePortfolio Mode = "portfolio"
)

// PerformanceSnapshot is the minimal slice of the dashboard side-channel
// the PM consumes (SUPPLEMENTED FEATURES item 4): last N days of decisions
// and per-agent win rates.
type PerformanceSnapshot struct {
	Days     int
	WinRates map[string]float64 // agent_id -> win rate in [0,1]
	Summary  string
}

// Manager is C7.
type Manager struct {
	client gateway.Client
	memory memory.Store
}

func New(client gateway.Client, store memory.Store) *Manager {
	return &Manager{client: client, memory: store}
}

// CanonicalSignal is the single shape §9's redesign flag mandates at the
// PM's input boundary: {ticker_signals: [{...}]}, after normalizing away
// the teacher's "either dict or list of dicts" ambiguity.
type CanonicalSignal struct {
	Ticker     domain.Ticker
	Signal     domain.Signal
	Confidence float64
	Reasoning  string
	ErrorNote  string
}

// NormalizeAnalystSignals implements §4.7's "accepts either {ticker ->
// {...}} or {ticker_signals: [...]}" collection step, folded into the one
// canonical shape analysts_by_ticker[agent_id][ticker] -> CanonicalSignal.
// r1 and r2 hold what each analyst emitted (AnalystSignalR1 maps and
// AnalystSignalR2 values, keyed by agent id as the Orchestrator's
// analyst_signals map stores them); an agent's r2 entries override its r1
// entries for the same ticker.
func NormalizeAnalystSignals(r1 map[string]map[domain.Ticker]domain.AnalystSignalR1, r2 map[string]domain.AnalystSignalR2) map[string]map[domain.Ticker]CanonicalSignal {
	out := map[string]map[domain.Ticker]CanonicalSignal{}

	for agentID, byTicker := range r1 {
		out[agentID] = map[domain.Ticker]CanonicalSignal{}
		for ticker, s := range byTicker {
			out[agentID][ticker] = canonicalize(ticker, s.Signal, s.Confidence, s.Reasoning)
		}
	}

	for agentID, sig := range r2 {
		if _, ok := out[agentID]; !ok {
			out[agentID] = map[domain.Ticker]CanonicalSignal{}
		}
		for _, ts := range sig.TickerSignals {
			out[agentID][ts.Ticker] = canonicalize(ts.Ticker, ts.Signal, ts.Confidence, ts.Reasoning)
		}
	}

	return out
}

func canonicalize(ticker domain.Ticker, signal domain.Signal, confidence float64, reasoning string) CanonicalSignal {
	errNote := ""
	lower := strings.ToLower(reasoning)
	if strings.Contains(lower, "failed to synthesize") || strings.Contains(lower, "synthesis failed") {
		errNote = "analyst reported a synthesis failure"
	}
	return CanonicalSignal{Ticker: ticker, Signal: signal, Confidence: confidence, Reasoning: reasoning, ErrorNote: errNote}
}

// BuildMemoryQuery implements §4.7's recall query builder: "{ticker}
// investment decision {bullish|bearish|divergence} signals", the last
// token picked by majority of analyst directions for that ticker.
func BuildMemoryQuery(ticker domain.Ticker, perAgent map[string]map[domain.Ticker]CanonicalSignal) string {
	counts := map[domain.Signal]int{}
	for _, byTicker := range perAgent {
		if s, ok := byTicker[ticker]; ok {
			counts[s.Signal]++
		}
	}

	bull, bear, neutral := counts[domain.SignalBullish], counts[domain.SignalBearish], counts[domain.SignalNeutral]

	descriptor := "divergence"
	switch {
	case bull > bear && bull > neutral:
		descriptor = "bullish"
	case bear > bull && bear > neutral:
		descriptor = "bearish"
	}

	return fmt.Sprintf("%s investment decision %s signals", ticker, descriptor)
}

type decisionWire struct {
	Action     string  `json:"action"`
	Quantity   int64   `json:"quantity"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

type decisionsWire struct {
	Decisions map[string]decisionWire `json:"decisions"`
}

func (w decisionsWire) IsEmptyResult() bool { return len(w.Decisions) == 0 }

// Decide implements §4.7's main operation: builds the prompt from the
// collected inputs and calls the Model Gateway for structured decisions,
// one per ticker. On any failure the default factory returns hold/0/0 for
// every ticker named in tickers.
func (m *Manager) Decide(ctx context.Context, modelID, provider string, mode Mode, tickers []domain.Ticker, perAgent map[string]map[domain.Ticker]CanonicalSignal, riskByTicker map[domain.Ticker]domain.RiskAssessment, weights map[string]float64, recentPerf PerformanceSnapshot, portfolioState *domain.Portfolio) map[domain.Ticker]domain.PortfolioDecision {
	memories := m.recallMemories(ctx, tickers, perAgent)

	signalsJSON, _ := json.Marshal(perAgent)
	weightsJSON, _ := json.Marshal(weights)
	memoriesJSON, _ := json.Marshal(memories)
	perfJSON, _ := json.Marshal(recentPerf)
	portfolioJSON := "{}"
	if mode == ModePortfolio && portfolioState != nil {
		raw, _ := json.Marshal(portfolioSnapshotView(portfolioState))
		portfolioJSON = string(raw)
	}

	prompt, err := utils.LoadPromptWithContext("portfolio_manager", map[string]string{
		"Mode":              string(mode),
		"SignalsByTicker":   string(signalsJSON),
		"AnalystWeights":    string(weightsJSON),
		"Memories":          string(memoriesJSON),
		"RecentPerformance": string(perfJSON),
		"PortfolioState":    portfolioJSON,
	})

	defaultDecisions := defaultDecisionsFor(tickers)
	if err != nil {
		return defaultDecisions
	}

	messages := []gateway.Message{
		{Role: gateway.RoleSystem, Content: "You are the portfolio manager making final trading decisions."},
		{Role: gateway.RoleUser, Content: prompt},
	}

	wire, callErr := gateway.CallStructured[decisionsWire](ctx, m.client, modelID, provider, messages, gateway.StructuredOptions[decisionsWire]{
		Temperature: 0.2,
		Retries:     3,
		DefaultFactory: func() decisionsWire {
			return decisionsWire{Decisions: map[string]decisionWire{}}
		},
	})
	if callErr != nil && len(wire.Decisions) == 0 {
		return defaultDecisions
	}

	out := map[domain.Ticker]domain.PortfolioDecision{}
	for _, ticker := range tickers {
		w, ok := wire.Decisions[ticker]
		if !ok {
			out[ticker] = domain.PortfolioDecision{Ticker: ticker, Action: domain.ActionHold, Quantity: 0, Confidence: 0}
			continue
		}
		action := domain.Action(w.Action)
		switch action {
		case domain.ActionLong, domain.ActionShort, domain.ActionHold:
		default:
			action = domain.ActionHold
		}
		quantity := w.Quantity
		if quantity < 0 {
			quantity = 0
		}
		confidence := w.Confidence
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 100 {
			confidence = 100
		}
		out[ticker] = domain.PortfolioDecision{
			Ticker: ticker, Action: action, Quantity: quantity, Confidence: confidence, Reasoning: w.Reasoning,
		}
	}
	return out
}

func defaultDecisionsFor(tickers []domain.Ticker) map[domain.Ticker]domain.PortfolioDecision {
	out := make(map[domain.Ticker]domain.PortfolioDecision, len(tickers))
	for _, t := range tickers {
		out[t] = domain.PortfolioDecision{Ticker: t, Action: domain.ActionHold, Quantity: 0, Confidence: 0}
	}
	return out
}

func (m *Manager) recallMemories(ctx context.Context, tickers []domain.Ticker, perAgent map[string]map[domain.Ticker]CanonicalSignal) map[domain.Ticker][]string {
	out := map[domain.Ticker][]string{}
	if m.memory == nil {
		return out
	}
	sorted := append([]domain.Ticker{}, tickers...)
	sort.Strings(sorted)
	for _, ticker := range sorted {
		query := BuildMemoryQuery(ticker, perAgent)
		// §4.7: "recalled memories... scoped to user_id = portfolio_manager
		// regardless of mode".
		records, err := m.memory.Search(ctx, query, "portfolio_manager", 5)
		if err != nil {
			continue
		}
		for _, r := range records {
			out[ticker] = append(out[ticker], r.Content)
		}
	}
	return out
}

func portfolioSnapshotView(p *domain.Portfolio) map[string]any {
	positions := map[string]any{}
	for t, pos := range p.Positions {
		positions[t] = map[string]any{
			"long": pos.Long, "short": pos.Short,
			"long_cost_basis": pos.LongCostBasis.String(), "short_cost_basis": pos.ShortCostBasis.String(),
		}
	}
	return map[string]any{
		"cash":               p.Cash.String(),
		"positions":          positions,
		"margin_requirement": p.MarginRequirement.String(),
		"margin_used":        p.MarginUsed.String(),
	}
}
