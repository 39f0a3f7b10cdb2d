// Package analyst implements the Analyst Agent (C5): per ticker, selects
// tools, executes them, synthesizes a first-round result, and on a second
// round revises using peers' outputs and notifications.
//
// Grounded on the teacher's internal/agents/analysts package shape (one
// constructor per analyst type, a Generate-style entry point per round)
// and on gateway.CallStructured for the round-2 structured call.
package analyst

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dyike/CortexGo/internal/calendar"
	"github.com/dyike/CortexGo/internal/config"
	"github.com/dyike/CortexGo/internal/domain"
	"github.com/dyike/CortexGo/internal/gateway"
	"github.com/dyike/CortexGo/internal/selector"
	"github.com/dyike/CortexGo/internal/utils"
)

var titleCaser = cases.Title(language.English)

// Agent is C5, bound to one analyst_type for the lifetime of the day.
type Agent struct {
	AnalystType string // one of config.AnalystType's values
	AgentID     string // e.g. "fundamental_analyst_agent"
	AgentName   string

	cfg      *config.Config
	client   gateway.Client
	selector *selector.Selector
}

func New(analystType string, cfg *config.Config, client gateway.Client, sel *selector.Selector) *Agent {
	return &Agent{
		AnalystType: analystType,
		AgentID:     analystType + "_analyst_agent",
		AgentName:   titleCaser.String(analystType) + " Analyst",
		cfg:         cfg,
		client:      client,
		selector:    sel,
	}
}

// RoundOneResult is what RoundOne produces for a single ticker, kept
// separate from domain.AnalystSignalR1 only in that it names the owning
// agent; the Orchestrator stores the embedded signal under
// analyst_signals[agent_id][ticker].
type RoundOneResult struct {
	AgentID string
	Signal  domain.AnalystSignalR1
}

// RoundOne implements §4.5's round-1 steps 1-4 for one ticker: choose
// model, adjust end_date to the last completed trading day, select ->
// execute -> synthesize, and emit the Analyst Signal.
func (a *Agent) RoundOne(ctx context.Context, ticker string, lookbackStart, tradingDate time.Time, marketConditions string) RoundOneResult {
	binding := a.cfg.ModelFor(a.AgentID, false)

	// §4.5 step 2: "today" is never partial — analysis runs as of the last
	// completed trading day, i.e. the last weekday before trading_date.
	endDate := calendar.NaiveWeekdays{}.LastTradingDay(tradingDate)

	objective := fmt.Sprintf("Produce a %s-style signal for %s as of %s", a.AnalystType, ticker, endDate.Format("2006-01-02"))

	selection, err := a.selector.Select(ctx, binding.ModelName, binding.Provider, a.AnalystType, ticker, marketConditions, objective)
	if err != nil && selection.Count == 0 {
		return RoundOneResult{
			AgentID: a.AgentID,
			Signal: domain.AnalystSignalR1{
				Ticker:     ticker,
				Signal:     domain.SignalNeutral,
				Confidence: 0,
				Reasoning:  fmt.Sprintf("tool selection failed: %v", err),
			},
		}
	}

	results := a.selector.Execute(ctx, selection, ticker, lookbackStart, endDate)

	successful, failed := 0, 0
	for _, r := range results {
		if r.Error == "" {
			successful++
		} else {
			failed++
		}
	}

	synthesis := a.selector.Synthesize(ctx, binding.ModelName, binding.Provider, a.AnalystType, ticker, results, selection)

	return RoundOneResult{
		AgentID: a.AgentID,
		Signal: domain.AnalystSignalR1{
			Ticker:        ticker,
			Signal:        synthesis.Signal,
			Confidence:    synthesis.Confidence,
			Reasoning:     synthesis.Reasoning,
			ToolSelection: selection,
			ToolAnalysis: domain.ToolAnalysis{
				ToolResults:      results,
				Successful:       successful,
				Failed:           failed,
				SynthesisDetails: synthesis.ToolImpactAnalysis,
			},
			Metadata: map[string]string{
				"analyst_type":     a.AnalystType,
				"synthesis_method": synthesis.SynthesisMethod,
			},
		},
	}
}

// ValidRoundOneInput implements §4.5 round-2 step 2's check: at least one
// ticker's tool_analysis.synthesis_details and tool_selection must be
// present.
func ValidRoundOneInput(signals map[domain.Ticker]domain.AnalystSignalR1) bool {
	for _, s := range signals {
		if s.ToolAnalysis.SynthesisDetails != "" && s.ToolSelection.Count > 0 {
			return true
		}
	}
	return false
}

type tickerSignalWire struct {
	Ticker     string  `json:"ticker"`
	Signal     string  `json:"signal"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

type roundTwoWire struct {
	AnalystID     string             `json:"analyst_id"`
	AnalystName   string             `json:"analyst_name"`
	TickerSignals []tickerSignalWire `json:"ticker_signals"`
}

func (w roundTwoWire) IsEmptyResult() bool { return len(w.TickerSignals) == 0 }

// RoundTwo implements §4.5's round-2 steps 1-4: given this agent's own
// round-1 payload, the aggregated overview, and recent notifications, call
// the Model Gateway for a structured SecondRoundAnalysis with the
// empty-list guard active.
func (a *Agent) RoundTwo(ctx context.Context, roundOne map[domain.Ticker]domain.AnalystSignalR1, overview string, notifications []domain.Notification) (domain.AnalystSignalR2, error) {
	binding := a.cfg.ModelFor(a.AgentID, true)

	payload, _ := json.Marshal(roundOne)
	notifText := renderNotifications(notifications)

	prompt, err := utils.LoadPromptWithContext("second_round", map[string]string{
		"AnalystName":     a.AgentName,
		"AnalystID":       a.AgentID,
		"RoundOnePayload": string(payload),
		"Overview":        overview,
		"Notifications":   notifText,
	})
	if err != nil {
		return domain.AnalystSignalR2{}, fmt.Errorf("round two prompt: %w", err)
	}

	messages := []gateway.Message{
		{Role: gateway.RoleSystem, Content: "You revise your analysis in light of peers and notifications."},
		{Role: gateway.RoleUser, Content: prompt},
	}

	wire, err := gateway.CallStructured[roundTwoWire](ctx, a.client, binding.ModelName, binding.Provider, messages, gateway.StructuredOptions[roundTwoWire]{
		Temperature: 0.3,
		Retries:     3,
	})
	if err != nil {
		return domain.AnalystSignalR2{}, err
	}

	signals := make([]domain.TickerSignal, 0, len(wire.TickerSignals))
	for _, t := range wire.TickerSignals {
		signal := domain.Signal(t.Signal)
		switch signal {
		case domain.SignalBullish, domain.SignalBearish, domain.SignalNeutral:
		default:
			signal = domain.SignalNeutral
		}
		confidence := t.Confidence
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 100 {
			confidence = 100
		}
		signals = append(signals, domain.TickerSignal{
			Ticker: t.Ticker, Signal: signal, Confidence: confidence, Reasoning: t.Reasoning,
		})
	}

	analystID := wire.AnalystID
	if analystID == "" {
		analystID = a.AgentID
	}
	analystName := wire.AnalystName
	if analystName == "" {
		analystName = a.AgentName
	}

	return domain.AnalystSignalR2{
		AnalystID:     analystID,
		AnalystName:   analystName,
		TickerSignals: signals,
		Timestamp:     time.Now().UTC(),
	}, nil
}

func renderNotifications(notifications []domain.Notification) string {
	if len(notifications) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, n := range notifications {
		fmt.Fprintf(&b, "- [%s/%s] %s: %s\n", n.Urgency, n.Category, n.SenderAgent, n.Content)
	}
	return b.String()
}
