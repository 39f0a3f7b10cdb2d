package analyst

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/dyike/CortexGo/internal/config"
	"github.com/dyike/CortexGo/internal/domain"
	"github.com/dyike/CortexGo/internal/gateway"
)

type fakeClient struct {
	response string
	err      error
}

func (f *fakeClient) Call(_ context.Context, _, _ string, _ []gateway.Message, _ float64, _ gateway.ResponseFormat) (*gateway.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &gateway.Response{Content: f.response}, nil
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestValidRoundOneInputRequiresSynthesisDetailsAndToolSelection(t *testing.T) {
	signals := map[domain.Ticker]domain.AnalystSignalR1{
		"AAPL": {
			ToolSelection: domain.ToolSelection{Count: 2},
			ToolAnalysis:  domain.ToolAnalysis{SynthesisDetails: "used 2 tools"},
		},
	}
	if !ValidRoundOneInput(signals) {
		t.Fatal("expected a ticker with both fields populated to validate")
	}
}

func TestValidRoundOneInputRejectsEmptyToolSelection(t *testing.T) {
	signals := map[domain.Ticker]domain.AnalystSignalR1{
		"AAPL": {
			ToolSelection: domain.ToolSelection{Count: 0},
			ToolAnalysis:  domain.ToolAnalysis{SynthesisDetails: "used 2 tools"},
		},
	}
	if ValidRoundOneInput(signals) {
		t.Fatal("expected a ticker with zero selected tools to be invalid")
	}
}

func TestValidRoundOneInputRejectsEmptySignalMap(t *testing.T) {
	if ValidRoundOneInput(map[domain.Ticker]domain.AnalystSignalR1{}) {
		t.Fatal("expected an empty signal map to be invalid")
	}
}

func TestRenderNotificationsEmptyList(t *testing.T) {
	if got := renderNotifications(nil); got != "(none)" {
		t.Fatalf("expected (none) for an empty notification list, got %q", got)
	}
}

func TestRenderNotificationsFormatsEachEntry(t *testing.T) {
	got := renderNotifications([]domain.Notification{
		{SenderAgent: "market", Content: "big move", Urgency: domain.UrgencyHigh, Category: "technical"},
	})
	if !strings.Contains(got, "market") || !strings.Contains(got, "big move") {
		t.Fatalf("expected the rendered text to mention sender and content, got %q", got)
	}
}

func TestRoundTwoClampsConfidenceAndDefaultsUnknownSignal(t *testing.T) {
	client := &fakeClient{response: mustJSON(t, roundTwoWire{
		AnalystID:   "fundamental_analyst_agent",
		AnalystName: "Fundamental Analyst",
		TickerSignals: []tickerSignalWire{
			{Ticker: "AAPL", Signal: "wildly_bullish", Confidence: 500},
		},
	})}
	a := &Agent{AgentID: "fundamental_analyst_agent", AgentName: "Fundamental Analyst", cfg: config.DefaultConfig(), client: client}

	result, err := a.RoundTwo(context.Background(), nil, "overview", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.TickerSignals) != 1 {
		t.Fatalf("expected one ticker signal, got %d", len(result.TickerSignals))
	}
	if result.TickerSignals[0].Signal != domain.SignalNeutral {
		t.Fatalf("expected an unrecognized signal to default to neutral, got %v", result.TickerSignals[0].Signal)
	}
	if result.TickerSignals[0].Confidence != 100 {
		t.Fatalf("expected confidence clamped to 100, got %v", result.TickerSignals[0].Confidence)
	}
}

func TestRoundTwoFallsBackToAgentIdentityWhenWireOmitsIt(t *testing.T) {
	client := &fakeClient{response: mustJSON(t, roundTwoWire{
		TickerSignals: []tickerSignalWire{{Ticker: "AAPL", Signal: "bullish", Confidence: 70}},
	})}
	a := &Agent{AgentID: "fundamental_analyst_agent", AgentName: "Fundamental Analyst", cfg: config.DefaultConfig(), client: client}

	result, err := a.RoundTwo(context.Background(), nil, "overview", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AnalystID != "fundamental_analyst_agent" || result.AnalystName != "Fundamental Analyst" {
		t.Fatalf("expected fallback to agent identity, got %+v", result)
	}
}
