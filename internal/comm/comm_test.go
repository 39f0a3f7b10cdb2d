package comm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dyike/CortexGo/internal/domain"
	"github.com/dyike/CortexGo/internal/gateway"
)

// fakeClient is a deterministic stub returning one canned JSON payload per
// call, repeating the last one once exhausted. Grounded on the same pattern
// used in internal/gateway/fake_test.go.
type fakeClient struct {
	responses []string
	calls     int
}

func (f *fakeClient) Call(_ context.Context, _, _ string, _ []gateway.Message, _ float64, _ gateway.ResponseFormat) (*gateway.Response, error) {
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	return &gateway.Response{Content: f.responses[idx]}, nil
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestRunCycleNoCommunicationNeeded(t *testing.T) {
	client := &fakeClient{responses: []string{mustJSON(t, decisionWire{ShouldCommunicate: false, CommunicationType: string(domain.CommNone)})}}
	c := New(client, nil)

	r2 := map[string]domain.AnalystSignalR2{}
	outcome, err := c.RunCycle(context.Background(), "model", "openai", CycleConfig{MaxRounds: 1, MaxChars: 200}, nil, r2, nil)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if outcome.ShouldReinvokePM {
		t.Fatalf("expected no reinvoke when communication declined")
	}
	if outcome.Decision.ShouldCommunicate {
		t.Fatalf("expected ShouldCommunicate false")
	}
}

func TestRunCyclePrivateChatAdjustsSignal(t *testing.T) {
	decision := decisionWire{
		ShouldCommunicate: true,
		CommunicationType: string(domain.CommPrivateChat),
		TargetAnalysts:    []string{"market"},
		DiscussionTopic:   "AAPL momentum",
	}
	turn := chatTurnWire{
		Response:           "I'm revising bullish given new volume data.",
		SignalAdjustment:   true,
		AdjustedSignal:     "bullish",
		AdjustedConfidence: 0.8,
	}
	client := &fakeClient{responses: []string{mustJSON(t, decision), mustJSON(t, turn)}}
	c := New(client, nil)

	agents := []AgentInfo{{ID: "market", Name: "Market Analyst"}}
	r2 := map[string]domain.AnalystSignalR2{
		"market": {TickerSignals: []domain.TickerSignal{{Ticker: "AAPL", Signal: "neutral", Confidence: 0.5}}},
	}

	outcome, err := c.RunCycle(context.Background(), "model", "openai", CycleConfig{MaxRounds: 1, MaxChars: 200}, agents, r2, nil)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if !outcome.ShouldReinvokePM {
		t.Fatalf("expected reinvoke after signal adjustment")
	}
	if len(outcome.Transcripts) != 1 {
		t.Fatalf("expected 1 transcript, got %d", len(outcome.Transcripts))
	}
	updated, ok := outcome.UpdatedSignals["market"]
	if !ok {
		t.Fatalf("expected updated signal for market analyst")
	}
	sig := updated.TickerSignals[0]
	if sig.Signal != domain.Signal("bullish") {
		t.Fatalf("expected bullish signal, got %v", sig.Signal)
	}
}

func TestRunCycleUnknownTargetsSkipped(t *testing.T) {
	decision := decisionWire{
		ShouldCommunicate: true,
		CommunicationType: string(domain.CommPrivateChat),
		TargetAnalysts:    []string{"nonexistent"},
		DiscussionTopic:   "topic",
	}
	client := &fakeClient{responses: []string{mustJSON(t, decision)}}
	c := New(client, nil)

	agents := []AgentInfo{{ID: "market", Name: "Market Analyst"}}
	outcome, err := c.RunCycle(context.Background(), "model", "openai", CycleConfig{MaxRounds: 1, MaxChars: 200}, agents, map[string]domain.AnalystSignalR2{}, nil)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if outcome.ShouldReinvokePM || len(outcome.Transcripts) != 0 {
		t.Fatalf("expected no-op outcome when no targets resolve")
	}
}
