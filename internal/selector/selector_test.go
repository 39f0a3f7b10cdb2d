package selector

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dyike/CortexGo/internal/config"
	"github.com/dyike/CortexGo/internal/dataflows"
	"github.com/dyike/CortexGo/internal/domain"
	"github.com/dyike/CortexGo/internal/gateway"
	"github.com/dyike/CortexGo/internal/personas"
	"github.com/dyike/CortexGo/internal/tools"
)

// fakeClient is the same deterministic-canned-response stub used across
// internal/comm and internal/notify's tests.
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

func newTestSelector(t *testing.T, client gateway.Client) *Selector {
	t.Helper()
	cfg := config.DefaultConfig()
	registry := tools.NewRegistry(cfg, dataflows.NewProvider(cfg))
	executor := tools.NewExecutor(registry, cfg)
	return New(client, registry, executor, personas.NewLoader(""))
}

func TestSelectValidatesReturnedToolNames(t *testing.T) {
	s := newTestSelector(t, nil)
	registry := tools.NewRegistry(config.DefaultConfig(), dataflows.NewProvider(config.DefaultConfig()))
	names := registry.Names()
	if len(names) == 0 {
		t.Fatal("expected at least one registered tool")
	}

	client := &fakeClient{response: mustJSON(t, selectionWire{
		SelectedTools: []selectedToolWire{
			{ToolName: names[0], Reason: "relevant"},
			{ToolName: "not_a_real_tool", Reason: "hallucinated"},
		},
		AnalysisStrategy: "llm_selected",
	})}
	s.client = client

	selection, err := s.Select(context.Background(), "gpt-4o-mini", "openai", "fundamental", "AAPL", "calm", "signal")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if selection.Count != 1 || selection.SelectedTools[0].ToolName != names[0] {
		t.Fatalf("expected only the valid tool name to survive, got %+v", selection.SelectedTools)
	}
}

func TestSelectFallsBackToPersonaDefaultWhenNothingValidates(t *testing.T) {
	s := newTestSelector(t, nil)
	client := &fakeClient{response: mustJSON(t, selectionWire{
		SelectedTools: []selectedToolWire{{ToolName: "not_a_real_tool", Reason: "bad"}},
	})}
	s.client = client

	selection, err := s.Select(context.Background(), "gpt-4o-mini", "openai", "fundamental", "AAPL", "calm", "signal")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if selection.Strategy != "persona_default" {
		t.Fatalf("expected persona_default fallback, got %q", selection.Strategy)
	}
}

func TestSynthesizeClampsConfidenceAndDefaultsUnknownSignal(t *testing.T) {
	s := newTestSelector(t, nil)
	client := &fakeClient{response: mustJSON(t, synthesisWire{
		Signal:     "extremely_bullish",
		Confidence: 250,
		Reasoning:  "strong momentum",
	})}
	s.client = client

	synth := s.Synthesize(context.Background(), "gpt-4o-mini", "openai", "fundamental", "AAPL", nil, domain.ToolSelection{})
	if synth.Signal != domain.SignalNeutral {
		t.Fatalf("expected an unrecognized signal to default to neutral, got %v", synth.Signal)
	}
	if synth.Confidence != 100 {
		t.Fatalf("expected confidence clamped to 100, got %v", synth.Confidence)
	}
}

func TestSynthesizeReturnsFailedSynthesisOnGatewayError(t *testing.T) {
	s := newTestSelector(t, nil)
	s.client = &fakeClient{err: context.DeadlineExceeded}

	synth := s.Synthesize(context.Background(), "gpt-4o-mini", "openai", "fundamental", "AAPL", nil, domain.ToolSelection{})
	if synth.Signal != domain.SignalNeutral || synth.SynthesisMethod != "error" {
		t.Fatalf("expected the documented failure value, got %+v", synth)
	}
}
