package reflection

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/dyike/CortexGo/internal/config"
	"github.com/dyike/CortexGo/internal/domain"
	"github.com/dyike/CortexGo/internal/gateway"
	"github.com/dyike/CortexGo/internal/memory"
	"github.com/dyike/CortexGo/internal/orchestrator"
	"github.com/dyike/CortexGo/internal/persistence"
)

// fakeClient returns one canned structured-JSON payload per call, matching
// the stub pattern established in internal/gateway/fake_test.go.
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

// fakeStore is a minimal in-memory memory.Store, scoped by userID, enough
// to exercise search_and_update/search_and_delete without a real DB.
type fakeStore struct {
	records map[string]domain.MemoryRecord
}

func newFakeStore() *fakeStore { return &fakeStore{records: map[string]domain.MemoryRecord{}} }

func (s *fakeStore) Add(_ context.Context, content, userID string, _ map[string]string) (string, error) {
	id := userID + "-" + content
	s.records[id] = domain.MemoryRecord{ID: id, Content: content, UserID: userID}
	return id, nil
}

func (s *fakeStore) Search(_ context.Context, _, userID string, topK int) ([]domain.MemoryRecord, error) {
	var out []domain.MemoryRecord
	for _, r := range s.records {
		if r.UserID == userID {
			out = append(out, r)
		}
		if len(out) >= topK {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) Update(_ context.Context, id, newContent string, _ map[string]string) error {
	r, ok := s.records[id]
	if !ok {
		return memory.ErrNotFound
	}
	r.Content = newContent
	s.records[id] = r
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id string) error {
	if _, ok := s.records[id]; !ok {
		return memory.ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.MemoryOpsDir = filepath.Join(t.TempDir(), "memory_ops")
	return cfg
}

func TestApplyRefusesOwnershipMismatch(t *testing.T) {
	cfg := testConfig(t)
	engine := New(&fakeClient{}, newFakeStore(), persistence.New(cfg), cfg)

	wire := reflectionWire{AnalystID: "sentiment", Operation: "search_and_update", Query: "q", NewContent: "new"}
	outcome := engine.apply(context.Background(), time.Now(), "market", wire, true)

	if outcome.Applied {
		t.Fatal("expected the mismatched-ownership op to be refused")
	}
	if outcome.RefusedWhy == "" {
		t.Fatal("expected a RefusedWhy explanation")
	}
}

func TestApplySearchAndUpdateAppliesOwnedOp(t *testing.T) {
	cfg := testConfig(t)
	store := newFakeStore()
	id, _ := store.Add(context.Background(), "old content", "market", nil)
	engine := New(&fakeClient{}, store, persistence.New(cfg), cfg)

	wire := reflectionWire{AnalystID: "market", Operation: "search_and_update", Query: "q", NewContent: "revised content"}
	outcome := engine.apply(context.Background(), time.Now(), "market", wire, true)

	if !outcome.Applied {
		t.Fatalf("expected op to apply, got RefusedWhy=%q", outcome.RefusedWhy)
	}
	if store.records[id].Content != "revised content" {
		t.Fatalf("expected content to be updated, got %q", store.records[id].Content)
	}
}

func TestApplySearchAndDeleteNotFound(t *testing.T) {
	cfg := testConfig(t)
	engine := New(&fakeClient{}, newFakeStore(), persistence.New(cfg), cfg)

	wire := reflectionWire{AnalystID: "market", Operation: "search_and_delete", Query: "q"}
	outcome := engine.apply(context.Background(), time.Now(), "market", wire, true)

	if outcome.Applied {
		t.Fatal("expected delete against an empty store to fail")
	}
}

func TestApplyNoneOperationIsNoOp(t *testing.T) {
	cfg := testConfig(t)
	engine := New(&fakeClient{}, newFakeStore(), persistence.New(cfg), cfg)

	outcome := engine.apply(context.Background(), time.Now(), "market", reflectionWire{Operation: "none"}, true)
	if outcome.Applied || outcome.Operation != "none" {
		t.Fatalf("expected a no-op outcome, got %+v", outcome)
	}
}

func TestEvaluateOutcome(t *testing.T) {
	cases := []struct {
		action  domain.Action
		ret     float64
		correct bool
	}{
		{domain.ActionLong, 0.01, true},
		{domain.ActionLong, -0.01, false},
		{domain.ActionShort, -0.01, true},
		{domain.ActionShort, 0.01, false},
		{domain.ActionHold, 0.001, true},
		{domain.ActionHold, 0.02, false},
	}
	for _, c := range cases {
		if got := evaluateOutcome(c.action, c.ret); got != c.correct {
			t.Errorf("evaluateOutcome(%v, %v) = %v, want %v", c.action, c.ret, got, c.correct)
		}
	}
}

func TestRunIndividualCoversAllAnalystsAndPM(t *testing.T) {
	cfg := testConfig(t)
	cfg.ReviewMode = config.ReviewIndividual
	store := newFakeStore()

	noneWire := reflectionWire{Operation: "none"}
	client := &fakeClient{responses: []string{mustJSON(t, noneWire)}}
	engine := New(client, store, persistence.New(cfg), cfg)

	state := &orchestrator.DayState{
		AnalystSignalsR1: map[string]map[domain.Ticker]domain.AnalystSignalR1{
			"market": {"AAPL": {Signal: "bullish"}},
		},
		AnalystSignalsR2: map[string]domain.AnalystSignalR2{
			"market": {},
		},
	}
	decisions := map[domain.Ticker]domain.PortfolioDecision{
		"AAPL": {Ticker: "AAPL", Action: domain.ActionLong, Quantity: 5},
	}
	returns := map[domain.Ticker]TickerOutcome{"AAPL": {Ticker: "AAPL", ActualReturn: 0.01}}

	outcomes := engine.Run(context.Background(), time.Now(), state, decisions, returns)

	if len(outcomes) != 2 { // one analyst + portfolio_manager
		t.Fatalf("expected 2 outcomes (1 analyst + PM), got %d", len(outcomes))
	}
}
