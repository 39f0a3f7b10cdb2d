package notify

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dyike/CortexGo/internal/domain"
	"github.com/dyike/CortexGo/internal/gateway"
)

// fakeClient mirrors the stub used across internal/comm and internal/gateway
// tests: a deterministic canned JSON response per call.
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

func TestShouldNotifyReturnsGatewayDecision(t *testing.T) {
	client := &fakeClient{response: mustJSON(t, gateWire{ShouldNotify: true, Urgency: "high"})}
	g := NewGate(client)

	notify, urgency := g.ShouldNotify(context.Background(), "gpt-4o-mini", "openai", "market", "big move", "technical")
	if !notify {
		t.Fatal("expected ShouldNotify to return true")
	}
	if urgency != domain.UrgencyHigh {
		t.Fatalf("expected high urgency, got %v", urgency)
	}
}

func TestShouldNotifyDefaultsUnknownUrgencyToLow(t *testing.T) {
	client := &fakeClient{response: mustJSON(t, gateWire{ShouldNotify: true, Urgency: "apocalyptic"})}
	g := NewGate(client)

	_, urgency := g.ShouldNotify(context.Background(), "gpt-4o-mini", "openai", "market", "big move", "technical")
	if urgency != domain.UrgencyLow {
		t.Fatalf("expected an unrecognized urgency string to fall back to low, got %v", urgency)
	}
}

func TestShouldNotifyFallsBackOnGatewayError(t *testing.T) {
	client := &fakeClient{err: context.DeadlineExceeded}
	g := NewGate(client)

	notify, urgency := g.ShouldNotify(context.Background(), "gpt-4o-mini", "openai", "market", "big move", "technical")
	if notify {
		t.Fatal("expected should-notify to default to false on gateway error")
	}
	if urgency != domain.UrgencyLow {
		t.Fatalf("expected low urgency on gateway error, got %v", urgency)
	}
}

func TestBroadcasterOnlyReachesRegisteredAgents(t *testing.T) {
	b := NewBroadcaster()
	b.Register("market")
	b.Register("fundamentals")

	b.Broadcast("market", "big move", domain.UrgencyHigh, "technical")

	if got := b.Inbox("market"); len(got) != 1 {
		t.Fatalf("expected sender's own inbox to receive the broadcast too, got %d", len(got))
	}
	if got := b.Inbox("fundamentals"); len(got) != 1 {
		t.Fatalf("expected registered peer inbox to receive the broadcast, got %d", len(got))
	}
	if got := b.Inbox("sentiment"); len(got) != 0 {
		t.Fatalf("expected an unregistered agent's inbox to stay empty, got %d", len(got))
	}
}

func TestBroadcasterInboxIsASnapshotCopy(t *testing.T) {
	b := NewBroadcaster()
	b.Register("market")
	b.Broadcast("market", "first", domain.UrgencyLow, "technical")

	snapshot := b.Inbox("market")
	b.Broadcast("market", "second", domain.UrgencyLow, "technical")

	if len(snapshot) != 1 {
		t.Fatalf("expected the earlier snapshot to stay at 1 entry, got %d", len(snapshot))
	}
	if got := b.Inbox("market"); len(got) != 2 {
		t.Fatalf("expected a fresh Inbox call to see both broadcasts, got %d", len(got))
	}
}
