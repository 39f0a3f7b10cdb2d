// Package notify implements the Notification subsystem referenced by §3
// and §4.5 step 5, plus SUPPLEMENTED FEATURES item 1's urgency-gated
// fan-out: a candidate notification is first judged by the Model Gateway
// for whether it's worth firing at all, then broadcast to every
// registered agent's in-process inbox.
//
// Grounded on the teacher's broadcast-style internal/cli progress/display
// plumbing for the "fan out to everyone" idiom, and on
// gateway.CallStructured for the urgency-gate call.
package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dyike/CortexGo/internal/domain"
	"github.com/dyike/CortexGo/internal/gateway"
)

// Gate decides whether a candidate notification should fire, per
// SUPPLEMENTED FEATURES item 1 (notification_system.py's
// decide_should_notify).
type Gate struct {
	client gateway.Client
}

func NewGate(client gateway.Client) *Gate {
	return &Gate{client: client}
}

type gateWire struct {
	ShouldNotify bool   `json:"should_notify"`
	Urgency      string `json:"urgency"`
}

func (gateWire) IsEmptyResult() bool { return false }

// ShouldNotify asks the Model Gateway whether candidate content from
// senderAgent is worth a broadcast, and at what urgency.
func (g *Gate) ShouldNotify(ctx context.Context, modelID, provider, senderAgent, content, category string) (bool, domain.Urgency) {
	prompt := fmt.Sprintf(
		"Agent %q produced this finding in category %q:\n\n%s\n\nShould this be broadcast to other agents as a notification? "+
			"Respond with a JSON object: {\"should_notify\": bool, \"urgency\": \"low|medium|high|critical\"}.",
		senderAgent, category, content,
	)
	messages := []gateway.Message{
		{Role: gateway.RoleSystem, Content: "You gate which findings are worth interrupting other agents with."},
		{Role: gateway.RoleUser, Content: prompt},
	}

	wire, err := gateway.CallStructured[gateWire](ctx, g.client, modelID, provider, messages, gateway.StructuredOptions[gateWire]{
		Temperature: 0.1,
		Retries:     2,
		DefaultFactory: func() gateWire {
			return gateWire{ShouldNotify: false}
		},
	})
	if err != nil && !wire.ShouldNotify {
		return false, domain.UrgencyLow
	}

	urgency := domain.Urgency(wire.Urgency)
	switch urgency {
	case domain.UrgencyLow, domain.UrgencyMedium, domain.UrgencyHigh, domain.UrgencyCritical:
	default:
		urgency = domain.UrgencyLow
	}
	return wire.ShouldNotify, urgency
}

// Broadcaster fans a Notification out to every registered agent's
// in-process inbox, serialized on a dedicated lock per §5's
// shared-resource policy.
type Broadcaster struct {
	mu      sync.Mutex
	inboxes map[string][]domain.Notification
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{inboxes: map[string][]domain.Notification{}}
}

// Register ensures agentID has an inbox, so it can receive broadcasts sent
// before it posts anything itself.
func (b *Broadcaster) Register(agentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.inboxes[agentID]; !ok {
		b.inboxes[agentID] = nil
	}
}

// Broadcast appends n to every registered agent's inbox (append-only,
// best-effort, in-process only — no persistence beyond episodic memory
// per §3's Notification contract).
func (b *Broadcaster) Broadcast(senderAgent, content string, urgency domain.Urgency, category string) domain.Notification {
	n := domain.Notification{
		ID:          uuid.NewString(),
		SenderAgent: senderAgent,
		Content:     content,
		Urgency:     urgency,
		Category:    category,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for agentID := range b.inboxes {
		b.inboxes[agentID] = append(b.inboxes[agentID], n)
	}
	return n
}

// Inbox returns a snapshot of agentID's accumulated notifications.
func (b *Broadcaster) Inbox(agentID string) []domain.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Notification, len(b.inboxes[agentID]))
	copy(out, b.inboxes[agentID])
	return out
}
