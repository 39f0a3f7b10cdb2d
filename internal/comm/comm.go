// Package comm implements the Communication Coordinator (C8): decides
// whether post-analysis private chats or group meetings are needed, runs
// the dialog loop, and surfaces revised signals.
//
// Per §9's "cyclic references" redesign flag, Coordinator is a pure
// function over (agents, round-2 signals, PM decisions) that returns
// updated signals plus a should_reinvoke_pm flag for one cycle; the
// Per-Day Orchestrator (C9), not this package, owns looping across cycles
// and re-invoking the Portfolio Manager.
//
// Grounded on the teacher's multi-turn chat idiom (eino's schema.Message
// history threaded through repeated Generate calls in
// internal/agents/agent_utils.go) and on gateway.CallStructured /
// utils.LoadPromptWithContext for every structured call this package makes.
package comm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dyike/CortexGo/internal/domain"
	"github.com/dyike/CortexGo/internal/gateway"
	"github.com/dyike/CortexGo/internal/memory"
	"github.com/dyike/CortexGo/internal/utils"
)

// AgentInfo is the minimal identity the coordinator needs for a
// communication participant.
type AgentInfo struct {
	ID   string
	Name string
}

// CycleConfig carries the per-day configuration the coordinator needs,
// surfaced from config.Config so this package doesn't import it directly.
type CycleConfig struct {
	MaxRounds int // §9 open question: preserved as a parameter, never hard-coded to 1.
	MaxChars  int
}

// CycleOutcome is what one call to RunCycle produces.
type CycleOutcome struct {
	Decision         domain.CommunicationDecision
	UpdatedSignals   map[string]domain.AnalystSignalR2 // valid only when ShouldReinvokePM
	ShouldReinvokePM bool
	Transcripts      []domain.CommunicationTranscript
}

// Coordinator is C8.
type Coordinator struct {
	client gateway.Client
	mem    memory.Store
}

func New(client gateway.Client, mem memory.Store) *Coordinator {
	return &Coordinator{client: client, mem: mem}
}

type decisionWire struct {
	ShouldCommunicate bool     `json:"should_communicate"`
	CommunicationType string   `json:"communication_type"`
	TargetAnalysts    []string `json:"target_analysts"`
	DiscussionTopic   string   `json:"discussion_topic"`
	Reasoning         string   `json:"reasoning"`
}

func (decisionWire) IsEmptyResult() bool { return false }

// RunCycle implements §4.8 steps 1-6 for a single cycle.
func (c *Coordinator) RunCycle(ctx context.Context, modelID, provider string, cfg CycleConfig, agents []AgentInfo, r2 map[string]domain.AnalystSignalR2, pmDecisions map[domain.Ticker]domain.PortfolioDecision) (CycleOutcome, error) {
	decision, err := c.decide(ctx, modelID, provider, r2, pmDecisions)
	if err != nil {
		return CycleOutcome{Decision: decision}, nil
	}
	if !decision.ShouldCommunicate || decision.Type == domain.CommNone {
		return CycleOutcome{Decision: decision}, nil
	}

	byID := map[string]AgentInfo{}
	for _, a := range agents {
		byID[a.ID] = a
	}
	targets := make([]AgentInfo, 0, len(decision.TargetAnalysts))
	for _, id := range decision.TargetAnalysts {
		if a, ok := byID[id]; ok {
			targets = append(targets, a)
		}
	}
	if len(targets) == 0 {
		return CycleOutcome{Decision: decision}, nil
	}

	updated := cloneR2(r2)
	var transcripts []domain.CommunicationTranscript
	adjusted := false

	switch decision.Type {
	case domain.CommPrivateChat:
		for _, target := range targets {
			transcript, didAdjust := c.privateChat(ctx, modelID, provider, cfg, decision.DiscussionTopic, target, updated)
			transcripts = append(transcripts, transcript)
			adjusted = adjusted || didAdjust
		}
	case domain.CommMeeting:
		transcript, didAdjust := c.meeting(ctx, modelID, provider, cfg, decision.DiscussionTopic, targets, updated)
		transcripts = append(transcripts, transcript)
		adjusted = didAdjust
	}

	return CycleOutcome{
		Decision:         decision,
		UpdatedSignals:   updated,
		ShouldReinvokePM: adjusted,
		Transcripts:      transcripts,
	}, nil
}

func (c *Coordinator) decide(ctx context.Context, modelID, provider string, r2 map[string]domain.AnalystSignalR2, pmDecisions map[domain.Ticker]domain.PortfolioDecision) (domain.CommunicationDecision, error) {
	signalsJSON, _ := json.Marshal(r2)
	decisionsJSON, _ := json.Marshal(pmDecisions)

	prompt, err := utils.LoadPromptWithContext("communication_decision", map[string]string{
		"AnalystSignals": string(signalsJSON),
		"PMDecisions":    string(decisionsJSON),
	})
	if err != nil {
		return domain.CommunicationDecision{Type: domain.CommNone}, err
	}

	messages := []gateway.Message{
		{Role: gateway.RoleSystem, Content: "You decide whether agents need to talk before decisions are finalized."},
		{Role: gateway.RoleUser, Content: prompt},
	}

	wire, callErr := gateway.CallStructured[decisionWire](ctx, c.client, modelID, provider, messages, gateway.StructuredOptions[decisionWire]{
		Temperature: 0.2,
		Retries:     3,
		DefaultFactory: func() decisionWire {
			return decisionWire{ShouldCommunicate: false, CommunicationType: string(domain.CommNone)}
		},
	})
	if callErr != nil && !wire.ShouldCommunicate {
		return domain.CommunicationDecision{Type: domain.CommNone}, nil
	}

	commType := domain.CommunicationType(wire.CommunicationType)
	switch commType {
	case domain.CommPrivateChat, domain.CommMeeting, domain.CommNone:
	default:
		commType = domain.CommNone
	}

	return domain.CommunicationDecision{
		ShouldCommunicate: wire.ShouldCommunicate && commType != domain.CommNone,
		Type:              commType,
		TargetAnalysts:    wire.TargetAnalysts,
		DiscussionTopic:   wire.DiscussionTopic,
		Reasoning:         wire.Reasoning,
	}, nil
}

type chatTurnWire struct {
	Response           string  `json:"response"`
	SignalAdjustment   bool    `json:"signal_adjustment"`
	AdjustedSignal     string  `json:"adjusted_signal"`
	AdjustedConfidence float64 `json:"adjusted_confidence"`
}

func (chatTurnWire) IsEmptyResult() bool { return false }

// privateChat runs §4.8 step 4's bounded dialog loop (PM <-> one analyst).
func (c *Coordinator) privateChat(ctx context.Context, modelID, provider string, cfg CycleConfig, topic string, target AgentInfo, signals map[string]domain.AnalystSignalR2) (domain.CommunicationTranscript, bool) {
	transcript := domain.CommunicationTranscript{
		ID:           uuid.NewString(),
		Type:         domain.CommPrivateChat,
		Participants: []string{"portfolio_manager", target.ID},
	}

	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = 1
	}
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = 400
	}

	adjusted := false
	for round := 1; round <= maxRounds; round++ {
		memories := c.recallFor(ctx, modelID, provider, target.Name, topic, target.ID)
		wire := c.chatTurn(ctx, modelID, provider, target.Name, "portfolio_manager", "private chat", topic, renderTranscript(transcript), memories, maxChars)

		content := truncate(wire.Response, maxChars)
		transcript.Turns = append(transcript.Turns, domain.TranscriptTurn{Speaker: target.ID, Content: content, Round: round})

		if wire.SignalAdjustment {
			applyAdjustment(signals, target.ID, wire.AdjustedSignal, wire.AdjustedConfidence)
			transcript.SignalAdjustments = append(transcript.SignalAdjustments, domain.TickerSignal{
				Signal:     normalizeSignal(wire.AdjustedSignal),
				Confidence: clampConfidence(wire.AdjustedConfidence),
			})
			adjusted = true
		}
	}

	c.persistTranscript(ctx, transcript)
	return transcript, adjusted
}

// meeting runs §4.8 step 5's fixed round robin plus a PM summary turn.
func (c *Coordinator) meeting(ctx context.Context, modelID, provider string, cfg CycleConfig, topic string, targets []AgentInfo, signals map[string]domain.AnalystSignalR2) (domain.CommunicationTranscript, bool) {
	transcript := domain.CommunicationTranscript{
		ID:   uuid.NewString(),
		Type: domain.CommMeeting,
	}
	for _, t := range targets {
		transcript.Participants = append(transcript.Participants, t.ID)
	}
	transcript.Participants = append(transcript.Participants, "portfolio_manager")

	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = 1
	}
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = 400
	}

	adjusted := false
	for round := 1; round <= maxRounds; round++ {
		for _, target := range targets {
			memories := c.recallFor(ctx, modelID, provider, target.Name, topic, target.ID)
			wire := c.chatTurn(ctx, modelID, provider, target.Name, "the group", "meeting", topic, renderTranscript(transcript), memories, maxChars)

			content := truncate(wire.Response, maxChars)
			transcript.Turns = append(transcript.Turns, domain.TranscriptTurn{Speaker: target.ID, Content: content, Round: round})

			if wire.SignalAdjustment {
				applyAdjustment(signals, target.ID, wire.AdjustedSignal, wire.AdjustedConfidence)
				transcript.SignalAdjustments = append(transcript.SignalAdjustments, domain.TickerSignal{
					Signal:     normalizeSignal(wire.AdjustedSignal),
					Confidence: clampConfidence(wire.AdjustedConfidence),
				})
				adjusted = true
			}
		}
	}

	summary := c.meetingSummary(ctx, modelID, provider, topic, renderTranscript(transcript), maxChars)
	transcript.Turns = append(transcript.Turns, domain.TranscriptTurn{Speaker: "portfolio_manager", Content: truncate(summary, maxChars), Round: maxRounds + 1})

	c.persistTranscript(ctx, transcript)
	return transcript, adjusted
}

func (c *Coordinator) chatTurn(ctx context.Context, modelID, provider, speaker, counterpart, kind, topic, transcript, memories string, maxChars int) chatTurnWire {
	prompt, err := utils.LoadPromptWithContext("chat_turn", map[string]string{
		"Speaker":     speaker,
		"Counterpart": counterpart,
		"Kind":        kind,
		"Topic":       topic,
		"Transcript":  transcript,
		"Memories":    memories,
		"MaxChars":    fmt.Sprintf("%d", maxChars),
	})
	if err != nil {
		return chatTurnWire{Response: "(unavailable)"}
	}

	messages := []gateway.Message{
		{Role: gateway.RoleSystem, Content: "You participate in a brief trading-desk dialog."},
		{Role: gateway.RoleUser, Content: prompt},
	}

	wire, callErr := gateway.CallStructured[chatTurnWire](ctx, c.client, modelID, provider, messages, gateway.StructuredOptions[chatTurnWire]{
		Temperature: 0.4,
		Retries:     3,
		DefaultFactory: func() chatTurnWire {
			return chatTurnWire{Response: "(no response)"}
		},
	})
	if callErr != nil && wire.Response == "" {
		return chatTurnWire{Response: "(no response)"}
	}
	return wire
}

type summaryWire struct {
	Response string `json:"response"`
}

func (summaryWire) IsEmptyResult() bool { return false }

func (c *Coordinator) meetingSummary(ctx context.Context, modelID, provider, topic, transcript string, maxChars int) string {
	prompt, err := utils.LoadPromptWithContext("meeting_summary", map[string]string{
		"Topic":      topic,
		"Transcript": transcript,
		"MaxChars":   fmt.Sprintf("%d", maxChars),
	})
	if err != nil {
		return "(no summary)"
	}
	messages := []gateway.Message{
		{Role: gateway.RoleSystem, Content: "You close out a group meeting with a short summary."},
		{Role: gateway.RoleUser, Content: prompt},
	}
	wire, callErr := gateway.CallStructured[summaryWire](ctx, c.client, modelID, provider, messages, gateway.StructuredOptions[summaryWire]{
		Temperature: 0.2,
		Retries:     3,
		DefaultFactory: func() summaryWire {
			return summaryWire{Response: "(no summary)"}
		},
	})
	if callErr != nil && wire.Response == "" {
		return "(no summary)"
	}
	return wire.Response
}

type queryWire struct {
	Query string `json:"query"`
}

func (queryWire) IsEmptyResult() bool { return false }

// recallFor implements SUPPLEMENTED FEATURES item 2: a two-stage query
// before every memory recall inside a dialog turn.
func (c *Coordinator) recallFor(ctx context.Context, modelID, provider, participantName, topic, userID string) string {
	if c.mem == nil {
		return "(none)"
	}

	prompt, err := utils.LoadPromptWithContext("memory_query", map[string]string{
		"Participant": participantName,
		"Topic":       topic,
	})
	query := topic
	if err == nil {
		messages := []gateway.Message{
			{Role: gateway.RoleSystem, Content: "You produce short memory search queries."},
			{Role: gateway.RoleUser, Content: prompt},
		}
		wire, callErr := gateway.CallStructured[queryWire](ctx, c.client, modelID, provider, messages, gateway.StructuredOptions[queryWire]{
			Temperature: 0.1,
			Retries:     2,
			DefaultFactory: func() queryWire { return queryWire{Query: topic} },
		})
		if callErr == nil || wire.Query != "" {
			query = wire.Query
		}
	}

	records, err := c.mem.Search(ctx, query, userID, 5)
	if err != nil || len(records) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, r := range records {
		b.WriteString("- ")
		b.WriteString(r.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// persistTranscript implements §4.8 step 4/5's "write the concatenated
// transcript to the memories of both/all participants".
func (c *Coordinator) persistTranscript(ctx context.Context, transcript domain.CommunicationTranscript) {
	if c.mem == nil {
		return
	}
	content := renderTranscript(transcript)
	for _, participant := range transcript.Participants {
		_, _ = c.mem.Add(ctx, content, participant, map[string]string{
			"kind":            "communication_transcript",
			"transcript_id":   transcript.ID,
			"transcript_type": string(transcript.Type),
		})
	}
}

func renderTranscript(t domain.CommunicationTranscript) string {
	if len(t.Turns) == 0 {
		return "(no turns yet)"
	}
	var b strings.Builder
	for _, turn := range t.Turns {
		fmt.Fprintf(&b, "[round %d] %s: %s\n", turn.Round, turn.Speaker, turn.Content)
	}
	return b.String()
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}

func normalizeSignal(s string) domain.Signal {
	signal := domain.Signal(s)
	switch signal {
	case domain.SignalBullish, domain.SignalBearish, domain.SignalNeutral:
		return signal
	default:
		return domain.SignalNeutral
	}
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

func applyAdjustment(signals map[string]domain.AnalystSignalR2, agentID, signal string, confidence float64) {
	sig, ok := signals[agentID]
	if !ok {
		return
	}
	newSignal := normalizeSignal(signal)
	newConfidence := clampConfidence(confidence)
	for i := range sig.TickerSignals {
		sig.TickerSignals[i].Signal = newSignal
		sig.TickerSignals[i].Confidence = newConfidence
		sig.TickerSignals[i].Reasoning = sig.TickerSignals[i].Reasoning + " (adjusted after communication)"
	}
	signals[agentID] = sig
}

func cloneR2(in map[string]domain.AnalystSignalR2) map[string]domain.AnalystSignalR2 {
	out := make(map[string]domain.AnalystSignalR2, len(in))
	for id, sig := range in {
		cp := sig
		cp.TickerSignals = append([]domain.TickerSignal(nil), sig.TickerSignals...)
		out[id] = cp
	}
	return out
}
