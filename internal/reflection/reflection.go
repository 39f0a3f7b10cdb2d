// Package reflection implements the Reflection Engine (C10): post-day,
// per-agent or central review that decides memory updates/deletes and
// logs every attempted operation.
//
// Grounded on the teacher's gateway.CallStructured call pattern and on
// memory.Store's Search/Update/Delete contract; strict per-agent ownership
// (§4.10, P5) is enforced here rather than in the Memory Store, matching
// §9's redesign flag that ownership checks belong to the component that
// understands agent identity, not the storage layer.
package reflection

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dyike/CortexGo/internal/config"
	"github.com/dyike/CortexGo/internal/domain"
	"github.com/dyike/CortexGo/internal/gateway"
	"github.com/dyike/CortexGo/internal/memory"
	"github.com/dyike/CortexGo/internal/obslog"
	"github.com/dyike/CortexGo/internal/orchestrator"
	"github.com/dyike/CortexGo/internal/persistence"
	"github.com/dyike/CortexGo/internal/utils"
)

const pmAgentID = "portfolio_manager"

// Engine is C10.
type Engine struct {
	client gateway.Client
	mem    memory.Store
	persist *persistence.Service
	cfg    *config.Config
	log    loggerT
}

type loggerT = interface{ Printf(string, ...any) }

func New(client gateway.Client, mem memory.Store, persist *persistence.Service, cfg *config.Config) *Engine {
	return &Engine{client: client, mem: mem, persist: persist, cfg: cfg, log: obslog.New("reflection")}
}

// TickerOutcome is the per-ticker realized-return input this package needs;
// the Multi-Day Driver computes it from day-over-day closing prices.
type TickerOutcome struct {
	Ticker        domain.Ticker
	ActualReturn  float64 // fraction, e.g. 0.012 for +1.2%
}

// Run implements §4.10's post-day process, dispatching to individual or
// central review per cfg.ReviewMode.
func (e *Engine) Run(ctx context.Context, date time.Time, state *orchestrator.DayState, decisions map[domain.Ticker]domain.PortfolioDecision, returns map[domain.Ticker]TickerOutcome) []domain.ReflectionOutcome {
	if e.cfg.ReviewMode == config.ReviewCentral {
		return e.runCentral(ctx, date, state, decisions, returns)
	}
	return e.runIndividual(ctx, date, state, decisions, returns)
}

func (e *Engine) runIndividual(ctx context.Context, date time.Time, state *orchestrator.DayState, decisions map[domain.Ticker]domain.PortfolioDecision, returns map[domain.Ticker]TickerOutcome) []domain.ReflectionOutcome {
	var outcomes []domain.ReflectionOutcome

	agentIDs := make([]string, 0, len(state.AnalystSignalsR2)+1)
	for agentID := range state.AnalystSignalsR2 {
		agentIDs = append(agentIDs, agentID)
	}
	agentIDs = append(agentIDs, pmAgentID)

	for _, agentID := range agentIDs {
		if agentID == pmAgentID {
			e.recordPMOutcomes(ctx, date, decisions, state, returns)
		}

		own := e.ownOutputs(agentID, state, decisions)
		peers := e.peerOutputs(agentID, state, decisions)
		retJSON, _ := json.Marshal(returns)

		prompt, err := utils.LoadPromptWithContext("reflection", map[string]string{
			"AgentID":     agentID,
			"Date":        date.Format("2006-01-02"),
			"OwnOutputs":  own,
			"PeerOutputs": peers,
			"Returns":     string(retJSON),
		})
		if err != nil {
			continue
		}

		wire := e.callReflection(ctx, agentID, prompt)
		outcome := e.apply(ctx, date, agentID, wire, true)
		outcomes = append(outcomes, outcome)
	}

	return outcomes
}

func (e *Engine) runCentral(ctx context.Context, date time.Time, state *orchestrator.DayState, decisions map[domain.Ticker]domain.PortfolioDecision, returns map[domain.Ticker]TickerOutcome) []domain.ReflectionOutcome {
	e.recordPMOutcomes(ctx, date, decisions, state, returns)

	all := map[string]any{
		"round1":    state.AnalystSignalsR1,
		"round2":    state.AnalystSignalsR2,
		"decisions": decisions,
	}
	allJSON, _ := json.Marshal(all)
	retJSON, _ := json.Marshal(returns)

	prompt, err := utils.LoadPromptWithContext("central_reflection", map[string]string{
		"Date":       date.Format("2006-01-02"),
		"AllOutputs": string(allJSON),
		"Returns":    string(retJSON),
	})
	if err != nil {
		return nil
	}

	binding := e.cfg.ModelFor("reflection_central", true)
	messages := []gateway.Message{
		{Role: gateway.RoleSystem, Content: "You centrally review today's agents and decide memory operations."},
		{Role: gateway.RoleUser, Content: prompt},
	}
	wire, callErr := gateway.CallStructured[centralWire](ctx, e.client, binding.ModelName, binding.Provider, messages, gateway.StructuredOptions[centralWire]{
		Temperature: 0.2,
		Retries:     3,
		DefaultFactory: func() centralWire { return centralWire{} },
	})
	if callErr != nil && len(wire.Operations) == 0 {
		return nil
	}

	var outcomes []domain.ReflectionOutcome
	for _, op := range wire.Operations {
		// central_review does not enforce ownership (§4.10).
		outcomes = append(outcomes, e.apply(ctx, date, op.AnalystID, op, false))
	}
	return outcomes
}

type reflectionWire struct {
	AnalystID  string `json:"analyst_id"`
	Operation  string `json:"operation"`
	Query      string `json:"query"`
	NewContent string `json:"new_content"`
	Reasoning  string `json:"reasoning"`
}

func (reflectionWire) IsEmptyResult() bool { return false }

type centralWire struct {
	Operations []reflectionWire `json:"operations"`
}

func (centralWire) IsEmptyResult() bool { return false }

func (e *Engine) callReflection(ctx context.Context, agentID, prompt string) reflectionWire {
	binding := e.cfg.ModelFor(agentID+"_reflection", false)
	messages := []gateway.Message{
		{Role: gateway.RoleSystem, Content: "You review your own day's outputs and decide whether to touch your memory."},
		{Role: gateway.RoleUser, Content: prompt},
	}
	wire, err := gateway.CallStructured[reflectionWire](ctx, e.client, binding.ModelName, binding.Provider, messages, gateway.StructuredOptions[reflectionWire]{
		Temperature: 0.2,
		Retries:     3,
		DefaultFactory: func() reflectionWire {
			return reflectionWire{AnalystID: agentID, Operation: "none"}
		},
	})
	if err != nil && wire.Operation == "" {
		return reflectionWire{AnalystID: agentID, Operation: "none"}
	}
	return wire
}

// apply implements §4.10's strict-ownership check (P5, S6) when
// enforceOwnership is true: an op whose analyst_id doesn't match reflecting
// is refused without effect, and every attempt — applied or refused — is
// logged to the per-day memory-ops JSONL (§6).
func (e *Engine) apply(ctx context.Context, date time.Time, reflecting string, wire reflectionWire, enforceOwnership bool) domain.ReflectionOutcome {
	outcome := domain.ReflectionOutcome{AnalystID: reflecting, Operation: wire.Operation}

	if enforceOwnership && wire.AnalystID != reflecting {
		outcome.Applied = false
		outcome.RefusedWhy = fmt.Sprintf("analyst_id mismatch: op names %q, reflecting as %q", wire.AnalystID, reflecting)
		e.logOp(date, reflecting, wire.Operation, "refused", outcome.RefusedWhy)
		return outcome
	}

	switch wire.Operation {
	case "", "none":
		outcome.Applied = false
		outcome.Operation = "none"
		return outcome
	case "search_and_update":
		result := e.searchAndMutate(ctx, reflecting, wire.Query, func(id string) error {
			return e.mem.Update(ctx, id, wire.NewContent, nil)
		})
		outcome.Applied = result == nil
		if result != nil {
			outcome.RefusedWhy = result.Error()
		}
		e.logOp(date, reflecting, wire.Operation, statusFor(result), wire.Reasoning)
	case "search_and_delete":
		result := e.searchAndMutate(ctx, reflecting, wire.Query, func(id string) error {
			return e.mem.Delete(ctx, id)
		})
		outcome.Applied = result == nil
		if result != nil {
			outcome.RefusedWhy = result.Error()
		}
		e.logOp(date, reflecting, wire.Operation, statusFor(result), wire.Reasoning)
	default:
		outcome.Applied = false
		outcome.RefusedWhy = fmt.Sprintf("unknown operation %q", wire.Operation)
	}
	return outcome
}

// searchAndMutate finds the top match for query scoped to userID and
// applies mutate to its id; a search miss is an §4.10/§7 "memory op
// failure" (record not found), not propagated beyond the outcome.
func (e *Engine) searchAndMutate(ctx context.Context, userID, query string, mutate func(id string) error) error {
	if e.mem == nil {
		return fmt.Errorf("no memory store configured")
	}
	records, err := e.mem.Search(ctx, query, userID, 1)
	if err != nil {
		return fmt.Errorf("search before mutate: %w", err)
	}
	if len(records) == 0 {
		return memory.ErrNotFound
	}
	return mutate(records[0].ID)
}

func statusFor(err error) string {
	if err == nil {
		return "applied"
	}
	return "error: " + err.Error()
}

func (e *Engine) logOp(date time.Time, agentID, operation, result, context string) {
	if e.persist == nil {
		return
	}
	if err := e.persist.AppendMemoryOp(date, persistence.MemoryOpRecord{
		Timestamp:     time.Now().UTC(),
		AgentID:       agentID,
		OperationType: operation,
		ToolName:      "reflection",
		Result:        result,
		Context:       context,
	}); err != nil {
		e.log.Printf("append memory op failed: %v", err)
	}
}

// recordPMOutcomes implements SUPPLEMENTED FEATURES item 3: one Memory
// Record per ticker before the PM's own reflection prompt is built.
func (e *Engine) recordPMOutcomes(ctx context.Context, date time.Time, decisions map[domain.Ticker]domain.PortfolioDecision, state *orchestrator.DayState, returns map[domain.Ticker]TickerOutcome) {
	if e.mem == nil {
		return
	}
	for ticker, decision := range decisions {
		outcomeReturn := returns[ticker]
		correct := evaluateOutcome(decision.Action, outcomeReturn.ActualReturn)
		opinions := e.peerOutputs("", state, decisions)

		content := fmt.Sprintf(
			"date=%s ticker=%s action=%s quantity=%d confidence=%.0f pm_reasoning=%q analyst_opinions=%s actual_return=%.4f outcome=%s",
			date.Format("2006-01-02"), ticker, decision.Action, decision.Quantity, decision.Confidence, decision.Reasoning, opinions, outcomeReturn.ActualReturn, outcomeStr(correct),
		)
		_, _ = e.mem.Add(ctx, content, pmAgentID, map[string]string{
			"kind":   "pm_outcome",
			"ticker": ticker,
			"date":   date.Format("2006-01-02"),
		})
	}
}

// evaluateOutcome is §4.10's evaluation heuristic, used only to annotate
// the prompt/memory record, never to retrain anything.
func evaluateOutcome(action domain.Action, actualReturn float64) bool {
	switch action {
	case domain.ActionLong:
		return actualReturn > 0.005
	case domain.ActionShort:
		return actualReturn < -0.005
	default:
		return actualReturn >= -0.005 && actualReturn <= 0.005
	}
}

func outcomeStr(correct bool) string {
	if correct {
		return "correct"
	}
	return "incorrect"
}

func (e *Engine) ownOutputs(agentID string, state *orchestrator.DayState, decisions map[domain.Ticker]domain.PortfolioDecision) string {
	if agentID == pmAgentID {
		raw, _ := json.Marshal(decisions)
		return string(raw)
	}
	raw, _ := json.Marshal(state.AnalystSignalsR2[agentID])
	return string(raw)
}

func (e *Engine) peerOutputs(excludeAgentID string, state *orchestrator.DayState, decisions map[domain.Ticker]domain.PortfolioDecision) string {
	peers := map[string]any{}
	for agentID, sig := range state.AnalystSignalsR2 {
		if agentID == excludeAgentID {
			continue
		}
		peers[agentID] = sig
	}
	if excludeAgentID != pmAgentID {
		peers[pmAgentID] = decisions
	}
	raw, err := json.Marshal(peers)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
