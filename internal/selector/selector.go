// Package selector implements the Tool Selector (C4): given an analyst
// persona and context, asks the Model Gateway to choose a subset of tools,
// executes them through C3, and synthesizes their outputs into one signal.
//
// Grounded on the teacher's internal/agents tool-selection prompts
// (internal/agents/analysts/market_analyst.go builds a similar
// persona+ticker+schema prompt before calling its chat model) and on
// utils.LoadPromptWithContext for templating.
package selector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dyike/CortexGo/internal/domain"
	"github.com/dyike/CortexGo/internal/gateway"
	"github.com/dyike/CortexGo/internal/personas"
	"github.com/dyike/CortexGo/internal/tools"
	"github.com/dyike/CortexGo/internal/utils"
)

// Selector is C4.
type Selector struct {
	client   gateway.Client
	registry *tools.Registry
	executor *tools.Executor
	personas *personas.Loader
}

func New(client gateway.Client, registry *tools.Registry, executor *tools.Executor, personaLoader *personas.Loader) *Selector {
	return &Selector{client: client, registry: registry, executor: executor, personas: personaLoader}
}

type selectedToolWire struct {
	ToolName string `json:"tool_name"`
	Reason   string `json:"reason"`
}

type selectionWire struct {
	SelectedTools     []selectedToolWire `json:"selected_tools"`
	AnalysisStrategy  string             `json:"analysis_strategy"`
	SynthesisApproach string             `json:"synthesis_approach"`
	ToolCount         int                `json:"tool_count"`
}

// IsEmptyResult implements gateway.EmptyGuard loosely: an empty selection is
// not itself a parse failure (the persona default fills it in), so this
// always reports non-empty and lets Select's own validation handle it.
func (selectionWire) IsEmptyResult() bool { return false }

// Select builds §4.4's selection prompt, calls the Model Gateway, validates
// returned tool names against the registry, drops unknown names, and falls
// back to the persona's default tool set when nothing survives validation.
func (s *Selector) Select(ctx context.Context, modelID, provider, analystType, ticker, marketConditions, objective string) (domain.ToolSelection, error) {
	persona, err := s.personas.Load(analystType)
	if err != nil {
		return domain.ToolSelection{}, fmt.Errorf("select: %w", err)
	}

	prompt, err := utils.LoadPromptWithContext("tool_selection", map[string]string{
		"Persona":            persona.DisplayName,
		"PersonaDescription": persona.Description,
		"Ticker":             ticker,
		"MarketConditions":   marketConditions,
		"Objective":          objective,
		"ToolSchemas":        renderSchemas(s.registry.Schemas()),
	})
	if err != nil {
		return domain.ToolSelection{}, fmt.Errorf("select: %w", err)
	}

	messages := []gateway.Message{
		{Role: gateway.RoleSystem, Content: "You are an investment analyst choosing analysis tools."},
		{Role: gateway.RoleUser, Content: prompt},
	}

	wire, err := gateway.CallStructured[selectionWire](ctx, s.client, modelID, provider, messages, gateway.StructuredOptions[selectionWire]{
		Temperature: 0.3,
		DefaultFactory: func() selectionWire {
			return selectionWire{}
		},
	})
	if err != nil && len(wire.SelectedTools) == 0 {
		// Fall through to the persona default below; err is swallowed since
		// a non-fatal fallback is the documented contract (§4.4).
	}

	names := make([]string, 0, len(wire.SelectedTools))
	for _, t := range wire.SelectedTools {
		names = append(names, t.ToolName)
	}
	validated := s.registry.ValidateNames(names)

	if len(validated) == 0 {
		return s.defaultSelection(persona), nil
	}

	reasons := map[string]string{}
	for _, t := range wire.SelectedTools {
		reasons[t.ToolName] = t.Reason
	}

	selected := make([]domain.SelectedTool, 0, len(validated))
	for _, name := range validated {
		selected = append(selected, domain.SelectedTool{ToolName: name, Reason: reasons[name]})
	}

	strategy := wire.AnalysisStrategy
	if strategy == "" {
		strategy = "llm_selected"
	}

	return domain.ToolSelection{
		Strategy:      strategy,
		SelectedTools: selected,
		Count:         len(selected),
	}, nil
}

// defaultSelection is the persona-specific fallback named in §4.4 "if the
// post-validation list is empty, returns a persona-specific default set".
func (s *Selector) defaultSelection(persona personas.Persona) domain.ToolSelection {
	validated := s.registry.ValidateNames(persona.DefaultTools)
	selected := make([]domain.SelectedTool, 0, len(validated))
	for _, name := range validated {
		selected = append(selected, domain.SelectedTool{ToolName: name, Reason: "persona default"})
	}
	return domain.ToolSelection{
		Strategy:      "persona_default",
		SelectedTools: selected,
		Count:         len(selected),
	}
}

// Execute runs every selected tool (C3) for ticker over [startDate, endDate],
// delegating to the Tool Executor per §4.3/§4.4's `execute` operation.
func (s *Selector) Execute(ctx context.Context, selection domain.ToolSelection, ticker string, startDate, endDate time.Time) []domain.ToolResult {
	names := make([]string, 0, len(selection.SelectedTools))
	for _, t := range selection.SelectedTools {
		names = append(names, t.ToolName)
	}
	return s.executor.ExecuteAll(ctx, names, ticker, startDate, endDate)
}

type synthesisWire struct {
	Signal              string `json:"signal"`
	Confidence          float64 `json:"confidence"`
	Reasoning           string `json:"reasoning"`
	ToolImpactAnalysis  string `json:"tool_impact_analysis"`
	SynthesisMethod     string `json:"synthesis_method"`
}

func (synthesisWire) IsEmptyResult() bool { return false }

// Synthesis is C4's third operation's result shape.
type Synthesis struct {
	Signal             domain.Signal
	Confidence         float64
	Reasoning          string
	ToolImpactAnalysis string
	SynthesisMethod    string
}

// Synthesize combines tool_results into one signal, retrying up to 3 times
// with exponential backoff; on exhaustion it returns the §4.4 documented
// failure value (neutral/50/"Failed to synthesize"/error).
func (s *Selector) Synthesize(ctx context.Context, modelID, provider, analystType, ticker string, results []domain.ToolResult, selection domain.ToolSelection) Synthesis {
	persona, err := s.personas.Load(analystType)
	personaName := analystType
	if err == nil {
		personaName = persona.DisplayName
	}

	prompt, promptErr := utils.LoadPromptWithContext("synthesis", map[string]string{
		"Persona":     personaName,
		"Ticker":      ticker,
		"ToolResults": renderToolResults(results),
	})
	if promptErr != nil {
		return failedSynthesis()
	}

	messages := []gateway.Message{
		{Role: gateway.RoleSystem, Content: "You are an investment analyst synthesizing tool output into one signal."},
		{Role: gateway.RoleUser, Content: prompt},
	}

	wire, callErr := gateway.CallStructured[synthesisWire](ctx, s.client, modelID, provider, messages, gateway.StructuredOptions[synthesisWire]{
		Temperature: 0.2,
		Retries:     3,
	})
	if callErr != nil && wire.Signal == "" {
		return failedSynthesis()
	}

	signal := domain.Signal(wire.Signal)
	switch signal {
	case domain.SignalBullish, domain.SignalBearish, domain.SignalNeutral:
	default:
		signal = domain.SignalNeutral
	}

	confidence := wire.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	return Synthesis{
		Signal:             signal,
		Confidence:         confidence,
		Reasoning:          wire.Reasoning,
		ToolImpactAnalysis: wire.ToolImpactAnalysis,
		SynthesisMethod:    wire.SynthesisMethod,
	}
}

func failedSynthesis() Synthesis {
	return Synthesis{
		Signal:          domain.SignalNeutral,
		Confidence:      50,
		Reasoning:       "Failed to synthesize",
		SynthesisMethod: "error",
	}
}

func renderSchemas(schemas []tools.ToolSchema) string {
	raw, err := json.Marshal(schemas)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func renderToolResults(results []domain.ToolResult) string {
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "- %s: signal=%s confidence=%.0f reasoning=%q", r.ToolName, r.Signal, r.Confidence, r.Reasoning)
		if r.Error != "" {
			fmt.Fprintf(&b, " error=%q", r.Error)
		}
		b.WriteString("\n")
	}
	return b.String()
}
