// Package tools implements the Tool Registry & Executor (C3): a catalog of
// analysis tools with per-tool parameter schemas and a synchronous executor
// that never lets a tool failure escape as an error (§4.3).
//
// Tool schemas are declared with eino's schema.ToolInfo/ParameterInfo, the
// same declarative shape the teacher uses for every tool in
// internal/tools/market_tools.go, google_news_tools.go, and
// reddit_tools.go (schema.NewParamsOneOfByParams(...)). Unlike the teacher,
// execution here is not driven through eino's chat-model tool-calling loop
// (compose.ToolsNode) — C3's contract is a direct, synchronous
// (tool_name, params) -> ToolResult call, so each ToolSpec carries its own
// Go closure instead of being invoked via tool.BaseTool.InvokableRun. The
// schema types are still reused verbatim for describing tools to the Tool
// Selector's prompt (§4.4 "the full tool schemas").
package tools

import (
	"context"
	"fmt"
	"sort"

	"github.com/cloudwego/eino/schema"

	"github.com/dyike/CortexGo/internal/config"
	"github.com/dyike/CortexGo/internal/dataflows"
	"github.com/dyike/CortexGo/internal/domain"
)

// Category is one of the four tool categories named in §4.3.
type Category string

const (
	CategoryFundamental Category = "fundamental"
	CategoryTechnical   Category = "technical"
	CategorySentiment   Category = "sentiment"
	CategoryValuation   Category = "valuation"
)

// RunFunc is the executable body of a tool: deterministic given its
// resolved params (the GLOSSARY's "Tool" definition).
type RunFunc func(ctx context.Context, params map[string]any) (domain.ToolResult, error)

// Spec is one catalog entry: name, category, parameter contract, and the
// executable body.
type Spec struct {
	Name           string
	Category       Category
	Description    string
	RequiredParams []string
	OptionalParams []string
	Info           *schema.ToolInfo
	Run            RunFunc
}

// Registry is the catalog of every tool C4/C5 may select from.
type Registry struct {
	specs map[string]Spec
	order []string
}

func NewRegistry(cfg *config.Config, provider *dataflows.Provider) *Registry {
	r := &Registry{specs: map[string]Spec{}}
	for _, spec := range buildFundamentalTools(provider) {
		r.register(spec)
	}
	for _, spec := range buildTechnicalTools(provider) {
		r.register(spec)
	}
	for _, spec := range buildSentimentTools(provider) {
		r.register(spec)
	}
	for _, spec := range buildValuationTools(provider) {
		r.register(spec)
	}
	return r
}

func (r *Registry) register(spec Spec) {
	r.specs[spec.Name] = spec
	r.order = append(r.order, spec.Name)
}

// Get returns the spec for name, or false if unknown.
func (r *Registry) Get(name string) (Spec, bool) {
	s, ok := r.specs[name]
	return s, ok
}

// Names returns every registered tool name in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ForCategory returns every tool name in the given category, sorted for
// determinism. Persona default tool sets come from the persona YAML files,
// not from this list.
func (r *Registry) ForCategory(cat Category) []string {
	var out []string
	for _, name := range r.order {
		if r.specs[name].Category == cat {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// ValidateNames drops any name not present in the registry, per §4.4's
// "validates returned tool names against the registry and drops unknown
// names".
func (r *Registry) ValidateNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := r.specs[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Schemas renders every tool's descriptive schema for the Tool Selector's
// prompt.
func (r *Registry) Schemas() []ToolSchema {
	out := make([]ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		s := r.specs[name]
		out = append(out, ToolSchema{
			Name:           s.Name,
			Category:       string(s.Category),
			Description:    s.Description,
			RequiredParams: s.RequiredParams,
			OptionalParams: s.OptionalParams,
		})
	}
	return out
}

// ToolSchema is the prompt-facing rendering of a Spec.
type ToolSchema struct {
	Name           string   `json:"name"`
	Category       string   `json:"category"`
	Description    string   `json:"description"`
	RequiredParams []string `json:"required_params"`
	OptionalParams []string `json:"optional_params"`
}

func newToolInfo(name, desc string, params map[string]*schema.ParameterInfo) *schema.ToolInfo {
	return &schema.ToolInfo{
		Name:        name,
		Desc:        desc,
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}
}

func errResult(toolName string, err error) domain.ToolResult {
	return domain.ToolResult{
		ToolName:   toolName,
		Signal:     domain.SignalNeutral,
		Confidence: 0,
		Error:      err.Error(),
	}
}

func requireString(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("missing required param %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("param %q must be a non-empty string", key)
	}
	return s, nil
}
