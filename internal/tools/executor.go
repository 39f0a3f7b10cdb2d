package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/dyike/CortexGo/internal/config"
	"github.com/dyike/CortexGo/internal/domain"
)

// Executor resolves a tool's parameters per §4.3's rules and runs it,
// capturing any failure into the ToolResult rather than letting it
// propagate (§4.3, §7's "Tool execution" row).
type Executor struct {
	registry *Registry
	cfg      *config.Config
}

func NewExecutor(registry *Registry, cfg *config.Config) *Executor {
	return &Executor{registry: registry, cfg: cfg}
}

// ResolveParams builds the parameter map for a tool in category, given a
// ticker and the [startDate, endDate] window, per §4.3:
//   - every tool requires ticker and api_key (key chosen by category)
//   - fundamental/valuation tools additionally require end_date
//   - technical/sentiment tools additionally require start_date
func (e *Executor) ResolveParams(cat Category, ticker string, startDate, endDate time.Time) map[string]any {
	params := map[string]any{
		"ticker":   ticker,
		"api_key":  e.apiKeyFor(cat),
		"end_date": endDate.Format("2006-01-02"),
	}
	switch cat {
	case CategoryTechnical, CategorySentiment:
		params["start_date"] = startDate.Format("2006-01-02")
	}
	return params
}

// apiKeyFor picks the key named by §4.3: "fundamental/valuation -> financial
// data key; technical/sentiment -> news/price key".
func (e *Executor) apiKeyFor(cat Category) string {
	switch cat {
	case CategoryFundamental, CategoryValuation:
		return e.cfg.FinnhubAPIKey
	case CategoryTechnical:
		if e.cfg.LongportToken != "" {
			return e.cfg.LongportToken
		}
		return e.cfg.FinnhubAPIKey
	default: // CategorySentiment
		return e.cfg.FinnhubAPIKey
	}
}

// Execute runs toolName with params, never returning a Go error: execution
// failures are folded into ToolResult.Error with signal=neutral,
// confidence=0, matching §4.3.
func (e *Executor) Execute(ctx context.Context, toolName string, params map[string]any) domain.ToolResult {
	spec, ok := e.registry.Get(toolName)
	if !ok {
		return errResult(toolName, fmt.Errorf("unknown tool %q", toolName))
	}

	result, err := spec.Run(ctx, params)
	if err != nil {
		return errResult(toolName, err)
	}
	result.ToolName = toolName
	return result
}

// ExecuteAll runs every selected tool sequentially (§5: "within one analyst
// task, execution is single-threaded and sequential across its tool
// calls") and returns one ToolResult per tool, in the same order. Each
// tool's parameters are resolved from its own declared category (§4.3),
// not the calling persona's category, since a selection may span
// categories (e.g. the "comprehensive" persona).
func (e *Executor) ExecuteAll(ctx context.Context, toolNames []string, ticker string, startDate, endDate time.Time) []domain.ToolResult {
	out := make([]domain.ToolResult, 0, len(toolNames))
	for _, name := range toolNames {
		spec, ok := e.registry.Get(name)
		if !ok {
			out = append(out, errResult(name, fmt.Errorf("unknown tool %q", name)))
			continue
		}
		params := e.ResolveParams(spec.Category, ticker, startDate, endDate)
		out = append(out, e.Execute(ctx, name, params))
	}
	return out
}
