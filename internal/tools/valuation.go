package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/dyike/CortexGo/internal/dataflows"
	"github.com/dyike/CortexGo/internal/domain"
)

func buildValuationTools(provider *dataflows.Provider) []Spec {
	return []Spec{
		{
			Name:           "valuation_intrinsic_value",
			Category:       CategoryValuation,
			Description:    "Compares trailing-quarter return against market cap as a crude intrinsic-value gap proxy.",
			RequiredParams: []string{"ticker", "api_key", "end_date"},
			Info: newToolInfo("valuation_intrinsic_value",
				"Intrinsic-value gap estimate for a ticker as of end_date.",
				map[string]*schema.ParameterInfo{
					"ticker":   {Type: "string", Desc: "stock ticker", Required: true},
					"end_date": {Type: "string", Desc: "YYYY-MM-DD", Required: true},
				}),
			Run: func(ctx context.Context, params map[string]any) (domain.ToolResult, error) {
				ticker, err := requireString(params, "ticker")
				if err != nil {
					return domain.ToolResult{}, err
				}
				end, err := parseDateParam(params, "end_date")
				if err != nil {
					return domain.ToolResult{}, err
				}

				metrics, err := provider.FinancialMetrics(ctx, ticker, end, "quarterly", 4)
				if err != nil {
					return domain.ToolResult{}, fmt.Errorf("valuation_intrinsic_value: %w", err)
				}

				// Crude gap proxy: a trailing quarter return far from zero
				// in either direction suggests the market has already
				// priced in news the intrinsic-value check would flag, so
				// we treat strong recent moves as a gap signal rather than
				// attempting a full discounted-cash-flow model (no
				// statement data is available — see FinancialMetrics).
				gap := metrics["quarter_return"]
				signal, confidence := signalFromMagnitude(gap, 0.02, 0.1)
				return domain.ToolResult{
					Signal:     signal,
					Confidence: confidence,
					Metrics:    metrics,
					Reasoning:  fmt.Sprintf("trailing quarter move %.2f%% against market cap %.0f used as valuation-gap proxy", gap*100, metrics["market_cap"]),
				}, nil
			},
		},
		{
			Name:           "valuation_market_cap",
			Category:       CategoryValuation,
			Description:    "Reports the current market cap with no directional signal.",
			RequiredParams: []string{"ticker", "api_key", "end_date"},
			Info: newToolInfo("valuation_market_cap",
				"Current market capitalization for a ticker.",
				map[string]*schema.ParameterInfo{
					"ticker":   {Type: "string", Desc: "stock ticker", Required: true},
					"end_date": {Type: "string", Desc: "YYYY-MM-DD", Required: true},
				}),
			Run: func(ctx context.Context, params map[string]any) (domain.ToolResult, error) {
				ticker, err := requireString(params, "ticker")
				if err != nil {
					return domain.ToolResult{}, err
				}
				end, err := parseDateParam(params, "end_date")
				if err != nil {
					return domain.ToolResult{}, err
				}

				cap, err := provider.MarketCap(ctx, ticker, end)
				if err != nil {
					return domain.ToolResult{}, fmt.Errorf("valuation_market_cap: %w", err)
				}
				capFloat, _ := cap.Float64()

				return domain.ToolResult{
					Signal:     domain.SignalNeutral,
					Confidence: 50,
					Metrics:    map[string]float64{"market_cap": capFloat},
					Reasoning:  fmt.Sprintf("market cap %.0f (informational, no directional signal)", capFloat),
				}, nil
			},
		},
	}
}
