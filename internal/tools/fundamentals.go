package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/dyike/CortexGo/internal/dataflows"
	"github.com/dyike/CortexGo/internal/domain"
)

func buildFundamentalTools(provider *dataflows.Provider) []Spec {
	return []Spec{
		{
			Name:           "fundamentals_financials",
			Category:       CategoryFundamental,
			Description:    "Pulls market cap and recent price-implied growth as a fundamentals proxy.",
			RequiredParams: []string{"ticker", "api_key", "end_date"},
			Info: newToolInfo("fundamentals_financials",
				"Financial metrics (market cap, growth proxy) for a ticker as of end_date.",
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
					return domain.ToolResult{}, fmt.Errorf("fundamentals_financials: %w", err)
				}

				growth := metrics["quarter_return"]
				signal, confidence := signalFromMagnitude(growth, 0.03, 0.08)
				return domain.ToolResult{
					Signal:     signal,
					Confidence: confidence,
					Metrics:    metrics,
					Reasoning:  fmt.Sprintf("trailing-quarter return %.2f%% against market cap %.0f", growth*100, metrics["market_cap"]),
				}, nil
			},
		},
		{
			Name:           "fundamentals_margin_trend",
			Category:       CategoryFundamental,
			Description:    "Flags whether the trailing return trend suggests improving or deteriorating fundamentals.",
			RequiredParams: []string{"ticker", "api_key", "end_date"},
			Info: newToolInfo("fundamentals_margin_trend",
				"Trend classification over the trailing quarter for a ticker.",
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
					return domain.ToolResult{}, fmt.Errorf("fundamentals_margin_trend: %w", err)
				}
				growth := metrics["quarter_return"]
				signal, confidence := signalFromMagnitude(growth, 0.01, 0.05)
				return domain.ToolResult{
					Signal:     signal,
					Confidence: confidence,
					Metrics:    metrics,
					Reasoning:  fmt.Sprintf("trend classification from %.2f%% quarterly move", growth*100),
				}, nil
			},
		},
	}
}

func parseDateParam(params map[string]any, key string) (time.Time, error) {
	s, err := requireString(params, key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", key, err)
	}
	return t, nil
}

// signalFromMagnitude maps a signed magnitude to a signal+confidence, used
// by several tools that reduce to "is this meaningfully positive or
// negative". lowThresh/highThresh gate bullish/bearish vs neutral.
func signalFromMagnitude(value, lowThresh, highThresh float64) (domain.Signal, float64) {
	abs := value
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs < lowThresh:
		return domain.SignalNeutral, 50
	case value > 0:
		conf := 60 + 30*minF(1, (abs-lowThresh)/(highThresh-lowThresh))
		return domain.SignalBullish, conf
	default:
		conf := 60 + 30*minF(1, (abs-lowThresh)/(highThresh-lowThresh))
		return domain.SignalBearish, conf
	}
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
