package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/dyike/CortexGo/internal/dataflows"
	"github.com/dyike/CortexGo/internal/domain"
)

func buildTechnicalTools(provider *dataflows.Provider) []Spec {
	return []Spec{
		{
			Name:           "technical_indicators",
			Category:       CategoryTechnical,
			Description:    "Computes RSI and a short/long SMA spread over the requested window.",
			RequiredParams: []string{"ticker", "api_key", "start_date", "end_date"},
			Info: newToolInfo("technical_indicators",
				"RSI(14) and SMA(10)/SMA(50) spread for a ticker over [start_date, end_date].",
				map[string]*schema.ParameterInfo{
					"ticker":     {Type: "string", Desc: "stock ticker", Required: true},
					"start_date": {Type: "string", Desc: "YYYY-MM-DD", Required: true},
					"end_date":   {Type: "string", Desc: "YYYY-MM-DD", Required: true},
				}),
			Run: func(ctx context.Context, params map[string]any) (domain.ToolResult, error) {
				ticker, err := requireString(params, "ticker")
				if err != nil {
					return domain.ToolResult{}, err
				}
				start, err := parseDateParam(params, "start_date")
				if err != nil {
					return domain.ToolResult{}, err
				}
				end, err := parseDateParam(params, "end_date")
				if err != nil {
					return domain.ToolResult{}, err
				}

				bars, err := provider.Prices(ctx, ticker, start, end)
				if err != nil || len(bars) == 0 {
					if err == nil {
						err = fmt.Errorf("no price bars returned for %s", ticker)
					}
					return domain.ToolResult{}, fmt.Errorf("technical_indicators: %w", err)
				}

				cl := closes(bars)
				r := rsi(cl, 14)
				smaShort := sma(cl, 10)
				smaLong := sma(cl, 50)
				spread := 0.0
				if smaLong != 0 {
					spread = (smaShort - smaLong) / smaLong
				}

				signal := domain.SignalNeutral
				confidence := 50.0
				switch {
				case r > 70 && spread < 0:
					signal, confidence = domain.SignalBearish, 70
				case r < 30 && spread > 0:
					signal, confidence = domain.SignalBullish, 70
				case spread > 0.01:
					signal, confidence = domain.SignalBullish, 60
				case spread < -0.01:
					signal, confidence = domain.SignalBearish, 60
				}

				return domain.ToolResult{
					Signal:     signal,
					Confidence: confidence,
					Metrics:    map[string]float64{"rsi": r, "sma_short": smaShort, "sma_long": smaLong, "sma_spread": spread},
					Reasoning:  fmt.Sprintf("RSI=%.1f, SMA10/50 spread=%.2f%%", r, spread*100),
				}, nil
			},
		},
		{
			Name:           "technical_moving_average_crossover",
			Category:       CategoryTechnical,
			Description:    "200-day moving average crossover; internally widens the lookback window.",
			RequiredParams: []string{"ticker", "api_key", "start_date", "end_date"},
			Info: newToolInfo("technical_moving_average_crossover",
				"SMA(50)/SMA(200) golden/death-cross check for a ticker.",
				map[string]*schema.ParameterInfo{
					"ticker":     {Type: "string", Desc: "stock ticker", Required: true},
					"start_date": {Type: "string", Desc: "YYYY-MM-DD", Required: true},
					"end_date":   {Type: "string", Desc: "YYYY-MM-DD", Required: true},
				}),
			Run: func(ctx context.Context, params map[string]any) (domain.ToolResult, error) {
				ticker, err := requireString(params, "ticker")
				if err != nil {
					return domain.ToolResult{}, err
				}
				// §4.3: "a 200-day moving average tool extends start_date
				// 250 calendar days back" — this tool needs 200 bars of
				// history to compute the long SMA, so it widens its own
				// window inward rather than trusting the caller's range.
				end, err := parseDateParam(params, "end_date")
				if err != nil {
					return domain.ToolResult{}, err
				}
				widenedStart := end.AddDate(0, 0, -250)

				bars, err := provider.Prices(ctx, ticker, widenedStart, end)
				if err != nil || len(bars) < 20 {
					if err == nil {
						err = fmt.Errorf("insufficient price history for %s (%d bars)", ticker, len(bars))
					}
					return domain.ToolResult{}, fmt.Errorf("technical_moving_average_crossover: %w", err)
				}

				cl := closes(bars)
				smaShort := sma(cl, 50)
				smaLong := sma(cl, 200)
				spread := 0.0
				if smaLong != 0 {
					spread = (smaShort - smaLong) / smaLong
				}

				signal, confidence := signalFromMagnitude(spread, 0.01, 0.06)
				return domain.ToolResult{
					Signal:     signal,
					Confidence: confidence,
					Metrics:    map[string]float64{"sma_50": smaShort, "sma_200": smaLong, "spread": spread},
					Reasoning:  fmt.Sprintf("SMA50/200 spread=%.2f%% over %d bars (widened from %s)", spread*100, len(bars), widenedStart.Format("2006-01-02")),
				}, nil
			},
		},
	}
}
