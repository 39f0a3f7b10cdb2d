package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/dyike/CortexGo/internal/dataflows"
	"github.com/dyike/CortexGo/internal/domain"
)

var positiveWords = []string{"beat", "surge", "upgrade", "record", "growth", "profit", "rally", "strong"}
var negativeWords = []string{"miss", "plunge", "downgrade", "lawsuit", "loss", "recall", "selloff", "weak"}

func buildSentimentTools(provider *dataflows.Provider) []Spec {
	return []Spec{
		{
			Name:           "sentiment_news",
			Category:       CategorySentiment,
			Description:    "Scores recent company news headlines by keyword polarity.",
			RequiredParams: []string{"ticker", "api_key", "start_date", "end_date"},
			Info: newToolInfo("sentiment_news",
				"Keyword-polarity sentiment over recent company news headlines.",
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

				articles, err := provider.CompanyNews(ctx, ticker, start, end, 25)
				if err != nil {
					return domain.ToolResult{}, fmt.Errorf("sentiment_news: %w", err)
				}
				if len(articles) == 0 {
					return domain.ToolResult{
						Signal: domain.SignalNeutral, Confidence: 0,
						Reasoning: "no recent news articles found",
					}, nil
				}

				score := 0
				for _, a := range articles {
					score += polarity(a.Title + " " + a.Content)
				}
				avg := float64(score) / float64(len(articles))

				signal, confidence := signalFromMagnitude(avg, 0.1, 1.0)
				return domain.ToolResult{
					Signal:     signal,
					Confidence: confidence,
					Metrics:    map[string]float64{"article_count": float64(len(articles)), "avg_polarity": avg},
					Reasoning:  fmt.Sprintf("scanned %d articles, avg polarity %.2f", len(articles), avg),
				}, nil
			},
		},
		{
			Name:           "sentiment_insider_activity",
			Category:       CategorySentiment,
			Description:    "Nets recent insider buy/sell share changes as a sentiment proxy.",
			RequiredParams: []string{"ticker", "api_key", "start_date", "end_date"},
			Info: newToolInfo("sentiment_insider_activity",
				"Net insider share change over [start_date, end_date].",
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

				trades, err := provider.InsiderTrades(ctx, ticker, start, end, 50)
				if err != nil {
					return domain.ToolResult{}, fmt.Errorf("sentiment_insider_activity: %w", err)
				}

				sentiment, sentErr := provider.InsiderSentiment(ctx, ticker, start, end)
				if sentErr != nil {
					sentiment = nil
				}

				if len(trades) == 0 && len(sentiment) == 0 {
					return domain.ToolResult{Signal: domain.SignalNeutral, Confidence: 0, Reasoning: "no insider activity reported"}, nil
				}

				var net int64
				for _, t := range trades {
					net += t.Change
				}

				var msprSum float64
				for _, s := range sentiment {
					f, _ := s.MSPR.Float64()
					msprSum += f
				}
				avgMSPR := 0.0
				if len(sentiment) > 0 {
					avgMSPR = msprSum / float64(len(sentiment))
				}

				signal, confidence := signalFromMagnitude(float64(net)+avgMSPR*1000, 1000, 50000)
				return domain.ToolResult{
					Signal:     signal,
					Confidence: confidence,
					Metrics: map[string]float64{
						"net_share_change":  float64(net),
						"transaction_count": float64(len(trades)),
						"avg_mspr":          avgMSPR,
						"sentiment_months":  float64(len(sentiment)),
					},
					Reasoning: fmt.Sprintf("net insider share change %d across %d transactions, avg MSPR %.3f over %d months", net, len(trades), avgMSPR, len(sentiment)),
				}, nil
			},
		},
	}
}

func polarity(text string) int {
	lc := strings.ToLower(text)
	score := 0
	for _, w := range positiveWords {
		if strings.Contains(lc, w) {
			score++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lc, w) {
			score--
		}
	}
	return score
}
