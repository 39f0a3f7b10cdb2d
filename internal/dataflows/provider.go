// Package dataflows is the concrete adapter for the Market Data Provider
// external collaborator (§6): prices, financial metrics, insider trades,
// company news, and market cap, fed from Longport (primary broker feed),
// Yahoo Finance via piquette/finance-go (secondary/fallback), Finnhub
// (news/insider), and a Google News scraper (sentiment headlines) — the
// same data sources the teacher's internal/tools package pulls from,
// reassembled here behind one Provider instead of the teacher's
// package-level globals (§9's "Global-mutable LLM clients and caches"
// redesign flag applies equally to market-data clients: Provider is
// constructed once per run by internal/cli and passed by pointer to
// every caller, never reached through a package-level variable).
package dataflows

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dyike/CortexGo/internal/domain"
)

// Provider implements every Market Data Provider operation named in §6.
type Provider struct {
	cfg      *Config
	longport *LongportClient // nil when Longport credentials are unset
	yahoo    *YahooFinanceClient
	finnhub  *FinnhubClient
	news     *NewsScraperClient
}

func NewProvider(cfg *Config) *Provider {
	lp, _ := NewLongportClient(cfg)
	return &Provider{
		cfg:      cfg,
		longport: lp,
		yahoo:    NewYahooFinanceClient(cfg),
		finnhub:  NewFinnhubClient(cfg),
		news:     NewNewsScraperClient(cfg),
	}
}

// Prices returns daily price bars for ticker over [start, end], preferring
// the Longport broker feed and falling back to Yahoo Finance when Longport
// is unavailable or returns nothing useful. There is no shared source
// interface: Provider calls the two concrete clients directly.
func (p *Provider) Prices(ctx context.Context, ticker string, start, end time.Time) ([]domain.PriceBar, error) {
	if p.longport != nil {
		days := int(end.Sub(start).Hours()/24) + 5
		if days < 5 {
			days = 5
		}
		sticks, err := p.longport.GetCandlesticks(ctx, ticker, days)
		if err == nil && len(sticks) > 0 {
			bars := make([]domain.PriceBar, 0, len(sticks))
			for _, s := range sticks {
				d := time.Unix(s.Timestamp, 0).UTC()
				if d.Before(start) || d.After(end) {
					continue
				}
				bars = append(bars, domain.PriceBar{
					Ticker: ticker, Date: d,
					Open: s.Open, High: s.High, Low: s.Low, Close: s.Close,
					Volume: s.Volume,
				})
			}
			if len(bars) > 0 {
				return bars, nil
			}
		}
	}

	data, err := p.yahoo.GetHistoricalData(ticker, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch prices for %s: %w", ticker, err)
	}
	bars := make([]domain.PriceBar, 0, len(data))
	for _, d := range data {
		bars = append(bars, domain.PriceBar{
			Ticker: ticker, Date: d.Date,
			Open: d.Open, High: d.High, Low: d.Low, Close: d.Close,
			Volume: d.Volume,
		})
	}
	return bars, nil
}

// FinancialMetrics returns a small set of valuation-relevant ratios derived
// from market cap and recent price action. The teacher repo and the rest
// of the pack carry no dedicated fundamentals-statement API (Finnhub's
// balance-sheet endpoints are not wired in internal/dataflows/finnhub.go);
// this is a deliberately minimal stand-in so the fundamentals/valuation
// tools (C3) have real numbers to reason over rather than fabricated ones.
func (p *Provider) FinancialMetrics(ctx context.Context, ticker string, end time.Time, period string, limit int) (map[string]float64, error) {
	marketCap, err := p.yahoo.GetMarketCap(ticker)
	if err != nil {
		return nil, fmt.Errorf("financial metrics for %s: %w", ticker, err)
	}

	start := end.AddDate(0, 0, -90)
	bars, err := p.Prices(ctx, ticker, start, end)
	if err != nil || len(bars) < 2 {
		return map[string]float64{"market_cap": mustFloat(marketCap)}, nil
	}

	first := bars[0].Close
	last := bars[len(bars)-1].Close
	quarterReturn := 0.0
	if !first.IsZero() {
		quarterReturn, _ = last.Sub(first).Div(first).Float64()
	}

	return map[string]float64{
		"market_cap":     mustFloat(marketCap),
		"quarter_return": quarterReturn,
	}, nil
}

func (p *Provider) InsiderTrades(ctx context.Context, ticker string, start, end time.Time, limit int) ([]*InsiderTransaction, error) {
	trans, err := p.finnhub.GetInsiderTransactions(ticker, start, end)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(trans) > limit {
		trans = trans[:limit]
	}
	return trans, nil
}

// InsiderSentiment returns Finnhub's monthly insider MSPR series for
// ticker, feeding the sentiment_insider_activity tool's aggregate signal
// alongside the raw transaction netting from InsiderTrades.
func (p *Provider) InsiderSentiment(ctx context.Context, ticker string, start, end time.Time) ([]*InsiderSentiment, error) {
	return p.finnhub.GetInsiderSentiment(ticker, start, end)
}

func (p *Provider) CompanyNews(ctx context.Context, ticker string, start, end time.Time, limit int) ([]*NewsArticle, error) {
	articles, err := p.finnhub.GetCompanyNews(ticker, start, end)
	if err != nil || len(articles) == 0 {
		scraped, scrapeErr := p.news.GetGoogleNews(GoogleNewsParams{
			Query: ticker, StartDate: start, EndDate: end, MaxResults: limit,
		})
		if scrapeErr != nil {
			if err != nil {
				return nil, fmt.Errorf("company news for %s: finnhub: %v, scraper: %w", ticker, err, scrapeErr)
			}
			return nil, scrapeErr
		}
		articles = scraped
	}
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}
	return articles, nil
}

func (p *Provider) MarketCap(ctx context.Context, ticker string, end time.Time) (decimal.Decimal, error) {
	return p.yahoo.GetMarketCap(ticker)
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
