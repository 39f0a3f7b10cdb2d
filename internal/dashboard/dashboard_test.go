package dashboard

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dyike/CortexGo/internal/config"
	"github.com/dyike/CortexGo/internal/domain"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DashboardDir = filepath.Join(dir, "team_dashboard")
	return cfg
}

func TestUpdateFromDayResultWritesArtifacts(t *testing.T) {
	cfg := testConfig(t)
	sink := New(cfg)

	pre := domain.PreMarketResult{
		FinalDecisions: map[domain.Ticker]domain.PortfolioDecision{
			"AAPL": {Ticker: "AAPL", Action: domain.ActionLong, Quantity: 10, Confidence: 80},
			"MSFT": {Ticker: "MSFT", Action: domain.ActionHold, Confidence: 50},
		},
		CurrentPrices: map[domain.Ticker]decimal.Decimal{
			"AAPL": decimal.NewFromInt(150),
			"MSFT": decimal.NewFromInt(300),
		},
	}

	stats, err := sink.UpdateFromDayResult(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), pre, config.ModePortfolio)
	if err != nil {
		t.Fatalf("UpdateFromDayResult: %v", err)
	}
	if stats.TickersSeen != 2 {
		t.Fatalf("expected 2 tickers, got %d", stats.TickersSeen)
	}

	for _, name := range []string{"summary.json", "holdings.json", "trades.json", "leaderboard.json", "stats.json", "_internal_state.json"} {
		path := filepath.Join(cfg.DashboardDir, name)
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to exist: %v", name, err)
		}
	}

	var trades []map[string]any
	raw, err := os.ReadFile(filepath.Join(cfg.DashboardDir, "trades.json"))
	if err != nil {
		t.Fatalf("read trades.json: %v", err)
	}
	if err := json.Unmarshal(raw, &trades); err != nil {
		t.Fatalf("unmarshal trades.json: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected hold decisions excluded from trades.json, got %d rows", len(trades))
	}
	if trades[0]["ticker"] != "AAPL" {
		t.Fatalf("expected AAPL trade row, got %v", trades[0]["ticker"])
	}
}

func TestUpdateFromDayResultAccumulatesLeaderboardAcrossDays(t *testing.T) {
	cfg := testConfig(t)
	sink := New(cfg)

	decide := func(action domain.Action) domain.PreMarketResult {
		return domain.PreMarketResult{
			FinalDecisions: map[domain.Ticker]domain.PortfolioDecision{
				"AAPL": {Ticker: "AAPL", Action: action, Quantity: 5, Confidence: 70},
			},
			CurrentPrices: map[domain.Ticker]decimal.Decimal{"AAPL": decimal.NewFromInt(150)},
		}
	}

	if _, err := sink.UpdateFromDayResult(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), decide(domain.ActionLong), config.ModePortfolio); err != nil {
		t.Fatalf("day1: %v", err)
	}
	if _, err := sink.UpdateFromDayResult(time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC), decide(domain.ActionLong), config.ModePortfolio); err != nil {
		t.Fatalf("day2: %v", err)
	}

	row, ok := sink.state.Leaderboard["AAPL"]
	if !ok {
		t.Fatalf("expected AAPL leaderboard row")
	}
	if row.BullishDays != 2 {
		t.Fatalf("expected 2 bullish days, got %d", row.BullishDays)
	}

	// A fresh sink loaded from the same directory should resume the count.
	reloaded := New(cfg)
	row2, ok := reloaded.state.Leaderboard["AAPL"]
	if !ok || row2.BullishDays != 2 {
		t.Fatalf("expected reloaded sink to resume leaderboard state, got %+v ok=%v", row2, ok)
	}
}
