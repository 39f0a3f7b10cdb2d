package portfolio

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dyike/CortexGo/internal/domain"
)

func TestExecuteDownsizesWhenCashInsufficient(t *testing.T) {
	// S2: initial_cash = 1000, AAPL price = 2000, PM wants long 10.
	p := &domain.Portfolio{Cash: decimal.NewFromInt(1000), Positions: map[domain.Ticker]*domain.Position{}}
	decisions := map[domain.Ticker]domain.PortfolioDecision{
		"AAPL": {Ticker: "AAPL", Action: domain.ActionLong, Quantity: 10, Confidence: 80},
	}
	prices := map[domain.Ticker]decimal.Decimal{"AAPL": decimal.NewFromInt(2000)}

	report := NewTradeExecutor().Execute(p, decisions, prices)

	if report.Portfolio.Cash.IsNegative() {
		t.Fatalf("cash went negative: %s", report.Portfolio.Cash)
	}
	pos := report.Portfolio.PositionFor("AAPL")
	if pos.Long > 0 {
		t.Fatalf("expected 0 shares affordable at 1000/2000, got %d", pos.Long)
	}
	if !report.Fills["AAPL"].Rejected {
		t.Fatal("expected fill to be marked rejected/downsized")
	}
}

func TestExecuteLongIncreasesPositionAndDecreasesCash(t *testing.T) {
	p := &domain.Portfolio{Cash: decimal.NewFromInt(10000), Positions: map[domain.Ticker]*domain.Position{}}
	decisions := map[domain.Ticker]domain.PortfolioDecision{
		"AAPL": {Ticker: "AAPL", Action: domain.ActionLong, Quantity: 5, Confidence: 80},
	}
	prices := map[domain.Ticker]decimal.Decimal{"AAPL": decimal.NewFromInt(100)}

	report := NewTradeExecutor().Execute(p, decisions, prices)

	pos := report.Portfolio.PositionFor("AAPL")
	if pos.Long != 5 {
		t.Fatalf("expected long 5, got %d", pos.Long)
	}
	wantCash := decimal.NewFromInt(10000 - 500)
	if !report.Portfolio.Cash.Equal(wantCash) {
		t.Fatalf("expected cash %s, got %s", wantCash, report.Portfolio.Cash)
	}
}

func TestExecuteHoldLeavesPortfolioUnchanged(t *testing.T) {
	p := &domain.Portfolio{Cash: decimal.NewFromInt(500), Positions: map[domain.Ticker]*domain.Position{}}
	decisions := map[domain.Ticker]domain.PortfolioDecision{
		"AAPL": {Ticker: "AAPL", Action: domain.ActionHold, Quantity: 0},
	}
	report := NewTradeExecutor().Execute(p, decisions, map[domain.Ticker]decimal.Decimal{"AAPL": decimal.NewFromInt(100)})

	if !report.Portfolio.Cash.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected unchanged cash, got %s", report.Portfolio.Cash)
	}
}

func TestBuildMemoryQueryPicksMajorityDirection(t *testing.T) {
	perAgent := map[string]map[domain.Ticker]CanonicalSignal{
		"fundamental_analyst_agent": {"AAPL": {Signal: domain.SignalBullish}},
		"technical_analyst_agent":   {"AAPL": {Signal: domain.SignalBullish}},
	}
	query := BuildMemoryQuery("AAPL", perAgent)
	if query != "AAPL investment decision bullish signals" {
		t.Fatalf("unexpected query: %s", query)
	}
}

func TestBuildMemoryQueryDivergenceWhenSplit(t *testing.T) {
	perAgent := map[string]map[domain.Ticker]CanonicalSignal{
		"fundamental_analyst_agent": {"AAPL": {Signal: domain.SignalBullish}},
		"technical_analyst_agent":   {"AAPL": {Signal: domain.SignalBearish}},
	}
	query := BuildMemoryQuery("AAPL", perAgent)
	if query != "AAPL investment decision divergence signals" {
		t.Fatalf("unexpected query: %s", query)
	}
}
