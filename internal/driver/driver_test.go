package driver

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dyike/CortexGo/internal/domain"
	"github.com/dyike/CortexGo/internal/orchestrator"
	"github.com/dyike/CortexGo/internal/reflection"
)

func TestComputeReturnsWithBothPrices(t *testing.T) {
	tickers := []domain.Ticker{"AAPL"}
	previous := map[domain.Ticker]float64{"AAPL": 100}
	current := map[domain.Ticker]decimal.Decimal{"AAPL": decimal.NewFromInt(110)}

	out := computeReturns(tickers, previous, current)

	want := reflection.TickerOutcome{Ticker: "AAPL", ActualReturn: 0.1}
	got := out["AAPL"]
	if got.Ticker != want.Ticker {
		t.Fatalf("expected ticker %v, got %v", want.Ticker, got.Ticker)
	}
	if got.ActualReturn < 0.0999 || got.ActualReturn > 0.1001 {
		t.Fatalf("expected ~0.1 return, got %v", got.ActualReturn)
	}
}

func TestComputeReturnsMissingPreviousDefaultsToZero(t *testing.T) {
	tickers := []domain.Ticker{"AAPL", "MSFT"}
	previous := map[domain.Ticker]float64{} // first day of a run: no prior price
	current := map[domain.Ticker]decimal.Decimal{"AAPL": decimal.NewFromInt(110)}

	out := computeReturns(tickers, previous, current)

	if out["AAPL"].ActualReturn != 0 {
		t.Fatalf("expected 0 return without a previous price, got %v", out["AAPL"].ActualReturn)
	}
	if out["MSFT"].ActualReturn != 0 {
		t.Fatalf("expected 0 return for a ticker with neither price, got %v", out["MSFT"].ActualReturn)
	}
	if len(out) != 2 {
		t.Fatalf("expected an entry for every requested ticker, got %d", len(out))
	}
}

func TestComputeReturnsZeroPreviousAvoidsDivideByZero(t *testing.T) {
	tickers := []domain.Ticker{"AAPL"}
	previous := map[domain.Ticker]float64{"AAPL": 0}
	current := map[domain.Ticker]decimal.Decimal{"AAPL": decimal.NewFromInt(50)}

	out := computeReturns(tickers, previous, current)
	if out["AAPL"].ActualReturn != 0 {
		t.Fatalf("expected 0 return when previous price is 0, got %v", out["AAPL"].ActualReturn)
	}
}

func TestComputeAgentWinRatesScoresDirectionalAgreement(t *testing.T) {
	state := &orchestrator.DayState{
		AnalystSignalsR2: map[string]domain.AnalystSignalR2{
			"market": {
				TickerSignals: []domain.TickerSignal{
					{Ticker: "AAPL", Signal: domain.SignalBullish},
					{Ticker: "MSFT", Signal: domain.SignalBearish},
				},
			},
		},
	}
	returns := map[domain.Ticker]reflection.TickerOutcome{
		"AAPL": {Ticker: "AAPL", ActualReturn: 0.02},  // agrees with bullish
		"MSFT": {Ticker: "MSFT", ActualReturn: 0.01}, // disagrees with bearish
	}

	rates := computeAgentWinRates(state, returns)
	if got := rates["market"]; got < 0.49 || got > 0.51 {
		t.Fatalf("expected 1/2 correct = 0.5, got %v", got)
	}
}

func TestComputeAgentWinRatesOmitsAgentsWithNoScoredTickers(t *testing.T) {
	state := &orchestrator.DayState{
		AnalystSignalsR2: map[string]domain.AnalystSignalR2{
			"market": {TickerSignals: []domain.TickerSignal{{Ticker: "GOOG", Signal: domain.SignalBullish}}},
		},
	}
	rates := computeAgentWinRates(state, map[domain.Ticker]reflection.TickerOutcome{})
	if _, ok := rates["market"]; ok {
		t.Fatal("expected an agent with no scored tickers to be omitted")
	}
}
