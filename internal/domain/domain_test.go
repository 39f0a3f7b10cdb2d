package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestPortfolioCloneIsIndependentOfOriginal(t *testing.T) {
	original := &Portfolio{
		Cash: decimal.NewFromInt(1000),
		Positions: map[Ticker]*Position{
			"AAPL": {Long: 10, LongCostBasis: decimal.NewFromInt(150)},
		},
		MarginRequirement: decimal.NewFromFloat(0.5),
	}

	clone := original.Clone()
	clone.Cash = decimal.NewFromInt(9999)
	clone.Positions["AAPL"].Long = 999

	if original.Cash.IntPart() != 1000 {
		t.Fatalf("expected original cash untouched, got %v", original.Cash)
	}
	if original.Positions["AAPL"].Long != 10 {
		t.Fatalf("expected original position untouched, got %v", original.Positions["AAPL"].Long)
	}
}

func TestPortfolioCloneCopiesEmptyPositions(t *testing.T) {
	original := &Portfolio{Cash: decimal.Zero, Positions: map[Ticker]*Position{}}
	clone := original.Clone()
	if clone.Positions == nil {
		t.Fatal("expected a non-nil empty positions map")
	}
	if len(clone.Positions) != 0 {
		t.Fatalf("expected no positions, got %d", len(clone.Positions))
	}
}

func TestPositionForReturnsZeroValueWhenAbsent(t *testing.T) {
	p := &Portfolio{Positions: map[Ticker]*Position{}}

	got := p.PositionFor("MSFT")
	if !got.LongCostBasis.IsZero() || !got.ShortCostBasis.IsZero() {
		t.Fatalf("expected zero-valued position for an absent ticker, got %+v", got)
	}
	if _, ok := p.Positions["MSFT"]; ok {
		t.Fatal("expected PositionFor not to insert into the map")
	}
}

func TestPositionForReturnsExistingPosition(t *testing.T) {
	p := &Portfolio{Positions: map[Ticker]*Position{
		"MSFT": {Long: 5, LongCostBasis: decimal.NewFromInt(300)},
	}}

	got := p.PositionFor("MSFT")
	if got.Long != 5 {
		t.Fatalf("expected existing position to be returned, got %+v", got)
	}
}

func TestAnalystSignalR2IsEmptyResult(t *testing.T) {
	empty := AnalystSignalR2{}
	if !empty.IsEmptyResult() {
		t.Fatal("expected a signal with no ticker signals to be empty")
	}

	nonEmpty := AnalystSignalR2{TickerSignals: []TickerSignal{{Ticker: "AAPL", Signal: SignalBullish}}}
	if nonEmpty.IsEmptyResult() {
		t.Fatal("expected a signal with ticker signals to be non-empty")
	}
}
