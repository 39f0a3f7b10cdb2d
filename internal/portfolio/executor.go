package portfolio

import (
	"github.com/shopspring/decimal"

	"github.com/dyike/CortexGo/internal/domain"
)

// TradeExecutionReport is what the trade executor returns after applying a
// batch of decisions; the Multi-Day Driver extracts the updated portfolio
// from it (§4.11 step 3).
type TradeExecutionReport struct {
	Portfolio *domain.Portfolio
	Fills     map[domain.Ticker]Fill
}

// Fill records what was actually executed for one ticker, which may differ
// from the requested decision (S2: cash exhaustion downsizes the order).
type Fill struct {
	Requested domain.PortfolioDecision
	Executed  int64 // signed: positive = shares bought long / covered short, negative = shares sold/shorted
	Rejected  bool
	Reason    string
}

// TradeExecutor is the Portfolio's single writer (§5).
type TradeExecutor struct{}

func NewTradeExecutor() *TradeExecutor { return &TradeExecutor{} }

// Execute applies decisions against currentPrices, mutating a clone of
// portfolio and returning the report. It never lets cash go negative and
// never produces a fractional share count (P4, S2): requested quantities
// are downsized to what cash actually affords before any state mutation.
func (e *TradeExecutor) Execute(portfolio *domain.Portfolio, decisions map[domain.Ticker]domain.PortfolioDecision, currentPrices map[domain.Ticker]decimal.Decimal) TradeExecutionReport {
	p := portfolio.Clone()
	fills := map[domain.Ticker]Fill{}

	for ticker, decision := range decisions {
		price, ok := currentPrices[ticker]
		if !ok || price.IsZero() || decision.Action == domain.ActionHold || decision.Quantity == 0 {
			fills[ticker] = Fill{Requested: decision, Executed: 0, Rejected: decision.Action != domain.ActionHold, Reason: reasonForSkip(ok, price, decision)}
			continue
		}

		affordable := maxAffordableShares(p.Cash, price, decision.Quantity)
		if affordable <= 0 {
			fills[ticker] = Fill{Requested: decision, Executed: 0, Rejected: true, Reason: "insufficient cash"}
			continue
		}

		pos := p.PositionFor(ticker)
		switch decision.Action {
		case domain.ActionLong:
			cost := price.Mul(decimal.NewFromInt(affordable))
			newLong := pos.Long + affordable
			pos.LongCostBasis = weightedCostBasis(pos.LongCostBasis, pos.Long, price, affordable)
			pos.Long = newLong
			p.Cash = p.Cash.Sub(cost)
			fills[ticker] = Fill{Requested: decision, Executed: affordable, Rejected: affordable < decision.Quantity, Reason: downsizeReason(affordable, decision.Quantity)}
		case domain.ActionShort:
			proceeds := price.Mul(decimal.NewFromInt(affordable))
			pos.ShortCostBasis = weightedCostBasis(pos.ShortCostBasis, pos.Short, price, affordable)
			pos.Short += affordable
			p.Cash = p.Cash.Add(proceeds)
			fills[ticker] = Fill{Requested: decision, Executed: -affordable, Rejected: affordable < decision.Quantity, Reason: downsizeReason(affordable, decision.Quantity)}
		}
		p.Positions[ticker] = &pos
	}

	if p.Cash.IsNegative() {
		p.Cash = decimal.Zero
	}

	return TradeExecutionReport{Portfolio: p, Fills: fills}
}

func reasonForSkip(haveSamePrice bool, price decimal.Decimal, decision domain.PortfolioDecision) string {
	if decision.Action == domain.ActionHold || decision.Quantity == 0 {
		return "hold or zero quantity"
	}
	if !haveSamePrice || price.IsZero() {
		return "no current price available"
	}
	return ""
}

func downsizeReason(affordable, requested int64) string {
	if affordable < requested {
		return "downsized to affordable quantity"
	}
	return ""
}

// maxAffordableShares caps requested at the integer number of shares cash
// can cover at price, never exceeding requested (S2: "downsize or reject").
func maxAffordableShares(cash decimal.Decimal, price decimal.Decimal, requested int64) int64 {
	if price.IsZero() || price.IsNegative() || cash.IsNegative() {
		return 0
	}
	maxByCash := cash.Div(price).IntPart()
	if maxByCash < requested {
		return maxByCash
	}
	return requested
}

// weightedCostBasis blends an added lot into the existing position's
// average cost basis.
func weightedCostBasis(existing decimal.Decimal, existingQty int64, price decimal.Decimal, addedQty int64) decimal.Decimal {
	if existingQty == 0 {
		return price
	}
	totalQty := existingQty + addedQty
	if totalQty == 0 {
		return existing
	}
	weighted := existing.Mul(decimal.NewFromInt(existingQty)).Add(price.Mul(decimal.NewFromInt(addedQty)))
	return weighted.Div(decimal.NewFromInt(totalQty))
}
