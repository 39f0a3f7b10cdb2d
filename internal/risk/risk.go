// Package risk implements the Risk Manager (C6): per ticker, computes
// volatility metrics and either a basic-mode risk-level bucket or a
// portfolio-mode position-limit assessment, using price history from the
// Market Data Provider.
//
// Grounded on the teacher's use of shopspring/decimal for price arithmetic
// (internal/dataflows/longport.go, internal/portfolio) and on §4.6's
// explicit volatility/position-limit formulas.
package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dyike/CortexGo/internal/calendar"
	"github.com/dyike/CortexGo/internal/dataflows"
	"github.com/dyike/CortexGo/internal/domain"
)

// Mode selects basic risk-level output vs portfolio position-limit output.
type Mode string

const (
	ModeBasic     Mode = "basic"
	ModePortfolio Mode = "portfolio"
)

// Manager is C6.
type Manager struct {
	provider *dataflows.Provider
}

func New(provider *dataflows.Provider) *Manager {
	return &Manager{provider: provider}
}

// Assess implements §4.6's per-ticker algorithm. analysisDate is the day
// being analyzed (the state's trading_date or, for deferred execution's
// second Risk Manager pass, the real post-close date); isLiveMode controls
// whether the current price is the analysis day's open (true) or its close
// (false, used by execute_deferred_trades per §4.9).
func (m *Manager) Assess(ctx context.Context, ticker string, analysisDate time.Time, mode Mode, isLiveMode bool, portfolio *domain.Portfolio) (domain.RiskAssessment, error) {
	// Step 1 (§4.6, also P8): the volatility window excludes the analysis
	// day's own bar — end_date is the last trading day *before* analysisDate.
	volEnd := calendar.NaiveWeekdays{}.LastTradingDay(analysisDate)
	volStart := volEnd.AddDate(0, 0, -90)

	bars, err := m.provider.Prices(ctx, ticker, volStart, volEnd)
	if err != nil {
		return domain.RiskAssessment{}, fmt.Errorf("risk assess %s: %w", ticker, err)
	}

	// Step 2: separately fetch the analysis-date bar for the current price.
	dayBars, dayErr := m.provider.Prices(ctx, ticker, analysisDate, analysisDate)
	currentPrice := decimal.Zero
	switch {
	case dayErr == nil && len(dayBars) > 0 && isLiveMode:
		currentPrice = dayBars[len(dayBars)-1].Open
	case dayErr == nil && len(dayBars) > 0:
		currentPrice = dayBars[len(dayBars)-1].Close
	case len(bars) > 0:
		currentPrice = bars[len(bars)-1].Close
	}

	volInfo := computeVolatility(bars)

	if mode == ModePortfolio {
		return m.assessPortfolio(ticker, currentPrice, volInfo, portfolio), nil
	}
	return assessBasic(currentPrice, volInfo), nil
}

func computeVolatility(bars []domain.PriceBar) domain.VolatilityInfo {
	if len(bars) < 2 {
		return domain.VolatilityInfo{VolatilityPercentile: 50, DataPoints: len(bars)}
	}

	returns := dailyReturns(bars)
	window := returns
	if len(window) > 60 {
		window = window[len(window)-60:]
	}

	dailyVol := stddev(window)
	annualizedVol := dailyVol * math.Sqrt(252)

	percentile := rollingVolPercentile(returns, dailyVol)

	return domain.VolatilityInfo{
		AnnualizedVolatility: annualizedVol,
		DailyVolatility:      dailyVol,
		VolatilityPercentile: percentile,
		DataPoints:           len(bars),
	}
}

func dailyReturns(bars []domain.PriceBar) []float64 {
	out := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prevF, _ := bars[i-1].Close.Float64()
		curF, _ := bars[i].Close.Float64()
		if prevF == 0 {
			continue
		}
		out = append(out, (curF-prevF)/prevF)
	}
	return out
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

// rollingVolPercentile is "the fraction of rolling 30-day vols not
// exceeding the current daily_vol" (§4.6 step 3), falling back to 50 when
// there isn't enough history to build rolling windows.
func rollingVolPercentile(returns []float64, currentDailyVol float64) float64 {
	const window = 30
	if len(returns) < window+1 {
		return 50
	}

	var rolling []float64
	for i := window; i <= len(returns); i++ {
		rolling = append(rolling, stddev(returns[i-window:i]))
	}
	if len(rolling) == 0 {
		return 50
	}

	notExceeding := 0
	for _, v := range rolling {
		if v <= currentDailyVol {
			notExceeding++
		}
	}
	return 100 * float64(notExceeding) / float64(len(rolling))
}

// assessBasic implements §4.6 step 4: bucket annualized vol into bands,
// base score per band, adjusted by percentile and a small-sample penalty.
func assessBasic(currentPrice decimal.Decimal, vol domain.VolatilityInfo) domain.RiskAssessment {
	var level domain.RiskLevel
	var baseScore float64
	switch {
	case vol.AnnualizedVolatility < 0.15:
		level, baseScore = domain.RiskLow, 25
	case vol.AnnualizedVolatility < 0.30:
		level, baseScore = domain.RiskMedium, 50
	case vol.AnnualizedVolatility < 0.50:
		level, baseScore = domain.RiskHigh, 75
	default:
		level, baseScore = domain.RiskVeryHigh, 90
	}
	if vol.DataPoints == 0 {
		level, baseScore = domain.RiskUnknown, 50
	}

	score := baseScore
	// Percentile adjustment: a current daily vol high in its own rolling
	// distribution nudges the score up toward the band's upper end.
	score += (vol.VolatilityPercentile - 50) * 0.1

	// Small-sample penalty: fewer than 20 data points erodes confidence in
	// the bucket, pushed toward the middle of the scale.
	if vol.DataPoints < 20 {
		score = score*0.7 + 50*0.3
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return domain.RiskAssessment{
		Mode:           string(ModeBasic),
		RiskLevel:      level,
		RiskScore:      score,
		CurrentPrice:   currentPrice,
		VolatilityInfo: vol,
		RiskAssessment: fmt.Sprintf("annualized volatility %.1f%%, percentile %.0f", vol.AnnualizedVolatility*100, vol.VolatilityPercentile),
	}
}

// assessPortfolio implements §4.6 step 5's position-limit formula.
func (m *Manager) assessPortfolio(ticker string, currentPrice decimal.Decimal, vol domain.VolatilityInfo, portfolio *domain.Portfolio) domain.RiskAssessment {
	multiplier := volMultiplier(vol.AnnualizedVolatility)
	positionLimitPct := 0.35 * multiplier

	totalValue := portfolioValue(portfolio, currentPrice, ticker)
	positionLimit := totalValue * positionLimitPct

	currentPositionValue := 0.0
	if portfolio != nil {
		pos := portfolio.PositionFor(ticker)
		priceFloat, _ := currentPrice.Float64()
		currentPositionValue = float64(pos.Long-pos.Short) * priceFloat
	}
	if currentPositionValue < 0 {
		currentPositionValue = -currentPositionValue
	}

	remainingLimit := positionLimit - currentPositionValue
	if remainingLimit < 0 {
		remainingLimit = 0
	}

	cashFloat := 0.0
	if portfolio != nil {
		cashFloat, _ = portfolio.Cash.Float64()
	}

	capped := remainingLimit
	if cashFloat < capped {
		capped = cashFloat
	}

	priceFloat, _ := currentPrice.Float64()
	maxShares := int64(0)
	if priceFloat > 0 {
		maxShares = int64(math.Floor(capped / priceFloat))
	}

	return domain.RiskAssessment{
		Mode:                   string(ModePortfolio),
		CurrentPrice:           currentPrice,
		VolatilityInfo:         vol,
		MaxShares:              maxShares,
		RemainingPositionLimit: decimal.NewFromFloat(remainingLimit),
		Reasoning:              fmt.Sprintf("position_limit_pct=%.3f, remaining_limit=%.2f, max_shares=%d", positionLimitPct, remainingLimit, maxShares),
	}
}

// volMultiplier maps annualized vol to a position-limit multiplier from 1.3
// (very low vol) down to 0.4 (very high vol), per §4.6 step 5. It is a step
// function over the same bands as assessBasic (1.3, 1.0, 0.7, 0.4); values
// between the bands are not interpolated.
func volMultiplier(annualizedVol float64) float64 {
	switch {
	case annualizedVol < 0.15:
		return 1.3
	case annualizedVol < 0.30:
		return 1.0
	case annualizedVol < 0.50:
		return 0.7
	default:
		return 0.4
	}
}

func portfolioValue(portfolio *domain.Portfolio, currentPrice decimal.Decimal, ticker string) float64 {
	if portfolio == nil {
		return 0
	}
	cashFloat, _ := portfolio.Cash.Float64()
	total := cashFloat
	priceFloat, _ := currentPrice.Float64()
	for t, pos := range portfolio.Positions {
		p := priceFloat
		if t != ticker {
			// Without a live quote for every held ticker, value other
			// positions at their cost basis rather than fetching N more
			// price series per assessment.
			basis, _ := pos.LongCostBasis.Float64()
			if basis > 0 {
				p = basis
			}
		}
		total += float64(pos.Long-pos.Short) * p
	}
	return total
}
