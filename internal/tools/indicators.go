package tools

import "github.com/dyike/CortexGo/internal/domain"

// closes extracts closing prices in chronological order.
func closes(bars []domain.PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		f, _ := b.Close.Float64()
		out[i] = f
	}
	return out
}

func sma(values []float64, window int) float64 {
	if window <= 0 || len(values) < window {
		window = len(values)
	}
	if window == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values[len(values)-window:] {
		sum += v
	}
	return sum / float64(window)
}

// rsi computes the classic 14-period relative strength index over values.
func rsi(values []float64, period int) float64 {
	if len(values) < period+1 {
		return 50
	}
	var gains, losses float64
	start := len(values) - period
	for i := start; i < len(values); i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	if losses == 0 {
		return 100
	}
	rs := (gains / float64(period)) / (losses / float64(period))
	return 100 - (100 / (1 + rs))
}
