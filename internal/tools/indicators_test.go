package tools

import (
	"testing"

	"github.com/dyike/CortexGo/internal/domain"
)

func TestSMAWindowLargerThanSeriesUsesWholeSeries(t *testing.T) {
	got := sma([]float64{1, 2, 3}, 10)
	want := 2.0
	if got != want {
		t.Fatalf("sma = %v, want %v", got, want)
	}
}

func TestRSIAllGainsSaturatesAt100(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	got := rsi(values, 14)
	if got != 100 {
		t.Fatalf("rsi = %v, want 100", got)
	}
}

func TestRSIShortSeriesDefaultsNeutral(t *testing.T) {
	got := rsi([]float64{1, 2}, 14)
	if got != 50 {
		t.Fatalf("rsi = %v, want 50 for insufficient history", got)
	}
}

func TestSignalFromMagnitudeNeutralBelowThreshold(t *testing.T) {
	signal, confidence := signalFromMagnitude(0.01, 0.03, 0.08)
	if signal != domain.SignalNeutral || confidence != 50 {
		t.Fatalf("got %v/%v, want neutral/50", signal, confidence)
	}
}

func TestSignalFromMagnitudeBullishAboveThreshold(t *testing.T) {
	signal, confidence := signalFromMagnitude(0.09, 0.03, 0.08)
	if signal != domain.SignalBullish {
		t.Fatalf("signal = %v, want bullish", signal)
	}
	if confidence <= 60 {
		t.Fatalf("confidence = %v, want > 60 for strong move", confidence)
	}
}

func TestSignalFromMagnitudeBearishBelowZero(t *testing.T) {
	signal, _ := signalFromMagnitude(-0.09, 0.03, 0.08)
	if signal != domain.SignalBearish {
		t.Fatalf("signal = %v, want bearish", signal)
	}
}
