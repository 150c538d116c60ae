package mocks

import (
	"reflect"
	"testing"
)

func TestCandleGenerator_Generate(t *testing.T) {
	gen := NewCandleGenerator(42) // Fixed seed for reproducibility
	config := DefaultGeneratorConfig()
	config.Count = 100

	candles := gen.Generate(config)

	if len(candles) != 100 {
		t.Errorf("expected 100 candles, got %d", len(candles))
	}

	// Verify candles are in chronological order
	for i := 1; i < len(candles); i++ {
		if !candles[i].Time.After(candles[i-1].Time) {
			t.Errorf("candles not in chronological order at index %d", i)
		}
	}

	// Verify symbol is set correctly
	for i, c := range candles {
		if c.Symbol != config.Symbol {
			t.Errorf("expected symbol %s at index %d, got %s", config.Symbol, i, c.Symbol)
		}
	}

	// Verify OHLC values are positive
	for i, c := range candles {
		if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
			t.Errorf("invalid OHLC values at index %d: O=%f H=%f L=%f C=%f",
				i, c.Open, c.High, c.Low, c.Close)
		}
	}

	// Verify High >= Low
	for i, c := range candles {
		if c.High < c.Low {
			t.Errorf("High < Low at index %d: H=%f L=%f", i, c.High, c.Low)
		}
	}

	// Verify time intervals
	for i := 1; i < len(candles); i++ {
		actualInterval := candles[i].Time.Sub(candles[i-1].Time)
		if actualInterval != config.Interval {
			t.Errorf("unexpected interval at index %d: expected %v, got %v",
				i, config.Interval, actualInterval)
		}
	}
}

func TestCandleGenerator_Reproducibility(t *testing.T) {
	// Same seed should produce the same series
	first := NewCandleGenerator(7).Generate(DefaultGeneratorConfig())
	second := NewCandleGenerator(7).Generate(DefaultGeneratorConfig())

	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}

	for i := range first {
		if !reflect.DeepEqual(first[i], second[i]) {
			t.Errorf("series diverge at index %d", i)
			break
		}
	}
}

func TestCandleGenerator_MultiSymbol(t *testing.T) {
	gen := NewCandleGenerator(42)
	config := DefaultGeneratorConfig()
	config.Count = 50

	symbols := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	candles := gen.GenerateMultiSymbol(symbols, config)

	if len(candles) != 150 {
		t.Fatalf("expected 150 candles, got %d", len(candles))
	}

	seen := map[string]int{}
	for _, c := range candles {
		seen[c.Symbol]++
	}

	for _, symbol := range symbols {
		if seen[symbol] != 50 {
			t.Errorf("expected 50 candles for %s, got %d", symbol, seen[symbol])
		}
	}
}

func TestCandleGenerator_TrendDirection(t *testing.T) {
	gen := NewCandleGenerator(42)
	config := DefaultGeneratorConfig()
	config.Count = 500
	config.Volatility = 0.0001
	config.Trend = 0.5

	candles := gen.Generate(config)

	first := candles[0].Close
	last := candles[len(candles)-1].Close

	if last <= first {
		t.Errorf("expected upward drift: first close %f, last close %f", first, last)
	}
}
