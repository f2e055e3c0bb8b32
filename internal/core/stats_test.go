package core

import (
	"math"
	"testing"
	"time"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestMean(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []float64{42}, 42},
		{"monthly gaps", []float64{30, 30}, 30},
		{"mixed", []float64{25, 35}, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Mean(tt.values); !almostEqual(got, tt.want) {
				t.Errorf("Mean(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

func TestStdDev(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"single value is defined as zero", []float64{10}, 0},
		{"identical values", []float64{500, 500, 500}, 0},
		{"spread", []float64{2, 4, 4, 4, 5, 5, 7, 9}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StdDev(tt.values); !almostEqual(got, tt.want) {
				t.Errorf("StdDev(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

func TestCoefficientOfVariation(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"fewer than two values", []float64{100}, 0},
		{"zero mean", []float64{-10, 10}, 0},
		{"identical values", []float64{499, 499, 499}, 0},
		{"spread", []float64{2, 4, 4, 4, 5, 5, 7, 9}, 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CoefficientOfVariation(tt.values); !almostEqual(got, tt.want) {
				t.Errorf("CoefficientOfVariation(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

func TestDayGaps(t *testing.T) {
	dates := []time.Time{
		NewDate(2024, 1, 5).Time,
		NewDate(2024, 2, 4).Time,
		NewDate(2024, 3, 6).Time,
	}

	gaps := DayGaps(dates)
	if len(gaps) != 2 {
		t.Fatalf("DayGaps() returned %d gaps, want 2", len(gaps))
	}
	if !almostEqual(gaps[0], 30) || !almostEqual(gaps[1], 31) {
		t.Errorf("DayGaps() = %v, want [30 31]", gaps)
	}

	if got := DayGaps(dates[:1]); got != nil {
		t.Errorf("DayGaps() with one date = %v, want nil", got)
	}
}
