package entities

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewHorizon_Validation(t *testing.T) {
	testCases := []struct {
		name        string
		first, last Year
		expectError bool
	}{
		{"single year", 2020, 2020, false},
		{"drawdown horizon", 2014, 2060, false},
		{"zero first year", 0, 2020, true},
		{"reversed", 2050, 2020, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := NewHorizon(tc.first, tc.last)
			if tc.expectError {
				if err == nil {
					t.Errorf("Expected error for %d-%d", tc.first, tc.last)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if h.Len() != int(tc.last-tc.first)+1 {
				t.Errorf("Expected %d years, got %d", tc.last-tc.first+1, h.Len())
			}
		})
	}
}

func TestSeries_ThreeStates(t *testing.T) {
	s := SeriesFromSlice(2020, []float64{1, math.NaN()}).WithNotApplicable(2022)

	if v, ok := s.Value(2020); !ok || v != 1 {
		t.Errorf("Expected 2020 defined as 1, got %v (%v)", v, ok)
	}
	if s.IsDefined(2021) {
		t.Error("NaN must leave 2021 undefined")
	}
	if !s.IsNotApplicable(2022) || !s.IsDefined(2022) {
		t.Error("Expected 2022 to be marked not applicable")
	}
	if _, ok := s.Value(2022); ok {
		t.Error("A not-applicable year has no value")
	}

	h, _ := NewHorizon(2020, 2023)
	if diff := cmp.Diff([]Year{2021, 2023}, s.MissingYears(h)); diff != "" {
		t.Errorf("MissingYears mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Year{2020, 2022}, s.Years()); diff != "" {
		t.Errorf("Years mismatch (-want +got):\n%s", diff)
	}
}

func TestSeries_ValueSemantics(t *testing.T) {
	original := SeriesFromSlice(2020, []float64{10, 20})
	changed := original.With(2020, 99).Scale(2)

	if v, _ := original.Value(2020); v != 10 {
		t.Errorf("Original series was mutated: got %v", v)
	}
	if v, _ := changed.Value(2020); v != 198 {
		t.Errorf("Expected 198, got %v", v)
	}

	values := original.Values()
	values[2020] = -1
	if v, _ := original.Value(2020); v != 10 {
		t.Error("Values must return a copy")
	}
}

func TestSeries_Arithmetic(t *testing.T) {
	h, _ := NewHorizon(2020, 2022)
	base := ConstantSeries(h, 60).WithNotApplicable(2022)
	used := SeriesFromSlice(2020, []float64{40})

	left := base.Sub(used)
	want := map[Year]float64{2020: 20, 2021: 60}
	if diff := cmp.Diff(want, left.Values()); diff != "" {
		t.Errorf("Sub mismatch (-want +got):\n%s", diff)
	}
	if !left.IsNotApplicable(2022) {
		t.Error("Sub must keep not-applicable years")
	}

	if got := base.Add(used).Sum(); got != 160 {
		t.Errorf("Expected sum 160, got %v", got)
	}

	mapped := base.Map(func(y Year, v float64) float64 {
		if y == 2021 {
			return math.NaN()
		}
		return v / 2
	})
	if diff := cmp.Diff(map[Year]float64{2020: 30}, mapped.Values()); diff != "" {
		t.Errorf("Map mismatch (-want +got):\n%s", diff)
	}
}

func TestSeries_Restrict(t *testing.T) {
	s := SeriesFromSlice(2018, []float64{1, 2, 3, 4}).WithNotApplicable(2030)
	h, _ := NewHorizon(2019, 2020)

	got := s.Restrict(h)
	if diff := cmp.Diff(map[Year]float64{2019: 2, 2020: 3}, got.Values()); diff != "" {
		t.Errorf("Restrict mismatch (-want +got):\n%s", diff)
	}
	if got.Len() != 2 {
		t.Errorf("Expected 2 years, got %d", got.Len())
	}
}

func TestSeries_Comparison(t *testing.T) {
	a := SeriesFromSlice(2020, []float64{1e6, 0.5})
	b := SeriesFromSlice(2020, []float64{1e6 + 1e-4, 0.5 + 1e-10})

	if a.Equal(b, 1e-9) {
		t.Error("Absolute comparison should see the 1e-4 difference")
	}
	if !a.WithinRelative(b, 1e-9) {
		t.Error("Relative comparison should accept differences below tol*max(1,|a|,|b|)")
	}
	if a.WithinRelative(SeriesFromSlice(2020, []float64{1e6}), 1e-9) {
		t.Error("Series with different years are never within tolerance")
	}
	if !a.Equal(a, 0) {
		t.Error("A series equals itself")
	}
}
