package entities

import (
	"errors"
	"testing"
)

func TestNewSolutionClaim_Validation(t *testing.T) {
	if _, err := NewSolutionClaim("", PoolID{Category: "land"}, Series{}); err == nil {
		t.Error("Expected error for empty solution id")
	}
	if _, err := NewSolutionClaim("silvopasture", PoolID{}, Series{}); err == nil {
		t.Error("Expected error for empty pool category")
	}
}

func TestSolutionClaim_Requested(t *testing.T) {
	requested := SeriesFromSlice(2020, []float64{12}).WithNotApplicable(2021)
	claim, err := NewSolutionClaim("composting", PoolID{Category: "organic waste"}, requested)
	if err != nil {
		t.Fatalf("Failed to create claim: %v", err)
	}

	if v, err := claim.Requested(2020); err != nil || v != 12 {
		t.Errorf("Expected 12, got %v (%v)", v, err)
	}
	if v, err := claim.Requested(2021); err != nil || v != 0 {
		t.Errorf("Expected not-applicable year to request 0, got %v (%v)", v, err)
	}

	_, err = claim.Requested(2022)
	var undefined *ResourceUndefinedError
	if !errors.As(err, &undefined) {
		t.Errorf("Expected ResourceUndefinedError for an absent year, got %v", err)
	}
}

func TestSolutionClaim_Adjustments(t *testing.T) {
	claim, _ := NewSolutionClaim("afforestation", PoolID{Category: "degraded forest"}, SeriesFromSlice(2020, []float64{80, 120, 0, -4}))

	if claim.Factor(2020) != 1.0 {
		t.Errorf("Expected initial factor 1.0, got %v", claim.Factor(2020))
	}

	half := claim.ApplyAdjustment(0.5)
	if v, _ := half.Adjusted(2021); v != 60 {
		t.Errorf("Expected 60, got %v", v)
	}
	if v, _ := claim.Adjusted(2021); v != 120 {
		t.Errorf("ApplyAdjustment must not mutate the receiver, got %v", v)
	}

	testCases := []struct {
		name   string
		factor float64
		want   float64
	}{
		{"above one", 1.7, 1},
		{"below zero", -0.2, 0},
		{"inside", 0.25, 0.25},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := claim.ApplyAdjustment(tc.factor).Factor(2020); got != tc.want {
				t.Errorf("Expected factor %v, got %v", tc.want, got)
			}
		})
	}

	granted := claim.WithGrant(2021, 100).WithGrant(2022, 0).WithGrant(2023, 0)
	if v, _ := granted.Adjusted(2021); v != 100 {
		t.Errorf("Expected adjusted 100, got %v", v)
	}
	if granted.Factor(2022) != 1.0 {
		t.Errorf("A zero request keeps factor 1.0, got %v", granted.Factor(2022))
	}
	if granted.Factor(2023) != 0 {
		t.Errorf("A negative request gets factor 0, got %v", granted.Factor(2023))
	}
	if !granted.Changed() {
		t.Error("Expected claim to be marked changed")
	}
	if granted.MarkResolved().Changed() {
		t.Error("MarkResolved should clear the changed flag")
	}

	adjusted := granted.AdjustedSeries()
	if v, _ := adjusted.Value(2020); v != 80 {
		t.Errorf("Expected 80, got %v", v)
	}
	if v, _ := adjusted.Value(2021); v != 100 {
		t.Errorf("Expected 100, got %v", v)
	}
}
