// Package regional splits global series into regions and sums them back.
package regional

import (
	"fmt"
	"math"
	"sort"

	"github.com/vsinha/drawdown/pkg/domain/entities"
)

// The five main Drawdown regions
const (
	OECD90        = "OECD90"
	EasternEurope = "Eastern Europe"
	Asia          = "Asia (Sans Japan)"
	MiddleEast    = "Middle East and Africa"
	LatinAmerica  = "Latin America"
)

// MainRegions lists the main regions in reporting order
var MainRegions = []string{OECD90, EasternEurope, Asia, MiddleEast, LatinAmerica}

// ShareTolerance bounds how far regional shares may sum above one
const ShareTolerance = 1e-6

// Shares maps a region to its per-year fraction of a global quantity
type Shares map[string]entities.Series

// ConstantShares builds shares that do not change over the horizon
func ConstantShares(h entities.Horizon, fractions map[string]float64) Shares {
	out := make(Shares, len(fractions))
	for region, f := range fractions {
		out[region] = entities.ConstantSeries(h, f)
	}
	return out
}

// Regions returns the regions of the shares, sorted
func (s Shares) Regions() []string {
	regions := make([]string, 0, len(s))
	for region := range s {
		regions = append(regions, region)
	}
	sort.Strings(regions)
	return regions
}

// Validate checks that shares are non-negative and that in every year they
// sum to at most one
func (s Shares) Validate() error {
	totals := make(map[entities.Year]float64)
	for _, region := range s.Regions() {
		for year, v := range s[region].Values() {
			if v < 0 || math.IsInf(v, 0) {
				return fmt.Errorf("share of %s in %d must be a non-negative fraction, got %g", region, year, v)
			}
			totals[year] += v
		}
	}
	for year, total := range totals {
		if total > 1+ShareTolerance {
			return fmt.Errorf("regional shares sum to %g in %d", total, year)
		}
	}
	return nil
}

// Disaggregate splits a global series into regions: region(y) = global(y) *
// share(y). Years not applicable globally stay not applicable everywhere.
// A defined global year without a regional share is an error.
func Disaggregate(global entities.Series, shares Shares) (map[string]entities.Series, error) {
	if err := shares.Validate(); err != nil {
		return nil, err
	}

	out := make(map[string]entities.Series, len(shares))
	for _, region := range shares.Regions() {
		share := shares[region]
		var missing *entities.ResourceUndefinedError
		series := global.Map(func(year entities.Year, v float64) float64 {
			f, ok := share.Value(year)
			if !ok {
				if share.IsNotApplicable(year) {
					return 0
				}
				if missing == nil {
					missing = &entities.ResourceUndefinedError{Input: fmt.Sprintf("regional share of %s", region), Year: year}
				}
				return math.NaN()
			}
			return v * f
		})
		if missing != nil {
			return nil, missing
		}
		out[region] = series
	}
	return out, nil
}

// Aggregate sums regional series. A year is not applicable in the result
// when every region marks it so; a year defined in some regions and missing
// from another is an error.
func Aggregate(regional map[string]entities.Series) (entities.Series, error) {
	regions := make([]string, 0, len(regional))
	years := make(map[entities.Year]bool)
	for region, s := range regional {
		regions = append(regions, region)
		for _, y := range s.Years() {
			years[y] = true
		}
	}
	sort.Strings(regions)

	sums := make(map[entities.Year]float64, len(years))
	var notApplicable []entities.Year
	for year := range years {
		defined := 0
		for _, region := range regions {
			s := regional[region]
			if v, ok := s.Value(year); ok {
				sums[year] += v
				defined++
				continue
			}
			if !s.IsNotApplicable(year) {
				return entities.Series{}, &entities.ResourceUndefinedError{Input: fmt.Sprintf("%s series", region), Year: year}
			}
		}
		if defined == 0 {
			delete(sums, year)
			notApplicable = append(notApplicable, year)
		}
	}

	out := entities.NewSeries(sums)
	for _, y := range notApplicable {
		out = out.WithNotApplicable(y)
	}
	return out, nil
}
