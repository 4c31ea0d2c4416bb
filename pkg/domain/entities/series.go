package entities

import (
	"fmt"
	"math"
	"sort"
)

// Year is a model year such as 2014 or 2050
type Year int

// Horizon is the inclusive range of years a model run covers
type Horizon struct {
	FirstYear Year
	LastYear  Year
}

// NewHorizon creates a validated Horizon
func NewHorizon(first, last Year) (Horizon, error) {
	if first <= 0 {
		return Horizon{}, fmt.Errorf("first year must be positive, got %d", first)
	}
	if last < first {
		return Horizon{}, fmt.Errorf("last year %d is before first year %d", last, first)
	}
	return Horizon{FirstYear: first, LastYear: last}, nil
}

// Years returns every year in the horizon in ascending order
func (h Horizon) Years() []Year {
	if h.LastYear < h.FirstYear {
		return nil
	}
	years := make([]Year, 0, int(h.LastYear-h.FirstYear)+1)
	for y := h.FirstYear; y <= h.LastYear; y++ {
		years = append(years, y)
	}
	return years
}

// Contains reports whether year falls inside the horizon
func (h Horizon) Contains(year Year) bool {
	return year >= h.FirstYear && year <= h.LastYear
}

// Len returns the number of years in the horizon
func (h Horizon) Len() int {
	if h.LastYear < h.FirstYear {
		return 0
	}
	return int(h.LastYear-h.FirstYear) + 1
}

// Series is a year-indexed sequence of values.
//
// Every year is in one of three states: defined, explicitly not applicable
// (the quantity does not exist that year), or absent (never computed).
// NaN is never stored. Series has value semantics: mutators return copies.
type Series struct {
	values        map[Year]float64
	notApplicable map[Year]bool
}

// NewSeries creates a series from a year/value map. NaN values are dropped
// and the year is left undefined.
func NewSeries(values map[Year]float64) Series {
	s := Series{
		values:        make(map[Year]float64, len(values)),
		notApplicable: make(map[Year]bool),
	}
	for year, v := range values {
		if math.IsNaN(v) {
			continue
		}
		s.values[year] = v
	}
	return s
}

// SeriesFromSlice creates a series whose first value belongs to firstYear
func SeriesFromSlice(firstYear Year, values []float64) Series {
	m := make(map[Year]float64, len(values))
	for i, v := range values {
		m[firstYear+Year(i)] = v
	}
	return NewSeries(m)
}

// ConstantSeries creates a series with the same value for every horizon year
func ConstantSeries(h Horizon, value float64) Series {
	m := make(map[Year]float64, h.Len())
	for _, y := range h.Years() {
		m[y] = value
	}
	return NewSeries(m)
}

func (s Series) clone() Series {
	out := Series{
		values:        make(map[Year]float64, len(s.values)),
		notApplicable: make(map[Year]bool, len(s.notApplicable)),
	}
	for y, v := range s.values {
		out.values[y] = v
	}
	for y := range s.notApplicable {
		out.notApplicable[y] = true
	}
	return out
}

// With returns a copy of the series with year set to value.
// A NaN value leaves the year undefined.
func (s Series) With(year Year, value float64) Series {
	out := s.clone()
	delete(out.notApplicable, year)
	if math.IsNaN(value) {
		delete(out.values, year)
		return out
	}
	out.values[year] = value
	return out
}

// WithNotApplicable returns a copy of the series with year marked not applicable
func (s Series) WithNotApplicable(year Year) Series {
	out := s.clone()
	delete(out.values, year)
	out.notApplicable[year] = true
	return out
}

// Value returns the value for a year and whether it is defined
func (s Series) Value(year Year) (float64, bool) {
	v, ok := s.values[year]
	return v, ok
}

// IsNotApplicable reports whether year is explicitly marked not applicable
func (s Series) IsNotApplicable(year Year) bool {
	return s.notApplicable[year]
}

// IsDefined reports whether year has a value or a not-applicable marker
func (s Series) IsDefined(year Year) bool {
	_, ok := s.values[year]
	return ok || s.notApplicable[year]
}

// ValueOrZero returns the value for a year, treating not-applicable and
// undefined years as zero
func (s Series) ValueOrZero(year Year) float64 {
	return s.values[year]
}

// Years returns every year carrying a value or marker, ascending
func (s Series) Years() []Year {
	years := make([]Year, 0, len(s.values)+len(s.notApplicable))
	for y := range s.values {
		years = append(years, y)
	}
	for y := range s.notApplicable {
		years = append(years, y)
	}
	sort.Slice(years, func(i, j int) bool { return years[i] < years[j] })
	return years
}

// Len returns the number of defined or not-applicable years
func (s Series) Len() int {
	return len(s.values) + len(s.notApplicable)
}

// MissingYears returns the horizon years that are neither defined nor marked
func (s Series) MissingYears(h Horizon) []Year {
	var missing []Year
	for _, y := range h.Years() {
		if !s.IsDefined(y) {
			missing = append(missing, y)
		}
	}
	return missing
}

// Scale returns a copy with every defined value multiplied by factor
func (s Series) Scale(factor float64) Series {
	out := s.clone()
	for y, v := range out.values {
		out.values[y] = v * factor
	}
	return out
}

// Map returns a copy with fn applied to every defined value
func (s Series) Map(fn func(Year, float64) float64) Series {
	out := s.clone()
	for y, v := range out.values {
		nv := fn(y, v)
		if math.IsNaN(nv) {
			delete(out.values, y)
			continue
		}
		out.values[y] = nv
	}
	return out
}

// Sub returns s minus other. A year is defined in the result only when it is
// defined in s; years missing from other are treated as zero. Years marked
// not applicable in s stay not applicable.
func (s Series) Sub(other Series) Series {
	out := s.clone()
	for y, v := range out.values {
		out.values[y] = v - other.values[y]
	}
	return out
}

// Add returns s plus other with the same definedness rules as Sub
func (s Series) Add(other Series) Series {
	out := s.clone()
	for y, v := range out.values {
		out.values[y] = v + other.values[y]
	}
	return out
}

// Restrict returns a copy holding only horizon years
func (s Series) Restrict(h Horizon) Series {
	out := Series{
		values:        make(map[Year]float64, h.Len()),
		notApplicable: make(map[Year]bool),
	}
	for y, v := range s.values {
		if h.Contains(y) {
			out.values[y] = v
		}
	}
	for y := range s.notApplicable {
		if h.Contains(y) {
			out.notApplicable[y] = true
		}
	}
	return out
}

// Sum returns the total of all defined values
func (s Series) Sum() float64 {
	var total float64
	for _, v := range s.values {
		total += v
	}
	return total
}

// Equal reports whether both series define the same years with values
// within absolute tolerance tol, and mark the same years not applicable
func (s Series) Equal(other Series, tol float64) bool {
	if len(s.values) != len(other.values) || len(s.notApplicable) != len(other.notApplicable) {
		return false
	}
	for y, v := range s.values {
		ov, ok := other.values[y]
		if !ok || math.Abs(v-ov) > tol {
			return false
		}
	}
	for y := range s.notApplicable {
		if !other.notApplicable[y] {
			return false
		}
	}
	return true
}

// WithinRelative reports whether both series define the same years and every
// pair of values satisfies |a-b| <= tol*max(1, |a|, |b|)
func (s Series) WithinRelative(other Series, tol float64) bool {
	if len(s.values) != len(other.values) {
		return false
	}
	for y, v := range s.values {
		ov, ok := other.values[y]
		if !ok {
			return false
		}
		scale := math.Max(1, math.Max(math.Abs(v), math.Abs(ov)))
		if math.Abs(v-ov) > tol*scale {
			return false
		}
	}
	return true
}

// Values returns a copy of the defined values
func (s Series) Values() map[Year]float64 {
	out := make(map[Year]float64, len(s.values))
	for y, v := range s.values {
		out[y] = v
	}
	return out
}

// String returns a compact representation for debugging
func (s Series) String() string {
	result := "Series{"
	for i, y := range s.Years() {
		if i > 0 {
			result += ", "
		}
		if s.notApplicable[y] {
			result += fmt.Sprintf("%d: n/a", y)
			continue
		}
		result += fmt.Sprintf("%d: %g", y, s.values[y])
	}
	return result + "}"
}
