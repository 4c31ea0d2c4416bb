// Package units converts solution adoption quantities into resource pool units.
package units

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Dimension groups units that convert into each other by a constant factor
type Dimension int

const (
	Mass Dimension = iota
	Area
	Energy
)

// String method for Dimension enum
func (d Dimension) String() string {
	switch d {
	case Mass:
		return "mass"
	case Area:
		return "area"
	case Energy:
		return "energy"
	default:
		return "unknown"
	}
}

// Unit is a unit symbol such as "Mt" or "Mha"
type Unit string

const (
	Tonne       Unit = "t"
	Kilotonne   Unit = "kt"
	Megatonne   Unit = "Mt"
	Hectare     Unit = "ha"
	Megahectare Unit = "Mha"
	SquareKm    Unit = "km2"
	Gigajoule   Unit = "GJ"
	Terajoule   Unit = "TJ"
	Petajoule   Unit = "PJ"
	TWh         Unit = "TWh"
)

type unitDef struct {
	dimension Dimension
	// toBase converts one of this unit into the dimension's base unit
	// (t, ha, GJ)
	toBase decimal.Decimal
}

var unitTable = map[Unit]unitDef{
	Tonne:       {Mass, decimal.NewFromInt(1)},
	Kilotonne:   {Mass, decimal.NewFromInt(1_000)},
	Megatonne:   {Mass, decimal.NewFromInt(1_000_000)},
	Hectare:     {Area, decimal.NewFromInt(1)},
	SquareKm:    {Area, decimal.NewFromInt(100)},
	Megahectare: {Area, decimal.NewFromInt(1_000_000)},
	Gigajoule:   {Energy, decimal.NewFromInt(1)},
	Terajoule:   {Energy, decimal.NewFromInt(1_000)},
	Petajoule:   {Energy, decimal.NewFromInt(1_000_000)},
	TWh:         {Energy, decimal.NewFromInt(3_600_000)},
}

// Context carries the physical factors needed for cross-dimension
// conversions. Energy converts to mass of feedstock through its lower
// heating value and the plant's conversion efficiency.
type Context struct {
	// LHV is the lower heating value of the feedstock in GJ per tonne
	LHV decimal.Decimal
	// Efficiency is the fraction of feedstock energy delivered as output
	Efficiency decimal.Decimal
}

// DefaultMSWContext is the waste-to-energy context for mixed municipal solid
// waste: 10 GJ/t and 25% electrical efficiency
var DefaultMSWContext = Context{
	LHV:        decimal.NewFromInt(10),
	Efficiency: decimal.RequireFromString("0.25"),
}

// NewContext creates a validated Context
func NewContext(lhv, efficiency float64) (Context, error) {
	if lhv <= 0 {
		return Context{}, fmt.Errorf("lower heating value must be positive, got %g", lhv)
	}
	if efficiency <= 0 || efficiency > 1 {
		return Context{}, fmt.Errorf("efficiency must be in (0, 1], got %g", efficiency)
	}
	return Context{
		LHV:        decimal.NewFromFloat(lhv),
		Efficiency: decimal.NewFromFloat(efficiency),
	}, nil
}

// ParseUnit looks up a unit by symbol, ignoring case for unambiguous symbols
func ParseUnit(s string) (Unit, error) {
	trimmed := strings.TrimSpace(s)
	if _, ok := unitTable[Unit(trimmed)]; ok {
		return Unit(trimmed), nil
	}
	switch strings.ToLower(trimmed) {
	case "tonnes", "tonne":
		return Tonne, nil
	case "mt", "million tonnes":
		return Megatonne, nil
	case "mha", "million hectares":
		return Megahectare, nil
	case "twh":
		return TWh, nil
	case "km²", "sq km":
		return SquareKm, nil
	}
	return "", fmt.Errorf("unknown unit: %s", s)
}

// DimensionOf returns the dimension of a unit
func DimensionOf(u Unit) (Dimension, error) {
	def, ok := unitTable[u]
	if !ok {
		return 0, fmt.Errorf("unknown unit: %s", u)
	}
	return def.dimension, nil
}

// Convert converts value from one unit to another. Energy to mass (and back)
// uses ctx; every other cross-dimension conversion is an error.
func Convert(value float64, from, to Unit, ctx Context) (float64, error) {
	if from == to {
		return value, nil
	}
	src, ok := unitTable[from]
	if !ok {
		return 0, fmt.Errorf("unknown unit: %s", from)
	}
	dst, ok := unitTable[to]
	if !ok {
		return 0, fmt.Errorf("unknown unit: %s", to)
	}

	base := decimal.NewFromFloat(value).Mul(src.toBase)

	switch {
	case src.dimension == dst.dimension:
	case src.dimension == Energy && dst.dimension == Mass:
		perTonne, err := ctx.deliveredPerTonne()
		if err != nil {
			return 0, err
		}
		base = base.Div(perTonne)
	case src.dimension == Mass && dst.dimension == Energy:
		perTonne, err := ctx.deliveredPerTonne()
		if err != nil {
			return 0, err
		}
		base = base.Mul(perTonne)
	default:
		return 0, fmt.Errorf("cannot convert %s (%s) to %s (%s)", from, src.dimension, to, dst.dimension)
	}

	return base.Div(dst.toBase).InexactFloat64(), nil
}

func (c Context) deliveredPerTonne() (decimal.Decimal, error) {
	if !c.LHV.IsPositive() || !c.Efficiency.IsPositive() {
		return decimal.Zero, fmt.Errorf("energy/mass conversion needs positive LHV and efficiency")
	}
	return c.LHV.Mul(c.Efficiency), nil
}

// Converter converts values between two fixed units
type Converter struct {
	From    Unit
	To      Unit
	Context Context
}

// NewConverter creates a Converter after checking that the units convert
func NewConverter(from, to Unit, ctx Context) (*Converter, error) {
	if _, err := Convert(1, from, to, ctx); err != nil {
		return nil, err
	}
	return &Converter{From: from, To: to, Context: ctx}, nil
}

// Convert converts a single value
func (c *Converter) Convert(value float64) (float64, error) {
	if c == nil {
		return value, nil
	}
	return Convert(value, c.From, c.To, c.Context)
}
