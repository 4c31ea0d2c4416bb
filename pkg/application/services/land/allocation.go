// Package land builds the land integration: one pool per region and land
// cell (thermal moisture region by agro-ecological zone) and claims that
// split each solution's adoption across cells.
package land

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/vsinha/drawdown/pkg/application/services/integration"
	"github.com/vsinha/drawdown/pkg/application/services/pools"
	"github.com/vsinha/drawdown/pkg/domain/entities"
	"github.com/vsinha/drawdown/pkg/domain/repositories"
	"github.com/vsinha/drawdown/pkg/domain/services/units"
)

// PoolUnit is the native unit of every land pool
const PoolUnit = units.Megahectare

// splitGroup ties the cell claims of one adoption together
const splitGroup = "land"

// Thermal moisture regions
const (
	TropicalHumid     = "Tropical-Humid"
	TemperateHumid    = "Temperate/Boreal-Humid"
	TropicalSemiArid  = "Tropical-Semi-Arid"
	TemperateSemiArid = "Temperate/Boreal-Semi-Arid"
	GlobalArid        = "Global Arid"
	GlobalArctic      = "Global Arctic"
)

// Cell is one land class
type Cell struct {
	TMR string
	AEZ string
}

// Category returns the pool category of the cell, "<TMR>|<AEZ>"
func (c Cell) Category() string {
	return c.TMR + "|" + c.AEZ
}

func (c Cell) String() string {
	return c.Category()
}

// ParseCell parses a category produced by Category
func ParseCell(category string) (Cell, error) {
	tmr, aez, ok := strings.Cut(category, "|")
	if !ok || tmr == "" || aez == "" {
		return Cell{}, fmt.Errorf("invalid land cell %q, expected TMR|AEZ", category)
	}
	return Cell{TMR: tmr, AEZ: aez}, nil
}

// Table is the land available in one region per cell, in Mha
type Table struct {
	Region string
	Area   map[Cell]entities.Series
}

// Cells returns the cells of the table sorted by category
func (t Table) Cells() []Cell {
	cells := make([]Cell, 0, len(t.Area))
	for c := range t.Area {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i].Category() < cells[j].Category() })
	return cells
}

// Solution is a land solution with the fraction of its adoption placed in
// each cell. Fractions must not sum above one.
type Solution struct {
	SolutionID entities.SolutionID
	Shares     map[Cell]float64
}

// Validate checks the allocation shares
func (s Solution) Validate() error {
	if s.SolutionID == "" {
		return fmt.Errorf("land solution id cannot be empty")
	}
	var total float64
	for cell, f := range s.Shares {
		if f < 0 || math.IsNaN(f) {
			return fmt.Errorf("land solution %s has invalid share %g for %s", s.SolutionID, f, cell)
		}
		total += f
	}
	if total > 1+1e-9 {
		return fmt.Errorf("land solution %s allocates %g of its adoption", s.SolutionID, total)
	}
	return nil
}

// Topology is the set of providers, claims and orderings of one region, or of
// several when Region is empty
type Topology struct {
	Region    string
	Providers []repositories.ResourcePoolProvider
	Claims    []integration.ClaimSpec
	Orderings []*entities.PriorityOrdering
}

// Build creates the land topology of a region. Solutions are listed in
// priority order; every cell shares that order under policy.
func Build(table Table, solutions []Solution, policy entities.ResolutionPolicy) (*Topology, error) {
	if len(table.Area) == 0 {
		return nil, fmt.Errorf("land table for %q has no cells", table.Region)
	}
	topo := &Topology{Region: table.Region}

	for _, cell := range table.Cells() {
		p, err := pools.NewStatic(
			entities.PoolID{Category: cell.Category(), Region: table.Region},
			string(PoolUnit),
			table.Area[cell],
		)
		if err != nil {
			return nil, err
		}
		topo.Providers = append(topo.Providers, p)
	}

	claimants := make(map[Cell][]entities.SolutionID)
	seen := make(map[entities.SolutionID]bool, len(solutions))
	for _, s := range solutions {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if seen[s.SolutionID] {
			return nil, fmt.Errorf("land solution %s listed twice", s.SolutionID)
		}
		seen[s.SolutionID] = true

		cells := make([]Cell, 0, len(s.Shares))
		for cell := range s.Shares {
			cells = append(cells, cell)
		}
		sort.Slice(cells, func(i, j int) bool { return cells[i].Category() < cells[j].Category() })

		for _, cell := range cells {
			share := s.Shares[cell]
			if share == 0 {
				continue
			}
			if _, ok := table.Area[cell]; !ok {
				return nil, fmt.Errorf("land solution %s uses cell %s missing from %q", s.SolutionID, cell, table.Region)
			}
			topo.Claims = append(topo.Claims, integration.ClaimSpec{
				SolutionID: s.SolutionID,
				Region:     table.Region,
				Pool:       entities.PoolID{Category: cell.Category(), Region: table.Region},
				Share:      share,
				SplitGroup: splitGroup,
			})
			claimants[cell] = append(claimants[cell], s.SolutionID)
		}
	}

	for _, cell := range table.Cells() {
		if len(claimants[cell]) == 0 {
			continue
		}
		ordering, err := entities.NewPriorityOrdering(cell.Category(), claimants[cell], policy)
		if err != nil {
			return nil, err
		}
		topo.Orderings = append(topo.Orderings, ordering)
	}
	return topo, nil
}

// BuildRegions builds the topology of every table and merges the per-cell
// orderings so the result feeds a single run. The solutions apply to every
// region in the same priority order.
func BuildRegions(tables []Table, solutions []Solution, policy entities.ResolutionPolicy) (*Topology, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("no land tables to build")
	}
	combined := &Topology{}
	var orderings []*entities.PriorityOrdering
	seen := make(map[string]bool, len(tables))
	for _, table := range tables {
		if seen[table.Region] {
			return nil, fmt.Errorf("land table for %q given twice", table.Region)
		}
		seen[table.Region] = true

		topo, err := Build(table, solutions, policy)
		if err != nil {
			return nil, err
		}
		combined.Providers = append(combined.Providers, topo.Providers...)
		combined.Claims = append(combined.Claims, topo.Claims...)
		orderings = append(orderings, topo.Orderings...)
	}

	merged, err := entities.MergeOrderings(orderings)
	if err != nil {
		return nil, err
	}
	combined.Orderings = merged
	return combined, nil
}
