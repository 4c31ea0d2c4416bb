package csv

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vsinha/drawdown/pkg/domain/entities"
	"github.com/vsinha/drawdown/pkg/domain/repositories"
	"github.com/vsinha/drawdown/pkg/domain/services/units"
)

// Scenario file names inside a scenario directory
const (
	AdoptionFile = "adoption.csv"
	PoolsFile    = "pools.csv"
	ClaimsFile   = "claims.csv"
)

// notApplicable marks a year in which a value does not exist
const notApplicable = "NA"

var (
	adoptionHeader = []string{"solution", "region", "year", "value", "unit"}
	poolsHeader    = []string{"category", "region", "year", "capacity", "unit"}
	claimsHeader   = []string{"solution", "region", "pool_category", "pool_region"}
	// claims may also carry a share and a split group
	claimsHeaderExtended = []string{"solution", "region", "pool_category", "pool_region", "share", "split_group"}
)

// Loader handles loading scenario data from CSV files
type Loader struct{}

// NewLoader creates a new CSV loader
func NewLoader() *Loader {
	return &Loader{}
}

var _ repositories.ScenarioLoader = (*Loader)(nil)

// LoadScenario loads adoption.csv, pools.csv and claims.csv from dir
func (l *Loader) LoadScenario(dir string) (repositories.ScenarioData, error) {
	adoption, err := l.LoadAdoption(filepath.Join(dir, AdoptionFile))
	if err != nil {
		return repositories.ScenarioData{}, err
	}
	pools, err := l.LoadPools(filepath.Join(dir, PoolsFile))
	if err != nil {
		return repositories.ScenarioData{}, err
	}
	claims, err := l.LoadClaims(filepath.Join(dir, ClaimsFile))
	if err != nil {
		return repositories.ScenarioData{}, err
	}
	return repositories.ScenarioData{Adoption: adoption, Pools: pools, Claims: claims}, nil
}

// LoadAdoption loads adoption trajectories from a CSV file
func (l *Loader) LoadAdoption(filename string) ([]repositories.AdoptionRecord, error) {
	records, err := readFile(filename, "adoption")
	if err != nil {
		return nil, err
	}

	header := records[0]
	if !validateHeader(header, adoptionHeader) {
		return nil, fmt.Errorf("adoption CSV header mismatch. Expected: %v, Got: %v", adoptionHeader, header)
	}

	var out []repositories.AdoptionRecord
	for i, record := range records[1:] {
		if len(record) != len(adoptionHeader) {
			return nil, fmt.Errorf("adoption CSV row %d: expected %d columns, got %d", i+2, len(adoptionHeader), len(record))
		}

		rec, err := parseAdoption(record)
		if err != nil {
			return nil, fmt.Errorf("adoption CSV row %d: %w", i+2, err)
		}
		out = append(out, rec)
	}

	return out, nil
}

// LoadPools loads pool capacities from a CSV file
func (l *Loader) LoadPools(filename string) ([]repositories.PoolRecord, error) {
	records, err := readFile(filename, "pools")
	if err != nil {
		return nil, err
	}

	header := records[0]
	if !validateHeader(header, poolsHeader) {
		return nil, fmt.Errorf("pools CSV header mismatch. Expected: %v, Got: %v", poolsHeader, header)
	}

	var out []repositories.PoolRecord
	for i, record := range records[1:] {
		if len(record) != len(poolsHeader) {
			return nil, fmt.Errorf("pools CSV row %d: expected %d columns, got %d", i+2, len(poolsHeader), len(record))
		}

		rec, err := parsePool(record)
		if err != nil {
			return nil, fmt.Errorf("pools CSV row %d: %w", i+2, err)
		}
		out = append(out, rec)
	}

	return out, nil
}

// LoadClaims loads claim declarations from a CSV file
func (l *Loader) LoadClaims(filename string) ([]repositories.ClaimRecord, error) {
	records, err := readFile(filename, "claims")
	if err != nil {
		return nil, err
	}

	header := records[0]
	expected := claimsHeader
	if len(header) == len(claimsHeaderExtended) {
		expected = claimsHeaderExtended
	}
	if !validateHeader(header, expected) {
		return nil, fmt.Errorf("claims CSV header mismatch. Expected: %v, Got: %v", expected, header)
	}

	var out []repositories.ClaimRecord
	for i, record := range records[1:] {
		if len(record) != len(expected) {
			return nil, fmt.Errorf("claims CSV row %d: expected %d columns, got %d", i+2, len(expected), len(record))
		}

		rec, err := parseClaim(record)
		if err != nil {
			return nil, fmt.Errorf("claims CSV row %d: %w", i+2, err)
		}
		out = append(out, rec)
	}

	return out, nil
}

// Helper functions for parsing CSV records

func readFile(filename, kind string) ([][]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file %s: %w", kind, filename, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s CSV: %w", kind, err)
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("%s CSV must have header and at least one data row", kind)
	}
	return records, nil
}

func validateHeader(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}

	for i, col := range expected {
		if strings.ToLower(strings.TrimSpace(actual[i])) != col {
			return false
		}
	}

	return true
}

func parseAdoption(record []string) (repositories.AdoptionRecord, error) {
	solution := strings.TrimSpace(record[0])
	if solution == "" {
		return repositories.AdoptionRecord{}, fmt.Errorf("solution cannot be empty")
	}

	year, err := parseYear(record[2])
	if err != nil {
		return repositories.AdoptionRecord{}, err
	}

	value, na, err := parseValue(record[3], "value")
	if err != nil {
		return repositories.AdoptionRecord{}, err
	}

	unit, err := units.ParseUnit(record[4])
	if err != nil {
		return repositories.AdoptionRecord{}, err
	}

	return repositories.AdoptionRecord{
		SolutionID:    entities.SolutionID(solution),
		Region:        strings.TrimSpace(record[1]),
		Year:          year,
		Value:         value,
		NotApplicable: na,
		Unit:          unit,
	}, nil
}

func parsePool(record []string) (repositories.PoolRecord, error) {
	category := strings.TrimSpace(record[0])
	if category == "" {
		return repositories.PoolRecord{}, fmt.Errorf("category cannot be empty")
	}

	year, err := parseYear(record[2])
	if err != nil {
		return repositories.PoolRecord{}, err
	}

	capacity, na, err := parseValue(record[3], "capacity")
	if err != nil {
		return repositories.PoolRecord{}, err
	}

	unit, err := units.ParseUnit(record[4])
	if err != nil {
		return repositories.PoolRecord{}, err
	}

	return repositories.PoolRecord{
		Category:      category,
		Region:        strings.TrimSpace(record[1]),
		Year:          year,
		Capacity:      capacity,
		NotApplicable: na,
		Unit:          unit,
	}, nil
}

func parseClaim(record []string) (repositories.ClaimRecord, error) {
	solution := strings.TrimSpace(record[0])
	if solution == "" {
		return repositories.ClaimRecord{}, fmt.Errorf("solution cannot be empty")
	}
	category := strings.TrimSpace(record[2])
	if category == "" {
		return repositories.ClaimRecord{}, fmt.Errorf("pool_category cannot be empty")
	}

	rec := repositories.ClaimRecord{
		SolutionID: entities.SolutionID(solution),
		Region:     strings.TrimSpace(record[1]),
		Pool:       entities.PoolID{Category: category, Region: strings.TrimSpace(record[3])},
	}
	if len(record) > 4 {
		if s := strings.TrimSpace(record[4]); s != "" {
			share, err := decimal.NewFromString(s)
			if err != nil {
				return repositories.ClaimRecord{}, fmt.Errorf("invalid share: %s", record[4])
			}
			if share.IsNegative() {
				return repositories.ClaimRecord{}, fmt.Errorf("share cannot be negative: %s", record[4])
			}
			rec.Share = share.InexactFloat64()
		}
		rec.SplitGroup = strings.TrimSpace(record[5])
	}
	return rec, nil
}

func parseYear(s string) (entities.Year, error) {
	year, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || year <= 0 {
		return 0, fmt.Errorf("invalid year: %s", s)
	}
	return entities.Year(year), nil
}

// parseValue parses a decimal number or NA
func parseValue(s, column string) (float64, bool, error) {
	trimmed := strings.TrimSpace(s)
	if strings.EqualFold(trimmed, notApplicable) {
		return 0, true, nil
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s: %s", column, s)
	}
	return d.InexactFloat64(), false, nil
}
