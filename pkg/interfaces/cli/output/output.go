package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/drawdown/pkg/application/dto"
	"github.com/vsinha/drawdown/pkg/domain/entities"
)

// Config holds configuration for output generation
type Config struct {
	Format          string
	OutputDir       string
	Verbose         bool
	Places          int32 // decimal places in text and CSV output
	IntegrationTime time.Duration
}

// Generate writes the result in the configured format
func Generate(w io.Writer, result *dto.IntegrationResult, config Config) error {
	if result == nil || result.Report == nil {
		return fmt.Errorf("no integration result to output")
	}
	switch config.Format {
	case "", "text":
		return generateTextOutput(w, result, config)
	case "json":
		return generateJSONOutput(w, result, config)
	case "csv":
		return generateCSVOutput(w, result, config)
	default:
		return fmt.Errorf("unsupported output format: %s", config.Format)
	}
}

func formatValue(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

// generateTextOutput creates human-readable text output
func generateTextOutput(w io.Writer, result *dto.IntegrationResult, config Config) error {
	summary := result.Summary
	places := config.Places

	fmt.Fprintf(w, "Integration Results Summary\n")
	fmt.Fprintf(w, "===========================\n\n")

	fmt.Fprintf(w, "Run: %s\n", summary.RunID)
	fmt.Fprintf(w, "State: %s\n", summary.StateName)
	fmt.Fprintf(w, "Iterations: %d\n", summary.Iterations)
	fmt.Fprintf(w, "Pools: %d\n", result.PoolCount())
	fmt.Fprintf(w, "Warnings: %d\n", summary.Warnings)
	if config.IntegrationTime > 0 {
		fmt.Fprintf(w, "Integration Time: %v\n", config.IntegrationTime)
	}
	fmt.Fprintln(w)

	if len(summary.ClippedSolutions) > 0 {
		overshoot := result.Report.TotalOvershoot()
		fmt.Fprintf(w, "Clipped Solutions:\n")
		fmt.Fprintf(w, "%-30s %14s\n", "Solution", "Overshoot")
		fmt.Fprintf(w, "%-30s %14s\n", "------------------------------", "--------------")
		for _, id := range summary.ClippedSolutions {
			fmt.Fprintf(w, "%-30s %14s\n", id, formatValue(overshoot[id], places))
		}
		fmt.Fprintln(w)
	}

	records := result.Report.FinalRecords()
	if len(records) > 0 {
		fmt.Fprintf(w, "Final Claims (pass %d):\n", summary.Iterations)
		fmt.Fprintf(w, "%-24s %-28s %-6s %14s %14s %8s\n",
			"Solution", "Pool", "Year", "Requested", "Granted", "Factor")
		fmt.Fprintf(w, "%-24s %-28s %-6s %14s %14s %8s\n",
			"------------------------", "----------------------------", "------",
			"--------------", "--------------", "--------")
		for _, rec := range records {
			if !rec.Clipped && !config.Verbose {
				continue
			}
			fmt.Fprintf(w, "%-24s %-28s %-6d %14s %14s %8s\n",
				rec.SolutionID,
				rec.Pool,
				rec.Year,
				formatValue(rec.Requested, places),
				formatValue(rec.Granted, places),
				formatValue(rec.AdjustmentFactor, 4))
		}
		fmt.Fprintln(w)
	}

	if warnings := result.Report.Warnings(); len(warnings) > 0 {
		fmt.Fprintf(w, "Warnings:\n")
		for _, warning := range warnings {
			fmt.Fprintf(w, "  [%s] pass %d: %s\n", warning.Kind, warning.Iteration, warning.Message)
		}
		fmt.Fprintln(w)
	}

	if config.OutputDir != "" {
		if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		filename := filepath.Join(config.OutputDir, "integration_adoption.csv")
		if err := writeFile(filename, func(f io.Writer) error { return writeAdoptionCSV(f, result, places) }); err != nil {
			return err
		}
		if config.Verbose {
			fmt.Fprintf(w, "Adoption saved to: %s\n", filename)
		}
	}

	return nil
}

type jsonWarning struct {
	Kind       string              `json:"kind"`
	Iteration  int                 `json:"iteration"`
	SolutionID entities.SolutionID `json:"solution_id,omitempty"`
	Pool       string              `json:"pool,omitempty"`
	Year       entities.Year       `json:"year,omitempty"`
	Message    string              `json:"message"`
}

type jsonResult struct {
	Summary   entities.Summary                                             `json:"summary"`
	Horizon   [2]entities.Year                                             `json:"horizon"`
	Overshoot map[entities.SolutionID]float64                              `json:"total_overshoot"`
	Records   []entities.ClaimRecord                                       `json:"final_records"`
	Warnings  []jsonWarning                                                `json:"warnings"`
	Adoption  map[entities.SolutionID]map[string]map[entities.Year]float64 `json:"adoption"`
}

// generateJSONOutput creates JSON output
func generateJSONOutput(w io.Writer, result *dto.IntegrationResult, config Config) error {
	view := jsonResult{
		Summary:   result.Summary,
		Horizon:   [2]entities.Year{result.Horizon.FirstYear, result.Horizon.LastYear},
		Overshoot: result.Report.TotalOvershoot(),
		Records:   result.Report.FinalRecords(),
		Warnings:  make([]jsonWarning, 0),
		Adoption:  make(map[entities.SolutionID]map[string]map[entities.Year]float64),
	}
	for _, warning := range result.Report.Warnings() {
		jw := jsonWarning{
			Kind:       warning.Kind.String(),
			Iteration:  warning.Iteration,
			SolutionID: warning.SolutionID,
			Year:       warning.Year,
			Message:    warning.Message,
		}
		if warning.Pool.Category != "" {
			jw.Pool = warning.Pool.String()
		}
		view.Warnings = append(view.Warnings, jw)
	}
	for id, regions := range result.Adoption {
		view.Adoption[id] = make(map[string]map[entities.Year]float64, len(regions))
		for region, series := range regions {
			view.Adoption[id][region] = series.Values()
		}
	}

	jsonData, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if config.OutputDir == "" {
		_, err := fmt.Fprintln(w, string(jsonData))
		return err
	}

	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	filename := filepath.Join(config.OutputDir, "integration_results.json")
	if err := os.WriteFile(filename, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}
	if config.Verbose {
		fmt.Fprintf(w, "JSON results saved to: %s\n", filename)
	}
	return nil
}

// generateCSVOutput writes the final records and committed adoption. Without
// an output directory only the records are written, to w.
func generateCSVOutput(w io.Writer, result *dto.IntegrationResult, config Config) error {
	if config.OutputDir == "" {
		return writeRecordsCSV(w, result.Report.FinalRecords(), config.Places)
	}

	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	recordsFile := filepath.Join(config.OutputDir, "claim_records.csv")
	if err := writeFile(recordsFile, func(f io.Writer) error {
		return writeRecordsCSV(f, result.Report.FinalRecords(), config.Places)
	}); err != nil {
		return fmt.Errorf("failed to write claim records CSV: %w", err)
	}

	adoptionFile := filepath.Join(config.OutputDir, "integration_adoption.csv")
	if err := writeFile(adoptionFile, func(f io.Writer) error {
		return writeAdoptionCSV(f, result, config.Places)
	}); err != nil {
		return fmt.Errorf("failed to write adoption CSV: %w", err)
	}

	if config.Verbose {
		fmt.Fprintf(w, "CSV results saved to:\n")
		fmt.Fprintf(w, "  Claim Records: %s\n", recordsFile)
		fmt.Fprintf(w, "  Adoption: %s\n", adoptionFile)
	}
	return nil
}

func writeFile(filename string, write func(io.Writer) error) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeRecordsCSV(w io.Writer, records []entities.ClaimRecord, places int32) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"iteration", "solution", "pool_category", "pool_region", "year",
		"requested", "granted", "adjustment_factor", "was_clipped", "overshoot",
	}); err != nil {
		return err
	}
	for _, rec := range records {
		if err := cw.Write([]string{
			strconv.Itoa(rec.Iteration),
			string(rec.SolutionID),
			rec.Pool.Category,
			rec.Pool.Region,
			strconv.Itoa(int(rec.Year)),
			formatValue(rec.Requested, places),
			formatValue(rec.Granted, places),
			formatValue(rec.AdjustmentFactor, 6),
			strconv.FormatBool(rec.Clipped),
			formatValue(rec.Overshoot, places),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeAdoptionCSV(w io.Writer, result *dto.IntegrationResult, places int32) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"solution", "region", "year", "value"}); err != nil {
		return err
	}

	ids := make([]entities.SolutionID, 0, len(result.Adoption))
	for id := range result.Adoption {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		regions := make([]string, 0, len(result.Adoption[id]))
		for region := range result.Adoption[id] {
			regions = append(regions, region)
		}
		sort.Strings(regions)
		for _, region := range regions {
			series := result.Adoption[id][region]
			for _, year := range series.Years() {
				value := "NA"
				if v, ok := series.Value(year); ok {
					value = formatValue(v, places)
				}
				if err := cw.Write([]string{string(id), region, strconv.Itoa(int(year)), value}); err != nil {
					return err
				}
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
