package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/drawdown/pkg/application/dto"
	"github.com/vsinha/drawdown/pkg/domain/entities"
)

func buildResult(t *testing.T) *dto.IntegrationResult {
	t.Helper()
	pool := entities.PoolID{Category: "degraded forest", Region: "World"}
	report := entities.NewIntegrationReport("run-1")
	report.Record(1, "afforestation", pool, 2020, 80, 80)
	report.Record(1, "peatlands", pool, 2020, 30, 20)
	report.Warn(entities.Warning{Kind: entities.NegativeClaimWarning, Iteration: 1, SolutionID: "x", Pool: pool, Message: "negative claim"})
	report.SetIterations(1)
	report.SetState(entities.StateConverged)

	horizon, err := entities.NewHorizon(2020, 2020)
	require.NoError(t, err)
	return &dto.IntegrationResult{
		RunID:   "run-1",
		Horizon: horizon,
		Report:  report,
		Summary: report.Summary(),
		Adoption: map[entities.SolutionID]map[string]entities.Series{
			"afforestation": {"World": entities.SeriesFromSlice(2020, []float64{80})},
			"peatlands":     {"World": entities.SeriesFromSlice(2020, []float64{20})},
		},
	}
}

func TestGenerate_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Generate(&buf, buildResult(t), Config{Format: "text", Places: 2}))

	out := buf.String()
	assert.Contains(t, out, "State: CONVERGED")
	assert.Contains(t, out, "Iterations: 1")
	assert.Contains(t, out, "peatlands")
	assert.Contains(t, out, "10.00", "overshoot of peatlands")
	assert.Contains(t, out, "[NegativeClaim] pass 1: negative claim")
	assert.NotContains(t, out, "afforestation ", "unclipped records are hidden unless verbose")
}

func TestGenerate_TextVerboseShowsAllRecords(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Generate(&buf, buildResult(t), Config{Format: "text", Verbose: true}))
	assert.Contains(t, buf.String(), "afforestation")
}

func TestGenerate_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Generate(&buf, buildResult(t), Config{Format: "json"}))

	var decoded struct {
		Summary struct {
			RunID     string `json:"run_id"`
			State     string `json:"state"`
			Converged bool   `json:"converged"`
		} `json:"summary"`
		Records  []entities.ClaimRecord                   `json:"final_records"`
		Warnings []map[string]any                         `json:"warnings"`
		Adoption map[string]map[string]map[string]float64 `json:"adoption"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, "run-1", decoded.Summary.RunID)
	assert.Equal(t, "CONVERGED", decoded.Summary.State)
	assert.True(t, decoded.Summary.Converged)
	assert.Len(t, decoded.Records, 2)
	require.Len(t, decoded.Warnings, 1)
	assert.Equal(t, "NegativeClaim", decoded.Warnings[0]["kind"])
	assert.Equal(t, 20.0, decoded.Adoption["peatlands"]["World"]["2020"])
}

func TestGenerate_CSVToWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Generate(&buf, buildResult(t), Config{Format: "csv", Places: 1}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "iteration,solution,pool_category"))
	assert.Equal(t, "1,peatlands,degraded forest,World,2020,30.0,20.0,0.666667,true,10.0", lines[2])
}

func TestGenerate_CSVToDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	var buf bytes.Buffer
	require.NoError(t, Generate(&buf, buildResult(t), Config{Format: "csv", OutputDir: dir}))

	adoption, err := os.ReadFile(filepath.Join(dir, "integration_adoption.csv"))
	require.NoError(t, err)
	assert.Equal(t, "solution,region,year,value\nafforestation,World,2020,80\npeatlands,World,2020,20\n", string(adoption))

	_, err = os.Stat(filepath.Join(dir, "claim_records.csv"))
	assert.NoError(t, err)
}

func TestGenerate_Errors(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Generate(&buf, nil, Config{}))
	assert.Error(t, Generate(&buf, buildResult(t), Config{Format: "xml"}))
}
