package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/ecojourney/internal/config"
	"github.com/rshade/ecojourney/internal/greenops"
)

const quietConfig = "logging:\n  level: error\n"

// runCLI executes the root command against a private config file so the
// user's home directory is never read.
func runCLI(t *testing.T, configYAML string, args ...string) (string, string, error) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(configYAML), 0o600))

	root := NewRootCmd("test")
	root.SetArgs(append([]string{"--config", cfgPath, "--env-file", filepath.Join(dir, "missing.env")}, args...))
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRootCmd(t *testing.T) {
	t.Parallel()

	root := NewRootCmd("1.0.0")
	assert.Equal(t, "ecojourney", root.Use)
	assert.Equal(t, "1.0.0", root.Version)

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"flight", "saf", "points", "tiers", "serve", "config"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCmd_MissingExplicitConfig(t *testing.T) {
	t.Parallel()

	root := NewRootCmd("test")
	root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml"), "tiers", "list"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	require.Error(t, root.Execute())
}

func TestFlightEstimate(t *testing.T) {
	t.Parallel()

	t.Run("table", func(t *testing.T) {
		t.Parallel()
		out, _, err := runCLI(t, quietConfig, "flight", "estimate", "--route", "SIN-LHR")
		require.NoError(t, err)
		assert.Contains(t, out, "FLIGHT EMISSIONS")
		assert.Contains(t, out, "SIN → LHR")
		assert.Contains(t, out, "1.82 t")
		assert.NotContains(t, out, "radiative_forcing_multiplier")
	})

	t.Run("methodology", func(t *testing.T) {
		t.Parallel()
		out, _, err := runCLI(t, quietConfig, "flight", "estimate", "--route", "SIN-LHR", "--methodology")
		require.NoError(t, err)
		assert.Contains(t, out, "FACTOR")
		assert.Contains(t, out, "radiative_forcing_multiplier")
		assert.Contains(t, out, "combined_uncertainty")
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()
		out, _, err := runCLI(t, quietConfig,
			"flight", "estimate", "--route", "SIN-LHR", "--passengers", "2", "--cabin", "business", "--output", "json")
		require.NoError(t, err)

		var body struct {
			Result struct {
				Passengers      int     `json:"passengers"`
				CabinClass      string  `json:"cabin_class"`
				EmissionsCO2eKg float64 `json:"emissions_co2e_kg"`
			} `json:"result"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &body))
		assert.Equal(t, 2, body.Result.Passengers)
		assert.Equal(t, "business", body.Result.CabinClass)
		assert.Positive(t, body.Result.EmissionsCO2eKg)
	})

	t.Run("errors", func(t *testing.T) {
		t.Parallel()
		_, _, err := runCLI(t, quietConfig, "flight", "estimate", "--route", "SIN-XXX")
		require.ErrorIs(t, err, greenops.ErrNotFound)

		_, _, err = runCLI(t, quietConfig, "flight", "estimate", "--route", "SIN-LHR", "--passengers", "0")
		require.ErrorIs(t, err, greenops.ErrInvalidInput)

		_, _, err = runCLI(t, quietConfig, "flight", "estimate", "--route", "SIN-LHR", "--cabin", "cargo")
		require.ErrorIs(t, err, greenops.ErrInvalidInput)

		_, _, err = runCLI(t, quietConfig, "flight", "estimate", "--route", "SIN-LHR", "--output", "xml")
		require.ErrorIs(t, err, greenops.ErrInvalidInput)

		_, _, err = runCLI(t, quietConfig, "flight", "estimate")
		require.Error(t, err)
	})
}

func TestFlightEstimate_UsesConfiguredRadiativeForcing(t *testing.T) {
	t.Parallel()

	out, _, err := runCLI(t, quietConfig+"emissions:\n  rf_multiplier: 1.0\n  rf_uncertainty_percent: 0\n",
		"flight", "estimate", "--route", "SIN-LHR", "--output", "json")
	require.NoError(t, err)

	var body struct {
		Result struct {
			CO2Kg  float64 `json:"emissions_co2_kg"`
			CO2eKg float64 `json:"emissions_co2e_kg"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.InDelta(t, body.Result.CO2Kg, body.Result.CO2eKg, 1e-9)
}

func TestFlightBatch(t *testing.T) {
	t.Parallel()

	out, _, err := runCLI(t, quietConfig, "flight", "batch", "SIN-LHR", "SIN-NRT", "SIN-BKK")
	require.NoError(t, err)
	for _, want := range []string{"ROUTE", "SIN-LHR", "SIN-NRT", "SIN-BKK", "TOTAL"} {
		assert.Contains(t, out, want)
	}

	out, _, err = runCLI(t, quietConfig, "flight", "batch", "SIN-LHR", "SIN-NRT", "--output", "json")
	require.NoError(t, err)
	var results []struct {
		RouteID string `json:"route_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "SIN-LHR", results[0].RouteID)
	assert.Equal(t, "SIN-NRT", results[1].RouteID)

	_, _, err = runCLI(t, quietConfig, "flight", "batch", "SIN-LHR", "SIN-XXX")
	require.ErrorIs(t, err, greenops.ErrNotFound)

	_, _, err = runCLI(t, quietConfig, "flight", "batch")
	require.Error(t, err)
}

func TestSAFQuote(t *testing.T) {
	t.Parallel()

	t.Run("by percent", func(t *testing.T) {
		t.Parallel()
		out, _, err := runCLI(t, quietConfig, "saf", "quote", "--route", "SIN-LHR", "--percent", "50", "--output", "json")
		require.NoError(t, err)

		var q safQuote
		require.NoError(t, json.Unmarshal([]byte(out), &q))
		assert.InDelta(t, 50, q.Contribution.PercentCovered, 0)
		assert.Equal(t, "pending", string(q.Contribution.VerificationStatus))
		assert.Equal(t, q.Contribution.EcoPoints(), q.EcoPoints)
		require.NotNil(t, q.Offset)
		assert.InDelta(t, q.Contribution.CO2eAvoidedKg, q.Offset.KgCovered, 1e-6)
	})

	t.Run("by amount", func(t *testing.T) {
		t.Parallel()
		out, _, err := runCLI(t, quietConfig, "saf", "quote", "--amount", "25")
		require.NoError(t, err)
		assert.Contains(t, out, "SAF QUOTE")
		assert.Contains(t, out, "250")
		assert.NotContains(t, out, "generic offset")
	})

	t.Run("amount against a route", func(t *testing.T) {
		t.Parallel()
		out, _, err := runCLI(t, quietConfig, "saf", "quote", "--amount", "25", "--route", "SIN-NRT", "--output", "json")
		require.NoError(t, err)

		var q safQuote
		require.NoError(t, json.Unmarshal([]byte(out), &q))
		assert.Equal(t, "SIN-NRT", q.RouteID)
		assert.Positive(t, q.Coverage)
		assert.Less(t, q.Coverage, 100.0)
		assert.Zero(t, q.Contribution.PercentCovered)
		assert.Nil(t, q.Offset)

		out, _, err = runCLI(t, quietConfig, "saf", "quote", "--amount", "25", "--route", "SIN-NRT")
		require.NoError(t, err)
		assert.Contains(t, out, "% of SIN-NRT")
	})

	t.Run("percent reports its coverage", func(t *testing.T) {
		t.Parallel()
		out, _, err := runCLI(t, quietConfig, "saf", "quote", "--route", "SIN-LHR", "--percent", "40", "--output", "json")
		require.NoError(t, err)
		var q safQuote
		require.NoError(t, json.Unmarshal([]byte(out), &q))
		assert.InDelta(t, 40, q.Coverage, 1e-6)
	})

	t.Run("flag combinations", func(t *testing.T) {
		t.Parallel()
		_, _, err := runCLI(t, quietConfig, "saf", "quote", "--amount", "25", "--percent", "50")
		require.Error(t, err)
		_, _, err = runCLI(t, quietConfig, "saf", "quote", "--percent", "50")
		require.Error(t, err)
		_, _, err = runCLI(t, quietConfig, "saf", "quote")
		require.Error(t, err)
		_, _, err = runCLI(t, quietConfig, "saf", "quote", "--route", "SIN-LHR", "--percent", "120")
		require.ErrorIs(t, err, greenops.ErrInvalidInput)
	})
}

func TestFlightEquivalency(t *testing.T) {
	t.Parallel()

	out, _, err := runCLI(t, quietConfig, "flight", "equivalency", "1.5", "--unit", "t")
	require.NoError(t, err)
	assert.Contains(t, out, "EQUIVALENCIES")
	assert.Contains(t, out, "1.50 t CO2e")
	assert.Contains(t, out, "miles driven")
	assert.Contains(t, out, "tree seedlings")

	out, _, err = runCLI(t, quietConfig, "flight", "equivalency", "2000", "--unit", "lbCO2e", "--output", "json")
	require.NoError(t, err)
	var eq greenops.EquivalencyOutput
	require.NoError(t, json.Unmarshal([]byte(out), &eq))
	assert.InDelta(t, 2000*greenops.PoundsToKg, eq.InputKg, 1e-9)

	out, _, err = runCLI(t, quietConfig, "flight", "equivalency", "500", "--unit", "g")
	require.NoError(t, err)
	assert.Contains(t, out, "too small to compare")

	_, _, err = runCLI(t, quietConfig, "flight", "equivalency", "1", "--unit", "kWh")
	require.ErrorIs(t, err, greenops.ErrInvalidUnit)
	_, _, err = runCLI(t, quietConfig, "flight", "equivalency", "--", "-3")
	require.ErrorIs(t, err, greenops.ErrNegativeValue)
	_, _, err = runCLI(t, quietConfig, "flight", "equivalency", "heavy")
	require.ErrorIs(t, err, greenops.ErrInvalidInput)
}

func TestPointsTier(t *testing.T) {
	t.Parallel()

	out, _, err := runCLI(t, quietConfig, "points", "tier", "1250")
	require.NoError(t, err)
	assert.Contains(t, out, "Eco Champion")
	assert.Contains(t, out, "Climate Guardian in 750 points")
	assert.Contains(t, out, "50%")

	out, _, err = runCLI(t, quietConfig, "points", "tier", "9000")
	require.NoError(t, err)
	assert.Contains(t, out, "Planet Hero")
	assert.Contains(t, out, "top tier reached")

	out, _, err = runCLI(t, quietConfig, "points", "tier", "499", "--output", "json")
	require.NoError(t, err)
	var p struct {
		CurrentTier struct {
			ID string `json:"id"`
		} `json:"current_tier"`
		PointsToNext *int64 `json:"points_to_next"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, "green-explorer", p.CurrentTier.ID)
	require.NotNil(t, p.PointsToNext)
	assert.Equal(t, int64(1), *p.PointsToNext)

	_, _, err = runCLI(t, quietConfig, "points", "tier", "-5")
	require.Error(t, err)
	_, _, err = runCLI(t, quietConfig, "points", "tier", "lots")
	require.ErrorIs(t, err, greenops.ErrInvalidInput)
}

func TestPointsAwards(t *testing.T) {
	t.Parallel()

	out, _, err := runCLI(t, quietConfig, "points", "awards")
	require.NoError(t, err)
	assert.Contains(t, out, "saf_contribution")
	assert.Contains(t, out, "10 points per dollar")
	assert.Contains(t, out, "public_transport_trip")
	assert.Contains(t, out, "30 points")
}

func TestTiersList(t *testing.T) {
	t.Parallel()

	out, _, err := runCLI(t, quietConfig, "tiers", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "green-explorer")
	assert.Contains(t, out, "0 - 499")
	assert.Contains(t, out, "5,000+")
	assert.Contains(t, out, "x1.50")
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	out, _, err := runCLI(t, quietConfig, "config", "validate", "--verbose")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
	assert.Contains(t, out, "Reference data: version")
	assert.Contains(t, out, "Nudge history: memory")

	bad := quietConfig + "emissions:\n  rf_multiplier: 0.5\noffsets:\n  price_per_tonne: 0\n"
	_, stderr, err := runCLI(t, bad, "config", "validate")
	require.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Contains(t, stderr, "Configuration errors:")
	assert.Contains(t, stderr, "offsets.price_per_tonne")
}

func TestConfigOverlay(t *testing.T) {
	t.Parallel()

	overlay := filepath.Join(t.TempDir(), "overlay.yaml")
	require.NoError(t, os.WriteFile(overlay, []byte("saf:\n  provider: Test Fuels\n  price_per_liter: 5\n  reduction_factor_per_liter: 2.27\n"), 0o600))

	out, _, err := runCLI(t, quietConfig, "--config-overlay", overlay, "saf", "quote", "--amount", "10", "--output", "json")
	require.NoError(t, err)
	var q safQuote
	require.NoError(t, json.Unmarshal([]byte(out), &q))
	assert.Equal(t, "Test Fuels", q.Contribution.Provider)
	assert.InDelta(t, 2, q.Contribution.LitersAttributed, 1e-9)
}

func TestProgressBar(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "░░░░░░░░░░ 0%", progressBar(0, 10, false))
	assert.Equal(t, "█████░░░░░ 50%", progressBar(50, 10, false))
	assert.Equal(t, "██████████ 100%", progressBar(100, 10, false))
	assert.Equal(t, "░░░░░░░░░░ -5%", progressBar(-5, 10, false))
}

func TestFlightExplore_RequiresTerminal(t *testing.T) {
	t.Parallel()

	_, _, err := runCLI(t, quietConfig, "flight", "explore")
	require.ErrorIs(t, err, greenops.ErrInvalidInput)
	assert.Contains(t, err.Error(), "interactive terminal")
}
