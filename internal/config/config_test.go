package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildtrack-data/movement.report/internal/geo"
	"github.com/wildtrack-data/movement.report/internal/units"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "analysis.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	t.Parallel()
	cfg := Empty()
	assert.Equal(t, "movement.db", cfg.GetDatabasePath())
	assert.Equal(t, ":8080", cfg.GetListenAddr())
	assert.Equal(t, "migrations", cfg.GetMigrationsDir())
	assert.Equal(t, geo.EPSGStereo70, cfg.GetSourceCRS())
	assert.Equal(t, 95.0, cfg.GetMCPPercent())
	assert.Equal(t, 95.0, cfg.GetKDEPercent())
	assert.Equal(t, 50.0, cfg.GetCorePercent())
	assert.Equal(t, 100, cfg.GetKDEGridSize())
	assert.Equal(t, units.KM2, cfg.GetAreaUnit())
	assert.Equal(t, 15*time.Minute, cfg.GetCacheTTL())
	assert.Equal(t, "Europe/Bucharest", cfg.GetLocation().String())
}

func TestLoadPartialConfig(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `{"source_crs": "EPSG:2180", "mcp_percent": 100, "area_unit": "ha"}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, geo.EPSGPolandCS92, cfg.GetSourceCRS())
	assert.Equal(t, 100.0, cfg.GetMCPPercent())
	assert.Equal(t, "ha", cfg.GetAreaUnit())
	// Unset fields keep defaults.
	assert.Equal(t, 50.0, cfg.GetCorePercent())
	assert.Equal(t, ":8080", cfg.GetListenAddr())
}

func TestLoadRejectsNonJSONExtension(t *testing.T) {
	t.Parallel()
	_, err := Load("analysis.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".json")
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		json string
	}{
		{"bad crs", `{"source_crs": "EPSG:4326"}`},
		{"bad timezone", `{"timezone": "Mars/Olympus_Mons"}`},
		{"mcp too high", `{"mcp_percent": 101}`},
		{"mcp zero", `{"mcp_percent": 0}`},
		{"core above kde", `{"kde_percent": 50, "core_percent": 95}`},
		{"grid too small", `{"kde_grid_size": 5}`},
		{"bad unit", `{"area_unit": "acres"}`},
		{"bad ttl", `{"cache_ttl": "soon"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.json))
			assert.Error(t, err)
		})
	}
}

func TestGetLocationOverride(t *testing.T) {
	t.Parallel()
	tz := "Europe/Warsaw"
	cfg := &AnalysisConfig{Timezone: &tz}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, tz, cfg.GetLocation().String())
}
