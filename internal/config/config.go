// Package config loads the analysis configuration. Fields are pointers so a
// partial JSON file only overrides what it names; the Get* accessors supply
// defaults for everything else.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wildtrack-data/movement.report/internal/geo"
	"github.com/wildtrack-data/movement.report/internal/units"
)

// AnalysisConfig is the root configuration for the movement report service.
// The same JSON schema serves startup configuration and the /api/config
// endpoint.
type AnalysisConfig struct {
	// Storage and serving
	DatabasePath  *string `json:"database_path,omitempty"`
	ListenAddr    *string `json:"listen_addr,omitempty"`
	MigrationsDir *string `json:"migrations_dir,omitempty"`

	// Ingest params
	SourceCRS *string `json:"source_crs,omitempty"` // EPSG code of the projected input coordinates
	Timezone  *string `json:"timezone,omitempty"`   // tz name the fix timestamps are recorded in

	// Home-range params
	MCPPercent  *float64 `json:"mcp_percent,omitempty"`
	KDEPercent  *float64 `json:"kde_percent,omitempty"`
	CorePercent *float64 `json:"core_percent,omitempty"`
	KDEGridSize *int     `json:"kde_grid_size,omitempty"`

	// Reporting params
	AreaUnit *string `json:"area_unit,omitempty"`
	CacheTTL *string `json:"cache_ttl,omitempty"` // duration string like "15m"
}

// Empty returns an AnalysisConfig with all fields unset.
func Empty() *AnalysisConfig {
	return &AnalysisConfig{}
}

// Load reads and validates an AnalysisConfig from a JSON file. Fields omitted
// from the file keep their defaults, so partial configs are safe.
func Load(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *AnalysisConfig) Validate() error {
	if c.SourceCRS != nil {
		if _, err := geo.ByCode(*c.SourceCRS); err != nil {
			return fmt.Errorf("invalid source_crs: %w", err)
		}
	}
	if c.Timezone != nil && *c.Timezone != "" {
		if _, err := time.LoadLocation(*c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", *c.Timezone, err)
		}
	}
	if c.MCPPercent != nil && (*c.MCPPercent <= 0 || *c.MCPPercent > 100) {
		return fmt.Errorf("mcp_percent must be in (0, 100], got %f", *c.MCPPercent)
	}
	if c.KDEPercent != nil && (*c.KDEPercent <= 0 || *c.KDEPercent > 100) {
		return fmt.Errorf("kde_percent must be in (0, 100], got %f", *c.KDEPercent)
	}
	if c.CorePercent != nil && (*c.CorePercent <= 0 || *c.CorePercent > 100) {
		return fmt.Errorf("core_percent must be in (0, 100], got %f", *c.CorePercent)
	}
	if c.CorePercent != nil || c.KDEPercent != nil {
		if c.GetCorePercent() > c.GetKDEPercent() {
			return fmt.Errorf("core_percent (%f) must not exceed kde_percent (%f)", c.GetCorePercent(), c.GetKDEPercent())
		}
	}
	if c.KDEGridSize != nil && *c.KDEGridSize < 10 {
		return fmt.Errorf("kde_grid_size must be at least 10, got %d", *c.KDEGridSize)
	}
	if c.AreaUnit != nil && !units.IsValid(*c.AreaUnit) {
		return fmt.Errorf("invalid area_unit %q (valid: %s)", *c.AreaUnit, units.GetValidUnitsString())
	}
	if c.CacheTTL != nil && *c.CacheTTL != "" {
		if _, err := time.ParseDuration(*c.CacheTTL); err != nil {
			return fmt.Errorf("invalid cache_ttl %q: %w", *c.CacheTTL, err)
		}
	}
	return nil
}

// GetDatabasePath returns the database path or the default.
func (c *AnalysisConfig) GetDatabasePath() string {
	if c.DatabasePath == nil || *c.DatabasePath == "" {
		return "movement.db"
	}
	return *c.DatabasePath
}

// GetListenAddr returns the HTTP listen address or the default.
func (c *AnalysisConfig) GetListenAddr() string {
	if c.ListenAddr == nil || *c.ListenAddr == "" {
		return ":8080"
	}
	return *c.ListenAddr
}

// GetMigrationsDir returns the migrations directory or the default.
func (c *AnalysisConfig) GetMigrationsDir() string {
	if c.MigrationsDir == nil || *c.MigrationsDir == "" {
		return "migrations"
	}
	return *c.MigrationsDir
}

// GetSourceCRS returns the source projection code or the default.
func (c *AnalysisConfig) GetSourceCRS() string {
	if c.SourceCRS == nil || *c.SourceCRS == "" {
		return geo.EPSGStereo70
	}
	return *c.SourceCRS
}

// GetLocation returns the tz location the fix timestamps are recorded in.
// The reference dataset is Carpathian, so local Romanian time is the default.
func (c *AnalysisConfig) GetLocation() *time.Location {
	name := "Europe/Bucharest"
	if c.Timezone != nil && *c.Timezone != "" {
		name = *c.Timezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetMCPPercent returns the MCP trim percentage or the default.
func (c *AnalysisConfig) GetMCPPercent() float64 {
	if c.MCPPercent == nil {
		return 95
	}
	return *c.MCPPercent
}

// GetKDEPercent returns the full KDE isopleth level or the default.
func (c *AnalysisConfig) GetKDEPercent() float64 {
	if c.KDEPercent == nil {
		return 95
	}
	return *c.KDEPercent
}

// GetCorePercent returns the core KDE isopleth level or the default.
func (c *AnalysisConfig) GetCorePercent() float64 {
	if c.CorePercent == nil {
		return 50
	}
	return *c.CorePercent
}

// GetKDEGridSize returns the kernel grid resolution or the default.
func (c *AnalysisConfig) GetKDEGridSize() int {
	if c.KDEGridSize == nil {
		return 100
	}
	return *c.KDEGridSize
}

// GetAreaUnit returns the report area unit or the default.
func (c *AnalysisConfig) GetAreaUnit() string {
	if c.AreaUnit == nil || !units.IsValid(*c.AreaUnit) {
		return units.KM2
	}
	return *c.AreaUnit
}

// GetCacheTTL parses and returns the result cache lifetime.
func (c *AnalysisConfig) GetCacheTTL() time.Duration {
	if c.CacheTTL == nil || *c.CacheTTL == "" {
		return 15 * time.Minute
	}
	d, err := time.ParseDuration(*c.CacheTTL)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}
