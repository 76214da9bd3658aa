package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/beam2enu/internal/adcp"
	"github.com/banshee-data/beam2enu/internal/units"
)

// ExampleConfigPath is the path of the annotated example configuration.
const ExampleConfigPath = "config/beam2enu.example.json"

// ConversionConfig holds the options of a conversion run. Every field is
// optional; the Get* methods supply defaults for fields left out of the
// JSON file.
type ConversionConfig struct {
	// Instrument overrides
	TransformationMatrix *string  `json:"transformation_matrix,omitempty"` // "a b c; d e f; g h i"
	HeadingOffsetDeg     *float64 `json:"heading_offset_deg,omitempty"`
	Timezone             *string  `json:"timezone,omitempty"` // instrument clock zone, IANA name

	// Engine params
	SingularTolerance *float64 `json:"singular_tolerance,omitempty"`
	Workers           *int     `json:"workers,omitempty"` // 0 = GOMAXPROCS

	// Output params
	SaveSource    *bool   `json:"save_source,omitempty"`
	SeparateFiles *bool   `json:"separate_files,omitempty"`
	Precision     *int    `json:"precision,omitempty"`
	OutputUnits   *string `json:"output_units,omitempty"`

	// Extras
	Database *string `json:"database,omitempty"`  // sqlite run ledger, empty = off
	PlotCell *int    `json:"plot_cell,omitempty"` // cell index to plot, -1 = off
	Chart    *bool   `json:"chart,omitempty"`     // HTML profile chart
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyConfig returns a ConversionConfig with all fields unset.
func EmptyConfig() *ConversionConfig {
	return &ConversionConfig{}
}

// LoadConfig loads a ConversionConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadConfig(path string) (*ConversionConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *ConversionConfig) Validate() error {
	if c.TransformationMatrix != nil && *c.TransformationMatrix != "" {
		if _, err := adcp.ParseMatrixLiteral(*c.TransformationMatrix); err != nil {
			return fmt.Errorf("transformation_matrix: %w", err)
		}
	}
	if c.SingularTolerance != nil && *c.SingularTolerance <= 0 {
		return fmt.Errorf("singular_tolerance must be positive, got %g", *c.SingularTolerance)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.Precision != nil && (*c.Precision < 0 || *c.Precision > 12) {
		return fmt.Errorf("precision must be between 0 and 12, got %d", *c.Precision)
	}
	if c.OutputUnits != nil && !units.IsValid(*c.OutputUnits) {
		return fmt.Errorf("output_units must be one of %s, got %q", units.GetValidUnitsString(), *c.OutputUnits)
	}
	if c.Timezone != nil && *c.Timezone != "" && !units.IsTimezoneValid(*c.Timezone) {
		return fmt.Errorf("invalid timezone %q", *c.Timezone)
	}
	if c.PlotCell != nil && *c.PlotCell < -1 {
		return fmt.Errorf("plot_cell must be -1 or a cell index, got %d", *c.PlotCell)
	}
	return nil
}

// GetTransformationMatrix returns the configured matrix override, or nil
// when the header's matrix should be used.
func (c *ConversionConfig) GetTransformationMatrix() (*mat.Dense, error) {
	if c.TransformationMatrix == nil || *c.TransformationMatrix == "" {
		return nil, nil
	}
	return adcp.ParseMatrixLiteral(*c.TransformationMatrix)
}

// GetHeadingOffsetDeg returns the heading_offset_deg value or the default.
func (c *ConversionConfig) GetHeadingOffsetDeg() float64 {
	if c.HeadingOffsetDeg == nil {
		return adcp.DefaultHeadingOffsetDeg
	}
	return *c.HeadingOffsetDeg
}

// GetTimezone returns the timezone value or "" (UTC).
func (c *ConversionConfig) GetTimezone() string {
	if c.Timezone == nil {
		return ""
	}
	return *c.Timezone
}

// GetSingularTolerance returns the singular_tolerance value or the default.
func (c *ConversionConfig) GetSingularTolerance() float64 {
	if c.SingularTolerance == nil {
		return adcp.DefaultSingularTolerance
	}
	return *c.SingularTolerance
}

// GetWorkers returns the workers value or 0 (one per CPU).
func (c *ConversionConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetSaveSource returns the save_source value or the default.
func (c *ConversionConfig) GetSaveSource() bool {
	if c.SaveSource == nil {
		return true // default
	}
	return *c.SaveSource
}

// GetSeparateFiles returns the separate_files value or the default.
func (c *ConversionConfig) GetSeparateFiles() bool {
	if c.SeparateFiles == nil {
		return true // default: one CSV per component
	}
	return *c.SeparateFiles
}

// GetPrecision returns the precision value or the default.
func (c *ConversionConfig) GetPrecision() int {
	if c.Precision == nil {
		return 5
	}
	return *c.Precision
}

// GetOutputUnits returns the output_units value or the default.
func (c *ConversionConfig) GetOutputUnits() string {
	if c.OutputUnits == nil {
		return units.MPS
	}
	return *c.OutputUnits
}

// GetDatabase returns the database path or "" (no run ledger).
func (c *ConversionConfig) GetDatabase() string {
	if c.Database == nil {
		return ""
	}
	return *c.Database
}

// GetPlotCell returns the plot_cell value or -1 (no plot).
func (c *ConversionConfig) GetPlotCell() int {
	if c.PlotCell == nil {
		return -1
	}
	return *c.PlotCell
}

// GetChart returns the chart value or the default.
func (c *ConversionConfig) GetChart() bool {
	if c.Chart == nil {
		return false
	}
	return *c.Chart
}
