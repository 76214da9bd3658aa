package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetterDefaults(t *testing.T) {
	cfg := EmptyConfig()

	m, err := cfg.GetTransformationMatrix()
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Equal(t, 90.0, cfg.GetHeadingOffsetDeg())
	assert.Equal(t, "", cfg.GetTimezone())
	assert.Equal(t, 1e-9, cfg.GetSingularTolerance())
	assert.Equal(t, 0, cfg.GetWorkers())
	assert.True(t, cfg.GetSaveSource())
	assert.True(t, cfg.GetSeparateFiles())
	assert.Equal(t, 5, cfg.GetPrecision())
	assert.Equal(t, "mps", cfg.GetOutputUnits())
	assert.Equal(t, "", cfg.GetDatabase())
	assert.Equal(t, -1, cfg.GetPlotCell())
	assert.False(t, cfg.GetChart())
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "run.json")

	testJSON := `{
  "transformation_matrix": "1 0 0; 0 1 0; 0 0 1",
  "heading_offset_deg": 0,
  "workers": 2,
  "save_source": false,
  "separate_files": false,
  "precision": 3,
  "output_units": "cmps",
  "timezone": "Europe/Berlin",
  "database": "runs.db",
  "plot_cell": 2,
  "chart": true
}`
	require.NoError(t, os.WriteFile(configPath, []byte(testJSON), 0644))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	m, err := cfg.GetTransformationMatrix()
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, m.RawMatrix().Data)
	assert.Equal(t, 0.0, cfg.GetHeadingOffsetDeg())
	assert.Equal(t, 2, cfg.GetWorkers())
	assert.False(t, cfg.GetSaveSource())
	assert.False(t, cfg.GetSeparateFiles())
	assert.Equal(t, 3, cfg.GetPrecision())
	assert.Equal(t, "cmps", cfg.GetOutputUnits())
	assert.Equal(t, "Europe/Berlin", cfg.GetTimezone())
	assert.Equal(t, "runs.db", cfg.GetDatabase())
	assert.Equal(t, 2, cfg.GetPlotCell())
	assert.True(t, cfg.GetChart())
	// Unset fields keep their defaults.
	assert.Equal(t, 1e-9, cfg.GetSingularTolerance())
}

func TestLoadExampleConfigFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", ExampleConfigPath))
	require.NoError(t, err)
	assert.Equal(t, 90.0, cfg.GetHeadingOffsetDeg())
	assert.Equal(t, "beam2enu.db", cfg.GetDatabase())
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/to/config.json")
	assert.Error(t, err)
}

func TestLoadConfigRejectsNonJSON(t *testing.T) {
	_, err := LoadConfig("/some/path/config.yaml")
	assert.Error(t, err)
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"precision": "five"`), 0644))

	_, err := LoadConfig(configPath)
	assert.Error(t, err)
}

func TestLoadConfigRejectsLargeFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "large.json")
	require.NoError(t, os.WriteFile(configPath, make([]byte, 2*1024*1024), 0644))

	_, err := LoadConfig(configPath)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ConversionConfig
		wantErr bool
	}{
		{"empty", ConversionConfig{}, false},
		{"good matrix", ConversionConfig{TransformationMatrix: ptrString("1 2 3; 4 5 6; 7 8 9")}, false},
		{"bad matrix", ConversionConfig{TransformationMatrix: ptrString("1 2 3; 4 5 6")}, true},
		{"empty matrix string", ConversionConfig{TransformationMatrix: ptrString("")}, false},
		{"zero tolerance", ConversionConfig{SingularTolerance: ptrFloat64(0)}, true},
		{"negative workers", ConversionConfig{Workers: ptrInt(-1)}, true},
		{"precision too high", ConversionConfig{Precision: ptrInt(13)}, true},
		{"bad units", ConversionConfig{OutputUnits: ptrString("knots")}, true},
		{"bad timezone", ConversionConfig{Timezone: ptrString("Nowhere/Land")}, true},
		{"plot cell too low", ConversionConfig{PlotCell: ptrInt(-2)}, true},
		{"plot off", ConversionConfig{PlotCell: ptrInt(-1), Chart: ptrBool(true)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
