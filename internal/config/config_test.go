package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outagecli/internal/dataprocessing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "console", cfg.Logging.Output)
	assert.Equal(t, DefaultWorkbook, cfg.Source.Workbook)
	assert.Equal(t, "OUTPUT", cfg.Source.OutputSheet)
	assert.True(t, cfg.Source.RequireRestore)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, DefaultCacheTTL, cfg.Cache.TTL)
	assert.Equal(t, "none", cfg.Telemetry.TraceExporter)
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 6060
  read_timeout: 20s
logging:
  level: error
source:
  workbook: outages.xlsx
  periods:
    November: "2025-11"
cache:
  max_size: 3
`)
	t.Setenv("OUTAGE_SERVER_PORT", "7070")
	t.Setenv("OUTAGE_LOGGING_LEVEL", "warn")
	t.Setenv("OUTAGE_SOURCE_PERIODS", "November:2025-11,December:2025-12")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 20*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "outages.xlsx", cfg.Source.Workbook)
	assert.Equal(t, 3, cfg.Cache.MaxSize)
	assert.Equal(t, map[string]string{"November": "2025-11", "December": "2025-12"}, cfg.Source.Periods)

	bindings, err := cfg.Source.Bindings()
	require.NoError(t, err)
	assert.Equal(t, time.December, bindings["December"].Month)
}

func TestLoadFromEnvironmentFile(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 9091\n")
	t.Setenv("OUTAGE_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9091, cfg.Server.Port)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		content string
	}{
		{name: "port out of range", env: map[string]string{"OUTAGE_SERVER_PORT": "99999"}},
		{name: "zero port", env: map[string]string{"OUTAGE_SERVER_PORT": "0"}},
		{name: "negative timeout", env: map[string]string{"OUTAGE_SERVER_READ_TIMEOUT": "-5s"}},
		{name: "not a number", env: map[string]string{"OUTAGE_SERVER_PORT": "abc"}},
		{name: "bad binding", env: map[string]string{"OUTAGE_SOURCE_PERIODS": "November:2025-13"}},
		{name: "unknown exporter", env: map[string]string{"OUTAGE_TELEMETRY_TRACE_EXPORTER": "zipkin"}},
		{name: "empty outage aliases", content: "source:\n  outage_columns: []\n"},
		{name: "negative cache size", content: "cache:\n  max_size: -1\n"},
		{name: "malformed yaml", content: "server: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.content != "" {
				path = writeConfigFile(t, tt.content)
			}
			_, err := LoadFrom(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateNormalizesLogging(t *testing.T) {
	cfg := Default()
	cfg.Logging.Format = "text"
	cfg.Logging.Output = "syslog"
	cfg.Logging.FilePath = ""

	require.NoError(t, cfg.validate())
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "console", cfg.Logging.Output)
	assert.Equal(t, "logs/app.log", cfg.Logging.FilePath)
}

func TestSourceColumnMapping(t *testing.T) {
	src := Default().Source
	src.MeterColumns = []string{" Meter No ", "", "Meterno"}
	src.RequireRestore = false

	mapping := src.ColumnMapping()
	require.NoError(t, mapping.Validate())

	meter, ok := mapping.Spec(dataprocessing.ColumnMeterID)
	require.True(t, ok)
	assert.Equal(t, []string{"Meter No", "Meterno"}, meter.Aliases)

	restore, ok := mapping.Spec(dataprocessing.ColumnRestoreTime)
	require.True(t, ok)
	assert.False(t, restore.Required)
}

func TestSourceBindings(t *testing.T) {
	src := SourceConfig{Periods: map[string]string{" November ": " 2025-11 "}}
	bindings, err := src.Bindings()
	require.NoError(t, err)
	require.Contains(t, bindings, "November")
	assert.Equal(t, 30, bindings["November"].Days())

	src.Periods = map[string]string{"  ": "2025-11"}
	_, err = src.Bindings()
	assert.Error(t, err)
}
