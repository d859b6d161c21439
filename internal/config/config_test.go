package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"MLLP_PORT", "WEB_PORT", "DIRECTORY_BASE_URL", "SCHEDULING_BASE_URL",
		"AUDIT_DIR", "DATA_PATH", "FALLBACK_DOCTOR_ID", "HTTP_TIMEOUT_SECONDS", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2575, cfg.MLLPPort)
	assert.Equal(t, 5678, cfg.WebPort)
	assert.Equal(t, "http://localhost:5010", cfg.DirectoryBaseURL)
	assert.Equal(t, "http://localhost:5020", cfg.SchedulingBaseURL)
	assert.Equal(t, "logs", cfg.AuditDir)
	assert.Equal(t, "/data", cfg.DataPath)
	assert.Equal(t, int64(1), cfg.FallbackDoctorID)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MLLP_PORT", "12575")
	t.Setenv("WEB_PORT", "18080")
	t.Setenv("DIRECTORY_BASE_URL", "http://directory:5010")
	t.Setenv("FALLBACK_DOCTOR_ID", "42")
	t.Setenv("HTTP_TIMEOUT_SECONDS", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 12575, cfg.MLLPPort)
	assert.Equal(t, 18080, cfg.WebPort)
	assert.Equal(t, "http://directory:5010", cfg.DirectoryBaseURL)
	assert.Equal(t, int64(42), cfg.FallbackDoctorID)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
}

func TestLoad_MalformedIntFallsBack(t *testing.T) {
	t.Setenv("MLLP_PORT", "not-a-port")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2575, cfg.MLLPPort)
}
