package raygun

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	assert.NoError(t, s.Validate())
	assert.False(t, s.HasAPIKey())
	assert.Equal(t, DefaultCrashReportingEndpoint, s.CrashReportingEndpoint)
	assert.Equal(t, 10, s.OfflineStorage.Capacity)
	assert.Equal(t, 3*time.Second, s.SendTimeout)
	assert.Equal(t, time.Second, s.RUM.StartDelay)
	assert.True(t, s.IsStrippedWrapper("System.Reflection.TargetInvocationException"))
	assert.False(t, s.IsStrippedWrapper("System.Exception"))
}

func TestNewSettings(t *testing.T) {
	s, err := NewSettings(map[string]any{
		"api_key":                  "secret",
		"offline_storage.capacity": 4,
		"send_timeout":             "10s",
		"rum": map[string]any{
			"start_delay": "250ms",
		},
	})
	require.NoError(t, err)

	assert.True(t, s.HasAPIKey())
	assert.Equal(t, "secret", s.APIKey)
	assert.Equal(t, 4, s.OfflineStorage.Capacity)
	assert.Equal(t, 10*time.Second, s.SendTimeout)
	assert.Equal(t, 250*time.Millisecond, s.RUM.StartDelay)

	// Untouched values keep their defaults.
	assert.Equal(t, DefaultRUMEndpoint, s.RUMEndpoint)
	assert.Equal(t, DefaultRUMQueueSize, s.RUM.QueueSize)
}

func TestNewSettings_Invalid(t *testing.T) {
	tests := map[string]map[string]any{
		"zero capacity":    {"offline_storage.capacity": 0},
		"negative timeout": {"send_timeout": "-1s"},
		"bad scheme":       {"crash_reporting_endpoint": "ftp://example.com"},
		"bad queue size":   {"rum.queue_size": -2},
	}
	for name, m := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewSettings(m)
			assert.Error(t, err)
		})
	}
}

func TestLoadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raygun.yml")
	content := `
api_key: from-file
application_version: 1.4.2
offline_storage:
  dir: /var/lib/app/raygun
connectivity.ttl: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", s.APIKey)
	assert.Equal(t, "1.4.2", s.ApplicationVersion)
	assert.Equal(t, "/var/lib/app/raygun", s.OfflineStorage.Dir)
	assert.Equal(t, 30*time.Second, s.Connectivity.TTL)
	assert.Equal(t, DefaultOfflineCapacity, s.OfflineStorage.Capacity)
}

func TestLoadSettings_MissingFile(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
