package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"ETA_PORT", "ETA_API_URL", "ETA_POLL_INTERVAL", "ETA_SENSORS_FILE"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "https://api-v3.mbta.com", cfg.APIBaseURL)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, "./sensors.yml", cfg.SensorsFile)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ETA_PORT", "9999")
	t.Setenv("ETA_POLL_INTERVAL", "45")
	t.Setenv("ETA_CACHE_TTL", "2s")
	t.Setenv("ETA_NATS_URL", "nats://localhost:4222")
	cfg := Load()
	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, 45*time.Second, cfg.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.CacheTTL)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
}

func TestEnvDuration_Invalid(t *testing.T) {
	t.Setenv("ETA_TEST_DURATION", "soon")
	assert.Equal(t, time.Minute, envDuration("ETA_TEST_DURATION", time.Minute))
	t.Setenv("ETA_TEST_DURATION", "-5s")
	assert.Equal(t, time.Minute, envDuration("ETA_TEST_DURATION", time.Minute))
}

func TestDefaultName(t *testing.T) {
	assert.Equal(t, "mbta_Lynn_to_North_Station", DefaultName("Lynn", "North Station"))
}

func TestParseSensors(t *testing.T) {
	specs, err := ParseSensors([]byte(`
predictions:
  - depart_from: Lynn
    arrive_at: North Station
    route: Newburyport/Rockport Line
    return_trips: true
    offset_minutes: 5
  - depart_from: Park Street
    arrive_at: Harvard
    route: Red Line
    limit: 3
    name: work
    return_trips: true
`))
	require.NoError(t, err)
	require.Len(t, specs, 4)

	assert.Equal(t, SensorSpec{
		Name: "mbta_Lynn_to_North_Station", DepartFrom: "Lynn", ArriveAt: "North Station",
		Route: "Newburyport/Rockport Line", OffsetMinutes: 5, Limit: 10, Feed: "schedules",
	}, specs[0])

	assert.Equal(t, "mbta_North_Station_to_Lynn", specs[1].Name)
	assert.Equal(t, "North Station", specs[1].DepartFrom)
	assert.True(t, specs[1].Return)

	assert.Equal(t, "work", specs[2].Name)
	assert.Equal(t, 3, specs[2].Limit)
	assert.Equal(t, 0, specs[2].OffsetMinutes)
	assert.Equal(t, "work_return", specs[3].Name)
	assert.Equal(t, "Harvard", specs[3].DepartFrom)
}

func TestParseSensors_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", `predictions: []`},
		{"missing route", "predictions:\n  - depart_from: A\n    arrive_at: B\n"},
		{"negative offset", "predictions:\n  - depart_from: A\n    arrive_at: B\n    route: R\n    offset_minutes: -1\n"},
		{"zero limit", "predictions:\n  - depart_from: A\n    arrive_at: B\n    route: R\n    limit: 0\n"},
		{"same stops", "predictions:\n  - depart_from: A\n    arrive_at: A\n    route: R\n"},
		{"unknown feed", "predictions:\n  - depart_from: A\n    arrive_at: B\n    route: R\n    feed: ftp\n"},
		{"gtfs-rt without url", "predictions:\n  - depart_from: A\n    arrive_at: B\n    route: R\n    feed: gtfs-rt\n"},
		{"duplicate names", "predictions:\n  - depart_from: A\n    arrive_at: B\n    route: R\n  - depart_from: A\n    arrive_at: B\n    route: S\n"},
		{"not yaml", "predictions: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSensors([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadSensors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensors.yml")
	require.NoError(t, os.WriteFile(path, []byte("predictions:\n  - depart_from: A\n    arrive_at: B\n    route: R\n"), 0o644))
	specs, err := LoadSensors(path)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "mbta_A_to_B", specs[0].Name)

	_, err = LoadSensors(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
