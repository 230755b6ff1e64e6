package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
admin:
  token: secret
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 5*time.Second, cfg.Session.LockTimeout)
	assert.Equal(t, 4, cfg.Session.SchedulerWorkers)
	assert.True(t, cfg.Automation.AutoStartGame)
	assert.True(t, cfg.Automation.AutoAssignRoles)
	assert.False(t, cfg.Automation.ManualControlMode)
	assert.Equal(t, 15*time.Minute, cfg.Automation.HidingDuration)
	assert.Equal(t, 60*time.Minute, cfg.Automation.SearchingDuration)
	assert.Equal(t, 2, cfg.Automation.MinParticipantsToStart)
	assert.Equal(t, 500*time.Millisecond, cfg.Notification.SendTimeout)
	assert.NotEmpty(t, cfg.Messages.HidingStarted)
}

func TestParse_ExplicitValuesSurviveDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
admin:
  token: secret
store:
  driver: sqlite
  path: /tmp/game.db
session:
  lock_timeout: 2s
automation:
  auto_start_game: false
  auto_end_game: false
  manual_control_mode: true
  hiding_duration: 5m
  searching_duration: 20m
  min_participants_to_start: 4
filters:
  zone_filter:
    enabled: true
    settings:
      mode: reject
  freshness_filter:
    enabled: false
zones:
  - id: center
    district: downtown
    lat: 55.75
    lon: 37.61
    radius_meters: 1500
    default: true
  - id: park
    district: downtown
    lat: 55.73
    lon: 37.60
    radius_meters: 800
    disabled: true
`))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 2*time.Second, cfg.Session.LockTimeout)
	assert.False(t, cfg.Automation.AutoStartGame)
	assert.True(t, cfg.Automation.AutoStartHiding)
	assert.False(t, cfg.Automation.AutoEndGame)
	assert.True(t, cfg.Automation.ManualControlMode)
	assert.Equal(t, 5*time.Minute, cfg.Automation.HidingDuration)
	assert.Equal(t, 4, cfg.Automation.MinParticipantsToStart)

	assert.True(t, cfg.IsFilterEnabled("zone_filter"))
	assert.False(t, cfg.IsFilterEnabled("freshness_filter"))
	assert.False(t, cfg.IsFilterEnabled("phase_filter"))
	enabled := cfg.EnabledFilters()
	require.Contains(t, enabled, "zone_filter")
	assert.Equal(t, "reject", enabled["zone_filter"]["mode"])
	assert.NotContains(t, enabled, "freshness_filter")

	zones := cfg.SeedZones()
	require.Len(t, zones, 2)
	assert.True(t, zones[0].IsDefault)
	assert.True(t, zones[0].Active)
	assert.False(t, zones[1].Active)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "missing admin token", yaml: `server: {addr: ":9000"}`},
		{name: "unknown store driver", yaml: "admin: {token: x}\nstore: {driver: postgres}"},
		{name: "min participants below two", yaml: "admin: {token: x}\nautomation: {min_participants_to_start: 1}"},
		{name: "zero hiding duration", yaml: "admin: {token: x}\nautomation: {hiding_duration: 0s}"},
		{name: "zone without radius", yaml: "admin: {token: x}\nzones: [{id: a, district: d, lat: 1, lon: 1}]"},
		{name: "zone latitude out of range", yaml: "admin: {token: x}\nzones: [{id: a, district: d, lat: 91, lon: 1, radius_meters: 10}]"},
		{name: "duplicate zone id", yaml: "admin: {token: x}\nzones: [{id: a, district: d, lat: 1, lon: 1, radius_meters: 10}, {id: a, district: e, lat: 1, lon: 1, radius_meters: 10}]"},
		{name: "two default zones", yaml: "admin: {token: x}\nzones: [{id: a, district: d, lat: 1, lon: 1, radius_meters: 10, default: true}, {id: b, district: d, lat: 1, lon: 1, radius_meters: 10, default: true}]"},
		{name: "disabled default zone", yaml: "admin: {token: x}\nzones: [{id: a, district: d, lat: 1, lon: 1, radius_meters: 10, default: true, disabled: true}]"},
		{name: "malformed yaml", yaml: "admin: [token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: {driver: sqlite}\n"), 0o644))

	t.Setenv("ADMIN_TOKEN", "from-env")
	t.Setenv("HIDESEEK_DB_PATH", filepath.Join(dir, "env.db"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Admin.Token)
	assert.Equal(t, filepath.Join(dir, "env.db"), cfg.Store.Path)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_GetMessage(t *testing.T) {
	cfg := Default()
	cfg.Messages.OutsideZone = "come back"

	assert.Equal(t, "come back", cfg.GetMessage("outside_zone"))
	assert.Equal(t, cfg.Messages.DefaultMessage, cfg.GetMessage("no_such_code"))
	assert.Equal(t, cfg.Messages.RoleDriver, cfg.GetMessage("role_driver"))
}
