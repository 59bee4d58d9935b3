package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, RelayConfigName), []byte(body), 0644))
	return dir
}

func TestLoadDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	dir := writeConfig(t, `{}`)

	require.NoError(t, Load(dir, RelayConfigName))

	assert.Equal(t, "info", GetString("logLevel"))

	lv := GetLivenessConfig()
	assert.Equal(t, 2*time.Second, lv.FreezeTimeout)
	assert.Equal(t, 10*time.Millisecond, lv.ActiveInterval)
	assert.Equal(t, 500*time.Millisecond, lv.IdleInterval)
	assert.Equal(t, 5, lv.MissLimit)

	sm := GetSharedMemoryConfig()
	assert.Equal(t, 10, sm.CopyRetries)
	assert.Equal(t, -1, sm.PlayerIndex)
	assert.False(t, sm.PlayerOverride)

	rc := GetRelayConfig()
	assert.False(t, rc.Enabled)
	assert.Equal(t, "default", rc.Session)
	assert.Equal(t, 200*time.Millisecond, rc.SendInterval)
	assert.Equal(t, time.Second, rc.InitialBackoff)
	assert.Equal(t, 30*time.Second, rc.MaxBackoff)

	ac := GetArbiterConfig()
	assert.Equal(t, time.Second, ac.Interval)
	assert.Equal(t, 10, ac.StartupRetries)

	sc := GetStoreConfig()
	assert.Equal(t, "sqlite", sc.Type)
	assert.Equal(t, "5432", sc.Port)

	assert.Equal(t, 5*time.Second, GetInfluxConfig().Interval)
	assert.Equal(t, 5*time.Second, GetOTelConfig().BatchTimeout)
	assert.Equal(t, 30*time.Second, GetOTelConfig().MetricInterval)
	assert.False(t, GetGraylogConfig().Enabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Cleanup(viper.Reset)
	dir := writeConfig(t, `{
		"logLevel": "debug",
		"sharedMemory": {"processID": "4242", "mode": 1, "playerOverride": true, "playerIndex": 3},
		"liveness": {"freezeTimeout": "750ms", "missLimit": 2},
		"relay": {"enabled": true, "url": "ws://hub:9000/relay", "session": "race", "activationKey": "k", "maxReconnect": 4},
		"hub": {"listen": ":9000", "queueSize": 4},
		"store": {"type": "postgres"},
		"db": {"host": "db.local"},
		"influx": {"enabled": true, "interval": "1m"},
		"otel": {"enabled": true, "serviceName": "pit", "batchTimeout": "10s"}
	}`)

	require.NoError(t, Load(dir, RelayConfigName))

	assert.Equal(t, "debug", GetString("logLevel"))

	sm := GetSharedMemoryConfig()
	assert.Equal(t, "4242", sm.ProcessID)
	assert.Equal(t, 1, sm.Mode)
	assert.True(t, sm.PlayerOverride)
	assert.Equal(t, 3, sm.PlayerIndex)

	lv := GetLivenessConfig()
	assert.Equal(t, 750*time.Millisecond, lv.FreezeTimeout)
	assert.Equal(t, 2, lv.MissLimit)
	assert.Equal(t, 10*time.Millisecond, lv.ActiveInterval)

	rc := GetRelayConfig()
	assert.True(t, rc.Enabled)
	assert.Equal(t, "ws://hub:9000/relay", rc.URL)
	assert.Equal(t, "race", rc.Session)
	assert.Equal(t, "k", rc.ActivationKey)
	assert.Equal(t, 4, rc.MaxReconnect)

	hc := GetHubConfig()
	assert.Equal(t, ":9000", hc.Listen)
	assert.Equal(t, "/relay", hc.Path)
	assert.Equal(t, 4, hc.QueueSize)

	sc := GetStoreConfig()
	assert.Equal(t, "postgres", sc.Type)
	assert.Equal(t, "db.local", sc.Host)

	ic := GetInfluxConfig()
	assert.True(t, ic.Enabled)
	assert.Equal(t, time.Minute, ic.Interval)

	oc := GetOTelConfig()
	assert.True(t, oc.Enabled)
	assert.Equal(t, "pit", oc.ServiceName)
	assert.Equal(t, 10*time.Second, oc.BatchTimeout)
}

func TestLoadMissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load(t.TempDir(), RelayConfigName)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}
