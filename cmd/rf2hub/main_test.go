package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simlink/relay/internal/config"
	"github.com/simlink/relay/internal/store"
)

func writeHubConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := map[string]any{
		"logsDir": filepath.Join(dir, "logs"),
		"store":   map[string]any{"type": "sqlite", "sqlite": map[string]any{"path": filepath.Join(dir, "hub.db")}},
	}
	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.HubConfigName), b, 0644))
	return dir
}

func TestKeyCommands(t *testing.T) {
	dir := writeHubConfig(t)

	var out bytes.Buffer
	t.Cleanup(viper.Reset)
	require.NoError(t, run(dir, []string{"addkey", "abc123", "team", "one"}, &out))
	assert.Contains(t, out.String(), "key added")

	viper.Reset()
	out.Reset()
	require.NoError(t, run(dir, []string{"REVOKEKEY", "abc123"}, &out))
	assert.Contains(t, out.String(), "key revoked")

	viper.Reset()
	out.Reset()
	require.NoError(t, run(dir, []string{"sessions"}, &out))
	var sessions []store.SessionRecord
	require.NoError(t, json.Unmarshal(out.Bytes(), &sessions))
	assert.Empty(t, sessions)
}

func TestCommandErrors(t *testing.T) {
	dir := writeHubConfig(t)
	t.Cleanup(viper.Reset)

	assert.EqualError(t, run(dir, []string{"addkey"}, &bytes.Buffer{}), "addkey: missing key")

	viper.Reset()
	assert.EqualError(t, run(dir, []string{"frobnicate"}, &bytes.Buffer{}), `unknown command "frobnicate"`)

	viper.Reset()
	assert.Error(t, run(t.TempDir(), nil, &bytes.Buffer{}))
}
