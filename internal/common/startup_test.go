package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	HttpPort uint16
	Postgres struct {
		Connection   map[string]string
		WriteTimeout time.Duration
	}
	Tags []string
}

func writeFile(t *testing.T, path string, contents string) {
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.yaml"), `
httpPort: 8080
postgres:
  connection:
    host: localhost
    password: secret
  writeTimeout: 5s
tags: a,b
`)
	override := filepath.Join(dir, "override.yaml")
	writeFile(t, override, `
httpPort: 9090
`)
	t.Setenv("TESTAPP_POSTGRES_CONNECTION_PASSWORD", "from-env")

	var config testConfig
	_, err := LoadConfig(&config, dir, []string{override}, "TESTAPP")
	require.NoError(t, err)

	assert.Equal(t, uint16(9090), config.HttpPort)
	assert.Equal(t, "localhost", config.Postgres.Connection["host"])
	assert.Equal(t, "from-env", config.Postgres.Connection["password"])
	assert.Equal(t, 5*time.Second, config.Postgres.WriteTimeout)
	assert.Equal(t, []string{"a", "b"}, config.Tags)
}

func TestLoadConfig_MissingBase(t *testing.T) {
	var config testConfig
	_, err := LoadConfig(&config, t.TempDir(), nil, "TESTAPP")
	assert.Error(t, err)
}

func TestLoadConfig_MissingOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.yaml"), "httpPort: 8080\n")

	var config testConfig
	_, err := LoadConfig(&config, dir, []string{filepath.Join(dir, "absent.yaml")}, "TESTAPP")
	assert.Error(t, err)
}
