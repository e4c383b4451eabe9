package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfigurationDefaults(t *testing.T) {
	cfg, err := ReadConfiguration("", nil)
	require.NoError(t, err)
	assert.Equal(t, defaultAPIURL, cfg.APIURL)
	assert.Equal(t, "memory", cfg.CredentialsConfig.Type)
	assert.Equal(t, 7*24*time.Hour, cfg.CredentialsConfig.RefreshTTL)
	assert.Equal(t, 5, cfg.ChatConfig.ReconnectAttempts)
	assert.Equal(t, 2*time.Second, cfg.ChatConfig.TypingTimeout)
	assert.False(t, cfg.Secure())
}

func TestReadConfigurationDirectory(t *testing.T) {
	dir := t.TempDir()
	err := ioutil.WriteFile(filepath.Join(dir, "a.toml"), []byte(`api_url = "https://neo.example.org/api"`+"\n"), 0o600)
	require.NoError(t, err)
	err = ioutil.WriteFile(filepath.Join(dir, "b.toml"), []byte(`
[credentials]
type = "buntdb"
path = "/tmp/neowatch.db"
access_ttl = "5m"

[chat]
reconnect_attempts = 3
filter = 'Author.Email != ""'
`), 0o600)
	require.NoError(t, err)

	cfg, err := ReadConfiguration(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://neo.example.org/api", cfg.APIURL)
	assert.True(t, cfg.Secure())
	assert.Equal(t, "buntdb", cfg.CredentialsConfig.Type)
	assert.Equal(t, 5*time.Minute, cfg.CredentialsConfig.AccessTTL)
	assert.Equal(t, 3, cfg.ChatConfig.ReconnectAttempts)
	assert.Equal(t, `Author.Email != ""`, cfg.ChatConfig.Filter)
	assert.Equal(t, defaultWSURL, cfg.WSURL)
}

func TestReadConfigurationFlagsAndEnv(t *testing.T) {
	os.Setenv("NEOWATCH_WS_URL", "wss://chat.example.org/ws")
	defer os.Unsetenv("NEOWATCH_WS_URL")

	flagSet := GetFlagSet()
	require.NoError(t, flagSet.Parse([]string{"--api-url", "https://flag.example.org"}))

	cfg, err := ReadConfiguration("", flagSet)
	require.NoError(t, err)
	assert.Equal(t, "https://flag.example.org", cfg.APIURL)
	assert.Equal(t, "wss://chat.example.org/ws", cfg.WSURL)
}

func TestReadConfigurationMissingFile(t *testing.T) {
	_, err := ReadConfiguration(filepath.Join(t.TempDir(), "missing.toml"), nil)
	assert.Error(t, err)
}
