package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
[provider]
url = "https://project.example.co"
anon_key = "anon"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "emails", cfg.Provider.EmailTable)
	assert.Equal(t, "attachments", cfg.Provider.AttachmentTable)
	assert.Equal(t, "profiles", cfg.Provider.ProfileTable)
	assert.Equal(t, "attachments", cfg.Provider.AttachmentBucket)
	assert.True(t, cfg.Provider.Realtime)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL())
	assert.Equal(t, time.Minute, cfg.CacheTTL())
	assert.False(t, cfg.SSL.Enabled)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 8080

[provider]
url = "https://project.example.co/"
anon_key = "anon"
email_table = "mail"
realtime = false

[session]
ttl_minutes = 60

[cache]
ttl_seconds = 5
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "mail", cfg.Provider.EmailTable)
	assert.False(t, cfg.Provider.Realtime)
	assert.Equal(t, time.Hour, cfg.SessionTTL())
	assert.Equal(t, 5*time.Second, cfg.CacheTTL())

	// Trailing slash is trimmed so URL concatenation stays clean.
	assert.Equal(t, "https://project.example.co", cfg.Provider.URL)
}

func TestLoadConfigRequiresProviderURL(t *testing.T) {
	path := writeConfig(t, `
[provider]
anon_key = "anon"
`)

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "url")
}

func TestLoadConfigRequiresAnonKey(t *testing.T) {
	path := writeConfig(t, `
[provider]
url = "https://project.example.co"
`)

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "anon_key")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestValidateSSLRequiresCertAndKey(t *testing.T) {
	cfg := &Config{}
	cfg.SSL.Enabled = true

	assert.ErrorContains(t, cfg.ValidateSSL(), "certificate")

	cfg.SSL.CertFile = "cert.pem"
	assert.ErrorContains(t, cfg.ValidateSSL(), "key")
}

func TestValidateSSLDisabledIsNoop(t *testing.T) {
	cfg := &Config{}
	assert.NoError(t, cfg.ValidateSSL())
}
