package config

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type ServerConfig struct {
	Port int `toml:"port"`
}

// ProviderConfig holds the connection details for the hosted backend.
// Auth, tables, object storage and the realtime feed all live behind the
// same project URL.
type ProviderConfig struct {
	URL              string `toml:"url"`      // project base URL, e.g. https://xyz.example.co
	AnonKey          string `toml:"anon_key"` // public API key sent with every request
	EmailTable       string `toml:"email_table"`
	AttachmentTable  string `toml:"attachment_table"`
	ProfileTable     string `toml:"profile_table"`
	AttachmentBucket string `toml:"attachment_bucket"`
	Realtime         bool   `toml:"realtime"` // subscribe to the email change feed
}

type SessionConfig struct {
	Folder     string `toml:"folder"`      // directory for the session database
	TTLMinutes int    `toml:"ttl_minutes"` // session lifetime
}

type CacheConfig struct {
	TTLSeconds int `toml:"ttl_seconds"` // email list cache lifetime
}

type SSLConfig struct {
	Enabled      bool   `toml:"enabled"`
	CertFile     string `toml:"cert_file"`
	KeyFile      string `toml:"key_file"`
	Port         int    `toml:"port"`
	AutoRedirect bool   `toml:"auto_redirect"`
	Domain       string `toml:"domain"`
	HSTSMaxAge   int    `toml:"hsts_max_age"`
}

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Provider ProviderConfig `toml:"provider"`
	Session  SessionConfig  `toml:"session"`
	Cache    CacheConfig    `toml:"cache"`
	SSL      SSLConfig      `toml:"ssl"`
}

func LoadConfig(filepath string) (*Config, error) {
	var config Config

	// Set default values
	config.Server.Port = 3000
	config.Provider.EmailTable = "emails"
	config.Provider.AttachmentTable = "attachments"
	config.Provider.ProfileTable = "profiles"
	config.Provider.AttachmentBucket = "attachments"
	config.Provider.Realtime = true
	config.Session.Folder = "./sessions"
	config.Session.TTLMinutes = 24 * 60
	config.Cache.TTLSeconds = 60

	// Default SSL configuration
	config.SSL.Port = 443
	config.SSL.HSTSMaxAge = 31536000 // 1 year
	config.SSL.AutoRedirect = true

	// Load config file
	_, err := toml.DecodeFile(filepath, &config)
	if err != nil {
		return nil, err
	}

	if config.Provider.URL == "" {
		return nil, fmt.Errorf("provider url is required")
	}
	config.Provider.URL = strings.TrimRight(config.Provider.URL, "/")

	if config.Provider.AnonKey == "" {
		return nil, fmt.Errorf("provider anon_key is required")
	}

	// Validate SSL configuration if enabled
	if config.SSL.Enabled {
		if err := config.ValidateSSL(); err != nil {
			return nil, fmt.Errorf("SSL configuration error: %w", err)
		}
	}

	return &config, nil
}

// SessionTTL returns the configured session lifetime.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLMinutes) * time.Minute
}

// CacheTTL returns the configured email list cache lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// ValidateSSL checks if the SSL configuration is valid
func (c *Config) ValidateSSL() error {
	if !c.SSL.Enabled {
		return nil
	}

	if c.SSL.CertFile == "" {
		return fmt.Errorf("SSL certificate file path is required")
	}

	if c.SSL.KeyFile == "" {
		return fmt.Errorf("SSL key file path is required")
	}

	// Try loading the certificates to verify they're valid
	_, err := tls.LoadX509KeyPair(c.SSL.CertFile, c.SSL.KeyFile)
	if err != nil {
		return fmt.Errorf("failed to load SSL certificates: %w", err)
	}

	return nil
}
