// Package config persists application configuration and connection
// profiles as YAML. Profiles reference passwords by opaque identifier;
// plaintext secrets never touch this file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/hgwr/TableGlass-sub000/internal/driver"
)

// Config holds all persisted application configuration.
type Config struct {
	Audit    AuditConfig `yaml:"audit"`
	Profiles []Profile   `yaml:"profiles"`
}

// AuditConfig controls the statement audit log.
type AuditConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path,omitempty"`
	MaxSizeMB int    `yaml:"max_size_mb,omitempty"`
}

// Profile is a saved connection profile. PasswordRef points into the
// secret store; the password itself is resolved only at connect time.
type Profile struct {
	Name        string `yaml:"name"`
	Engine      string `yaml:"engine"`
	Host        string `yaml:"host,omitempty"`
	Port        int    `yaml:"port,omitempty"`
	User        string `yaml:"user,omitempty"`
	Database    string `yaml:"database,omitempty"`
	PasswordRef string `yaml:"password_ref,omitempty"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Audit: AuditConfig{MaxSizeMB: 10},
	}
}

// ConfigDir returns the tableglass configuration directory path, typically
// ~/.config/tableglass/.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config dir: %w", err)
	}
	return filepath.Join(base, "tableglass"), nil
}

// Load reads a Config from the YAML file at path. If the file does not
// exist, it returns DefaultConfig without error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadDefault loads configuration from ConfigDir()/config.yaml.
func LoadDefault() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return Load(filepath.Join(dir, "config.yaml"))
}

// Save writes the Config to the YAML file at path, creating any necessary
// parent directories.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SaveDefault writes the Config to ConfigDir()/config.yaml.
func (c *Config) SaveDefault() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return c.Save(filepath.Join(dir, "config.yaml"))
}

// FindProfile returns the named profile.
func (c *Config) FindProfile(name string) (Profile, bool) {
	for _, p := range c.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

// DriverProfile converts the saved profile into the driver-facing form.
func (p Profile) DriverProfile() driver.Profile {
	return driver.Profile{
		Engine:      driver.EngineKind(p.Engine),
		Host:        p.Host,
		Port:        p.Port,
		User:        p.User,
		Database:    p.Database,
		PasswordRef: p.PasswordRef,
	}
}

// DisplayString returns a human-readable representation of the profile,
// formatted as "engine://host:port/database". It never includes
// credentials.
func (p Profile) DisplayString() string {
	host := p.Host
	if host == "" {
		host = "localhost"
	}

	location := host
	if p.Port > 0 {
		location = fmt.Sprintf("%s:%d", host, p.Port)
	}

	if p.Database != "" {
		return fmt.Sprintf("%s://%s/%s", p.Engine, location, p.Database)
	}
	return fmt.Sprintf("%s://%s", p.Engine, location)
}
