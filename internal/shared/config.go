package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Bridge   BridgeConfig   `toml:"bridge"`
	Import   ImportConfig   `toml:"import"`
}

// DatabaseConfig contains record store settings.
type DatabaseConfig struct {
	Path          string `toml:"path"`
	Name          string `toml:"name"`
	SchemaVersion int    `toml:"schema_version"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// ServerConfig contains HTTP server settings for the invoke API.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// BridgeConfig contains settings for the local host bridge.
type BridgeConfig struct {
	BcryptCost   int    `toml:"bcrypt_cost"`
	EndpointHost string `toml:"endpoint_host"`
}

// ImportConfig contains library import settings.
type ImportConfig struct {
	RateLimit float64 `toml:"rate_limit"`
	Playlist  string  `toml:"playlist"`
}

// Address returns the host:port pair the invoke API listens on.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate checks values that would otherwise fail deep inside the store or bridge.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is required", ErrInvalidConfig)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("%w: database.name is required", ErrInvalidConfig)
	}
	if c.Database.SchemaVersion < 1 {
		return fmt.Errorf("%w: database.schema_version must be >= 1", ErrInvalidConfig)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port out of range", ErrInvalidConfig)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
