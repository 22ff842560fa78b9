package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ssargent/pngchunk/pkg/codec"
)

// Config represents the pngchunk configuration
type Config struct {
	ChunkFile ChunkFile `yaml:"chunk_file"`
	Codec     Codec     `yaml:"codec"`
	Archive   Archive   `yaml:"archive"`
	Server    Server    `yaml:"server"`
	Logging   Logging   `yaml:"logging"`
}

// ChunkFile contains chunk file settings
type ChunkFile struct {
	Path          string        `yaml:"path"`
	Signature     bool          `yaml:"signature"`
	FsyncInterval time.Duration `yaml:"fsync_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// Codec contains chunk validation policy
type Codec struct {
	MaxPayloadSize  uint32 `yaml:"max_payload_size"`
	RequireValidTag bool   `yaml:"require_valid_tag"`
}

// Archive contains chunk archive settings
type Archive struct {
	Dir string `yaml:"dir"`
}

// Server contains HTTP service settings
type Server struct {
	Bind   string `yaml:"bind"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		ChunkFile: ChunkFile{
			Path:       "./image.png",
			Signature:  true,
			BufferSize: 64 * 1024,
		},
		Codec: Codec{
			MaxPayloadSize: codec.DefaultMaxPayloadSize,
		},
		Archive: Archive{
			Dir: "./archive",
		},
		Server: Server{
			Bind: "127.0.0.1",
			Port: 9300,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from the specified path. Fields missing
// from the file keep their default values.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write with secure permissions (0600)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for values the rest of the program
// cannot work with
func (c *Config) Validate() error {
	if c.ChunkFile.Path == "" {
		return fmt.Errorf("chunk_file.path is required")
	}
	if c.ChunkFile.BufferSize < 0 {
		return fmt.Errorf("chunk_file.buffer_size must not be negative: %d", c.ChunkFile.BufferSize)
	}
	if c.ChunkFile.FsyncInterval < 0 {
		return fmt.Errorf("chunk_file.fsync_interval must not be negative: %s", c.ChunkFile.FsyncInterval)
	}
	if c.Codec.MaxPayloadSize == 0 {
		return fmt.Errorf("codec.max_payload_size must be positive")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json: %q", c.Logging.Format)
	}
	return nil
}

// RecordCodec builds the codec described by the configuration
func (c *Config) RecordCodec() *codec.RecordCodec {
	return codec.NewRecordCodec(
		codec.WithMaxPayloadSize(c.Codec.MaxPayloadSize),
		codec.WithRequireValidTag(c.Codec.RequireValidTag),
	)
}

// NewLogger creates a structured logger writing to w
func NewLogger(cfg Logging, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// GenerateSecureKey generates a cryptographically secure random key
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// BootstrapConfig writes a default configuration with a generated API key
func BootstrapConfig(configPath string, chunkFile string) (*Config, error) {
	config := DefaultConfig()
	if chunkFile != "" {
		config.ChunkFile.Path = chunkFile
	}

	apiKey, err := GenerateSecureKey(32) // 256 bits
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}
	config.Server.APIKey = apiKey

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./pngchunk.yaml"
	}

	// For Linux/macOS, use ~/.config/pngchunk/config.yaml
	return filepath.Join(homeDir, ".config", "pngchunk", "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
