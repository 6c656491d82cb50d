package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wricardo/mcp-training/fieldsync/game/engine"
)

var (
	ErrConfigNotFound    = errors.New("configuration not found")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrUnsupportedFormat = errors.New("unsupported configuration format")
)

// MaxBots bounds the bot population; bot ids are drawn from [0,1000)
const MaxBots = 500

const (
	DefaultBotCount            = 15
	DefaultBotMaxSpeed         = 2
	DefaultBroadcastIntervalMs = 30
)

// Config holds the process-wide world parameters
type Config struct {
	Name                string `json:"name" yaml:"name"`
	Description         string `json:"description,omitempty" yaml:"description,omitempty"`
	FieldSize           int32  `json:"field_size" yaml:"field_size"`
	ObstacleCount       int    `json:"obstacle_count" yaml:"obstacle_count"`
	ObstacleMinSize     int32  `json:"obstacle_min_size" yaml:"obstacle_min_size"`
	ObstacleMaxSize     int32  `json:"obstacle_max_size" yaml:"obstacle_max_size"`
	BotCount            int    `json:"bot_count" yaml:"bot_count"`
	BotMaxSpeed         int32  `json:"bot_max_speed" yaml:"bot_max_speed"`
	BroadcastIntervalMs int    `json:"broadcast_interval_ms" yaml:"broadcast_interval_ms"`
	Seed                uint64 `json:"seed,omitempty" yaml:"seed,omitempty"` // 0 picks a random seed
}

// Default returns the reference configuration
func Default() *Config {
	return &Config{
		Name:                "default",
		Description:         "Reference field: 2000x2000, 50 obstacles, 15 bots",
		FieldSize:           engine.DefaultFieldSize,
		ObstacleCount:       engine.DefaultObstacleCount,
		ObstacleMinSize:     engine.DefaultObstacleMinSize,
		ObstacleMaxSize:     engine.DefaultObstacleMaxSize,
		BotCount:            DefaultBotCount,
		BotMaxSpeed:         DefaultBotMaxSpeed,
		BroadcastIntervalMs: DefaultBroadcastIntervalMs,
	}
}

// BroadcastInterval returns the broadcast period as a duration
func (c *Config) BroadcastInterval() time.Duration {
	return time.Duration(c.BroadcastIntervalMs) * time.Millisecond
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	if c.FieldSize <= 0 {
		return fmt.Errorf("%w: field_size must be positive, got %d", ErrInvalidConfig, c.FieldSize)
	}
	if c.ObstacleCount < 0 {
		return fmt.Errorf("%w: obstacle_count must not be negative, got %d", ErrInvalidConfig, c.ObstacleCount)
	}
	if c.ObstacleMinSize <= 0 {
		return fmt.Errorf("%w: obstacle_min_size must be positive, got %d", ErrInvalidConfig, c.ObstacleMinSize)
	}
	if c.ObstacleMaxSize < c.ObstacleMinSize {
		return fmt.Errorf("%w: obstacle_max_size %d is below obstacle_min_size %d", ErrInvalidConfig, c.ObstacleMaxSize, c.ObstacleMinSize)
	}
	if c.BotCount < 0 || c.BotCount > MaxBots {
		return fmt.Errorf("%w: bot_count must be between 0 and %d, got %d", ErrInvalidConfig, MaxBots, c.BotCount)
	}
	if c.BotMaxSpeed <= 0 {
		return fmt.Errorf("%w: bot_max_speed must be positive, got %d", ErrInvalidConfig, c.BotMaxSpeed)
	}
	// a bot bounced off a wall by a step of half the field or more lands
	// outside the opposite side
	if 2*int64(c.BotMaxSpeed) >= int64(c.FieldSize) {
		return fmt.Errorf("%w: bot_max_speed %d must be below half the field size %d", ErrInvalidConfig, c.BotMaxSpeed, c.FieldSize)
	}
	if c.ObstacleMaxSize > c.FieldSize {
		return fmt.Errorf("%w: obstacle_max_size %d exceeds field size %d", ErrInvalidConfig, c.ObstacleMaxSize, c.FieldSize)
	}
	if c.BroadcastIntervalMs <= 0 {
		return fmt.Errorf("%w: broadcast_interval_ms must be positive, got %d", ErrInvalidConfig, c.BroadcastIntervalMs)
	}
	return nil
}

// Load reads a configuration file. Fields missing from the file keep their
// default values. The format is chosen by extension: .json, .yaml or .yml.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if cfg.Name == "" || cfg.Name == Default().Name {
		cfg.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return cfg, nil
}

// Parse decodes and validates configuration data in the format named by ext
func Parse(data []byte, ext string) (*Config, error) {
	cfg := Default()

	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal encodes the configuration in the format named by ext
func Marshal(cfg *Config, ext string) ([]byte, error) {
	switch strings.ToLower(ext) {
	case ".json":
		return json.MarshalIndent(cfg, "", "  ")
	case ".yaml", ".yml":
		return yaml.Marshal(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}
