package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DefaultPreset is loaded as the default configuration when present
const DefaultPreset = "classic"

var presetExtensions = []string{".yaml", ".yml", ".json"}

// Info summarizes a preset file for listings
type Info struct {
	ID            string `json:"id"`
	Filename      string `json:"filename"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	FieldSize     int32  `json:"field_size"`
	ObstacleCount int    `json:"obstacle_count"`
	BotCount      int    `json:"bot_count"`
}

// Manager loads and caches named presets from a directory
type Manager struct {
	configDir     string
	defaultConfig *Config
	configs       map[string]*Config
	mu            sync.RWMutex
}

// NewManager creates a preset manager for configDir
func NewManager(configDir string) (*Manager, error) {
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("config directory does not exist: %s", configDir)
	}

	m := &Manager{
		configDir: configDir,
		configs:   make(map[string]*Config),
	}

	if err := m.loadDefaultConfig(); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	return m, nil
}

// LoadConfig loads a preset by name. The name may carry its file extension.
// The returned value is a copy and may be modified by the caller.
func (m *Manager) LoadConfig(name string) (*Config, error) {
	id := presetID(name)

	m.mu.RLock()
	if cfg, exists := m.configs[id]; exists {
		m.mu.RUnlock()
		return cfg.clone(), nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if cfg, exists := m.configs[id]; exists {
		return cfg.clone(), nil
	}

	path, err := m.resolve(name)
	if err != nil {
		return nil, err
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	m.configs[id] = cfg
	return cfg.clone(), nil
}

// ListConfigs returns information about every valid preset, sorted by id
func (m *Manager) ListConfigs() ([]*Info, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var infos []*Info
	for _, entry := range entries {
		if entry.IsDir() || !isPresetFile(entry.Name()) {
			continue
		}

		cfg, err := m.LoadConfig(entry.Name())
		if err != nil {
			// Skip invalid presets
			continue
		}

		infos = append(infos, &Info{
			ID:            presetID(entry.Name()),
			Filename:      entry.Name(),
			Name:          cfg.Name,
			Description:   cfg.Description,
			FieldSize:     cfg.FieldSize,
			ObstacleCount: cfg.ObstacleCount,
			BotCount:      cfg.BotCount,
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

// GetDefault returns a copy of the default configuration
func (m *Manager) GetDefault() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultConfig.clone()
}

// SetDefault sets the default configuration by preset name
func (m *Manager) SetDefault(name string) error {
	cfg, err := m.LoadConfig(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultConfig = cfg
	return nil
}

// RefreshCache drops cached presets and reloads the default from disk
func (m *Manager) RefreshCache() error {
	m.mu.Lock()
	m.configs = make(map[string]*Config)
	m.mu.Unlock()

	return m.loadDefaultConfig()
}

// SaveConfig validates and writes a preset. Names without an extension are
// written as YAML.
func (m *Manager) SaveConfig(name string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	filename := name
	ext := filepath.Ext(name)
	if !isPresetFile(name) {
		ext = ".yaml"
		filename = name + ext
	}

	data, err := Marshal(cfg, ext)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(m.configDir, filename), data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	m.mu.Lock()
	m.configs[presetID(name)] = cfg.clone()
	m.mu.Unlock()

	return nil
}

// loadDefaultConfig loads the classic preset, falling back to Default()
func (m *Manager) loadDefaultConfig() error {
	cfg, err := m.LoadConfig(DefaultPreset)
	if err != nil {
		cfg = Default()
	}

	m.mu.Lock()
	m.defaultConfig = cfg
	m.mu.Unlock()
	return nil
}

// resolve finds the preset file for name
func (m *Manager) resolve(name string) (string, error) {
	if isPresetFile(name) {
		path := filepath.Join(m.configDir, name)
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, name)
		}
		return path, nil
	}

	for _, ext := range presetExtensions {
		path := filepath.Join(m.configDir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrConfigNotFound, name)
}

func (c *Config) clone() *Config {
	out := *c
	return &out
}

func isPresetFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range presetExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func presetID(name string) string {
	if isPresetFile(name) {
		return strings.TrimSuffix(name, filepath.Ext(name))
	}
	return name
}
