package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xoverview/xoverview/internal/logger"
)

// AnimationConfig tunes the entrance and exit animations.
type AnimationConfig struct {
	Enabled    bool `json:"enabled" yaml:"enabled"`
	EntranceMs int  `json:"entrance_ms" yaml:"entrance_ms"`
	ExitMs     int  `json:"exit_ms" yaml:"exit_ms"`
	FPS        int  `json:"fps" yaml:"fps"`
}

// EntranceDuration returns the entrance animation length.
func (a AnimationConfig) EntranceDuration() time.Duration {
	return time.Duration(a.EntranceMs) * time.Millisecond
}

// ExitDuration returns the exit animation length.
func (a AnimationConfig) ExitDuration() time.Duration {
	return time.Duration(a.ExitMs) * time.Millisecond
}

// LayoutConfig tunes the thumbnail grid.
type LayoutConfig struct {
	Padding  uint16  `json:"padding" yaml:"padding"`
	Margin   uint16  `json:"margin" yaml:"margin"`
	MaxScale float64 `json:"max_scale" yaml:"max_scale"`
}

// APIConfig controls the optional debug HTTP server.
type APIConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Port    int  `json:"port" yaml:"port"`
}

// Config is the application configuration.
type Config struct {
	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogPretty bool   `json:"log_pretty" yaml:"log_pretty"`

	Animation AnimationConfig `json:"animation" yaml:"animation"`
	Layout    LayoutConfig    `json:"layout" yaml:"layout"`

	// ExcludeClasses lists WM_CLASS values kept out of the overview grid.
	ExcludeClasses []string `json:"exclude_classes" yaml:"exclude_classes"`

	// PlaceholderFill is the solid color for surfaces whose content could
	// not be captured.
	PlaceholderFill uint32 `json:"placeholder_fill" yaml:"placeholder_fill"`

	API APIConfig `json:"api" yaml:"api"`
}

// Defaults returns the stock configuration.
func Defaults() *Config {
	return &Config{
		LogLevel:  "info",
		LogPretty: true,
		Animation: AnimationConfig{
			Enabled:    true,
			EntranceMs: 350,
			ExitMs:     350,
			FPS:        60,
		},
		Layout: LayoutConfig{
			Padding:  20,
			Margin:   50,
			MaxScale: 0.9,
		},
		ExcludeClasses:  []string{},
		PlaceholderFill: 0x222222,
		API: APIConfig{
			Enabled: false,
			Port:    8460,
		},
	}
}

// Manager loads, holds and persists the configuration.
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// NewManager reads the config file, creating it with defaults on first
// run. An empty configFile selects ~/.config/xoverview/config.yaml.
func NewManager(configFile string) (*Manager, error) {
	actualPath := configFile
	if actualPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir := filepath.Join(homeDir, ".config", "xoverview")
		if err := os.MkdirAll(configDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		actualPath = filepath.Join(configDir, "config.yaml")
	}

	m := &Manager{configPath: actualPath}
	if err := m.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.WithComponent("config").Info().
			Str("path", m.configPath).
			Msg("Config file not found, creating new config")
		m.config = Defaults()
		if err := m.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Config loaded")
	return m, nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.ExcludeClasses == nil {
		cfg.ExcludeClasses = []string{}
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.config
}

// Update replaces the configuration in memory.
func (m *Manager) Update(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = &cfg
}

// Save writes the configuration to disk.
func (m *Manager) Save() error {
	m.mu.RLock()
	data, err := yaml.Marshal(m.config)
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(m.configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Path returns the config file location.
func (m *Manager) Path() string {
	return m.configPath
}
