package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Ollama    OllamaConfig    `json:"ollama"`
	Assistant AssistantConfig `json:"assistant"`
}

type ServerConfig struct {
	Port               int `json:"port"`
	ShutdownTimeoutSec int `json:"shutdown_timeout_sec"`
}

type OllamaConfig struct {
	BaseURL            string  `json:"base_url"`
	Model              string  `json:"model"`
	Temperature        float64 `json:"temperature"`
	TopP               float64 `json:"top_p"`
	MaxTokens          int     `json:"max_tokens"`
	GenerateTimeoutSec int     `json:"generate_timeout_sec"`
	HealthTimeoutSec   int     `json:"health_timeout_sec"`
}

type AssistantConfig struct {
	RecentTaskLimit int `json:"recent_task_limit"`
	QueryLimit      int `json:"query_limit"`
	LocatorLimit    int `json:"locator_limit"`
}

type Manager struct {
	path string
	mu   sync.RWMutex
	cfg  Config
}

func DefaultPath() string {
	return filepath.Join("config", "config.json")
}

func NewManager(path string) (*Manager, error) {
	cfg := defaultConfig()
	mgr := &Manager{
		path: path,
		cfg:  cfg,
	}
	if err := mgr.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	if err := mgr.save(); err != nil {
		return nil, err
	}
	return mgr, nil
}

func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) Update(apply func(*Config)) (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	apply(&m.cfg)
	applyDefaults(&m.cfg)
	if err := m.saveLocked(); err != nil {
		return Config{}, err
	}
	return m.cfg, nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return err
	}
	var fileCfg Config
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return err
	}
	m.cfg = fileCfg
	applyDefaults(&m.cfg)
	return nil
}

func (m *Manager) save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m.cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0644)
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:               8000,
			ShutdownTimeoutSec: 5,
		},
		Ollama: OllamaConfig{
			BaseURL:            "http://localhost:11434",
			Model:              "llama2",
			Temperature:        0.3,
			TopP:               0.9,
			MaxTokens:          800,
			GenerateTimeoutSec: 30,
			HealthTimeoutSec:   5,
		},
		Assistant: AssistantConfig{
			RecentTaskLimit: 10,
			QueryLimit:      10,
			LocatorLimit:    5,
		},
	}
}

func applyDefaults(cfg *Config) {
	def := defaultConfig()

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.ShutdownTimeoutSec <= 0 {
		cfg.Server.ShutdownTimeoutSec = def.Server.ShutdownTimeoutSec
	}

	if strings.TrimSpace(cfg.Ollama.BaseURL) == "" {
		cfg.Ollama.BaseURL = def.Ollama.BaseURL
	}
	cfg.Ollama.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Ollama.BaseURL), "/")
	if strings.TrimSpace(cfg.Ollama.Model) == "" {
		cfg.Ollama.Model = def.Ollama.Model
	}
	if cfg.Ollama.Temperature <= 0 || cfg.Ollama.Temperature > 2 {
		cfg.Ollama.Temperature = def.Ollama.Temperature
	}
	if cfg.Ollama.TopP <= 0 || cfg.Ollama.TopP > 1 {
		cfg.Ollama.TopP = def.Ollama.TopP
	}
	if cfg.Ollama.MaxTokens <= 0 {
		cfg.Ollama.MaxTokens = def.Ollama.MaxTokens
	}
	if cfg.Ollama.GenerateTimeoutSec <= 0 {
		cfg.Ollama.GenerateTimeoutSec = def.Ollama.GenerateTimeoutSec
	}
	if cfg.Ollama.HealthTimeoutSec <= 0 {
		cfg.Ollama.HealthTimeoutSec = def.Ollama.HealthTimeoutSec
	}

	if cfg.Assistant.RecentTaskLimit <= 0 {
		cfg.Assistant.RecentTaskLimit = def.Assistant.RecentTaskLimit
	}
	if cfg.Assistant.QueryLimit <= 0 {
		cfg.Assistant.QueryLimit = def.Assistant.QueryLimit
	}
	if cfg.Assistant.LocatorLimit <= 0 {
		cfg.Assistant.LocatorLimit = def.Assistant.LocatorLimit
	}
}
