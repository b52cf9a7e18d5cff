package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Settings is the persisted application configuration.
type Settings struct {
	Server    ServerSettings    `json:"server"`
	Cache     CacheSettings     `json:"cache"`
	Database  DatabaseSettings  `json:"database"`
	Providers ProviderSettings  `json:"providers"`
	Scheduler SchedulerSettings `json:"scheduler"`
}

type ServerSettings struct {
	Port int `json:"port"`
}

type CacheSettings struct {
	Dir            string `json:"dir"`
	MaxMemoryItems int    `json:"max_memory_items"`
	TTLHours       int    `json:"ttl_hours"`
	AITTLHours     int    `json:"ai_ttl_hours"`
}

type DatabaseSettings struct {
	Path string `json:"path"`
}

// ProviderEntry holds per-provider credentials and toggles. Rate limits are
// expressed as requests per window so each provider's published quota maps
// directly onto a bucket.
type ProviderEntry struct {
	Enabled       bool   `json:"enabled"`
	APIKey        string `json:"api_key,omitempty"`
	RequestsPer   int    `json:"requests_per"`
	WindowSeconds int    `json:"window_seconds"`
}

type ProviderSettings struct {
	TMDB   ProviderEntry `json:"tmdb"`
	TVDB   ProviderEntry `json:"tvdb"`
	Gemini ProviderEntry `json:"gemini"`
	TVMaze ProviderEntry `json:"tvmaze"`
}

type SchedulerSettings struct {
	RefreshIntervalHours int `json:"refresh_interval_hours"`
	StaleAfterHours      int `json:"stale_after_hours"`
	Workers              int `json:"workers"`
}

// DefaultSettings returns the configuration used when no settings file
// exists yet. Provider windows follow each API's published limits.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{Port: 8080},
		Cache: CacheSettings{
			Dir:            "./cache",
			MaxMemoryItems: 512,
			TTLHours:       7 * 24,
			AITTLHours:     30 * 24,
		},
		Database: DatabaseSettings{Path: "./data/series.db"},
		Providers: ProviderSettings{
			TMDB:   ProviderEntry{Enabled: true, RequestsPer: 40, WindowSeconds: 10},
			TVDB:   ProviderEntry{Enabled: true, RequestsPer: 100, WindowSeconds: 60},
			Gemini: ProviderEntry{Enabled: true, RequestsPer: 10, WindowSeconds: 60},
			TVMaze: ProviderEntry{Enabled: true, RequestsPer: 20, WindowSeconds: 10},
		},
		Scheduler: SchedulerSettings{
			RefreshIntervalHours: 12,
			StaleAfterHours:      7 * 24,
			Workers:              4,
		},
	}
}

// Manager loads and saves settings at a fixed path. Concurrent Load/Save
// calls are serialized.
type Manager struct {
	mu   sync.Mutex
	path string
}

func NewManager(path string) *Manager {
	return &Manager{path: path}
}

func (m *Manager) Path() string { return m.path }

// Load reads settings from disk, falling back to defaults when the file does
// not exist. API keys may always be supplied via environment instead of the
// file; env values win.
func (m *Manager) Load() (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := DefaultSettings()
	data, err := os.ReadFile(m.path)
	if err == nil {
		if err := json.Unmarshal(data, &s); err != nil {
			return s, fmt.Errorf("parse settings %s: %w", m.path, err)
		}
	} else if !os.IsNotExist(err) {
		return s, fmt.Errorf("read settings %s: %w", m.path, err)
	}

	applyEnvOverrides(&s)
	return s, nil
}

// Save writes settings atomically via a temp file rename.
func (m *Manager) Save(s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

func applyEnvOverrides(s *Settings) {
	if v := os.Getenv("TMDB_API_KEY"); v != "" {
		s.Providers.TMDB.APIKey = v
	}
	if v := os.Getenv("TVDB_API_KEY"); v != "" {
		s.Providers.TVDB.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		s.Providers.Gemini.APIKey = v
	}
}
