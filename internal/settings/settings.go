// Package settings holds user preferences and their YAML persistence. The
// Store replaces the original design's shared singleton: coordinators get a
// *Store at construction and subscribe for change notifications instead of
// reading globals.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings are the persisted user preferences consumed by the engine.
type Settings struct {
	// RefreshIntervalSeconds drives the auto-refresh timers; 0 means
	// manual refresh only.
	RefreshIntervalSeconds  int      `yaml:"refresh_interval_seconds"`
	ConfirmBeforeKill       bool     `yaml:"confirm_before_kill"`
	ConfirmBeforeDockerStop bool     `yaml:"confirm_before_docker_stop"`
	ShowDockerContainers    bool     `yaml:"show_docker_containers"`
	ShowSystemProcesses     bool     `yaml:"show_system_processes"`
	// HiddenPorts holds "processName:port" keys, exactly as they were at
	// hide time.
	HiddenPorts []string `yaml:"hidden_ports"`
}

// Default returns the out-of-the-box preferences.
func Default() Settings {
	return Settings{
		RefreshIntervalSeconds:  5,
		ConfirmBeforeKill:       true,
		ConfirmBeforeDockerStop: true,
		ShowDockerContainers:    true,
		ShowSystemProcesses:     false,
	}
}

// RefreshInterval converts the configured seconds to a duration; zero or
// negative disables auto-refresh.
func (s Settings) RefreshInterval() time.Duration {
	if s.RefreshIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(s.RefreshIntervalSeconds) * time.Second
}

// IsHidden reports whether the hidden-port key is present.
func (s Settings) IsHidden(key string) bool {
	for _, k := range s.HiddenPorts {
		if k == key {
			return true
		}
	}
	return false
}

// HidePort adds a hidden-port key if it is not already present.
func (s *Settings) HidePort(key string) {
	if s.IsHidden(key) {
		return
	}
	s.HiddenPorts = append(s.HiddenPorts, key)
}

// UnhidePort removes a hidden-port key.
func (s *Settings) UnhidePort(key string) {
	for i, k := range s.HiddenPorts {
		if k == key {
			s.HiddenPorts = append(s.HiddenPorts[:i], s.HiddenPorts[i+1:]...)
			return
		}
	}
}

func (s Settings) clone() Settings {
	c := s
	c.HiddenPorts = append([]string(nil), s.HiddenPorts...)
	return c
}

// Store owns the current Settings value, persists every change, and fans
// change notifications out to subscribers.
type Store struct {
	mu   sync.Mutex
	path string
	cur  Settings
	subs []func(Settings)
}

// DefaultPath is the config file location under the user config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "openports", "config.yaml")
}

// Open loads the store from path. A missing file yields defaults; keys the
// file omits keep their default values.
func Open(path string) (*Store, error) {
	cur := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// First run.
	case err != nil:
		return nil, fmt.Errorf("read settings: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cur); err != nil {
			return nil, fmt.Errorf("parse settings %s: %w", path, err)
		}
	}

	return &Store{path: path, cur: cur}, nil
}

// Get returns a copy of the current settings; callers can hold it without
// locking or seeing later mutations.
func (st *Store) Get() Settings {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.cur.clone()
}

// Subscribe registers fn to run after every Update. Callbacks run outside
// the store lock, so they may call Get or Update themselves.
func (st *Store) Subscribe(fn func(Settings)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.subs = append(st.subs, fn)
}

// Update applies mutate to the current settings, persists the result, and
// notifies subscribers. The in-memory value changes even when the save
// fails: a full disk should not make hide/unhide actions bounce back.
func (st *Store) Update(mutate func(*Settings)) error {
	st.mu.Lock()
	next := st.cur.clone()
	mutate(&next)
	st.cur = next
	saveErr := st.save()
	subs := append([]func(Settings){}, st.subs...)
	snapshot := next.clone()
	st.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
	return saveErr
}

// save writes the current settings; callers hold the lock.
func (st *Store) save() error {
	data, err := yaml.Marshal(st.cur)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(st.path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	if err := os.WriteFile(st.path, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
