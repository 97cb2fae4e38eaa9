package prefs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const relPath = "chess-against-engine/preferences.yaml"

const DefaultThinkingTimeMs = 1000

type Values struct {
	EnginePath           string `yaml:"enginePath"`
	EngineThinkingTimeMs int    `yaml:"engineThinkingTimeMs"`
	LoadPgnFolder        string `yaml:"loadPgnFolder,omitempty"`
	SavePgnFolder        string `yaml:"savePgnFolder,omitempty"`
}

func defaults() Values {
	return Values{EngineThinkingTimeMs: DefaultThinkingTimeMs}
}

// Store keeps the preferences in memory. Nothing reaches disk until Save.
type Store struct {
	mu     sync.RWMutex
	path   string
	values Values
}

// Open reads the preferences file at path, or the XDG config location when path is
// empty. A missing file yields defaults.
func Open(path string) (*Store, error) {
	s := &Store{values: defaults()}
	if strings.TrimSpace(path) != "" {
		s.path = path
	} else if found, err := xdg.SearchConfigFile(relPath); err == nil {
		s.path = found
	}
	if s.path == "" {
		return s, nil
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read preferences: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("parse preferences %s: %w", s.path, err)
	}
	if s.values.EngineThinkingTimeMs <= 0 {
		s.values.EngineThinkingTimeMs = DefaultThinkingTimeMs
	}
	return s, nil
}

func (s *Store) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

func (s *Store) Values() Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values
}

// Update applies fn to a copy of the values and keeps the result.
func (s *Store) Update(fn func(v *Values)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.values
	fn(&next)
	if next.EngineThinkingTimeMs <= 0 {
		next.EngineThinkingTimeMs = DefaultThinkingTimeMs
	}
	s.values = next
}

// Save writes the file, creating the XDG config directory on first use.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		p, err := xdg.ConfigFile(relPath)
		if err != nil {
			return fmt.Errorf("resolve preferences path: %w", err)
		}
		s.path = p
	}
	data, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return nil
}
