package state

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/Dicklesworthstone/thumbgrid/internal/table"
)

// LayoutKey is the key the workspace layout is stored under.
const LayoutKey = "workspace_config"

// LayoutVersion is written into every saved layout.
const LayoutVersion = 1

// ViewLayout is one saved view.
type ViewLayout struct {
	ID     string       `yaml:"id" json:"id"`
	Title  string       `yaml:"title,omitempty" json:"title,omitempty"`
	Plugin string       `yaml:"plugin" json:"plugin"`
	Table  string       `yaml:"table" json:"table"`
	Config table.Config `yaml:"config,omitempty" json:"config,omitempty"`
}

// Layout is the saved workspace.
type Layout struct {
	Version int          `yaml:"version" json:"version"`
	Active  string       `yaml:"active,omitempty" json:"active,omitempty"`
	Split   bool         `yaml:"split,omitempty" json:"split,omitempty"`
	Views   []ViewLayout `yaml:"views" json:"views"`
}

// Validate rejects layouts the workspace cannot restore.
func (l Layout) Validate() error {
	if l.Version != LayoutVersion {
		return fmt.Errorf("unsupported layout version %d", l.Version)
	}
	seen := make(map[string]bool, len(l.Views))
	for _, v := range l.Views {
		if v.ID == "" {
			return fmt.Errorf("view without id")
		}
		if seen[v.ID] {
			return fmt.Errorf("duplicate view id %q", v.ID)
		}
		seen[v.ID] = true
	}
	return nil
}

// SaveLayout encodes l as YAML and stores it.
func (s *Store) SaveLayout(l Layout) error {
	l.Version = LayoutVersion
	data, err := yaml.Marshal(l)
	if err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
	return s.Put(LayoutKey, data)
}

// LoadLayout returns the saved layout. found is false when none was saved.
func (s *Store) LoadLayout() (l Layout, found bool, err error) {
	data, _, err := s.Get(LayoutKey)
	if errors.Is(err, ErrNotFound) {
		return Layout{}, false, nil
	}
	if err != nil {
		return Layout{}, false, err
	}
	if err := yaml.Unmarshal(data, &l); err != nil {
		return Layout{}, false, fmt.Errorf("decode layout: %w", err)
	}
	if err := l.Validate(); err != nil {
		return Layout{}, false, err
	}
	return l, true, nil
}

// ResetLayout deletes the saved layout.
func (s *Store) ResetLayout() (bool, error) {
	return s.Delete(LayoutKey)
}

// MarshalLayout renders l as YAML for display.
func MarshalLayout(l Layout) ([]byte, error) {
	return yaml.Marshal(l)
}
