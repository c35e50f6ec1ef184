package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"serialmon/pkg/serial"
)

const profilesVersion = "1.0"

// Profile is a named set of line settings.
type Profile struct {
	Name        string        `yaml:"name"`
	Config      serial.Config `yaml:"config"`
	Description string        `yaml:"description,omitempty"`
	CreatedAt   time.Time     `yaml:"created_at"`
	LastUsedAt  time.Time     `yaml:"last_used_at"`
}

type profileFile struct {
	Version  string              `yaml:"version"`
	Profiles map[string]*Profile `yaml:"profiles"`
}

// ProfileStore keeps profiles in a single YAML file.
type ProfileStore struct {
	path string
	now  func() time.Time
}

// NewProfileStore stores profiles in dir/profiles.yaml. An empty dir selects
// DefaultDir.
func NewProfileStore(dir string) (*ProfileStore, error) {
	if dir == "" {
		defaultDir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = defaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	return &ProfileStore{
		path: filepath.Join(dir, "profiles.yaml"),
		now:  time.Now,
	}, nil
}

// Path returns the profiles file.
func (s *ProfileStore) Path() string {
	return s.path
}

// Save creates or replaces a profile. Replacing keeps the creation time and,
// when description is empty, the old description.
func (s *ProfileStore) Save(name string, cfg serial.Config, description string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("profile name cannot be empty")
	}

	file, err := s.load()
	if err != nil {
		return err
	}

	now := s.now()
	p := &Profile{
		Name:        name,
		Config:      cfg,
		Description: description,
		CreatedAt:   now,
		LastUsedAt:  now,
	}
	if old, ok := file.Profiles[name]; ok {
		p.CreatedAt = old.CreatedAt
		if description == "" {
			p.Description = old.Description
		}
	}
	file.Profiles[name] = p
	return s.store(file)
}

// Load returns the settings of a profile and marks it used.
func (s *ProfileStore) Load(name string) (serial.Config, error) {
	file, err := s.load()
	if err != nil {
		return serial.Config{}, err
	}
	p, ok := file.Profiles[name]
	if !ok {
		return serial.Config{}, fmt.Errorf("profile '%s' not found", name)
	}
	p.LastUsedAt = s.now()
	if err := s.store(file); err != nil {
		return serial.Config{}, err
	}
	return p.Config, nil
}

// List returns all profiles sorted by name.
func (s *ProfileStore) List() ([]Profile, error) {
	file, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]Profile, 0, len(file.Profiles))
	for _, p := range file.Profiles {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes a profile.
func (s *ProfileStore) Delete(name string) error {
	file, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := file.Profiles[name]; !ok {
		return fmt.Errorf("profile '%s' not found", name)
	}
	delete(file.Profiles, name)
	return s.store(file)
}

// Exists reports whether a profile is stored under name.
func (s *ProfileStore) Exists(name string) bool {
	file, err := s.load()
	if err != nil {
		return false
	}
	_, ok := file.Profiles[name]
	return ok
}

// SetDescription updates the description of a profile.
func (s *ProfileStore) SetDescription(name, description string) error {
	file, err := s.load()
	if err != nil {
		return err
	}
	p, ok := file.Profiles[name]
	if !ok {
		return fmt.Errorf("profile '%s' not found", name)
	}
	p.Description = description
	return s.store(file)
}

func (s *ProfileStore) load() (*profileFile, error) {
	file := &profileFile{Version: profilesVersion, Profiles: make(map[string]*Profile)}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return file, nil
		}
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}
	if err := yaml.Unmarshal(data, file); err != nil {
		return nil, fmt.Errorf("failed to parse profiles: %w", err)
	}
	if file.Profiles == nil {
		file.Profiles = make(map[string]*Profile)
	}
	for name, p := range file.Profiles {
		if p == nil {
			delete(file.Profiles, name)
			continue
		}
		p.Name = name
	}
	return file, nil
}

// store writes to a temporary file first so a crash never leaves a truncated
// profiles file behind.
func (s *ProfileStore) store(file *profileFile) error {
	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to encode profiles: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write profiles: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save profiles: %w", err)
	}
	return nil
}
