package presets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rebeliceyang/lazygrid/internal/apperrors"
	"gopkg.in/yaml.v3"
)

// Preset is a named, reusable view state. Filtering and Sorting hold the same
// serialized forms a table persists.
type Preset struct {
	ID          string    `yaml:"id" json:"id"`
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Filtering   string    `yaml:"filtering" json:"filtering"`
	Sorting     string    `yaml:"sorting" json:"sorting"`
	CreatedAt   time.Time `yaml:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `yaml:"updated_at" json:"updatedAt"`
	LastUsed    time.Time `yaml:"last_used,omitempty" json:"lastUsed"`
	UsageCount  int       `yaml:"usage_count" json:"usageCount"`
}

// Manager manages view presets
type Manager struct {
	mu      sync.Mutex
	path    string
	presets []Preset
}

// NewManager creates a new presets manager
func NewManager(configDir string) (*Manager, error) {
	path := filepath.Join(configDir, "presets.yaml")

	m := &Manager{
		path:    path,
		presets: []Preset{},
	}

	// Load existing presets if file exists
	if _, err := os.Stat(path); err == nil {
		if err := m.load(); err != nil {
			return nil, fmt.Errorf("failed to load presets: %w", err)
		}
	}

	return m, nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("failed to read presets file: %w", err)
	}

	if err := yaml.Unmarshal(data, &m.presets); err != nil {
		return fmt.Errorf("failed to parse presets: %w", err)
	}
	if m.presets == nil {
		m.presets = []Preset{}
	}

	return nil
}

func (m *Manager) save() error {
	data, err := yaml.Marshal(m.presets)
	if err != nil {
		return fmt.Errorf("failed to marshal presets: %w", err)
	}

	// Ensure directory exists
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(m.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write presets file: %w", err)
	}

	return nil
}

// Add saves a new preset. Names are unique ignoring case.
func (m *Manager) Add(name, description, filtering, sorting string) (*Preset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.Validationf("preset name cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.presets {
		if strings.EqualFold(p.Name, name) {
			return nil, apperrors.Validationf("a preset named '%s' already exists (names are case-insensitive)", name)
		}
	}

	now := time.Now()
	preset := Preset{
		ID:          uuid.New().String(),
		Name:        name,
		Description: strings.TrimSpace(description),
		Filtering:   filtering,
		Sorting:     sorting,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	m.presets = append(m.presets, preset)
	if err := m.save(); err != nil {
		m.presets = m.presets[:len(m.presets)-1]
		return nil, fmt.Errorf("failed to save preset: %w", err)
	}

	return &preset, nil
}

// Delete deletes a preset by ID or name
func (m *Manager) Delete(ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.find(ref)
	if i < 0 {
		return notFound(ref)
	}
	m.presets = append(m.presets[:i], m.presets[i+1:]...)
	if err := m.save(); err != nil {
		return fmt.Errorf("failed to save presets after deletion: %w", err)
	}
	return nil
}

// Get returns a preset by ID or, failing that, by name ignoring case
func (m *Manager) Get(ref string) (*Preset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.find(ref)
	if i < 0 {
		return nil, notFound(ref)
	}
	p := m.presets[i]
	return &p, nil
}

// List returns all presets by name
func (m *Manager) List() []Preset {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Preset, len(m.presets))
	copy(out, m.presets)
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// MarkUsed updates usage statistics for a preset
func (m *Manager) MarkUsed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.find(id)
	if i < 0 {
		return notFound(id)
	}
	m.presets[i].UsageCount++
	m.presets[i].LastUsed = time.Now()
	if err := m.save(); err != nil {
		return fmt.Errorf("failed to save usage statistics: %w", err)
	}
	return nil
}

func (m *Manager) find(ref string) int {
	for i, p := range m.presets {
		if p.ID == ref {
			return i
		}
	}
	for i, p := range m.presets {
		if strings.EqualFold(p.Name, ref) {
			return i
		}
	}
	return -1
}

func notFound(ref string) error {
	return apperrors.NotFound(fmt.Sprintf("preset '%s' was not found", ref))
}
