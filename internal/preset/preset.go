package preset

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"batchforge/internal/domain"
)

// Preset is one named generation configuration: model settings, generation
// parameters and the base prompt template used when a batch request carries
// no literal prompt.
type Preset struct {
	Name           string  `yaml:"name"`
	Model          string  `yaml:"model"`
	Sampler        string  `yaml:"sampler"`
	Steps          int     `yaml:"steps"`
	CFGScale       float64 `yaml:"cfg_scale"`
	Width          int     `yaml:"width"`
	Height         int     `yaml:"height"`
	BasePrompt     string  `yaml:"base_prompt"`
	NegativePrompt string  `yaml:"negative_prompt"`
	Priority       string  `yaml:"priority"`
	MaxAttempts    int     `yaml:"max_attempts"`
}

// JobPriority maps the preset's priority string onto the queue ordinal.
func (p Preset) JobPriority() domain.Priority {
	return domain.ParsePriority(p.Priority)
}

type file struct {
	Presets []Preset `yaml:"presets"`
}

// Library holds the loaded presets keyed by name.
type Library struct {
	presets map[string]Preset
}

// Load reads a preset library from one YAML file.
func Load(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("preset: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a preset library from YAML bytes.
func Parse(data []byte) (*Library, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("preset: decode: %w", err)
	}

	lib := &Library{presets: make(map[string]Preset, len(f.Presets))}
	for _, p := range f.Presets {
		if p.Name == "" {
			return nil, fmt.Errorf("preset: entry without a name")
		}
		if _, dup := lib.presets[p.Name]; dup {
			return nil, fmt.Errorf("preset: duplicate name %q", p.Name)
		}
		applyDefaults(&p)
		lib.presets[p.Name] = p
	}
	return lib, nil
}

func applyDefaults(p *Preset) {
	if p.Steps <= 0 {
		p.Steps = 20
	}
	if p.CFGScale <= 0 {
		p.CFGScale = 7
	}
	if p.Width <= 0 {
		p.Width = 512
	}
	if p.Height <= 0 {
		p.Height = 512
	}
	if p.Sampler == "" {
		p.Sampler = "Euler a"
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = domain.DefaultMaxAttempts
	}
}

// Get resolves a preset by name.
func (l *Library) Get(name string) (Preset, error) {
	if l == nil {
		return Preset{}, fmt.Errorf("preset %q: %w", name, domain.ErrNotFound)
	}
	p, ok := l.presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("preset %q: %w", name, domain.ErrNotFound)
	}
	return p, nil
}

// Names returns all preset names, sorted.
func (l *Library) Names() []string {
	if l == nil {
		return nil
	}
	names := make([]string, 0, len(l.presets))
	for name := range l.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Empty constructs a library with no presets.
func Empty() *Library {
	return &Library{presets: map[string]Preset{}}
}
