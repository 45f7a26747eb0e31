package profile

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/calebreed/parley/internal/chat"
)

// Profile is a reusable conversation setup: model, opening system prompt,
// and the function specifications the model may call.
type Profile struct {
	Name         string   `yaml:"name"`
	Model        string   `yaml:"model"`
	SystemPrompt string   `yaml:"system_prompt"`
	Functions    []string `yaml:"functions"`
	MaxRounds    int      `yaml:"max_rounds"`

	dir string // for resolving relative function spec paths
}

// Load reads a profile from a YAML file.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile %s: %w", path, err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing profile %s: %w", path, err)
	}
	p.dir = filepath.Dir(path)

	return &p, nil
}

// LoadNamed reads <dir>/<name>.yaml.
func LoadNamed(dir, name string) (*Profile, error) {
	return Load(filepath.Join(dir, name+".yaml"))
}

// LoadFunctions parses every function spec document the profile references.
// Relative paths are resolved against the profile's own directory.
func (p *Profile) LoadFunctions() ([]chat.Function, error) {
	fns := make([]chat.Function, 0, len(p.Functions))
	for _, specPath := range p.Functions {
		if !filepath.IsAbs(specPath) {
			specPath = filepath.Join(p.dir, specPath)
		}
		data, err := os.ReadFile(specPath)
		if err != nil {
			return nil, fmt.Errorf("reading function spec %s: %w", specPath, err)
		}
		fn, err := chat.ParseFunction(data)
		if err != nil {
			return nil, fmt.Errorf("function spec %s: %w", specPath, err)
		}
		fns = append(fns, fn)
	}
	return fns, nil
}
