// Package personas loads analyst persona descriptions from per-persona YAML
// configs (§4.4: "the persona description (loaded from a per-persona YAML
// config)"), matching the teacher's config-loading idiom
// (internal/cli/config_manager.go's gopkg.in/yaml.v3 usage) applied to a new
// concern.
package personas

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed data
var embedded embed.FS

// Persona is a fixed analyst role identity with a description and default
// tool preferences, per the GLOSSARY entry.
type Persona struct {
	Name         string   `yaml:"name"`
	DisplayName  string   `yaml:"display_name"`
	Description  string   `yaml:"description"`
	DefaultTools []string `yaml:"default_tools"`
}

// Loader reads persona YAML files from a configured directory, falling back
// to the embedded defaults when the directory doesn't exist (e.g. the
// directory was never materialized on disk) or lacks the requested file.
type Loader struct {
	dir string
}

func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Load returns the persona for analystType, e.g. "fundamental".
func (l *Loader) Load(analystType string) (Persona, error) {
	var raw []byte
	var err error

	if l.dir != "" {
		raw, err = os.ReadFile(filepath.Join(l.dir, analystType+".yaml"))
	}
	if l.dir == "" || err != nil {
		raw, err = embedded.ReadFile(filepath.Join("data", analystType+".yaml"))
	}
	if err != nil {
		return Persona{}, fmt.Errorf("load persona %q: %w", analystType, err)
	}

	var p Persona
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Persona{}, fmt.Errorf("parse persona %q: %w", analystType, err)
	}
	return p, nil
}
