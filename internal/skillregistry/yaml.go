package skillregistry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlFile is the on-disk shape a YAML-backed registry is loaded from.
type yamlFile struct {
	Skills []yamlSkill `yaml:"skills"`
}

type yamlSkill struct {
	Name     string   `yaml:"name"`
	Required []string `yaml:"required"`
}

// LoadYAMLRegistry reads a skills file and returns a read-only
// MemoryRegistry built from it. The file format mirrors the teacher's
// YAML-config idiom (internal/config) rather than introducing a new one.
func LoadYAMLRegistry(path string) (*MemoryRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skill registry file %s: %w", path, err)
	}

	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse skill registry file %s: %w", path, err)
	}

	skills := make([]Skill, len(f.Skills))
	for i, s := range f.Skills {
		skills[i] = Skill{Name: s.Name, Required: s.Required}
	}
	return NewMemoryRegistry(skills), nil
}
