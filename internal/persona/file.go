package persona

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a persona from a YAML file and validates it.
func Load(path string) (Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Persona{}, fmt.Errorf("reading persona file: %w", err)
	}
	var p Persona
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Persona{}, fmt.Errorf("parsing persona file %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Persona{}, err
	}
	if p.ExtraHeaders == nil {
		p.ExtraHeaders = map[string]string{}
	}
	return p, nil
}

// Save writes p to path as YAML.
func Save(p Persona, path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding persona: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing persona file: %w", err)
	}
	return nil
}
