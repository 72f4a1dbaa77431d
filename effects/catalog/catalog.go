// Package catalog loads effect configurations from YAML files.
package catalog

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"boardfx/effects/contract"
)

// EntryDocument is one effect as authored on disk.
type EntryDocument struct {
	Name        string  `yaml:"name" json:"name" jsonschema:"title=Effect type,description=Name move code emits and listeners subscribe to.,minLength=1"`
	Duration    float64 `yaml:"duration,omitempty" json:"duration,omitempty" jsonschema:"title=Duration,description=Default playback duration in seconds.,minimum=0"`
	Payload     bool    `yaml:"payload,omitempty" json:"payload,omitempty" jsonschema:"title=Carries payload,description=Forward the move argument as the effect payload."`
	Description string  `yaml:"description,omitempty" json:"description,omitempty" jsonschema:"description=Free text for designers."`
}

// FileDocument is the root of a catalog file.
type FileDocument struct {
	Effects []EntryDocument `yaml:"effects" json:"effects" jsonschema:"title=Effects"`
}

// Parse decodes a YAML catalog into a validated registry.
func Parse(data []byte) (contract.Registry, error) {
	var doc FileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog yaml: %w", err)
	}
	return doc.Registry()
}

// Registry converts the document, rejecting duplicates and names the
// contract does not allow.
func (d FileDocument) Registry() (contract.Registry, error) {
	registry := make(contract.Registry, len(d.Effects))
	for i, entry := range d.Effects {
		if _, exists := registry[entry.Name]; exists {
			return nil, fmt.Errorf("catalog entry %d: duplicate effect type %q", i, entry.Name)
		}
		cfg := contract.EffectConfig{Duration: entry.Duration}
		if entry.Payload {
			cfg.Create = passthrough
		}
		registry[entry.Name] = cfg
	}
	if err := registry.Validate(); err != nil {
		return nil, err
	}
	return registry, nil
}

func passthrough(arg any) any {
	return arg
}

// Load reads the catalog at path.
func Load(path string) (contract.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	registry, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return registry, nil
}

// LoadOrDefault behaves like Load but returns fallback when path is empty or
// the file does not exist.
func LoadOrDefault(path string, fallback contract.Registry) (contract.Registry, error) {
	if path == "" {
		return fallback, nil
	}
	registry, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return fallback, nil
	}
	return registry, err
}
