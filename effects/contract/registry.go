package contract

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is matched by every ConfigError.
var ErrInvalidConfig = errors.New("invalid effect config")

// ConfigError reports a rejected effect configuration.
type ConfigError struct {
	Name   string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Name == ReservedName {
		return fmt.Sprintf("Cannot create effect type %q. Name is reserved.", e.Name)
	}
	return fmt.Sprintf("effect type %q: %s", e.Name, e.Reason)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// CheckName rejects names that cannot be bound as effect types.
func CheckName(name string) error {
	switch name {
	case ReservedName:
		return &ConfigError{Name: name, Reason: "reserved"}
	case "", Wildcard, EffectStart, EffectEnd:
		return &ConfigError{Name: name, Reason: "name is not allowed"}
	}
	return nil
}

// Validate checks every entry. The first failure in name order is returned.
func (r Registry) Validate() error {
	for _, name := range r.Names() {
		if err := CheckName(name); err != nil {
			return err
		}
		cfg := r[name]
		if cfg.Duration < 0 || math.IsNaN(cfg.Duration) || math.IsInf(cfg.Duration, 0) {
			return &ConfigError{Name: name, Reason: fmt.Sprintf("invalid duration %v", cfg.Duration)}
		}
	}
	return nil
}
