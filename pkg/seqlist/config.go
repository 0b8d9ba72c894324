package seqlist

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultOrderField is the column maintained when none is configured.
	DefaultOrderField = "position"
	// DefaultStart is the order value of the first record in a scope.
	DefaultStart = 1
)

// ScopeFields is the list of columns partitioning records into independently
// sequenced groups. In YAML it accepts either a single name or a list.
type ScopeFields []string

func (f *ScopeFields) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*f = ScopeFields{s}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*f = list
		return nil
	}
	return fmt.Errorf("seqlist: scope_fields must be a string or a list of strings")
}

// Config controls which columns the engine maintains. It is normalized and
// validated once at engine construction and immutable afterwards.
type Config struct {
	OrderField  string      `yaml:"order_field"`
	ScopeFields ScopeFields `yaml:"scope_fields"`
	// Start is the order of the first record in every scope. Zero means
	// DefaultStart.
	Start int `yaml:"start"`
}

// Normalize fills in defaults and returns the completed config.
func (c Config) Normalize() Config {
	if c.OrderField == "" {
		c.OrderField = DefaultOrderField
	}
	if c.Start == 0 {
		c.Start = DefaultStart
	}
	return c
}

func (c Config) Validate() error {
	if c.OrderField == "" {
		return fmt.Errorf("seqlist: order field is required")
	}
	seen := make(map[string]bool, len(c.ScopeFields))
	for _, f := range c.ScopeFields {
		if f == "" {
			return fmt.Errorf("seqlist: empty scope field name")
		}
		if f == c.OrderField {
			return fmt.Errorf("seqlist: scope field %q collides with the order field", f)
		}
		if seen[f] {
			return fmt.Errorf("seqlist: duplicate scope field %q", f)
		}
		seen[f] = true
	}
	return nil
}

// ConfigFromYAML parses, normalizes and validates a YAML config document.
func ConfigFromYAML(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("seqlist: parse config: %w", err)
	}
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
