package engine

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	engineNamePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$|^[a-z]$`)
	semverPattern     = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
)

// Metadata describes engine identity, declared capabilities, and the
// well-known argument keys the engine understands.
type Metadata struct {
	Name         string
	Version      string
	Description  string
	Capabilities Capability
	Args         []ArgSpec
}

// Validate ensures metadata is well-formed. The registry rejects
// engines whose metadata fails validation.
func (m Metadata) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("engine metadata requires a non-empty Name")
	}
	if !engineNamePattern.MatchString(m.Name) {
		return fmt.Errorf("engine name '%s' is invalid (lowercase letters, digits and hyphens, starting with a letter)", m.Name)
	}
	if strings.TrimSpace(m.Version) == "" {
		return fmt.Errorf("engine '%s' metadata requires Version", m.Name)
	}
	if !semverPattern.MatchString(m.Version) {
		return fmt.Errorf("engine '%s' has invalid Version '%s' (expected format: X.Y.Z)", m.Name, m.Version)
	}
	if !m.Capabilities.Has(BaseCapabilities) {
		return fmt.Errorf("engine '%s' must declare the create and predict capabilities", m.Name)
	}

	seen := map[string]struct{}{}
	for _, spec := range m.Args {
		if err := spec.Validate(m.Name); err != nil {
			return err
		}
		if _, exists := seen[spec.Key]; exists {
			return fmt.Errorf("engine '%s' lists argument '%s' more than once", m.Name, spec.Key)
		}
		seen[spec.Key] = struct{}{}
	}
	return nil
}

// ArgSpec returns the declared spec for an argument key.
func (m Metadata) ArgSpec(key string) (ArgSpec, bool) {
	for _, spec := range m.Args {
		if spec.Key == key {
			return spec, true
		}
	}
	return ArgSpec{}, false
}
