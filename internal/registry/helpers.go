package registry

import (
	"crypto/rand"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	modelNameMaxLength       = 64
	randomNameSuffixLength   = 8
	randomNameSuffixFallback = "abcdefgh"
)

var (
	modelNamePattern  = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*[a-z0-9]$|^[a-z0-9]$`)
	nonIdentifierExpr = regexp.MustCompile(`[^a-z0-9_]+`)
)

// DeriveModelName converts a training data path into a sanitized model name.
func DeriveModelName(path string) string {
	base := filepath.Base(path)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}

	name := SanitizeName(base)
	if name == "" {
		name = fmt.Sprintf("model-%s", randomNameSuffix(randomNameSuffixLength))
	}

	if len(name) > modelNameMaxLength {
		name = trimToLength(name, modelNameMaxLength)
	}

	if name == "" {
		name = fmt.Sprintf("model-%s", randomNameSuffix(randomNameSuffixLength))
	}

	return name
}

// ValidateModelName ensures the provided name matches the allowed pattern.
func ValidateModelName(name string) error {
	if name == "" {
		return fmt.Errorf("model name cannot be empty")
	}

	if len(name) > modelNameMaxLength {
		return fmt.Errorf("model name %q is too long: maximum length is %d characters", name, modelNameMaxLength)
	}

	if !modelNamePattern.MatchString(name) {
		return fmt.Errorf("invalid model name %q: must match %s", name, modelNamePattern.String())
	}

	return nil
}

// SanitizeName normalizes a free-form string into an identifier-friendly format.
func SanitizeName(name string) string {
	lowered := strings.ToLower(name)
	sanitized := nonIdentifierExpr.ReplaceAllString(lowered, "-")
	sanitized = strings.Trim(sanitized, "-_")

	if len(sanitized) > modelNameMaxLength {
		sanitized = trimToLength(sanitized, modelNameMaxLength)
	}

	return sanitized
}

func randomNameSuffix(length int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

	if length <= 0 {
		return ""
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return randomNameSuffixFallback
	}

	for i := range buf {
		buf[i] = alphabet[int(buf[i])%len(alphabet)]
	}

	return string(buf)
}

func trimToLength(value string, length int) string {
	if len(value) <= length {
		return strings.Trim(value, "-_")
	}

	trimmed := value[:length]
	return strings.Trim(trimmed, "-_")
}
