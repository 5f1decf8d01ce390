package config

import (
	"fmt"
	"net"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	pkgerrors "github.com/modelroom/modelroom/pkg/errors"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	versionPattern    = regexp.MustCompile(`^\d+\.\d+(?:\.\d+)?$`)
	engineNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("version", func(fl validator.FieldLevel) bool {
			return versionPattern.MatchString(fl.Field().String())
		})

		_ = v.RegisterValidation("log_level", func(fl validator.FieldLevel) bool {
			_, err := zerolog.ParseLevel(fl.Field().String())
			return err == nil
		})

		_ = v.RegisterValidation("listen_addr", func(fl validator.FieldLevel) bool {
			_, port, err := net.SplitHostPort(fl.Field().String())
			return err == nil && port != ""
		})

		_ = v.RegisterValidation("engine_name", func(fl validator.FieldLevel) bool {
			return engineNamePattern.MatchString(fl.Field().String())
		})

		validateInst = v
	})
	return validateInst
}

// Validate checks structural constraints and the cross-field rules the
// struct tags cannot express. Engine names are not checked against the
// built-in set here; unknown names surface when the host wires engines.
func Validate(cfg *Config) error {
	if err := validatorInstance().Struct(cfg); err != nil {
		return convertValidationError(err)
	}

	seen := make(map[string]int, len(cfg.Engines))
	for i, eng := range cfg.Engines {
		if first, ok := seen[eng.Name]; ok {
			return pkgerrors.NewValidationError(
				fmt.Sprintf("engines[%d].name", i),
				fmt.Sprintf("duplicate engine %q (already configured at engines[%d])", eng.Name, first),
				nil,
			)
		}
		seen[eng.Name] = i
	}

	if cfg.Registry.Backend == "postgres" && cfg.Registry.DSN == "" {
		return pkgerrors.NewValidationError("registry.dsn", "postgres backend requires a dsn", nil)
	}

	if cfg.Storage.Backend == "minio" {
		required := []struct {
			field string
			value string
		}{
			{"storage.minio.endpoint", cfg.Storage.Minio.Endpoint},
			{"storage.minio.bucket", cfg.Storage.Minio.Bucket},
			{"storage.minio.access_key", cfg.Storage.Minio.AccessKey},
			{"storage.minio.secret_key", cfg.Storage.Minio.SecretKey},
		}
		for _, r := range required {
			if r.value == "" {
				return pkgerrors.NewValidationError(r.field, "required for the minio storage backend", nil)
			}
		}
	}

	return nil
}

func convertValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !asValidationErrors(err, &verrs) || len(verrs) == 0 {
		return pkgerrors.NewValidationError("config", "invalid configuration", err)
	}

	first := verrs[0]
	return pkgerrors.NewValidationError(
		yamlishFieldName(first.StructNamespace()),
		validationMessage(first),
		err,
	)
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "version":
		return "must look like \"1.0\" or \"1.0.3\""
	case "log_level":
		return "must be a zerolog level such as debug, info, warn, or error"
	case "listen_addr":
		return "must be a host:port address such as \":8990\""
	case "engine_name":
		return "must be lowercase letters, digits, hyphens, or underscores"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// yamlishFieldName turns a struct namespace like Config.Storage.Minio
// .AccessKey into the YAML path storage.minio.access_key.
func yamlishFieldName(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, part := range parts {
		parts[i] = camelToSnake(part)
	}
	return strings.Join(parts, ".")
}

func camelToSnake(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
