package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers mcp-guard validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	rules := map[string]validator.Func{
		"audit_output": validateAuditOutput,
		"duration":     validateDuration,
		"secret_hash":  validateSecretHash,
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	return nil
}

// validateAuditOutput accepts "none", "stdout" or "file://<absolute-path>".
func validateAuditOutput(fl validator.FieldLevel) bool {
	output := fl.Field().String()

	if output == "none" || output == "stdout" {
		return true
	}

	if path, ok := strings.CutPrefix(output, "file://"); ok {
		return path != "" && filepath.IsAbs(path)
	}

	return false
}

// validateDuration accepts any positive time.ParseDuration string.
func validateDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d > 0
}

// validateSecretHash accepts argon2id PHC strings and "sha256:<64 hex>".
func validateSecretHash(fl validator.FieldLevel) bool {
	hash := fl.Field().String()
	if strings.HasPrefix(hash, "$argon2id$") {
		return strings.Count(hash, "$") == 5
	}
	if hexPart, ok := strings.CutPrefix(hash, "sha256:"); ok {
		return len(hexPart) == 64 && isHex(hexPart)
	}
	return false
}

func isHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// Validate validates the Config using struct tags and custom cross-field rules.
// Returns an error if validation fails, with actionable error messages.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateAuthSecret(); err != nil {
		return err
	}

	return nil
}

// validateAuthSecret ensures enabling auth comes with a secret to check against.
func (c *Config) validateAuthSecret() error {
	if c.Security.EnableAuth && c.Security.APIKey == "" && c.Security.APIKeyHash == "" {
		return errors.New("security: enable_auth requires api_key or api_key_hash")
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "startswith":
		return fmt.Sprintf("%s must start with %q", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "ip|cidr":
		return fmt.Sprintf("%s must be an IP address or CIDR range", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "audit_output":
		return fmt.Sprintf("%s must be 'none', 'stdout' or 'file://<absolute-path>'", field)
	case "duration":
		return fmt.Sprintf("%s must be a positive duration such as 30s or 1m", field)
	case "secret_hash":
		return fmt.Sprintf("%s must be an argon2id hash or sha256:<hex>", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
