// Package validation provides request validation for the clone service.
package validation

import (
	"net/url"
	"strings"

	"github.com/mirrorlabs/siteclone/internal/models"
)

// MaxURLLength caps accepted clone target URLs.
const MaxURLLength = 2048

// ValidateCloneURL validates a clone target URL.
//
// URL rules:
// - Cannot be empty
// - Must be an absolute http or https URL
// - Must have a host
// - Cannot exceed MaxURLLength characters
func ValidateCloneURL(raw string) error {
	raw = strings.TrimSpace(raw)

	if raw == "" {
		return &models.ValidationError{
			Field:   "url",
			Message: "url cannot be empty",
		}
	}

	if len(raw) > MaxURLLength {
		return &models.ValidationError{
			Field:   "url",
			Message: "url is too long",
		}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return &models.ValidationError{
			Field:   "url",
			Message: "url is not valid",
		}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return &models.ValidationError{
			Field:   "url",
			Message: "url scheme must be http or https",
		}
	}

	if u.Host == "" {
		return &models.ValidationError{
			Field:   "url",
			Message: "url must include a host",
		}
	}

	return nil
}
