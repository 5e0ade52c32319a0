package shopauth

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrEthical07/shopauth/internal"
	"github.com/MrEthical07/shopauth/password"
	"github.com/go-playground/validator/v10"
)

const (
	minEmailLen = 6
	maxEmailLen = 60
	maxNameLen  = 100
	minPassLen  = 8
	maxURLLen   = 2048
)

// fieldValidator checks single values. validator.Validate is safe for
// concurrent use once built.
var fieldValidator = validator.New(validator.WithRequiredStructEnabled())

func validateEmail(email string) error {
	if n := utf8.RuneCountInString(email); n < minEmailLen || n > maxEmailLen {
		return fmt.Errorf("%w: email must be between %d and %d characters", ErrValidation, minEmailLen, maxEmailLen)
	}
	if err := fieldValidator.Var(email, "email"); err != nil {
		return fmt.Errorf("%w: email is not a valid address", ErrValidation)
	}
	// Storefront mail needs a routable domain; bare hosts are refused.
	at := strings.LastIndexByte(email, '@')
	if at < 1 || !strings.Contains(email[at+1:], ".") {
		return fmt.Errorf("%w: email is not a valid address", ErrValidation)
	}
	return nil
}

// validatePassword requires at least eight characters including a lower-case
// letter, an upper-case letter and a digit.
func validatePassword(pw string) error {
	if len(pw) > password.MaxPasswordBytes {
		return fmt.Errorf("%w: %w", ErrValidation, ErrPasswordPolicy)
	}
	if utf8.RuneCountInString(pw) < minPassLen {
		return fmt.Errorf("%w: %w", ErrValidation, ErrPasswordPolicy)
	}

	var lower, upper, digit bool
	for _, r := range pw {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	if !lower || !upper || !digit {
		return fmt.Errorf("%w: %w", ErrValidation, ErrPasswordPolicy)
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return fmt.Errorf("%w: name must be at most %d characters", ErrValidation, maxNameLen)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: name contains control characters", ErrValidation)
		}
	}
	return nil
}

// validatePhotoURL accepts a site-relative path or an absolute http(s) URL.
func validatePhotoURL(photoURL string) error {
	switch {
	case photoURL == "":
		return fmt.Errorf("%w: photoUrl is required", ErrValidation)
	case len(photoURL) > maxURLLen:
		return fmt.Errorf("%w: photoUrl is too long", ErrValidation)
	case strings.HasPrefix(photoURL, "/") && !strings.HasPrefix(photoURL, "//"):
		return nil
	}
	if err := fieldValidator.Var(photoURL, "http_url"); err != nil {
		return fmt.Errorf("%w: photoUrl must be an absolute path or http(s) URL", ErrValidation)
	}
	return nil
}

// wellFormedCode reports whether code has the configured digit count.
func (e *Engine) wellFormedCode(code string) bool {
	return len(code) == e.config.Codes.Digits && internal.IsNumeric(code)
}
