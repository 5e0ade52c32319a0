package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"reflect"
	"strings"

	"github.com/MrEthical07/shopauth"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

type signupRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type signinRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// codeField carries a submitted code. Older storefront clients send it as
// "varificationCode"; both spellings are accepted.
type codeField struct {
	VerificationCode string `json:"verificationCode" validate:"required_without=LegacyCode"`
	LegacyCode       string `json:"varificationCode"`
}

func (c codeField) code() string {
	if c.VerificationCode != "" {
		return c.VerificationCode
	}
	return c.LegacyCode
}

type verifyCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	codeField
}

type resetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	NewPassword string `json:"newPassword" validate:"required"`
	codeField
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

type updateProfileRequest struct {
	Name string `json:"name" validate:"required"`
}

type updatePhotoRequest struct {
	PhotoURL string `json:"photoUrl" validate:"required"`
}

type adminCreateRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin superadmin"`
	PhotoURL string `json:"photoUrl"`
}

type adminUpdateRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password"`
	Role     *string `json:"role" validate:"omitempty,oneof=user admin superadmin"`
	Verified *bool   `json:"verified"`
	PhotoURL *string `json:"photoUrl"`
}

// decode reads a JSON body into dst and runs struct validation. Failures are
// wrapped in [shopauth.ErrValidation].
func (s *Server) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is required", shopauth.ErrValidation)
		}
		return fmt.Errorf("%w: invalid JSON", shopauth.ErrValidation)
	}
	if err := s.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s", shopauth.ErrValidation, formatValidationError(err))
	}
	return nil
}

// formatValidationError renders the first field failure as a sentence.
func formatValidationError(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return err.Error()
	}

	fe := ve[0]
	field := jsonFieldName(fe)
	switch fe.Tag() {
	case "required", "required_without":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed on %s", field, fe.Tag())
	}
}

func jsonFieldName(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		return "field"
	}
	return strings.ToLower(name[:1]) + name[1:]
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// clientIP returns the remote host. Forwarded headers are honored only when
// the server trusts its proxy.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first := strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
			if first != "" {
				return first
			}
		}
		if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
			return real
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
