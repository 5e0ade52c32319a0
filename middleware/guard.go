package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/MrEthical07/shopauth"
)

type identityContextKey struct{}
type accountContextKey struct{}

// IdentityFromContext returns the identity verified by [Guard].
func IdentityFromContext(ctx context.Context) (*shopauth.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*shopauth.Identity)
	return id, ok
}

// AccountFromContext returns the account reloaded by [RequireRole].
func AccountFromContext(ctx context.Context) (shopauth.Account, bool) {
	a, ok := ctx.Value(accountContextKey{}).(shopauth.Account)
	return a, ok
}

// WithIdentity attaches id to ctx. Handlers under test use it to skip the guard.
func WithIdentity(ctx context.Context, id *shopauth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// Guard verifies the session token and stores the identity in the request
// context. The token is read from the Authorization header and, failing that,
// from the session cookie. Both carry "Bearer <token>"; the cookie value may be
// URL-escaped.
func Guard(engine *shopauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeError(w, http.StatusUnauthorized, shopauth.ErrEngineNotReady.Error())
				return
			}

			token, err := TokenFromRequest(r, engine.Cookie().Name)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			identity, err := engine.ParseToken(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, shopauth.ErrTokenInvalid.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// TokenFromRequest extracts the session token. A "Bearer" Authorization
// header wins; any other header value falls through to the named cookie,
// which may hold "Bearer <token>" (optionally URL-escaped) or the bare token.
func TokenFromRequest(r *http.Request, cookieName string) (string, error) {
	header := r.Header.Get("Authorization")
	if token, ok := bearerToken(header); ok {
		return token, nil
	}

	// A non-bearer header with nothing to fall back on is a malformed
	// credential rather than a missing one.
	missing := shopauth.ErrTokenMissing
	if header != "" {
		missing = shopauth.ErrTokenInvalid
	}

	if cookieName == "" {
		return "", missing
	}
	c, err := r.Cookie(cookieName)
	if err != nil || c.Value == "" {
		return "", missing
	}

	value := c.Value
	if unescaped, err := url.QueryUnescape(value); err == nil {
		value = unescaped
	}
	value = strings.TrimSpace(value)
	if token, ok := bearerToken(value); ok {
		return token, nil
	}
	if value != "" && !strings.ContainsAny(value, " \t") {
		return value, nil
	}
	return "", shopauth.ErrTokenInvalid
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

// RequireRole must run after [Guard]. It reloads the caller from the store and
// lets the request through only when the stored role is one of roles.
func RequireRole(engine *shopauth.Engine, roles ...shopauth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok || engine == nil {
				writeError(w, http.StatusUnauthorized, shopauth.ErrUnauthorized.Error())
				return
			}

			account, err := engine.RequireRole(r.Context(), identity.UserID, roles...)
			switch {
			case err == nil:
			case errors.Is(err, shopauth.ErrForbidden):
				writeError(w, http.StatusForbidden, "access denied")
				return
			case errors.Is(err, shopauth.ErrUnauthorized):
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			default:
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			ctx := context.WithValue(r.Context(), accountContextKey{}, account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin admits admins and superadmins.
func RequireAdmin(engine *shopauth.Engine) func(http.Handler) http.Handler {
	return RequireRole(engine, shopauth.RoleAdmin, shopauth.RoleSuperAdmin)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": message,
	})
}
