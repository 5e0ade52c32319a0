package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/MrEthical07/shopauth"
	"github.com/MrEthical07/shopauth/password"
	"github.com/MrEthical07/shopauth/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testPassword = "Sup3rSecret"

type captureMailer struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *captureMailer) Send(_ context.Context, msg shopauth.MailMessage) (shopauth.MailReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[msg.To] = strings.TrimSuffix(strings.TrimPrefix(msg.HTML, "<h1>"), "</h1>")
	return shopauth.MailReceipt{Accepted: []string{msg.To}}, nil
}

func (m *captureMailer) code(t *testing.T, addr string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.codes[addr]
	require.True(t, ok, "no code delivered to %s", addr)
	return code
}

type testAPI struct {
	server *Server
	store  *memory.Store
	mailer *captureMailer
}

func newTestAPI(t *testing.T, mutate func(*Options)) *testAPI {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := shopauth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Codes.HMACKey = []byte("httpapi-test-hmac-key")
	cfg.Password.BcryptCost = 10
	cfg.Cookie.Secure = false

	store := memory.New()
	mailer := &captureMailer{codes: make(map[string]string)}
	engine, err := shopauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithStore(store).
		WithMailer(mailer).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	opts := Options{Engine: engine, Logger: zaptest.NewLogger(t)}
	if mutate != nil {
		mutate(&opts)
	}
	server, err := NewServer(opts)
	require.NoError(t, err)

	return &testAPI{server: server, store: store, mailer: mailer}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.server.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) seed(t *testing.T, id, email string, role shopauth.Role) {
	t.Helper()

	hasher, err := password.NewHasher(password.Config{Algorithm: password.AlgorithmBcrypt, BcryptCost: 10})
	require.NoError(t, err)
	hash, err := hasher.Hash(testPassword)
	require.NoError(t, err)

	_, err = a.store.CreateAccount(context.Background(), shopauth.Account{
		ID: id, Email: email, Name: "Seeded " + id, PasswordHash: hash, Role: role, Verified: true,
	})
	require.NoError(t, err)
}

func (a *testAPI) signin(t *testing.T, email string) *http.Cookie {
	t.Helper()

	rec := a.do(t, http.MethodPost, "/api/auth/signin", map[string]string{"email": email, "password": testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return sessionCookie(t, rec)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "Authorization" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSignupVerifyAndSessionCookie(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"name": "Alice", "email": "Alice@Example.com", "password": testPassword,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "alice@example.com", body["email"])

	rec = api.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"name": "Alice", "email": "alice@example.com", "password": testPassword,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	code := api.mailer.code(t, "alice@example.com")
	rec = api.do(t, http.MethodPost, "/api/auth/verify-otp", map[string]string{"email": "alice@example.com", "otp": code})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, 8*3600, cookie.MaxAge)
	assert.True(t, strings.HasPrefix(cookie.Value, "Bearer%20"))

	rec = api.do(t, http.MethodGet, "/api/auth/verify", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	user := decodeBody(t, rec)["user"].(map[string]any)
	assert.Equal(t, "alice@example.com", user["email"])
	assert.Equal(t, "user", user["role"])

	rec = api.do(t, http.MethodPost, "/api/auth/verify-otp", map[string]string{"email": "alice@example.com", "otp": code})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResendUnknownEmailIsNotFound(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodPost, "/api/auth/resend-otp", map[string]string{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["success"])
}

func TestSigninFailureAndValidation(t *testing.T) {
	api := newTestAPI(t, nil)
	api.seed(t, "u1", "bob@example.com", shopauth.RoleUser)

	rec := api.do(t, http.MethodPost, "/api/auth/signin", map[string]string{"email": "bob@example.com", "password": "Wrong1234"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, shopauth.ErrInvalidCredentials.Error(), decodeBody(t, rec)["message"])

	rec = api.do(t, http.MethodPost, "/api/auth/signup", map[string]string{"name": "Bob", "password": testPassword})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["message"], "email is required")

	rec = api.do(t, http.MethodPost, "/api/auth/signin", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignoutClearsCookie(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodPost, "/api/auth/signout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(t, rec)
	assert.Equal(t, "", cookie.Value)
	assert.Less(t, cookie.MaxAge, 0)
}

func TestAuthenticatedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodPatch, "/api/auth/change-password", map[string]string{"oldPassword": "a", "newPassword": "b"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/users/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfileRoutes(t *testing.T) {
	api := newTestAPI(t, nil)
	api.seed(t, "u1", "carol@example.com", shopauth.RoleUser)
	cookie := api.signin(t, "carol@example.com")

	rec := api.do(t, http.MethodPatch, "/api/auth/update-profile", map[string]string{"name": "Carol C"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPatch, "/api/users/me", map[string]string{
		"photoUrl": "https://cdn.example.com/carol.png", "currentPassword": testPassword, "newPassword": "N3wSecret99",
	}, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	user := decodeBody(t, rec)["user"].(map[string]any)
	assert.Equal(t, "Carol C", user["name"])
	assert.Equal(t, "https://cdn.example.com/carol.png", user["photoUrl"])

	rec = api.do(t, http.MethodPost, "/api/auth/signin", map[string]string{"email": "carol@example.com", "password": "N3wSecret99"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodDelete, "/api/users/me", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = api.do(t, http.MethodGet, "/api/users/me", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateMeRejectedRequestChangesNothing(t *testing.T) {
	api := newTestAPI(t, nil)
	api.seed(t, "u1", "dana@example.com", shopauth.RoleUser)
	cookie := api.signin(t, "dana@example.com")

	rec := api.do(t, http.MethodPatch, "/api/users/me", map[string]string{
		"name": "   ", "currentPassword": testPassword, "newPassword": "N3wPassword",
	}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["message"], "name is required")

	rec = api.do(t, http.MethodPatch, "/api/users/me", map[string]string{
		"name": "Dana D", "currentPassword": "Wrong1234", "newPassword": "N3wPassword",
	}, cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/auth/signin", map[string]string{"email": "dana@example.com", "password": testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	user := decodeBody(t, rec)["user"].(map[string]any)
	assert.Equal(t, "Seeded u1", user["name"])
}

func TestLegacyFieldSpellingsAccepted(t *testing.T) {
	api := newTestAPI(t, nil)
	api.seed(t, "u1", "erin@example.com", shopauth.RoleUser)

	rec := api.do(t, http.MethodPatch, "/api/auth/forgot-password-code", map[string]string{"email": "erin@example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPatch, "/api/auth/forgot-password-code-validation", map[string]string{
		"email": "erin@example.com", "varificationCode": api.mailer.code(t, "erin@example.com"), "newPassword": "Res3tSecret",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPost, "/api/auth/signin", map[string]string{"email": "erin@example.com", "password": "Res3tSecret"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookie := sessionCookie(t, rec)

	rec = api.do(t, http.MethodPatch, "/api/auth/change-password", map[string]string{
		"oldpassword": "Res3tSecret", "newpassword": "Chang3dAgain",
	}, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPatch, "/api/auth/verify-code", map[string]string{"email": "erin@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["message"], "verificationCode is required")
}

func TestAdminRoutes(t *testing.T) {
	api := newTestAPI(t, nil)
	api.seed(t, "u1", "user@example.com", shopauth.RoleUser)
	api.seed(t, "a1", "admin@example.com", shopauth.RoleAdmin)

	userCookie := api.signin(t, "user@example.com")
	adminCookie := api.signin(t, "admin@example.com")

	rec := api.do(t, http.MethodGet, "/api/users", nil, userCookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/users?limit=10", nil, adminCookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decodeBody(t, rec)["users"], 2)

	rec = api.do(t, http.MethodPost, "/api/users", map[string]string{
		"name": "Dave", "email": "dave@example.com", "password": testPassword,
	}, adminCookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decodeBody(t, rec)["user"].(map[string]any)["id"].(string)

	rec = api.do(t, http.MethodPut, "/api/users/"+id, map[string]string{"role": "superadmin"}, adminCookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPut, "/api/users/"+id, map[string]string{"role": "owner"}, adminCookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/users/stats", nil, adminCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody(t, rec)["stats"].(map[string]any)
	assert.EqualValues(t, 3, stats["total"])

	rec = api.do(t, http.MethodDelete, "/api/users/"+id, nil, adminCookie)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(t, http.MethodGet, "/api/users/"+id, nil, adminCookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/users?limit=-1", nil, adminCookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminLoginAttempts(t *testing.T) {
	api := newTestAPI(t, nil)
	api.seed(t, "u1", "frank@example.com", shopauth.RoleUser)
	api.seed(t, "a1", "admin@example.com", shopauth.RoleAdmin)
	adminCookie := api.signin(t, "admin@example.com")
	userCookie := api.signin(t, "frank@example.com")

	for i := 0; i < 2; i++ {
		rec := api.do(t, http.MethodPost, "/api/auth/signin", map[string]string{"email": "frank@example.com", "password": "Wrong1234"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := api.do(t, http.MethodGet, "/api/users/u1/login-attempts", nil, adminCookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "frank@example.com", body["email"])
	assert.EqualValues(t, 2, body["attempts"])

	rec = api.do(t, http.MethodGet, "/api/users/u1/login-attempts", nil, userCookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/users/ghost/login-attempts", nil, adminCookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthRoutesThrottledPerIP(t *testing.T) {
	api := newTestAPI(t, func(o *Options) {
		o.RateLimitPerMinute = 1
		o.RateLimitBurst = 1
	})

	rec := api.do(t, http.MethodPost, "/api/auth/signout", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = api.do(t, http.MethodPost, "/api/auth/signout", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestHealthzAndMetrics(t *testing.T) {
	healthy := true
	api := newTestAPI(t, func(o *Options) {
		o.Ready = func(context.Context) error {
			if healthy {
				return nil
			}
			return errors.New("db down")
		}
		o.Metrics = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("shopauth_signin_success_total 0\n"))
		})
	})

	rec := api.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	healthy = false
	rec = api.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = api.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shopauth_signin_success_total")

	rec = api.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
