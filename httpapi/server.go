package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/shopauth"
	"github.com/MrEthical07/shopauth/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Options configures a [Server].
type Options struct {
	Engine *shopauth.Engine
	Logger *zap.Logger

	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler
	// Ready backs GET /healthz. A nil Ready always reports healthy.
	Ready func(ctx context.Context) error

	// TrustProxy makes client IP resolution honor X-Forwarded-For and X-Real-IP.
	TrustProxy bool
	// RateLimitPerMinute enables the per-IP token bucket on /api/auth when > 0.
	RateLimitPerMinute int
	RateLimitBurst     int
}

// Server routes HTTP requests to the engine.
type Server struct {
	engine     *shopauth.Engine
	logger     *zap.Logger
	validate   *validator.Validate
	limiter    *ipLimiter
	metrics    http.Handler
	ready      func(ctx context.Context) error
	trustProxy bool
	router     *mux.Router
}

// NewServer wires the routes.
func NewServer(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, errors.New("httpapi: engine required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		engine:     opts.Engine,
		logger:     logger,
		validate:   newValidator(),
		metrics:    opts.Metrics,
		ready:      opts.Ready,
		trustProxy: opts.TrustProxy,
	}
	if opts.RateLimitPerMinute > 0 {
		s.limiter = newIPLimiter(opts.RateLimitPerMinute, opts.RateLimitBurst)
	}

	s.router = s.routes()
	return s, nil
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.recoverer, s.requestLogger, s.clientContext)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	guard := middleware.Guard(s.engine)
	admin := func(h http.HandlerFunc) http.Handler {
		return guard(middleware.RequireAdmin(s.engine)(h))
	}
	authed := func(h http.HandlerFunc) http.Handler {
		return guard(h)
	}

	auth := r.PathPrefix("/api/auth").Subrouter()
	auth.Use(s.throttle)
	auth.HandleFunc("/signup", s.signup).Methods(http.MethodPost)
	auth.HandleFunc("/verify-otp", s.verifyOTP).Methods(http.MethodPost)
	auth.HandleFunc("/resend-otp", s.resendOTP).Methods(http.MethodPost)
	auth.HandleFunc("/signin", s.signin).Methods(http.MethodPost)
	auth.HandleFunc("/signout", s.signout).Methods(http.MethodPost)
	auth.HandleFunc("/send-verification-code", s.sendVerificationCode).Methods(http.MethodPatch)
	auth.HandleFunc("/verify-code", s.verifyCode).Methods(http.MethodPatch)
	auth.HandleFunc("/forgot-password-code", s.forgotPasswordCode).Methods(http.MethodPatch)
	auth.HandleFunc("/forgot-password-code-validation", s.forgotPasswordValidation).Methods(http.MethodPatch)
	auth.Handle("/change-password", authed(s.changePassword)).Methods(http.MethodPatch)
	auth.Handle("/update-profile", authed(s.updateProfile)).Methods(http.MethodPatch)
	auth.Handle("/update-photo", authed(s.updatePhoto)).Methods(http.MethodPatch)
	auth.Handle("/verify", authed(s.verify)).Methods(http.MethodGet)

	users := r.PathPrefix("/api/users").Subrouter()
	users.Handle("/me", authed(s.getMe)).Methods(http.MethodGet)
	users.Handle("/me", authed(s.updateMe)).Methods(http.MethodPatch)
	users.Handle("/me", authed(s.deleteMe)).Methods(http.MethodDelete)
	users.Handle("/stats", admin(s.stats)).Methods(http.MethodGet)
	users.Handle("", admin(s.listUsers)).Methods(http.MethodGet)
	users.Handle("/", admin(s.listUsers)).Methods(http.MethodGet)
	users.Handle("", admin(s.createUser)).Methods(http.MethodPost)
	users.Handle("/", admin(s.createUser)).Methods(http.MethodPost)
	users.Handle("/{id}", admin(s.getUser)).Methods(http.MethodGet)
	users.Handle("/{id}", admin(s.updateUser)).Methods(http.MethodPut, http.MethodPatch)
	users.Handle("/{id}", admin(s.deleteUser)).Methods(http.MethodDelete)
	users.Handle("/{id}/login-attempts", admin(s.loginAttempts)).Methods(http.MethodGet)

	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			writeMessage(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
	}
	writeSuccess(w, http.StatusOK, "ok", nil)
}
