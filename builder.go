package shopauth

import (
	"errors"
	"time"

	"github.com/MrEthical07/shopauth/internal/rate"
	"github.com/MrEthical07/shopauth/jwt"
	"github.com/MrEthical07/shopauth/password"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A Builder may be used for one Build call.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store     CredentialStore
	mailer    Mailer
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing the attempt limiters. It is required
// when Limits.Enabled is true.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore sets the credential store.
func (b *Builder) WithStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithMailer sets the code delivery transport.
func (b *Builder) WithMailer(mailer Mailer) *Builder {
	b.mailer = mailer
	return b
}

// WithAuditSink sets the sink used when Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides time.Now for code and token expiry.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and dependencies and returns the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("credential store required")
	}
	if b.mailer == nil {
		return nil, errors.New("mailer required")
	}
	if cfg.Limits.Enabled && b.redis == nil {
		return nil, errors.New("redis client required when limits are enabled")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config: cfg,
		store:  b.store,
		mailer: b.mailer,
		now:    now,
	}

	if cfg.Limits.Enabled {
		engine.limiter = rate.New(b.redis, rate.Config{
			Prefix:            cfg.Limits.RedisPrefix,
			EnableIPThrottle:  cfg.Limits.EnableIPThrottle,
			MaxLoginAttempts:  cfg.Limits.MaxLoginAttempts,
			LoginCooldown:     cfg.Limits.LoginCooldown,
			MaxCodeRequests:   cfg.Limits.MaxCodeRequests,
			CodeRequestWindow: cfg.Limits.CodeRequestWindow,
			MaxCodeAttempts:   cfg.Limits.MaxCodeAttempts,
			CodeAttemptWindow: cfg.Limits.CodeAttemptWindow,
		})
	}
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	hasher, err := password.NewHasher(password.Config{
		Algorithm:  password.Algorithm(cfg.Password.Algorithm),
		BcryptCost: cfg.Password.BcryptCost,
		Argon2: password.Argon2Config{
			Memory:      cfg.Password.Argon2Memory,
			Time:        cfg.Password.Argon2Time,
			Parallelism: cfg.Password.Argon2Parallelism,
		},
	})
	if err != nil {
		engine.Close()
		return nil, err
	}
	engine.hasher = hasher

	dummy, err := hasher.Hash("shopauth-timing-equalizer-1A")
	if err != nil {
		engine.Close()
		return nil, err
	}
	engine.dummyHash = dummy

	jm, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.JWT.TTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
		Now:           now,
	})
	if err != nil {
		engine.Close()
		return nil, err
	}
	engine.jwtManager = jm

	b.built = true

	return engine, nil
}
