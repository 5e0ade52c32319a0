package shopauth

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type mockStore struct {
	mu       sync.Mutex
	accounts map[string]Account
	byEmail  map[string]string
	pending  map[string]PendingAccount

	findErr error

	promoteCalls int
	consumeCalls int
}

func newMockStore() *mockStore {
	return &mockStore{
		accounts: map[string]Account{},
		byEmail:  map[string]string{},
		pending:  map[string]PendingAccount{},
	}
}

func copyCode(c *IssuedCode) *IssuedCode {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}

func copyAccount(a Account) Account {
	a.VerificationCode = copyCode(a.VerificationCode)
	a.ForgotPasswordCode = copyCode(a.ForgotPasswordCode)
	return a
}

func (m *mockStore) FindAccountByEmail(_ context.Context, email string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findErr != nil {
		return Account{}, m.findErr
	}
	id, ok := m.byEmail[email]
	if !ok {
		return Account{}, ErrRecordNotFound
	}
	return copyAccount(m.accounts[id]), nil
}

func (m *mockStore) FindAccountByID(_ context.Context, id string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return Account{}, ErrRecordNotFound
	}
	return copyAccount(a), nil
}

func (m *mockStore) CreateAccount(_ context.Context, a Account) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(a)
}

func (m *mockStore) createLocked(a Account) (Account, error) {
	if _, ok := m.byEmail[a.Email]; ok {
		return Account{}, ErrDuplicateRecord
	}
	if _, ok := m.accounts[a.ID]; ok {
		return Account{}, ErrDuplicateRecord
	}
	a = copyAccount(a)
	m.accounts[a.ID] = a
	m.byEmail[a.Email] = a.ID
	return copyAccount(a), nil
}

func (m *mockStore) UpdateAccount(_ context.Context, id string, u AccountUpdate) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(id, u)
}

func (m *mockStore) applyLocked(id string, u AccountUpdate) (Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return Account{}, ErrRecordNotFound
	}
	if u.Email != nil && *u.Email != a.Email {
		if _, taken := m.byEmail[*u.Email]; taken {
			return Account{}, ErrDuplicateRecord
		}
		delete(m.byEmail, a.Email)
		a.Email = *u.Email
		m.byEmail[a.Email] = a.ID
	}
	if u.Name != nil {
		a.Name = *u.Name
	}
	if u.PasswordHash != nil {
		a.PasswordHash = *u.PasswordHash
	}
	if u.Role != nil {
		a.Role = *u.Role
	}
	if u.Verified != nil {
		a.Verified = *u.Verified
	}
	if u.PhotoURL != nil {
		a.PhotoURL = *u.PhotoURL
	}
	if u.SetVerificationCode != nil {
		a.VerificationCode = copyCode(u.SetVerificationCode)
	}
	if u.ClearVerificationCode {
		a.VerificationCode = nil
	}
	if u.SetForgotPasswordCode != nil {
		a.ForgotPasswordCode = copyCode(u.SetForgotPasswordCode)
	}
	if u.ClearForgotPasswordCode {
		a.ForgotPasswordCode = nil
	}
	m.accounts[id] = a
	return copyAccount(a), nil
}

func (m *mockStore) ConsumeCode(_ context.Context, id string, kind CodeKind, hash string, u AccountUpdate) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.consumeCalls++
	a, ok := m.accounts[id]
	if !ok {
		return Account{}, ErrRecordNotFound
	}
	current := a.VerificationCode
	if kind == CodeForgotPassword {
		current = a.ForgotPasswordCode
	}
	if current == nil || current.Hash != hash {
		return Account{}, ErrRecordNotFound
	}
	return m.applyLocked(id, u)
}

func (m *mockStore) DeleteAccount(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return ErrRecordNotFound
	}
	delete(m.byEmail, a.Email)
	delete(m.accounts, id)
	return nil
}

func (m *mockStore) ListAccounts(_ context.Context, opts ListOptions) ([]Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		all = append(all, copyAccount(a))
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	if opts.Offset >= len(all) {
		return []Account{}, nil
	}
	all = all[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(all) {
		all = all[:opts.Limit]
	}
	return all, nil
}

func (m *mockStore) AccountStats(context.Context) (AccountStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := AccountStats{ByRole: map[Role]int64{}, Pending: int64(len(m.pending))}
	for _, a := range m.accounts {
		stats.Total++
		if a.Verified {
			stats.Verified++
		}
		stats.ByRole[a.Role]++
	}
	return stats, nil
}

func (m *mockStore) FindPending(_ context.Context, email string) (PendingAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pending[email]
	if !ok {
		return PendingAccount{}, ErrRecordNotFound
	}
	return p, nil
}

func (m *mockStore) CreatePending(_ context.Context, p PendingAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pending[p.Email]; ok {
		return ErrDuplicateRecord
	}
	m.pending[p.Email] = p
	return nil
}

func (m *mockStore) ReplacePendingOTP(_ context.Context, email, otpHash string, issuedAt, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pending[email]
	if !ok {
		return ErrRecordNotFound
	}
	p.OTPHash = otpHash
	p.OTPIssuedAt = issuedAt
	p.OTPExpiresAt = expiresAt
	m.pending[email] = p
	return nil
}

func (m *mockStore) DeletePending(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.pending, email)
	return nil
}

func (m *mockStore) DeletePendingIfExpired(_ context.Context, email string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pending[email]
	if !ok || !p.Expired(now) {
		return false, nil
	}
	delete(m.pending, email)
	return true, nil
}

func (m *mockStore) DeleteExpiredPending(_ context.Context, createdBefore, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for email, p := range m.pending {
		if p.CreatedAt.Before(createdBefore) && p.Expired(now) {
			delete(m.pending, email)
			removed++
		}
	}
	return removed, nil
}

func (m *mockStore) PromotePending(_ context.Context, email, otpHash string, a Account) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.promoteCalls++
	p, ok := m.pending[email]
	if !ok || p.OTPHash != otpHash {
		return Account{}, ErrRecordNotFound
	}
	created, err := m.createLocked(a)
	if err != nil {
		return Account{}, err
	}
	delete(m.pending, email)
	return created, nil
}

func (m *mockStore) accountByEmail(t *testing.T, email string) Account {
	t.Helper()

	a, err := m.FindAccountByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("FindAccountByEmail(%q) failed: %v", email, err)
	}
	return a
}

// fakeMailer records every delivered code. Addresses in reject are answered
// without being accepted; sendErr fails the transport outright.
type fakeMailer struct {
	mu      sync.Mutex
	sent    []MailMessage
	reject  map[string]bool
	sendErr error
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{reject: map[string]bool{}}
}

func (f *fakeMailer) Send(_ context.Context, msg MailMessage) (MailReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return MailReceipt{}, f.sendErr
	}
	if f.reject[msg.To] {
		return MailReceipt{MessageID: "m", Rejected: []string{msg.To}}, nil
	}
	f.sent = append(f.sent, msg)
	return MailReceipt{MessageID: "m", Accepted: []string{msg.To}}, nil
}

func (f *fakeMailer) setReject(addr string, reject bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reject[addr] = reject
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeMailer) lastCode(t *testing.T, addr string) string {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].To != addr {
			continue
		}
		html := f.sent[i].HTML
		code := strings.TrimSuffix(strings.TrimPrefix(html, "<h1>"), "</h1>")
		if code == html {
			t.Fatalf("unexpected mail body %q", html)
		}
		return code
	}
	t.Fatalf("no code delivered to %s", addr)
	return ""
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Codes.HMACKey = []byte("code-hmac-key-for-tests")
	cfg.Password.BcryptCost = 10
	cfg.Cookie.Secure = false
	return cfg
}

type testHarness struct {
	engine *Engine
	store  *mockStore
	mailer *fakeMailer
	clock  *testClock
	redis  *miniredis.Miniredis
}

func newTestHarness(t *testing.T, mutate func(*Config)) *testHarness {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	mr, rdb := newTestRedis(t)
	h := &testHarness{
		store:  newMockStore(),
		mailer: newFakeMailer(),
		clock:  newTestClock(),
		redis:  mr,
	}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithStore(h.store).
		WithMailer(h.mailer).
		WithClock(h.clock.Now).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}
	h.engine = engine

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return h
}

// registerVerified runs the full signup round trip for email.
func (h *testHarness) registerVerified(t *testing.T, email, pw string) *SessionResult {
	t.Helper()

	ctx := context.Background()
	if _, err := h.engine.Signup(ctx, SignupInput{Name: "Test User", Email: email, Password: pw}); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	session, err := h.engine.VerifySignupOTP(ctx, email, h.mailer.lastCode(t, email))
	if err != nil {
		t.Fatalf("VerifySignupOTP failed: %v", err)
	}
	return session
}

// seedAccount inserts an account directly with the engine's hasher.
func (h *testHarness) seedAccount(t *testing.T, id, email, pw string, role Role, verified bool) Account {
	t.Helper()

	hash, err := h.engine.hasher.Hash(pw)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	a, err := h.store.CreateAccount(context.Background(), Account{
		ID:           id,
		Email:        email,
		Name:         "Seeded " + id,
		PasswordHash: hash,
		Role:         role,
		Verified:     verified,
		CreatedAt:    h.clock.Now(),
	})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	return a
}

var errTransportDown = errors.New("smtp: connection refused")
