package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MrEthical07/shopauth"
)

// Store keeps accounts and pending signups in mutex-guarded maps. Every
// conditional operation runs under the write lock, which gives it the same
// atomicity the SQL store gets from transactions.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]shopauth.Account
	byEmail  map[string]string
	pending  map[string]shopauth.PendingAccount
}

var _ shopauth.CredentialStore = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		accounts: make(map[string]shopauth.Account),
		byEmail:  make(map[string]string),
		pending:  make(map[string]shopauth.PendingAccount),
	}
}

func (s *Store) FindAccountByEmail(_ context.Context, email string) (shopauth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return shopauth.Account{}, shopauth.ErrRecordNotFound
	}
	return cloneAccount(s.accounts[id]), nil
}

func (s *Store) FindAccountByID(_ context.Context, id string) (shopauth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return shopauth.Account{}, shopauth.ErrRecordNotFound
	}
	return cloneAccount(a), nil
}

func (s *Store) CreateAccount(_ context.Context, account shopauth.Account) (shopauth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.createLocked(account)
}

func (s *Store) createLocked(account shopauth.Account) (shopauth.Account, error) {
	if _, exists := s.byEmail[account.Email]; exists {
		return shopauth.Account{}, shopauth.ErrDuplicateRecord
	}
	if _, exists := s.accounts[account.ID]; exists {
		return shopauth.Account{}, shopauth.ErrDuplicateRecord
	}

	stored := cloneAccount(account)
	s.accounts[stored.ID] = stored
	s.byEmail[stored.Email] = stored.ID
	return cloneAccount(stored), nil
}

func (s *Store) UpdateAccount(_ context.Context, id string, update shopauth.AccountUpdate) (shopauth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return shopauth.Account{}, shopauth.ErrRecordNotFound
	}
	return s.applyLocked(a, update)
}

func (s *Store) ConsumeCode(_ context.Context, id string, kind shopauth.CodeKind, hash string, update shopauth.AccountUpdate) (shopauth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return shopauth.Account{}, shopauth.ErrRecordNotFound
	}

	var current *shopauth.IssuedCode
	switch kind {
	case shopauth.CodeVerification:
		current = a.VerificationCode
	case shopauth.CodeForgotPassword:
		current = a.ForgotPasswordCode
	}
	if current == nil || current.Hash != hash {
		return shopauth.Account{}, shopauth.ErrRecordNotFound
	}

	return s.applyLocked(a, update)
}

func (s *Store) applyLocked(a shopauth.Account, u shopauth.AccountUpdate) (shopauth.Account, error) {
	if u.Email != nil && *u.Email != a.Email {
		if _, taken := s.byEmail[*u.Email]; taken {
			return shopauth.Account{}, shopauth.ErrDuplicateRecord
		}
		delete(s.byEmail, a.Email)
		a.Email = *u.Email
		s.byEmail[a.Email] = a.ID
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
		c := *u.SetVerificationCode
		a.VerificationCode = &c
	}
	if u.ClearVerificationCode {
		a.VerificationCode = nil
	}
	if u.SetForgotPasswordCode != nil {
		c := *u.SetForgotPasswordCode
		a.ForgotPasswordCode = &c
	}
	if u.ClearForgotPasswordCode {
		a.ForgotPasswordCode = nil
	}
	a.UpdatedAt = time.Now().UTC()

	s.accounts[a.ID] = a
	return cloneAccount(a), nil
}

func (s *Store) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return shopauth.ErrRecordNotFound
	}
	delete(s.accounts, id)
	delete(s.byEmail, a.Email)
	return nil
}

func (s *Store) ListAccounts(_ context.Context, opts shopauth.ListOptions) ([]shopauth.Account, error) {
	s.mu.RLock()
	all := make([]shopauth.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		all = append(all, cloneAccount(a))
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	if opts.Offset >= len(all) {
		return []shopauth.Account{}, nil
	}
	all = all[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(all) {
		all = all[:opts.Limit]
	}
	return all, nil
}

func (s *Store) AccountStats(_ context.Context) (shopauth.AccountStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := shopauth.AccountStats{
		Total:   int64(len(s.accounts)),
		Pending: int64(len(s.pending)),
		ByRole:  map[shopauth.Role]int64{},
	}
	for _, a := range s.accounts {
		if a.Verified {
			stats.Verified++
		}
		stats.ByRole[a.Role]++
	}
	return stats, nil
}

func (s *Store) FindPending(_ context.Context, email string) (shopauth.PendingAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pending[email]
	if !ok {
		return shopauth.PendingAccount{}, shopauth.ErrRecordNotFound
	}
	return p, nil
}

func (s *Store) CreatePending(_ context.Context, pending shopauth.PendingAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pending[pending.Email]; exists {
		return shopauth.ErrDuplicateRecord
	}
	s.pending[pending.Email] = pending
	return nil
}

func (s *Store) ReplacePendingOTP(_ context.Context, email, otpHash string, issuedAt, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[email]
	if !ok {
		return shopauth.ErrRecordNotFound
	}
	p.OTPHash = otpHash
	p.OTPIssuedAt = issuedAt
	p.OTPExpiresAt = expiresAt
	s.pending[email] = p
	return nil
}

func (s *Store) DeletePending(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[email]; !ok {
		return shopauth.ErrRecordNotFound
	}
	delete(s.pending, email)
	return nil
}

func (s *Store) DeletePendingIfExpired(_ context.Context, email string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[email]
	if !ok || !p.Expired(now) {
		return false, nil
	}
	delete(s.pending, email)
	return true, nil
}

func (s *Store) DeleteExpiredPending(_ context.Context, createdBefore, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for email, p := range s.pending {
		if p.CreatedAt.Before(createdBefore) && p.Expired(now) {
			delete(s.pending, email)
			removed++
		}
	}
	return removed, nil
}

func (s *Store) PromotePending(_ context.Context, email, otpHash string, account shopauth.Account) (shopauth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[email]
	if !ok || p.OTPHash != otpHash {
		return shopauth.Account{}, shopauth.ErrRecordNotFound
	}

	created, err := s.createLocked(account)
	if err != nil {
		return shopauth.Account{}, err
	}
	delete(s.pending, email)
	return created, nil
}

func cloneAccount(a shopauth.Account) shopauth.Account {
	if a.VerificationCode != nil {
		c := *a.VerificationCode
		a.VerificationCode = &c
	}
	if a.ForgotPasswordCode != nil {
		c := *a.ForgotPasswordCode
		a.ForgotPasswordCode = &c
	}
	return a
}
