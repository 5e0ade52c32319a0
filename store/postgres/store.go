package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/shopauth"
	"github.com/MrEthical07/shopauth/store/postgres/migrations"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const uniqueViolation = "23505"

const accountColumns = `id, email, name, password_hash, role, verified, photo_url,
	verification_code_hash, verification_code_issued_at,
	forgot_code_hash, forgot_code_issued_at,
	created_at, updated_at`

const pendingColumns = `email, name, password_hash, otp_hash, otp_issued_at, otp_expires_at, created_at`

// Store is a PostgreSQL-backed credential store.
type Store struct {
	db *sql.DB
}

var _ shopauth.CredentialStore = (*Store)(nil)

// Open connects to dsn with the pgx driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return New(db), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("migration dialect: %w", err)
	}
	if err := gooseUpContext(ctx, s.db, "."); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (shopauth.Account, error) {
	var (
		a                         shopauth.Account
		role                      string
		verifyHash, forgotHash    sql.NullString
		verifyIssued, forgotIssue sql.NullTime
	)
	err := row.Scan(
		&a.ID, &a.Email, &a.Name, &a.PasswordHash, &role, &a.Verified, &a.PhotoURL,
		&verifyHash, &verifyIssued,
		&forgotHash, &forgotIssue,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return shopauth.Account{}, err
	}
	a.Role = shopauth.Role(role)
	a.VerificationCode = issuedCode(verifyHash, verifyIssued)
	a.ForgotPasswordCode = issuedCode(forgotHash, forgotIssue)
	return a, nil
}

func issuedCode(hash sql.NullString, issuedAt sql.NullTime) *shopauth.IssuedCode {
	if !hash.Valid || !issuedAt.Valid {
		return nil
	}
	return &shopauth.IssuedCode{Hash: hash.String, IssuedAt: issuedAt.Time}
}

func scanPending(row rowScanner) (shopauth.PendingAccount, error) {
	var p shopauth.PendingAccount
	err := row.Scan(&p.Email, &p.Name, &p.PasswordHash, &p.OTPHash, &p.OTPIssuedAt, &p.OTPExpiresAt, &p.CreatedAt)
	return p, err
}

// mapErr translates driver errors onto the store sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return shopauth.ErrRecordNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", shopauth.ErrDuplicateRecord, pgErr.ConstraintName)
	}
	return fmt.Errorf("db error: %w", err)
}

func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return shopauth.ErrRecordNotFound
	}
	return nil
}

func (s *Store) FindAccountByEmail(ctx context.Context, email string) (shopauth.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`

	a, err := scanAccount(s.db.QueryRowContext(ctx, query, email))
	if err != nil {
		return shopauth.Account{}, mapErr(err)
	}
	return a, nil
}

func (s *Store) FindAccountByID(ctx context.Context, id string) (shopauth.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	a, err := scanAccount(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return shopauth.Account{}, mapErr(err)
	}
	return a, nil
}

func (s *Store) CreateAccount(ctx context.Context, account shopauth.Account) (shopauth.Account, error) {
	return createAccount(ctx, s.db, account)
}

func createAccount(ctx context.Context, db DBTX, a shopauth.Account) (shopauth.Account, error) {
	query := `INSERT INTO accounts (id, email, name, password_hash, role, verified, photo_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + accountColumns

	created, err := scanAccount(db.QueryRowContext(ctx, query,
		a.ID, a.Email, a.Name, a.PasswordHash, string(a.Role), a.Verified, a.PhotoURL, a.CreatedAt, a.UpdatedAt))
	if err != nil {
		return shopauth.Account{}, mapErr(err)
	}
	return created, nil
}

// updateClause renders the SET list for u. Placeholders start at $1.
func updateClause(u shopauth.AccountUpdate) (string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}

	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.Email != nil {
		add("email", *u.Email)
	}
	if u.PasswordHash != nil {
		add("password_hash", *u.PasswordHash)
	}
	if u.Role != nil {
		add("role", string(*u.Role))
	}
	if u.Verified != nil {
		add("verified", *u.Verified)
	}
	if u.PhotoURL != nil {
		add("photo_url", *u.PhotoURL)
	}
	switch {
	case u.ClearVerificationCode:
		sets = append(sets, "verification_code_hash = NULL", "verification_code_issued_at = NULL")
	case u.SetVerificationCode != nil:
		add("verification_code_hash", u.SetVerificationCode.Hash)
		add("verification_code_issued_at", u.SetVerificationCode.IssuedAt)
	}
	switch {
	case u.ClearForgotPasswordCode:
		sets = append(sets, "forgot_code_hash = NULL", "forgot_code_issued_at = NULL")
	case u.SetForgotPasswordCode != nil:
		add("forgot_code_hash", u.SetForgotPasswordCode.Hash)
		add("forgot_code_issued_at", u.SetForgotPasswordCode.IssuedAt)
	}
	sets = append(sets, "updated_at = now()")

	return strings.Join(sets, ", "), args
}

func (s *Store) UpdateAccount(ctx context.Context, id string, update shopauth.AccountUpdate) (shopauth.Account, error) {
	set, args := updateClause(update)
	args = append(args, id)
	query := `UPDATE accounts SET ` + set + ` WHERE id = $` + strconv.Itoa(len(args)) + ` RETURNING ` + accountColumns

	a, err := scanAccount(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return shopauth.Account{}, mapErr(err)
	}
	return a, nil
}

func (s *Store) ConsumeCode(ctx context.Context, id string, kind shopauth.CodeKind, hash string, update shopauth.AccountUpdate) (shopauth.Account, error) {
	var column string
	switch kind {
	case shopauth.CodeVerification:
		column = "verification_code_hash"
	case shopauth.CodeForgotPassword:
		column = "forgot_code_hash"
	default:
		return shopauth.Account{}, fmt.Errorf("unknown code kind %d", kind)
	}

	set, args := updateClause(update)
	args = append(args, id, hash)
	query := `UPDATE accounts SET ` + set +
		` WHERE id = $` + strconv.Itoa(len(args)-1) +
		` AND ` + column + ` = $` + strconv.Itoa(len(args)) +
		` RETURNING ` + accountColumns

	a, err := scanAccount(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return shopauth.Account{}, mapErr(err)
	}
	return a, nil
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	return affectedOne(res)
}

func (s *Store) ListAccounts(ctx context.Context, opts shopauth.ListOptions) ([]shopauth.Account, error) {
	var limit any
	if opts.Limit > 0 {
		limit = opts.Limit
	}
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at, id LIMIT $1 OFFSET $2`

	rows, err := s.db.QueryContext(ctx, query, limit, opts.Offset)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := []shopauth.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

func (s *Store) AccountStats(ctx context.Context) (shopauth.AccountStats, error) {
	stats := shopauth.AccountStats{ByRole: map[shopauth.Role]int64{}}

	err := s.db.QueryRowContext(ctx,
		`SELECT count(*), count(*) FILTER (WHERE verified) FROM accounts`,
	).Scan(&stats.Total, &stats.Verified)
	if err != nil {
		return shopauth.AccountStats{}, mapErr(err)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM pending_signups`).Scan(&stats.Pending); err != nil {
		return shopauth.AccountStats{}, mapErr(err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT role, count(*) FROM accounts GROUP BY role`)
	if err != nil {
		return shopauth.AccountStats{}, mapErr(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			role string
			n    int64
		)
		if err := rows.Scan(&role, &n); err != nil {
			return shopauth.AccountStats{}, mapErr(err)
		}
		stats.ByRole[shopauth.Role(role)] = n
	}
	if err := rows.Err(); err != nil {
		return shopauth.AccountStats{}, mapErr(err)
	}
	return stats, nil
}

func (s *Store) FindPending(ctx context.Context, email string) (shopauth.PendingAccount, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_signups WHERE email = $1`

	p, err := scanPending(s.db.QueryRowContext(ctx, query, email))
	if err != nil {
		return shopauth.PendingAccount{}, mapErr(err)
	}
	return p, nil
}

func (s *Store) CreatePending(ctx context.Context, p shopauth.PendingAccount) error {
	query := `INSERT INTO pending_signups (` + pendingColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query,
		p.Email, p.Name, p.PasswordHash, p.OTPHash, p.OTPIssuedAt, p.OTPExpiresAt, p.CreatedAt)
	return mapErr(err)
}

func (s *Store) ReplacePendingOTP(ctx context.Context, email, otpHash string, issuedAt, expiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pending_signups SET otp_hash = $1, otp_issued_at = $2, otp_expires_at = $3 WHERE email = $4`,
		otpHash, issuedAt, expiresAt, email)
	if err != nil {
		return mapErr(err)
	}
	return affectedOne(res)
}

func (s *Store) DeletePending(ctx context.Context, email string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pending_signups WHERE email = $1`, email)
	if err != nil {
		return mapErr(err)
	}
	return affectedOne(res)
}

func (s *Store) DeletePendingIfExpired(ctx context.Context, email string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_signups WHERE email = $1 AND otp_expires_at < $2`, email, now)
	if err != nil {
		return false, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (s *Store) DeleteExpiredPending(ctx context.Context, createdBefore, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_signups WHERE created_at < $1 AND otp_expires_at < $2`, createdBefore, now)
	if err != nil {
		return 0, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// PromotePending deletes the matching pending row and inserts account in one
// transaction. A hash that no longer matches yields ErrRecordNotFound.
func (s *Store) PromotePending(ctx context.Context, email, otpHash string, account shopauth.Account) (shopauth.Account, error) {
	var created shopauth.Account

	err := withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM pending_signups WHERE email = $1 AND otp_hash = $2`, email, otpHash)
		if err != nil {
			return mapErr(err)
		}
		if err := affectedOne(res); err != nil {
			return err
		}

		created, err = createAccount(ctx, tx, account)
		return err
	})
	if err != nil {
		return shopauth.Account{}, err
	}
	return created, nil
}
