package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolationCode = "23505"

// PostgresRepository implements Repository backed by Postgres
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new Postgres-backed user repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const userColumns = `id, email, ldap_login_id, external_subject, first_name, last_name, password_hash, role, mfa_secret, mfa_recovery_codes, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.LdapLoginID, &u.ExternalSubject, &u.FirstName, &u.LastName,
		&u.PasswordHash, &u.Role, &u.MFASecret, &u.MFARecoveryCodes,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("failed to scan user: %w", err)
	}
	return u, nil
}

// FindByID finds a user by id
func (r *PostgresRepository) FindByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// FindByEmail finds a user by email, case-insensitive
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

// FindByLdapLoginID finds a user by directory login id
func (r *PostgresRepository) FindByLdapLoginID(ctx context.Context, loginID string) (User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE ldap_login_id = $1`, loginID)
	return scanUser(row)
}

// FindByIDs returns the users matching the given ids
func (r *PostgresRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query users by ids: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Create inserts a new user. A unique-constraint violation on email maps to
// ErrEmailTaken so the provisioning path can retry the lookup.
func (r *PostgresRepository) Create(ctx context.Context, u User) (User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, ldap_login_id, external_subject, first_name, last_name, password_hash, role, mfa_secret, mfa_recovery_codes)
		 VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+userColumns,
		u.ID, u.Email, u.LdapLoginID, u.ExternalSubject, u.FirstName, u.LastName,
		u.PasswordHash, u.Role, u.MFASecret, u.MFARecoveryCodes)

	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	return created, nil
}

// CountActive counts users that have claimed their account
func (r *PostgresRepository) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM users
		 WHERE password_hash <> '' OR ldap_login_id <> '' OR external_subject <> ''`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active users: %w", err)
	}
	return n, nil
}

// ConsumeRecoveryCode removes one recovery code hash in a single
// conditional UPDATE. The WHERE clause makes the check-and-remove atomic:
// of two logins spending the same code, only one statement matches.
func (r *PostgresRepository) ConsumeRecoveryCode(ctx context.Context, id uuid.UUID, hashedCode string) (int, error) {
	var remaining int
	err := r.pool.QueryRow(ctx,
		`UPDATE users
		 SET mfa_recovery_codes = array_remove(mfa_recovery_codes, $2), updated_at = now()
		 WHERE id = $1 AND $2 = ANY(mfa_recovery_codes)
		 RETURNING cardinality(mfa_recovery_codes)`,
		id, hashedCode).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrRecoveryCodeNotFound
		}
		return 0, fmt.Errorf("failed to consume recovery code: %w", err)
	}
	return remaining, nil
}

// Save updates an existing user record
func (r *PostgresRepository) Save(ctx context.Context, u User) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET email = lower($2), ldap_login_id = $3, external_subject = $4, first_name = $5,
		     last_name = $6, password_hash = $7, role = $8, mfa_secret = $9,
		     mfa_recovery_codes = $10, updated_at = now()
		 WHERE id = $1`,
		u.ID, u.Email, u.LdapLoginID, u.ExternalSubject, u.FirstName, u.LastName,
		u.PasswordHash, u.Role, u.MFASecret, u.MFARecoveryCodes)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
