package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/user"
)

const userColumns = `id, name, email, role, address, COALESCE(payment_method, ''), created_at`

const (
	getUserSQL = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	listUsersSQL = `SELECT ` + userColumns + ` FROM users
		WHERE ($1 = '' OR name ILIKE $2)
		ORDER BY created_at DESC, id LIMIT $3 OFFSET $4`

	countUsersFilteredSQL = `SELECT count(*) FROM users WHERE ($1 = '' OR name ILIKE $2)`

	upsertUserSQL = `INSERT INTO users (id, name, email, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role
		RETURNING id, created_at`

	setAddressSQL       = `UPDATE users SET address = $2, updated_at = now() WHERE id = $1`
	setPaymentMethodSQL = `UPDATE users SET payment_method = $2, updated_at = now() WHERE id = $1`
	setProfileSQL       = `UPDATE users SET name = $2, email = $3, updated_at = now() WHERE id = $1`
	setNameRoleSQL      = `UPDATE users SET name = $2, role = $3, updated_at = now() WHERE id = $1`
	deleteUserSQL       = `DELETE FROM users WHERE id = $1`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Get returns user id.
func (r *UserRepository) Get(ctx context.Context, id string) (*user.User, error) {
	rows, err := r.pool.Query(ctx, getUserSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting user %q: %w", id, err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user %q: %w", id, err)
	}
	return &u, nil
}

// List returns a page of users whose name contains query.
func (r *UserRepository) List(ctx context.Context, query string, limit, offset int) ([]user.User, int, error) {
	pattern := likePattern(query)

	total, err := countRows(ctx, r.pool, countUsersFilteredSQL, query, pattern)
	if err != nil {
		return nil, 0, fmt.Errorf("counting users: %w", err)
	}

	rows, err := r.pool.Query(ctx, listUsersSQL, query, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing users: %w", err)
	}
	users, err := pgx.CollectRows(rows, scanUser)
	if err != nil {
		return nil, 0, fmt.Errorf("listing users: %w", err)
	}
	return users, total, nil
}

// Create inserts u, or updates name and role of the user with the same email.
// The stored id is written back to u.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	if u.Role == "" {
		u.Role = auth.RoleUser
	}
	err := r.pool.QueryRow(ctx, upsertUserSQL, u.ID, u.Name, u.Email, string(u.Role)).
		Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating user %q: %w", u.Email, err)
	}
	return nil
}

// SetAddress stores the shipping address of user id.
func (r *UserRepository) SetAddress(ctx context.Context, id string, a user.Address) error {
	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshaling address: %w", err)
	}
	return r.update(ctx, id, setAddressSQL, b)
}

// SetPaymentMethod stores the preferred payment method of user id.
func (r *UserRepository) SetPaymentMethod(ctx context.Context, id string, m user.PaymentMethod) error {
	return r.update(ctx, id, setPaymentMethodSQL, string(m))
}

// SetProfile changes the name and email of user id.
func (r *UserRepository) SetProfile(ctx context.Context, id, name, email string) error {
	return r.update(ctx, id, setProfileSQL, name, email)
}

// SetNameRole changes the name and role of user id.
func (r *UserRepository) SetNameRole(ctx context.Context, id, name string, role auth.Role) error {
	return r.update(ctx, id, setNameRoleSQL, name, string(role))
}

// Delete removes user id. Carts and orders cascade.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return r.update(ctx, id, deleteUserSQL)
}

func (r *UserRepository) update(ctx context.Context, id, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, append([]any{id}, args...)...)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return user.ErrEmailTaken
		}
		return fmt.Errorf("updating user %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.CollectableRow) (user.User, error) {
	var (
		u       user.User
		role    string
		method  string
		address []byte
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &address, &method, &u.CreatedAt); err != nil {
		return u, err
	}
	u.Role = auth.Role(role)
	u.PaymentMethod = user.PaymentMethod(method)

	if len(address) > 0 {
		var a user.Address
		if err := json.Unmarshal(address, &a); err != nil {
			return u, fmt.Errorf("unmarshaling address: %w", err)
		}
		u.Address = &a
	}
	return u, nil
}
