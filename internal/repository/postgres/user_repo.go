package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/danaom/internal/errs"
	"github.com/and161185/danaom/internal/model"
	"github.com/jackc/pgx/v5"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, name, email, phone, address, registration_date`

// InsertUser inserts a user row, silently skipping a duplicate (email, address).
func (r *UserRepo) InsertUser(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (name, email, phone, address, registration_date)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (email, address) DO NOTHING
RETURNING id`
	var id int64
	err := r.db.Pool.QueryRow(ctx, q, u.Name, u.Email, u.Phone, u.Address, u.RegistrationDate).Scan(&id)
	switch {
	case err == nil:
		u.ID = id
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return nil
	default:
		return fmt.Errorf("insert user: %w", err)
	}
}

// GetUserByEmail selects a user by email.
func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email=$1 ORDER BY id LIMIT 1`
	return r.getOne(ctx, q, email)
}

// GetUserByID selects a user by ID.
func (r *UserRepo) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return r.getOne(ctx, q, id)
}

// LastUser selects the user with the highest ID.
func (r *UserRepo) LastUser(ctx context.Context) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users ORDER BY id DESC LIMIT 1`
	return r.getOne(ctx, q)
}

func (r *UserRepo) getOne(ctx context.Context, q string, args ...any) (*model.User, error) {
	row := r.db.Pool.QueryRow(ctx, q, args...)
	var u model.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Address, &u.RegistrationDate); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

// ListUsers returns every user ordered by name.
func (r *UserRepo) ListUsers(ctx context.Context) ([]model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users ORDER BY name ASC`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Address, &u.RegistrationDate); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// UpdateUser overwrites every column of the row with u.ID.
func (r *UserRepo) UpdateUser(ctx context.Context, u *model.User) error {
	const q = `
UPDATE users
SET name=$2, email=$3, phone=$4, address=$5, registration_date=$6
WHERE id=$1`
	_, err := r.db.Pool.Exec(ctx, q, u.ID, u.Name, u.Email, u.Phone, u.Address, u.RegistrationDate)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// UpsertUser inserts u, or overwrites the row with u.ID when it already exists.
func (r *UserRepo) UpsertUser(ctx context.Context, u *model.User) error {
	if u.ID == 0 {
		const ins = `
INSERT INTO users (name, email, phone, address, registration_date)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`
		err := r.db.Pool.QueryRow(ctx, ins, u.Name, u.Email, u.Phone, u.Address, u.RegistrationDate).Scan(&u.ID)
		if isUniqueViolation(err) {
			return errs.ErrAlreadyExists
		}
		return err
	}

	// An explicit id bypasses the serial sequence, so move the sequence past
	// it in the same statement or a later InsertUser collides on the key.
	const ups = `
WITH up AS (
    INSERT INTO users (id, name, email, phone, address, registration_date)
    VALUES ($1, $2, $3, $4, $5, $6)
    ON CONFLICT (id) DO UPDATE SET
        name=EXCLUDED.name, email=EXCLUDED.email, phone=EXCLUDED.phone,
        address=EXCLUDED.address, registration_date=EXCLUDED.registration_date
    RETURNING id
)
SELECT setval(pg_get_serial_sequence('users', 'id'), GREATEST(up.id, (SELECT max(id) FROM users)))
FROM up`
	var seq int64
	err := r.db.Pool.QueryRow(ctx, ups, u.ID, u.Name, u.Email, u.Phone, u.Address, u.RegistrationDate).Scan(&seq)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// DeleteUser removes u; wishlist rows go with it via ON DELETE CASCADE.
func (r *UserRepo) DeleteUser(ctx context.Context, u *model.User) error {
	return r.DeleteUserByID(ctx, u.ID)
}

// DeleteUserByID removes the user with id.
func (r *UserRepo) DeleteUserByID(ctx context.Context, id int64) error {
	const q = `DELETE FROM users WHERE id=$1`
	_, err := r.db.Pool.Exec(ctx, q, id)
	return err
}
