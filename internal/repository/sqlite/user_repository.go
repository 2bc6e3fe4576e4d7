package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"task-server/internal/apperr"
	"task-server/internal/domain"
	"task-server/internal/query"
	"task-server/internal/repository"
)

const createUsersSchema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	age INTEGER NOT NULL DEFAULT 0,
	role TEXT NOT NULL DEFAULT 'user',
	avatar_key TEXT NOT NULL DEFAULT '',
	password_changed_at DATETIME NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	token TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
`

const userColumns = `id, name, email, password_hash, age, role, avatar_key, password_changed_at, created_at, updated_at`

var userSchema = tableSchema{
	"id":        {name: "id", kind: colText},
	"name":      {name: "name", kind: colText},
	"email":     {name: "email", kind: colText},
	"age":       {name: "age", kind: colInt},
	"role":      {name: "role", kind: colText},
	"createdAt": {name: "created_at", kind: colTime},
	"updatedAt": {name: "updated_at", kind: colTime},
}

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersSchema); err != nil {
		return fmt.Errorf("create users schema: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (id, name, email, password_hash, age, role, avatar_key, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Age,
		string(user.Role),
		user.AvatarKey,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return apperr.Validation("email already in use")
		}
		return apperr.Storage("insert user", err)
	}
	return nil
}

func (r *UserRepository) FindOne(ctx context.Context, filter repository.Filter) (*domain.User, error) {
	where, args, err := compileWhere(userSchema, filter, nil)
	if err != nil {
		return nil, apperr.Storage("compile user filter", err)
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users`+where, args...)
	user, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadTokens(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) FindByIDAndToken(ctx context.Context, id, token string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+prefixColumns("u", userColumns)+`
FROM users u
INNER JOIN sessions s ON s.user_id = u.id
WHERE u.id = ? AND s.token = ?`,
		id, token,
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadTokens(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) Find(ctx context.Context, base repository.Filter, plan query.Plan) ([]domain.User, error) {
	where, args, err := compileWhere(userSchema, base, plan.Filter)
	if err != nil {
		return nil, apperr.Storage("compile user filter", err)
	}
	limit, limitArgs := compileLimit(plan)
	args = append(args, limitArgs...)

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users`+where+compileOrder(userSchema, plan.Sort)+limit,
		args...,
	)
	if err != nil {
		return nil, apperr.Storage("query users", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("iterate users", err)
	}

	for i := range users {
		if err := r.loadTokens(ctx, &users[i]); err != nil {
			return nil, err
		}
	}
	return users, nil
}

func (r *UserRepository) Save(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = time.Now().UTC()

	var changedAt any
	if user.PasswordChangedAt != nil {
		changedAt = user.PasswordChangedAt.UTC()
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET name = ?, email = ?, password_hash = ?, age = ?, role = ?, avatar_key = ?, password_changed_at = ?, updated_at = ?
WHERE id = ?`,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Age,
		string(user.Role),
		user.AvatarKey,
		changedAt,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return apperr.Validation("email already in use")
		}
		return apperr.Storage("update user", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("no user found with that ID")
	}
	return nil
}

func (r *UserRepository) DeleteOne(ctx context.Context, filter repository.Filter) error {
	where, args, err := compileWhere(userSchema, filter, nil)
	if err != nil {
		return apperr.Storage("compile user filter", err)
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM users`+where, args...)
	if err != nil {
		return apperr.Storage("delete user", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("no user found with that ID")
	}
	return nil
}

func (r *UserRepository) DeleteMany(ctx context.Context, filter repository.Filter) error {
	where, args, err := compileWhere(userSchema, filter, nil)
	if err != nil {
		return apperr.Storage("compile user filter", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users`+where, args...); err != nil {
		return apperr.Storage("delete users", err)
	}
	return nil
}

// RegisterToken appends a session row. A plain INSERT keeps concurrent
// logins from different devices from overwriting each other.
func (r *UserRepository) RegisterToken(ctx context.Context, userID, token string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO sessions (user_id, token, created_at)
VALUES (?, ?, ?)`,
		userID, token, time.Now().UTC(),
	)
	if err != nil {
		return apperr.Storage("register session token", err)
	}
	return nil
}

func (r *UserRepository) RevokeToken(ctx context.Context, userID, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ? AND token = ?`, userID, token)
	if err != nil {
		return apperr.Storage("revoke session token", err)
	}
	return nil
}

func (r *UserRepository) RevokeAllTokens(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		return apperr.Storage("revoke all session tokens", err)
	}
	return nil
}

// loadTokens fills ActiveTokens in login order.
func (r *UserRepository) loadTokens(ctx context.Context, user *domain.User) error {
	rows, err := r.db.QueryContext(ctx, `SELECT token FROM sessions WHERE user_id = ? ORDER BY id ASC`, user.ID)
	if err != nil {
		return apperr.Storage("query session tokens", err)
	}
	defer rows.Close()

	user.ActiveTokens = nil
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return apperr.Storage("scan session token", err)
		}
		user.ActiveTokens = append(user.ActiveTokens, token)
	}
	if err := rows.Err(); err != nil {
		return apperr.Storage("iterate session tokens", err)
	}
	return nil
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var (
		user      domain.User
		role      string
		changedAt sql.NullTime
	)
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Age,
		&role,
		&user.AvatarKey,
		&changedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("no user found with that ID")
		}
		return nil, apperr.Storage("scan user", err)
	}
	user.Role = domain.Role(role)
	if changedAt.Valid {
		t := changedAt.Time
		user.PasswordChangedAt = &t
	}
	return &user, nil
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i := range parts {
		parts[i] = alias + "." + parts[i]
	}
	return strings.Join(parts, ", ")
}
