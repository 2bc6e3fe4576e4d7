// Package repository defines persistence contracts consumed by services and
// the resource engine. Implementations live in subpackages.
package repository

import (
	"context"

	"task-server/internal/domain"
	"task-server/internal/query"
)

// Filter is an equality constraint set, one entry per field. It is the shape
// of scope filters: mandatory constraints a caller cannot override through
// query parameters.
type Filter map[string]any

// Collection is the generic persistence contract the resource engine builds
// on. FindOne and DeleteOne fail with a not-found error when nothing
// matches; Find applies the plan on top of the base filter, and the base
// filter wins over plan conditions on the same field.
type Collection[T any] interface {
	FindOne(ctx context.Context, filter Filter) (*T, error)
	Find(ctx context.Context, base Filter, plan query.Plan) ([]T, error)
	Create(ctx context.Context, record *T) error
	Save(ctx context.Context, record *T) error
	DeleteOne(ctx context.Context, filter Filter) error
	DeleteMany(ctx context.Context, filter Filter) error
}

// UserRepository persists users and their session registry. Session tokens
// are appended and removed one row at a time so concurrent logins from
// different devices never overwrite each other.
type UserRepository interface {
	Collection[domain.User]
	Init(ctx context.Context) error

	// FindByIDAndToken resolves a user only when the token is registered
	// for that user, in a single lookup.
	FindByIDAndToken(ctx context.Context, id, token string) (*domain.User, error)

	RegisterToken(ctx context.Context, userID, token string) error
	RevokeToken(ctx context.Context, userID, token string) error
	RevokeAllTokens(ctx context.Context, userID string) error
}

// TaskRepository persists tasks.
type TaskRepository interface {
	Collection[domain.Task]
	Init(ctx context.Context) error
}
