package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"task-server/internal/apperr"
	"task-server/internal/domain"
	"task-server/internal/query"
	"task-server/internal/repository"
	"task-server/internal/storage"
)

// UserUpdateWhitelist is the fixed set of fields a user mutation may change,
// for both self-service and admin updates. Role is deliberately absent.
var UserUpdateWhitelist = []string{"name", "email", "password", "age"}

// UserService covers user reads, whitelisted mutation, avatar storage, and
// the cascade that removes an account.
type UserService interface {
	// BuildUser validates a profile and returns an unpersisted user record;
	// the resource engine inserts it.
	BuildUser(input SignupInput) (*domain.User, error)
	ApplyUpdates(user *domain.User, updates map[string]any) error
	TasksFor(ctx context.Context, userID string) ([]domain.Task, error)

	// DeleteUser removes the user's tasks, then the user record; sessions go
	// with the user row. The avatar object is removed best-effort afterwards.
	DeleteUser(ctx context.Context, user *domain.User) error

	SaveAvatar(ctx context.Context, user *domain.User, data []byte, contentType string) error
	GetAvatar(ctx context.Context, user *domain.User) (*storage.Object, error)
	DeleteAvatar(ctx context.Context, user *domain.User) error
}

type userService struct {
	users      repository.UserRepository
	tasks      repository.TaskRepository
	avatars    storage.Service
	bucket     string
	keyPrefix  string
	bcryptCost int
	logger     *logrus.Logger
}

func NewUserService(
	users repository.UserRepository,
	tasks repository.TaskRepository,
	avatars storage.Service,
	bucket, keyPrefix string,
	bcryptCost int,
	logger *logrus.Logger,
) UserService {
	return &userService{
		users:      users,
		tasks:      tasks,
		avatars:    avatars,
		bucket:     bucket,
		keyPrefix:  strings.Trim(keyPrefix, "/"),
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

func (s *userService) BuildUser(input SignupInput) (*domain.User, error) {
	return BuildUser(input, s.bcryptCost)
}

// ApplyUpdates mutates whitelisted fields in place. A password change
// rehashes and stamps PasswordChangedAt; it never touches the session
// registry, stale tokens are rejected lazily by the access guard.
func (s *userService) ApplyUpdates(user *domain.User, updates map[string]any) error {
	for _, field := range UserUpdateWhitelist {
		value, present := updates[field]
		if !present {
			continue
		}
		switch field {
		case "name":
			name, ok := value.(string)
			if !ok || strings.TrimSpace(name) == "" {
				return apperr.Validation("please provide your name")
			}
			user.Name = strings.TrimSpace(name)
		case "email":
			raw, ok := value.(string)
			if !ok {
				return apperr.Validation("please provide a valid email")
			}
			email := NormalizeEmail(raw)
			if _, err := mail.ParseAddress(email); err != nil {
				return apperr.Validation("please provide a valid email")
			}
			user.Email = email
		case "password":
			plaintext, ok := value.(string)
			if !ok {
				return apperr.Validation("please provide a valid password")
			}
			hash, err := HashPassword(plaintext, s.bcryptCost)
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			user.PasswordHash = hash
			user.PasswordChangedAt = &now
		case "age":
			age, err := intValue(value)
			if err != nil || age < 0 {
				return apperr.Validation("age must be a positive number")
			}
			user.Age = age
		}
	}
	return nil
}

func (s *userService) TasksFor(ctx context.Context, userID string) ([]domain.Task, error) {
	plan := query.Plan{
		Sort:  []query.SortKey{{Field: "createdAt", Desc: true}},
		Limit: query.DefaultLimit,
	}
	return s.tasks.Find(ctx, repository.Filter{"ownerId": userID}, plan)
}

func (s *userService) DeleteUser(ctx context.Context, user *domain.User) error {
	// Tasks go first: an interrupted cascade must not leave tasks orphaned
	// behind a deleted owner.
	if err := s.tasks.DeleteMany(ctx, repository.Filter{"ownerId": user.ID}); err != nil {
		return err
	}
	if err := s.users.DeleteOne(ctx, repository.Filter{"id": user.ID}); err != nil {
		return err
	}

	if user.AvatarKey != "" && s.avatars != nil {
		if err := s.avatars.DeleteObject(ctx, s.bucket, user.AvatarKey); err != nil {
			s.logger.Warnf("delete avatar for removed user %s: %v", user.ID, err)
		}
	}
	return nil
}

func (s *userService) SaveAvatar(ctx context.Context, user *domain.User, data []byte, contentType string) error {
	if s.avatars == nil {
		return apperr.Storage("avatar storage not configured", nil)
	}

	key := s.avatarKey(user.ID)
	if err := s.avatars.PutObject(ctx, s.bucket, key, data, contentType); err != nil {
		return err
	}

	user.AvatarKey = key
	return s.users.Save(ctx, user)
}

func (s *userService) GetAvatar(ctx context.Context, user *domain.User) (*storage.Object, error) {
	if user.AvatarKey == "" {
		return nil, apperr.NotFound("no avatar found for that user")
	}
	if s.avatars == nil {
		return nil, apperr.Storage("avatar storage not configured", nil)
	}
	return s.avatars.GetObject(ctx, s.bucket, user.AvatarKey)
}

func (s *userService) DeleteAvatar(ctx context.Context, user *domain.User) error {
	if user.AvatarKey == "" {
		return apperr.NotFound("no avatar found for that user")
	}
	if s.avatars == nil {
		return apperr.Storage("avatar storage not configured", nil)
	}

	if err := s.avatars.DeleteObject(ctx, s.bucket, user.AvatarKey); err != nil {
		return err
	}
	user.AvatarKey = ""
	return s.users.Save(ctx, user)
}

func (s *userService) avatarKey(userID string) string {
	if s.keyPrefix == "" {
		return userID
	}
	return fmt.Sprintf("%s/%s", s.keyPrefix, userID)
}

// intValue accepts JSON numbers (float64) and ints, rejecting fractions.
func intValue(value any) (int, error) {
	switch v := value.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("not an integer")
		}
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, fmt.Errorf("not a number")
	}
}
