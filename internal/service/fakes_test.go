package service

import (
	"context"
	"slices"
	"sync"

	"task-server/internal/apperr"
	"task-server/internal/domain"
	"task-server/internal/query"
	"task-server/internal/repository"
)

// fakeUserRepo is an in-memory repository.UserRepository. It returns copies
// so tests observe only persisted state, like a real store would.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*domain.User{}}
}

func (f *fakeUserRepo) Init(context.Context) error { return nil }

func (f *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return apperr.Validation("email already in use")
		}
	}
	f.users[user.ID] = copyUser(user)
	return nil
}

func (f *fakeUserRepo) FindOne(_ context.Context, filter repository.Filter) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if matchUser(user, filter) {
			return copyUser(user), nil
		}
	}
	return nil, apperr.NotFound("no user found with that ID")
}

func (f *fakeUserRepo) FindByIDAndToken(_ context.Context, id, token string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok || !slices.Contains(user.ActiveTokens, token) {
		return nil, apperr.NotFound("no user found with that ID")
	}
	return copyUser(user), nil
}

func (f *fakeUserRepo) Find(_ context.Context, base repository.Filter, _ query.Plan) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.User
	for _, user := range f.users {
		if matchUser(user, base) {
			out = append(out, *copyUser(user))
		}
	}
	return out, nil
}

func (f *fakeUserRepo) Save(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.users[user.ID]
	if !ok {
		return apperr.NotFound("no user found with that ID")
	}
	tokens := stored.ActiveTokens
	f.users[user.ID] = copyUser(user)
	// Save never touches the session registry
	f.users[user.ID].ActiveTokens = tokens
	return nil
}

func (f *fakeUserRepo) DeleteOne(_ context.Context, filter repository.Filter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, user := range f.users {
		if matchUser(user, filter) {
			delete(f.users, id)
			return nil
		}
	}
	return apperr.NotFound("no user found with that ID")
}

func (f *fakeUserRepo) DeleteMany(context.Context, repository.Filter) error { return nil }

func (f *fakeUserRepo) RegisterToken(_ context.Context, userID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return apperr.NotFound("no user found with that ID")
	}
	user.ActiveTokens = append(user.ActiveTokens, token)
	return nil
}

func (f *fakeUserRepo) RevokeToken(_ context.Context, userID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return nil
	}
	for i, existing := range user.ActiveTokens {
		if existing == token {
			user.ActiveTokens = append(user.ActiveTokens[:i], user.ActiveTokens[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeUserRepo) RevokeAllTokens(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user, ok := f.users[userID]; ok {
		user.ActiveTokens = nil
	}
	return nil
}

// stored returns the persisted record, for assertions.
func (f *fakeUserRepo) stored(id string) *domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user, ok := f.users[id]; ok {
		return copyUser(user)
	}
	return nil
}

func matchUser(user *domain.User, filter repository.Filter) bool {
	for field, value := range filter {
		switch field {
		case "id":
			if user.ID != value {
				return false
			}
		case "email":
			if user.Email != value {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func copyUser(user *domain.User) *domain.User {
	clone := *user
	clone.ActiveTokens = slices.Clone(user.ActiveTokens)
	if user.PasswordChangedAt != nil {
		t := *user.PasswordChangedAt
		clone.PasswordChangedAt = &t
	}
	return &clone
}

// fakeTaskRepo is an in-memory repository.TaskRepository scoped by ownerId.
type fakeTaskRepo struct {
	mu       sync.Mutex
	tasks    map[string]*domain.Task
	lastPlan query.Plan
	lastBase repository.Filter
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: map[string]*domain.Task{}}
}

func (f *fakeTaskRepo) Init(context.Context) error { return nil }

func (f *fakeTaskRepo) Create(_ context.Context, task *domain.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *task
	f.tasks[task.ID] = &clone
	return nil
}

func (f *fakeTaskRepo) FindOne(_ context.Context, filter repository.Filter) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, task := range f.tasks {
		if matchTask(task, filter) {
			clone := *task
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("no task found with that ID")
}

func (f *fakeTaskRepo) Find(_ context.Context, base repository.Filter, plan query.Plan) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPlan = plan
	f.lastBase = base
	var out []domain.Task
	for _, task := range f.tasks {
		if matchTask(task, base) {
			out = append(out, *task)
		}
	}
	return out, nil
}

func (f *fakeTaskRepo) Save(_ context.Context, task *domain.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[task.ID]; !ok {
		return apperr.NotFound("no task found with that ID")
	}
	clone := *task
	f.tasks[task.ID] = &clone
	return nil
}

func (f *fakeTaskRepo) DeleteOne(_ context.Context, filter repository.Filter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, task := range f.tasks {
		if matchTask(task, filter) {
			delete(f.tasks, id)
			return nil
		}
	}
	return apperr.NotFound("no task found with that ID")
}

func (f *fakeTaskRepo) DeleteMany(_ context.Context, filter repository.Filter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, task := range f.tasks {
		if matchTask(task, filter) {
			delete(f.tasks, id)
		}
	}
	return nil
}

func (f *fakeTaskRepo) stored(id string) *domain.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	if task, ok := f.tasks[id]; ok {
		clone := *task
		return &clone
	}
	return nil
}

func planAll() query.Plan {
	return query.Plan{Limit: query.DefaultLimit}
}

func matchTask(task *domain.Task, filter repository.Filter) bool {
	for field, value := range filter {
		switch field {
		case "id":
			if task.ID != value {
				return false
			}
		case "ownerId":
			if task.OwnerID != value {
				return false
			}
		default:
			return false
		}
	}
	return true
}
