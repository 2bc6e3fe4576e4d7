package service

import (
	"strings"

	"github.com/google/uuid"

	"task-server/internal/apperr"
	"task-server/internal/domain"
)

// TaskUpdateWhitelist is the fixed set of fields a task mutation may change.
var TaskUpdateWhitelist = []string{"description", "completed"}

// BuildTask validates a creation payload and forces ownership to the caller.
func BuildTask(ownerID string, payload map[string]any) (*domain.Task, error) {
	task := &domain.Task{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
	}

	raw, present := payload["description"]
	if !present {
		return nil, apperr.Validation("a task needs a description")
	}
	description, ok := raw.(string)
	if !ok || strings.TrimSpace(description) == "" {
		return nil, apperr.Validation("a task needs a description")
	}
	task.Description = strings.TrimSpace(description)

	if raw, present := payload["completed"]; present {
		completed, ok := raw.(bool)
		if !ok {
			return nil, apperr.Validation("completed must be a boolean")
		}
		task.Completed = completed
	}

	return task, nil
}

// ApplyTaskUpdates mutates whitelisted fields in place.
func ApplyTaskUpdates(task *domain.Task, updates map[string]any) error {
	for _, field := range TaskUpdateWhitelist {
		value, present := updates[field]
		if !present {
			continue
		}
		switch field {
		case "description":
			description, ok := value.(string)
			if !ok || strings.TrimSpace(description) == "" {
				return apperr.Validation("a task needs a description")
			}
			task.Description = strings.TrimSpace(description)
		case "completed":
			completed, ok := value.(bool)
			if !ok {
				return apperr.Validation("completed must be a boolean")
			}
			task.Completed = completed
		}
	}
	return nil
}
