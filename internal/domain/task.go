package domain

import "time"

// Task is a single to-do item owned by exactly one user. Tasks are only ever
// visible and mutable through their owner's identity.
type Task struct {
	ID          string
	Description string
	Completed   bool
	OwnerID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
