package domain

import (
	"time"

	"github.com/google/uuid"
)

// Organization represents a tenant entity.
type Organization struct {
	ID           uuid.UUID
	Name         string
	Slug         string
	ContactName  *string
	ContactEmail *string
	ContactPhone *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}
