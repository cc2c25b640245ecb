package domain

import (
	"time"

	"github.com/google/uuid"
)

// Membership is an edge linking one user to one organization. At most one of a
// user's edges carries IsPrimary at any time the ledger has finished an
// operation; between the writes of a multi-step operation the user may
// transiently have zero primaries.
type Membership struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	IsPrimary      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}
