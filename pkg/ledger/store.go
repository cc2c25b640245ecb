package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/clearbay/orgledger/pkg/domain"
)

// EdgeStore is the row-store surface the ledger depends on. Every call is
// independently failable and non-transactional; the ledger never assumes two
// calls commit atomically.
type EdgeStore interface {
	// ListByUser returns a user's membership edges ordered by creation time.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Membership, error)

	// GetByID returns an edge or domain.ErrMembershipNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Membership, error)

	// GetByUserAndOrg returns the edge for a (user, organization) pair or
	// domain.ErrMembershipNotFound.
	GetByUserAndOrg(ctx context.Context, userID, orgID uuid.UUID) (*domain.Membership, error)

	// CountByUser returns the number of edges for a user without
	// materializing rows.
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)

	// Insert persists a new edge.
	Insert(ctx context.Context, edge *domain.Membership) error

	// SetPrimary updates a single edge's primary flag.
	SetPrimary(ctx context.Context, id uuid.UUID, primary bool) error

	// Delete removes an edge.
	Delete(ctx context.Context, id uuid.UUID) error
}
