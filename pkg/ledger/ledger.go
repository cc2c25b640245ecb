// Package ledger maintains user-organization membership edges and the
// invariant that each user has at most one primary organization.
//
// The ledger keeps an in-memory mirror of edges for the users it has seen and
// translates intents (add, remove, set primary) into a fixed, ordered sequence
// of store writes. The mirror is updated only after each store call confirms,
// so a failure mid-sequence leaves the mirror consistent with the store's last
// known state. Multi-step operations are not atomic: an interruption between a
// promote and a delete leaves the user observably mid-repair (a new primary
// promoted, the stale edge still present), and the operator retries the
// remaining step. The ledger performs no retries and no rollback.
//
// Cross-session concurrency is not coordinated here; the store is the only
// arbiter. A mutex serializes operations issued through one Ledger instance.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clearbay/orgledger/pkg/domain"
)

// Ledger mirrors membership edges and enforces primary-organization
// consistency through ordered store writes.
type Ledger struct {
	store  EdgeStore
	logger *slog.Logger

	mu     sync.Mutex
	edges  map[uuid.UUID]domain.Membership
	byUser map[uuid.UUID]map[uuid.UUID]struct{}
}

// New creates a ledger over the given store.
func New(store EdgeStore, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:  store,
		logger: logger,
		edges:  make(map[uuid.UUID]domain.Membership),
		byUser: make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

// RemovalTicket is the outcome of ProposeRemoval. When NeedsConfirmation is
// set the caller must obtain explicit confirmation from the operator before
// passing the ticket to ConfirmRemoval; otherwise it may be executed
// immediately.
type RemovalTicket struct {
	EdgeID            uuid.UUID `json:"edge_id"`
	UserID            uuid.UUID `json:"user_id"`
	Remaining         int       `json:"remaining"`
	WasPrimary        bool      `json:"was_primary"`
	NeedsConfirmation bool      `json:"needs_confirmation"`
	ProposedAt        time.Time `json:"proposed_at"`
}

// Load refreshes the mirror for the given users from the store.
func (l *Ledger) Load(ctx context.Context, userIDs ...uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, userID := range userIDs {
		if err := l.refreshUser(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}

// EdgesForUser returns the mirrored edges for a user ordered by creation
// time. It does not touch the store.
func (l *Ledger) EdgesForUser(userID uuid.UUID) []domain.Membership {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.edgesForUserLocked(userID)
}

// AddMembership adds a user to an organization. The first edge a user gains
// becomes primary; later edges do not touch the existing primary.
func (l *Ledger) AddMembership(ctx context.Context, userID, orgID uuid.UUID) (*domain.Membership, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	const op = "AddMembership"

	_, err := l.store.GetByUserAndOrg(ctx, userID, orgID)
	if err == nil {
		return nil, domain.ErrDuplicateMembership
	}
	if !errors.Is(err, domain.ErrMembershipNotFound) {
		return nil, domain.NewStoreError(op, domain.PhaseRefresh, err)
	}

	count, err := l.store.CountByUser(ctx, userID)
	if err != nil {
		return nil, domain.NewStoreError(op, domain.PhaseRefresh, err)
	}

	now := time.Now()
	edge := domain.Membership{
		ID:             uuid.New(),
		UserID:         userID,
		OrganizationID: orgID,
		IsPrimary:      count == 0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := l.store.Insert(ctx, &edge); err != nil {
		return nil, domain.NewStoreError(op, domain.PhaseInsert, err)
	}
	l.putEdge(edge)

	l.logger.Info("membership added",
		"user_id", userID, "organization_id", orgID, "primary", edge.IsPrimary)
	return &edge, nil
}

// SetPrimary designates the given edge as its user's primary organization.
// The current primary is demoted in the store before the target is promoted,
// so two primaries are never observable past the operation's completion. A
// failure between the two writes leaves the user with zero primaries, the
// accepted transient state.
func (l *Ledger) SetPrimary(ctx context.Context, edgeID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	const op = "SetPrimary"

	edge, err := l.lookupEdge(ctx, op, edgeID)
	if err != nil {
		return err
	}
	if edge.IsPrimary {
		return nil
	}

	if current := l.currentPrimaryLocked(edge.UserID); current != nil {
		if err := l.store.SetPrimary(ctx, current.ID, false); err != nil {
			return domain.NewStoreError(op, domain.PhaseDemote, err)
		}
		demoted := *current
		demoted.IsPrimary = false
		l.putEdge(demoted)
	}

	if err := l.store.SetPrimary(ctx, edge.ID, true); err != nil {
		return domain.NewStoreError(op, domain.PhasePromote, err)
	}
	promoted := *edge
	promoted.IsPrimary = true
	l.putEdge(promoted)

	l.logger.Info("primary organization changed",
		"user_id", edge.UserID, "organization_id", edge.OrganizationID)
	return nil
}

// ProposeRemoval evaluates removing an edge against a store-refreshed view of
// the user's memberships. Removing the user's only edge is flagged for
// explicit confirmation; any other removal returns a pre-confirmed ticket.
func (l *Ledger) ProposeRemoval(ctx context.Context, edgeID uuid.UUID) (*RemovalTicket, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	const op = "ProposeRemoval"

	edge, err := l.lookupEdge(ctx, op, edgeID)
	if err != nil {
		return nil, err
	}
	if err := l.refreshUser(ctx, edge.UserID); err != nil {
		return nil, err
	}
	edge, err = l.lookupEdge(ctx, op, edgeID)
	if err != nil {
		return nil, err
	}

	remaining := len(l.byUser[edge.UserID])
	return &RemovalTicket{
		EdgeID:            edge.ID,
		UserID:            edge.UserID,
		Remaining:         remaining,
		WasPrimary:        edge.IsPrimary,
		NeedsConfirmation: remaining == 1,
		ProposedAt:        time.Now(),
	}, nil
}

// ConfirmRemoval executes a proposed removal. Calling it with a ticket that
// required confirmation is the confirmation. If the edge is the user's
// primary and other edges remain, one of them is promoted in the store before
// the delete; deleting first would widen the zero-primary window.
func (l *Ledger) ConfirmRemoval(ctx context.Context, ticket *RemovalTicket) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	const op = "ConfirmRemoval"

	edge, err := l.lookupEdge(ctx, op, ticket.EdgeID)
	if err != nil {
		if errors.Is(err, domain.ErrMembershipNotFound) {
			return domain.ErrRemovalTicketExpired
		}
		return err
	}

	others := l.otherEdgesLocked(edge.UserID, edge.ID)
	if edge.IsPrimary && len(others) > 0 {
		// Earliest-created survivor becomes primary. The choice is
		// arbitrary; only its uniqueness matters.
		successor := others[0]
		if err := l.store.SetPrimary(ctx, successor.ID, true); err != nil {
			return domain.NewStoreError(op, domain.PhasePromote, err)
		}
		successor.IsPrimary = true
		l.putEdge(successor)
		l.logger.Info("promoted successor primary",
			"user_id", edge.UserID, "organization_id", successor.OrganizationID)
	}

	if err := l.store.Delete(ctx, edge.ID); err != nil {
		return domain.NewStoreError(op, domain.PhaseDelete, err)
	}
	l.dropEdge(edge.ID)

	l.logger.Info("membership removed",
		"user_id", edge.UserID, "organization_id", edge.OrganizationID,
		"last_edge", len(others) == 0)
	return nil
}

// RemoveMembership is the one-shot removal path. It returns
// domain.ErrConfirmationRequired when the edge is the user's only membership;
// the caller then re-proposes and confirms explicitly.
func (l *Ledger) RemoveMembership(ctx context.Context, edgeID uuid.UUID) error {
	ticket, err := l.ProposeRemoval(ctx, edgeID)
	if err != nil {
		return err
	}
	if ticket.NeedsConfirmation {
		return domain.ErrConfirmationRequired
	}
	return l.ConfirmRemoval(ctx, ticket)
}

// lookupEdge finds an edge in the mirror, falling back to the store to seed
// edges the ledger has not seen yet.
func (l *Ledger) lookupEdge(ctx context.Context, op string, edgeID uuid.UUID) (*domain.Membership, error) {
	if edge, ok := l.edges[edgeID]; ok {
		return &edge, nil
	}

	edge, err := l.store.GetByID(ctx, edgeID)
	if err != nil {
		if errors.Is(err, domain.ErrMembershipNotFound) {
			return nil, domain.ErrMembershipNotFound
		}
		return nil, domain.NewStoreError(op, domain.PhaseRefresh, err)
	}
	if err := l.refreshUser(ctx, edge.UserID); err != nil {
		return nil, err
	}
	// The edge can vanish between GetByID and the refresh.
	found, ok := l.edges[edge.ID]
	if !ok {
		return nil, domain.ErrMembershipNotFound
	}
	return &found, nil
}

// refreshUser replaces the mirrored edge set for one user with the store's
// current rows. Callers hold l.mu.
func (l *Ledger) refreshUser(ctx context.Context, userID uuid.UUID) error {
	rows, err := l.store.ListByUser(ctx, userID)
	if err != nil {
		return domain.NewStoreError("Load", domain.PhaseRefresh, err)
	}

	for id := range l.byUser[userID] {
		delete(l.edges, id)
	}
	delete(l.byUser, userID)

	for _, edge := range rows {
		l.putEdge(edge)
	}
	return nil
}

func (l *Ledger) putEdge(edge domain.Membership) {
	l.edges[edge.ID] = edge
	set, ok := l.byUser[edge.UserID]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		l.byUser[edge.UserID] = set
	}
	set[edge.ID] = struct{}{}
}

func (l *Ledger) dropEdge(edgeID uuid.UUID) {
	edge, ok := l.edges[edgeID]
	if !ok {
		return
	}
	delete(l.edges, edgeID)
	if set, ok := l.byUser[edge.UserID]; ok {
		delete(set, edgeID)
		if len(set) == 0 {
			delete(l.byUser, edge.UserID)
		}
	}
}

func (l *Ledger) currentPrimaryLocked(userID uuid.UUID) *domain.Membership {
	for id := range l.byUser[userID] {
		if edge := l.edges[id]; edge.IsPrimary {
			return &edge
		}
	}
	return nil
}

func (l *Ledger) edgesForUserLocked(userID uuid.UUID) []domain.Membership {
	edges := make([]domain.Membership, 0, len(l.byUser[userID]))
	for id := range l.byUser[userID] {
		edges = append(edges, l.edges[id])
	}
	sortEdgesByCreation(edges)
	return edges
}

func (l *Ledger) otherEdgesLocked(userID, except uuid.UUID) []domain.Membership {
	all := l.edgesForUserLocked(userID)
	others := all[:0]
	for _, edge := range all {
		if edge.ID != except {
			others = append(others, edge)
		}
	}
	return others
}

func sortEdgesByCreation(edges []domain.Membership) {
	sort.Slice(edges, func(i, j int) bool {
		return edges[i].CreatedAt.Before(edges[j].CreatedAt)
	})
}
