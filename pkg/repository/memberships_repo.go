package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/clearbay/orgledger/pkg/domain"
)

// MembershipsRepository handles membership edge persistence. It satisfies
// ledger.EdgeStore.
type MembershipsRepository struct {
	db *sql.DB
}

// NewMembershipsRepository creates a new memberships repository.
func NewMembershipsRepository(db *sql.DB) *MembershipsRepository {
	return &MembershipsRepository{db: db}
}

// MemberRow is a joined membership/user projection for the member directory
// and its CSV export.
type MemberRow struct {
	Membership       domain.Membership
	UserEmail        string
	UserName         *string
	Organization     string
	OrganizationSlug string
}

const membershipColumns = `id, user_id, organization_id, is_primary, created_at, updated_at, deleted_at`

func scanMembership(row interface{ Scan(...any) error }) (*domain.Membership, error) {
	edge := &domain.Membership{}
	err := row.Scan(
		&edge.ID, &edge.UserID, &edge.OrganizationID, &edge.IsPrimary,
		&edge.CreatedAt, &edge.UpdatedAt, &edge.DeletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMembershipNotFound
	}
	if err != nil {
		return nil, err
	}
	return edge, nil
}

// ListByUser retrieves a user's membership edges ordered by creation time.
func (r *MembershipsRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM memberships
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at ASC
	`
	return r.list(ctx, query, userID)
}

// ListByOrganization retrieves all edges for an organization.
func (r *MembershipsRepository) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]domain.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM memberships
		WHERE organization_id = $1 AND deleted_at IS NULL
		ORDER BY created_at ASC
	`
	return r.list(ctx, query, orgID)
}

// ListAll retrieves every live edge, for directory filtering.
func (r *MembershipsRepository) ListAll(ctx context.Context) ([]domain.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM memberships
		WHERE deleted_at IS NULL
		ORDER BY created_at ASC
	`
	return r.list(ctx, query)
}

func (r *MembershipsRepository) list(ctx context.Context, query string, args ...any) ([]domain.Membership, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []domain.Membership
	for rows.Next() {
		edge, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, *edge)
	}
	return edges, rows.Err()
}

// GetByID retrieves an edge by ID.
func (r *MembershipsRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM memberships
		WHERE id = $1 AND deleted_at IS NULL
	`
	return scanMembership(r.db.QueryRowContext(ctx, query, id))
}

// GetByUserAndOrg retrieves the edge for a (user, organization) pair.
func (r *MembershipsRepository) GetByUserAndOrg(ctx context.Context, userID, orgID uuid.UUID) (*domain.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM memberships
		WHERE user_id = $1 AND organization_id = $2 AND deleted_at IS NULL
	`
	return scanMembership(r.db.QueryRowContext(ctx, query, userID, orgID))
}

// CountByUser counts a user's edges without materializing rows.
func (r *MembershipsRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM memberships WHERE user_id = $1 AND deleted_at IS NULL`
	var count int
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&count)
	return count, err
}

// CountByOrganization counts an organization's members.
func (r *MembershipsRepository) CountByOrganization(ctx context.Context, orgID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM memberships WHERE organization_id = $1 AND deleted_at IS NULL`
	var count int
	err := r.db.QueryRowContext(ctx, query, orgID).Scan(&count)
	return count, err
}

// Insert persists a new edge.
func (r *MembershipsRepository) Insert(ctx context.Context, edge *domain.Membership) error {
	query := `
		INSERT INTO memberships (id, user_id, organization_id, is_primary, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		edge.ID, edge.UserID, edge.OrganizationID, edge.IsPrimary,
		edge.CreatedAt, edge.UpdatedAt,
	)
	return err
}

// SetPrimary updates a single edge's primary flag.
func (r *MembershipsRepository) SetPrimary(ctx context.Context, id uuid.UUID, primary bool) error {
	query := `
		UPDATE memberships
		SET is_primary = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, id, primary)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrMembershipNotFound
	}
	return nil
}

// Delete soft deletes an edge.
func (r *MembershipsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE memberships
		SET deleted_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrMembershipNotFound
	}
	return nil
}

// ListMemberRows retrieves the joined member directory, optionally narrowed
// to one organization.
func (r *MembershipsRepository) ListMemberRows(ctx context.Context, orgID *uuid.UUID) ([]MemberRow, error) {
	query := `
		SELECT
			m.id, m.user_id, m.organization_id, m.is_primary, m.created_at, m.updated_at, m.deleted_at,
			u.email, u.name, o.name, o.slug
		FROM memberships m
		INNER JOIN users u ON m.user_id = u.id
		INNER JOIN organizations o ON m.organization_id = o.id
		WHERE m.deleted_at IS NULL
			AND u.deleted_at IS NULL
			AND o.deleted_at IS NULL
			AND ($1::uuid IS NULL OR m.organization_id = $1)
		ORDER BY o.name ASC, m.created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []MemberRow
	for rows.Next() {
		var row MemberRow
		err := rows.Scan(
			&row.Membership.ID, &row.Membership.UserID, &row.Membership.OrganizationID,
			&row.Membership.IsPrimary, &row.Membership.CreatedAt, &row.Membership.UpdatedAt,
			&row.Membership.DeletedAt,
			&row.UserEmail, &row.UserName, &row.Organization, &row.OrganizationSlug,
		)
		if err != nil {
			return nil, err
		}
		results = append(results, row)
	}
	return results, rows.Err()
}
