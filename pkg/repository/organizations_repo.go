package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/clearbay/orgledger/pkg/domain"
)

// OrganizationsRepository handles organization persistence.
type OrganizationsRepository struct {
	db *sql.DB
}

// NewOrganizationsRepository creates a new organizations repository.
func NewOrganizationsRepository(db *sql.DB) *OrganizationsRepository {
	return &OrganizationsRepository{db: db}
}

const orgColumns = `id, name, slug, contact_name, contact_email, contact_phone, active,
	       created_at, updated_at, deleted_at`

func scanOrganization(row interface{ Scan(...any) error }) (*domain.Organization, error) {
	org := &domain.Organization{}
	err := row.Scan(
		&org.ID, &org.Name, &org.Slug,
		&org.ContactName, &org.ContactEmail, &org.ContactPhone, &org.Active,
		&org.CreatedAt, &org.UpdatedAt, &org.DeletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrganizationNotFound
	}
	if err != nil {
		return nil, err
	}
	return org, nil
}

// Create creates a new organization.
func (r *OrganizationsRepository) Create(ctx context.Context, org *domain.Organization) error {
	return r.CreateTx(ctx, r.db, org)
}

// CreateTx creates a new organization within a transaction.
func (r *OrganizationsRepository) CreateTx(ctx context.Context, q Querier, org *domain.Organization) error {
	query := `
		INSERT INTO organizations (id, name, slug, contact_name, contact_email, contact_phone, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := q.ExecContext(ctx, query,
		org.ID, org.Name, org.Slug,
		org.ContactName, org.ContactEmail, org.ContactPhone, org.Active,
		org.CreatedAt, org.UpdatedAt,
	)
	return err
}

// GetByID retrieves an organization by ID.
func (r *OrganizationsRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Organization, error) {
	query := `
		SELECT ` + orgColumns + `
		FROM organizations
		WHERE id = $1 AND deleted_at IS NULL
	`
	return scanOrganization(r.db.QueryRowContext(ctx, query, id))
}

// GetBySlug retrieves an organization by slug.
func (r *OrganizationsRepository) GetBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	query := `
		SELECT ` + orgColumns + `
		FROM organizations
		WHERE slug = $1 AND deleted_at IS NULL
	`
	return scanOrganization(r.db.QueryRowContext(ctx, query, slug))
}

// List retrieves organizations, optionally only active ones.
func (r *OrganizationsRepository) List(ctx context.Context, activeOnly bool) ([]domain.Organization, error) {
	query := `
		SELECT ` + orgColumns + `
		FROM organizations
		WHERE deleted_at IS NULL AND ($1 = false OR active)
		ORDER BY name ASC
	`
	rows, err := r.db.QueryContext(ctx, query, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []domain.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, *org)
	}
	return orgs, rows.Err()
}

// Update updates an organization.
func (r *OrganizationsRepository) Update(ctx context.Context, org *domain.Organization) error {
	query := `
		UPDATE organizations
		SET name = $2, slug = $3, contact_name = $4, contact_email = $5,
		    contact_phone = $6, active = $7, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query,
		org.ID, org.Name, org.Slug,
		org.ContactName, org.ContactEmail, org.ContactPhone, org.Active,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrOrganizationNotFound
	}
	return nil
}

// SoftDelete soft deletes an organization and cascades to its membership
// edges in the same transaction, so no edge outlives its organization.
func (r *OrganizationsRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return Tx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE organizations
			SET deleted_at = NOW()
			WHERE id = $1 AND deleted_at IS NULL
		`, id)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return domain.ErrOrganizationNotFound
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE memberships
			SET deleted_at = NOW()
			WHERE organization_id = $1 AND deleted_at IS NULL
		`, id)
		return err
	})
}
