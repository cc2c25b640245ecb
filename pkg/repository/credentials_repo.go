package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/clearbay/orgledger/pkg/domain"
)

// CredentialsRepository handles operator password credentials and TOTP
// secrets. Enrollment happens in the external identity system; this service
// only reads.
type CredentialsRepository struct {
	db *sql.DB
}

// NewCredentialsRepository creates a new credentials repository.
func NewCredentialsRepository(db *sql.DB) *CredentialsRepository {
	return &CredentialsRepository{db: db}
}

// GetByUserID retrieves credentials for a user.
func (r *CredentialsRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserCredential, error) {
	query := `
		SELECT user_id, password_hash, totp_secret, password_updated_at
		FROM user_credentials
		WHERE user_id = $1
	`
	cred := &domain.UserCredential{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&cred.UserID, &cred.PasswordHash, &cred.TOTPSecret, &cred.PasswordUpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return cred, nil
}
