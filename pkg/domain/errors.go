package domain

import (
	"errors"
	"fmt"
)

// Membership errors
var (
	ErrDuplicateMembership  = errors.New("user is already a member of this organization")
	ErrMembershipNotFound   = errors.New("membership not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrConfirmationRequired = errors.New("removing the user's only organization requires confirmation")
	ErrRemovalTicketExpired = errors.New("removal ticket no longer matches current state")
)

// Authentication errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked due to too many failed login attempts")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrSessionRevoked     = errors.New("session revoked")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidTOTPCode    = errors.New("invalid TOTP code")
	ErrTOTPRequired       = errors.New("TOTP code required")
)

// Store operation phases, recorded on StoreError so a caller can tell which
// step of a multi-step sequence failed and what remains to retry.
const (
	PhaseRefresh = "refresh"
	PhaseInsert  = "insert"
	PhasePromote = "promote"
	PhaseDemote  = "demote"
	PhaseDelete  = "delete"
)

// StoreError wraps a failure from the row store. The ledger performs no
// retries and no rollback; the mirror reflects only the steps that completed.
type StoreError struct {
	Op    string
	Phase string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s (%s): %v", e.Op, e.Phase, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError wraps err with the operation and phase it occurred in.
func NewStoreError(op, phase string, err error) *StoreError {
	return &StoreError{Op: op, Phase: phase, Err: err}
}
