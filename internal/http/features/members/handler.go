package members

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clearbay/orgledger/internal/httputil"
	"github.com/clearbay/orgledger/pkg/domain"
	"github.com/clearbay/orgledger/pkg/ledger"
	"github.com/clearbay/orgledger/pkg/repository"
)

// Handler handles membership edge endpoints.
type Handler struct {
	logger *slog.Logger
	ledger *ledger.Ledger
	users  *repository.UsersRepository
	orgs   *repository.OrganizationsRepository
}

// NewHandler creates a new members handler.
func NewHandler(logger *slog.Logger, l *ledger.Ledger, users *repository.UsersRepository, orgs *repository.OrganizationsRepository) *Handler {
	return &Handler{
		logger: logger,
		ledger: l,
		users:  users,
		orgs:   orgs,
	}
}

// AddRequest represents a membership create request.
type AddRequest struct {
	UserID         uuid.UUID `json:"user_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
}

// MembershipResponse is the wire shape of a membership edge.
type MembershipResponse struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	IsPrimary      bool      `json:"is_primary"`
	CreatedAt      time.Time `json:"created_at"`
}

func toResponse(m *domain.Membership) MembershipResponse {
	return MembershipResponse{
		ID:             m.ID,
		UserID:         m.UserID,
		OrganizationID: m.OrganizationID,
		IsPrimary:      m.IsPrimary,
		CreatedAt:      m.CreatedAt,
	}
}

// Add creates a membership edge. The first edge for a user becomes primary.
// POST /v1/members
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == uuid.Nil || req.OrganizationID == uuid.Nil {
		httputil.Error(w, http.StatusBadRequest, "user_id and organization_id are required")
		return
	}

	if _, err := h.users.GetByID(r.Context(), req.UserID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			httputil.Error(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error("get user failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to add member")
		return
	}
	if _, err := h.orgs.GetByID(r.Context(), req.OrganizationID); err != nil {
		if errors.Is(err, domain.ErrOrganizationNotFound) {
			httputil.Error(w, http.StatusNotFound, "organization not found")
			return
		}
		h.logger.Error("get organization failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to add member")
		return
	}

	edge, err := h.ledger.AddMembership(r.Context(), req.UserID, req.OrganizationID)
	if err != nil {
		h.writeError(w, err, "failed to add member")
		return
	}

	h.logger.Info("membership added",
		"membership_id", edge.ID,
		"user_id", edge.UserID,
		"organization_id", edge.OrganizationID,
		"is_primary", edge.IsPrimary)
	httputil.JSON(w, http.StatusCreated, toResponse(edge))
}

// confirmationResponse is returned with 409 when removing a user's
// last membership edge requires explicit confirmation.
type confirmationResponse struct {
	Error  string                `json:"error"`
	Ticket *ledger.RemovalTicket `json:"ticket"`
}

// Remove deletes a membership edge in one shot. Removing a user's last
// edge is rejected with 409 and a removal ticket; the caller confirms
// through Confirm.
// DELETE /v1/members/{id}
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid membership id")
		return
	}

	if err := h.ledger.RemoveMembership(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrConfirmationRequired) {
			ticket, perr := h.ledger.ProposeRemoval(r.Context(), id)
			if perr != nil {
				h.writeError(w, perr, "failed to remove member")
				return
			}
			httputil.JSON(w, http.StatusConflict, confirmationResponse{
				Error:  "removing the last organization for this user requires confirmation",
				Ticket: ticket,
			})
			return
		}
		h.writeError(w, err, "failed to remove member")
		return
	}

	h.logger.Info("membership removed", "membership_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// Propose stages a removal and returns a ticket describing its effects.
// POST /v1/members/{id}/removal
func (h *Handler) Propose(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid membership id")
		return
	}

	ticket, err := h.ledger.ProposeRemoval(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "failed to propose removal")
		return
	}
	httputil.JSON(w, http.StatusOK, ticket)
}

// Confirm executes a previously proposed removal.
// POST /v1/members/{id}/removal/confirm
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid membership id")
		return
	}

	var ticket ledger.RemovalTicket
	if err := json.NewDecoder(r.Body).Decode(&ticket); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if ticket.EdgeID != id {
		httputil.Error(w, http.StatusBadRequest, "ticket does not match membership id")
		return
	}

	if err := h.ledger.ConfirmRemoval(r.Context(), &ticket); err != nil {
		if errors.Is(err, domain.ErrRemovalTicketExpired) {
			httputil.Error(w, http.StatusGone, "removal ticket is no longer valid")
			return
		}
		h.writeError(w, err, "failed to confirm removal")
		return
	}

	h.logger.Info("membership removal confirmed", "membership_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// Primary marks a membership edge as the user's primary organization,
// demoting the current primary first.
// POST /v1/members/{id}/primary
func (h *Handler) Primary(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid membership id")
		return
	}

	if err := h.ledger.SetPrimary(r.Context(), id); err != nil {
		h.writeError(w, err, "failed to set primary organization")
		return
	}

	h.logger.Info("primary organization changed", "membership_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps ledger errors onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	var storeErr *domain.StoreError
	switch {
	case errors.Is(err, domain.ErrMembershipNotFound):
		httputil.Error(w, http.StatusNotFound, "membership not found")
	case errors.Is(err, domain.ErrDuplicateMembership):
		httputil.Error(w, http.StatusConflict, "user is already a member of this organization")
	case errors.As(err, &storeErr):
		h.logger.Error("store operation failed",
			"op", storeErr.Op, "phase", storeErr.Phase, "error", storeErr.Err)
		httputil.Error(w, http.StatusBadGateway, "membership store rejected the operation during "+storeErr.Phase)
	default:
		h.logger.Error(fallback, "error", err)
		httputil.Error(w, http.StatusInternalServerError, fallback)
	}
}
