package organizations

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
	"github.com/clearbay/orgledger/pkg/repository"
)

// Handler handles organization CRUD endpoints.
type Handler struct {
	logger      *slog.Logger
	orgs        *repository.OrganizationsRepository
	memberships *repository.MembershipsRepository
}

// NewHandler creates a new organizations handler.
func NewHandler(logger *slog.Logger, orgs *repository.OrganizationsRepository, memberships *repository.MembershipsRepository) *Handler {
	return &Handler{
		logger:      logger,
		orgs:        orgs,
		memberships: memberships,
	}
}

// CreateRequest represents an organization create request.
type CreateRequest struct {
	Name         string  `json:"name"`
	Slug         string  `json:"slug,omitempty"`
	ContactName  *string `json:"contact_name,omitempty"`
	ContactEmail *string `json:"contact_email,omitempty"`
	ContactPhone *string `json:"contact_phone,omitempty"`
}

// UpdateRequest represents a partial organization update.
type UpdateRequest struct {
	Name         *string `json:"name,omitempty"`
	Slug         *string `json:"slug,omitempty"`
	ContactName  *string `json:"contact_name,omitempty"`
	ContactEmail *string `json:"contact_email,omitempty"`
	ContactPhone *string `json:"contact_phone,omitempty"`
	Active       *bool   `json:"active,omitempty"`
}

// OrganizationResponse is the wire shape of an organization.
type OrganizationResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	ContactName  *string   `json:"contact_name,omitempty"`
	ContactEmail *string   `json:"contact_email,omitempty"`
	ContactPhone *string   `json:"contact_phone,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

func toResponse(org *domain.Organization) OrganizationResponse {
	return OrganizationResponse{
		ID:           org.ID,
		Name:         org.Name,
		Slug:         org.Slug,
		ContactName:  org.ContactName,
		ContactEmail: org.ContactEmail,
		ContactPhone: org.ContactPhone,
		Active:       org.Active,
		CreatedAt:    org.CreatedAt,
	}
}

// List returns organizations.
// GET /v1/organizations?active=true
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	orgs, err := h.orgs.List(r.Context(), activeOnly)
	if err != nil {
		h.logger.Error("list organizations failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to list organizations")
		return
	}

	out := make([]OrganizationResponse, 0, len(orgs))
	for i := range orgs {
		out = append(out, toResponse(&orgs[i]))
	}
	httputil.JSON(w, http.StatusOK, out)
}

// Get returns one organization.
// GET /v1/organizations/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid organization id")
		return
	}

	org, err := h.orgs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrOrganizationNotFound) {
			httputil.Error(w, http.StatusNotFound, "organization not found")
			return
		}
		h.logger.Error("get organization failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to get organization")
		return
	}

	httputil.JSON(w, http.StatusOK, toResponse(org))
}

// Create creates an organization.
// POST /v1/organizations
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		httputil.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	slug := req.Slug
	if slug == "" {
		slug = Slugify(req.Name)
	}

	now := time.Now()
	org := &domain.Organization{
		ID:           uuid.New(),
		Name:         req.Name,
		Slug:         slug,
		ContactName:  req.ContactName,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.orgs.Create(r.Context(), org); err != nil {
		h.logger.Error("create organization failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to create organization")
		return
	}

	h.logger.Info("organization created", "organization_id", org.ID, "slug", org.Slug)
	httputil.JSON(w, http.StatusCreated, toResponse(org))
}

// Update partially updates an organization.
// PATCH /v1/organizations/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid organization id")
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	org, err := h.orgs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrOrganizationNotFound) {
			httputil.Error(w, http.StatusNotFound, "organization not found")
			return
		}
		h.logger.Error("get organization failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to update organization")
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			httputil.Error(w, http.StatusBadRequest, "name cannot be empty")
			return
		}
		org.Name = *req.Name
	}
	if req.Slug != nil {
		org.Slug = *req.Slug
	}
	if req.ContactName != nil {
		org.ContactName = req.ContactName
	}
	if req.ContactEmail != nil {
		org.ContactEmail = req.ContactEmail
	}
	if req.ContactPhone != nil {
		org.ContactPhone = req.ContactPhone
	}
	if req.Active != nil {
		org.Active = *req.Active
	}

	if err := h.orgs.Update(r.Context(), org); err != nil {
		if errors.Is(err, domain.ErrOrganizationNotFound) {
			httputil.Error(w, http.StatusNotFound, "organization not found")
			return
		}
		h.logger.Error("update organization failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to update organization")
		return
	}

	httputil.JSON(w, http.StatusOK, toResponse(org))
}

// Delete soft deletes an organization, cascading to its membership edges.
// DELETE /v1/organizations/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid organization id")
		return
	}

	if err := h.orgs.SoftDelete(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrOrganizationNotFound) {
			httputil.Error(w, http.StatusNotFound, "organization not found")
			return
		}
		h.logger.Error("delete organization failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to delete organization")
		return
	}

	h.logger.Info("organization deleted", "organization_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// MemberResponse is one row of an organization's member listing.
type MemberResponse struct {
	MembershipID uuid.UUID `json:"membership_id"`
	UserID       uuid.UUID `json:"user_id"`
	Email        string    `json:"email"`
	Name         *string   `json:"name,omitempty"`
	IsPrimary    bool      `json:"is_primary"`
	JoinedAt     time.Time `json:"joined_at"`
}

// Members lists an organization's members.
// GET /v1/organizations/{id}/members
func (h *Handler) Members(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid organization id")
		return
	}

	if _, err := h.orgs.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrOrganizationNotFound) {
			httputil.Error(w, http.StatusNotFound, "organization not found")
			return
		}
		h.logger.Error("get organization failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to list members")
		return
	}

	rows, err := h.memberships.ListMemberRows(r.Context(), &id)
	if err != nil {
		h.logger.Error("list members failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to list members")
		return
	}

	out := make([]MemberResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, MemberResponse{
			MembershipID: row.Membership.ID,
			UserID:       row.Membership.UserID,
			Email:        row.UserEmail,
			Name:         row.UserName,
			IsPrimary:    row.Membership.IsPrimary,
			JoinedAt:     row.Membership.CreatedAt,
		})
	}
	httputil.JSON(w, http.StatusOK, out)
}
