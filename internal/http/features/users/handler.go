package users

import (
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

// Handler serves the user directory.
type Handler struct {
	logger      *slog.Logger
	users       *repository.UsersRepository
	memberships *repository.MembershipsRepository
}

// NewHandler creates a new users handler.
func NewHandler(logger *slog.Logger, users *repository.UsersRepository, memberships *repository.MembershipsRepository) *Handler {
	return &Handler{
		logger:      logger,
		users:       users,
		memberships: memberships,
	}
}

// UserResponse is the wire shape of a directory entry.
type UserResponse struct {
	ID            uuid.UUID      `json:"id"`
	Email         string         `json:"email"`
	Username      *string        `json:"username,omitempty"`
	Name          *string        `json:"name,omitempty"`
	Active        bool           `json:"active"`
	CreatedAt     time.Time      `json:"created_at"`
	Organizations []EdgeResponse `json:"organizations"`
}

// EdgeResponse is one membership edge on a directory entry.
type EdgeResponse struct {
	MembershipID   uuid.UUID `json:"membership_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	IsPrimary      bool      `json:"is_primary"`
}

// List returns org users matching the optional search term and
// organization selector ("all", "none", or an organization id).
// GET /v1/users?search=&organization=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	all, err := h.users.ListOrgUsers(r.Context())
	if err != nil {
		h.logger.Error("list users failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	edges, err := h.memberships.ListAll(r.Context())
	if err != nil {
		h.logger.Error("list memberships failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	matched := ledger.Search(all, r.URL.Query().Get("search"))
	matched = ledger.FilterByOrganization(matched, edges, r.URL.Query().Get("organization"))

	byUser := make(map[uuid.UUID][]EdgeResponse)
	for _, edge := range edges {
		byUser[edge.UserID] = append(byUser[edge.UserID], EdgeResponse{
			MembershipID:   edge.ID,
			OrganizationID: edge.OrganizationID,
			IsPrimary:      edge.IsPrimary,
		})
	}

	out := make([]UserResponse, 0, len(matched))
	for i := range matched {
		out = append(out, toResponse(&matched[i], byUser[matched[i].ID]))
	}
	httputil.JSON(w, http.StatusOK, out)
}

// Get returns one user with their membership edges.
// GET /v1/users/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			httputil.Error(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error("get user failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to get user")
		return
	}

	edges, err := h.memberships.ListByUser(r.Context(), id)
	if err != nil {
		h.logger.Error("list memberships failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to get user")
		return
	}

	edgeOut := make([]EdgeResponse, 0, len(edges))
	for _, edge := range edges {
		edgeOut = append(edgeOut, EdgeResponse{
			MembershipID:   edge.ID,
			OrganizationID: edge.OrganizationID,
			IsPrimary:      edge.IsPrimary,
		})
	}
	httputil.JSON(w, http.StatusOK, toResponse(user, edgeOut))
}

func toResponse(u *domain.User, edges []EdgeResponse) UserResponse {
	if edges == nil {
		edges = []EdgeResponse{}
	}
	return UserResponse{
		ID:            u.ID,
		Email:         u.Email,
		Username:      u.Username,
		Name:          u.Name,
		Active:        u.Active,
		CreatedAt:     u.CreatedAt,
		Organizations: edges,
	}
}
