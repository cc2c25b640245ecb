package reports

import (
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/clearbay/orgledger/internal/httputil"
	"github.com/clearbay/orgledger/pkg/repository"
)

// Handler serves read-only reporting endpoints.
type Handler struct {
	logger      *slog.Logger
	orgs        *repository.OrganizationsRepository
	memberships *repository.MembershipsRepository
}

// NewHandler creates a new reports handler.
func NewHandler(logger *slog.Logger, orgs *repository.OrganizationsRepository, memberships *repository.MembershipsRepository) *Handler {
	return &Handler{
		logger:      logger,
		orgs:        orgs,
		memberships: memberships,
	}
}

// OrganizationReport is one row of the organization member-count report.
type OrganizationReport struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug"`
	Active         bool      `json:"active"`
	MemberCount    int       `json:"member_count"`
	PrimaryCount   int       `json:"primary_count"`
}

// Organizations reports member counts per organization.
// GET /v1/reports/organizations
func (h *Handler) Organizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.orgs.List(r.Context(), false)
	if err != nil {
		h.logger.Error("list organizations failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to build report")
		return
	}
	edges, err := h.memberships.ListAll(r.Context())
	if err != nil {
		h.logger.Error("list memberships failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to build report")
		return
	}

	counts := make(map[uuid.UUID]int)
	primaries := make(map[uuid.UUID]int)
	for _, edge := range edges {
		counts[edge.OrganizationID]++
		if edge.IsPrimary {
			primaries[edge.OrganizationID]++
		}
	}

	out := make([]OrganizationReport, 0, len(orgs))
	for _, org := range orgs {
		out = append(out, OrganizationReport{
			OrganizationID: org.ID,
			Name:           org.Name,
			Slug:           org.Slug,
			Active:         org.Active,
			MemberCount:    counts[org.ID],
			PrimaryCount:   primaries[org.ID],
		})
	}
	httputil.JSON(w, http.StatusOK, out)
}

// MembersCSV exports all membership edges as CSV.
// GET /v1/reports/members.csv
func (h *Handler) MembersCSV(w http.ResponseWriter, r *http.Request) {
	rows, err := h.memberships.ListMemberRows(r.Context(), nil)
	if err != nil {
		h.logger.Error("list member rows failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to build export")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="members.csv"`)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"membership_id", "user_id", "email", "name", "organization", "organization_slug", "is_primary", "joined_at"})
	for _, row := range rows {
		name := ""
		if row.UserName != nil {
			name = *row.UserName
		}
		_ = cw.Write([]string{
			row.Membership.ID.String(),
			row.Membership.UserID.String(),
			row.UserEmail,
			name,
			row.Organization,
			row.OrganizationSlug,
			strconv.FormatBool(row.Membership.IsPrimary),
			row.Membership.CreatedAt.Format(time.RFC3339),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.Error("csv export failed", "error", err)
	}
}
