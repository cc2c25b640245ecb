package members

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clearbay/orgledger/pkg/domain"
	"github.com/clearbay/orgledger/pkg/ledger"
)

// fakeEdgeStore backs the ledger with an in-memory row set so the removal
// and primary flows can be exercised over HTTP without a database.
type fakeEdgeStore struct {
	edges map[uuid.UUID]domain.Membership
	now   time.Time
}

func newFakeEdgeStore() *fakeEdgeStore {
	return &fakeEdgeStore{
		edges: make(map[uuid.UUID]domain.Membership),
		now:   time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (s *fakeEdgeStore) tick() time.Time {
	s.now = s.now.Add(time.Minute)
	return s.now
}

func (s *fakeEdgeStore) seed(userID, orgID uuid.UUID, primary bool) uuid.UUID {
	edge := domain.Membership{
		ID:             uuid.New(),
		UserID:         userID,
		OrganizationID: orgID,
		IsPrimary:      primary,
		CreatedAt:      s.tick(),
	}
	s.edges[edge.ID] = edge
	return edge.ID
}

func (s *fakeEdgeStore) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Membership, error) {
	var out []domain.Membership
	for _, e := range s.edges {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeEdgeStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Membership, error) {
	e, ok := s.edges[id]
	if !ok {
		return nil, domain.ErrMembershipNotFound
	}
	return &e, nil
}

func (s *fakeEdgeStore) GetByUserAndOrg(_ context.Context, userID, orgID uuid.UUID) (*domain.Membership, error) {
	for _, e := range s.edges {
		if e.UserID == userID && e.OrganizationID == orgID {
			return &e, nil
		}
	}
	return nil, domain.ErrMembershipNotFound
}

func (s *fakeEdgeStore) CountByUser(_ context.Context, userID uuid.UUID) (int, error) {
	n := 0
	for _, e := range s.edges {
		if e.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *fakeEdgeStore) Insert(_ context.Context, edge *domain.Membership) error {
	s.edges[edge.ID] = *edge
	return nil
}

func (s *fakeEdgeStore) SetPrimary(_ context.Context, id uuid.UUID, primary bool) error {
	e, ok := s.edges[id]
	if !ok {
		return domain.ErrMembershipNotFound
	}
	e.IsPrimary = primary
	s.edges[id] = e
	return nil
}

func (s *fakeEdgeStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := s.edges[id]; !ok {
		return domain.ErrMembershipNotFound
	}
	delete(s.edges, id)
	return nil
}

func newTestRouter(store *fakeEdgeStore) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, ledger.New(store, logger), nil, nil)

	r := chi.NewRouter()
	r.Delete("/v1/members/{id}", h.Remove)
	r.Post("/v1/members/{id}/removal", h.Propose)
	r.Post("/v1/members/{id}/removal/confirm", h.Confirm)
	r.Post("/v1/members/{id}/primary", h.Primary)
	return r
}

func TestRemove_NonLastEdge(t *testing.T) {
	store := newFakeEdgeStore()
	userID := uuid.New()
	primaryID := store.seed(userID, uuid.New(), true)
	secondID := store.seed(userID, uuid.New(), false)
	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodDelete, "/v1/members/"+secondID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("Status code = %d, want %d: %s", rec.Code, http.StatusNoContent, rec.Body.String())
	}
	if _, ok := store.edges[secondID]; ok {
		t.Error("edge still present in store after removal")
	}
	if !store.edges[primaryID].IsPrimary {
		t.Error("remaining edge lost its primary flag")
	}
}

func TestRemove_PrimaryPromotesSurvivor(t *testing.T) {
	store := newFakeEdgeStore()
	userID := uuid.New()
	primaryID := store.seed(userID, uuid.New(), true)
	survivorID := store.seed(userID, uuid.New(), false)
	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodDelete, "/v1/members/"+primaryID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("Status code = %d, want %d: %s", rec.Code, http.StatusNoContent, rec.Body.String())
	}
	if _, ok := store.edges[primaryID]; ok {
		t.Error("removed primary edge still present in store")
	}
	if !store.edges[survivorID].IsPrimary {
		t.Error("survivor was not promoted to primary")
	}
}

func TestRemove_LastEdgeReturnsTicket(t *testing.T) {
	store := newFakeEdgeStore()
	userID := uuid.New()
	edgeID := store.seed(userID, uuid.New(), true)
	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodDelete, "/v1/members/"+edgeID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("Status code = %d, want %d: %s", rec.Code, http.StatusConflict, rec.Body.String())
	}
	if _, ok := store.edges[edgeID]; !ok {
		t.Error("edge was removed without confirmation")
	}

	var resp confirmationResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Ticket == nil || !resp.Ticket.NeedsConfirmation {
		t.Fatalf("Expected a confirmation-required ticket, got %+v", resp.Ticket)
	}
	if resp.Ticket.EdgeID != edgeID {
		t.Errorf("Ticket edge = %s, want %s", resp.Ticket.EdgeID, edgeID)
	}

	// Confirming with the returned ticket executes the removal.
	body, _ := json.Marshal(resp.Ticket)
	req = httptest.NewRequest(http.MethodPost, "/v1/members/"+edgeID.String()+"/removal/confirm", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("Confirm status = %d, want %d: %s", rec.Code, http.StatusNoContent, rec.Body.String())
	}
	if _, ok := store.edges[edgeID]; ok {
		t.Error("edge still present after confirmed removal")
	}
}

func TestPropose_ReturnsTicket(t *testing.T) {
	store := newFakeEdgeStore()
	userID := uuid.New()
	edgeID := store.seed(userID, uuid.New(), true)
	store.seed(userID, uuid.New(), false)
	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/v1/members/"+edgeID.String()+"/removal", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status code = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var ticket ledger.RemovalTicket
	if err := json.NewDecoder(rec.Body).Decode(&ticket); err != nil {
		t.Fatalf("Failed to decode ticket: %v", err)
	}
	if ticket.NeedsConfirmation {
		t.Error("removal with a surviving edge should not need confirmation")
	}
	if !ticket.WasPrimary {
		t.Error("ticket should record that the edge was primary")
	}
	if ticket.Remaining != 2 {
		t.Errorf("Remaining = %d, want 2", ticket.Remaining)
	}
}

func TestConfirm_TicketMismatch(t *testing.T) {
	store := newFakeEdgeStore()
	edgeID := store.seed(uuid.New(), uuid.New(), true)
	router := newTestRouter(store)

	ticket := ledger.RemovalTicket{EdgeID: uuid.New()}
	body, _ := json.Marshal(ticket)
	req := httptest.NewRequest(http.MethodPost, "/v1/members/"+edgeID.String()+"/removal/confirm", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestConfirm_StaleTicketGone(t *testing.T) {
	store := newFakeEdgeStore()
	userID := uuid.New()
	edgeID := store.seed(userID, uuid.New(), true)
	router := newTestRouter(store)

	// Edge disappears between propose and confirm.
	ticket := ledger.RemovalTicket{EdgeID: edgeID, UserID: userID, Remaining: 1, NeedsConfirmation: true}
	delete(store.edges, edgeID)

	body, _ := json.Marshal(ticket)
	req := httptest.NewRequest(http.MethodPost, "/v1/members/"+edgeID.String()+"/removal/confirm", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusGone {
		t.Errorf("Status code = %d, want %d: %s", rec.Code, http.StatusGone, rec.Body.String())
	}
}

func TestPrimary_Swap(t *testing.T) {
	store := newFakeEdgeStore()
	userID := uuid.New()
	oldPrimary := store.seed(userID, uuid.New(), true)
	newPrimary := store.seed(userID, uuid.New(), false)
	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/v1/members/"+newPrimary.String()+"/primary", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("Status code = %d, want %d: %s", rec.Code, http.StatusNoContent, rec.Body.String())
	}
	if store.edges[oldPrimary].IsPrimary {
		t.Error("old primary was not demoted")
	}
	if !store.edges[newPrimary].IsPrimary {
		t.Error("new primary was not promoted")
	}
}

func TestPrimary_UnknownEdge(t *testing.T) {
	router := newTestRouter(newFakeEdgeStore())

	req := httptest.NewRequest(http.MethodPost, "/v1/members/"+uuid.NewString()+"/primary", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestAdd_Validation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, nil, nil, nil)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{invalid}`},
		{"missing ids", `{}`},
		{"missing organization", `{"user_id": "` + uuid.NewString() + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/members", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			h.Add(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("Status code = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestRemove_InvalidID(t *testing.T) {
	router := newTestRouter(newFakeEdgeStore())

	req := httptest.NewRequest(http.MethodDelete, "/v1/members/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
