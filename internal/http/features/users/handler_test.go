package users

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clearbay/orgledger/pkg/domain"
)

func TestGet_InvalidID(t *testing.T) {
	handler := &Handler{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	r := chi.NewRouter()
	r.Get("/v1/users/{id}", handler.Get)

	req := httptest.NewRequest(http.MethodGet, "/v1/users/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestUserResponse_OrganizationsNeverNull(t *testing.T) {
	u := domain.User{ID: uuid.New(), Email: "solo@example.com"}

	data, err := json.Marshal(toResponse(&u, nil))
	if err != nil {
		t.Fatalf("Failed to marshal response: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if decoded["organizations"] == nil {
		t.Error("organizations serialized as null, want empty array")
	}
}
