package ledger

import (
	"testing"

	"github.com/google/uuid"

	"github.com/clearbay/orgledger/pkg/domain"
)

func strPtr(s string) *string { return &s }

func TestSearch(t *testing.T) {
	users := []domain.User{
		{ID: uuid.New(), Email: "ada@example.com", Name: strPtr("Ada Lovelace"), Username: strPtr("ada")},
		{ID: uuid.New(), Email: "grace@example.com", Name: strPtr("Grace Hopper")},
		{ID: uuid.New(), Email: "anon@example.com"},
	}

	tests := []struct {
		name string
		term string
		want int
	}{
		{name: "empty term returns all", term: "", want: 3},
		{name: "matches display name", term: "lovelace", want: 1},
		{name: "case insensitive", term: "GRACE", want: 1},
		{name: "matches email", term: "anon", want: 1},
		{name: "matches username", term: "ada", want: 1},
		{name: "substring across users", term: "example.com", want: 3},
		{name: "no match", term: "turing", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Search(users, tt.term)
			if len(got) != tt.want {
				t.Errorf("Search(%q) returned %d users, want %d", tt.term, len(got), tt.want)
			}
		})
	}
}

func TestSearch_NilFieldsSkipped(t *testing.T) {
	users := []domain.User{{ID: uuid.New(), Email: "x@example.com"}}
	if got := Search(users, "nobody"); len(got) != 0 {
		t.Errorf("nil name/username should not match, got %d users", len(got))
	}
}

func TestFilterByOrganization(t *testing.T) {
	orgA := uuid.New()
	member := domain.User{ID: uuid.New(), Email: "m@example.com"}
	orphan := domain.User{ID: uuid.New(), Email: "o@example.com"}
	users := []domain.User{member, orphan}
	edges := []domain.Membership{
		{ID: uuid.New(), UserID: member.ID, OrganizationID: orgA, IsPrimary: true},
	}

	tests := []struct {
		name     string
		selector string
		wantIDs  []uuid.UUID
	}{
		{name: "all", selector: FilterAll, wantIDs: []uuid.UUID{member.ID, orphan.ID}},
		{name: "empty selector behaves as all", selector: "", wantIDs: []uuid.UUID{member.ID, orphan.ID}},
		{name: "none returns users without edges", selector: FilterNone, wantIDs: []uuid.UUID{orphan.ID}},
		{name: "by organization", selector: orgA.String(), wantIDs: []uuid.UUID{member.ID}},
		{name: "unknown organization", selector: uuid.New().String(), wantIDs: nil},
		{name: "garbage selector", selector: "not-a-uuid", wantIDs: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterByOrganization(users, edges, tt.selector)
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d users, want %d", len(got), len(tt.wantIDs))
			}
			for i, u := range got {
				if u.ID != tt.wantIDs[i] {
					t.Errorf("user[%d] = %s, want %s", i, u.ID, tt.wantIDs[i])
				}
			}
		})
	}
}
