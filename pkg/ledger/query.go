package ledger

import (
	"strings"

	"github.com/google/uuid"

	"github.com/clearbay/orgledger/pkg/domain"
)

// Organization filter sentinels accepted by FilterByOrganization.
const (
	FilterAll  = "all"
	FilterNone = "none"
)

// Search returns the users whose display name, username, or email contains
// term, case-insensitively. Absent fields are skipped. An empty term returns
// the input unchanged.
func Search(users []domain.User, term string) []domain.User {
	if term == "" {
		return users
	}
	needle := strings.ToLower(term)

	var matched []domain.User
	for _, u := range users {
		if matchesTerm(u, needle) {
			matched = append(matched, u)
		}
	}
	return matched
}

func matchesTerm(u domain.User, needle string) bool {
	if u.Name != nil && strings.Contains(strings.ToLower(*u.Name), needle) {
		return true
	}
	if u.Username != nil && strings.Contains(strings.ToLower(*u.Username), needle) {
		return true
	}
	return strings.Contains(strings.ToLower(u.Email), needle)
}

// FilterByOrganization narrows users by organization membership. The selector
// is FilterAll (input unchanged), FilterNone (users with zero edges), or an
// organization id (users having an edge to it).
func FilterByOrganization(users []domain.User, edges []domain.Membership, selector string) []domain.User {
	if selector == "" || selector == FilterAll {
		return users
	}

	memberOf := make(map[uuid.UUID]map[uuid.UUID]struct{})
	for _, edge := range edges {
		orgs, ok := memberOf[edge.UserID]
		if !ok {
			orgs = make(map[uuid.UUID]struct{})
			memberOf[edge.UserID] = orgs
		}
		orgs[edge.OrganizationID] = struct{}{}
	}

	if selector == FilterNone {
		var orphans []domain.User
		for _, u := range users {
			if len(memberOf[u.ID]) == 0 {
				orphans = append(orphans, u)
			}
		}
		return orphans
	}

	orgID, err := uuid.Parse(selector)
	if err != nil {
		return nil
	}
	var members []domain.User
	for _, u := range users {
		if _, ok := memberOf[u.ID][orgID]; ok {
			members = append(members, u)
		}
	}
	return members
}
