// Package access decides what a caller may see and change.
//
// BugScope is the single place the list-visibility rule lives; stores apply
// the returned filter in their queries so out-of-scope rows never leave the
// database. The Can* predicates guard single-record operations.
package access

import (
	"errors"

	"bugsage/internal/domain"
)

// ErrNoScope means the caller can see no bugs at all, e.g. a tester that
// has not joined a team.
var ErrNoScope = errors.New("access: empty scope")

// BugScope returns the filter limiting the bugs visible to c:
// testers see their team's bugs, developers the bugs assigned to them,
// admins everything.
func BugScope(c domain.Caller) (domain.BugFilter, error) {
	switch c.Role {
	case domain.RoleAdmin:
		return domain.BugFilter{}, nil
	case domain.RoleTester:
		if c.TeamID == "" {
			return domain.BugFilter{}, ErrNoScope
		}
		return domain.BugFilter{TeamID: c.TeamID}, nil
	case domain.RoleDeveloper:
		if c.ID == "" {
			return domain.BugFilter{}, ErrNoScope
		}
		return domain.BugFilter{AssigneeID: c.ID}, nil
	}
	return domain.BugFilter{}, ErrNoScope
}

func CanCreateBug(c domain.Caller) bool {
	return c.Role == domain.RoleTester
}

func CanViewBug(c domain.Caller, b domain.Bug) bool {
	return c.Role == domain.RoleAdmin || isReporter(c, b) || isAssignee(c, b)
}

func CanUpdateBug(c domain.Caller, b domain.Bug) bool {
	return c.Role == domain.RoleAdmin || isReporter(c, b) || isAssignee(c, b)
}

func CanDeleteBug(c domain.Caller, b domain.Bug) bool {
	return c.Role == domain.RoleAdmin || isReporter(c, b)
}

// CanViewMember reports whether c may look at another user's profile.
func CanViewMember(c domain.Caller, u domain.User) bool {
	if c.Role == domain.RoleAdmin || c.ID == u.ID {
		return true
	}
	return c.TeamID != "" && c.TeamID == u.TeamID
}

func isReporter(c domain.Caller, b domain.Bug) bool {
	return c.ID != "" && b.ReporterID == c.ID
}

func isAssignee(c domain.Caller, b domain.Bug) bool {
	return c.ID != "" && b.AssigneeID == c.ID
}
