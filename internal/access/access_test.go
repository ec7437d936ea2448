package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bugsage/internal/domain"
)

func TestBugScope(t *testing.T) {
	tests := []struct {
		name    string
		caller  domain.Caller
		want    domain.BugFilter
		wantErr bool
	}{
		{"tester sees team", domain.Caller{ID: "t", Role: domain.RoleTester, TeamID: "team1"}, domain.BugFilter{TeamID: "team1"}, false},
		{"tester without team", domain.Caller{ID: "t", Role: domain.RoleTester}, domain.BugFilter{}, true},
		{"developer sees assigned", domain.Caller{ID: "d", Role: domain.RoleDeveloper, TeamID: "team1"}, domain.BugFilter{AssigneeID: "d"}, false},
		{"admin unrestricted", domain.Caller{ID: "a", Role: domain.RoleAdmin}, domain.BugFilter{}, false},
		{"unknown role", domain.Caller{ID: "x", Role: "GUEST", TeamID: "team1"}, domain.BugFilter{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BugScope(tt.caller)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrNoScope)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBugPermissions(t *testing.T) {
	bug := domain.Bug{ID: "b1", ReporterID: "rep", AssigneeID: "dev", TeamID: "team1"}

	reporter := domain.Caller{ID: "rep", Role: domain.RoleTester, TeamID: "team1"}
	assignee := domain.Caller{ID: "dev", Role: domain.RoleDeveloper, TeamID: "team1"}
	teammate := domain.Caller{ID: "other", Role: domain.RoleTester, TeamID: "team1"}
	outsider := domain.Caller{ID: "c", Role: domain.RoleDeveloper, TeamID: "team2"}
	admin := domain.Caller{ID: "adm", Role: domain.RoleAdmin}

	assert.True(t, CanViewBug(reporter, bug))
	assert.True(t, CanViewBug(assignee, bug))
	assert.True(t, CanViewBug(admin, bug))
	assert.False(t, CanViewBug(teammate, bug))
	assert.False(t, CanViewBug(outsider, bug))

	assert.True(t, CanUpdateBug(reporter, bug))
	assert.True(t, CanUpdateBug(assignee, bug))
	assert.True(t, CanUpdateBug(admin, bug))
	assert.False(t, CanUpdateBug(outsider, bug))

	assert.True(t, CanDeleteBug(reporter, bug))
	assert.True(t, CanDeleteBug(admin, bug))
	assert.False(t, CanDeleteBug(assignee, bug))
	assert.False(t, CanDeleteBug(outsider, bug))

	assert.False(t, CanViewBug(domain.Caller{Role: domain.RoleTester}, domain.Bug{}))
}

func TestCanCreateBug(t *testing.T) {
	assert.True(t, CanCreateBug(domain.Caller{Role: domain.RoleTester}))
	assert.False(t, CanCreateBug(domain.Caller{Role: domain.RoleDeveloper}))
	assert.False(t, CanCreateBug(domain.Caller{Role: domain.RoleAdmin}))
}

func TestCanViewMember(t *testing.T) {
	member := domain.User{ID: "m", TeamID: "team1"}

	assert.True(t, CanViewMember(domain.Caller{ID: "x", TeamID: "team1"}, member))
	assert.True(t, CanViewMember(domain.Caller{ID: "m"}, member))
	assert.True(t, CanViewMember(domain.Caller{ID: "a", Role: domain.RoleAdmin}, member))
	assert.False(t, CanViewMember(domain.Caller{ID: "x", TeamID: "team2"}, member))
	assert.False(t, CanViewMember(domain.Caller{ID: "x"}, domain.User{ID: "m"}))
}
