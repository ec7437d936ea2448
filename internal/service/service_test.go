package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"bugsage/internal/auth"
	"bugsage/internal/domain"
	"bugsage/internal/service"
	"bugsage/internal/storage/sqlite"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *sqlite.Store
	tokens *auth.TokenManager
	svc    *service.TrackerService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.New(sqlite.InMemory)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	tokens, err := auth.NewTokenManager(testSecret, time.Hour)
	require.NoError(t, err)

	return &fixture{
		t:      t,
		ctx:    context.Background(),
		store:  store,
		tokens: tokens,
		svc:    service.New(store, tokens),
	}
}

func (f *fixture) team(name string) domain.Team {
	f.t.Helper()
	team, err := f.store.CreateTeam(f.ctx, domain.Team{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()})
	require.NoError(f.t, err)
	return team
}

// member signs a user up and joins them to team when it is not empty.
func (f *fixture) member(name string, role domain.Role, team domain.Team) domain.Caller {
	f.t.Helper()
	sess, err := f.svc.Signup(f.ctx, service.SignupInput{
		Username: name,
		Email:    name + "@example.com",
		Password: "secret-" + name,
		Role:     string(role),
	})
	require.NoError(f.t, err)

	caller := domain.CallerOf(sess.User)
	if team.ID != "" {
		sess, err = f.svc.JoinTeam(f.ctx, caller, team.ID)
		require.NoError(f.t, err)
		caller = domain.CallerOf(sess.User)
	}
	return caller
}

func (f *fixture) admin(name string) domain.Caller {
	f.t.Helper()
	now := time.Now().UTC()
	u, err := f.store.CreateUser(f.ctx, domain.User{
		ID: uuid.NewString(), Username: name, Email: name + "@example.com", PasswordHash: "x",
		Role: domain.RoleAdmin, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(f.t, err)
	return domain.CallerOf(u)
}

func (f *fixture) bug(reporter domain.Caller, assignee domain.Caller, title string) domain.Bug {
	f.t.Helper()
	bug, err := f.svc.CreateBug(f.ctx, reporter, service.NewBug{
		Title:       title,
		Description: "steps to reproduce " + title,
		AssigneeID:  assignee.ID,
		Priority:    "HIGH",
	})
	require.NoError(f.t, err)
	return bug
}

func TestSignupAndLogin(t *testing.T) {
	f := newFixture(t)

	sess, err := f.svc.Signup(f.ctx, service.SignupInput{Username: "ann", Email: " Ann@Example.com ", Password: "pw"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, domain.RoleTester, sess.User.Role, "role defaults to tester")
	assert.Equal(t, "ann@example.com", sess.User.Email)
	assert.NotEqual(t, "pw", sess.User.PasswordHash)

	_, err = f.svc.Signup(f.ctx, service.SignupInput{Username: "ann2", Email: "ANN@example.com", Password: "pw"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
	assert.ErrorIs(t, err, domain.ErrConflict)

	claims, err := f.tokens.Verify(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, claims.Subject)
	assert.Equal(t, domain.RoleTester, claims.Role)

	login, err := f.svc.Login(f.ctx, "ann@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, login.User.ID)

	_, wrongPassword := f.svc.Login(f.ctx, "ann@example.com", "nope")
	_, unknownEmail := f.svc.Login(f.ctx, "bob@example.com", "pw")
	assert.ErrorIs(t, wrongPassword, domain.ErrInvalidCredentials)
	assert.Equal(t, wrongPassword, unknownEmail)
}

func TestSignupValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		in   service.SignupInput
	}{
		{"missing username", service.SignupInput{Email: "a@example.com", Password: "pw"}},
		{"missing email", service.SignupInput{Username: "a", Password: "pw"}},
		{"missing password", service.SignupInput{Username: "a", Email: "a@example.com"}},
		{"bad email", service.SignupInput{Username: "a", Email: "not-an-email", Password: "pw"}},
		{"admin role", service.SignupInput{Username: "a", Email: "a@example.com", Password: "pw", Role: "ADMIN"}},
		{"unknown role", service.SignupInput{Username: "a", Email: "a@example.com", Password: "pw", Role: "MANAGER"}},
		{"long password", service.SignupInput{Username: "a", Email: "a@example.com", Password: strings.Repeat("x", 73)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Signup(f.ctx, tt.in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	sess, err := f.svc.Signup(f.ctx, service.SignupInput{Username: "d", Email: "d@example.com", Password: "pw", Role: "developer"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleDeveloper, sess.User.Role)
}

func TestAuthenticateReadsFreshClaims(t *testing.T) {
	f := newFixture(t)
	core := f.team("Core")

	sess, err := f.svc.Signup(f.ctx, service.SignupInput{Username: "ann", Email: "ann@example.com", Password: "pw"})
	require.NoError(t, err)
	staleToken := sess.Token

	joined, err := f.svc.JoinTeam(f.ctx, domain.CallerOf(sess.User), core.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ID, joined.User.TeamID)

	claims, err := f.tokens.Verify(joined.Token)
	require.NoError(t, err)
	assert.Equal(t, core.ID, claims.TeamID)

	caller, err := f.svc.Authenticate(f.ctx, staleToken)
	require.NoError(t, err)
	assert.Equal(t, core.ID, caller.TeamID, "team is read from the store, not the token")

	ghost, err := f.tokens.Issue(domain.User{ID: uuid.NewString(), Role: domain.RoleAdmin})
	require.NoError(t, err)
	_, err = f.svc.Authenticate(f.ctx, ghost)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = f.svc.Authenticate(f.ctx, "garbage")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestJoinTeamErrors(t *testing.T) {
	f := newFixture(t)
	ann := f.member("ann", domain.RoleTester, domain.Team{})

	_, err := f.svc.JoinTeam(f.ctx, ann, "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.JoinTeam(f.ctx, ann, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrTeamNotFound)
}

// Tester A and developer B share team T1; developer C is in T2.
func TestCrossTeamScenario(t *testing.T) {
	f := newFixture(t)
	t1 := f.team("T1")
	t2 := f.team("T2")
	a := f.member("alice", domain.RoleTester, t1)
	b := f.member("bob", domain.RoleDeveloper, t1)
	c := f.member("carol", domain.RoleDeveloper, t2)

	bug := f.bug(a, b, "Login button broken")
	assert.Equal(t, domain.StatusBacklog, bug.Status)
	assert.Equal(t, t1.ID, bug.TeamID)

	_, err := f.svc.GetBug(f.ctx, c, bug.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	resolved := "RESOLVED"
	_, err = f.svc.UpdateBug(f.ctx, b, bug.ID, service.BugUpdate{Status: &resolved})
	require.NoError(t, err)

	got, err := f.svc.GetBug(f.ctx, a, bug.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, got.Status)
	assert.Equal(t, bug.Title, got.Title)
	assert.Equal(t, bug.Description, got.Description)
	assert.Equal(t, domain.PriorityHigh, got.Priority)
}

func TestCreateBugRules(t *testing.T) {
	f := newFixture(t)
	t1 := f.team("T1")
	t2 := f.team("T2")
	tess := f.member("tess", domain.RoleTester, t1)
	dev := f.member("dev", domain.RoleDeveloper, t1)
	otherDev := f.member("odev", domain.RoleDeveloper, t2)
	otherTester := f.member("otess", domain.RoleTester, t1)
	lonely := f.member("lonely", domain.RoleTester, domain.Team{})

	valid := service.NewBug{Title: "t", Description: "d", AssigneeID: dev.ID}

	_, err := f.svc.CreateBug(f.ctx, dev, valid)
	assert.ErrorIs(t, err, domain.ErrTesterOnly)
	_, err = f.svc.CreateBug(f.ctx, f.admin("root"), valid)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	invalid := map[string]service.NewBug{
		"missing title":       {Description: "d", AssigneeID: dev.ID},
		"missing description": {Title: "t", AssigneeID: dev.ID},
		"missing assignee":    {Title: "t", Description: "d"},
		"assignee other team": {Title: "t", Description: "d", AssigneeID: otherDev.ID},
		"assignee not dev":    {Title: "t", Description: "d", AssigneeID: otherTester.ID},
		"assignee unknown":    {Title: "t", Description: "d", AssigneeID: uuid.NewString()},
		"bad due date":        {Title: "t", Description: "d", AssigneeID: dev.ID, DueDate: "next week"},
		"relative attachment": {Title: "t", Description: "d", AssigneeID: dev.ID, AttachmentURL: "/files/a.png"},
		"non-http attachment": {Title: "t", Description: "d", AssigneeID: dev.ID, AttachmentURL: "ftp://x.test/a.png"},
	}
	for name, in := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.CreateBug(f.ctx, tess, in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	_, err = f.svc.CreateBug(f.ctx, lonely, service.NewBug{Title: "t", Description: "d", AssigneeID: dev.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidAssignee)

	bug, err := f.svc.CreateBug(f.ctx, tess, service.NewBug{
		Title: " t ", Description: "d", AssigneeID: dev.ID, Priority: "urgent",
		DueDate: "2030-01-02", AttachmentURL: "https://img.test/shot.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "t", bug.Title)
	assert.Equal(t, domain.PriorityMedium, bug.Priority, "invalid priority falls back to medium")
	require.NotNil(t, bug.DueDate)
	assert.Equal(t, time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC), bug.DueDate.UTC())
	assert.Equal(t, "https://img.test/shot.png", bug.AttachmentURL)
	assert.Equal(t, "tess", bug.Reporter.Username)
	assert.Equal(t, "dev", bug.Assignee.Username)
	assert.Equal(t, "T1", bug.TeamName)

	rfc, err := f.svc.CreateBug(f.ctx, tess, service.NewBug{Title: "t", Description: "d", AssigneeID: dev.ID, DueDate: "2030-01-02T15:04:05+02:00"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 1, 2, 13, 4, 5, 0, time.UTC), rfc.DueDate.UTC())
}

func TestListBugsIsScoped(t *testing.T) {
	f := newFixture(t)
	t1 := f.team("T1")
	t2 := f.team("T2")
	tess := f.member("tess", domain.RoleTester, t1)
	dev1 := f.member("dev1", domain.RoleDeveloper, t1)
	dev2 := f.member("dev2", domain.RoleDeveloper, t1)
	otherTess := f.member("otess", domain.RoleTester, t2)
	otherDev := f.member("odev", domain.RoleDeveloper, t2)
	admin := f.admin("root")
	lonely := f.member("lonely", domain.RoleTester, domain.Team{})

	b1 := f.bug(tess, dev1, "one")
	b2 := f.bug(tess, dev2, "two")
	b3 := f.bug(otherTess, otherDev, "three")

	ids := func(bugs []domain.Bug) []string {
		out := make([]string, 0, len(bugs))
		for _, b := range bugs {
			out = append(out, b.ID)
		}
		return out
	}

	got, err := f.svc.ListBugs(f.ctx, tess, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{b1.ID, b2.ID}, ids(got))

	got, err = f.svc.ListBugs(f.ctx, dev1, "")
	require.NoError(t, err)
	assert.Equal(t, []string{b1.ID}, ids(got))

	got, err = f.svc.ListBugs(f.ctx, otherTess, "")
	require.NoError(t, err)
	assert.Equal(t, []string{b3.ID}, ids(got))

	got, err = f.svc.ListBugs(f.ctx, admin, "")
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = f.svc.ListBugs(f.ctx, lonely, "")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)

	inProgress := "In Progress"
	_, err = f.svc.UpdateBug(f.ctx, dev1, b1.ID, service.BugUpdate{Status: &inProgress})
	require.NoError(t, err)

	got, err = f.svc.ListBugs(f.ctx, tess, "in_progress")
	require.NoError(t, err)
	assert.Equal(t, []string{b1.ID}, ids(got))

	_, err = f.svc.ListBugs(f.ctx, tess, "PENDING")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestUpdateAndDeleteRights(t *testing.T) {
	f := newFixture(t)
	t1 := f.team("T1")
	tess := f.member("tess", domain.RoleTester, t1)
	teammate := f.member("mate", domain.RoleTester, t1)
	dev := f.member("dev", domain.RoleDeveloper, t1)
	stranger := f.member("stranger", domain.RoleDeveloper, t1)
	admin := f.admin("root")

	bug := f.bug(tess, dev, "crash")

	title := "renamed"
	_, err := f.svc.UpdateBug(f.ctx, stranger, bug.ID, service.BugUpdate{Title: &title})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.svc.UpdateBug(f.ctx, teammate, bug.ID, service.BugUpdate{Title: &title})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	bad := "PENDING"
	_, err = f.svc.UpdateBug(f.ctx, dev, bug.ID, service.BugUpdate{Status: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	_, err = f.svc.UpdateBug(f.ctx, dev, bug.ID, service.BugUpdate{Priority: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidPriority)

	blank, empty := "   ", ""
	updated, err := f.svc.UpdateBug(f.ctx, tess, bug.ID, service.BugUpdate{Title: &blank, Description: &empty})
	require.NoError(t, err)
	assert.Equal(t, "crash", updated.Title, "blank title is ignored")
	assert.Equal(t, "", updated.Description)

	moved, err := f.svc.MoveBug(f.ctx, admin, bug.ID, "Tester")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTesting, moved.Status)

	_, err = f.svc.MoveBug(f.ctx, dev, bug.ID, "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.GetBug(f.ctx, dev, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrBugNotFound)

	assert.ErrorIs(t, f.svc.DeleteBug(f.ctx, dev, bug.ID), domain.ErrForbidden)
	assert.ErrorIs(t, f.svc.DeleteBug(f.ctx, stranger, bug.ID), domain.ErrForbidden)
	require.NoError(t, f.svc.DeleteBug(f.ctx, tess, bug.ID))
	assert.ErrorIs(t, f.svc.DeleteBug(f.ctx, tess, bug.ID), domain.ErrNotFound)

	other := f.bug(tess, dev, "other")
	require.NoError(t, f.svc.DeleteBug(f.ctx, admin, other.ID))
}

func TestUpdateSetsAndClearsDueDate(t *testing.T) {
	f := newFixture(t)
	t1 := f.team("T1")
	tess := f.member("tess", domain.RoleTester, t1)
	dev := f.member("dev", domain.RoleDeveloper, t1)
	bug := f.bug(tess, dev, "crash")

	due := "2031-05-01"
	updated, err := f.svc.UpdateBug(f.ctx, dev, bug.ID, service.BugUpdate{DueDate: &due})
	require.NoError(t, err)
	require.NotNil(t, updated.DueDate)
	assert.Equal(t, due, updated.DueDate.UTC().Format("2006-01-02"))

	title := "still dated"
	updated, err = f.svc.UpdateBug(f.ctx, dev, bug.ID, service.BugUpdate{Title: &title})
	require.NoError(t, err)
	assert.NotNil(t, updated.DueDate, "omitted dueDate is left unchanged")

	empty := ""
	updated, err = f.svc.UpdateBug(f.ctx, dev, bug.ID, service.BugUpdate{DueDate: &empty})
	require.NoError(t, err)
	assert.Nil(t, updated.DueDate)

	fetched, err := f.svc.GetBug(f.ctx, dev, bug.ID)
	require.NoError(t, err)
	assert.Nil(t, fetched.DueDate)
}

func TestSummaryAndBoard(t *testing.T) {
	f := newFixture(t)
	t1 := f.team("T1")
	tess := f.member("tess", domain.RoleTester, t1)
	dev := f.member("dev", domain.RoleDeveloper, t1)

	first := f.bug(tess, dev, "first")
	f.bug(tess, dev, "second")
	resolved := "RESOLVED"
	_, err := f.svc.UpdateBug(f.ctx, dev, first.ID, service.BugUpdate{Status: &resolved})
	require.NoError(t, err)

	counts, err := f.svc.BugSummary(f.ctx, tess)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Total)
	assert.Equal(t, 1, counts.ByStatus[domain.StatusBacklog])
	assert.Equal(t, 1, counts.ByStatus[domain.StatusResolved])
	assert.Equal(t, 2, counts.ByPriority[domain.PriorityHigh])

	lonely := f.member("lonely", domain.RoleTester, domain.Team{})
	empty, err := f.svc.BugSummary(f.ctx, lonely)
	require.NoError(t, err)
	assert.Zero(t, empty.Total)

	board, err := f.svc.Board(f.ctx, dev)
	require.NoError(t, err)
	require.Len(t, board, 4)
	for i, st := range domain.Statuses {
		assert.Equal(t, st, board[i].Status)
	}
	assert.Len(t, board[0].Bugs, 1)
	assert.Empty(t, board[1].Bugs)
	assert.Empty(t, board[2].Bugs)
	require.Len(t, board[3].Bugs, 1)
	assert.Equal(t, first.ID, board[3].Bugs[0].ID)

	assignees, err := f.svc.Assignees(f.ctx, tess)
	require.NoError(t, err)
	require.Len(t, assignees, 1)
	assert.Equal(t, dev.ID, assignees[0].ID)

	none, err := f.svc.Assignees(f.ctx, lonely)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTeamViews(t *testing.T) {
	f := newFixture(t)
	t1 := f.team("T1")
	t2 := f.team("T2")
	tess := f.member("tess", domain.RoleTester, t1)
	dev := f.member("dev", domain.RoleDeveloper, t1)
	outsider := f.member("out", domain.RoleDeveloper, t2)
	lonely := f.member("lonely", domain.RoleTester, domain.Team{})
	f.bug(tess, dev, "one")
	f.bug(tess, dev, "two")

	teams, err := f.svc.ListTeams(f.ctx)
	require.NoError(t, err)
	assert.Len(t, teams, 2)

	team, members, err := f.svc.TeamMembers(f.ctx, tess)
	require.NoError(t, err)
	assert.Equal(t, "T1", team.Name)
	require.Len(t, members, 2)
	assert.Equal(t, "dev", members[0].User.Username)
	assert.Equal(t, 2, members[0].Bugs.Total, "developers count assigned bugs")
	assert.Equal(t, "tess", members[1].User.Username)
	assert.Equal(t, 2, members[1].Bugs.Total, "testers count reported bugs")

	_, _, err = f.svc.TeamMembers(f.ctx, lonely)
	assert.ErrorIs(t, err, domain.ErrNoTeam)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	detail, err := f.svc.TeamMember(f.ctx, tess, dev.ID)
	require.NoError(t, err)
	assert.Equal(t, dev.ID, detail.User.ID)
	assert.Len(t, detail.Bugs, 2)

	_, err = f.svc.TeamMember(f.ctx, tess, outsider.ID)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, stats, err := f.svc.TeamStats(f.ctx, dev)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Members[domain.RoleTester])
	assert.Equal(t, 1, stats.Members[domain.RoleDeveloper])
	assert.Equal(t, 0, stats.Members[domain.RoleAdmin])
	assert.Equal(t, 2, stats.Bugs.ByStatus[domain.StatusBacklog])

	_, _, err = f.svc.TeamStats(f.ctx, lonely)
	assert.ErrorIs(t, err, domain.ErrNoTeam)

	me, err := f.svc.Me(f.ctx, dev)
	require.NoError(t, err)
	assert.Equal(t, "T1", me.TeamName)
}
