package service

import (
	"context"
	"errors"
	"strings"

	"bugsage/internal/access"
	"bugsage/internal/domain"
)

func (s *TrackerService) ListTeams(ctx context.Context) ([]domain.Team, error) {
	teams, err := s.repo.ListTeams(ctx)
	if err != nil {
		return nil, err
	}
	if teams == nil {
		teams = []domain.Team{}
	}
	return teams, nil
}

// JoinTeam moves the caller into a team and issues a token carrying the
// new team.
func (s *TrackerService) JoinTeam(ctx context.Context, caller domain.Caller, teamID string) (Session, error) {
	teamID = strings.TrimSpace(teamID)
	if teamID == "" {
		return Session{}, domain.Invalid("teamId is required")
	}
	if _, err := s.repo.GetTeam(ctx, teamID); err != nil {
		return Session{}, err
	}

	user, err := s.repo.SetUserTeam(ctx, caller.ID, teamID)
	if err != nil {
		return Session{}, err
	}
	return s.session(user)
}

func (s *TrackerService) TeamMembers(ctx context.Context, caller domain.Caller) (domain.Team, []domain.MemberSummary, error) {
	team, err := s.callerTeam(ctx, caller)
	if err != nil {
		return domain.Team{}, nil, err
	}

	users, err := s.repo.ListUsers(ctx, domain.UserFilter{TeamID: team.ID})
	if err != nil {
		return domain.Team{}, nil, err
	}

	members := make([]domain.MemberSummary, 0, len(users))
	for _, u := range users {
		counts, err := s.repo.CountBugs(ctx, memberBugs(u))
		if err != nil {
			return domain.Team{}, nil, err
		}
		members = append(members, domain.MemberSummary{User: u, Bugs: counts})
	}
	return team, members, nil
}

// TeamMember returns one member of the caller's team with the member's
// bugs that are also visible to the caller. Users outside the team are
// reported as missing.
func (s *TrackerService) TeamMember(ctx context.Context, caller domain.Caller, userID string) (domain.MemberDetail, error) {
	user, err := s.repo.GetUser(ctx, strings.TrimSpace(userID))
	if err != nil {
		return domain.MemberDetail{}, err
	}
	if !access.CanViewMember(caller, user) {
		return domain.MemberDetail{}, domain.ErrUserNotFound
	}

	detail := domain.MemberDetail{User: user, Bugs: []domain.Bug{}}
	scope, err := access.BugScope(caller)
	if err != nil {
		if errors.Is(err, access.ErrNoScope) {
			return detail, nil
		}
		return domain.MemberDetail{}, err
	}
	filter, ok := narrow(scope, memberBugs(user))
	if !ok {
		return detail, nil
	}

	bugs, err := s.repo.ListBugs(ctx, filter)
	if err != nil {
		return domain.MemberDetail{}, err
	}
	if bugs != nil {
		detail.Bugs = bugs
	}
	return detail, nil
}

func (s *TrackerService) TeamStats(ctx context.Context, caller domain.Caller) (domain.Team, domain.TeamStats, error) {
	team, err := s.callerTeam(ctx, caller)
	if err != nil {
		return domain.Team{}, domain.TeamStats{}, err
	}

	users, err := s.repo.ListUsers(ctx, domain.UserFilter{TeamID: team.ID})
	if err != nil {
		return domain.Team{}, domain.TeamStats{}, err
	}
	stats := domain.TeamStats{Members: map[domain.Role]int{
		domain.RoleTester:    0,
		domain.RoleDeveloper: 0,
		domain.RoleAdmin:     0,
	}}
	for _, u := range users {
		stats.Members[u.Role]++
	}

	stats.Bugs, err = s.repo.CountBugs(ctx, domain.BugFilter{TeamID: team.ID})
	if err != nil {
		return domain.Team{}, domain.TeamStats{}, err
	}
	return team, stats, nil
}

func (s *TrackerService) callerTeam(ctx context.Context, caller domain.Caller) (domain.Team, error) {
	if caller.TeamID == "" {
		return domain.Team{}, domain.ErrNoTeam
	}
	team, err := s.repo.GetTeam(ctx, caller.TeamID)
	if err != nil {
		if errors.Is(err, domain.ErrTeamNotFound) {
			return domain.Team{}, domain.ErrNoTeam
		}
		return domain.Team{}, err
	}
	return team, nil
}

// memberBugs selects the bugs that count towards a member: developers
// own what is assigned to them, everyone else what they reported.
func memberBugs(u domain.User) domain.BugFilter {
	if u.Role == domain.RoleDeveloper {
		return domain.BugFilter{AssigneeID: u.ID}
	}
	return domain.BugFilter{ReporterID: u.ID}
}

// narrow intersects two filters. It reports false when they pin the same
// field to different values, in which case nothing can match.
func narrow(a, b domain.BugFilter) (domain.BugFilter, bool) {
	merge := func(x, y string) (string, bool) {
		if x == "" || y == "" || x == y {
			if x != "" {
				return x, true
			}
			return y, true
		}
		return "", false
	}

	var (
		out domain.BugFilter
		ok  bool
	)
	if out.TeamID, ok = merge(a.TeamID, b.TeamID); !ok {
		return domain.BugFilter{}, false
	}
	if out.AssigneeID, ok = merge(a.AssigneeID, b.AssigneeID); !ok {
		return domain.BugFilter{}, false
	}
	if out.ReporterID, ok = merge(a.ReporterID, b.ReporterID); !ok {
		return domain.BugFilter{}, false
	}
	status, ok := merge(string(a.Status), string(b.Status))
	if !ok {
		return domain.BugFilter{}, false
	}
	out.Status = domain.Status(status)
	return out, true
}
