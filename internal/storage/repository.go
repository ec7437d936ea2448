package storage

import (
	"context"

	"bugsage/internal/domain"
)

// Repository is the persistence boundary. Implementations return the
// domain sentinel errors (ErrUserNotFound, ErrEmailTaken, ...) so callers
// never see driver errors for expected conditions.
type Repository interface {
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)
	GetUser(ctx context.Context, id string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	SetUserTeam(ctx context.Context, userID, teamID string) (domain.User, error)
	ListUsers(ctx context.Context, filter domain.UserFilter) ([]domain.User, error)

	CreateTeam(ctx context.Context, team domain.Team) (domain.Team, error)
	GetTeam(ctx context.Context, id string) (domain.Team, error)
	GetTeamByName(ctx context.Context, name string) (domain.Team, error)
	ListTeams(ctx context.Context) ([]domain.Team, error)

	CreateBug(ctx context.Context, bug domain.Bug) (domain.Bug, error)
	GetBug(ctx context.Context, id string) (domain.Bug, error)
	UpdateBug(ctx context.Context, id string, patch domain.BugPatch) (domain.Bug, error)
	DeleteBug(ctx context.Context, id string) error
	// ListBugs returns the bugs matching filter, newest first.
	ListBugs(ctx context.Context, filter domain.BugFilter) ([]domain.Bug, error)
	CountBugs(ctx context.Context, filter domain.BugFilter) (domain.BugCounts, error)

	Health(ctx context.Context) error
	Close()
}
