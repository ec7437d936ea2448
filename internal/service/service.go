package service

import (
	"context"
	"time"

	"bugsage/internal/auth"
	"bugsage/internal/domain"
	"bugsage/internal/storage"

	"github.com/google/uuid"
)

type Service interface {
	Signup(ctx context.Context, in SignupInput) (Session, error)
	Login(ctx context.Context, email, password string) (Session, error)
	Authenticate(ctx context.Context, token string) (domain.Caller, error)
	Me(ctx context.Context, caller domain.Caller) (domain.User, error)

	ListTeams(ctx context.Context) ([]domain.Team, error)
	JoinTeam(ctx context.Context, caller domain.Caller, teamID string) (Session, error)
	TeamMembers(ctx context.Context, caller domain.Caller) (domain.Team, []domain.MemberSummary, error)
	TeamMember(ctx context.Context, caller domain.Caller, userID string) (domain.MemberDetail, error)
	TeamStats(ctx context.Context, caller domain.Caller) (domain.Team, domain.TeamStats, error)

	CreateBug(ctx context.Context, caller domain.Caller, in NewBug) (domain.Bug, error)
	ListBugs(ctx context.Context, caller domain.Caller, status string) ([]domain.Bug, error)
	GetBug(ctx context.Context, caller domain.Caller, id string) (domain.Bug, error)
	UpdateBug(ctx context.Context, caller domain.Caller, id string, in BugUpdate) (domain.Bug, error)
	MoveBug(ctx context.Context, caller domain.Caller, id, status string) (domain.Bug, error)
	DeleteBug(ctx context.Context, caller domain.Caller, id string) error
	BugSummary(ctx context.Context, caller domain.Caller) (domain.BugCounts, error)
	Board(ctx context.Context, caller domain.Caller) ([]domain.BoardColumn, error)
	Assignees(ctx context.Context, caller domain.Caller) ([]domain.User, error)

	Health(ctx context.Context) error
}

// Session is what a successful signup, login or team change hands back.
type Session struct {
	Token string
	User  domain.User
}

type SignupInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

// NewBug holds the raw fields of a bug report; dates, priority and URLs
// are parsed by the service.
type NewBug struct {
	Title         string
	Description   string
	AssigneeID    string
	Priority      string
	DueDate       string
	AttachmentURL string
}

// BugUpdate is a partial update. Nil fields are left unchanged; an empty
// DueDate clears the due date.
type BugUpdate struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	DueDate     *string
}

type TrackerService struct {
	repo   storage.Repository
	tokens *auth.TokenManager
	now    func() time.Time
	newID  func() string
}

func New(repo storage.Repository, tokens *auth.TokenManager) *TrackerService {
	return &TrackerService{
		repo:   repo,
		tokens: tokens,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

func (s *TrackerService) Health(ctx context.Context) error {
	return s.repo.Health(ctx)
}
