// Package seed loads demo and bootstrap data (teams, accounts including
// admins, and bugs) from a YAML file. It talks to the repository directly
// and is only run from the `bugsage seed` command.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"bugsage/internal/auth"
	"bugsage/internal/domain"
	"bugsage/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Fixtures struct {
	Teams []TeamFixture `yaml:"teams"`
	Users []UserFixture `yaml:"users"`
	Bugs  []BugFixture  `yaml:"bugs"`
}

type TeamFixture struct {
	Name string `yaml:"name"`
}

type UserFixture struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
	Team     string `yaml:"team"`
}

type BugFixture struct {
	Title         string `yaml:"title"`
	Description   string `yaml:"description"`
	Reporter      string `yaml:"reporter"`
	Assignee      string `yaml:"assignee"`
	Status        string `yaml:"status"`
	Priority      string `yaml:"priority"`
	DueDate       string `yaml:"due_date"`
	AttachmentURL string `yaml:"attachment_url"`
}

// Result counts what Apply created; existing records are skipped.
type Result struct {
	Teams int
	Users int
	Bugs  int
}

// LoadFile reads fixtures from a YAML file.
func LoadFile(path string) (Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixtures{}, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (Fixtures, error) {
	var fx Fixtures
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return Fixtures{}, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if err := fx.Validate(); err != nil {
		return Fixtures{}, err
	}
	return fx, nil
}

// Validate checks the fixtures are self-consistent before anything is
// written.
func (f Fixtures) Validate() error {
	teams := make(map[string]bool, len(f.Teams))
	for i, t := range f.Teams {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("teams[%d]: name is required", i)
		}
		teams[t.Name] = true
	}

	users := make(map[string]UserFixture, len(f.Users))
	for i, u := range f.Users {
		if u.Username == "" || u.Email == "" || u.Password == "" {
			return fmt.Errorf("users[%d]: username, email and password are required", i)
		}
		if !domain.Role(strings.ToUpper(u.Role)).Valid() {
			return fmt.Errorf("users[%d]: unknown role %q", i, u.Role)
		}
		if u.Team != "" && !teams[u.Team] {
			return fmt.Errorf("users[%d]: team %q is not declared", i, u.Team)
		}
		users[normalizeEmail(u.Email)] = u
	}

	for i, b := range f.Bugs {
		if b.Title == "" || b.Reporter == "" || b.Assignee == "" {
			return fmt.Errorf("bugs[%d]: title, reporter and assignee are required", i)
		}
		reporter, ok := users[normalizeEmail(b.Reporter)]
		if !ok {
			return fmt.Errorf("bugs[%d]: reporter and assignee must be declared users", i)
		}
		assignee, ok := users[normalizeEmail(b.Assignee)]
		if !ok {
			return fmt.Errorf("bugs[%d]: reporter and assignee must be declared users", i)
		}
		if domain.Role(strings.ToUpper(reporter.Role)) != domain.RoleTester || reporter.Team == "" {
			return fmt.Errorf("bugs[%d]: reporter must be a tester in a team", i)
		}
		if domain.Role(strings.ToUpper(assignee.Role)) != domain.RoleDeveloper || assignee.Team != reporter.Team {
			return fmt.Errorf("bugs[%d]: assignee must be a developer in the reporter's team", i)
		}
		if b.Status != "" {
			if _, ok := domain.ParseStatus(b.Status); !ok {
				return fmt.Errorf("bugs[%d]: unknown status %q", i, b.Status)
			}
		}
		if b.DueDate != "" {
			if _, err := time.Parse(time.DateOnly, b.DueDate); err != nil {
				return fmt.Errorf("bugs[%d]: due_date must be YYYY-MM-DD", i)
			}
		}
	}
	return nil
}

type Seeder struct {
	repo storage.Repository
	log  *zap.SugaredLogger
	now  func() time.Time
}

func NewSeeder(repo storage.Repository, log *zap.SugaredLogger) *Seeder {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Seeder{
		repo: repo,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Apply writes the fixtures. Teams are matched by name, users by email and
// bugs by reporter and title, so running it twice creates nothing new.
func (s *Seeder) Apply(ctx context.Context, fx Fixtures) (Result, error) {
	var res Result

	teamIDs := make(map[string]string, len(fx.Teams))
	for _, tf := range fx.Teams {
		team, created, err := s.ensureTeam(ctx, tf.Name)
		if err != nil {
			return res, fmt.Errorf("seed team %q: %w", tf.Name, err)
		}
		if created {
			res.Teams++
		}
		teamIDs[tf.Name] = team.ID
	}

	users := make(map[string]domain.User, len(fx.Users))
	for _, uf := range fx.Users {
		user, created, err := s.ensureUser(ctx, uf, teamIDs[uf.Team])
		if err != nil {
			return res, fmt.Errorf("seed user %q: %w", uf.Email, err)
		}
		if created {
			res.Users++
		}
		users[user.Email] = user
	}

	for _, bf := range fx.Bugs {
		created, err := s.ensureBug(ctx, bf, users[normalizeEmail(bf.Reporter)], users[normalizeEmail(bf.Assignee)])
		if err != nil {
			return res, fmt.Errorf("seed bug %q: %w", bf.Title, err)
		}
		if created {
			res.Bugs++
		}
	}

	s.log.Infow("seed applied", "teams", res.Teams, "users", res.Users, "bugs", res.Bugs)
	return res, nil
}

func (s *Seeder) ensureTeam(ctx context.Context, name string) (domain.Team, bool, error) {
	team, err := s.repo.GetTeamByName(ctx, name)
	if err == nil {
		return team, false, nil
	}
	if !errors.Is(err, domain.ErrTeamNotFound) {
		return domain.Team{}, false, err
	}

	team, err = s.repo.CreateTeam(ctx, domain.Team{ID: uuid.NewString(), Name: name, CreatedAt: s.now()})
	if err != nil {
		return domain.Team{}, false, err
	}
	return team, true, nil
}

func (s *Seeder) ensureUser(ctx context.Context, uf UserFixture, teamID string) (domain.User, bool, error) {
	email := normalizeEmail(uf.Email)
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return domain.User{}, false, err
	}

	hash, err := auth.HashPassword(uf.Password)
	if err != nil {
		return domain.User{}, false, err
	}
	now := s.now()
	user, err = s.repo.CreateUser(ctx, domain.User{
		ID:           uuid.NewString(),
		Username:     uf.Username,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.Role(strings.ToUpper(uf.Role)),
		TeamID:       teamID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return domain.User{}, false, err
	}
	return user, true, nil
}

func (s *Seeder) ensureBug(ctx context.Context, bf BugFixture, reporter, assignee domain.User) (bool, error) {
	// Accounts matched by email may differ from their fixture.
	if reporter.Role != domain.RoleTester || !reporter.HasTeam() {
		return false, domain.ErrTesterOnly
	}
	if assignee.Role != domain.RoleDeveloper || assignee.TeamID != reporter.TeamID {
		return false, domain.ErrInvalidAssignee
	}

	existing, err := s.repo.ListBugs(ctx, domain.BugFilter{ReporterID: reporter.ID})
	if err != nil {
		return false, err
	}
	for _, b := range existing {
		if b.Title == bf.Title {
			return false, nil
		}
	}

	status := domain.StatusBacklog
	if st, ok := domain.ParseStatus(bf.Status); ok {
		status = st
	}
	priority, ok := domain.ParsePriority(bf.Priority)
	if !ok {
		priority = domain.PriorityMedium
	}
	var due *time.Time
	if bf.DueDate != "" {
		t, err := time.Parse(time.DateOnly, bf.DueDate)
		if err != nil {
			return false, err
		}
		due = &t
	}

	now := s.now()
	_, err = s.repo.CreateBug(ctx, domain.Bug{
		ID:            uuid.NewString(),
		Title:         bf.Title,
		Description:   bf.Description,
		Status:        status,
		Priority:      priority,
		ReporterID:    reporter.ID,
		AssigneeID:    assignee.ID,
		TeamID:        reporter.TeamID,
		DueDate:       due,
		AttachmentURL: bf.AttachmentURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
