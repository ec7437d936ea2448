// Package sqlite is the embedded storage backend. It keeps the same
// Repository contract as the Postgres store on top of gorm, which makes it
// suitable for single-node deployments and for tests that need a real
// database without a container.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bugsage/internal/domain"
	"bugsage/internal/storage"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InMemory opens a private database that lives as long as the store.
const InMemory = ":memory:"

var _ storage.Repository = (*Store)(nil)

type Store struct {
	db *gorm.DB
}

type teamModel struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex:teams_name_key;not null"`
	CreatedAt time.Time
}

func (teamModel) TableName() string { return "teams" }

type userModel struct {
	ID           string `gorm:"primaryKey"`
	Username     string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex:users_email_key;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null"`
	TeamID       *string
	Team         *teamModel `gorm:"foreignKey:TeamID"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userModel) TableName() string { return "users" }

type bugModel struct {
	ID            string     `gorm:"primaryKey"`
	Title         string     `gorm:"not null"`
	Description   string     `gorm:"not null;default:''"`
	Status        string     `gorm:"not null;index"`
	Priority      string     `gorm:"not null"`
	ReporterID    string     `gorm:"not null;index"`
	Reporter      userModel  `gorm:"foreignKey:ReporterID"`
	AssigneeID    string     `gorm:"not null;index"`
	Assignee      userModel  `gorm:"foreignKey:AssigneeID"`
	TeamID        *string    `gorm:"index"`
	Team          *teamModel `gorm:"foreignKey:TeamID"`
	DueDate       *time.Time
	AttachmentURL *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (bugModel) TableName() string { return "bugs" }

// New opens the database at path and migrates the schema.
func New(path string) (*Store, error) {
	gormLogger := logger.Default.LogMode(logger.Silent)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection also keeps an
	// in-memory database alive for the lifetime of the store.
	sqlDB.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.Migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&teamModel{}, &userModel{}, &bugModel{}); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func (s *Store) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	m := userModel{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Role:         string(user.Role),
		TeamID:       optional(user.TeamID),
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
	if err := s.db.WithContext(ctx).Omit("Team").Create(&m).Error; err != nil {
		return domain.User{}, translateError(err)
	}
	return s.GetUser(ctx, user.ID)
}

func (s *Store) GetUser(ctx context.Context, id string) (domain.User, error) {
	var m userModel
	if err := s.db.WithContext(ctx).Preload("Team").Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, err
	}
	return m.toDomain(), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var m userModel
	if err := s.db.WithContext(ctx).Preload("Team").Where("email = ?", email).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, err
	}
	return m.toDomain(), nil
}

func (s *Store) SetUserTeam(ctx context.Context, userID, teamID string) (domain.User, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if teamID != "" {
			var count int64
			if err := tx.Model(&teamModel{}).Where("id = ?", teamID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domain.ErrTeamNotFound
			}
		}

		res := tx.Model(&userModel{}).Where("id = ?", userID).Updates(map[string]any{
			"team_id":    optional(teamID),
			"updated_at": time.Now().UTC(),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	return s.GetUser(ctx, userID)
}

func (s *Store) ListUsers(ctx context.Context, filter domain.UserFilter) ([]domain.User, error) {
	q := s.db.WithContext(ctx).Preload("Team")
	if filter.TeamID != "" {
		q = q.Where("team_id = ?", filter.TeamID)
	}
	if filter.Role != "" {
		q = q.Where("role = ?", string(filter.Role))
	}

	var models []userModel
	if err := q.Order("username").Order("id").Find(&models).Error; err != nil {
		return nil, err
	}

	users := make([]domain.User, 0, len(models))
	for _, m := range models {
		users = append(users, m.toDomain())
	}
	return users, nil
}

func (s *Store) CreateTeam(ctx context.Context, team domain.Team) (domain.Team, error) {
	m := teamModel{ID: team.ID, Name: team.Name, CreatedAt: team.CreatedAt}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Team{}, translateError(err)
	}
	return m.toDomain(), nil
}

func (s *Store) GetTeam(ctx context.Context, id string) (domain.Team, error) {
	return s.findTeam(ctx, "id = ?", id)
}

func (s *Store) GetTeamByName(ctx context.Context, name string) (domain.Team, error) {
	return s.findTeam(ctx, "name = ?", name)
}

func (s *Store) findTeam(ctx context.Context, cond string, arg string) (domain.Team, error) {
	var m teamModel
	if err := s.db.WithContext(ctx).Where(cond, arg).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Team{}, domain.ErrTeamNotFound
		}
		return domain.Team{}, err
	}
	return m.toDomain(), nil
}

func (s *Store) ListTeams(ctx context.Context) ([]domain.Team, error) {
	var models []teamModel
	if err := s.db.WithContext(ctx).Order("name").Find(&models).Error; err != nil {
		return nil, err
	}
	teams := make([]domain.Team, 0, len(models))
	for _, m := range models {
		teams = append(teams, m.toDomain())
	}
	return teams, nil
}

func (s *Store) CreateBug(ctx context.Context, bug domain.Bug) (domain.Bug, error) {
	m := bugModel{
		ID:            bug.ID,
		Title:         bug.Title,
		Description:   bug.Description,
		Status:        string(bug.Status),
		Priority:      string(bug.Priority),
		ReporterID:    bug.ReporterID,
		AssigneeID:    bug.AssigneeID,
		TeamID:        optional(bug.TeamID),
		DueDate:       bug.DueDate,
		AttachmentURL: optional(bug.AttachmentURL),
		CreatedAt:     bug.CreatedAt,
		UpdatedAt:     bug.UpdatedAt,
	}
	if err := s.db.WithContext(ctx).Omit("Reporter", "Assignee", "Team").Create(&m).Error; err != nil {
		return domain.Bug{}, translateError(err)
	}
	return s.GetBug(ctx, bug.ID)
}

func (s *Store) bugs(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Preload("Reporter").Preload("Assignee").Preload("Team")
}

func (s *Store) GetBug(ctx context.Context, id string) (domain.Bug, error) {
	var m bugModel
	if err := s.bugs(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Bug{}, domain.ErrBugNotFound
		}
		return domain.Bug{}, err
	}
	return m.toDomain(), nil
}

func (s *Store) UpdateBug(ctx context.Context, id string, patch domain.BugPatch) (domain.Bug, error) {
	updatedAt := patch.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	changes := map[string]any{"updated_at": updatedAt}
	if patch.Title != nil {
		changes["title"] = *patch.Title
	}
	if patch.Description != nil {
		changes["description"] = *patch.Description
	}
	if patch.Status != nil {
		changes["status"] = string(*patch.Status)
	}
	if patch.Priority != nil {
		changes["priority"] = string(*patch.Priority)
	}
	switch {
	case patch.ClearDueDate:
		changes["due_date"] = nil
	case patch.DueDate != nil:
		changes["due_date"] = *patch.DueDate
	}

	res := s.db.WithContext(ctx).Model(&bugModel{}).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		return domain.Bug{}, translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.Bug{}, domain.ErrBugNotFound
	}
	return s.GetBug(ctx, id)
}

func (s *Store) DeleteBug(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&bugModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrBugNotFound
	}
	return nil
}

func (s *Store) ListBugs(ctx context.Context, filter domain.BugFilter) ([]domain.Bug, error) {
	var models []bugModel
	if err := applyBugFilter(s.bugs(ctx), filter).Order("created_at DESC").Order("id").Find(&models).Error; err != nil {
		return nil, err
	}
	bugs := make([]domain.Bug, 0, len(models))
	for _, m := range models {
		bugs = append(bugs, m.toDomain())
	}
	return bugs, nil
}

func (s *Store) CountBugs(ctx context.Context, filter domain.BugFilter) (domain.BugCounts, error) {
	var rows []struct {
		Status   string
		Priority string
		N        int
	}
	q := applyBugFilter(s.db.WithContext(ctx).Model(&bugModel{}), filter)
	if err := q.Select("status, priority, COUNT(*) AS n").Group("status, priority").Scan(&rows).Error; err != nil {
		return domain.BugCounts{}, err
	}

	counts := domain.NewBugCounts()
	for _, r := range rows {
		counts.Add(domain.Status(r.Status), domain.Priority(r.Priority), r.N)
	}
	return counts, nil
}

func applyBugFilter(q *gorm.DB, filter domain.BugFilter) *gorm.DB {
	if filter.TeamID != "" {
		q = q.Where("bugs.team_id = ?", filter.TeamID)
	}
	if filter.AssigneeID != "" {
		q = q.Where("bugs.assignee_id = ?", filter.AssigneeID)
	}
	if filter.ReporterID != "" {
		q = q.Where("bugs.reporter_id = ?", filter.ReporterID)
	}
	if filter.Status != "" {
		q = q.Where("bugs.status = ?", string(filter.Status))
	}
	return q
}

func (m teamModel) toDomain() domain.Team {
	return domain.Team{ID: m.ID, Name: m.Name, CreatedAt: m.CreatedAt}
}

func (m userModel) toDomain() domain.User {
	u := domain.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.Role(m.Role),
		TeamID:       deref(m.TeamID),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.Team != nil {
		u.TeamName = m.Team.Name
	}
	return u
}

func (m bugModel) toDomain() domain.Bug {
	b := domain.Bug{
		ID:            m.ID,
		Title:         m.Title,
		Description:   m.Description,
		Status:        domain.Status(m.Status),
		Priority:      domain.Priority(m.Priority),
		ReporterID:    m.ReporterID,
		AssigneeID:    m.AssigneeID,
		TeamID:        deref(m.TeamID),
		DueDate:       m.DueDate,
		AttachmentURL: deref(m.AttachmentURL),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		Reporter:      domain.UserRef{ID: m.Reporter.ID, Username: m.Reporter.Username, Email: m.Reporter.Email},
		Assignee:      domain.UserRef{ID: m.Assignee.ID, Username: m.Assignee.Username, Email: m.Assignee.Email},
	}
	if m.Team != nil {
		b.TeamName = m.Team.Name
	}
	return b
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func translateError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		switch {
		case strings.Contains(msg, "users.email"):
			return domain.ErrEmailTaken
		case strings.Contains(msg, "teams.name"):
			return domain.ErrTeamExists
		}
	}
	return err
}
