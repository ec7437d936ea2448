package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bugsage/internal/config"
	"bugsage/internal/domain"
	"bugsage/internal/storage"
	"bugsage/internal/storage/postgres/migrations"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

var _ storage.Repository = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and brings the schema up to date.
func New(ctx context.Context, cfg config.PostgresConfig) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	store := &Store{pool: pool}
	if err := store.applyMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) applyMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close() //nolint:errcheck

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.Files)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

const userColumns = `u.id, u.username, u.email, u.password_hash, u.role, u.team_id, t.name, u.created_at, u.updated_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u        domain.User
		teamID   *string
		teamName *string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &teamID, &teamName, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return domain.User{}, err
	}
	u.TeamID = deref(teamID)
	u.TeamName = deref(teamName)
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, email, password_hash, role, team_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, user.Username, user.Email, user.PasswordHash, string(user.Role), nullable(user.TeamID), user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return domain.User{}, translateError(err)
	}
	return s.GetUser(ctx, user.ID)
}

func (s *Store) GetUser(ctx context.Context, id string) (domain.User, error) {
	user, err := scanUser(s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users u
		LEFT JOIN teams t ON t.id = u.team_id
		WHERE u.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	user, err := scanUser(s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users u
		LEFT JOIN teams t ON t.id = u.team_id
		WHERE u.email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

func (s *Store) SetUserTeam(ctx context.Context, userID, teamID string) (domain.User, error) {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if teamID != "" {
			var id string
			err := tx.QueryRow(ctx, `SELECT id FROM teams WHERE id = $1 FOR SHARE`, teamID).Scan(&id)
			if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
				return domain.ErrTeamNotFound
			}
			if err != nil {
				return err
			}
		}

		tag, err := tx.Exec(ctx, `
			UPDATE users
			SET team_id = $2,
			    updated_at = NOW()
			WHERE id = $1
		`, userID, nullable(teamID))
		if err != nil {
			if isInvalidText(err) {
				return domain.ErrUserNotFound
			}
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		return domain.User{}, translateError(err)
	}
	return s.GetUser(ctx, userID)
}

func (s *Store) ListUsers(ctx context.Context, filter domain.UserFilter) ([]domain.User, error) {
	var (
		where []string
		args  []any
	)
	if filter.TeamID != "" {
		args = append(args, filter.TeamID)
		where = append(where, "u.team_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Role != "" {
		args = append(args, string(filter.Role))
		where = append(where, "u.role = $"+strconv.Itoa(len(args)))
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users u
		LEFT JOIN teams t ON t.id = u.team_id`+whereClause(where)+`
		ORDER BY u.username, u.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return users, nil
}

func (s *Store) CreateTeam(ctx context.Context, team domain.Team) (domain.Team, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO teams (id, name, created_at)
		VALUES ($1, $2, $3)
	`, team.ID, team.Name, team.CreatedAt)
	if err != nil {
		return domain.Team{}, translateError(err)
	}
	return s.GetTeam(ctx, team.ID)
}

func (s *Store) GetTeam(ctx context.Context, id string) (domain.Team, error) {
	var team domain.Team
	err := s.pool.QueryRow(ctx, `SELECT id, name, created_at FROM teams WHERE id = $1`, id).
		Scan(&team.ID, &team.Name, &team.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return domain.Team{}, domain.ErrTeamNotFound
		}
		return domain.Team{}, err
	}
	return team, nil
}

func (s *Store) GetTeamByName(ctx context.Context, name string) (domain.Team, error) {
	var team domain.Team
	err := s.pool.QueryRow(ctx, `SELECT id, name, created_at FROM teams WHERE name = $1`, name).
		Scan(&team.ID, &team.Name, &team.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Team{}, domain.ErrTeamNotFound
		}
		return domain.Team{}, err
	}
	return team, nil
}

func (s *Store) ListTeams(ctx context.Context) ([]domain.Team, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, created_at FROM teams ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []domain.Team
	for rows.Next() {
		var team domain.Team
		if err := rows.Scan(&team.ID, &team.Name, &team.CreatedAt); err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return teams, nil
}

const bugSelect = `
	SELECT b.id, b.title, b.description, b.status, b.priority,
	       b.reporter_id, b.assignee_id, b.team_id, b.due_date, b.attachment_url,
	       b.created_at, b.updated_at,
	       r.username, r.email, a.username, a.email, t.name
	FROM bugs b
	JOIN users r ON r.id = b.reporter_id
	JOIN users a ON a.id = b.assignee_id
	LEFT JOIN teams t ON t.id = b.team_id`

func scanBug(row pgx.Row) (domain.Bug, error) {
	var (
		b          domain.Bug
		teamID     *string
		attachment *string
		teamName   *string
	)
	err := row.Scan(
		&b.ID, &b.Title, &b.Description, &b.Status, &b.Priority,
		&b.ReporterID, &b.AssigneeID, &teamID, &b.DueDate, &attachment,
		&b.CreatedAt, &b.UpdatedAt,
		&b.Reporter.Username, &b.Reporter.Email, &b.Assignee.Username, &b.Assignee.Email, &teamName,
	)
	if err != nil {
		return domain.Bug{}, err
	}
	b.TeamID = deref(teamID)
	b.AttachmentURL = deref(attachment)
	b.TeamName = deref(teamName)
	b.Reporter.ID = b.ReporterID
	b.Assignee.ID = b.AssigneeID
	return b, nil
}

func (s *Store) CreateBug(ctx context.Context, bug domain.Bug) (domain.Bug, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO bugs (id, title, description, status, priority, reporter_id, assignee_id,
		                  team_id, due_date, attachment_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, bug.ID, bug.Title, bug.Description, string(bug.Status), string(bug.Priority), bug.ReporterID, bug.AssigneeID,
		nullable(bug.TeamID), bug.DueDate, nullable(bug.AttachmentURL), bug.CreatedAt, bug.UpdatedAt)
	if err != nil {
		return domain.Bug{}, translateError(err)
	}
	return s.GetBug(ctx, bug.ID)
}

func (s *Store) GetBug(ctx context.Context, id string) (domain.Bug, error) {
	bug, err := scanBug(s.pool.QueryRow(ctx, bugSelect+` WHERE b.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return domain.Bug{}, domain.ErrBugNotFound
		}
		return domain.Bug{}, err
	}
	return bug, nil
}

// UpdateBug writes only the columns present in patch.
func (s *Store) UpdateBug(ctx context.Context, id string, patch domain.BugPatch) (domain.Bug, error) {
	updatedAt := patch.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	args := []any{id, updatedAt}
	set := []string{"updated_at = $2"}
	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, column+" = $"+strconv.Itoa(len(args)))
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.Priority != nil {
		add("priority", string(*patch.Priority))
	}
	switch {
	case patch.ClearDueDate:
		add("due_date", nil)
	case patch.DueDate != nil:
		add("due_date", *patch.DueDate)
	}

	tag, err := s.pool.Exec(ctx, `UPDATE bugs SET `+strings.Join(set, ", ")+` WHERE id = $1`, args...)
	if err != nil {
		if isInvalidText(err) {
			return domain.Bug{}, domain.ErrBugNotFound
		}
		return domain.Bug{}, translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Bug{}, domain.ErrBugNotFound
	}
	return s.GetBug(ctx, id)
}

func (s *Store) DeleteBug(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM bugs WHERE id = $1`, id)
	if err != nil {
		if isInvalidText(err) {
			return domain.ErrBugNotFound
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBugNotFound
	}
	return nil
}

func (s *Store) ListBugs(ctx context.Context, filter domain.BugFilter) ([]domain.Bug, error) {
	where, args := bugWhere(filter)
	rows, err := s.pool.Query(ctx, bugSelect+whereClause(where)+` ORDER BY b.created_at DESC, b.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bugs []domain.Bug
	for rows.Next() {
		bug, err := scanBug(rows)
		if err != nil {
			return nil, err
		}
		bugs = append(bugs, bug)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return bugs, nil
}

func (s *Store) CountBugs(ctx context.Context, filter domain.BugFilter) (domain.BugCounts, error) {
	where, args := bugWhere(filter)
	rows, err := s.pool.Query(ctx, `
		SELECT b.status, b.priority, COUNT(*)
		FROM bugs b`+whereClause(where)+`
		GROUP BY b.status, b.priority`, args...)
	if err != nil {
		return domain.BugCounts{}, err
	}
	defer rows.Close()

	counts := domain.NewBugCounts()
	for rows.Next() {
		var (
			status   domain.Status
			priority domain.Priority
			n        int
		)
		if err := rows.Scan(&status, &priority, &n); err != nil {
			return domain.BugCounts{}, err
		}
		counts.Add(status, priority, n)
	}
	if rows.Err() != nil {
		return domain.BugCounts{}, rows.Err()
	}
	return counts, nil
}

func (s *Store) Health(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func bugWhere(filter domain.BugFilter) ([]string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(column, value string) {
		args = append(args, value)
		where = append(where, column+" = $"+strconv.Itoa(len(args)))
	}
	if filter.TeamID != "" {
		add("b.team_id", filter.TeamID)
	}
	if filter.AssigneeID != "" {
		add("b.assignee_id", filter.AssigneeID)
	}
	if filter.ReporterID != "" {
		add("b.reporter_id", filter.ReporterID)
	}
	if filter.Status != "" {
		add("b.status", string(filter.Status))
	}
	return where, args
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// isInvalidText reports a malformed UUID literal, which for lookups by id
// means the row cannot exist.
func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			switch pgErr.ConstraintName {
			case "users_email_key":
				return domain.ErrEmailTaken
			case "teams_name_key":
				return domain.ErrTeamExists
			}
		case "23503":
			switch pgErr.ConstraintName {
			case "users_team_id_fkey", "bugs_team_id_fkey":
				return domain.ErrTeamNotFound
			case "bugs_reporter_id_fkey", "bugs_assignee_id_fkey":
				return domain.ErrUserNotFound
			}
		case "22P02":
			return domain.Invalid("malformed identifier")
		}
	}
	return err
}
