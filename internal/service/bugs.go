package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"bugsage/internal/access"
	"bugsage/internal/domain"
)

func (s *TrackerService) CreateBug(ctx context.Context, caller domain.Caller, in NewBug) (domain.Bug, error) {
	if !access.CanCreateBug(caller) {
		return domain.Bug{}, domain.ErrTesterOnly
	}

	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	assigneeID := strings.TrimSpace(in.AssigneeID)
	if title == "" || description == "" || assigneeID == "" {
		return domain.Bug{}, domain.Invalid("title, description and assigneeId are required")
	}

	priority, ok := domain.ParsePriority(in.Priority)
	if !ok {
		priority = domain.PriorityMedium
	}

	dueDate, err := parseDueDate(in.DueDate)
	if err != nil {
		return domain.Bug{}, err
	}
	attachment, err := parseAttachmentURL(in.AttachmentURL)
	if err != nil {
		return domain.Bug{}, err
	}

	if err := s.checkAssignee(ctx, caller, assigneeID); err != nil {
		return domain.Bug{}, err
	}

	now := s.now()
	return s.repo.CreateBug(ctx, domain.Bug{
		ID:            s.newID(),
		Title:         title,
		Description:   description,
		Status:        domain.StatusBacklog,
		Priority:      priority,
		ReporterID:    caller.ID,
		AssigneeID:    assigneeID,
		TeamID:        caller.TeamID,
		DueDate:       dueDate,
		AttachmentURL: attachment,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

// checkAssignee requires a developer from the caller's own team.
func (s *TrackerService) checkAssignee(ctx context.Context, caller domain.Caller, assigneeID string) error {
	if caller.TeamID == "" {
		return domain.ErrInvalidAssignee
	}
	assignee, err := s.repo.GetUser(ctx, assigneeID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrInvalidAssignee
		}
		return err
	}
	if assignee.Role != domain.RoleDeveloper || assignee.TeamID != caller.TeamID {
		return domain.ErrInvalidAssignee
	}
	return nil
}

func (s *TrackerService) ListBugs(ctx context.Context, caller domain.Caller, status string) ([]domain.Bug, error) {
	var want domain.Status
	if strings.TrimSpace(status) != "" {
		st, ok := domain.ParseStatus(status)
		if !ok {
			return nil, domain.ErrInvalidStatus
		}
		want = st
	}

	filter, err := access.BugScope(caller)
	if err != nil {
		if errors.Is(err, access.ErrNoScope) {
			return []domain.Bug{}, nil
		}
		return nil, err
	}
	filter.Status = want

	bugs, err := s.repo.ListBugs(ctx, filter)
	if err != nil {
		return nil, err
	}
	if bugs == nil {
		bugs = []domain.Bug{}
	}
	return bugs, nil
}

func (s *TrackerService) GetBug(ctx context.Context, caller domain.Caller, id string) (domain.Bug, error) {
	bug, err := s.repo.GetBug(ctx, id)
	if err != nil {
		return domain.Bug{}, err
	}
	if !access.CanViewBug(caller, bug) {
		return domain.Bug{}, domain.ErrAccessDenied
	}
	return bug, nil
}

func (s *TrackerService) UpdateBug(ctx context.Context, caller domain.Caller, id string, in BugUpdate) (domain.Bug, error) {
	bug, err := s.repo.GetBug(ctx, id)
	if err != nil {
		return domain.Bug{}, err
	}
	if !access.CanUpdateBug(caller, bug) {
		return domain.Bug{}, domain.ErrAccessDenied
	}

	patch := domain.BugPatch{UpdatedAt: s.now()}
	if in.Title != nil {
		if title := strings.TrimSpace(*in.Title); title != "" {
			patch.Title = &title
		}
	}
	if in.Description != nil {
		description := strings.TrimSpace(*in.Description)
		patch.Description = &description
	}
	if in.Status != nil {
		st, ok := domain.ParseStatus(*in.Status)
		if !ok {
			return domain.Bug{}, domain.ErrInvalidStatus
		}
		patch.Status = &st
	}
	if in.Priority != nil {
		p, ok := domain.ParsePriority(*in.Priority)
		if !ok {
			return domain.Bug{}, domain.ErrInvalidPriority
		}
		patch.Priority = &p
	}
	if in.DueDate != nil {
		due, err := parseDueDate(*in.DueDate)
		if err != nil {
			return domain.Bug{}, err
		}
		patch.DueDate = due
		patch.ClearDueDate = due == nil
	}

	return s.repo.UpdateBug(ctx, id, patch)
}

// MoveBug places a bug in another kanban column.
func (s *TrackerService) MoveBug(ctx context.Context, caller domain.Caller, id, status string) (domain.Bug, error) {
	if strings.TrimSpace(status) == "" {
		return domain.Bug{}, domain.Invalid("status is required")
	}
	return s.UpdateBug(ctx, caller, id, BugUpdate{Status: &status})
}

func (s *TrackerService) DeleteBug(ctx context.Context, caller domain.Caller, id string) error {
	bug, err := s.repo.GetBug(ctx, id)
	if err != nil {
		return err
	}
	if !access.CanDeleteBug(caller, bug) {
		return domain.ErrAccessDenied
	}
	return s.repo.DeleteBug(ctx, id)
}

func (s *TrackerService) BugSummary(ctx context.Context, caller domain.Caller) (domain.BugCounts, error) {
	filter, err := access.BugScope(caller)
	if err != nil {
		if errors.Is(err, access.ErrNoScope) {
			return domain.NewBugCounts(), nil
		}
		return domain.BugCounts{}, err
	}
	return s.repo.CountBugs(ctx, filter)
}

// Board groups the caller's bugs into the kanban columns, in column order.
// Every column is present even when empty.
func (s *TrackerService) Board(ctx context.Context, caller domain.Caller) ([]domain.BoardColumn, error) {
	bugs, err := s.ListBugs(ctx, caller, "")
	if err != nil {
		return nil, err
	}

	columns := make([]domain.BoardColumn, len(domain.Statuses))
	index := make(map[domain.Status]int, len(domain.Statuses))
	for i, st := range domain.Statuses {
		columns[i] = domain.BoardColumn{Status: st, Bugs: []domain.Bug{}}
		index[st] = i
	}
	for _, bug := range bugs {
		if i, ok := index[bug.Status]; ok {
			columns[i].Bugs = append(columns[i].Bugs, bug)
		}
	}
	return columns, nil
}

// Assignees lists the developers a caller may assign a new bug to.
func (s *TrackerService) Assignees(ctx context.Context, caller domain.Caller) ([]domain.User, error) {
	if caller.TeamID == "" {
		return []domain.User{}, nil
	}
	users, err := s.repo.ListUsers(ctx, domain.UserFilter{TeamID: caller.TeamID, Role: domain.RoleDeveloper})
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

const dateOnly = "2006-01-02"

func parseDueDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	if t, err := time.Parse(dateOnly, raw); err == nil {
		return &t, nil
	}
	return nil, domain.Invalid("dueDate must be RFC 3339 or YYYY-MM-DD")
}

func parseAttachmentURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", domain.Invalid("attachmentUrl must be an absolute http(s) URL")
	}
	return raw, nil
}
