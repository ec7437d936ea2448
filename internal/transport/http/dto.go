package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"bugsage/internal/service"
)

const maxBodyBytes = 1 << 20

var errBadBody = errors.New("invalid request body")

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errBadBody
	}
	return nil
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (s signupRequest) validate() error {
	var missing []string
	if strings.TrimSpace(s.Username) == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(s.Email) == "" {
		missing = append(missing, "email")
	}
	if s.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return errors.New(strings.Join(missing, ", ") + " required")
	}
	return nil
}

func (s signupRequest) toInput() service.SignupInput {
	return service.SignupInput{
		Username: s.Username,
		Email:    s.Email,
		Password: s.Password,
		Role:     s.Role,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (l loginRequest) validate() error {
	if strings.TrimSpace(l.Email) == "" || l.Password == "" {
		return errors.New("email and password are required")
	}
	return nil
}

type createBugRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	AssigneeID    string `json:"assigneeId"`
	Priority      string `json:"priority"`
	DueDate       string `json:"dueDate"`
	AttachmentURL string `json:"attachmentUrl"`
}

func (c createBugRequest) toInput() service.NewBug {
	return service.NewBug{
		Title:         c.Title,
		Description:   c.Description,
		AssigneeID:    c.AssigneeID,
		Priority:      c.Priority,
		DueDate:       c.DueDate,
		AttachmentURL: c.AttachmentURL,
	}
}

// updateBugRequest distinguishes omitted fields (nil) from empty ones.
type updateBugRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
	DueDate     *string `json:"dueDate"`
}

func (u updateBugRequest) toInput() service.BugUpdate {
	return service.BugUpdate{
		Title:       u.Title,
		Description: u.Description,
		Status:      u.Status,
		Priority:    u.Priority,
		DueDate:     u.DueDate,
	}
}

type moveBugRequest struct {
	Status string `json:"status"`
}

func (m moveBugRequest) validate() error {
	if strings.TrimSpace(m.Status) == "" {
		return errors.New("status is required")
	}
	return nil
}

type joinTeamRequest struct {
	TeamID string `json:"teamId"`
}

func (j joinTeamRequest) validate() error {
	if strings.TrimSpace(j.TeamID) == "" {
		return errors.New("teamId is required")
	}
	return nil
}
