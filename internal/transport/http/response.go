package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"bugsage/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type userPayload struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Type      string    `json:"type"`
	TeamID    *string   `json:"teamId"`
	TeamName  string    `json:"teamName,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type userRefPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type teamPayload struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

type bugPayload struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Status        string         `json:"status"`
	Priority      string         `json:"priority"`
	Reporter      userRefPayload `json:"reporter"`
	Assignee      userRefPayload `json:"assignee"`
	Team          *teamPayload   `json:"team"`
	DueDate       *time.Time     `json:"dueDate"`
	AttachmentURL string         `json:"attachmentUrl,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

type cardPayload struct {
	bugPayload
	StartAt time.Time `json:"startAt"`
	EndAt   time.Time `json:"endAt"`
}

type columnPayload struct {
	ID    string        `json:"id"`
	Title string        `json:"title"`
	Cards []cardPayload `json:"cards"`
}

type statusCountsPayload struct {
	Backlog    int `json:"backlog"`
	InProgress int `json:"inProgress"`
	Testing    int `json:"testing"`
	Resolved   int `json:"resolved"`
}

type priorityCountsPayload struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

type countsPayload struct {
	Total      int                   `json:"total"`
	ByStatus   statusCountsPayload   `json:"byStatus"`
	ByPriority priorityCountsPayload `json:"byPriority"`
}

type memberPayload struct {
	userPayload
	Bugs countsPayload `json:"bugs"`
}

type memberDetailPayload struct {
	userPayload
	Bugs []bugPayload `json:"bugs"`
}

type roleCountsPayload struct {
	Testers    int `json:"testers"`
	Developers int `json:"developers"`
	Admins     int `json:"admins"`
	Total      int `json:"total"`
}

type teamStatsPayload struct {
	Members roleCountsPayload `json:"members"`
	Bugs    countsPayload     `json:"bugs"`
}

type sessionPayload struct {
	Token string      `json:"token"`
	User  userPayload `json:"user"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{
		Error: message,
		Code:  code,
	})
}

func mapUser(user domain.User) userPayload {
	var teamID *string
	if user.TeamID != "" {
		id := user.TeamID
		teamID = &id
	}
	return userPayload{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      string(user.Role),
		Type:      user.Role.DisplayName(),
		TeamID:    teamID,
		TeamName:  user.TeamName,
		CreatedAt: user.CreatedAt,
	}
}

func mapUserRef(ref domain.UserRef) userRefPayload {
	return userRefPayload{ID: ref.ID, Username: ref.Username, Email: ref.Email}
}

func mapTeam(team domain.Team) teamPayload {
	var createdAt *time.Time
	if !team.CreatedAt.IsZero() {
		ts := team.CreatedAt
		createdAt = &ts
	}
	return teamPayload{ID: team.ID, Name: team.Name, CreatedAt: createdAt}
}

func mapBug(bug domain.Bug) bugPayload {
	var team *teamPayload
	if bug.TeamID != "" {
		team = &teamPayload{ID: bug.TeamID, Name: bug.TeamName}
	}
	return bugPayload{
		ID:            bug.ID,
		Title:         bug.Title,
		Description:   bug.Description,
		Status:        string(bug.Status),
		Priority:      string(bug.Priority),
		Reporter:      mapUserRef(bug.Reporter),
		Assignee:      mapUserRef(bug.Assignee),
		Team:          team,
		DueDate:       bug.DueDate,
		AttachmentURL: bug.AttachmentURL,
		CreatedAt:     bug.CreatedAt,
		UpdatedAt:     bug.UpdatedAt,
	}
}

func mapBugs(bugs []domain.Bug) []bugPayload {
	out := make([]bugPayload, 0, len(bugs))
	for _, b := range bugs {
		out = append(out, mapBug(b))
	}
	return out
}

func mapCounts(c domain.BugCounts) countsPayload {
	return countsPayload{
		Total: c.Total,
		ByStatus: statusCountsPayload{
			Backlog:    c.ByStatus[domain.StatusBacklog],
			InProgress: c.ByStatus[domain.StatusInProgress],
			Testing:    c.ByStatus[domain.StatusTesting],
			Resolved:   c.ByStatus[domain.StatusResolved],
		},
		ByPriority: priorityCountsPayload{
			Low:    c.ByPriority[domain.PriorityLow],
			Medium: c.ByPriority[domain.PriorityMedium],
			High:   c.ByPriority[domain.PriorityHigh],
		},
	}
}

func mapColumn(col domain.BoardColumn) columnPayload {
	cards := make([]cardPayload, 0, len(col.Bugs))
	for _, b := range col.Bugs {
		cards = append(cards, cardPayload{
			bugPayload: mapBug(b),
			StartAt:    b.CreatedAt,
			EndAt:      b.EndAt(),
		})
	}
	return columnPayload{
		ID:    string(col.Status),
		Title: col.Status.ColumnTitle(),
		Cards: cards,
	}
}

func mapTeamStats(stats domain.TeamStats) teamStatsPayload {
	members := roleCountsPayload{
		Testers:    stats.Members[domain.RoleTester],
		Developers: stats.Members[domain.RoleDeveloper],
		Admins:     stats.Members[domain.RoleAdmin],
	}
	members.Total = members.Testers + members.Developers + members.Admins
	return teamStatsPayload{Members: members, Bugs: mapCounts(stats.Bugs)}
}
