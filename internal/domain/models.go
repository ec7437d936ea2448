package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleTester    Role = "TESTER"
	RoleDeveloper Role = "DEVELOPER"
	RoleAdmin     Role = "ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleTester, RoleDeveloper, RoleAdmin:
		return true
	}
	return false
}

// DisplayName is the label the team tables show for a role.
func (r Role) DisplayName() string {
	switch r {
	case RoleDeveloper:
		return "Developer"
	case RoleTester:
		return "Tester"
	default:
		return "Admin"
	}
}

type Status string

const (
	StatusBacklog    Status = "BACKLOG"
	StatusInProgress Status = "IN_PROGRESS"
	StatusTesting    Status = "TESTING"
	StatusResolved   Status = "RESOLVED"
)

// Statuses lists the statuses in kanban column order.
var Statuses = []Status{StatusBacklog, StatusInProgress, StatusTesting, StatusResolved}

var statusAliases = map[string]Status{
	"BACKLOG":     StatusBacklog,
	"IN_PROGRESS": StatusInProgress,
	"IN PROGRESS": StatusInProgress,
	"TESTING":     StatusTesting,
	"TESTER":      StatusTesting,
	"RESOLVED":    StatusResolved,
}

// ParseStatus accepts the canonical values and the kanban column labels
// ("In Progress", "Tester", ...) and returns the canonical status.
func ParseStatus(s string) (Status, bool) {
	st, ok := statusAliases[strings.ToUpper(strings.TrimSpace(s))]
	return st, ok
}

// ColumnTitle is the kanban column a status is rendered in.
func (s Status) ColumnTitle() string {
	switch s {
	case StatusBacklog:
		return "Backlog"
	case StatusInProgress:
		return "In Progress"
	case StatusTesting:
		return "Testing"
	case StatusResolved:
		return "Resolved"
	}
	return string(s)
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func ParsePriority(s string) (Priority, bool) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, true
	}
	return "", false
}

type Team struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	TeamID       string
	TeamName     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u User) HasTeam() bool { return u.TeamID != "" }

// UserRef is the short form of a user embedded in bug payloads.
type UserRef struct {
	ID       string
	Username string
	Email    string
}

type Bug struct {
	ID            string
	Title         string
	Description   string
	Status        Status
	Priority      Priority
	ReporterID    string
	AssigneeID    string
	TeamID        string
	DueDate       *time.Time
	AttachmentURL string
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Reporter UserRef
	Assignee UserRef
	TeamName string
}

// DefaultBugWindow is how long a bug without a due date is expected to
// stay open when it is drawn on the board.
const DefaultBugWindow = 7 * 24 * time.Hour

// EndAt is the due date, or DefaultBugWindow after creation when unset.
func (b Bug) EndAt() time.Time {
	if b.DueDate != nil {
		return *b.DueDate
	}
	return b.CreatedAt.Add(DefaultBugWindow)
}

// BugPatch carries a partial update; nil fields are left untouched.
type BugPatch struct {
	Title       *string
	Description *string
	Status      *Status
	Priority    *Priority
	DueDate     *time.Time

	// ClearDueDate removes the due date; it wins over DueDate.
	ClearDueDate bool
	UpdatedAt    time.Time
}

// BugFilter restricts a bug query. Empty fields do not constrain.
type BugFilter struct {
	TeamID     string
	AssigneeID string
	ReporterID string
	Status     Status
}

type UserFilter struct {
	TeamID string
	Role   Role
}

type BugCounts struct {
	Total      int
	ByStatus   map[Status]int
	ByPriority map[Priority]int
}

func NewBugCounts() BugCounts {
	return BugCounts{
		ByStatus:   make(map[Status]int, len(Statuses)),
		ByPriority: make(map[Priority]int, len(Priorities)),
	}
}

func (c *BugCounts) Add(status Status, priority Priority, n int) {
	c.Total += n
	c.ByStatus[status] += n
	c.ByPriority[priority] += n
}

// Caller is the authenticated identity a request acts as.
type Caller struct {
	ID     string
	Email  string
	Role   Role
	TeamID string
}

func CallerOf(u User) Caller {
	return Caller{ID: u.ID, Email: u.Email, Role: u.Role, TeamID: u.TeamID}
}

type TeamStats struct {
	Members map[Role]int
	Bugs    BugCounts
}

// MemberSummary is a team member with the bugs that count towards them.
type MemberSummary struct {
	User User
	Bugs BugCounts
}

type MemberDetail struct {
	User User
	Bugs []Bug
}

type BoardColumn struct {
	Status Status
	Bugs   []Bug
}
