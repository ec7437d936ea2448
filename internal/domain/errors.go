package domain

import "errors"

// Kinds of failure. Every error the service returns wraps one of these so
// transports can classify it with errors.Is.
var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
)

var (
	ErrEmailTaken         = kindError{ErrConflict, "email already registered"}
	ErrTeamExists         = kindError{ErrConflict, "team already exists"}
	ErrInvalidCredentials = kindError{ErrUnauthenticated, "invalid credentials"}
	ErrInvalidToken       = kindError{ErrUnauthenticated, "invalid or expired token"}
	ErrUserNotFound       = kindError{ErrNotFound, "user not found"}
	ErrTeamNotFound       = kindError{ErrNotFound, "team not found"}
	ErrBugNotFound        = kindError{ErrNotFound, "bug not found"}
	ErrNoTeam             = kindError{ErrNotFound, "you are not assigned to a team"}
	ErrTesterOnly         = kindError{ErrForbidden, "only testers can raise bugs"}
	ErrAccessDenied       = kindError{ErrForbidden, "access denied"}
	ErrInvalidAssignee    = kindError{ErrValidation, "invalid assignee: must be a developer in your team"}
	ErrInvalidStatus      = kindError{ErrValidation, "invalid status"}
	ErrInvalidPriority    = kindError{ErrValidation, "invalid priority"}
)

type kindError struct {
	kind error
	msg  string
}

func (e kindError) Error() string { return e.msg }

func (e kindError) Unwrap() error { return e.kind }

// Invalid builds a validation error with a caller-facing message.
func Invalid(msg string) error {
	return kindError{ErrValidation, msg}
}

// Message returns the caller-facing text of err: the message of the
// innermost domain error, or the kind's text when none carries one.
func Message(err error) string {
	var ke kindError
	if errors.As(err, &ke) {
		return ke.msg
	}
	return err.Error()
}
