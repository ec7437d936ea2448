package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"bugsage/internal/auth"
	"bugsage/internal/domain"
)

// bcrypt ignores everything past 72 bytes.
const maxPasswordLen = 72

func (s *TrackerService) Signup(ctx context.Context, in SignupInput) (Session, error) {
	username := strings.TrimSpace(in.Username)
	email := normalizeEmail(in.Email)
	if username == "" || email == "" || in.Password == "" {
		return Session{}, domain.Invalid("username, email and password are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return Session{}, domain.Invalid("invalid email address")
	}
	if len(in.Password) > maxPasswordLen {
		return Session{}, domain.Invalid("password must be at most 72 bytes")
	}

	role := domain.RoleTester
	if r := strings.TrimSpace(in.Role); r != "" {
		role = domain.Role(strings.ToUpper(r))
		if role != domain.RoleTester && role != domain.RoleDeveloper {
			return Session{}, domain.Invalid("role must be TESTER or DEVELOPER")
		}
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return Session{}, err
	}

	now := s.now()
	user, err := s.repo.CreateUser(ctx, domain.User{
		ID:           s.newID(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return Session{}, err
	}

	return s.session(user)
}

func (s *TrackerService) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			auth.CheckPassword("", password)
			return Session{}, domain.ErrInvalidCredentials
		}
		return Session{}, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return Session{}, domain.ErrInvalidCredentials
	}
	return s.session(user)
}

// Authenticate resolves a bearer token to the caller it belongs to. Role
// and team come from the store, not the token claims.
func (s *TrackerService) Authenticate(ctx context.Context, token string) (domain.Caller, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return domain.Caller{}, err
	}
	user, err := s.repo.GetUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.Caller{}, domain.ErrInvalidToken
		}
		return domain.Caller{}, fmt.Errorf("load caller: %w", err)
	}
	return domain.CallerOf(user), nil
}

func (s *TrackerService) Me(ctx context.Context, caller domain.Caller) (domain.User, error) {
	return s.repo.GetUser(ctx, caller.ID)
}

func (s *TrackerService) session(user domain.User) (Session, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, User: user}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
