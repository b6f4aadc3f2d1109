package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Skotchmaster/shopcart/internal/events"
	"github.com/Skotchmaster/shopcart/internal/hash"
	"github.com/Skotchmaster/shopcart/internal/logging"
	"github.com/Skotchmaster/shopcart/internal/repo"
	"github.com/Skotchmaster/shopcart/internal/session"
)

type AuthService struct {
	Users    repo.UserRepository
	Sessions *session.Manager
	Events   events.Publisher
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	UserID    uint
	Username  string
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login", "username", username)

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password are required: %w", ErrInvalidInput)
	}

	user, err := s.Users.GetUserByUsername(ctx, username)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	if err != nil {
		l.Error("login_error", "status", 500, "reason", "user lookup failed", "error", err)
		return nil, fmt.Errorf("lookup user: %w", ErrInternal)
	}

	if !hash.Verify(user.PasswordHash, password) {
		return nil, fmt.Errorf("wrong password: %w", ErrUnauthorized)
	}

	token, exp, err := s.Sessions.Issue(ctx, user.ID)
	if err != nil {
		l.Error("login_error", "status", 500, "reason", "cannot issue session", "error", err)
		return nil, fmt.Errorf("issue session: %w", ErrInternal)
	}

	events.Emit(ctx, s.Events, events.TopicUsers, user.ID, map[string]any{
		"type":   "login",
		"userID": user.ID,
	})

	return &LoginResult{
		Token:     token,
		ExpiresAt: exp,
		UserID:    user.ID,
		Username:  user.Username,
	}, nil
}

func (s *AuthService) Logout(ctx context.Context, id session.Identity) error {
	if id.SessionID == "" {
		return fmt.Errorf("no active session: %w", ErrUnauthorized)
	}
	if err := s.Sessions.End(ctx, id.SessionID); err != nil {
		logging.FromContext(ctx).Error("logout_error", "svc", "auth.logout", "error", err)
		return fmt.Errorf("end session: %w", ErrInternal)
	}

	events.Emit(ctx, s.Events, events.TopicUsers, id.UserID, map[string]any{
		"type":   "logout",
		"userID": id.UserID,
	})
	return nil
}
