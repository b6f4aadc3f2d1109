package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Skotchmaster/shopcart/internal/events"
	"github.com/Skotchmaster/shopcart/internal/hash"
	"github.com/Skotchmaster/shopcart/internal/logging"
	"github.com/Skotchmaster/shopcart/internal/models"
	"github.com/Skotchmaster/shopcart/internal/repo"
	"github.com/Skotchmaster/shopcart/internal/session"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 64
	minPasswordLen = 6
)

type UserService struct {
	Users    repo.UserRepository
	Sessions *session.Manager
	Events   events.Publisher
}

func checkUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < minUsernameLen || n > maxUsernameLen {
		return fmt.Errorf("username must be %d-%d characters: %w", minUsernameLen, maxUsernameLen, ErrInvalidInput)
	}
	return nil
}

func checkPassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLen {
		return fmt.Errorf("password must be at least %d characters: %w", minPasswordLen, ErrInvalidInput)
	}
	if len(password) > hash.MaxPasswordBytes {
		return fmt.Errorf("password must be at most %d bytes: %w", hash.MaxPasswordBytes, ErrInvalidInput)
	}
	return nil
}

func (s *UserService) Register(ctx context.Context, username, password string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "user.register")

	username = strings.TrimSpace(username)
	if err := checkUsername(username); err != nil {
		return nil, err
	}
	if err := checkPassword(password); err != nil {
		return nil, err
	}

	pwHash, err := hash.Password(password)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, fmt.Errorf("hash password: %w", ErrInternal)
	}

	user := &models.User{Username: username, PasswordHash: pwHash}
	err = s.Users.CreateUser(ctx, user)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, fmt.Errorf("user %q already exists: %w", username, ErrConflict)
	}
	if err != nil {
		l.Error("register_error", "status", 500, "error", err)
		return nil, fmt.Errorf("create user: %w", ErrInternal)
	}

	events.Emit(ctx, s.Events, events.TopicUsers, user.ID, map[string]any{
		"type":     "register",
		"userID":   user.ID,
		"username": user.Username,
	})
	return user, nil
}

// UpdateUser changes the caller's own username and/or password.
func (s *UserService) UpdateUser(ctx context.Context, id session.Identity, username, password *string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "user.update", "user_id", id.UserID)

	if username == nil && password == nil {
		return nil, fmt.Errorf("nothing to update: %w", ErrInvalidInput)
	}

	user, err := s.Users.GetUserByID(ctx, id.UserID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("user %d: %w", id.UserID, ErrNotFound)
	}
	if err != nil {
		l.Error("update_user_error", "reason", "user lookup failed", "error", err)
		return nil, fmt.Errorf("lookup user: %w", ErrInternal)
	}

	if username != nil {
		name := strings.TrimSpace(*username)
		if err := checkUsername(name); err != nil {
			return nil, err
		}
		user.Username = name
	}
	if password != nil {
		if err := checkPassword(*password); err != nil {
			return nil, err
		}
		pwHash, err := hash.Password(*password)
		if err != nil {
			l.Error("update_user_error", "reason", "cannot hash the password", "error", err)
			return nil, fmt.Errorf("hash password: %w", ErrInternal)
		}
		user.PasswordHash = pwHash
	}

	err = s.Users.UpdateUser(ctx, user)
	switch {
	case errors.Is(err, repo.ErrDuplicate):
		return nil, fmt.Errorf("username %q is taken: %w", user.Username, ErrConflict)
	case errors.Is(err, repo.ErrNotFound):
		return nil, fmt.Errorf("user %d: %w", id.UserID, ErrNotFound)
	case err != nil:
		l.Error("update_user_error", "error", err)
		return nil, fmt.Errorf("update user: %w", ErrInternal)
	}

	events.Emit(ctx, s.Events, events.TopicUsers, user.ID, map[string]any{
		"type":   "update_user",
		"userID": user.ID,
	})
	return user, nil
}

// DeleteUser ends every session of the caller, then removes the account and its cart.
func (s *UserService) DeleteUser(ctx context.Context, id session.Identity) error {
	l := logging.FromContext(ctx).With("svc", "user.delete", "user_id", id.UserID)

	if err := s.Sessions.EndAll(ctx, id.UserID); err != nil {
		l.Error("delete_user_error", "reason", "cannot end sessions", "error", err)
		return fmt.Errorf("end sessions: %w", ErrInternal)
	}

	err := s.Users.DeleteUser(ctx, id.UserID)
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("user %d: %w", id.UserID, ErrNotFound)
	}
	if err != nil {
		l.Error("delete_user_error", "error", err)
		return fmt.Errorf("delete user: %w", ErrInternal)
	}

	events.Emit(ctx, s.Events, events.TopicUsers, id.UserID, map[string]any{
		"type":   "delete_user",
		"userID": id.UserID,
	})
	return nil
}
