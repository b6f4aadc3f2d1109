package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidSession = errors.New("invalid session")
	ErrNotFound       = errors.New("session not found")
)

// Record is the server-side half of a login.
type Record struct {
	ID        string    `json:"id"`
	UserID    uint      `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Store interface {
	Create(ctx context.Context, userID uint, ttl time.Duration) (*Record, error)
	// Get returns ErrNotFound for unknown, revoked and expired sessions.
	Get(ctx context.Context, id string) (*Record, error)
	Revoke(ctx context.Context, id string) error
	RevokeUser(ctx context.Context, userID uint) error
}

// Identity is what a valid token resolves to.
type Identity struct {
	UserID    uint
	SessionID string
}

type Claims struct {
	jwt.RegisteredClaims
}

type Manager struct {
	Store  Store
	Secret []byte
	TTL    time.Duration
}

func (m *Manager) Issue(ctx context.Context, userID uint) (string, time.Time, error) {
	rec, err := m.Store.Create(ctx, userID, m.TTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("create session: %w", err)
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ID:        rec.ID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(rec.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, rec.ExpiresAt, nil
}

func (m *Manager) parse(raw string) (*Claims, error) {
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signature method: %v", t.Header["alg"])
		}
		return m.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !t.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing claims", ErrInvalidSession)
	}
	return claims, nil
}

// Resolve checks the token signature and that its session is still live.
func (m *Manager) Resolve(ctx context.Context, raw string) (Identity, error) {
	claims, err := m.parse(raw)
	if err != nil {
		return Identity{}, err
	}
	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: bad subject", ErrInvalidSession)
	}

	rec, err := m.Store.Get(ctx, claims.ID)
	if errors.Is(err, ErrNotFound) {
		return Identity{}, fmt.Errorf("%w: session ended", ErrInvalidSession)
	}
	if err != nil {
		return Identity{}, err
	}
	if rec.UserID != uint(userID) {
		return Identity{}, fmt.Errorf("%w: subject mismatch", ErrInvalidSession)
	}
	return Identity{UserID: rec.UserID, SessionID: rec.ID}, nil
}

// End revokes one session. Ending an already ended session is not an error.
func (m *Manager) End(ctx context.Context, sessionID string) error {
	return m.Store.Revoke(ctx, sessionID)
}

func (m *Manager) EndAll(ctx context.Context, userID uint) error {
	return m.Store.RevokeUser(ctx, userID)
}
