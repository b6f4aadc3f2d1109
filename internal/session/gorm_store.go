package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/shopcart/internal/models"
)

// GormStore keeps sessions in the sessions table.
type GormStore struct {
	DB *gorm.DB
}

func (s *GormStore) Create(ctx context.Context, userID uint, ttl time.Duration) (*Record, error) {
	exp := time.Now().Add(ttl)
	row := models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExpiresAt: exp.Unix(),
	}
	if err := s.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &Record{ID: row.ID, UserID: userID, ExpiresAt: time.Unix(row.ExpiresAt, 0)}, nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*Record, error) {
	var row models.Session
	err := s.DB.WithContext(ctx).
		Where("id = ? AND revoked = ? AND expires_at > ?", id, false, time.Now().Unix()).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &Record{ID: row.ID, UserID: row.UserID, ExpiresAt: time.Unix(row.ExpiresAt, 0)}, nil
}

func (s *GormStore) Revoke(ctx context.Context, id string) error {
	if err := s.DB.WithContext(ctx).Model(&models.Session{}).
		Where("id = ?", id).
		Update("revoked", true).Error; err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *GormStore) RevokeUser(ctx context.Context, userID uint) error {
	if err := s.DB.WithContext(ctx).Model(&models.Session{}).
		Where("user_id = ?", userID).
		Update("revoked", true).Error; err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Purge drops expired and revoked rows.
func (s *GormStore) Purge(ctx context.Context) (int64, error) {
	res := s.DB.WithContext(ctx).
		Where("revoked = ? OR expires_at <= ?", true, time.Now().Unix()).
		Delete(&models.Session{})
	return res.RowsAffected, res.Error
}
