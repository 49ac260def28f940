package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/storefront/internal/models"
)

// GormStorage keeps session state in the persisted_states table.
type GormStorage struct {
	db *gorm.DB
}

// NewGormStorage wraps an open gorm connection.
func NewGormStorage(db *gorm.DB) *GormStorage {
	return &GormStorage{db: db}
}

func (s *GormStorage) Get(ctx context.Context, sessionID, key string) ([]byte, bool, error) {
	id, err := parseSessionID(sessionID)
	if err != nil {
		return nil, false, err
	}

	var row models.PersistedState
	err = s.db.WithContext(ctx).
		Where("session_id = ? AND key = ?", id, key).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", key, err)
	}
	return []byte(row.Value), true, nil
}

func (s *GormStorage) Set(ctx context.Context, sessionID, key string, value []byte) error {
	id, err := parseSessionID(sessionID)
	if err != nil {
		return err
	}

	row := models.PersistedState{
		SessionID: id,
		Key:       key,
		Value:     string(value),
		Version:   1,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}, {Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"value":      row.Value,
			"version":    gorm.Expr("persisted_states.version + 1"),
			"updated_at": time.Now(),
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (s *GormStorage) Remove(ctx context.Context, sessionID, key string) error {
	id, err := parseSessionID(sessionID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Where("session_id = ? AND key = ?", id, key).
		Delete(&models.PersistedState{}).Error
}

func (s *GormStorage) RemoveAll(ctx context.Context, sessionID string) error {
	id, err := parseSessionID(sessionID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Where("session_id = ?", id).
		Delete(&models.PersistedState{}).Error
}

func (s *GormStorage) Touch(ctx context.Context, sessionID, userAgent string) error {
	id, err := parseSessionID(sessionID)
	if err != nil {
		return err
	}

	now := time.Now()
	session := models.ClientSession{
		BaseModel:  models.BaseModel{ID: id},
		LastSeenAt: now,
		UserAgent:  userAgent,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{"last_seen_at": now, "updated_at": now}),
	}).Create(&session).Error
}

func (s *GormStorage) Purge(ctx context.Context, before time.Time) (int64, error) {
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		idle := tx.Model(&models.ClientSession{}).Select("id").Where("last_seen_at < ?", before)
		if err := tx.Where("session_id IN (?)", idle).Delete(&models.PersistedState{}).Error; err != nil {
			return err
		}
		res := tx.Where("last_seen_at < ?", before).Delete(&models.ClientSession{})
		removed = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("purge idle sessions: %w", err)
	}
	return removed, nil
}

func parseSessionID(sessionID string) (uuid.UUID, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidSession, sessionID)
	}
	return id, nil
}
