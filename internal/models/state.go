package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel provides the uuid key and timestamps shared by every table.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a random id when the caller did not pick one.
func (b *BaseModel) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// ClientSession is one browser's storefront session; it scopes every persisted store.
type ClientSession struct {
	BaseModel
	LastSeenAt time.Time `gorm:"index" json:"last_seen_at"`
	UserAgent  string    `json:"user_agent"`
}

// PersistedState is one local-storage style entry (e.g. "cart-storage") of a session.
type PersistedState struct {
	BaseModel
	SessionID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_state_session_key" json:"session_id"`
	Key       string    `gorm:"size:64;uniqueIndex:idx_state_session_key" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	Version   int64     `json:"version"`
}
