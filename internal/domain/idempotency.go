package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Idempotency records the envelope produced for a chat request carrying an
// Idempotency-Key, keyed by (route, user_id, key). A retry with the same key
// replays Response instead of creating a second record.
type Idempotency struct {
	ID        string         `gorm:"type:TEXT NOT NULL;primaryKey"`
	Route     string         `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_route_user_key,priority:1"`
	UserID    string         `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_route_user_key,priority:2"`
	Key       string         `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_route_user_key,priority:3"`
	Status    int            `gorm:"type:INTEGER NOT NULL"`
	Response  datatypes.JSON `gorm:"NOT NULL"`
	CreatedAt time.Time      `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time      `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
