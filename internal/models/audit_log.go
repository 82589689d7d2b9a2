package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditLog is the immutable, tenant-scoped audit sink. Entries carry
// before/after snapshots and are never updated or deleted.
type AuditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID   uuid.UUID `gorm:"type:uuid;index"`
	EntityType string    `gorm:"index"`
	EntityID   uuid.UUID `gorm:"type:uuid;index"`
	Action     string
	Before     datatypes.JSON
	After      datatypes.JSON
	Actor      string
	CreatedAt  time.Time
}
