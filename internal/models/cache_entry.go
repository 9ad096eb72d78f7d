package models

import (
	"time"
)

// CacheEntry backs the database cache fallback. Aggregate snapshots, session
// state, and rate counters all land here when Redis is not configured.
type CacheEntry struct {
	Key       string    `gorm:"primaryKey;size:256"`
	Value     []byte
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
