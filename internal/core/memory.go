package core

import (
	"context"
	"time"
)

type MemoryKind string

const (
	MemoryProfile    MemoryKind = "profile"
	MemoryPreference MemoryKind = "preference"
	MemoryFact       MemoryKind = "fact"
)

// MaxMemoryContent is the longest content a memory record may hold.
const MaxMemoryContent = 300

// MemoryRecord is a durable, user-scoped fact or preference.
type MemoryRecord struct {
	ID              string     `json:"id"`
	UID             string     `json:"uid"`
	Content         string     `json:"content"`
	Kind            MemoryKind `json:"kind"`
	ImportanceScore float64    `json:"importance_score"`
	UsageCount      int        `json:"usage_count"`
	CreatedAt       time.Time  `json:"created_at"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty"`
	Topics          []string   `json:"topics"`
	Tags            []string   `json:"tags"`
	IsActive        bool       `json:"is_active"`
	Source          string     `json:"source"`
}

// RawMemory is a memory as read from a store, before defaults are applied.
// Stores written by older clients may leave any of the pointer fields unset.
type RawMemory struct {
	ID         string
	UID        string
	Content    string
	Kind       string
	Importance *float64
	UsageCount *int
	CreatedAt  *time.Time
	LastUsedAt *time.Time
	Topics     []string
	Tags       []string
	IsActive   bool
	Source     string
}

type MemoryStore interface {
	// ListActive returns active records for uid, newest first.
	ListActive(ctx context.Context, uid string, limit int) ([]RawMemory, error)
	Create(ctx context.Context, rec MemoryRecord) error
	IncrementUsage(ctx context.Context, uid, id string, at time.Time) error
	Deactivate(ctx context.Context, uid, id string) error
}

type PreferenceSource interface {
	PreferenceHint(ctx context.Context, uid string) (string, error)
}
