package service

import (
	"time"

	"github.com/wricardo/mcp-training/fieldsync/game/engine"
)

// EntityKind filters entity listings
type EntityKind string

const (
	KindAll    EntityKind = ""
	KindBots   EntityKind = "bots"
	KindHumans EntityKind = "humans"
)

// ParseEntityKind converts a query value to an EntityKind
func ParseEntityKind(s string) (EntityKind, bool) {
	switch EntityKind(s) {
	case KindAll, "all":
		return KindAll, true
	case KindBots, "bot", "true":
		return KindBots, true
	case KindHumans, "human", "false":
		return KindHumans, true
	default:
		return KindAll, false
	}
}

// FieldInfo describes the static part of the world
type FieldInfo struct {
	Size          int32        `json:"size"`
	ObstacleCount int          `json:"obstacle_count"`
	Obstacles     []engine.Box `json:"obstacles"`
}

// SessionInfo provides information about a registered connection
type SessionInfo struct {
	ID             string    `json:"id"`
	EntityID       int32     `json:"entity_id"`
	EntityName     string    `json:"entity_name"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// Stats contains server counters
type Stats struct {
	Running             bool      `json:"running"`
	StartedAt           time.Time `json:"started_at"`
	BroadcastIntervalMs int64     `json:"broadcast_interval_ms"`
	Connections         int       `json:"connections"`
	Entities            int       `json:"entities"`
	Bots                int       `json:"bots"`
	Ticks               int64     `json:"ticks"`
	Moves               int64     `json:"moves"`
	SendFailures        int64     `json:"send_failures"`
	ProtocolViolations  int64     `json:"protocol_violations"`
	Disconnects         int64     `json:"disconnects"`
	RecoveredPanics     int64     `json:"recovered_panics"`
}
