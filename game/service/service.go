package service

import (
	"context"
	"time"

	"github.com/wricardo/mcp-training/fieldsync/game/engine"
)

// FrameKind distinguishes text and binary transport frames
type FrameKind int

const (
	FrameText FrameKind = iota + 1
	FrameBinary
)

// Frame is one message received from a client
type Frame struct {
	Kind FrameKind
	Data []byte
}

// Conn is a client channel as seen by the server. Sends on one Conn must be
// safe to call concurrently; Receive is only called from the connection's
// own loop.
type Conn interface {
	ID() string
	SendText(text string) error
	SendBinary(data []byte) error
	Receive() (Frame, error)
	Close() error
}

// ConnectionRegistry maps live connections to their entities
type ConnectionRegistry interface {
	Register(conn Conn, entity *engine.Entity) (*Session, error)
	Unregister(id string) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Touch(id string) error
	Count() int
}

// BotDriver advances server-controlled entities once per broadcast tick
type BotDriver interface {
	Tick() int
	Count() int
}

// FieldService exposes read-only views of the running server
type FieldService interface {
	GetFieldInfo(ctx context.Context) (*FieldInfo, error)
	ListEntities(ctx context.Context, kind EntityKind) ([]engine.EntityState, error)
	GetEntity(ctx context.Context, id int32) (*engine.EntityState, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	GetStats(ctx context.Context) (*Stats, error)
}

// Session is a registered connection and the entity it controls
type Session struct {
	ID             string
	Conn           Conn
	Entity         *engine.Entity
	EntityID       int32
	EntityName     string
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
