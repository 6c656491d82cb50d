package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/fieldsync/game/engine"
	"github.com/wricardo/mcp-training/fieldsync/game/service"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidSession       = errors.New("invalid session")
)

var _ service.ConnectionRegistry = (*Registry)(nil)

// Registry tracks live connections and the entity each one controls
type Registry struct {
	sessions map[string]*service.Session
	mu       sync.RWMutex
	now      func() time.Time
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*service.Session),
		now:      time.Now,
	}
}

// Register records conn as controlling entity
func (r *Registry) Register(conn service.Conn, entity *engine.Entity) (*service.Session, error) {
	if conn == nil || entity == nil || conn.ID() == "" {
		return nil, ErrInvalidSession
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := conn.ID()
	if _, exists := r.sessions[id]; exists {
		return nil, ErrSessionAlreadyExists
	}

	now := r.now()
	sess := &service.Session{
		ID:             id,
		Conn:           conn,
		Entity:         entity,
		EntityID:       entity.ID,
		EntityName:     entity.Name,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	r.sessions[id] = sess

	return copySession(sess), nil
}

// Unregister removes a connection and returns its last state
func (r *Registry) Unregister(id string) (*service.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, exists := r.sessions[id]
	if !exists {
		return nil, ErrSessionNotFound
	}
	delete(r.sessions, id)
	return sess, nil
}

// Get retrieves a session by connection id
func (r *Registry) Get(id string) (*service.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, exists := r.sessions[id]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return copySession(sess), nil
}

// List returns copies of all sessions, oldest first
func (r *Registry) List() []*service.Session {
	r.mu.RLock()
	result := make([]*service.Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		result = append(result, copySession(sess))
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Touch updates the last accessed time for a session
func (r *Registry) Touch(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, exists := r.sessions[id]
	if !exists {
		return ErrSessionNotFound
	}
	sess.LastAccessedAt = r.now()
	return nil
}

// Count returns the number of registered connections
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func copySession(sess *service.Session) *service.Session {
	out := *sess
	return &out
}
