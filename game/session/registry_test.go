package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/fieldsync/game/engine"
	"github.com/wricardo/mcp-training/fieldsync/game/service"
)

type stubConn struct {
	id string
}

func (c *stubConn) ID() string                      { return c.id }
func (c *stubConn) SendText(string) error           { return nil }
func (c *stubConn) SendBinary([]byte) error         { return nil }
func (c *stubConn) Receive() (service.Frame, error) { return service.Frame{}, errors.New("closed") }
func (c *stubConn) Close() error                    { return nil }

func TestRegistry_Register(t *testing.T) {
	registry := NewRegistry()

	t.Run("register new connection", func(t *testing.T) {
		entity := engine.NewHuman(42)
		sess, err := registry.Register(&stubConn{id: "conn-1"}, entity)
		if err != nil {
			t.Fatalf("Failed to register: %v", err)
		}
		if sess.ID != "conn-1" {
			t.Errorf("Expected session ID 'conn-1', got '%s'", sess.ID)
		}
		if sess.EntityID != 42 || sess.EntityName != "client_42" {
			t.Errorf("Unexpected entity fields: %d %s", sess.EntityID, sess.EntityName)
		}
		if sess.Entity != entity {
			t.Error("Expected session to reference the registered entity")
		}
		if sess.CreatedAt.IsZero() {
			t.Error("Expected CreatedAt to be set")
		}
	})

	t.Run("duplicate connection", func(t *testing.T) {
		_, err := registry.Register(&stubConn{id: "conn-1"}, engine.NewHuman(43))
		if !errors.Is(err, ErrSessionAlreadyExists) {
			t.Errorf("Expected ErrSessionAlreadyExists, got %v", err)
		}
	})

	t.Run("invalid arguments", func(t *testing.T) {
		if _, err := registry.Register(nil, engine.NewHuman(1)); !errors.Is(err, ErrInvalidSession) {
			t.Errorf("Expected ErrInvalidSession for nil conn, got %v", err)
		}
		if _, err := registry.Register(&stubConn{id: "conn-2"}, nil); !errors.Is(err, ErrInvalidSession) {
			t.Errorf("Expected ErrInvalidSession for nil entity, got %v", err)
		}
		if _, err := registry.Register(&stubConn{id: ""}, engine.NewHuman(1)); !errors.Is(err, ErrInvalidSession) {
			t.Errorf("Expected ErrInvalidSession for empty id, got %v", err)
		}
	})

	if registry.Count() != 1 {
		t.Errorf("Expected 1 session, got %d", registry.Count())
	}
}

func TestRegistry_GetAndUnregister(t *testing.T) {
	registry := NewRegistry()
	conn := &stubConn{id: "conn-1"}
	registry.Register(conn, engine.NewHuman(7))

	t.Run("get existing session", func(t *testing.T) {
		sess, err := registry.Get("conn-1")
		if err != nil {
			t.Fatalf("Failed to get session: %v", err)
		}
		if sess.Conn != conn {
			t.Error("Expected session to reference the registered connection")
		}
	})

	t.Run("get non-existent session", func(t *testing.T) {
		if _, err := registry.Get("missing"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("unregister", func(t *testing.T) {
		sess, err := registry.Unregister("conn-1")
		if err != nil {
			t.Fatalf("Failed to unregister: %v", err)
		}
		if sess.EntityID != 7 {
			t.Errorf("Expected entity 7, got %d", sess.EntityID)
		}
		if _, err := registry.Get("conn-1"); !errors.Is(err, ErrSessionNotFound) {
			t.Error("Expected session to be removed")
		}
		if _, err := registry.Unregister("conn-1"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound on second unregister, got %v", err)
		}
	})
}

func TestRegistry_ListOrder(t *testing.T) {
	registry := NewRegistry()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	registry.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	for i, id := range []string{"c", "a", "b"} {
		if _, err := registry.Register(&stubConn{id: id}, engine.NewHuman(int32(i))); err != nil {
			t.Fatalf("Failed to register %s: %v", id, err)
		}
	}

	sessions := registry.List()
	want := []string{"c", "a", "b"}
	if len(sessions) != len(want) {
		t.Fatalf("Expected %d sessions, got %d", len(want), len(sessions))
	}
	for i, id := range want {
		if sessions[i].ID != id {
			t.Errorf("sessions[%d] = %s, expected %s", i, sessions[i].ID, id)
		}
	}
}

func TestRegistry_Touch(t *testing.T) {
	registry := NewRegistry()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return now }
	registry.Register(&stubConn{id: "conn-1"}, engine.NewHuman(1))

	now = now.Add(time.Minute)
	if err := registry.Touch("conn-1"); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}

	sess, _ := registry.Get("conn-1")
	if !sess.LastAccessedAt.Equal(now) {
		t.Errorf("Expected LastAccessedAt %v, got %v", now, sess.LastAccessedAt)
	}
	if sess.CreatedAt.Equal(now) {
		t.Error("CreatedAt should not change on touch")
	}

	if err := registry.Touch("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestRegistry_ReturnsCopies(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&stubConn{id: "conn-1"}, engine.NewHuman(1))

	sess, _ := registry.Get("conn-1")
	sess.EntityName = "changed"

	again, _ := registry.Get("conn-1")
	if again.EntityName != "client_1" {
		t.Errorf("Registry state changed through returned session: %s", again.EntityName)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("conn-%d", n)
			if _, err := registry.Register(&stubConn{id: id}, engine.NewHuman(int32(n))); err != nil {
				t.Errorf("Register %s failed: %v", id, err)
				return
			}
			registry.Touch(id)
			registry.List()
			if n%2 == 0 {
				registry.Unregister(id)
			}
		}(i)
	}
	wg.Wait()

	if registry.Count() != 25 {
		t.Errorf("Expected 25 sessions, got %d", registry.Count())
	}
}
