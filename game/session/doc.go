// Package session provides the connection registry for fieldsync.
//
// The session package implements:
//   - Thread-safe mapping from connection id to controlled entity
//   - Connection timestamps (joined, last move)
//   - Stable listing order for broadcasts and introspection
//
// Core Types:
//
// Registry implements service.ConnectionRegistry. Each entry is a
// service.Session holding the transport connection, the entity it controls
// and its timestamps. Callers always receive copies; the entity pointer is
// shared with the Field.
//
// Usage:
//
//	registry := session.NewRegistry()
//
//	sess, err := registry.Register(conn, entity)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Broadcast to everyone, oldest connection first
//	for _, s := range registry.List() {
//		s.Conn.SendBinary(frame)
//	}
//
//	registry.Unregister(conn.ID())
//
// Concurrency:
//
// A single RWMutex guards the map. It is independent of the Field's entity
// lock, and no Registry method calls back into the Field.
package session
