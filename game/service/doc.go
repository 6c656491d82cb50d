// Package service provides the orchestration layer for fieldsync.
//
// The service package implements:
//   - The connection handshake and per-connection request loop
//   - The periodic broadcast loop that ticks bots and pushes snapshots
//   - Read-only introspection used by the REST API and MCP tools
//
// Core Interfaces:
//
// Conn is the transport channel the server talks to. ConnectionRegistry maps
// live connections to their entities. BotDriver advances bots once per tick.
// FieldService is the read-only view implemented by Server.
//
// Connection Lifecycle:
//
// 1. Client sends the text token "start"
// 2. Server creates a human entity and replies "<id>|<name>"
// 3. Server sends FieldParams, then ConnectedInfo
// 4. Connection is registered and receives every broadcast
// 5. Each CheckMove is applied to the field and answered with ResultMove
// 6. Any transport error removes the entity and the registration
//
// A wrong token or an undecodable frame is a protocol violation: the
// connection is closed and counted, and nothing else is affected.
//
// Usage:
//
//	srv := service.NewServer(field, driver, session.NewRegistry(), service.Options{
//		Interval: 30 * time.Millisecond,
//	})
//	srv.Start()
//	go srv.Run(ctx)
//
//	// per accepted connection
//	err := srv.Serve(ctx, conn)
//
// Concurrency:
//
// Each connection runs on its caller's goroutine; Run is the only other
// goroutine. Field updates go through Field.Move and Field.Each, which hold
// the field lock. Broadcast failures and panics are counted and logged but
// never stop the loop.
package service
