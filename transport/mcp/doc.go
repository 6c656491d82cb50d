// Package mcp exposes a running field server to AI agents through the Model
// Context Protocol.
//
// Client is a thin proxy: every tool calls the REST API of a field server and
// formats the JSON response as text.
//
// Tools:
//   - field_info: field size and obstacles
//   - list_entities: entity positions and velocities, optionally bots or humans only
//   - get_entity: one entity by id
//   - list_sessions: connected WebSocket clients
//   - server_stats: server counters
//   - list_configs: configuration presets
//   - protocol_reference: description of the binary WebSocket protocol
//
// Transport Modes:
//
// The MCP server can run over stdio for local agents, or be mounted on the
// field server's own HTTP router at /mcp.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
