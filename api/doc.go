// Package api provides HTTP REST handlers for inspecting a running field server.
//
// Endpoints:
//
//   - GET /api/health - running flag and connection count (503 when stopped)
//   - GET /api/field - field size and obstacles
//   - GET /api/entities - entity snapshots; filter with ?bots=true|false or ?kind=bots|humans
//   - GET /api/entities/{id} - one entity snapshot
//   - GET /api/sessions - registered connections (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/stats - server counters
//   - GET /api/configs - configuration presets
//   - GET /api/configs/{name} - one preset
//   - POST /api/configs - validate and save a preset
//   - GET /ws - WebSocket upgrade, delegated to the transport handler
//
// Usage:
//
//	handler := websocket.NewHandler(srv, logger)
//	router := api.NewServer(srv, manager, handler)
//	http.ListenAndServe(":8080", router)
//
// Errors are returned as JSON with an appropriate status code:
//
//	{"error": "entity not found: 42"}
package api
