// Package websocket carries the field protocol over WebSocket connections.
//
// Conn adapts a gorilla/websocket connection to service.Conn: text frames
// carry the handshake, binary frames carry wire-encoded messages. Writes
// are serialized per connection so the broadcast loop and the connection's
// own read loop may both send.
//
// Handler upgrades requests and runs each connection synchronously through
// an Acceptor until it disconnects:
//
//	srv := service.NewServer(field, driver, session.NewRegistry(), service.Options{})
//	srv.Start()
//	go srv.Run(ctx)
//
//	router.Handle("/ws", websocket.NewHandler(srv, logger))
//
// Requests arriving while the server is stopped get 503 Service Unavailable.
package websocket
