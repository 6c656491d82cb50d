package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/wricardo/mcp-training/fieldsync/game/engine"
	"github.com/wricardo/mcp-training/fieldsync/transport/wire"
)

// HandshakeToken is the text a client sends to join the field
const HandshakeToken = "start"

const (
	DefaultBroadcastInterval = 30 * time.Millisecond

	maxIDAttempts = 100
)

var (
	ErrHandshake      = errors.New("invalid handshake")
	ErrNoFreeID       = errors.New("no free entity id")
	ErrEntityNotFound = errors.New("entity not found")
	ErrNotRunning     = errors.New("server is not running")
)

// Options configures a Server
type Options struct {
	// Interval is the broadcast period; zero selects DefaultBroadcastInterval
	Interval time.Duration
	// Logger defaults to slog.Default()
	Logger *slog.Logger
	// Rand generates human entity ids; nil selects a randomly seeded source
	Rand *rand.Rand
}

// Server coordinates connections, the field and the bot driver
type Server struct {
	field    *engine.Field
	bots     BotDriver
	registry ConnectionRegistry
	interval time.Duration
	logger   *slog.Logger

	// throttles per-connection broadcast failure logs
	failureLog *rate.Limiter

	rngMu sync.Mutex
	rng   *rand.Rand

	running   atomic.Bool
	startedAt atomic.Int64

	ticks              atomic.Int64
	moves              atomic.Int64
	sendFailures       atomic.Int64
	protocolViolations atomic.Int64
	disconnects        atomic.Int64
	recoveredPanics    atomic.Int64
}

// NewServer creates a server. bots may be nil when the field has no bots.
func NewServer(field *engine.Field, bots BotDriver, registry ConnectionRegistry, opts Options) *Server {
	if opts.Interval <= 0 {
		opts.Interval = DefaultBroadcastInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &Server{
		field:      field,
		bots:       bots,
		registry:   registry,
		interval:   opts.Interval,
		logger:     opts.Logger,
		failureLog: rate.NewLimiter(rate.Every(time.Second), 5),
		rng:        opts.Rand,
	}
}

// Start sets the running flag
func (s *Server) Start() {
	s.startedAt.Store(time.Now().UnixNano())
	s.running.Store(true)
}

// Stop clears the running flag. The broadcast loop exits on its next tick;
// connection loops end when their transport fails.
func (s *Server) Stop() {
	s.running.Store(false)
}

// Running reports whether the server accepts connections
func (s *Server) Running() bool {
	return s.running.Load()
}

// Shutdown clears the running flag and closes every registered connection
func (s *Server) Shutdown() {
	s.Stop()
	for _, sess := range s.registry.List() {
		sess.Conn.Close()
	}
}

// Serve runs one connection from handshake to disconnect. It returns the
// error that ended the connection.
func (s *Server) Serve(ctx context.Context, conn Conn) error {
	defer conn.Close()

	if !s.Running() {
		return ErrNotRunning
	}

	entity, err := s.handshake(conn)
	if err != nil {
		if errors.Is(err, ErrHandshake) {
			s.protocolViolations.Add(1)
			s.logger.Warn("handshake rejected", "conn", conn.ID(), "error", err)
		} else {
			s.logger.Debug("handshake failed", "conn", conn.ID(), "error", err)
		}
		return err
	}

	if _, err := s.registry.Register(conn, entity); err != nil {
		s.field.RemoveEntity(entity)
		return fmt.Errorf("failed to register connection: %w", err)
	}

	s.logger.Info("client connected", "conn", conn.ID(), "entity", entity.ID, "clients", s.registry.Count())

	defer func() {
		s.field.RemoveEntity(entity)
		s.registry.Unregister(conn.ID())
		s.disconnects.Add(1)
		s.logger.Info("client disconnected", "conn", conn.ID(), "entity", entity.ID, "clients", s.registry.Count())
	}()

	err = s.loop(ctx, conn, entity)
	var violation *protocolError
	if errors.As(err, &violation) {
		s.protocolViolations.Add(1)
		s.logger.Warn("protocol violation", "conn", conn.ID(), "entity", entity.ID, "error", err)
	}
	return err
}

type protocolError struct {
	err error
}

func (e *protocolError) Error() string { return e.err.Error() }
func (e *protocolError) Unwrap() error { return e.err }

func (s *Server) handshake(conn Conn) (*engine.Entity, error) {
	frame, err := conn.Receive()
	if err != nil {
		return nil, err
	}
	if frame.Kind != FrameText {
		return nil, fmt.Errorf("%w: expected text frame", ErrHandshake)
	}
	if token := strings.Trim(string(frame.Data), "\x00 \t\r\n"); token != HandshakeToken {
		return nil, fmt.Errorf("%w: unexpected token %q", ErrHandshake, token)
	}

	entity, err := s.spawnHuman()
	if err != nil {
		return nil, err
	}

	if err := s.sendWelcome(conn, entity); err != nil {
		s.field.RemoveEntity(entity)
		return nil, err
	}
	return entity, nil
}

// spawnHuman adds a human entity with a fresh random id
func (s *Server) spawnHuman() (*engine.Entity, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		s.rngMu.Lock()
		id := s.rng.Int32N(math.MaxInt32)
		s.rngMu.Unlock()

		entity := engine.NewHuman(id)
		err := s.field.AddEntity(entity)
		if err == nil {
			return entity, nil
		}
		if !errors.Is(err, engine.ErrDuplicateEntity) {
			return nil, err
		}
	}
	return nil, ErrNoFreeID
}

// sendWelcome sends the handshake ack, the field parameters and the roster
func (s *Server) sendWelcome(conn Conn, entity *engine.Entity) error {
	ack := fmt.Sprintf("%d|%s", entity.ID, entity.Name)
	if err := conn.SendText(ack); err != nil {
		return err
	}

	params := wire.EncodeFieldParams(wire.FieldParams{
		Size:      s.field.Size(),
		Start:     entity.Position,
		Obstacles: s.field.Obstacles(),
	})
	if err := conn.SendBinary(params); err != nil {
		return err
	}

	roster, err := wire.EncodeConnectedInfo(wire.Peers(s.field.Snapshot()))
	if err != nil {
		return err
	}
	return conn.SendBinary(roster)
}

func (s *Server) loop(ctx context.Context, conn Conn, entity *engine.Entity) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := conn.Receive()
		if err != nil {
			return err
		}
		if frame.Kind != FrameBinary {
			continue
		}

		msg, err := wire.Decode(frame.Data)
		if err != nil {
			return &protocolError{err: err}
		}
		if msg == nil {
			continue
		}

		switch msg.Tag {
		case wire.TagCheckMove:
			velocity := s.field.Move(entity, msg.Velocity)
			s.moves.Add(1)
			if err := s.registry.Touch(conn.ID()); err != nil {
				s.logger.Debug("touch session", "conn", conn.ID(), "error", err)
			}
			if err := conn.SendBinary(wire.EncodeResultMove(velocity)); err != nil {
				return err
			}
		default:
			s.logger.Debug("ignoring message", "conn", conn.ID(), "tag", msg.Tag)
		}
	}
}

// Run drives the broadcast loop until ctx is done or the running flag is
// cleared.
func (s *Server) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("broadcast loop started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !s.Running() {
				s.logger.Info("broadcast loop stopped")
				return nil
			}
			s.Broadcast()
		}
	}
}

// Broadcast runs one iteration of the broadcast loop: tick the bots, then
// send one EntitiesInfo snapshot to every registered connection. Send
// failures and panics are counted and logged, never returned.
func (s *Server) Broadcast() {
	defer func() {
		if r := recover(); r != nil {
			s.recoveredPanics.Add(1)
			s.logger.Error("broadcast iteration panicked", "panic", r)
		}
	}()

	s.ticks.Add(1)
	if s.bots != nil {
		s.bots.Tick()
	}

	frame := wire.EncodeEntitiesInfo(wire.EntityRecords(s.field.Snapshot()))
	for _, sess := range s.registry.List() {
		if err := sess.Conn.SendBinary(frame); err != nil {
			s.sendFailures.Add(1)
			if s.failureLog.Allow() {
				s.logger.Warn("broadcast send failed", "conn", sess.ID, "entity", sess.EntityID, "error", err)
			}
		}
	}
}

// GetFieldInfo returns the field size and obstacles
func (s *Server) GetFieldInfo(ctx context.Context) (*FieldInfo, error) {
	obstacles := s.field.Obstacles()
	return &FieldInfo{
		Size:          s.field.Size(),
		ObstacleCount: len(obstacles),
		Obstacles:     obstacles,
	}, nil
}

// ListEntities returns entity snapshots in registry order
func (s *Server) ListEntities(ctx context.Context, kind EntityKind) ([]engine.EntityState, error) {
	all := s.field.Snapshot()
	if kind == KindAll {
		return all, nil
	}

	result := make([]engine.EntityState, 0, len(all))
	for _, e := range all {
		if e.IsBot == (kind == KindBots) {
			result = append(result, e)
		}
	}
	return result, nil
}

// GetEntity returns one entity snapshot
func (s *Server) GetEntity(ctx context.Context, id int32) (*engine.EntityState, error) {
	state, ok := s.field.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrEntityNotFound, id)
	}
	return &state, nil
}

// ListSessions returns all registered connections
func (s *Server) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	sessions := s.registry.List()
	infos := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, &SessionInfo{
			ID:             sess.ID,
			EntityID:       sess.EntityID,
			EntityName:     sess.EntityName,
			CreatedAt:      sess.CreatedAt,
			LastAccessedAt: sess.LastAccessedAt,
		})
	}
	return infos, nil
}

// GetStats returns the server counters
func (s *Server) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Running:             s.Running(),
		BroadcastIntervalMs: s.interval.Milliseconds(),
		Connections:         s.registry.Count(),
		Entities:            s.field.Len(),
		Ticks:               s.ticks.Load(),
		Moves:               s.moves.Load(),
		SendFailures:        s.sendFailures.Load(),
		ProtocolViolations:  s.protocolViolations.Load(),
		Disconnects:         s.disconnects.Load(),
		RecoveredPanics:     s.recoveredPanics.Load(),
	}
	if started := s.startedAt.Load(); started != 0 {
		stats.StartedAt = time.Unix(0, started)
	}
	if s.bots != nil {
		stats.Bots = s.bots.Count()
	}
	return stats, nil
}
