// Command probe connects to a field server over WebSocket, performs the
// handshake and sends a series of moves from one or more clients, then prints
// a short report of what the server answered. It is useful for smoke testing
// a deployment and for putting light concurrent load on the move path.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/mcp-training/fieldsync/game/engine"
	"github.com/wricardo/mcp-training/fieldsync/game/service"
	"github.com/wricardo/mcp-training/fieldsync/transport/wire"
)

var ErrBadHandshake = errors.New("unexpected handshake reply")

// Client is one probing connection
type Client struct {
	conn    *websocket.Conn
	timeout time.Duration

	ID         int32
	Name       string
	Field      *wire.FieldParams
	Peers      []wire.Peer
	Broadcasts int
	Entities   int
}

// Dial opens a WebSocket connection to url
func Dial(ctx context.Context, url string, timeout time.Duration) (*Client, error) {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = timeout

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Client{conn: conn, timeout: timeout}, nil
}

// Handshake joins the field and reads the welcome frames
func (c *Client) Handshake() error {
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(service.HandshakeToken)); err != nil {
		return err
	}

	messageType, data, err := c.read()
	if err != nil {
		return err
	}
	if messageType != websocket.TextMessage {
		return fmt.Errorf("%w: binary frame", ErrBadHandshake)
	}
	idPart, name, ok := strings.Cut(string(data), "|")
	if !ok {
		return fmt.Errorf("%w: %q", ErrBadHandshake, data)
	}
	id, err := strconv.ParseInt(idPart, 10, 32)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrBadHandshake, data)
	}
	c.ID, c.Name = int32(id), name

	for c.Field == nil || c.Peers == nil {
		msg, err := c.next()
		if err != nil {
			return err
		}
		switch msg.Tag {
		case wire.TagFieldParams:
			c.Field = msg.Field
		case wire.TagConnectedInfo:
			c.Peers = msg.Peers
		}
	}
	return nil
}

// Move sends a CheckMove and waits for the server's corrected velocity.
// Broadcasts received while waiting are counted.
func (c *Client) Move(v engine.Vector) (engine.Vector, error) {
	if err := c.conn.WriteMessage(websocket.BinaryMessage, wire.EncodeCheckMove(v)); err != nil {
		return engine.Vector{}, err
	}

	for {
		msg, err := c.next()
		if err != nil {
			return engine.Vector{}, err
		}
		if msg.Tag == wire.TagResultMove {
			return msg.Velocity, nil
		}
	}
}

// Close sends a close frame and closes the connection
func (c *Client) Close() error {
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}

func (c *Client) read() (int, []byte, error) {
	c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	return c.conn.ReadMessage()
}

// next reads the next decodable binary message, skipping text frames and
// unknown tags
func (c *Client) next() (*wire.Message, error) {
	for {
		messageType, data, err := c.read()
		if err != nil {
			return nil, err
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		msg, err := wire.Decode(data)
		if err != nil {
			return nil, err
		}
		if msg == nil {
			continue
		}
		if msg.Tag == wire.TagEntitiesInfo {
			c.Broadcasts++
			c.Entities = len(msg.Entities)
		}
		return msg, nil
	}
}

type probeConfig struct {
	URL      string
	Clients  int
	Moves    int
	Velocity engine.Vector
	Interval time.Duration
	Timeout  time.Duration
}

// Report summarizes a probe run
type Report struct {
	Clients     int
	Moves       int64
	Reflections int64
	Broadcasts  int64
	FieldSize   int32
	Obstacles   int
	Peers       int
	Entities    int
	Elapsed     time.Duration
}

// runProbe connects cfg.Clients clients concurrently and has each send
// cfg.Moves moves
func runProbe(ctx context.Context, cfg probeConfig, logger *slog.Logger) (*Report, error) {
	report := &Report{Clients: cfg.Clients}
	var moves, reflections, broadcasts atomic.Int64
	started := time.Now()

	clients := make([]*Client, cfg.Clients)
	g, gctx := errgroup.WithContext(ctx)
	for i := range clients {
		g.Go(func() error {
			client, err := Dial(gctx, cfg.URL, cfg.Timeout)
			if err != nil {
				return err
			}
			defer client.Close()
			clients[i] = client

			if err := client.Handshake(); err != nil {
				return fmt.Errorf("client %d: handshake: %w", i, err)
			}
			logger.Info("joined", "client", i, "id", client.ID, "name", client.Name, "peers", len(client.Peers))

			for n := 0; n < cfg.Moves; n++ {
				if err := gctx.Err(); err != nil {
					return err
				}

				got, err := client.Move(cfg.Velocity)
				if err != nil {
					return fmt.Errorf("client %d: move %d: %w", i, n, err)
				}
				moves.Add(1)
				if got != cfg.Velocity {
					reflections.Add(1)
					logger.Debug("reflected", "client", i, "sent", cfg.Velocity, "got", got)
				}

				if cfg.Interval > 0 {
					time.Sleep(cfg.Interval)
				}
			}
			broadcasts.Add(int64(client.Broadcasts))
			return nil
		})
	}
	err := g.Wait()

	report.Moves = moves.Load()
	report.Reflections = reflections.Load()
	report.Broadcasts = broadcasts.Load()
	report.Elapsed = time.Since(started)
	for _, c := range clients {
		if c == nil || c.Field == nil {
			continue
		}
		report.FieldSize = c.Field.Size
		report.Obstacles = len(c.Field.Obstacles)
		report.Peers = max(report.Peers, len(c.Peers))
		report.Entities = max(report.Entities, c.Entities)
	}
	return report, err
}

func printReport(w io.Writer, r *Report) {
	fmt.Fprintf(w, "Field: %dx%d with %d obstacles\n", r.FieldSize, r.FieldSize, r.Obstacles)
	fmt.Fprintf(w, "Clients: %d (largest roster %d)\n", r.Clients, r.Peers)
	fmt.Fprintf(w, "Moves: %d (%d reflected)\n", r.Moves, r.Reflections)
	fmt.Fprintf(w, "Broadcasts received: %d (last snapshot %d entities)\n", r.Broadcasts, r.Entities)
	fmt.Fprintf(w, "Elapsed: %s\n", r.Elapsed.Round(time.Millisecond))
}

func main() {
	cmd := &cli.Command{
		Name:  "probe",
		Usage: "exercise a field server over WebSocket",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Value:   "ws://localhost:8080/ws",
				Usage:   "WebSocket endpoint",
				Sources: cli.EnvVars("PROBE_URL"),
			},
			&cli.IntFlag{Name: "clients", Value: 1, Usage: "concurrent connections"},
			&cli.IntFlag{Name: "moves", Value: 20, Usage: "moves per connection"},
			&cli.IntFlag{Name: "vx", Value: 3, Usage: "requested x velocity"},
			&cli.IntFlag{Name: "vy", Value: 2, Usage: "requested y velocity"},
			&cli.DurationFlag{Name: "interval", Value: 50 * time.Millisecond, Usage: "pause between moves"},
			&cli.DurationFlag{Name: "timeout", Value: 5 * time.Second, Usage: "per-read timeout"},
			&cli.BoolFlag{Name: "debug", Usage: "log every reflected move"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			level := slog.LevelInfo
			if cmd.Bool("debug") {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			if cmd.Int("clients") < 1 {
				return errors.New("--clients must be at least 1")
			}

			report, err := runProbe(ctx, probeConfig{
				URL:      cmd.String("url"),
				Clients:  cmd.Int("clients"),
				Moves:    cmd.Int("moves"),
				Velocity: engine.Vector{X: int32(cmd.Int("vx")), Y: int32(cmd.Int("vy"))},
				Interval: cmd.Duration("interval"),
				Timeout:  cmd.Duration("timeout"),
			}, logger)
			if report != nil {
				printReport(cmd.Root().Writer, report)
			}
			return err
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "probe: %v\n", err)
		os.Exit(1)
	}
}
