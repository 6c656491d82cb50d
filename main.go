// Command fieldsync starts the shared field server.
//
// It supports three commands:
//  1. "serve" (default) runs the HTTP server exposing the WebSocket protocol,
//     the REST API and an /mcp HTTP endpoint
//  2. "mcp" runs an MCP stdio server and spins up an internal field server if
//     no external API is reachable
//  3. "check-config" validates configuration presets
//
// Flags control host/port, configuration sources, logging, and optional ngrok
// tunneling for easy external access during development. Every flag can also
// be set through the environment or a .env file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/mcp-training/fieldsync/api"
	"github.com/wricardo/mcp-training/fieldsync/game/bots"
	"github.com/wricardo/mcp-training/fieldsync/game/config"
	"github.com/wricardo/mcp-training/fieldsync/game/engine"
	"github.com/wricardo/mcp-training/fieldsync/game/service"
	"github.com/wricardo/mcp-training/fieldsync/game/session"
	"github.com/wricardo/mcp-training/fieldsync/transport/mcp"
	"github.com/wricardo/mcp-training/fieldsync/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Fieldsync Server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
	}

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:           "fieldsync",
		Usage:          AppName,
		Version:        Version,
		DefaultCommand: "serve",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "log level: debug, info, warn or error",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "shorthand for --log-level=debug",
				Sources: cli.EnvVars("DEBUG"),
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "configuration file (.yaml, .yml or .json); overrides --preset",
				Sources: cli.EnvVars("CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "config-dir",
				Value:   "configs",
				Usage:   "directory containing configuration presets",
				Sources: cli.EnvVars("CONFIG_DIR"),
			},
			&cli.StringFlag{
				Name:    "preset",
				Usage:   "preset name from --config-dir (default " + config.DefaultPreset + ")",
				Sources: cli.EnvVars("PRESET"),
			},
			&cli.Uint64Flag{
				Name:    "seed",
				Usage:   "world seed; 0 picks a random one",
				Sources: cli.EnvVars("SEED"),
			},
			&cli.IntFlag{
				Name:    "bots",
				Usage:   "override the configured bot count",
				Sources: cli.EnvVars("BOT_COUNT"),
			},
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "HTTP server port",
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "host",
				Value:   "localhost",
				Usage:   "HTTP server host",
				Sources: cli.EnvVars("HOST"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP server with WebSocket, REST API and MCP endpoint",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "ngrok",
						Usage:   "expose the server through an ngrok tunnel",
						Sources: cli.EnvVars("NGROK_ENABLED"),
					},
					&cli.StringFlag{
						Name:    "ngrok-auth",
						Usage:   "ngrok auth token",
						Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
					},
					&cli.StringFlag{
						Name:    "ngrok-domain",
						Usage:   "custom ngrok domain (optional)",
						Sources: cli.EnvVars("NGROK_DOMAIN"),
					},
				},
				Action: runServe,
			},
			{
				Name:  "mcp",
				Usage: "run an MCP stdio server backed by the REST API",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "api-url",
						Value:   "http://localhost:8080",
						Usage:   "REST API to proxy; an internal server is started when unreachable",
						Sources: cli.EnvVars("FIELDSYNC_API_URL"),
					},
				},
				Action: runStdioMCP,
			},
			{
				Name:  "check-config",
				Usage: "validate the selected configuration, or every preset with --all",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "all",
						Usage: "validate every preset in --config-dir",
					},
				},
				Action: runCheckConfig,
			},
		},
	}
}

// setupLogger installs the default slog logger. Output goes to stderr so the
// mcp command can keep stdout for the protocol.
func setupLogger(cmd *cli.Command) *slog.Logger {
	level := parseLevel(cmd.String("log-level"))
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// options are the configuration sources selected on the command line
type options struct {
	configPath string
	configDir  string
	preset     string
	seed       uint64
	seedSet    bool
	bots       int
	botsSet    bool
}

func optionsFromCommand(cmd *cli.Command) options {
	return options{
		configPath: cmd.String("config"),
		configDir:  cmd.String("config-dir"),
		preset:     cmd.String("preset"),
		seed:       cmd.Uint64("seed"),
		seedSet:    cmd.IsSet("seed"),
		bots:       cmd.Int("bots"),
		botsSet:    cmd.IsSet("bots"),
	}
}

// loadConfig resolves the configuration: an explicit file wins, then a
// preset from the config directory, then the built-in defaults. The preset
// manager is returned when the config directory exists.
func loadConfig(opts options) (*config.Config, *config.Manager, error) {
	var manager *config.Manager
	if _, err := os.Stat(opts.configDir); err == nil {
		m, err := config.NewManager(opts.configDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create config manager: %w", err)
		}
		manager = m
	}

	var cfg *config.Config
	switch {
	case opts.configPath != "":
		c, err := config.Load(opts.configPath)
		if err != nil {
			return nil, nil, err
		}
		cfg = c
	case opts.preset != "":
		if manager == nil {
			return nil, nil, fmt.Errorf("%w: preset %q requested but config directory %s does not exist",
				config.ErrConfigNotFound, opts.preset, opts.configDir)
		}
		c, err := manager.LoadConfig(opts.preset)
		if err != nil {
			return nil, nil, err
		}
		cfg = c
	case manager != nil:
		cfg = manager.GetDefault()
	default:
		cfg = config.Default()
	}

	if opts.seedSet {
		cfg.Seed = opts.seed
	}
	if opts.botsSet {
		cfg.BotCount = opts.bots
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, manager, nil
}

// buildServer creates the field, spawns the bots and wires the server.
// The returned server is not started.
func buildServer(cfg *config.Config, logger *slog.Logger) (*service.Server, error) {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	// Independent streams so the field, the bot driver and the server never
	// share a source across goroutines.
	worldRng := rand.New(rand.NewPCG(seed, 1))
	botRng := rand.New(rand.NewPCG(seed, 2))
	idRng := rand.New(rand.NewPCG(seed, 3))

	obstacles := engine.GenerateObstacles(worldRng, cfg.FieldSize, cfg.ObstacleCount, cfg.ObstacleMinSize, cfg.ObstacleMaxSize)
	field := engine.NewField(cfg.FieldSize, obstacles, worldRng)

	driver := bots.NewDriver(field, botRng, cfg.BotCount, cfg.BotMaxSpeed)
	if err := driver.Spawn(); err != nil {
		return nil, err
	}

	logger.Info("field created",
		"config", cfg.Name,
		"seed", seed,
		"size", cfg.FieldSize,
		"obstacles", len(obstacles),
		"bots", driver.Count(),
	)

	return service.NewServer(field, driver, session.NewRegistry(), service.Options{
		Interval: cfg.BroadcastInterval(),
		Logger:   logger,
		Rand:     idRng,
	}), nil
}

// newRouter combines the REST API, the WebSocket endpoint and /mcp
func newRouter(srv *service.Server, manager *config.Manager, mcpClient *mcp.Client, logger *slog.Logger) http.Handler {
	var configs api.ConfigStore
	if manager != nil {
		configs = manager
	}

	apiServer := api.NewServer(srv, configs, websocket.NewHandler(srv, logger))

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	if mcpClient != nil {
		mainRouter.HandleFunc("/mcp", mcpHandler(mcpClient))
	}
	return mainRouter
}

// mcpHandler serves MCP JSON-RPC messages over plain HTTP POST
func mcpHandler(client *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := client.GetMCPServer().HandleMessage(r.Context(), body)
		if response == nil {
			// notifications have no response
			w.WriteHeader(http.StatusAccepted)
			return
		}

		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(responseData)
	}
}

// runServe starts the field server and blocks until SIGINT/SIGTERM
func runServe(ctx context.Context, cmd *cli.Command) error {
	logger := setupLogger(cmd)
	logger.Info("starting", "app", AppName, "version", Version)

	cfg, manager, err := loadConfig(optionsFromCommand(cmd))
	if err != nil {
		return err
	}

	srv, err := buildServer(cfg, logger)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", cmd.String("host"), cmd.Int("port"))
	handler := newRouter(srv, manager, mcp.NewClient("http://"+addr), logger)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv.Start()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", addr)
		logger.Info("endpoints",
			"websocket", "ws://"+addr+"/ws",
			"api", "http://"+addr+"/api",
			"mcp", "http://"+addr+"/mcp",
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	if cmd.Bool("ngrok") {
		g.Go(func() error {
			serveNgrok(gctx, handler, cmd.String("ngrok-auth"), cmd.String("ngrok-domain"), logger)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		srv.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("server stopped")
	return err
}

// serveNgrok exposes handler through an ngrok tunnel until ctx is done.
// Tunnel failures are logged and never stop the local server.
func serveNgrok(ctx context.Context, handler http.Handler, authToken, domain string, logger *slog.Logger) {
	if authToken == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN or NGROK_AUTH_TOKEN)")
		return
	}

	logger.Info("starting ngrok tunnel")

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		logger.Info("using custom ngrok domain", "domain", domain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", "error", err)
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logger.Warn("failed to close ngrok tunnel", "error", err)
		}
	}()

	publicURL := tun.URL()
	wsURL := "wss" + strings.TrimPrefix(publicURL, "https")
	logger.Info("ngrok tunnel established",
		"url", publicURL,
		"websocket", wsURL+"/ws",
		"api", publicURL+"/api",
		"mcp", publicURL+"/mcp",
	)

	if err := http.Serve(tun, handler); err != nil && ctx.Err() == nil {
		logger.Error("ngrok server error", "error", err)
	}
	logger.Info("ngrok tunnel closed")
}

// runStdioMCP runs an MCP stdio server. It reuses an external API when one
// answers at --api-url; otherwise it starts a field server bound to a random
// loopback port and targets that.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	logger := setupLogger(cmd)

	baseURL := strings.TrimSuffix(cmd.String("api-url"), "/")
	logger.Info("checking for external API server", "url", baseURL)

	if !apiAvailable(baseURL) {
		logger.Info("no external API server found, starting internal server")

		internalURL, shutdown, err := startInternalServer(ctx, optionsFromCommand(cmd), logger)
		if err != nil {
			return err
		}
		defer shutdown()
		baseURL = internalURL
	}

	logger.Info("MCP stdio server ready", "api", baseURL)
	return server.ServeStdio(mcp.NewClient(baseURL).GetMCPServer())
}

func apiAvailable(baseURL string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// startInternalServer runs a complete field server on a loopback port and
// returns its base URL and a shutdown function.
func startInternalServer(ctx context.Context, opts options, logger *slog.Logger) (string, func(), error) {
	cfg, manager, err := loadConfig(opts)
	if err != nil {
		return "", nil, err
	}

	srv, err := buildServer(cfg, logger)
	if err != nil {
		return "", nil, err
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("failed to get available port: %w", err)
	}
	baseURL := "http://" + listener.Addr().String()

	httpServer := &http.Server{Handler: newRouter(srv, manager, nil, logger)}

	ctx, cancel := context.WithCancel(ctx)
	srv.Start()
	go srv.Run(ctx)
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("internal HTTP server error", "error", err)
		}
	}()

	logger.Info("internal HTTP server started", "url", baseURL)

	shutdown := func() {
		cancel()
		srv.Shutdown()
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		httpServer.Shutdown(shutdownCtx)
	}
	return baseURL, shutdown, nil
}

// runCheckConfig validates the resolved configuration or every preset
func runCheckConfig(ctx context.Context, cmd *cli.Command) error {
	opts := optionsFromCommand(cmd)
	out := cmd.Root().Writer
	if out == nil {
		out = os.Stdout
	}

	var results []ValidationResult
	if cmd.Bool("all") {
		results = checkPresetDir(opts.configDir)
		if len(results) == 0 {
			return fmt.Errorf("no presets found in %s", opts.configDir)
		}
	} else {
		cfg, _, err := loadConfig(opts)
		if err != nil {
			results = []ValidationResult{{File: describeSource(opts), Errors: []string{err.Error()}}}
		} else {
			results = []ValidationResult{checkConfig(describeSource(opts), cfg)}
		}
	}

	if !printResults(out, results) {
		return errors.New("some configurations have errors")
	}
	return nil
}

func describeSource(opts options) string {
	switch {
	case opts.configPath != "":
		return opts.configPath
	case opts.preset != "":
		return opts.preset
	default:
		return "default"
	}
}
