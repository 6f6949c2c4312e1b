// Command mazechase runs the maze chase game.
//
// It supports four commands:
//  1. "play" – plays a level directory in the terminal with the keyboard
//  2. "serve" – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  3. "mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//  4. "validate" – checks every level of a level directory
//
// Flags control host/port, level directory, unit timing, debug logging and
// optional ngrok tunneling for easy external access during development.
// Every flag can also be set from the environment or a .env file.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/mcp-training/mazechase/api"
	"github.com/wricardo/mcp-training/mazechase/game/checkpoint"
	"github.com/wricardo/mcp-training/mazechase/game/config"
	"github.com/wricardo/mcp-training/mazechase/game/service"
	"github.com/wricardo/mcp-training/mazechase/game/session"
	"github.com/wricardo/mcp-training/mazechase/game/sim"
	"github.com/wricardo/mcp-training/mazechase/transport/mcp"
	"github.com/wricardo/mcp-training/mazechase/transport/terminal"
	"github.com/wricardo/mcp-training/mazechase/transport/websocket"
	"github.com/wricardo/mcp-training/mazechase/validate"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Maze Chase"
)

const (
	// DefaultLevelDir is used when neither --level-dir nor LEVEL_DIR is set
	DefaultLevelDir = "levels"
	// DefaultPlayLog keeps log output off the screen while playing
	DefaultPlayLog = "debug.log"
)

// main loads .env, wires signals into the context and runs the CLI
func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).Warn("error loading .env file")
		}
	} else {
		log.Debug("loaded environment variables from .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

// newApp builds the command tree
func newApp() *cli.Command {
	return &cli.Command{
		Name:    "mazechase",
		Usage:   "a grid chase game with checkpoint branches",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "level-dir",
				Value:   DefaultLevelDir,
				Usage:   "directory containing .lvl levels and agent scripts",
				Sources: cli.EnvVars("LEVEL_DIR"),
			},
			&cli.IntFlag{
				Name:    "tick-ms",
				Usage:   "unit period in milliseconds (0 uses each level's tempo)",
				Sources: cli.EnvVars("TICK_MS"),
			},
			&cli.DurationFlag{
				Name:    "branch-timeout",
				Usage:   "restore a checkpoint branch that runs longer than this (0 waits)",
				Sources: cli.EnvVars("BRANCH_TIMEOUT"),
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "enable debug logging",
				Sources: cli.EnvVars("DEBUG"),
			},
			&cli.StringFlag{
				Name:    "log-file",
				Usage:   "write logs to this file (play defaults to " + DefaultPlayLog + ")",
				Sources: cli.EnvVars("LOG_FILE"),
			},
			&cli.StringFlag{
				Name:    "sentry-dsn",
				Usage:   "report unit panics to Sentry",
				Sources: cli.EnvVars("SENTRY_DSN"),
			},
		},
		Before: setup,
		After: func(ctx context.Context, cmd *cli.Command) error {
			sentry.Flush(2 * time.Second)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "play",
				Usage:  "play the level directory in this terminal",
				Action: runPlay,
			},
			{
				Name:   "serve",
				Usage:  "run the HTTP server with API, WebSocket, and MCP endpoint",
				Flags:  append(httpFlags(), serveFlags()...),
				Action: runServe,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "run an MCP stdio server backed by the HTTP API",
				Flags: append(httpFlags(), &cli.StringFlag{
					Name:    "api-url",
					Usage:   "API base URL (default: probe host:port, else start an internal server)",
					Sources: cli.EnvVars("MCP_API_URL"),
				}),
				Action: runMCP,
			},
			{
				Name:   "validate",
				Usage:  "check every level of the level directory",
				Action: runValidate,
			},
		},
	}
}

func httpFlags() []cli.Flag {
	return []cli.Flag{
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
	}
}

func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:    "session-ttl",
			Value:   24 * time.Hour,
			Usage:   "remove sessions not accessed for this long",
			Sources: cli.EnvVars("SESSION_TTL"),
		},
		&cli.BoolFlag{
			Name:    "ngrok",
			Usage:   "enable ngrok tunnel",
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
	}
}

// setup configures logging and error reporting for every command
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if cmd.Bool("debug") {
		log.SetLevel(log.DebugLevel)
		log.SetReportCaller(true)
	}

	if dsn := cmd.String("sentry-dsn"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:     dsn,
			Release: fmt.Sprintf("mazechase@%s", Version),
		}); err != nil {
			return ctx, fmt.Errorf("failed to initialize sentry: %w", err)
		}
		log.Debug("sentry enabled")
	}
	return ctx, nil
}

// logToFile redirects logging to name, or fallback when name is empty. The
// returned function closes the file.
func logToFile(name, fallback string) (func(), error) {
	if name == "" {
		name = fallback
	}
	if name == "" {
		return func() {}, nil
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetOutput(f)
	return func() {
		log.SetOutput(os.Stderr)
		f.Close()
	}, nil
}

// sessionOptions maps the timing flags onto controller options
func sessionOptions(cmd *cli.Command, endScreen time.Duration) session.Options {
	return session.Options{
		EndScreen: endScreen,
		Sim: sim.Options{
			Tick: time.Duration(cmd.Int("tick-ms")) * time.Millisecond,
		},
		Checkpoint: checkpoint.Options{
			BranchTimeout: cmd.Duration("branch-timeout"),
		},
	}
}

// runPlay plays every level of the level directory in the terminal
func runPlay(ctx context.Context, cmd *cli.Command) error {
	closeLog, err := logToFile(cmd.String("log-file"), DefaultPlayLog)
	if err != nil {
		return err
	}
	defer closeLog()

	levels, err := config.NewManager(cmd.String("level-dir"))
	if err != nil {
		return fmt.Errorf("failed to create level manager: %w", err)
	}

	keyboard, err := terminal.OpenKeyboard(os.Stdin)
	if err != nil {
		return fmt.Errorf("failed to open keyboard: %w", err)
	}
	defer keyboard.Close()

	controller := session.NewController(levels, terminal.NewScreen(os.Stdout), keyboard, sessionOptions(cmd, 2*time.Second))
	result, err := controller.Run(ctx)
	keyboard.Close()
	if err != nil {
		return err
	}

	stats := controller.Checkpoints()
	fmt.Printf("\n%s: %s with %d points, %d levels cleared, %d checkpoints\n",
		AppName, result.Reason, result.Points, result.LevelsCleared, stats.Created)
	return nil
}

// services holds everything the HTTP API needs
type services struct {
	game     service.GameService
	sessions *session.Manager
	hub      *websocket.Hub
}

// newServices wires the level and session managers, the websocket hub and
// the game service. Sessions render into the hub; hub commands go to the
// service.
func newServices(ctx context.Context, levelDir string, opts session.Options) (*services, error) {
	levels, err := config.NewManager(levelDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create level manager: %w", err)
	}

	sessions := session.NewManager()
	hub := websocket.NewHub()
	game := service.NewGameService(sessions, levels, hub, opts)
	hub.OnCommand(func(sessionID, command string) error {
		_, err := game.SendCommand(ctx, sessionID, command)
		return err
	})
	go hub.Run(ctx)

	return &services{game: game, sessions: sessions, hub: hub}, nil
}

// newRouter mounts the API and an /mcp JSON-RPC endpoint
func newRouter(apiServer http.Handler, mcpClient *mcp.Client) *http.ServeMux {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
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

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})
	return mainRouter
}

// runServe starts the HTTP server with REST API, WebSocket hub, and an /mcp
// endpoint. With --ngrok it also provisions a public tunnel.
func runServe(ctx context.Context, cmd *cli.Command) error {
	closeLog, err := logToFile(cmd.String("log-file"), "")
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	svc, err := newServices(ctx, cmd.String("level-dir"), sessionOptions(cmd, time.Second))
	if err != nil {
		return err
	}
	defer svc.sessions.Shutdown()
	go sessionCleanupRoutine(ctx, svc.sessions, cmd.Duration("session-ttl"))

	addr := fmt.Sprintf("%s:%d", cmd.String("host"), cmd.Int("port"))
	mainRouter := newRouter(api.NewServer(svc.game, svc.hub), mcp.NewClient("http://"+addr))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Infof("HTTP server listening on %s", addr)
		log.Infof("REST API: http://%s/api", addr)
		log.Infof("WebSocket: ws://%s/ws?session=<session_id>", addr)
		log.Infof("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	if cmd.Bool("ngrok") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runTunnel(ctx, cmd.String("ngrok-auth"), cmd.String("ngrok-domain"), mainRouter)
		}()
	}

	var result error
	select {
	case <-ctx.Done():
		log.Info("shutting down...")
	case result = <-serveErr:
	}
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown error")
	}

	wg.Wait()
	log.Info("server stopped")
	return result
}

// runTunnel serves handler through an ngrok tunnel until ctx is done
func runTunnel(ctx context.Context, authToken, domain string, handler http.Handler) {
	if authToken == "" {
		log.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	log.Info("starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		log.WithField("domain", domain).Info("using custom ngrok domain")
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.WithError(err).Error("failed to start ngrok tunnel")
		return
	}
	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.WithError(err).Warn("failed to close ngrok tunnel")
		}
	}()

	ngrokURL := tun.URL()
	log.Infof("ngrok tunnel established: %s", ngrokURL)
	log.Infof("  REST API (ngrok): %s/api", ngrokURL)
	log.Infof("  WebSocket (ngrok): %s/ws?session=<session_id>", ngrokURL)
	log.Infof("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	if err := http.Serve(tun, handler); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Debug("ngrok server stopped")
	}
	log.Info("ngrok tunnel closed")
}

// sessionCleanupRoutine periodically removes sessions that have not been
// accessed within ttl
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	interval := time.Hour
	if ttl < interval {
		interval = ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(ttl); removed > 0 {
				log.WithField("removed", removed).Info("cleaned up expired sessions")
			}
		}
	}
}

// apiAvailable reports whether an API server answers at baseURL
func apiAvailable(baseURL string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL + "/api")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// runMCP runs an MCP stdio server. Without --api-url it reuses an API at
// host:port when one answers, otherwise it starts an internal API on a random
// loopback port.
func runMCP(ctx context.Context, cmd *cli.Command) error {
	// stdout carries the MCP protocol
	closeLog, err := logToFile(cmd.String("log-file"), "")
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	baseURL := cmd.String("api-url")
	if baseURL == "" {
		externalURL := fmt.Sprintf("http://%s:%d", cmd.String("host"), cmd.Int("port"))
		log.Infof("checking for external API server at %s...", externalURL)
		if apiAvailable(externalURL) {
			log.Infof("external API server found at %s, using it for MCP", externalURL)
			baseURL = externalURL
		}
	}

	if baseURL == "" {
		log.Info("no external API server found, starting internal HTTP server")

		svc, err := newServices(ctx, cmd.String("level-dir"), sessionOptions(cmd, time.Second))
		if err != nil {
			return err
		}
		defer svc.sessions.Shutdown()

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		internalAddr := listener.Addr().String()
		log.Infof("starting internal HTTP server on %s for MCP stdio", internalAddr)

		httpServer := &http.Server{Handler: api.NewServer(svc.game, svc.hub)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("internal HTTP server error")
			}
		}()
		defer httpServer.Close()

		baseURL = "http://" + internalAddr
	}

	log.WithField("api", baseURL).Info("MCP stdio server ready")
	if err := server.ServeStdio(mcp.NewClient(baseURL).GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// runValidate validates the level directory and fails when any level is
// invalid
func runValidate(ctx context.Context, cmd *cli.Command) error {
	ok, err := validate.Run(cmd.String("level-dir"))
	if err != nil {
		return err
	}
	if !ok {
		return cli.Exit("validation failed", 1)
	}
	return nil
}
