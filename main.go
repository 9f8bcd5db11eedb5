package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/mcp-training/arcade/api"
	"github.com/wricardo/mcp-training/arcade/game/config"
	"github.com/wricardo/mcp-training/arcade/game/service"
	"github.com/wricardo/mcp-training/arcade/game/session"
	"github.com/wricardo/mcp-training/arcade/transport/mcp"
	"github.com/wricardo/mcp-training/arcade/transport/websocket"
)

const (
	Version = "1.0.0"
	AppName = "Arcade Puzzle Server"

	defaultPresetDir = "presets"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("exit")
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "arcade",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port", Sources: cli.EnvVars("PORT")},
			&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host", Sources: cli.EnvVars("HOST")},
			&cli.StringFlag{Name: "preset-dir", Value: defaultPresetDir, Usage: "Directory containing preset JSON files", Sources: cli.EnvVars("PRESET_DIR")},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug, info, warn or error", Sources: cli.EnvVars("LOG_LEVEL")},
			&cli.BoolFlag{Name: "log-json", Usage: "Emit JSON logs instead of console output", Sources: cli.EnvVars("LOG_JSON")},
			&cli.DurationFlag{Name: "tick", Value: service.DefaultTickInterval, Usage: "Game clock interval", Sources: cli.EnvVars("TICK_INTERVAL")},
			&cli.DurationFlag{Name: "session-ttl", Value: 2 * time.Hour, Usage: "Drop sessions idle for this long", Sources: cli.EnvVars("SESSION_TTL")},
			&cli.BoolFlag{Name: "ngrok", Usage: "Expose the server through an ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain", Sources: cli.EnvVars("NGROK_DOMAIN")},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return ctx, setupLogging(cmd.String("log-level"), cmd.Bool("log-json"))
		},
		Action: runHTTPServer,
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"server", "http"},
				Usage:   "Run HTTP server with REST API, WebSocket and MCP endpoint (default)",
				Action:  runHTTPServer,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run MCP over stdio, backed by a running server or an internal one",
				Action:  runStdioMCP,
			},
		},
	}
}

// setupLogging configures the global zerolog logger. Logs go to stderr so
// stdout stays free for the stdio MCP transport.
func setupLogging(level string, jsonOutput bool) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)

	if jsonOutput {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return nil
}

// services is the wired game backend
type services struct {
	game     service.GameService
	presets  *config.Manager
	sessions *session.Manager
	hub      *websocket.Hub
}

// initializeServices wires the preset store, session manager, game service
// and websocket hub. The default preset directory is optional; an explicit
// one must exist.
func initializeServices(presetDir string, explicit bool) (*services, error) {
	if !explicit {
		if _, err := os.Stat(presetDir); err != nil {
			log.Warn().Str("dir", presetDir).Msg("preset directory not found, using built-in presets")
			presetDir = ""
		}
	}

	presets, err := config.NewManager(presetDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create preset manager: %w", err)
	}

	sessions := session.NewManager()
	game := service.NewGameService(sessions, presets)

	hub := websocket.NewHub()
	hub.Bind(game)
	game.SetListener(hub)

	return &services{game: game, presets: presets, sessions: sessions, hub: hub}, nil
}

// start launches the background loops: hub, game clock, janitor and preset watcher
func (s *services) start(ctx context.Context, tick, ttl time.Duration) *sync.WaitGroup {
	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	run(func() { s.hub.Run(ctx) })
	run(func() { service.RunClock(ctx, s.game, tick) })
	run(func() { s.sessions.RunJanitor(ctx, time.Minute, ttl) })
	run(func() {
		err := s.presets.Watch(ctx, func(id string) {
			log.Info().Str("preset", id).Msg("preset reloaded")
		})
		if err != nil {
			log.Warn().Err(err).Msg("preset watcher stopped")
		}
	})
	return &wg
}

// newRouter mounts the REST API, websocket feed and MCP endpoint
func newRouter(s *services, baseURL string) http.Handler {
	apiServer := api.NewServer(s.game, s.hub)
	mcpClient := mcp.NewClient(baseURL)

	router := http.NewServeMux()
	router.Handle("/", apiServer)
	router.Handle("/mcp", mcpHandler(mcpClient.GetMCPServer()))
	return router
}

// mcpHandler serves JSON-RPC MCP messages over plain HTTP POST
func mcpHandler(mcpServer *server.MCPServer) http.HandlerFunc {
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

		response := mcpServer.HandleMessage(r.Context(), body)
		if response == nil {
			w.WriteHeader(http.StatusAccepted)
			return
		}

		data, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}
}

func runHTTPServer(ctx context.Context, cmd *cli.Command) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	svcs, err := initializeServices(cmd.String("preset-dir"), cmd.IsSet("preset-dir"))
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", cmd.String("host"), int(cmd.Int("port")))
	handler := newRouter(svcs, "http://"+addr)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	wg := svcs.start(ctx, cmd.Duration("tick"), cmd.Duration("session-ttl"))

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("version", Version).Str("addr", addr).Msg("HTTP server listening")
		log.Info().Msgf("REST API: http://%s/api", addr)
		log.Info().Msgf("WebSocket: ws://%s/ws?session=<session_id>", addr)
		log.Info().Msgf("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if cmd.Bool("ngrok") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := serveNgrok(ctx, handler, cmd.String("ngrok-auth"), cmd.String("ngrok-domain")); err != nil {
				log.Error().Err(err).Msg("ngrok tunnel")
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-serveErr:
		if err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown")
	}

	wg.Wait()
	log.Info().Msg("server stopped")
	return nil
}

// serveNgrok exposes handler through an ngrok tunnel until ctx is done
func serveNgrok(ctx context.Context, handler http.Handler, authToken, domain string) error {
	if authToken == "" {
		return fmt.Errorf("ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
	}

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		return fmt.Errorf("failed to start ngrok tunnel: %w", err)
	}
	defer tun.Close()

	url := tun.URL()
	log.Info().Str("url", url).Msg("ngrok tunnel established")
	log.Info().Msgf("REST API (ngrok): %s/api", url)
	log.Info().Msgf("MCP endpoint (ngrok): %s/mcp", url)

	go func() {
		<-ctx.Done()
		tun.Close()
	}()

	if err := http.Serve(tun, handler); err != nil && ctx.Err() == nil {
		return fmt.Errorf("ngrok server: %w", err)
	}
	return nil
}

// runStdioMCP serves MCP on stdio. It reuses a server already listening on
// the configured port and otherwise starts an internal one on a loopback port.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	externalURL := fmt.Sprintf("http://localhost:%d", int(cmd.Int("port")))
	baseURL := externalURL

	if !serverAlive(externalURL) {
		svcs, err := initializeServices(cmd.String("preset-dir"), cmd.IsSet("preset-dir"))
		if err != nil {
			return err
		}

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = "http://" + listener.Addr().String()

		wg := svcs.start(ctx, cmd.Duration("tick"), cmd.Duration("session-ttl"))
		defer func() {
			cancel()
			wg.Wait()
		}()

		httpServer := &http.Server{Handler: newRouter(svcs, baseURL)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("internal HTTP server")
			}
		}()
		defer httpServer.Close()

		log.Info().Str("url", baseURL).Msg("MCP stdio server ready (internal HTTP server)")
	} else {
		log.Info().Str("url", baseURL).Msg("MCP stdio server ready (external HTTP server)")
	}

	client := mcp.NewClient(baseURL)
	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}

func serverAlive(baseURL string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
