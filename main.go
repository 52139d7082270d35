// Command room-tender is the main entrypoint for the private room bot and
// its dashboard API. It:
//   - Loads configuration and initializes structured logging.
//   - Connects to the Discord gateway and registers slash commands.
//   - Reconciles persisted room state against live Discord on startup and
//     whenever the settings file changes on disk.
//   - Exposes an HTTP server with the dashboard API, OAuth login, /healthz,
//     /readyz, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"

	"github.com/qtcord/room-tender/bot"
	"github.com/qtcord/room-tender/config"
	"github.com/qtcord/room-tender/discord"
	"github.com/qtcord/room-tender/rooms"
	"github.com/qtcord/room-tender/server"
	"github.com/qtcord/room-tender/settings"
	"github.com/qtcord/room-tender/telemetry"
)

const settingsDebounce = 500 * time.Millisecond

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateBotReady(); err != nil {
		slog.Error("bot configuration incomplete", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateOAuthReady(); err != nil {
		slog.Warn("dashboard OAuth not configured, login disabled", slog.Any("err", err))
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("room-tender", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Settings store
	store, err := settings.Open(cfg.SettingsPath)
	if err != nil {
		slog.Error("failed to open settings store", slog.Any("err", err), slog.String("path", cfg.SettingsPath))
		os.Exit(1)
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Discord session
	session, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		slog.Error("failed to create discord session", slog.Any("err", err))
		os.Exit(1)
	}
	session.Identify.Intents = bot.Intents
	session.StateEnabled = true
	if err := session.Open(); err != nil {
		slog.Error("failed to connect to discord gateway", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Error("failed to close discord session", slog.Any("err", err))
		}
	}()
	slog.Info("connected to discord", slog.String("user_id", session.State.User.ID))

	gw := discord.NewGateway(session)
	registry := rooms.NewRegistry()
	ctrl := rooms.NewController(session.State.User.ID, gw, registry, store)

	b := bot.New(session, ctrl, store, gw)
	if err := b.Start(ctx); err != nil {
		slog.Error("failed to start bot", slog.Any("err", err))
		os.Exit(1)
	}

	// Sweep rooms that emptied or vanished while the bot was offline
	ctrl.Reconcile(ctx)

	// Re-reconcile when the settings file is edited out of band
	go func() {
		if err := settings.Watch(ctx, store, settingsDebounce, func(wctx context.Context) {
			slog.Info("settings file changed, reconciling")
			ctrl.Reconcile(wctx)
		}); err != nil && ctx.Err() == nil {
			slog.Error("settings watcher exited", slog.Any("err", err))
		}
	}()

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// HTTP server (dashboard API, OAuth, health, metrics)
	botReady := func() bool {
		return session.DataReady
	}
	go func() {
		if err := server.Start(ctx, *cfg, store, gw, registry, botReady); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}
