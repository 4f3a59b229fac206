// Command kawbot is the entrypoint of the Twitch chat bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres (when a backend uses it) and runs idempotent migrations.
//   - Builds the message log, streamer registry, content providers and command router.
//   - Runs the chat transport (Twitch IRC or console), the live-status poller
//     and a minimal HTTP server with /healthz, /readyz, /status, /history and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/kawbot/bot"
	"github.com/onnwee/kawbot/chat"
	"github.com/onnwee/kawbot/command"
	"github.com/onnwee/kawbot/config"
	"github.com/onnwee/kawbot/content"
	"github.com/onnwee/kawbot/db"
	"github.com/onnwee/kawbot/history"
	"github.com/onnwee/kawbot/live"
	"github.com/onnwee/kawbot/server"
	"github.com/onnwee/kawbot/streamers"
	"github.com/onnwee/kawbot/telemetry"
	"github.com/onnwee/kawbot/twitchapi"
)

const version = "1.0.0"

// transport is satisfied by chat.Client and chat.Console.
type transport interface {
	bot.Transport
	Run(ctx context.Context, handle chat.Handler) error
}

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	setupLogging()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("kawbot", version)
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("kawbot exited with error", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("shutting down")
}

// setupLogging configures the default logger from LOG_LEVEL and LOG_FORMAT.
// Defaults: level=info, format=text.
func setupLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	// Console mode prints replies on stdout; keep logs off it.
	out := os.Stdout
	if strings.EqualFold(os.Getenv("BOT_TRANSPORT"), config.TransportConsole) {
		out = os.Stderr
	}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Debug("logger initialized", slog.String("level", lvl.String()), slog.String("format", format))
}

func run(ctx context.Context, cfg *config.Config) error {
	// DB (only when a backend needs it)
	var database *sql.DB
	if cfg.HistoryBackend == config.BackendPostgres || cfg.RegistryBackend == config.BackendPostgres {
		var err error
		database, err = openDatabase(ctx, cfg.DBDsn)
		if err != nil {
			return err
		}
		defer func() {
			if err := database.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("err", err))
			}
		}()
	}

	// Message log and frequency cursors
	var (
		store   history.Store
		cursors history.CursorStore
		kv      *db.KV
	)
	if database != nil {
		kv = &db.KV{DB: database}
	}
	if cfg.HistoryBackend == config.BackendPostgres {
		store = history.NewPostgresStore(database)
		cursors = &history.KVCursors{KV: kv}
	} else {
		store = history.NewMemoryStore()
		cursors = history.NewMemoryCursors()
	}

	// Helix (app token) for channel validation and live status
	var helix *twitchapi.HelixClient
	if cfg.HelixEnabled() {
		helix = &twitchapi.HelixClient{
			AppTokenSource: &twitchapi.TokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret},
			ClientID:       cfg.TwitchClientID,
		}
	} else {
		slog.Info("helix disabled (missing TWITCH_CLIENT_ID/TWITCH_CLIENT_SECRET); live status and channel validation off")
	}

	// Streamer registry
	regStore, closeReg, err := registryStore(ctx, cfg, database)
	if err != nil {
		return err
	}
	defer closeReg()
	var resolver streamers.Resolver
	if helix != nil {
		resolver = streamers.HelixResolver{Client: helix}
	}
	registry := streamers.NewService(regStore, resolver)

	var liveSrc live.Source
	if helix != nil {
		liveSrc = &live.HelixSource{Registry: registry, Streams: helix}
	}

	// Content providers
	var weather command.Weather
	if cfg.WeatherAPIKey != "" {
		weather = &content.WeatherClient{APIKey: cfg.WeatherAPIKey, Units: cfg.WeatherUnits}
	}
	board := content.NewBoard(nil)
	if kv != nil {
		board = content.NewBoard(kv)
	}

	power := bot.NewPower(true)
	router := command.NewRouter(cfg.Prefix, cfg.CommandTimeout)
	command.Register(router, command.Deps{
		Prefix:         cfg.Prefix,
		Location:       cfg.Location,
		Ball:           content.NewBall(cfg.Content.Answers),
		Registry:       registry,
		Live:           liveSrc,
		Weather:        weather,
		Cards:          &content.CardIndex{URL: cfg.HSCardURL},
		Board:          board,
		Power:          power,
		History:        store,
		Cursors:        cursors,
		Help:           cfg.Content.Help,
		FrequencyLimit: cfg.FrequencyDisplayLimit,
		HistoryLimit:   cfg.HistoryDisplayLimit,
	})

	// Transport
	var (
		tr   transport
		self string
	)
	switch cfg.Transport {
	case config.TransportConsole:
		tr = chat.NewConsole(os.Stdin, os.Stdout, "")
		self = "kawbot"
	default:
		if err := cfg.ValidateChatReady(); err != nil {
			return err
		}
		tr = chat.NewClient(cfg.TwitchBotUsername, cfg.TwitchOAuthToken, cfg.TwitchChannels)
		self = cfg.TwitchBotUsername
	}

	b := &bot.Bot{Self: self, Prefix: cfg.Prefix, Transport: tr, Log: store, Router: router, Power: power}

	var poller *live.Poller
	if cfg.PollEnabled && liveSrc != nil {
		poller = live.New(liveSrc, live.NotifyFunc(b.Notify), power,
			live.WithInterval(cfg.PollInterval), live.WithTimeout(cfg.PollTimeout))
	}

	var snap server.LiveSnapshot
	if poller != nil {
		snap = poller
	}
	handlers := server.NewHandlers(database, store, power, snap, router.Names())

	slog.Info("starting kawbot",
		slog.String("transport", cfg.Transport),
		slog.Any("channels", tr.Channels()),
		slog.String("history_backend", cfg.HistoryBackend),
		slog.String("registry_backend", cfg.RegistryBackend),
		slog.Bool("poller", poller != nil))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx, handlers, cfg.HTTPAddr)
	})
	if poller != nil {
		g.Go(func() error {
			slog.Info("live poller started", slog.Duration("interval", poller.Interval()), slog.String("component", "live"))
			poller.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		err := tr.Run(gctx, b.HandleMessage)
		if err != nil {
			return fmt.Errorf("chat transport: %w", err)
		}
		if cfg.Transport == config.TransportConsole && gctx.Err() == nil {
			// stdin closed; stop the other workers
			return errConsoleClosed
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errConsoleClosed) {
		return err
	}
	return nil
}

var errConsoleClosed = errors.New("console input closed")

// openDatabase connects to Postgres and applies migrations.
func openDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	database, err := db.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Primary: versioned migrations (golang-migrate); fallback: embedded idempotent SQL.
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, attempting fallback to embedded SQL",
			slog.Any("err", err),
			slog.String("component", "db_migrate"))
		mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := db.Migrate(mctx, database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("migrate db (both versioned and embedded SQL failed): %w", err)
		}
	} else {
		slog.Info("versioned migrations completed successfully", slog.String("component", "db_migrate"))
	}
	return database, nil
}

// registryStore builds the configured streamer registry backend and its close func.
func registryStore(ctx context.Context, cfg *config.Config, database *sql.DB) (streamers.Store, func(), error) {
	switch cfg.RegistryBackend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				slog.Error("failed to close redis", slog.Any("err", err))
			}
		}
		return streamers.NewRedisStore(client, cfg.RedisStreamersKey), closeFn, nil
	case config.BackendPostgres:
		return &streamers.PostgresStore{DB: database}, func() {}, nil
	default:
		return streamers.NewMemoryStore(), func() {}, nil
	}
}
