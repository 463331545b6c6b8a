package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	apihttp "jukebox/internal/api/http"
	"jukebox/internal/app"
	"jukebox/internal/domain/ports"
	"jukebox/internal/metrics"
	mongorepo "jukebox/internal/repository/mongo"
	"jukebox/internal/scheduler"
	"jukebox/internal/services/fetcher/youtube"
	"jukebox/internal/services/library"
	"jukebox/internal/services/library/ffprobe"
	"jukebox/internal/services/player"
	"jukebox/internal/telemetry"

	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "jukebox")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "jukebox"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("playerName", cfg.PlayerName),
		slog.String("libraryDir", cfg.LibraryDir),
		slog.String("playerBackend", cfg.PlayerBackend),
		slog.Float64("dontRepeatFor", cfg.DontRepeatFor),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
	defer cancel()

	mongoMonitor := otelmongo.NewMonitor()
	mongoClient, err := mongorepo.Connect(ctx, cfg.MongoURI, options.Client().SetMonitor(mongoMonitor))
	if err != nil {
		logger.Error("mongo connect failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		logger.Error("mongo ping failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	packetRepo := mongorepo.NewPacketRepository(mongoClient, cfg.MongoDatabase)
	songRepo := mongorepo.NewSongRepository(mongoClient, cfg.MongoDatabase)
	historyRepo := mongorepo.NewHistoryRepository(mongoClient, cfg.MongoDatabase)

	if err := packetRepo.EnsureIndexes(ctx); err != nil {
		logger.Warn("packet indexes failed", slog.String("error", err.Error()))
	}
	if err := songRepo.EnsureIndexes(ctx); err != nil {
		logger.Warn("song indexes failed", slog.String("error", err.Error()))
	}
	if err := historyRepo.EnsureIndexes(ctx); err != nil {
		logger.Warn("history indexes failed", slog.String("error", err.Error()))
	}

	scanner := library.NewScanner(cfg.LibraryDir, songRepo, ffprobe.New(cfg.FFProbePath), logger)
	if err := scanner.Scan(ctx); err != nil {
		logger.Warn("initial library scan failed", slog.String("error", err.Error()))
	}
	go func() {
		if err := scanner.Watch(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("library watcher stopped", slog.String("error", err.Error()))
		}
	}()

	fetcherOpts := []youtube.Option{}
	metaCache, err := youtube.OpenCache(cfg.MetadataCachePath, cfg.MetadataCacheTTL)
	if err != nil {
		logger.Warn("metadata cache unavailable", slog.String("path", cfg.MetadataCachePath), slog.String("error", err.Error()))
	} else {
		fetcherOpts = append(fetcherOpts, youtube.WithCache(metaCache))
		defer metaCache.Close()
	}
	fetcher := youtube.NewClient(cfg.YouTubeAPIKey, logger, fetcherOpts...)

	var playback ports.Player
	switch cfg.PlayerBackend {
	case "noop":
		playback = player.NewNoop(logger)
	default:
		playback = player.NewMPV(cfg.MPVPath, logger)
	}

	sched, err := scheduler.New(ctx, scheduler.Config{
		PlayerName:       cfg.PlayerName,
		DontRepeatFor:    cfg.DontRepeatFor,
		MaxDontRepeatFor: cfg.MaxDontRepeatFor,
		TickInterval:     cfg.TickInterval,
	}, scheduler.Deps{
		Packets: packetRepo,
		Songs:   songRepo,
		History: historyRepo,
		Player:  playback,
		Fetcher: fetcher,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("scheduler init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	sched.Start(rootCtx)

	handler := apihttp.NewServer(sched,
		apihttp.WithLibrary(songRepo),
		apihttp.WithHistory(historyRepo),
		apihttp.WithPlayerName(cfg.PlayerName),
		apihttp.WithAllowedOrigins(cfg.CORSAllowedOrigins),
		apihttp.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		apihttp.WithLogger(logger),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("server started", slog.String("addr", cfg.HTTPAddr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	handler.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", slog.String("error", err.Error()))
	}
	playback.Stop()
	if err := mongoClient.Disconnect(context.Background()); err != nil {
		logger.Warn("mongo disconnect error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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
