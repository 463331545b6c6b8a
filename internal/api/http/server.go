// Package apihttp exposes the jukebox over HTTP: queue mutations, queue and
// library views, play history, health, metrics and a websocket feed of
// queue updates.
package apihttp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"jukebox/internal/domain"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// QueueService is the scheduling engine as seen by the transport layer.
type QueueService interface {
	Vote(ctx context.Context, user string, ref domain.ItemRef) ([]domain.QueueEntry, error)
	Remove(ctx context.Context, ref domain.ItemRef, skip bool) ([]domain.QueueEntry, error)
	Clear(ctx context.Context) ([]domain.QueueEntry, error)
	Advance(ctx context.Context, skip bool) (*domain.PlayItem, error)
	Queue(ctx context.Context, viewer string) ([]domain.QueueEntry, error)
	VirtualTime() float64
	ActiveSessions() int
}

type SongCatalog interface {
	ListSongs(ctx context.Context) ([]domain.Song, error)
}

type HistoryReader interface {
	ListHistory(ctx context.Context, player string, limit int) ([]domain.PlayHistoryEntry, error)
}

type Server struct {
	queue          QueueService
	library        SongCatalog
	history        HistoryReader
	playerName     string
	allowedOrigins []string
	rateRPS        float64
	rateBurst      int
	logger         *slog.Logger
	handler        http.Handler
	wsHub          *wsHub
}

type ServerOption func(*Server)

func WithLibrary(catalog SongCatalog) ServerOption {
	return func(s *Server) { s.library = catalog }
}

func WithHistory(reader HistoryReader) ServerOption {
	return func(s *Server) { s.history = reader }
}

func WithPlayerName(name string) ServerOption {
	return func(s *Server) { s.playerName = name }
}

// WithAllowedOrigins configures the CORS allowed origins whitelist.
// When empty (default), any origin is permitted (development mode).
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) { s.allowedOrigins = origins }
}

func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		s.rateRPS = rps
		s.rateBurst = burst
	}
}

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

func NewServer(queue QueueService, opts ...ServerOption) *Server {
	s := &Server{
		queue:     queue,
		rateRPS:   100,
		rateBurst: 200,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.wsHub = newWSHub(s.logger)
	go s.wsHub.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/queue", s.handleQueue)
	mux.HandleFunc("/queue/vote", s.handleVote)
	mux.HandleFunc("/queue/clear", s.handleClear)
	mux.HandleFunc("/queue/skip", s.handleSkip)
	mux.HandleFunc("/history", s.handleHistory)
	mux.HandleFunc("/library", s.handleLibrary)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", s.handleWS)

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "jukebox",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/healthz" && !strings.HasPrefix(p, "/ws")
		}),
	)
	s.handler = recoveryMiddleware(s.logger, rateLimitMiddleware(s.rateRPS, s.rateBurst, metricsMiddleware(corsMiddleware(s.allowedOrigins, traced))))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := &wsClient{
		hub:  s.wsHub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	s.wsHub.register <- client
	go client.writePump()
	go client.readPump()
}

// broadcastQueue pushes a fresh queue snapshot to every websocket client.
// Snapshots are rendered for an anonymous viewer, so hasVoted is always
// false in the feed.
func (s *Server) broadcastQueue(entries []domain.QueueEntry) {
	if entries == nil {
		entries = []domain.QueueEntry{}
	}
	s.wsHub.BroadcastQueue(entries)
}

// Close disconnects all websocket clients.
func (s *Server) Close() {
	if s.wsHub != nil {
		s.wsHub.Close()
	}
}
