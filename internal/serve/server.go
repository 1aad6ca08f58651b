// Package serve exposes the shared sprite sheet over HTTP: geometry as JSON,
// single tiles as PNG and workspace events as a server-sent event stream.
package serve

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Dicklesworthstone/thumbgrid/internal/atlas"
	"github.com/Dicklesworthstone/thumbgrid/internal/events"
)

const requestIDHeader = "X-Request-Id"

type ctxKey string

const requestIDKey ctxKey = "request_id"

// Config configures a Server.
type Config struct {
	Host string
	Port int
	// Loader and Source name the sprite sheet to serve.
	Loader *atlas.Loader
	Source string
	// EventBus feeds /events; nil disables the stream.
	EventBus *events.EventBus
}

// Server is the tile HTTP server.
type Server struct {
	cfg    Config
	router chi.Router

	sseMu      sync.RWMutex
	sseClients map[chan events.BusEvent]struct{}
}

// New creates a server. The atlas load starts on the first request that
// needs it.
func New(cfg Config) (*Server, error) {
	if cfg.Loader == nil {
		return nil, fmt.Errorf("serve: atlas loader is required")
	}
	if cfg.Source == "" {
		return nil, fmt.Errorf("serve: atlas source is required")
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	s := &Server{cfg: cfg, sseClients: make(map[chan events.BusEvent]struct{})}
	s.router = s.buildRouter()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Addr returns the listen address.
func (s *Server) Addr() string { return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port) }

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(requestIDMiddleware)
	r.Use(recovererMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/events", s.handleEventStream)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/atlas", s.handleAtlas)
		r.Get("/tiles/{file}", s.handleTile)
	})
	return r
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.EventBus != nil {
		unsubscribe := s.cfg.EventBus.SubscribeAll(s.broadcastEvent)
		defer unsubscribe()
	}

	srv := &http.Server{
		Addr:         s.Addr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // /events is long lived
		IdleTimeout:  60 * time.Second,
	}
	slog.Default().Info("starting tile server", "addr", "http://"+s.Addr(), "atlas", s.cfg.Source)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Default().Info("shutting down tile server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := sanitizeRequestID(r.Header.Get(requestIDHeader))
		if reqID == "" {
			reqID = generateRequestID()
		}
		w.Header().Set(requestIDHeader, reqID)
		ctx := context.WithValue(r.Context(), requestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func recovererMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Default().Error("panic recovered",
					"panic", rec,
					"request_id", requestIDFromContext(r.Context()),
					"stack", string(debug.Stack()),
				)
				writeError(w, r, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Default().Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start),
			"request_id", requestIDFromContext(r.Context()),
		)
	})
}

func sanitizeRequestID(id string) string {
	if len(id) > 64 {
		id = id[:64]
	}
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r == '-' || r == '_' || r == '.' || r == ':' {
			return r
		}
		return -1
	}, id)
}

func generateRequestID() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

func requestIDFromContext(ctx context.Context) string {
	val, _ := ctx.Value(requestIDKey).(string)
	return val
}

// APIError is the body of every error response.
type APIError struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Default().Warn("encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, APIError{Error: message, RequestID: requestIDFromContext(r.Context())})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := "pending"
	if sig := s.cfg.Loader.Current(); sig != nil {
		if _, err, resolved := sig.Result(); resolved {
			state = "ready"
			if err != nil {
				state = "failed"
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  "healthy",
		"atlas":   state,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if s.cfg.EventBus == nil {
		writeError(w, r, http.StatusServiceUnavailable, "event bus not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan events.BusEvent, 32)
	s.addClient(ch)
	defer s.removeClient(ch)

	fmt.Fprintf(w, "event: connected\ndata: {\"time\":%q}\n\n", time.Now().UTC().Format(time.RFC3339))
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.EventType(), data)
			flusher.Flush()
		}
	}
}

func (s *Server) addClient(ch chan events.BusEvent) {
	s.sseMu.Lock()
	defer s.sseMu.Unlock()
	s.sseClients[ch] = struct{}{}
}

func (s *Server) removeClient(ch chan events.BusEvent) {
	s.sseMu.Lock()
	defer s.sseMu.Unlock()
	delete(s.sseClients, ch)
}

// Clients returns the number of connected event stream clients.
func (s *Server) Clients() int {
	s.sseMu.RLock()
	defer s.sseMu.RUnlock()
	return len(s.sseClients)
}

func (s *Server) broadcastEvent(ev events.BusEvent) {
	s.sseMu.RLock()
	defer s.sseMu.RUnlock()
	for ch := range s.sseClients {
		select {
		case ch <- ev:
		default:
			// slow client
		}
	}
}
