package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jpalmerr/fanfetch/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	// Must be <= shutdownTimeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second
)

// DispatchFunc runs one dispatch and returns a JSON-encodable summary of it.
type DispatchFunc func(ctx context.Context) (any, error)

// Server handles HTTP requests for the fanfetch API.
//
// Server provides three endpoints:
//   - POST /api/dispatch: Runs one dispatch and returns its report
//   - GET /api/outcomes: Returns the latest outcome per descriptor as JSON
//   - GET /api/sse: Server-Sent Events stream of outcomes as they are collected
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store    store.Store
	port     int
	dispatch DispatchFunc
	logger   *slog.Logger

	// dispatchMu admits one dispatch at a time; concurrent triggers get 409.
	dispatchMu sync.Mutex
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - st: Store implementation for outcome records
//   - port: TCP port to listen on
//   - dispatch: Function run by POST /api/dispatch (may be nil, which disables the route)
//   - logger: Logger for server events
//
// The server is not started until [Server.Run] is called.
func NewServer(st store.Store, port int, dispatch DispatchFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:    st,
		port:     port,
		dispatch: dispatch,
		logger:   logger,
	}
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/outcomes", s.handleOutcomes)
	mux.HandleFunc("/api/sse", s.handleSSE)
	if s.dispatch != nil {
		mux.HandleFunc("/api/dispatch", s.handleDispatch)
	}
	return mux
}

// Run serves HTTP requests until ctx is cancelled.
//
// The listener is bound before Run starts serving, so a port that is already
// in use is reported immediately. On cancellation Run shuts the server down
// gracefully with a 5-second timeout and returns nil.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	httpServer := &http.Server{
		Handler: s.Handler(),
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(ln)
	}()

	s.logger.Info("http server listening", "addr", ln.Addr().String())

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("http server shutdown error", "error", err)
	}
	<-serveErr
	return nil
}

// LockDispatch waits for any running POST /api/dispatch to finish and
// then holds the dispatch slot until unlock is called. Triggers arriving in
// between get 409, as if another HTTP dispatch were running.
func (s *Server) LockDispatch() (unlock func()) {
	s.dispatchMu.Lock()
	return s.dispatchMu.Unlock
}

// handleOutcomes returns the latest outcomes as JSON.
func (s *Server) handleOutcomes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	records := s.store.GetAll()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(records); err != nil {
		s.logger.Error("failed to encode outcomes response", "error", err)
	}
}

// handleDispatch runs one dispatch on the request's context and writes its
// summary. Outcomes reach the store and SSE subscribers while it drains.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.dispatchMu.TryLock() {
		http.Error(w, "Dispatch already in progress", http.StatusConflict)
		return
	}
	defer s.dispatchMu.Unlock()

	summary, err := s.dispatch(r.Context())
	if err != nil {
		s.logger.Error("dispatch failed", "error", err)
		http.Error(w, "Dispatch failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(summary); err != nil {
		s.logger.Error("failed to encode dispatch response", "error", err)
	}
}

// handleSSE streams outcome records via Server-Sent Events.
//
// The handler uses write deadlines to prevent goroutine leaks when clients are
// slow or disconnected. Without deadlines, a blocked Fprintf call would prevent
// the handler from detecting context cancellation or channel closure.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// may not be supported by some ResponseWriter impls
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}

		// ResponseController.Flush respects the write deadline
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	// replay what is already known, then follow live outcomes
	for _, record := range s.store.GetAll() {
		data, err := json.Marshal(record)
		if err != nil {
			continue
		}
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	for {
		select {
		case record, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(record)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}
