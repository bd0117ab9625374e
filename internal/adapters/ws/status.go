// Package ws serves the sync status over HTTP and pushes changes to
// WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/bft-labs/wardsync/internal/domain"
	"github.com/bft-labs/wardsync/pkg/log"
)

const writeTimeout = 5 * time.Second

// Snapshot is the status document served on /status and pushed on /ws.
type Snapshot struct {
	State       string                `json:"state"`
	Online      bool                  `json:"online"`
	Syncing     bool                  `json:"syncing"`
	QueueLength int                   `json:"queue_length"`
	DeadLetters int                   `json:"dead_letters"`
	LastRun     *domain.SyncRunResult `json:"last_run,omitempty"`
	LastRunAt   *time.Time            `json:"last_run_at,omitempty"`
	LastError   string                `json:"last_error,omitempty"`
	Time        time.Time             `json:"time"`
}

// SnapshotFunc builds the current snapshot.
type SnapshotFunc func(ctx context.Context) Snapshot

// StatusServer is a read-only view of the sync status.
type StatusServer struct {
	addr     string
	snapshot SnapshotFunc
	logger   log.Logger

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]struct{}

	notify chan struct{}
}

// NewStatusServer creates a server for addr.
func NewStatusServer(addr string, snapshot SnapshotFunc, logger log.Logger) *StatusServer {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &StatusServer{
		addr:     addr,
		snapshot: snapshot,
		logger:   logger,
		clients:  make(map[*websocket.Conn]struct{}),
		notify:   make(chan struct{}, 1),
	}
}

// Handler returns the HTTP routes.
func (s *StatusServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	return mux
}

// Notify schedules a push of a fresh snapshot to all clients. Bursts of
// calls coalesce into one push.
func (s *StatusServer) Notify() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (s *StatusServer) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Run listens on the configured address and serves until ctx is canceled.
func (s *StatusServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled.
func (s *StatusServer) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.broadcastLoop(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", log.String("addr", ln.Addr().String()))
		errCh <- server.Serve(ln)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	s.closeClients()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}
	wg.Wait()

	if errors.Is(serveErr, http.ErrServerClosed) {
		return nil
	}
	return serveErr
}

func (s *StatusServer) broadcastLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.notify:
			data, err := json.Marshal(s.snapshot(ctx))
			if err != nil {
				s.logger.Warn("marshal status", log.Err(err))
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			for _, conn := range clients {
				wctx, cancel := context.WithTimeout(ctx, writeTimeout)
				err := conn.Write(wctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					s.logger.Debug("status push failed", log.Err(err))
					s.removeClient(conn)
				}
			}
		}
	}
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.snapshot(r.Context()))
}

func (s *StatusServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", log.Err(err))
		return
	}

	data, err := json.Marshal(s.snapshot(r.Context()))
	if err == nil {
		ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
		err = conn.Write(ctx, websocket.MessageText, data)
		cancel()
	}
	if err != nil {
		_ = conn.Close(websocket.StatusInternalError, "initial snapshot failed")
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = struct{}{}
	s.clientsMu.Unlock()

	// Clients never send; reading only detects disconnects.
	defer s.removeClient(conn)
	for {
		if _, _, err := conn.Read(r.Context()); err != nil {
			return
		}
	}
}

func (s *StatusServer) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	_, ok := s.clients[conn]
	delete(s.clients, conn)
	s.clientsMu.Unlock()

	if ok {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
}

// closeClients detaches every client first; the close handshake can take
// up to the library's timeout per client and must not hold clientsMu.
func (s *StatusServer) closeClients() {
	s.clientsMu.Lock()
	clients := make([]*websocket.Conn, 0, len(s.clients))
	for conn := range s.clients {
		clients = append(clients, conn)
	}
	clear(s.clients)
	s.clientsMu.Unlock()

	for _, conn := range clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}
