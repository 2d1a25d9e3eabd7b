// Package feed serves market snapshots to browsers and scripts: the current
// snapshot as JSON over HTTP and every refresh over a websocket.
package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/net/netutil"

	"github.com/energymarket/marketclient/config"
	"github.com/energymarket/marketclient/libs/log"
	"github.com/energymarket/marketclient/libs/service"
	"github.com/energymarket/marketclient/market"
	"github.com/energymarket/marketclient/types"
)

const shutdownTimeout = 5 * time.Second

// View is the part of market.View the feed reads.
type View interface {
	Snapshot() market.Snapshot
	Subscribe() (<-chan market.Snapshot, func())
}

// Server is the feed HTTP server.
type Server struct {
	service.BaseService

	view   View
	cfg    *config.FeedConfig
	logger log.Logger

	upgrader websocket.Upgrader

	mtx      sync.Mutex
	listener net.Listener
	srv      *http.Server

	// closing is closed when the server begins to stop; websocket
	// handlers exit on it and are tracked by conns.
	closing chan struct{}
	conns   sync.WaitGroup
}

// NewServer returns a feed server for view.
func NewServer(view View, cfg *config.FeedConfig, logger log.Logger) *Server {
	s := &Server{
		view:    view,
		cfg:     cfg,
		logger:  logger.With("module", "feed"),
		closing: make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.BaseService = *service.NewBaseService(s.logger, "Feed", s)
	return s
}

// Handler returns the feed routes wrapped with panic recovery, request
// logging and, when origins are configured, CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/snapshot", s.snapshotHandler)
	mux.HandleFunc("/websocket", s.websocketHandler)

	var root http.Handler = mux
	if s.cfg.IsCorsEnabled() {
		root = cors.New(cors.Options{
			AllowedOrigins: s.cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodHead},
		}).Handler(mux)
	}
	return RecoverAndLogHandler(root, s.logger)
}

// OnStart listens on the configured address and serves in the background.
func (s *Server) OnStart(ctx context.Context) error {
	listener, err := Listen(s.cfg.ListenAddress, s.cfg.MaxOpenConnections)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mtx.Lock()
	s.listener = listener
	s.srv = srv
	s.mtx.Unlock()

	s.logger.Info("serving market feed", "addr", listener.Addr())
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("feed server stopped", "err", err)
		}
	}()
	return nil
}

// OnStop shuts the HTTP server down and waits for open websockets to close.
func (s *Server) OnStop() {
	s.mtx.Lock()
	close(s.closing)
	srv := s.srv
	s.mtx.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Error("feed shutdown", "err", err)
	}
	s.conns.Wait()
}

// trackConn registers a websocket handler unless the server is stopping.
func (s *Server) trackConn() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	select {
	case <-s.closing:
		return false
	default:
		s.conns.Add(1)
		return true
	}
}

// Addr returns the address the server listens on, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.CORSAllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	// same origin
	return strings.HasSuffix(strings.ToLower(origin), "://"+strings.ToLower(r.Host))
}

type snapshotResponse struct {
	Status     types.MarketStatus `json:"status"`
	Offers     []types.Offer      `json:"offers"`
	UpdatedAt  time.Time          `json:"updated_at"`
	Generation uint64             `json:"generation"`
	Sort       string             `json:"sort"`
}

func newSnapshotResponse(snap market.Snapshot, st market.SortState) snapshotResponse {
	return snapshotResponse{
		Status:     snap.Status,
		Offers:     snap.Sorted(st),
		UpdatedAt:  snap.UpdatedAt,
		Generation: snap.Generation,
		Sort:       fmt.Sprintf("%s %s", st.Key, st.Direction),
	}
}

// parseSort reads the sort and order query parameters.
func parseSort(r *http.Request) (market.SortState, error) {
	st := market.DefaultSortState()
	q := r.URL.Query()
	if s := q.Get("sort"); s != "" {
		key, err := market.ParseSortKey(s)
		if err != nil {
			return st, err
		}
		st.Key = key
	}
	switch strings.ToLower(q.Get("order")) {
	case "", "asc":
	case "desc":
		st.Direction = market.Descending
	default:
		return st, fmt.Errorf("unknown order %q (want asc or desc)", q.Get("order"))
	}
	return st, nil
}

func (s *Server) snapshotHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	st, err := parseSort(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, newSnapshotResponse(s.view.Snapshot(), st))
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	bz, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		panic(err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(bz)
}

//-----------------------------------------------------------------------------

// Listen starts a listener on addr, which may carry a tcp:// or unix://
// prefix. maxOpenConnections of zero means unlimited.
func Listen(addr string, maxOpenConnections int) (net.Listener, error) {
	proto, host := "tcp", addr
	if parts := strings.SplitN(addr, "://", 2); len(parts) == 2 {
		proto, host = parts[0], parts[1]
	}
	listener, err := net.Listen(proto, host)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %v: %w", addr, err)
	}
	if maxOpenConnections > 0 {
		listener = netutil.LimitListener(listener, maxOpenConnections)
	}
	return listener, nil
}

// RecoverAndLogHandler wraps an HTTP handler, adding error logging. If the
// inner handler panics, the outer one recovers, logs and sends an HTTP 500.
func RecoverAndLogHandler(handler http.Handler, logger log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Wrap the ResponseWriter to remember the status
		rww := &responseWriterWrapper{-1, w}
		begin := time.Now()

		defer func() {
			if e := recover(); e != nil {
				logger.Error("panic in feed handler", "err", e, "stack", string(debug.Stack()))
				if rww.Status == -1 {
					writeJSON(rww, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				}
			}

			if rww.Status == -1 {
				rww.Status = 200
			}
			logger.Debug("served feed response",
				"method", r.Method, "url", r.URL,
				"status", rww.Status, "duration", time.Since(begin),
				"remoteAddr", r.RemoteAddr,
			)
		}()

		handler.ServeHTTP(rww, r)
	})
}

// Remember the status for logging
type responseWriterWrapper struct {
	Status int
	http.ResponseWriter
}

func (w *responseWriterWrapper) WriteHeader(status int) {
	w.Status = status
	w.ResponseWriter.WriteHeader(status)
}

// implements http.Hijacker
func (w *responseWriterWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return w.ResponseWriter.(http.Hijacker).Hijack()
}
