package feed

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/energymarket/marketclient/market"
)

const (
	writeWait = 10 * time.Second

	// Clients only send control frames.
	maxReadBytes = 512
)

// websocketHandler streams every published snapshot to the client, starting
// with the current one. The stream uses the sort given in the query.
func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	st, err := parseSort(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if !s.trackConn() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "shutting down"})
		return
	}
	defer s.conns.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied with an HTTP error.
		s.logger.Error("failed to upgrade connection", "err", err)
		return
	}
	defer conn.Close()

	logger := s.logger.With("remote", conn.RemoteAddr())
	logger.Debug("websocket subscriber connected")

	updates, unsubscribe := s.view.Subscribe()
	defer unsubscribe()

	readDone := make(chan struct{})
	go readRoutine(conn, readDone, s.cfg.PingInterval)

	if snap := s.view.Snapshot(); snap.Generation > 0 {
		if err := writeSnapshot(conn, snap, st); err != nil {
			logger.Debug("websocket write failed", "err", err)
			return
		}
	}

	ping := time.NewTicker(s.cfg.PingInterval)
	defer ping.Stop()

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				writeClose(conn, websocket.CloseGoingAway, "market view stopped")
				return
			}
			if err := writeSnapshot(conn, snap, st); err != nil {
				logger.Debug("websocket write failed", "err", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				logger.Debug("websocket ping failed", "err", err)
				return
			}
		case <-readDone:
			logger.Debug("websocket subscriber disconnected")
			return
		case <-s.closing:
			writeClose(conn, websocket.CloseGoingAway, "server shutting down")
			return
		}
	}
}

// readRoutine consumes control frames so pongs and close messages are
// processed. It closes done when the connection fails or the peer closes it.
func readRoutine(conn *websocket.Conn, done chan<- struct{}, pingInterval time.Duration) {
	defer close(done)

	conn.SetReadLimit(maxReadBytes)
	pongWait := 2*pingInterval + writeWait
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeSnapshot(conn *websocket.Conn, snap market.Snapshot, st market.SortState) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(newSnapshotResponse(snap, st))
}

func writeClose(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
