package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/couchcryptid/geohazard-service/internal/alert"
	"github.com/couchcryptid/geohazard-service/internal/domain"
)

const (
	streamBuffer       = 64
	initialAlertLimit  = 20
	streamWriteWait    = 10 * time.Second
	streamMaxMessageSz = 4096
)

// Frames sent on /ws/alerts.
type (
	initialFrame struct {
		Type   string         `json:"type"`
		Alerts []domain.Alert `json:"alerts"`
	}
	alertFrame struct {
		Type string       `json:"type"`
		Data domain.Alert `json:"data"`
	}
	signalFrame struct {
		Type string `json:"type"`
	}
)

func newUpgrader(origins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originAllowed(origins),
	}
}

// originAllowed applies the CORS origin list to WebSocket upgrades, which
// browsers never preflight. Requests without an Origin header are not from
// a browser and pass.
func originAllowed(origins []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range origins {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// handleAlertStream sends the current active alerts, then every alert the
// hub publishes, plus a heartbeat when the stream is otherwise quiet.
func (s *Server) handleAlertStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Subscribe before reading the active set so nothing raised in between
	// is missed.
	sub := s.deps.Stream.Subscribe(streamBuffer)
	defer sub.Close()

	initial := s.deps.Alerts.Active(alert.Filter{Limit: initialAlertLimit})
	if initial == nil {
		initial = []domain.Alert{}
	}
	if err := writeFrame(conn, initialFrame{Type: "initial", Alerts: initial}); err != nil {
		return
	}
	s.logger.Debug("alert stream opened", "remote", r.RemoteAddr)

	pings := make(chan struct{}, 1)
	gone := make(chan struct{})
	go readPings(conn, pings, gone)

	heartbeat := time.NewTicker(s.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		var msg any
		select {
		case <-s.closing:
			conn.WriteControl(websocket.CloseMessage, //nolint:errcheck // closing anyway
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(streamWriteWait))
			return
		case <-gone:
			s.logger.Debug("alert stream closed", "remote", r.RemoteAddr, "dropped", sub.Dropped())
			return
		case a, ok := <-sub.Alerts():
			if !ok {
				return
			}
			msg = alertFrame{Type: "alert", Data: a}
		case <-pings:
			msg = signalFrame{Type: "pong"}
		case <-heartbeat.C:
			msg = signalFrame{Type: "heartbeat"}
		}
		if err := writeFrame(conn, msg); err != nil {
			s.logger.Debug("alert stream write failed", "error", err)
			return
		}
		heartbeat.Reset(s.cfg.HeartbeatInterval)
	}
}

// readPings owns the read side of conn. Clients may send either the bare
// text "ping" or {"type":"ping"}; anything else is ignored.
func readPings(conn *websocket.Conn, pings chan<- struct{}, gone chan<- struct{}) {
	defer close(gone)
	conn.SetReadLimit(streamMaxMessageSz)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if !isPing(data) {
			continue
		}
		select {
		case pings <- struct{}{}:
		default:
		}
	}
}

func isPing(data []byte) bool {
	if strings.TrimSpace(string(data)) == "ping" {
		return true
	}
	var msg struct {
		Type string `json:"type"`
	}
	return json.Unmarshal(data, &msg) == nil && msg.Type == "ping"
}

func writeFrame(conn *websocket.Conn, msg any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}
