package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"benchsite/internal/bench"
	"benchsite/internal/chart"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPongWait     = 60 * time.Second
)

// wsRequest is sent by the page when the visitor switches mode.
type wsRequest struct {
	Mode string `json:"mode"`
}

// wsUpdate carries a freshly computed view and its rendered SVG.
type wsUpdate struct {
	Mode  bench.Mode  `json:"mode"`
	View  *chart.View `json:"view,omitempty"`
	SVG   string      `json:"svg,omitempty"`
	Error string      `json:"error,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes and guards mode
	mode bench.Mode
}

func (c *wsClient) send(u wsUpdate) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsClient) ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
}

func (c *wsClient) setMode(m bench.Mode) {
	c.mu.Lock()
	c.mode = m
	c.mu.Unlock()
}

func (c *wsClient) currentMode() bench.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(time.Second))
	c.conn.Close()
}

// update renders the view for mode as a websocket message.
func (s *Server) update(mode bench.Mode) wsUpdate {
	v, err := s.view(mode)
	if err != nil {
		return wsUpdate{Mode: mode, Error: err.Error()}
	}
	start := time.Now()
	var buf bytes.Buffer
	if err := chart.RenderSVG(&buf, v); err != nil {
		return wsUpdate{Mode: mode, Error: err.Error()}
	}
	s.metrics.ObserveRender(start)
	return wsUpdate{Mode: mode, View: &v, SVG: buf.String()}
}

// handleWebSocket answers each {"mode": ...} message with the view for that
// mode, and pushes a new view whenever the dataset is reloaded.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	client := &wsClient{conn: conn, mode: bench.Actual}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	s.clientsMu.Unlock()
	s.metrics.WSClients().Add(1)

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, client)
		s.clientsMu.Unlock()
		s.metrics.WSClients().Add(-1)
		conn.Close()
	}()

	// A client that stops answering pings hits the read deadline.
	conn.SetReadDeadline(time.Now().Add(s.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})
	done := make(chan struct{})
	defer close(done)
	go s.keepAlive(client, done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("websocket closed")
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(data, &req); err != nil {
			if err := client.send(wsUpdate{Error: "malformed request"}); err != nil {
				return
			}
			continue
		}
		mode, err := bench.ParseMode(req.Mode)
		if err != nil {
			if err := client.send(wsUpdate{Error: err.Error()}); err != nil {
				return
			}
			continue
		}

		client.setMode(mode)
		if err := client.send(s.update(mode)); err != nil {
			log.Debug().Err(err).Msg("websocket write failed")
			return
		}
	}
}

// keepAlive pings client until done is closed or a ping cannot be written.
func (s *Server) keepAlive(client *wsClient, done <-chan struct{}) {
	ticker := time.NewTicker(s.pongWait * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := client.ping(); err != nil {
				log.Debug().Err(err).Msg("websocket ping failed")
				return
			}
		}
	}
}

// broadcastViews sends every connected client the view for its mode.
func (s *Server) broadcastViews() {
	s.clientsMu.Lock()
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.Unlock()

	for _, c := range clients {
		if err := c.send(s.update(c.currentMode())); err != nil {
			log.Debug().Err(err).Msg("websocket broadcast failed")
		}
	}
}
