package proxy

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Target reports where the live browser accepts DevTools connections
type Target interface {
	ConnectURL() string
}

// Server relays a DevTools websocket between a client and the live browser
type Server struct {
	target      Target
	dialTimeout time.Duration
}

// NewServer creates a debug proxy for target
func NewServer(target Target) *Server {
	return &Server{
		target:      target,
		dialTimeout: 10 * time.Second,
	}
}

// HandleDebugConnection handles GET /v1/session/ws
func (s *Server) HandleDebugConnection(w http.ResponseWriter, r *http.Request) {
	// Local browsers expose no DevTools endpoint; only containers do
	chromeURL := s.target.ConnectURL()
	if chromeURL == "" {
		http.Error(w, "No debuggable browser session", http.StatusNotFound)
		return
	}

	// Dial Chrome first so a dead browser is reported as plain HTTP
	ctx, cancel := context.WithTimeout(r.Context(), s.dialTimeout)
	defer cancel()

	chromeConn, _, err := websocket.DefaultDialer.DialContext(ctx, chromeURL, nil)
	if err != nil {
		log.Printf("❌ Failed to connect to Chrome at %s: %v", chromeURL, err)
		http.Error(w, fmt.Sprintf("Error connecting to browser: %v", err), http.StatusBadGateway)
		return
	}
	defer chromeConn.Close()

	clientConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️ Failed to upgrade connection: %v", err)
		return
	}
	defer clientConn.Close()

	log.Printf("🔌 Debug client connected to %s", chromeURL)

	// Bidirectional proxy
	errChan := make(chan error, 2)

	// Client → Chrome
	go func() {
		errChan <- proxyMessages(clientConn, chromeConn, "client→chrome")
	}()

	// Chrome → Client
	go func() {
		errChan <- proxyMessages(chromeConn, clientConn, "chrome→client")
	}()

	// Wait for either direction to close
	err = <-errChan
	if err != nil && err != io.EOF && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		log.Printf("⚠️ Debug proxy error: %v", err)
	}

	log.Printf("🔌 Debug client disconnected")
}

func proxyMessages(src, dst *websocket.Conn, direction string) error {
	for {
		messageType, message, err := src.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error (%s): %v", direction, err)
			}
			return err
		}

		if err := dst.WriteMessage(messageType, message); err != nil {
			log.Printf("Failed to write message (%s): %v", direction, err)
			return err
		}
	}
}
