// Package watch implements algoc's `watch` subcommand: poll a source
// file for changes, recompile on each change, and broadcast the
// resulting diagnostics (or success) to any connected websocket client
// — the same connection/broadcast shape the teacher used for its own
// websocket server, repurposed here as a live compile-diagnostics feed
// instead of a security-testing transport.
package watch

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event is one compile outcome pushed to every connected client.
type Event struct {
	File string `json:"file"`
	OK   bool   `json:"ok"`
	Text string `json:"text"` // diagnostic text, or "compiled" on success
}

// Server broadcasts Events over websocket while Watch polls a file.
type Server struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[*websocket.Conn]bool
}

func NewServer() *Server {
	return &Server{
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		clients:  make(map[*websocket.Conn]bool),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("watch: upgrade failed: %v", err)
		return
	}
	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()
}

func (s *Server) Broadcast(ev Event) {
	s.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	for _, c := range conns {
		if err := c.WriteJSON(ev); err != nil {
			s.mu.Lock()
			delete(s.clients, c)
			s.mu.Unlock()
			c.Close()
		}
	}
}

// Watch polls path every interval and invokes compile on each observed
// content change, broadcasting the outcome. It blocks until stop is
// closed.
func Watch(path string, interval time.Duration, compile func(source []byte) error, srv *Server, stop <-chan struct{}) error {
	var lastModTime time.Time
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return nil
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("watch: stat %s: %w", path, err)
			}
			if !info.ModTime().After(lastModTime) {
				continue
			}
			lastModTime = info.ModTime()

			source, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("watch: read %s: %w", path, err)
			}
			if err := compile(source); err != nil {
				srv.Broadcast(Event{File: path, OK: false, Text: err.Error()})
			} else {
				srv.Broadcast(Event{File: path, OK: true, Text: "compiled"})
			}
		}
	}
}
