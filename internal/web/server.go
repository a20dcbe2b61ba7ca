// Package web serves the amperage-follower status page, its JSON twin and a
// health probe.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/sweeney/amperage-follower/internal/status"
)

// Server serves tracker snapshots over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
}

// New creates a Server listening on addr that reads state from tracker.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{tracker: tracker}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /index.html", s.handleIndex)
	mux.HandleFunc("GET /index.json", s.handleJSON)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Handler returns the root handler, including auth when enabled.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, s.tracker.Snapshot())
}

func (s *Server) handleJSON(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.tracker.Snapshot()))
}

// healthJSON is the /healthz body.
type healthJSON struct {
	OK            bool   `json:"ok"`
	Reason        string `json:"reason,omitempty"`
	MQTTConnected bool   `json:"mqtt_connected"`
}

// handleHealth answers 503 when measurements have stopped arriving.
// MQTT state is reported but does not fail the probe; the relays work offline.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.tracker.Snapshot()
	h := healthJSON{OK: !snap.Stale(), MQTTConnected: snap.MQTTConnected}
	code := http.StatusOK
	if !h.OK {
		h.Reason = "no recent measurement"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(h)
}
