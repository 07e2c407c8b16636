// Package web provides an HTTP status server for the tally-clock daemon.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sweeney/tally-clock/internal/buzzer"
	"github.com/sweeney/tally-clock/internal/logic"
	"github.com/sweeney/tally-clock/internal/status"
)

// Trigger starts a manual buzz.
type Trigger interface {
	FeelNow(now time.Time) buzzer.Result
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	trigger    Trigger
	now        func() time.Time
}

// New creates a Server that reads state from the given tracker and sends
// manual buzz requests to trigger.
func New(addr string, tracker *status.Tracker, trigger Trigger) *Server {
	s := &Server{tracker: tracker, trigger: trigger, now: time.Now}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/pattern.json", s.handlePattern)
	mux.HandleFunc("/buzz", s.handleBuzz)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// PatternJSON describes the pattern the clock would play for a time.
type PatternJSON struct {
	Time        string      `json:"time"`
	Description string      `json:"description"`
	Pulses      int         `json:"pulses"`
	DurationMs  int64       `json:"duration_ms"`
	Events      []EventJSON `json:"events"`
}

// EventJSON is one pattern step. Type is the pulse or gap kind.
type EventJSON struct {
	Kind       string `json:"kind"`
	Type       string `json:"type"`
	DurationMs int64  `json:"duration_ms"`
}

// BuzzResponse is returned by POST /buzz.
type BuzzResponse struct {
	Result string `json:"result"`
}

// handlePattern previews the pattern for ?hour=&minute= under the current
// settings. Missing values default to the current time.
func (s *Server) handlePattern(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	now := s.now()
	hour, err := queryInt(r, "hour", now.Hour(), 0, 23)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	minute, err := queryInt(r, "minute", now.Minute(), 0, 59)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	settings := s.tracker.Snapshot().Settings
	p := logic.BuildPattern(hour, minute, settings.Clock, settings.Timing)
	pj := PatternJSON{
		Time:        fmt.Sprintf("%02d:%02d", hour, minute),
		Description: logic.DescribePattern(hour, minute, settings.Clock),
		Pulses:      p.PulseCount(),
		DurationMs:  p.TotalDuration().Milliseconds(),
		Events:      make([]EventJSON, 0, len(p)),
	}
	for _, ev := range p {
		ej := EventJSON{Kind: string(ev.Kind), DurationMs: ev.Duration.Milliseconds()}
		if ev.Kind == logic.EventPulse {
			ej.Type = string(ev.Pulse)
		} else {
			ej.Type = string(ev.Gap)
		}
		pj.Events = append(pj.Events, ej)
	}

	writeJSON(w, http.StatusOK, pj)
}

func (s *Server) handleBuzz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	res := s.trigger.FeelNow(s.now())
	code := http.StatusAccepted
	switch res {
	case buzzer.ResultBusy:
		code = http.StatusConflict
	case buzzer.ResultLimited:
		code = http.StatusTooManyRequests
	}
	writeJSON(w, code, BuzzResponse{Result: string(res)})
}

func queryInt(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: not a number: %q", name, raw)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be in [%d,%d], got %d", name, lo, hi, v)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	data, _ := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}
