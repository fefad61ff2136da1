// Package api serves the JSON HTTP interface to the teleoperation engine.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/banshee-data/rov.teleop/internal/db"
	"github.com/banshee-data/rov.teleop/internal/input"
	"github.com/banshee-data/rov.teleop/internal/monitoring"
	"github.com/banshee-data/rov.teleop/internal/serialmux"
	"github.com/banshee-data/rov.teleop/internal/teleop"
	"github.com/banshee-data/rov.teleop/internal/version"
)

// maxSampleBytes bounds POST /api/samples bodies; a sample is a few hundred bytes.
const maxSampleBytes = 64 << 10

// Engine is the part of the teleop engine the API drives.
type Engine interface {
	Process(input.RawSample) (teleop.Allocation, error)
	Snapshot() teleop.Snapshot
}

// EventSource reads the actuator event log.
type EventSource interface {
	RecentEvents(limit int) ([]db.Event, error)
}

type Server struct {
	board  serialmux.SerialMuxInterface
	engine Engine
	events EventSource
}

// NewServer builds the HTTP API. events may be nil when the event log is
// disabled, in which case /api/events answers 503.
func NewServer(board serialmux.SerialMuxInterface, engine Engine, events EventSource) *Server {
	return &Server{board: board, engine: engine, events: events}
}

// ServeMux routes the API. Requests with the wrong method get 405 from the
// mux itself.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/state", s.showState)
	mux.HandleFunc("POST /api/samples", s.postSample)
	mux.HandleFunc("GET /api/events", s.listEvents)
	mux.HandleFunc("GET /api/version", s.showVersion)
	mux.HandleFunc("POST /api/command", s.sendCommand)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		monitoring.Logf("[api] failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) showState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

// postSample feeds one raw sample through the engine, exactly as a UDP
// datagram would be, and answers with the thrust command computed for it.
func (s *Server) postSample(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSampleBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "Sample too large")
		return
	}

	var a teleop.Allocation
	sample, err := input.ParseRawSample(body)
	if err == nil {
		a, err = s.engine.Process(sample)
	}
	switch {
	case errors.Is(err, input.ErrMalformedSample):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, a.Command)
	}
}

// parseLimit reads the optional ?limit= parameter. ok is false when it is
// present but not a positive integer.
func parseLimit(r *http.Request) (limit int, ok bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return db.DefaultEventLimit, true
	}
	n, err := strconv.Atoi(raw)
	return n, err == nil && n > 0
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, "Event log disabled")
		return
	}
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid 'limit' parameter; must be a positive integer")
		return
	}
	events, err := s.events.RecentEvents(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve events: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Current())
}

// sendCommand writes a raw protocol line to the controller board. Thrust
// written this way is overwritten by the next periodic resend.
func (s *Server) sendCommand(w http.ResponseWriter, r *http.Request) {
	command := strings.TrimSpace(r.FormValue("command"))
	if command == "" {
		http.Error(w, "Missing command", http.StatusBadRequest)
		return
	}
	if err := s.board.SendCommand(command); err != nil {
		http.Error(w, "Failed to send command", http.StatusInternalServerError)
		return
	}
	io.WriteString(w, "Command sent successfully")
}
