package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"i4.energy/across/vibralarm/alarm"
	"i4.energy/across/vibralarm/relay"
)

// Messenger sends text messages through the modem.
type Messenger interface {
	SendSMS(ctx context.Context, to, text string) error
}

// StateReader exposes the alarm state.
type StateReader interface {
	State() alarm.State
	Dialling() string
}

// RelayReader exposes the relay outputs.
type RelayReader interface {
	Snapshot() relay.Snapshot
}

// Connection reports the modem link state.
type Connection interface {
	Connected() bool
}

// Status is the body of GET /status.
type Status struct {
	State     string         `json:"state"`
	Dialling  string         `json:"dialling,omitempty"`
	Connected bool           `json:"modem_connected"`
	Relays    relay.Snapshot `json:"relays"`
	Time      time.Time      `json:"time"`
}

// Server handles incoming HTTP requests for inspecting the controller and
// sending messages through the modem
type Server struct {
	Logger  *zap.SugaredLogger
	Modem   Messenger
	Machine StateReader
	Relays  RelayReader
	Link    Connection
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /sms", s.handleSMS)
	mux.ServeHTTP(w, r)
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	resp := ErrorResponse{Message: message}
	s.sendJSON(w, resp, statusCode)
}

func (s *Server) sendJSON(w http.ResponseWriter, body any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.Logger.Warnw("Failed to write response", "error", err)
	}
}

// handleStatus reports the alarm state, the relay outputs and the link.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.sendJSON(w, Status{
		State:     s.Machine.State().String(),
		Dialling:  s.Machine.Dialling(),
		Connected: s.Link.Connected(),
		Relays:    s.Relays.Snapshot(),
		Time:      time.Now().UTC(),
	}, http.StatusOK)
}

// handleSMS processes incoming HTTP POST requests to send SMS messages
func (s *Server) handleSMS(w http.ResponseWriter, r *http.Request) {
	type SMSRequest struct {
		To      string `json:"to"`
		Message string `json:"message"`
	}

	var req SMSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.To == "" || req.Message == "" {
		s.sendError(w, "both 'to' and 'message' fields are required", http.StatusBadRequest)
		return
	}

	if err := s.Modem.SendSMS(r.Context(), req.To, req.Message); err != nil {
		s.Logger.Errorw("Failed to send SMS", "error", err, "to", req.To)
		status := http.StatusInternalServerError
		if errors.Is(err, ErrNotConnected) {
			status = http.StatusServiceUnavailable
		}
		s.sendError(w, err.Error(), status)
		return
	}

	s.Logger.Infow("SMS sent successfully", "to", req.To, "message_length", len(req.Message))
	w.WriteHeader(http.StatusOK)
}
