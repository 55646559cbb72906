package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/raaihank/incident-sentinel/internal/incident"
	"github.com/raaihank/incident-sentinel/internal/status"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// LeakResponse is the body of a publish rejected by the leak gate
type LeakResponse struct {
	Error string   `json:"error"`
	Leaks []string `json:"leaks"`
}

type draftRequest struct {
	IncidentID string `json:"incident_id"`
	Tone       string `json:"tone"`
}

type publishRequest struct {
	Draft *string `json:"draft"`
}

type publishResponse struct {
	OK bool   `json:"ok"`
	TS string `json:"ts"`
}

type redactRequest struct {
	Text *string `json:"text"`
}

type redactResponse struct {
	RedactedText string   `json:"redacted_text"`
	Leaks        []string `json:"leaks"`
}

type healthResponse struct {
	OK        bool   `json:"ok"`
	Status    string `json:"status"`
	Version   string `json:"version,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		OK:        true,
		Status:    "healthy",
		Version:   s.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.IncidentID) == "" {
		writeError(w, http.StatusBadRequest, incident.ErrIncidentIDRequired.Error())
		return
	}

	result, err := s.service.Draft(r.Context(), req.IncidentID, req.Tone)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, incident.ErrIncidentIDRequired):
		writeError(w, http.StatusBadRequest, incident.ErrIncidentIDRequired.Error())
	case errors.Is(err, incident.ErrInvalidIncidentID):
		writeError(w, http.StatusBadRequest, incident.ErrInvalidIncidentID.Error())
	case errors.Is(err, incident.ErrGeneratorUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.WithRequestID(getRequestID(r.Context())).Error("Failed to generate draft",
			zap.String("incident_id", req.IncidentID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Failed to generate draft")
	}
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Draft == nil {
		writeError(w, http.StatusBadRequest, incident.ErrDraftRequired.Error())
		return
	}

	update, err := s.service.Publish(r.Context(), *req.Draft)
	var leakErr *incident.LeakError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, publishResponse{OK: true, TS: update.Timestamp})
	case errors.As(err, &leakErr):
		writeJSON(w, http.StatusBadRequest, LeakResponse{
			Error: "Cannot publish: sensitive information detected",
			Leaks: leakErr.Leaks,
		})
	case errors.Is(err, incident.ErrDraftRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.WithRequestID(getRequestID(r.Context())).Error("Failed to publish update", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to publish update")
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	updates, err := s.service.Updates(r.Context())
	if err != nil {
		s.logger.WithRequestID(getRequestID(r.Context())).Error("Failed to list updates", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load status updates")
		return
	}
	if updates == nil {
		updates = []status.Update{}
	}
	writeJSON(w, http.StatusOK, updates)
}

func (s *Server) handleRedactLocal(w http.ResponseWriter, r *http.Request) {
	var req redactRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Text == nil {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	result := s.service.Validate(*req.Text)
	writeJSON(w, http.StatusOK, redactResponse{
		RedactedText: result.RedactedText,
		Leaks:        result.Leaks,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
