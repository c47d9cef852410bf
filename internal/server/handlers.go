package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/audiolibrelab/tapedeck/internal/audio"
	"github.com/audiolibrelab/tapedeck/internal/service"
	"github.com/audiolibrelab/tapedeck/internal/tape"
)

// StatusResponse represents the JSON response for the status endpoint
type StatusResponse struct {
	service.Snapshot
	Backend string `json:"backend"`
	Source  string `json:"source"`
}

// RecordingsResponse lists the session's recordings
type RecordingsResponse struct {
	Recordings []RecordingInfo `json:"recordings"`
	TotalCount int             `json:"total_count"`
	Selected   string          `json:"selected,omitempty"`
}

// RecordingInfo adds display fields to a recording
type RecordingInfo struct {
	tape.Recording
	SizeHuman     string `json:"size_human"`
	DurationHuman string `json:"duration_human"`
	StreamURL     string `json:"stream_url"`
	IsSelected    bool   `json:"is_selected"`
}

// TargetRequest names a recording; empty means the selection
type TargetRequest struct {
	ID string `json:"id"`
}

// EditBeginRequest opens a field for editing
type EditBeginRequest struct {
	ID    string `json:"id"`
	Field string `json:"field"`
}

// EditInputRequest carries the current contents of the edit control
type EditInputRequest struct {
	Value string `json:"value"`
}

// handleStatus returns the current deck snapshot
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, StatusResponse{
		Snapshot: s.service.Snapshot(),
		Backend:  string(audio.DetermineBackend(s.cfg)),
		Source:   s.cfg.Audio.Source,
	})
}

func (s *Server) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	if err := s.service.StartRecording(r.Context()); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, audio.ErrDeviceUnavailable) {
			status = http.StatusServiceUnavailable
		}
		s.sendErrorResponse(w, status,
			fmt.Sprintf("Failed to start recording: %v", err),
			"operation", "start_recording")
		return
	}
	s.sendSuccess(w, "Recording started")
}

// handleStopRecording stops the current capture and stores it
func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	if err := s.service.StopRecording(); err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to stop recording: %v", err),
			"operation", "stop_recording")
		return
	}
	s.sendSuccess(w, "Recording stopped")
}

func (s *Server) handleToggleRecording(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ToggleRecording(r.Context()); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, audio.ErrDeviceUnavailable) {
			status = http.StatusServiceUnavailable
		}
		s.sendErrorResponse(w, status,
			fmt.Sprintf("Failed to toggle recording: %v", err),
			"operation", "toggle_recording")
		return
	}
	s.sendSuccess(w, "Recording toggled")
}

// handleRecordings lists recordings in insertion order
func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request) {
	snap := s.service.Snapshot()

	infos := make([]RecordingInfo, 0, len(snap.Recordings))
	for _, rec := range snap.Recordings {
		infos = append(infos, RecordingInfo{
			Recording:     rec,
			SizeHuman:     formatBytes(int64(rec.Size)),
			DurationHuman: audio.FormatElapsed(int(rec.Duration / time.Second)),
			StreamURL:     "/api/handles/" + rec.Handle,
			IsSelected:    rec.ID == snap.Selected,
		})
	}

	s.sendJSON(w, RecordingsResponse{
		Recordings: infos,
		TotalCount: len(infos),
		Selected:   snap.Selected,
	})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.service.Select(id); err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to select recording: %v", err),
			"operation", "select", "id", id)
		return
	}
	s.sendSuccess(w, "Selection updated")
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTarget(w, r)
	if !ok {
		return
	}
	if err := s.service.Play(r.Context(), req.ID); err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to play: %v", err),
			"operation", "play")
		return
	}
	s.sendSuccess(w, "Playback requested")
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.service.Pause()
	s.sendSuccess(w, "Playback paused")
}

func (s *Server) handleTogglePlay(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTarget(w, r)
	if !ok {
		return
	}
	if err := s.service.TogglePlay(r.Context(), req.ID); err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to toggle playback: %v", err),
			"operation", "toggle_play")
		return
	}
	s.sendSuccess(w, "Playback toggled")
}

func (s *Server) handleRewind(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTarget(w, r)
	if !ok {
		return
	}
	if err := s.service.Rewind(r.Context(), req.ID); err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to rewind: %v", err),
			"operation", "rewind")
		return
	}
	s.sendSuccess(w, "Rewound")
}

// handleRequestDelete opens the confirmation prompt; nothing is removed yet
func (s *Server) handleRequestDelete(w http.ResponseWriter, r *http.Request) {
	s.service.RequestDelete(chi.URLParam(r, "id"))
	s.sendJSON(w, map[string]interface{}{
		"success": true,
		"message": "Confirm to delete",
		"pending": s.service.Snapshot().PendingDelete,
	})
}

func (s *Server) handleConfirmDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ConfirmDelete(); err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to delete recording: %v", err),
			"operation", "confirm_delete")
		return
	}
	s.sendSuccess(w, "Recording deleted")
}

func (s *Server) handleCancelDelete(w http.ResponseWriter, r *http.Request) {
	s.service.CancelDelete()
	s.sendSuccess(w, "Deletion cancelled")
}

func (s *Server) handleBeginEdit(w http.ResponseWriter, r *http.Request) {
	var req EditBeginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Invalid JSON body", "operation", "begin_edit")
		return
	}
	field, err := tape.ParseField(req.Field)
	if err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, err.Error(), "operation", "begin_edit")
		return
	}

	value, err := s.service.BeginEdit(req.ID, field)
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to begin edit: %v", err),
			"operation", "begin_edit")
		return
	}
	s.sendJSON(w, map[string]interface{}{
		"success": true,
		"value":   value,
	})
}

func (s *Server) handleEditInput(w http.ResponseWriter, r *http.Request) {
	var req EditInputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Invalid JSON body", "operation", "edit_input")
		return
	}
	if err := s.service.EditInput(req.Value); err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to apply edit: %v", err),
			"operation", "edit_input")
		return
	}
	s.sendSuccess(w, "Edit applied")
}

func (s *Server) handleCommitEdit(w http.ResponseWriter, r *http.Request) {
	s.service.CommitEdit()
	s.sendSuccess(w, "Edit committed")
}

func (s *Server) handleCancelEdit(w http.ResponseWriter, r *http.Request) {
	s.service.CancelEdit()
	s.sendSuccess(w, "Edit cancelled")
}

// handleHandle streams the audio behind a playback handle. Released handles
// answer 410 Gone.
func (s *Server) handleHandle(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	data, err := s.service.Resolve(token)
	if err != nil {
		status := http.StatusNotFound
		if errors.Is(err, tape.ErrHandleRevoked) {
			status = http.StatusGone
		}
		s.sendErrorResponse(w, status, err.Error(), "operation", "resolve_handle", "token", token)
		return
	}

	w.Header().Set("Content-Type", s.contentType())
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(data))
}

func (s *Server) contentType() string {
	switch s.cfg.Audio.Container {
	case "webm":
		return "audio/webm"
	case "ogg":
		return "audio/ogg"
	}
	if ct := mime.TypeByExtension("." + s.cfg.Audio.Container); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// decodeTarget reads an optional {"id": ...} body
func (s *Server) decodeTarget(w http.ResponseWriter, r *http.Request) (TargetRequest, bool) {
	var req TargetRequest
	if r.Body == nil {
		return req, true
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.sendErrorResponse(w, http.StatusBadRequest, "Invalid JSON body", "path", r.URL.Path)
		return req, false
	}
	return req, true
}

// formatBytes formats bytes in human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
