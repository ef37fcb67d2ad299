package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dhrumilbhut/codevoice/internal/speech"
)

// TranscribeRequest carries base64-encoded audio for speech-to-text.
type TranscribeRequest struct {
	Audio  string `json:"audio"`
	Format string `json:"format"`
}

// TranscribeResponse is the recognized text.
type TranscribeResponse struct {
	Text string `json:"text"`
}

// HandleTranscribe handles POST /api/transcribe. It only converts audio to
// text; clients then submit the transcript to /api/ask like any typed
// request.
func (h *Handler) HandleTranscribe(w http.ResponseWriter, r *http.Request) {
	if h.transcriber == nil {
		Error(w, http.StatusNotFound, "speech input is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req TranscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Audio) == "" {
		Error(w, http.StatusBadRequest, "audio is required")
		return
	}

	audio, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		Error(w, http.StatusBadRequest, "audio must be base64 encoded")
		return
	}

	text, err := h.transcriber.Transcribe(r.Context(), audio, req.Format)
	if err != nil {
		if errors.Is(err, speech.ErrNoInput) {
			Error(w, http.StatusUnprocessableEntity, "no speech detected in audio")
			return
		}
		slog.Error("Transcription failed", "error", err)
		Error(w, http.StatusBadGateway, "transcription service unavailable")
		return
	}

	JSON(w, http.StatusOK, TranscribeResponse{Text: text})
}
