package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"ai-speech-transcription-service/internal/models"
	"ai-speech-transcription-service/internal/schema"
	"ai-speech-transcription-service/internal/service/segment"
	"ai-speech-transcription-service/internal/service/stt"
	"ai-speech-transcription-service/internal/service/stt/whisper"
	"ai-speech-transcription-service/internal/service/transcript"
	"ai-speech-transcription-service/internal/storage"
	"ai-speech-transcription-service/internal/store"
)

const maxBodyBytes = 10 << 20

var errBadRequest = errors.New("bad request")

// transcriptService is the part of transcript.Service the handlers use.
type transcriptService interface {
	Create(ctx context.Context, req transcript.CreateRequest) (*models.Transcript, error)
	Get(ctx context.Context, id int64) (*models.Transcript, error)
	HandleCallback(ctx context.Context, provider string, header http.Header, body map[string]any) (*transcript.CallbackResult, error)
}

type handlers struct {
	service transcriptService
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (h *handlers) createTranscript(w http.ResponseWriter, r *http.Request) {
	var req transcript.CreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	tr, err := h.service.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, tr)
}

func (h *handlers) getTranscript(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, errBadRequest)
		return
	}

	tr, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

func (h *handlers) callback(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.service.HandleCallback(r.Context(), chi.URLParam(r, "provider"), r.Header, body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	var ve *schema.ValidationError
	if errors.As(err, &ve) {
		resp.Fields = ve.Fields
	}
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("requestId", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("Request failed")
		if code == http.StatusInternalServerError {
			resp.Error = http.StatusText(code)
		}
	}
	writeJSON(w, code, resp)
}

// statusFor maps service errors onto response codes.
func statusFor(err error) int {
	var ve *schema.ValidationError
	switch {
	case errors.As(err, &ve),
		errors.Is(err, errBadRequest),
		errors.Is(err, whisper.ErrInvalidSpeakerCount),
		errors.Is(err, storage.ErrInvalidLocation):
		return http.StatusBadRequest
	case errors.Is(err, stt.ErrProviderNotFound),
		errors.Is(err, store.ErrTranscriptNotFound):
		return http.StatusNotFound
	case transcript.IsFinalized(err):
		return http.StatusConflict
	case errors.Is(err, stt.ErrUnrecognizedStatus),
		errors.Is(err, segment.ErrMalformedOffset),
		errors.Is(err, segment.ErrMissingField),
		errors.Is(err, segment.ErrInvalidField),
		errors.Is(err, storage.ErrStorageDisabled):
		return http.StatusUnprocessableEntity
	case errors.Is(err, stt.ErrDispatch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
