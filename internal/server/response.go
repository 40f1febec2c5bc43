package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/comigor/jarvis-gateway/internal/history"
	"github.com/comigor/jarvis-gateway/internal/llm"
	"github.com/comigor/jarvis-gateway/internal/wire"
)

// WriteJSONResponse writes data as a JSON body with the given status.
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON response: %w", err)
	}
	return nil
}

// SetSSEHeaders sets the headers for a Server-Sent Events response.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

func writeSSEData(w http.ResponseWriter, data []byte) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

// WriteSSEChunk writes one chunk as
//
//	data: {"id":"chatcmpl-...","object":"chat.completion.chunk",...}
//
// followed by a blank line, and flushes it.
func WriteSSEChunk(w http.ResponseWriter, chunk *wire.ChatStreamChunk) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE chunk: %w", err)
	}
	if err := writeSSEData(w, data); err != nil {
		return fmt.Errorf("failed to write SSE chunk: %w", err)
	}
	return nil
}

// WriteSSEDone writes the terminal "data: [DONE]" frame.
func WriteSSEDone(w http.ResponseWriter) error {
	if err := writeSSEData(w, []byte(wire.DoneSentinel)); err != nil {
		return fmt.Errorf("failed to write SSE done marker: %w", err)
	}
	return nil
}

// WriteSSEError reports a mid-stream failure as a data frame carrying the
// error envelope. No [DONE] follows it.
func WriteSSEError(w http.ResponseWriter, errResp *wire.ErrorResponse) error {
	data, err := json.Marshal(errResp)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE error: %w", err)
	}
	if err := writeSSEData(w, data); err != nil {
		return fmt.Errorf("failed to write SSE error: %w", err)
	}
	return nil
}

// HandleError maps a core error onto an HTTP status and error envelope.
func HandleError(err error) (int, *wire.ErrorResponse) {
	var ve *wire.ValidationError
	var pe *llm.ProviderError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, wire.ValidationErrorResponse(ve)
	case errors.As(err, &pe):
		code := "provider_unavailable"
		switch pe.Kind {
		case llm.KindAuth:
			code = "provider_auth"
		case llm.KindMalformed:
			code = "provider_malformed"
		}
		return http.StatusBadGateway, wire.NewError(pe.Error(), "provider_error", code)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, wire.NewError("request cancelled", "server_error", "cancelled")
	case errors.Is(err, history.ErrUnknownParent), errors.Is(err, history.ErrDuplicateID), errors.Is(err, history.ErrEmptyID):
		return http.StatusInternalServerError, wire.NewError(err.Error(), "server_error", "store_invariant")
	default:
		return http.StatusInternalServerError, wire.NewError(err.Error(), "server_error", "internal_error")
	}
}
