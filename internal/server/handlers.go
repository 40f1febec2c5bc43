package server

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/comigor/jarvis-gateway/internal/chat"
	"github.com/comigor/jarvis-gateway/internal/logger"
	"github.com/comigor/jarvis-gateway/internal/wire"
)

const maxBodyBytes = 1 << 20

type handlers struct {
	chat *chat.Service
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := HandleError(err)
	logger.L.Error("request failed",
		"request_id", middleware.GetReqID(r.Context()),
		"path", r.URL.Path,
		"status", status,
		"error", err,
	)
	if werr := WriteJSONResponse(w, status, resp); werr != nil {
		logger.L.Error("failed to write error response", "error", werr)
	}
}

func (h *handlers) writeJSON(w http.ResponseWriter, r *http.Request, data any) {
	if err := WriteJSONResponse(w, http.StatusOK, data); err != nil {
		logger.L.Error("failed to write response", "request_id", middleware.GetReqID(r.Context()), "error", err)
	}
}

// completions serves POST /chat/completions in JSON or SSE mode.
func (h *handlers) completions(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, r, &wire.ValidationError{Message: "failed to read request body: " + err.Error()})
		return
	}
	req, err := wire.DecodeRequest(body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	logger.L.Info("chat completion request",
		"request_id", middleware.GetReqID(r.Context()),
		"model", req.Model,
		"messages", len(req.Messages),
		"stream", req.Stream,
	)

	if req.Stream {
		h.stream(w, r, req)
		return
	}

	resp, err := h.chat.Complete(r.Context(), req.UserText(), req.Params())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, resp)
}

// stream writes the SSE response. Failures before the first frame become a
// plain JSON error; later ones become an error frame with no [DONE].
func (h *handlers) stream(w http.ResponseWriter, r *http.Request, req *wire.ChatCompletionRequest) {
	requestID := middleware.GetReqID(r.Context())
	started := false
	done := false

	for frame, err := range h.chat.Stream(r.Context(), req.UserText(), req.Params()) {
		if err != nil {
			switch {
			case !started:
				h.writeError(w, r, err)
			case done:
				logger.L.Error("stream failed after completion", "request_id", requestID, "error", err)
			default:
				_, resp := HandleError(err)
				if werr := WriteSSEError(w, resp); werr != nil {
					logger.L.Error("failed to write SSE error", "request_id", requestID, "error", werr)
				}
			}
			return
		}

		if !started {
			SetSSEHeaders(w)
			w.WriteHeader(http.StatusOK)
			started = true
		}

		var werr error
		if frame.Done {
			werr = WriteSSEDone(w)
			done = true
		} else {
			werr = WriteSSEChunk(w, frame.Chunk)
		}
		if werr != nil {
			logger.L.Warn("client went away during stream", "request_id", requestID, "error", werr)
			return
		}
	}
}

func (h *handlers) getHistory(w http.ResponseWriter, r *http.Request) {
	resp, err := h.chat.History(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, resp)
}

func (h *handlers) clearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.chat.Clear(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, map[string]string{"message": "Chat history cleared successfully"})
}

func (h *handlers) models(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, h.chat.Models())
}

func (h *handlers) webuiHistory(w http.ResponseWriter, r *http.Request) {
	resp, err := h.chat.Export(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, resp)
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, map[string]string{"status": "ok"})
}
