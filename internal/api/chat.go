package api //nolint:revive // package name is intentional

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/recall/internal/httputil"
)

// chatMaxBodyBytes allows long conversations with inline images.
const chatMaxBodyBytes int64 = 32 << 20

type chatEnvelope struct {
	Stream *bool `json:"stream"`
}

// Chat handles POST /api/chat by forwarding the body unchanged to the model
// runtime. Streaming responses are flushed to the client chunk by chunk.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	body, err := httputil.ReadLimitedBody(r.Body, chatMaxBodyBytes)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, httputil.ErrResponseBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, MessageResponse{Error: err.Error()})
		return
	}

	stream := false
	if len(body) > 0 {
		var env chatEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			writeJSON(w, http.StatusBadRequest, MessageResponse{Error: msgInvalidJSON})
			return
		}
		if env.Stream != nil {
			stream = *env.Stream
		}
	}

	resp, err := h.upstream.Chat(r.Context(), body)
	if err != nil {
		h.logger.Warn("chat upstream unreachable", "error", err, "stream", stream)
		writeJSON(w, http.StatusBadGateway, MessageResponse{Error: msgConnectionFailed})
		return
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = contentTypeJSON
	}

	if !stream || resp.StatusCode >= http.StatusBadRequest {
		h.relayBuffered(w, resp, contentType)
		return
	}
	h.relayStream(w, resp, contentType)
}

func (h *Handler) relayBuffered(w http.ResponseWriter, resp *http.Response, contentType string) {
	data, err := httputil.ReadLimitedBody(resp.Body, httputil.DefaultMaxResponseBodyBytes)
	if err != nil {
		h.logger.Warn("failed to read chat response", "error", err)
		writeJSON(w, http.StatusBadGateway, MessageResponse{Error: msgConnectionFailed})
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(data)
}

func (h *Handler) relayStream(w http.ResponseWriter, resp *http.Response, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, chatCopyBufferBytes)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				h.logger.Debug("chat client went away", "error", werr)
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			h.logger.Warn("chat stream interrupted", "error", err)
			return
		}
	}
}
