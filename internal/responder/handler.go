package responder

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// maxDrain bounds how much of an ignored request body is read after the
// response is written. Anything beyond it is left for net/http, which
// closes the connection instead of draining.
const maxDrain = 1 << 20

// Handler answers every request with the same plain-text greeting,
// regardless of method, path, headers or body.
type Handler struct {
	greeting atomic.Pointer[string]
	logger   *slog.Logger
}

// NewHandler creates a handler that responds with greeting.
func NewHandler(greeting string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{logger: logger.With("component", "responder")}
	h.greeting.Store(&greeting)
	return h
}

// Greeting returns the body currently being served.
func (h *Handler) Greeting() string {
	return *h.greeting.Load()
}

// SetGreeting replaces the body for subsequent requests. Requests already
// in flight keep the value they loaded.
func (h *Handler) SetGreeting(greeting string) {
	h.greeting.Store(&greeting)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body := h.Greeting()

	var id string
	if h.logger.Enabled(r.Context(), slog.LevelDebug) {
		id = uuid.NewString()
		h.logger.Debug("request",
			"id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
		)
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "text/plain; charset=utf-8")
	hdr.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)

	if _, err := io.WriteString(w, body); err != nil {
		h.clientError(id, r, "writing response", err)
		return
	}

	// The response must not wait on a body the client has not sent yet.
	// Flush it first, then drain so the connection can be reused.
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	if r.Body != nil {
		if _, err := io.Copy(io.Discard, io.LimitReader(r.Body, maxDrain)); err != nil {
			h.clientError(id, r, "draining request body", err)
		}
		r.Body.Close()
	}
}

// clientError records a failure confined to one connection. It is never
// surfaced beyond this request.
func (h *Handler) clientError(id string, r *http.Request, op string, err error) {
	h.logger.Debug("client I/O error",
		"id", id,
		"op", op,
		"remote", r.RemoteAddr,
		"error", err,
	)
}
