// Package dispatch routes named action messages to handlers and normalizes
// every outcome into the uniform success envelope callers expect.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/tabkeeper/idgen"
)

// Handler processes one action payload. The returned value is marshaled as
// the response body; an error becomes a failure envelope.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Failure is the uniform error envelope.
type Failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Router maps action names to handlers. Register everything before serving;
// the handler map is not guarded.
type Router struct {
	logger   *slog.Logger
	handlers map[string]Handler
}

// NewRouter creates an empty router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{logger: logger, handlers: make(map[string]Handler)}
}

// Handle registers the handler for an action name.
func (r *Router) Handle(action string, h Handler) {
	r.handlers[action] = h
}

// Actions lists the registered action names.
func (r *Router) Actions() []string {
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	return out
}

// Call dispatches one action and always produces a JSON body. Unknown
// actions and handler errors come back as failure envelopes, never as a
// transport-level error.
func (r *Router) Call(ctx context.Context, action string, payload json.RawMessage) []byte {
	reqID := idgen.RequestID()
	start := time.Now()
	log := r.logger.With("action", action, "request_id", reqID)

	h, ok := r.handlers[action]
	if !ok {
		log.Warn("dispatch: unknown action")
		return failureBody(fmt.Sprintf("Unknown action: %s", action))
	}

	result, err := h(ctx, payload)
	if err != nil {
		log.Warn("dispatch: action failed", "error", err, "elapsed", time.Since(start))
		return failureBody(err.Error())
	}

	body, err := json.Marshal(result)
	if err != nil {
		log.Error("dispatch: marshal response", "error", err)
		return failureBody("internal error")
	}
	log.Debug("dispatch: action handled", "elapsed", time.Since(start))
	return body
}

// Mount returns the HTTP surface: POST /{action} with the payload as body.
// Responses are always 200 with a success envelope; failures are in-band.
func (r *Router) Mount() http.Handler {
	mux := chi.NewRouter()
	mux.Post("/{action}", func(w http.ResponseWriter, req *http.Request) {
		payload, err := io.ReadAll(io.LimitReader(req.Body, 1<<20))
		if err != nil {
			writeBody(w, failureBody("read request body"))
			return
		}
		action := chi.URLParam(req, "action")
		writeBody(w, r.Call(req.Context(), action, payload))
	})
	return mux
}

func failureBody(msg string) []byte {
	body, _ := json.Marshal(Failure{Error: msg})
	return body
}

func writeBody(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
