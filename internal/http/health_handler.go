package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

const healthTimeout = 2 * time.Second

var errStoreUnavailable = errors.New("store unavailable")

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler answers liveness probes.
type HealthHandler struct {
	pinger    Pinger
	logger    *slog.Logger
	responder responder
}

// NewHealthHandler builds a probe over pinger.
func NewHealthHandler(pinger Pinger, logger *slog.Logger) *HealthHandler {
	logger = defaultLogger(logger)
	return &HealthHandler{pinger: pinger, logger: logger, responder: newResponder(logger)}
}

type healthResponse struct {
	Status string `json:"status"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if h.pinger != nil {
		if err := h.pinger.Ping(ctx); err != nil {
			handlerLogger(ctx, h.logger, "HealthHandler", "ServeHTTP").
				ErrorContext(ctx, "store ping failed", "error", err)
			h.responder.writeJSON(ctx, w, http.StatusServiceUnavailable, healthResponse{Status: errStoreUnavailable.Error()})
			return
		}
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, healthResponse{Status: "ok"})
}
