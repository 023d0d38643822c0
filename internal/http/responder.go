package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/telehealth-gateway/internal/application"
)

const settingsScriptVariable = "window.jitsiTelehealthSettings"

var errBadRequestBody = errors.New("invalid request body")

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	return responder{logger: defaultLogger(logger)}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, application.ErrorBody{Error: message})
}

// writeResult renders a coordinator result. The coordinator has already
// logged the failure and chosen a safe message.
func (r responder) writeResult(ctx context.Context, w http.ResponseWriter, result application.Result) {
	r.writeJSON(ctx, w, statusCode(result.Status), result.Body)
}

// writeScript renders payload as a global assignment for a script tag.
func (r responder) writeScript(ctx context.Context, w http.ResponseWriter, payload any) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		r.writeError(ctx, w, http.StatusInternalServerError, err)
		return
	}

	var body bytes.Buffer
	body.WriteString(settingsScriptVariable)
	body.WriteString(" = ")
	body.Write(encoded)
	body.WriteString(";\n")

	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body.Bytes()); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to write script", "error", err)
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	return handlerLogger(ctx, r.logger, "responder", "")
}

func statusCode(class application.StatusClass) int {
	switch class {
	case application.StatusOK:
		return http.StatusOK
	case application.StatusBadRequest:
		return http.StatusBadRequest
	case application.StatusForbidden:
		return http.StatusForbidden
	case application.StatusNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
