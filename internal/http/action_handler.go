package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/telehealth-gateway/internal/application"
)

// CSRF header names accepted for set_status, in lookup order.
var csrfHeaders = []string{"APICSRFTOKEN", "X-CSRF-Token"}

// Dispatcher runs a named coordinator action.
type Dispatcher interface {
	Dispatch(ctx context.Context, variant application.Variant, caller application.CallerIdentity, name string, params application.Params) application.Result
}

// ActionHandler serves one action endpoint. The variant fixes which actions
// are reachable and which caller kind is expected.
type ActionHandler struct {
	dispatcher Dispatcher
	variant    application.Variant
	logger     *slog.Logger
	responder  responder
}

// NewActionHandler builds a handler for variant.
func NewActionHandler(dispatcher Dispatcher, variant application.Variant, logger *slog.Logger) *ActionHandler {
	logger = defaultLogger(logger)
	return &ActionHandler{
		dispatcher: dispatcher,
		variant:    variant,
		logger:     logger,
		responder:  newResponder(logger),
	}
}

func (h *ActionHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "ActionHandler", operation, append([]any{"variant", h.variant.String()}, attrs...)...)
}

// ServeHTTP handles GET and POST requests carrying an action parameter.
func (h *ActionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params, err := requestParams(r)
	if err != nil {
		h.log(ctx, "ServeHTTP").WarnContext(ctx, "failed to parse request parameters", "error", err)
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	name := params["action"]
	caller, _ := CallerFromContext(ctx)
	result := h.dispatcher.Dispatch(ctx, h.variant, caller, name, params)

	if result.Status == application.StatusOK &&
		application.ParseAction(name) == application.ActionSettings &&
		strings.EqualFold(strings.TrimSpace(params["format"]), "script") {
		h.responder.writeScript(ctx, w, result.Body)
		return
	}

	h.log(ctx, "ServeHTTP", "action", name, "status_class", result.Status.String()).
		DebugContext(ctx, "action dispatched")
	h.responder.writeResult(ctx, w, result)
}

// requestParams flattens query and form values, first value wins. A forgery
// token sent as a header fills csrf_token when the parameter is absent.
func requestParams(r *http.Request) (application.Params, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}

	params := make(application.Params, len(r.Form)+1)
	for key, values := range r.Form {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	if strings.TrimSpace(params["csrf_token"]) == "" {
		for _, header := range csrfHeaders {
			if token := strings.TrimSpace(r.Header.Get(header)); token != "" {
				params["csrf_token"] = token
				break
			}
		}
	}
	return params, nil
}
