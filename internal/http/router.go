package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/example/telehealth-gateway/internal/application"
)

var errRouteNotFound = errors.New("not found")

type RouterConfig struct {
	Provider *ActionHandler
	// Portal is nil when the patient portal is disabled.
	Portal     *ActionHandler
	Health     http.Handler
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	router := mux.NewRouter()
	notFound := newResponder(nil)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		notFound.writeJSON(r.Context(), w, http.StatusNotFound, application.ErrorBody{Error: errRouteNotFound.Error()})
	})

	if cfg.Provider != nil {
		router.Handle("/api/provider", allowMethods(cfg.Provider, http.MethodGet, http.MethodPost))
	}
	if cfg.Portal != nil {
		router.Handle("/api/portal", allowMethods(cfg.Portal, http.MethodGet, http.MethodPost))
	}
	if cfg.Health != nil {
		router.Handle("/healthz", allowMethods(cfg.Health, http.MethodGet))
	}

	var handler http.Handler = router
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

func allowMethods(next http.Handler, allowed ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, method := range allowed {
			if r.Method == method {
				next.ServeHTTP(w, r)
				return
			}
		}
		methodNotAllowed(w, allowed...)
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
