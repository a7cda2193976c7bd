package server

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spots/internal/auth"
	"github.com/desertthunder/spots/internal/shared"
	"github.com/desertthunder/spots/internal/store"
)

// HealthHandler reports store readiness on GET /health.
type HealthHandler struct {
	engine *store.Engine
	auth   *auth.Service
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(engine *store.Engine, a *auth.Service) *HealthHandler {
	return &HealthHandler{engine: engine, auth: a}
}

// Routes returns the HTTP routes this handler serves.
func (h *HealthHandler) Routes() []string {
	return []string{"GET /health"}
}

// ServeHTTP answers 200 when the store is ready and 503 otherwise.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	state := h.engine.State()
	_, authenticated := h.auth.CurrentUser()
	data := map[string]any{
		"database":      state,
		"authenticated": authenticated,
	}

	if !state.IsReady {
		writeJSON(w, http.StatusServiceUnavailable, Response{
			OK:    false,
			Data:  data,
			Error: &Failure{Kind: "NotReady", Message: "store is not ready"},
		})
		return
	}
	writeSuccess(w, data)
}

// NewInvokeRouter wires the invoke and health handlers behind the standard middleware.
func NewInvokeRouter(engine *store.Engine, a *auth.Service, invoke *InvokeHandler, logger *log.Logger) *BasicRouter {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	router := NewBasicRouter()
	router.Use(RecoverMiddleware(logger), LoggingMiddleware(logger), JSONContentMiddleware())
	router.Handler(invoke)
	router.Handler(NewHealthHandler(engine, a))
	return router
}
