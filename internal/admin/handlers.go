package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/authava/authgate/internal/config"
	"github.com/authava/authgate/internal/metrics"
)

// Handler serves the Admin API's route CRUD endpoints (spec.md §4.6).
type Handler struct {
	Provider config.Provider
	Metrics  *metrics.Recorder
	Logger   *slog.Logger
}

// routeResponse is the wire shape for a RouteDef, keeping the `require`
// field's strict-write / loose-read asymmetry local to this package: writes
// decode through DecodeRequireStrict, reads always round-trip through the
// standard RouteDef marshaling.
type routeResponse = config.RouteDef

func (h *Handler) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/health", h.health)
	mux.HandleFunc("GET /admin/routes", h.list)
	mux.HandleFunc("POST /admin/routes", h.create)
	mux.HandleFunc("GET /admin/routes/{id}", h.get)
	mux.HandleFunc("PUT /admin/routes/{id}", h.update)
	mux.HandleFunc("DELETE /admin/routes/{id}", h.delete)
	return mux
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.writeStatus(r, w, http.StatusOK, "health")
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	routes, err := h.Provider.RoutesList(r.Context())
	if err != nil {
		h.writeError(r, w, "routes", err)
		return
	}
	h.writeJSON(r, w, "routes", http.StatusOK, routes)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	route, err := h.Provider.RouteGet(r.Context(), id)
	if err != nil {
		h.writeError(r, w, "routes/{id}", err)
		return
	}
	h.writeJSON(r, w, "routes/{id}", http.StatusOK, route)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var draft routeResponse
	if err := decodeRouteStrict(r, &draft); err != nil {
		h.writeValidationError(r, w, "routes", err)
		return
	}
	if err := draft.Validate(); err != nil {
		h.writeValidationError(r, w, "routes", err)
		return
	}
	id, err := h.Provider.RouteCreate(r.Context(), draft)
	if err != nil {
		h.writeError(r, w, "routes", err)
		return
	}
	draft.ID = id
	h.writeJSON(r, w, "routes", http.StatusCreated, draft)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var draft routeResponse
	if err := decodeRouteStrict(r, &draft); err != nil {
		h.writeValidationError(r, w, "routes/{id}", err)
		return
	}
	if err := draft.Validate(); err != nil {
		h.writeValidationError(r, w, "routes/{id}", err)
		return
	}
	draft.ID = id
	if err := h.Provider.RouteUpdate(r.Context(), id, draft); err != nil {
		h.writeError(r, w, "routes/{id}", err)
		return
	}
	h.writeJSON(r, w, "routes/{id}", http.StatusOK, draft)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.Provider.RouteDelete(r.Context(), id); err != nil {
		h.writeError(r, w, "routes/{id}", err)
		return
	}
	h.writeStatus(r, w, http.StatusNoContent, "routes/{id}")
}

// decodeRouteStrict decodes the JSON body of r into route, rejecting
// unknown fields on the require block per spec.md §9's write-path strictness.
func decodeRouteStrict(r *http.Request, route *routeResponse) error {
	var envelope struct {
		ID      string          `json:"id,omitempty"`
		Host    string          `json:"host"`
		Path    string          `json:"path"`
		Require json.RawMessage `json:"require"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&envelope); err != nil {
		return err
	}
	require, err := config.DecodeRequireStrict(envelope.Require)
	if err != nil {
		return err
	}
	route.ID = envelope.ID
	route.Host = envelope.Host
	route.Path = envelope.Path
	route.Require = require
	return nil
}

func (h *Handler) writeJSON(r *http.Request, w http.ResponseWriter, route string, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger().Error("admin response encode failed", slog.Any("error", err))
	}
	h.observe(route, status)
}

func (h *Handler) writeStatus(r *http.Request, w http.ResponseWriter, status int, route string) {
	w.WriteHeader(status)
	h.observe(route, status)
}

func (h *Handler) writeValidationError(r *http.Request, w http.ResponseWriter, route string, err error) {
	http.Error(w, err.Error(), http.StatusBadRequest)
	h.observe(route, http.StatusBadRequest)
}

func (h *Handler) writeError(r *http.Request, w http.ResponseWriter, route string, err error) {
	status := http.StatusInternalServerError
	switch {
	case config.IsNotFound(err):
		status = http.StatusNotFound
	case config.IsNotSupported(err):
		status = http.StatusForbidden
	case config.IsUnavailable(err):
		status = http.StatusBadGateway
	default:
		h.logger().Error("admin request failed", slog.Any("error", err), slog.String("route", route))
	}
	http.Error(w, httpErrorMessage(err), status)
	h.observe(route, status)
}

func httpErrorMessage(err error) string {
	if strings.TrimSpace(err.Error()) == "" {
		return "internal error"
	}
	return err.Error()
}

func (h *Handler) observe(route string, status int) {
	if h.Metrics != nil {
		h.Metrics.ObserveAdmin(route, status)
	}
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
