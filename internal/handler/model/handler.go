package model

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/taloschat/talos/internal/config"
	"github.com/taloschat/talos/internal/ollama"
	"github.com/taloschat/talos/pkg/utils"
)

// Handler exposes model listing, the endpoint status probe, and the
// mutable endpoint setting.
type Handler struct {
	client   *ollama.Client
	endpoint *config.Endpoint
}

// New creates the model handler.
func New(client *ollama.Client, endpoint *config.Endpoint) *Handler {
	return &Handler{client: client, endpoint: endpoint}
}

// RegisterRoutes mounts the model and settings routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/models", h.handleListModels)
	r.Get("/status", h.handleStatus)
	r.Get("/settings/endpoint", h.handleGetEndpoint)
	r.Put("/settings/endpoint", h.handleSetEndpoint)
}

func (h *Handler) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.client.ListModels(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, ollama.ErrUnavailable):
			utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
		default:
			utils.RespondError(w, http.StatusBadGateway, err.Error())
		}
		return
	}
	utils.RespondJSON(w, http.StatusOK, models)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]bool{"ollama": h.client.Status(r.Context())})
}

func (h *Handler) handleGetEndpoint(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{"url": h.endpoint.URL()})
}

func (h *Handler) handleSetEndpoint(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		URL string `json:"url"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	parsed, err := url.Parse(payload.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		utils.RespondError(w, http.StatusBadRequest, "url must be absolute, e.g. http://localhost:11434")
		return
	}

	h.endpoint.Set(payload.URL)
	w.WriteHeader(http.StatusNoContent)
}
