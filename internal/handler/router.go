package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/taloschat/talos/internal/config"
	chatHandler "github.com/taloschat/talos/internal/handler/chat"
	modelHandler "github.com/taloschat/talos/internal/handler/model"
	middlewarePkg "github.com/taloschat/talos/internal/middleware"
	"github.com/taloschat/talos/internal/ollama"
	chatService "github.com/taloschat/talos/internal/service/chat"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(chatSvc *chatService.Service, client *ollama.Client, endpoint *config.Endpoint) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Route("/api", func(api chi.Router) {
		chatHandler.New(chatSvc).RegisterRoutes(api)
		modelHandler.New(client, endpoint).RegisterRoutes(api)
	})

	return r
}
