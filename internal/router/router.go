package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-messenger/internal/config"
	"go-messenger/internal/handler"
	"go-messenger/internal/middleware"
	"go-messenger/internal/trust"
	"go-messenger/internal/upstream"
)

type GatewayHandlers struct {
	Authenticator *middleware.Authenticator
	Login         *upstream.Proxy
	Messages      *upstream.Proxy
	Gateway       *handler.GatewayHandler
	Health        *handler.HealthHandler
}

func NewGateway(cfg *config.Config, h GatewayHandlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware.Handler)
	r.Use(h.Authenticator.Handler)

	r.Get("/health", h.Health.Health)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Get("/health", h.Health.Health)
		api.Method(http.MethodPost, "/auth/login", h.Login.To("/internal/v1/auth/login"))
		api.Method(http.MethodPost, "/auth/refresh", h.Login.To("/internal/v1/auth/refresh"))
		api.Method(http.MethodPost, "/users/register", h.Login.To("/internal/v1/register"))

		api.Group(func(private chi.Router) {
			private.Use(middleware.RequireAuth)

			private.Get("/auth/me", h.Gateway.Me)
			private.Handle("/messages/*", h.Messages.Prefix("/api/v1/messages", "/internal/v1/messages"))
		})
	})

	return r
}

type LoginHandlers struct {
	Auth   *handler.AuthHandler
	Health *handler.HealthHandler
}

func NewLogin(cfg *config.Config, gate *trust.Gate, h LoginHandlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)

	r.Get("/health", h.Health.Health)

	r.Route("/internal/v1", func(internal chi.Router) {
		internal.Use(middleware.Timeout(cfg.RequestTimeout))

		internal.Get("/auth/health", h.Health.Health)

		internal.Group(func(trusted chi.Router) {
			trusted.Use(middleware.RequireGateway(gate))

			trusted.Route("/auth", func(auth chi.Router) {
				auth.Post("/login", h.Auth.Login)
				auth.Post("/refresh", h.Auth.Refresh)
				auth.Post("/validate", h.Auth.Validate)
				auth.Get("/validate-user/{userID}", h.Auth.ValidateUser)
				auth.Get("/user-info/{userID}", h.Auth.UserInfo)
			})
			trusted.Post("/register", h.Auth.Register)
		})
	})

	return r
}

type MessageHandlers struct {
	Messages *handler.MessageHandler
	Cache    *handler.CacheHandler
	Health   *handler.HealthHandler
}

func NewMessage(cfg *config.Config, gate *trust.Gate, h MessageHandlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)

	r.Get("/health", h.Health.Health)

	r.Route("/internal/v1", func(internal chi.Router) {
		internal.Use(middleware.Timeout(cfg.RequestTimeout))
		internal.Use(middleware.RequireGateway(gate))
		internal.Use(middleware.RequirePrincipal)

		internal.Post("/messages/send", h.Messages.Send)
		internal.Get("/messages/conversation/{otherUserID}", h.Messages.Conversation)
		internal.Get("/messages/conversations", h.Messages.Conversations)
		internal.Get("/messages/history", h.Messages.History)

		internal.Delete("/admin/user-cache/{userID}", h.Cache.ClearUser)
		internal.Delete("/admin/user-cache", h.Cache.ClearAll)
	})

	return r
}
