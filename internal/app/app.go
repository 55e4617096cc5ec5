package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-messenger/internal/authority"
	"go-messenger/internal/config"
	"go-messenger/internal/database"
	"go-messenger/internal/handler"
	"go-messenger/internal/logger"
	"go-messenger/internal/middleware"
	"go-messenger/internal/repository"
	"go-messenger/internal/router"
	"go-messenger/internal/service"
	"go-messenger/internal/token"
	"go-messenger/internal/trust"
	"go-messenger/internal/upstream"
	"go-messenger/internal/usercache"
)

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

func New(serviceName string) (*App, error) {
	cfg, err := config.Load(serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slog.SetDefault(logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat).With("service", cfg.Service))

	gate, err := trust.NewGate(cfg.GatewaySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize trust gate: %w", err)
	}

	a := &App{}

	var appRouter http.Handler
	switch cfg.Service {
	case config.ServiceGateway:
		appRouter, err = a.gateway(cfg, gate)
	case config.ServiceLogin:
		appRouter, err = a.login(cfg, gate)
	case config.ServiceMessage:
		appRouter, err = a.message(cfg, gate)
	}
	if err != nil {
		a.cleanup()
		return nil, err
	}

	a.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return a, nil
}

func (a *App) gateway(cfg *config.Config, gate *trust.Gate) (http.Handler, error) {
	codec, err := token.NewCodec(cfg.JWTSecret, token.WithTTLs(cfg.JWTAccessTTL, cfg.JWTRefreshTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}

	transport := upstream.NewTransport(cfg.UpstreamConnectTimeout, cfg.UpstreamReadTimeout)
	a.cleanupFuncs = append(a.cleanupFuncs, transport.CloseIdleConnections)

	loginProxy, err := upstream.NewProxy(config.ServiceLogin, cfg.LoginServiceURL, gate, transport)
	if err != nil {
		return nil, err
	}
	messageProxy, err := upstream.NewProxy(config.ServiceMessage, cfg.MessageServiceURL, gate, transport)
	if err != nil {
		return nil, err
	}

	users, err := authority.New(cfg.LoginServiceURL, gate, &http.Client{
		Transport: transport,
		Timeout:   cfg.UpstreamConnectTimeout + cfg.UpstreamReadTimeout,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("gateway routes ready", "login_service", cfg.LoginServiceURL, "message_service", cfg.MessageServiceURL)

	return router.NewGateway(cfg, router.GatewayHandlers{
		Authenticator: middleware.NewAuthenticator(codec),
		Login:         loginProxy,
		Messages:      messageProxy,
		Gateway:       handler.NewGatewayHandler(users),
		Health:        handler.NewHealthHandler(cfg.Service, nil),
	}), nil
}

func (a *App) login(cfg *config.Config, gate *trust.Gate) (http.Handler, error) {
	db, err := a.openDatabase(cfg, database.UsersSchema)
	if err != nil {
		return nil, err
	}

	codec, err := token.NewCodec(cfg.JWTSecret, token.WithTTLs(cfg.JWTAccessTTL, cfg.JWTRefreshTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}

	userRepo := repository.NewUserRepository(db.Pool)
	authService := service.NewAuthService(userRepo, codec, cfg.BcryptCost)

	return router.NewLogin(cfg, gate, router.LoginHandlers{
		Auth:   handler.NewAuthHandler(authService),
		Health: handler.NewHealthHandler(cfg.Service, db),
	}), nil
}

func (a *App) message(cfg *config.Config, gate *trust.Gate) (http.Handler, error) {
	db, err := a.openDatabase(cfg, database.MessagesSchema)
	if err != nil {
		return nil, err
	}

	opts := []usercache.Option{
		usercache.WithEnabled(cfg.UserCacheEnabled),
		usercache.WithTTL(cfg.UserCacheTTL),
	}
	if cfg.LoginServiceURL != "" {
		remote, err := authority.New(cfg.LoginServiceURL, gate, upstream.NewClient(cfg.UpstreamConnectTimeout, cfg.UpstreamReadTimeout))
		if err != nil {
			return nil, err
		}
		opts = append(opts, usercache.WithRemote(remote))
	} else {
		slog.Warn("LOGIN_SERVICE_URL is empty; user lookups are local only")
	}

	cache := usercache.New(repository.NewUserRepository(db.Pool), opts...)
	slog.Info("user cache ready", "enabled", cfg.UserCacheEnabled, "ttl", cfg.UserCacheTTL, "remote", cfg.LoginServiceURL != "")

	messageService := service.NewMessageService(repository.NewMessageRepository(db.Pool), cache)

	return router.NewMessage(cfg, gate, router.MessageHandlers{
		Messages: handler.NewMessageHandler(messageService),
		Cache:    handler.NewCacheHandler(cache),
		Health:   handler.NewHealthHandler(cfg.Service, db),
	}), nil
}

func (a *App) openDatabase(cfg *config.Config, schema database.Schema) (*database.DB, error) {
	slog.Info("connecting to PostgreSQL")
	db, err := database.New(context.Background(), cfg.DatabaseURL, cfg.Service, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.cleanupFuncs = append(a.cleanupFuncs, db.Close)

	if err := db.EnsureSchema(context.Background(), schema); err != nil {
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	slog.Info("database ready", "schema", schema.Name)
	return db, nil
}

func (a *App) cleanup() {
	for _, fn := range a.cleanupFuncs {
		fn()
	}
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Drain in-flight requests before closing the pool they use.
	shutdownErr := a.server.Shutdown(ctx)
	a.cleanup()

	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}
