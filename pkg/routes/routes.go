package routes

import (
	"context"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"NoticeHub/internal/audience"
	"NoticeHub/internal/auth"
	"NoticeHub/internal/config"
	"NoticeHub/internal/notification"
	"NoticeHub/pkg/middleware"
)

var Modules = fx.Module("noticehub",
	fx.Provide(
		config.NewSettings,
		config.NewLogger,
		config.NewMongoDBConfig,
		config.NewMongoDBClient,
		config.NewAlertTransportConfig,
		config.NewAlertService,
		auth.NewUserRepository,
		auth.NewUserService,
		auth.NewAuthHandler,
		notification.NewNotificationRepository,
		notification.NewNotificationService,
		notification.NewNotificationHandler,
		notification.NewManager,
		NewEchoServer,
		newResolver,
		newBatchLoader,
		newFeed,
		newRoleDirectory,
		newSessionDropper,
	),
	fx.Invoke(setupIndexes),
	fx.Invoke(closeSessionsOnStop),
	fx.Invoke(RegisterRoutes),
)

func newResolver(users *auth.UserRepository, logger *zap.Logger) *audience.Resolver {
	return audience.NewResolver(users, logger)
}

func newBatchLoader(repo *notification.NotificationRepository, logger *zap.Logger, settings *config.Settings) *notification.BatchLoader {
	return notification.NewBatchLoader(repo, logger, settings.BatchPageSize)
}

func newFeed(repo *notification.NotificationRepository, logger *zap.Logger) notification.Feed {
	return notification.NewChangeFeed(repo, logger)
}

func newRoleDirectory(users *auth.UserRepository) notification.RoleDirectory {
	return users
}

func newSessionDropper(manager *notification.Manager) auth.SessionDropper {
	return manager
}

func setupIndexes(users *auth.UserRepository, logger *zap.Logger) error {
	return config.UniqueUserNumberIndex(users.Collection(), logger)
}

func closeSessionsOnStop(lc fx.Lifecycle, manager *notification.Manager) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			manager.Close()
			return nil
		},
	})
}

func NewEchoServer(lc fx.Lifecycle, settings *config.Settings, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: settings.CORSOrigins,
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.OPTIONS},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("server starting", zap.String("addr", settings.ServerAddr))
			go func() {
				if err := e.Start(settings.ServerAddr); err != nil {
					logger.Error("server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down the server")
			return e.Shutdown(ctx)
		},
	})
	return e
}

func RegisterRoutes(e *echo.Echo, authHandler *auth.AuthHandler, notificationHandler *notification.NotificationHandler) {
	e.POST("/register", authHandler.Register)
	e.POST("/login", authHandler.Login)

	protected := e.Group("/api")
	protected.Use(middleware.JWTMiddleware)
	protected.POST("/logout", authHandler.Logout)

	protected.GET("/notifications", notificationHandler.Inbox)
	protected.POST("/notifications/refresh", notificationHandler.Refresh)
	protected.GET("/notifications/senders/:id/role", notificationHandler.SenderRole)
	protected.POST("/notifications",
		notificationHandler.Publish,
		middleware.RequireRoles(auth.RoleAdmin, auth.RoleStaff, auth.RoleTeacher))
}
