// Package main runs the gallery HTTP server with its two WebSocket hubs and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gallery-sim/backend/config"
	"github.com/gallery-sim/backend/internal/articles"
	"github.com/gallery-sim/backend/internal/auth"
	"github.com/gallery-sim/backend/internal/authz"
	"github.com/gallery-sim/backend/internal/cards"
	"github.com/gallery-sim/backend/internal/collections"
	"github.com/gallery-sim/backend/internal/exhibits"
	"github.com/gallery-sim/backend/internal/feed"
	"github.com/gallery-sim/backend/internal/memberships"
	"github.com/gallery-sim/backend/internal/middleware"
	"github.com/gallery-sim/backend/internal/notify"
	"github.com/gallery-sim/backend/internal/realtime"
	"github.com/gallery-sim/backend/internal/teams"
	"github.com/gallery-sim/backend/internal/userarticles"
	"github.com/gallery-sim/backend/internal/xapi"
	"github.com/gallery-sim/backend/pkg/database"
	"github.com/gallery-sim/backend/pkg/mailer"
	"github.com/gallery-sim/backend/pkg/redis"
	"github.com/gallery-sim/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	mainPubSub := realtime.NewRedisPubSub(rdb, redis.PrefixMain, logger)
	mainHub := realtime.NewHub("main", logger, mainPubSub, mainPubSub)
	unreadPubSub := realtime.NewRedisPubSub(rdb, redis.PrefixUnread, logger)
	unreadHub := realtime.NewHub("unread", logger, unreadPubSub, unreadPubSub)

	// Authorization
	authzRepo := authz.NewRepository(pool)
	resolver := authz.NewResolver(authzRepo)
	claims := authz.NewClaimsCache(authzRepo, cfg.Claims.TTL, logger)

	// Feeds and notifications
	feedRepo := feed.NewRepository(pool)
	materializer := feed.NewMaterializer(feedRepo, logger)
	audienceRepo := notify.NewRepository(pool, feedRepo)
	router := notify.NewRouter(audienceRepo, mainHub, unreadHub, logger,
		cfg.Notify.MaxConcurrentSends, cfg.Notify.SendTimeout)

	lrs := xapi.NewClient(cfg.XAPI, logger)
	mail := mailer.NewSMTPMailer(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.SMTPUser, cfg.Email.SMTPPass, cfg.Email.FromName, logger)
	if !lrs.IsConfigured() {
		logger.Info("xAPI statements disabled")
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authHandler := auth.NewHandler(auth.NewRepository(pool), jwtService, claims, router, logger)

	collectionRepo := collections.NewRepository(pool)
	collectionHandler := collections.NewHandler(collectionRepo, resolver, router, logger)
	cardHandler := cards.NewHandler(cards.NewRepository(pool), resolver, router, logger)
	exhibitRepo := exhibits.NewRepository(pool)
	exhibitHandler := exhibits.NewHandler(exhibitRepo, resolver, collectionRepo, materializer, router, logger)
	teamHandler := teams.NewHandler(teams.NewRepository(pool), resolver, materializer, router, logger)
	membershipHandler := memberships.NewHandler(memberships.NewRepository(pool), resolver, authzRepo, claims, router, logger)

	articleRepo := articles.NewRepository(pool)
	articleService := articles.NewService(articleRepo, articles.NewPolicy(resolver, articleRepo), materializer, router, lrs, mail, logger)
	articleHandler := articles.NewHandler(articleService, logger)

	userArticleService := userarticles.NewService(userarticles.NewRepository(pool, feedRepo), materializer, resolver, router, lrs, logger)
	userArticleHandler := userarticles.NewHandler(userArticleService, logger)

	subscriptions := notify.NewSubscriptions(claims, resolver, exhibitRepo, audienceRepo, logger)
	validateToken := func(token string) (uuid.UUID, error) {
		c, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, err
		}
		return c.UserID, nil
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Claims.SweepSchedule, func() {
		if n := claims.Sweep(); n > 0 {
			logger.Debug("claims cache swept", zap.Int("evicted", n))
		}
	}); err != nil {
		logger.Fatal("claims sweep schedule", zap.String("spec", cfg.Claims.SweepSchedule), zap.Error(err))
	}
	scheduler.Start()

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(config.SplitTrim(cfg.Server.CORSAllowedOrigins, ",")))
	engine.Use(middleware.Logger(logger))

	engine.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := engine.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	api := engine.Group("")
	api.Use(middleware.JWT(jwtService), middleware.Claims(claims, logger))
	{
		api.GET("/auth/me", authHandler.Me)

		// Users
		api.GET("/users", middleware.RequireSystemPermission(authz.ViewUsers, authz.ManageUsers), authHandler.List)
		api.GET("/users/:id", middleware.RequireSystemPermission(authz.ViewUsers, authz.ManageUsers), authHandler.GetByID)
		api.POST("/users", middleware.RequireSystemPermission(authz.ManageUsers), authHandler.Create)
		api.PUT("/users/:id/role", middleware.RequireSystemPermission(authz.ManageUsers, authz.ManageRoles), authHandler.SetSystemRole)
		api.GET("/roles", membershipHandler.ListRoles)

		// Collections and their content
		api.GET("/collections", collectionHandler.List)
		api.POST("/collections", collectionHandler.Create)
		api.GET("/collections/:id", collectionHandler.GetByID)
		api.PUT("/collections/:id", collectionHandler.Update)
		api.DELETE("/collections/:id", collectionHandler.Delete)
		api.POST("/collections/:id/copy", collectionHandler.Copy)
		api.GET("/collections/:id/cards", cardHandler.ListByCollection)
		api.GET("/collections/:id/articles", articleHandler.ListByCollection)
		api.GET("/collections/:id/memberships", membershipHandler.List(authz.ScopeCollection))
		api.POST("/collections/:id/memberships", membershipHandler.Create(authz.ScopeCollection))
		api.PUT("/collection-memberships/:id", membershipHandler.Update(authz.ScopeCollection))
		api.DELETE("/collection-memberships/:id", membershipHandler.Delete(authz.ScopeCollection))

		api.POST("/cards", cardHandler.Create)
		api.GET("/cards/:id", cardHandler.GetByID)
		api.PUT("/cards/:id", cardHandler.Update)
		api.DELETE("/cards/:id", cardHandler.Delete)
		api.GET("/cards/:id/articles", articleHandler.ListByCard)

		api.POST("/articles", articleHandler.Create)
		api.GET("/articles/:id", articleHandler.GetByID)
		api.PUT("/articles/:id", articleHandler.Update)
		api.DELETE("/articles/:id", articleHandler.Delete)
		api.POST("/articles/:id/share", articleHandler.Share)

		// Exhibits
		api.GET("/exhibits", exhibitHandler.List)
		api.POST("/exhibits", exhibitHandler.Create)
		api.GET("/exhibits/:id", exhibitHandler.GetByID)
		api.PUT("/exhibits/:id", exhibitHandler.Update)
		api.PUT("/exhibits/:id/move", exhibitHandler.SetMoveAndInject)
		api.DELETE("/exhibits/:id", exhibitHandler.Delete)
		api.GET("/exhibits/:id/articles", articleHandler.ListByExhibit)
		api.GET("/exhibits/:id/teams", teamHandler.ListByExhibit)
		api.POST("/exhibits/:id/teams", teamHandler.Create)
		api.GET("/exhibits/:id/teams/:teamId/articles", userArticleHandler.GetByExhibitTeam)
		api.GET("/exhibits/:id/user-articles/mine", userArticleHandler.GetMine)
		api.GET("/exhibits/:id/user-articles/unread-count", userArticleHandler.GetUnreadCount)
		api.GET("/exhibits/:id/memberships", membershipHandler.List(authz.ScopeExhibit))
		api.POST("/exhibits/:id/memberships", membershipHandler.Create(authz.ScopeExhibit))
		api.PUT("/exhibit-memberships/:id", membershipHandler.Update(authz.ScopeExhibit))
		api.DELETE("/exhibit-memberships/:id", membershipHandler.Delete(authz.ScopeExhibit))
		api.PUT("/user-articles/:id/read", userArticleHandler.SetRead)

		// Teams
		api.GET("/teams/:id", teamHandler.GetByID)
		api.PUT("/teams/:id", teamHandler.Update)
		api.DELETE("/teams/:id", teamHandler.Delete)
		api.GET("/teams/:id/users", teamHandler.ListUsers)
		api.POST("/teams/:id/users", teamHandler.AddUser)
		api.DELETE("/teams/:id/users/:userId", teamHandler.RemoveUser)
		api.GET("/teams/:id/cards", teamHandler.ListCards)
		api.PUT("/teams/:id/cards/:cardId", teamHandler.UpsertCard)
		api.DELETE("/teams/:id/cards/:cardId", teamHandler.DeleteCard)

		// Groups
		api.GET("/groups", membershipHandler.ListGroups)
		api.POST("/groups", membershipHandler.CreateGroup)
		api.GET("/groups/:id", membershipHandler.GetGroup)
		api.PUT("/groups/:id", membershipHandler.UpdateGroup)
		api.DELETE("/groups/:id", membershipHandler.DeleteGroup)
		api.GET("/groups/:id/memberships", membershipHandler.ListGroupMembers)
		api.POST("/groups/:id/memberships", membershipHandler.AddGroupMember)
		api.DELETE("/group-memberships/:id", membershipHandler.RemoveGroupMember)
	}

	// WebSocket (token in query; no Authorization header required)
	engine.GET("/ws/main", realtime.ServeWs(mainHub, logger, validateToken, subscriptions.Defaults, subscriptions.CanJoin))
	engine.GET("/ws/unread", realtime.ServeWs(unreadHub, logger, validateToken, subscriptions.UserOnly, subscriptions.CanJoin))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	<-scheduler.Stop().Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	zcfg := zap.NewProductionConfig()
	zcfg.EncoderConfig.TimeKey = "timestamp"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := zcfg.Build()
	return logger
}
