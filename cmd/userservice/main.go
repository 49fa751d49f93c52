package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/modu-market/backend/internal/client"
	"github.com/modu-market/backend/internal/config"
	"github.com/modu-market/backend/internal/db"
	"github.com/modu-market/backend/internal/handler"
	"github.com/modu-market/backend/internal/logging"
	"github.com/modu-market/backend/internal/model"
	"github.com/modu-market/backend/internal/service"
	"github.com/modu-market/backend/internal/session"
	"github.com/modu-market/backend/internal/token"
)

func main() {
	// .env는 로컬 개발 편의용. 없으면 무시.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.NewDefault("user-service")
	ctx := context.Background()

	if cfg.Token.Secret == "" {
		log.Fatal("TOKEN_SECRET is required")
	}

	pg, err := db.NewPostgres(ctx)
	if err != nil {
		log.Fatalf("postgres init failed: %v", err)
	}
	defer pg.Pool.Close()

	if err := pg.EnsureUserSchema(ctx); err != nil {
		log.Fatalf("user schema init failed: %v", err)
	}

	var sessions session.Store
	if os.Getenv("SESSION_STORE") == "memory" {
		sessions = session.NewMemoryStore()
	} else {
		store := session.NewPostgresStore(pg.Pool)
		if err := store.EnsureSchema(ctx); err != nil {
			log.Fatalf("session schema init failed: %v", err)
		}
		sessions = store
	}

	codec := token.NewCodec(cfg.Token.Secret,
		cfg.Token.AccessTTLDuration(), cfg.Token.RefreshTTLDuration())

	kakao := client.NewKakaoClient(cfg.Kakao)
	if !kakao.IsConfigured() {
		logger.Warn(ctx, "kakao oauth not configured, social login disabled")
	}

	var mailer client.Mailer
	if cfg.Mail.Host != "" {
		mailer = client.NewSMTPMailer(cfg.Mail.Host, cfg.Mail.Port,
			cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.From)
	} else {
		mailer = client.NewLogMailer(logger)
	}

	authSvc := service.NewAuthService(pg, sessions, codec, kakao, mailer,
		logger, cfg.Token.RefreshTTLDuration())
	users := handler.NewUserHandler(authSvc, kakao, cfg.Server.FrontendURL)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handler.CORSMiddleware([]string{cfg.Server.FrontendURL}))

	user := router.Group("/user")
	{
		user.POST("/create", users.Create)
		user.POST("/doLogin", users.DoLogin)
		user.POST("/refresh", users.Refresh)
		user.POST("/email-valid", users.EmailValid)
		user.POST("/verify", users.Verify)
		user.GET("/kakao", users.KakaoCallback)
		user.GET("/kakao/authorize", users.KakaoAuthorize)
		user.GET("/health-check", handler.HealthCheck)

		// ordering-service 등 내부 서비스 전용 조회
		user.GET("/findByEmail", users.FindByEmail)

		authed := user.Group("", handler.AuthMiddleware(codec))
		{
			authed.GET("/myInfo", users.MyInfo)
			authed.POST("/logout", users.Logout)
			authed.GET("/list", handler.RequireRole(model.RoleAdmin), users.List)
		}
	}

	logger.Info(ctx, "user service starting", "port", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
