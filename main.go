package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"equireach/config"
	"equireach/middleware"
	"equireach/routes"
	"equireach/utils"
	"equireach/worker"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

func main() {
	issueToken := flag.String("issue-token", "", "print an access token for the given operator id and exit")
	tokenTTL := flag.Duration("token-ttl", 30*24*time.Hour, "lifetime of tokens printed by -issue-token")
	flag.Parse()

	if err := config.LoadConfig(); err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := config.AppConfig

	if *issueToken != "" {
		token, err := utils.GenerateOperatorToken(*issueToken, cfg.JWTSecret, *tokenTTL)
		if err != nil {
			logrus.Fatalf("Failed to issue token: %v", err)
		}
		fmt.Println(token)
		return
	}

	utils.InitLogger(cfg.LogLevel, cfg.Environment)
	logger := utils.NewLogger("server")

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
		}); err != nil {
			logger.WithError(err).Warn("Sentry initialization failed")
		}
		defer sentry.Flush(2 * time.Second)
	}

	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	history := utils.NewHistoryStore(config.DB)
	renderer := utils.NewMessageRenderer(cfg.Outreach.OrganizationName)
	mailer := utils.NewOutreachMailer(utils.MailerConfig{
		Host:       cfg.SMTP.Host,
		Port:       cfg.SMTP.Port,
		Username:   cfg.SMTP.Username,
		Password:   cfg.SMTP.Password,
		Encryption: cfg.SMTP.Encryption,
		FromEmail:  cfg.Outreach.FromEmail,
	})

	engine := worker.NewDispatchEngine(mailer, history, renderer, worker.DispatchConfig{
		SenderLabel:          cfg.Outreach.SenderLabel,
		CampaignLabel:        cfg.Outreach.CampaignLabel,
		InterMessageDelay:    cfg.Outreach.InterMessageDelay,
		PersonalizationDelay: cfg.Outreach.PersonalizationDelay,
	}, utils.NewLogger("dispatch"))

	var searcher utils.ContactSearcher
	if cfg.Gemini.APIKey != "" {
		gemini, err := utils.NewGeminiSearcher(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			logger.WithError(err).Warn("Contact discovery disabled")
		} else {
			searcher = gemini
		}
	} else {
		logger.Info("GEMINI_API_KEY not set, contact discovery disabled")
	}

	replyWorker := worker.NewReplyWorker(cfg.IMAP, history, utils.NewLogger("replies"))
	go replyWorker.Start(ctx)

	app := fiber.New(fiber.Config{
		AppName:   "equireach",
		BodyLimit: 6 * 1024 * 1024,
	})
	app.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.AllowedOrigins)))

	routes.SetupRoutes(app, &routes.Services{
		Searcher:   searcher,
		Workspaces: utils.NewWorkspaceRegistry(),
		Renderer:   renderer,
		Engine:     engine,
		History:    history,
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Info("Shutting down...")
		engine.Cancel()
		engine.Wait()
		cancel()
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	logger.WithField("port", cfg.ServerPort).Info("Server starting")
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
