package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/videowizard/render-api/internal/config"
	"github.com/videowizard/render-api/internal/engine"
	"github.com/videowizard/render-api/internal/handler"
	"github.com/videowizard/render-api/internal/logging"
	"github.com/videowizard/render-api/internal/middleware"
	"github.com/videowizard/render-api/internal/queue"
	ws "github.com/videowizard/render-api/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Server.LogDir, cfg.Server.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	rendersDir, err := filepath.Abs(cfg.Render.Dir)
	if err != nil {
		logger.WithError(err).Fatal("invalid renders directory")
	}
	if err := os.MkdirAll(rendersDir, 0o755); err != nil {
		logger.WithError(err).Fatal("failed to create renders directory")
	}

	// Redis is optional; without it the rate limiter runs in-process.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.WithError(err).Warn("Redis not available, rate limiting degrades to fail-open")
		}
	}

	// Resolve the composition bundle: use a pre-built one, or build at startup.
	serveURL := cfg.Engine.ServeURL
	if serveURL == "" {
		logger.WithField("entry", cfg.Engine.BundleEntry).Info("building composition bundle")
		serveURL, err = engine.Bundle(context.Background(), cfg.Engine.Binary, cfg.Engine.BundleEntry, cfg.Engine.BundleOut)
		if err != nil {
			logger.WithError(err).Fatal("failed to build composition bundle")
		}
	}

	eng := engine.NewCLI(engine.CLIConfig{
		ServeURL: serveURL,
		Binary:   cfg.Engine.Binary,
	}, logger)

	registry := queue.NewRegistry()
	renderQueue := queue.New(queue.Config{
		RendersDir:    rendersDir,
		PublicURL:     cfg.Server.PublicURL,
		RenderTimeout: cfg.Render.Timeout,
	}, eng, registry, logger)

	hub := ws.NewHub(logger)
	go hub.Run()
	renderQueue.SetNotifier(hub.BroadcastJob)

	renderQueue.Start()
	defer renderQueue.Stop()

	validate := validator.New()
	renderHandler := handler.NewRenderHandler(renderQueue, validate)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    10 * 1024 * 1024, // 10MB: subtitle payloads only
	})

	app.Use(recover.New())
	requestLog, err := logging.NewRequestLoggerConfig(cfg.Server.LogDir)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize request logger")
	}
	app.Use(fiberlogger.New(*requestLog))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	app.Get("/health", handler.Health)

	// Rendered artifacts are served statically, named by job id.
	app.Static("/renders", rendersDir)

	app.Post("/renders", rateLimiter.RenderLimit(cfg.Render.RatePerHour), renderHandler.Create)
	app.Get("/renders", renderHandler.List)
	app.Get("/renders/:jobId", renderHandler.Get)
	app.Delete("/renders/:jobId", renderHandler.Cancel)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/renders/:jobId", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("jobId"))
	}))

	// Terminal jobs and their files are swept hourly.
	if cfg.Render.Retention > 0 {
		sweeper := cron.New()
		if _, err := sweeper.AddFunc("@hourly", func() {
			renderQueue.EvictTerminal(cfg.Render.Retention)
		}); err != nil {
			logger.WithError(err).Fatal("failed to schedule retention sweep")
		}
		sweeper.Start()
		defer sweeper.Stop()
	}

	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		addr := ":" + cfg.Server.Port
		logger.WithField("addr", addr).Info("render server starting")
		return app.Listen(addr)
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			logger.Info("shutting down server")
			return app.ShutdownWithTimeout(10 * time.Second)
		case <-ctx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Fatal("server error")
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
