package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/giginltd/gigin_backend/billing"
	"github.com/giginltd/gigin_backend/config"
	"github.com/giginltd/gigin_backend/jobs"
	"github.com/giginltd/gigin_backend/middlewares"
	"github.com/giginltd/gigin_backend/models"
	"github.com/giginltd/gigin_backend/notify"
	"github.com/giginltd/gigin_backend/tasks"
	"github.com/giginltd/gigin_backend/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

const tasksQueueName = "billing-deferred"

var tracer = otel.Tracer("gigin-backend")

// app holds the wired engine. Populated in main after dependencies connect;
// the readiness gate returns 503 until then.
type appState struct {
	engine  *billing.Engine
	webhook *billing.WebhookProcessor
	sweeper *billing.Sweeper
}

var app *appState

type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Shutdown coordination.
	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis/Stripe wiring are ready, we return 503 for app endpoints.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow the Cloud Run startup health check.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate critical endpoints on dependency readiness.
		if config.GetDB() == nil || config.GetRedisDB() == nil || app == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production-safe CORS:
	// - In production, require explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	// - In non-production, allow all (developer convenience).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if config.IsProduction() {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))

	// Optional rate limiting (recommended for production).
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := &RateLimiter{limit: limit, window: time.Duration(windowSec) * time.Second}
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	// Payment flows (venue-facing).
	r.POST("/payments/intents", middlewares.RequireUser(), createIntentHandler())
	r.POST("/payments/confirm", middlewares.RequireUser(), confirmPaymentHandler())
	r.POST("/fees/dispute", middlewares.RequireUser(), disputeHandler())
	r.POST("/payouts", middlewares.RequireUser(), payoutHandler())

	// Stripe calls this; auth is the signature header.
	r.POST("/webhooks/stripe", stripeWebhookHandler())

	// Cloud Tasks callbacks, OIDC verified.
	taskAudience := config.GetTasksTargetBaseURL()
	taskAuth := middlewares.TaskAuthMiddleware(taskAudience)
	r.POST(tasks.ClearFeePath, taskAuth, clearFeeTaskHandler())
	r.POST(tasks.ReviewPromptPath, taskAuth, reviewPromptTaskHandler())
	r.POST(tasks.RequeuePath, taskAuth, requeueTaskHandler())

	// Ops tooling (admin only).
	r.POST("/internal/ops/sweep", middlewares.RequireUser(), middlewares.RequireAdmin(), sweepHandler())
	r.POST("/internal/tasks/cancel", middlewares.RequireUser(), middlewares.RequireAdmin(), cancelTaskHandler())

	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (Cloud Run checks the TCP port first).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	// Now DB is ready; run migrations.
	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// IMPORTANT: AutoMigrate can run DDL that blocks tables and causes 504/502 timeouts.
	// Allow disabling migrations on startup (run them as a separate job instead).
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Wire the billing engine once its backends exist.
	engine := buildEngine(logger)
	app = &appState{
		engine:  engine,
		webhook: billing.NewWebhookProcessor(engine, config.GetStripeWebhookSecret(), logger),
		sweeper: billing.NewSweeper(engine, billing.NewRedisLeaser(config.GetRedisLock()), logger),
	}

	// Start mail outbox dispatcher (sends AFTER commit).
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	go notify.NewMailDispatcher(db, notify.NewHTTPSender(), logger).Run(dispatcherCtx)

	// Start the periodic payment sweep.
	var jobManager *jobs.Manager
	if config.SweeperEnabled() {
		var err error
		jobManager, err = jobs.Start(app.sweeper, logger)
		if err != nil {
			config.LogError(logger, "main", "main", "start job manager", nil, err)
		}
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while we're draining.
	cancelDispatcher()
	if jobManager != nil {
		jobManager.Stop()
	}

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

func buildEngine(logger *logrus.Logger) *billing.Engine {
	gateway := billing.NewStripeGateway()

	var scheduler *tasks.Scheduler
	queuePath, err := config.GetTasksQueuePath(tasksQueueName)
	if err != nil {
		config.LogError(logger, "main", "buildEngine", "resolve tasks queue", nil, err)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		client, err := config.GetTasksClient(ctx)
		if err != nil {
			config.LogError(logger, "main", "buildEngine", "init cloud tasks client", nil, err)
		} else {
			scheduler = tasks.NewScheduler(
				&tasks.CloudTasksEnqueuer{Client: client},
				queuePath,
				config.GetTasksTargetBaseURL(),
				config.GetTasksServiceAccountEmail(),
			)
		}
	}

	return billing.NewEngine(gateway, scheduler, logger)
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// Middleware function to check rate limits.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	client := rl.client
	if client == nil {
		client = config.GetRedisDB()
		if client == nil {
			c.Next()
			return
		}
		rl.client = client
	}

	// IP-based rate limiting.
	key := "ratelimit:" + c.ClientIP()

	exists, err := client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the key doesn't exist, create it and set expiry.
	if exists == 0 {
		err := client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	count, err := client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
