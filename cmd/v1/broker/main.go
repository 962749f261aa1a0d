package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/RoseWrightdev/Remote-Control/internal/v1/auth"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/config"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/downloads"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/gateway"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/health"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/logging"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/middleware"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/ratelimit"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/remote"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/rooms"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/tracing"
	redislib "github.com/redis/go-redis/v9"
)

func main() {
	// Load .env for local development. Try a few paths to handle different
	// ways of running the binary.
	for _, path := range []string{".env", "../../../.env", "../../.env"} {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		// Logging is not initialized yet.
		os.Stderr.WriteString("environment validation failed: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		os.Stderr.WriteString("logger initialization failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	ctx := context.Background()

	// Optional OTLP tracing.
	var tracerShutdown func(context.Context) error
	if cfg.OtelCollectorAddr != "" {
		tp, err := tracing.InitTracer(ctx, "remote-broker", cfg.OtelCollectorAddr)
		if err != nil {
			logging.Warn(ctx, "tracing disabled", zap.Error(err))
		} else {
			tracerShutdown = tp.Shutdown
		}
	}

	// Optional JWT admission mode. Without it the gate falls back to the
	// shared token, or to open admission when that is unset too.
	var validator auth.TokenValidator
	if cfg.AuthJWTDomain != "" && cfg.AuthJWTAudience != "" {
		v, err := auth.NewValidator(ctx, cfg.AuthJWTDomain, cfg.AuthJWTAudience)
		if err != nil {
			logging.Fatal(ctx, "failed to create auth validator", zap.Error(err))
		}
		validator = v
		logging.Info(ctx, "JWT admission enabled", zap.String("domain", cfg.AuthJWTDomain))
	}
	gate := auth.NewGate(cfg.RemoteControlToken, validator)

	// Optional redis: rate-limiter store and readiness probe.
	var redisClient *redislib.Client
	if cfg.RedisAddr != "" {
		redisClient = redislib.NewClient(&redislib.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logging.Warn(ctx, "redis unreachable, using in-memory rate limiting", zap.Error(err))
			redisClient = nil
		}
	}

	limiter, err := ratelimit.New(cfg.RateLimitWsIP, redisClient, true)
	if err != nil {
		logging.Fatal(ctx, "failed to create rate limiter", zap.Error(err))
	}

	hub := gateway.NewHub(gate, limiter, cfg.AllowedOrigins())
	roomEngine := rooms.NewEngine(hub, cfg.RoomAutoCreateOnJoin)
	remoteEngine := remote.NewEngine(hub, remote.Config{
		AllowSameMachine: cfg.AllowSameMachine,
		Debug:            cfg.RemoteDebug,
	})
	hub.Attach(roomEngine, remoteEngine)

	if !cfg.DevelopmentMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	if tracerShutdown != nil {
		router.Use(otelgin.Middleware("remote-broker"))
	}

	corsConfig := cors.DefaultConfig()
	if cfg.AllowAllOrigins() {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins()
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", "X-Correlation-ID")
	router.Use(cors.New(corsConfig))

	router.GET("/ws", hub.ServeWs)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	checker := health.NewChecker(redisClient)
	router.GET("/health", checker.Root)
	router.GET("/health/live", checker.Live)
	router.GET("/health/ready", checker.Ready)

	dl := downloads.NewHandler(cfg.HostAppZipPath)
	router.GET("/downloads/host-app-win.zip", dl.HostAppZip)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logging.Info(ctx, "broker starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error(ctx, "server failed", zap.Error(err))
			syscall.Kill(os.Getpid(), syscall.SIGTERM)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := hub.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "hub shutdown failed", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "server forced to shutdown", zap.Error(err))
	}
	if tracerShutdown != nil {
		if err := tracerShutdown(shutdownCtx); err != nil {
			logging.Error(ctx, "tracer shutdown failed", zap.Error(err))
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logging.Error(ctx, "redis close failed", zap.Error(err))
		}
	}
	logging.Info(ctx, "server exiting")
}
