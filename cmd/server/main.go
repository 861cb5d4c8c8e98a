package main // Entry point package

import (
    "context"
    "log"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"

    "github.com/iliyamo/idea-marketplace/internal/config"
    "github.com/iliyamo/idea-marketplace/internal/database"
    "github.com/iliyamo/idea-marketplace/internal/gateway"
    "github.com/iliyamo/idea-marketplace/internal/handler"
    appmw "github.com/iliyamo/idea-marketplace/internal/middleware"
    "github.com/iliyamo/idea-marketplace/internal/queue"
    "github.com/iliyamo/idea-marketplace/internal/repository"
    "github.com/iliyamo/idea-marketplace/internal/reservation"
    "github.com/iliyamo/idea-marketplace/internal/router"
    queue_publisher "github.com/iliyamo/idea-marketplace/internal/service"
    "github.com/iliyamo/idea-marketplace/internal/worker"
)

func main() {
    // .env is optional; real deployments set the environment directly.
    _ = godotenv.Load()
    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()
    if err := database.Migrate(db, "migrations"); err != nil {
        log.Fatalf("database: %v", err)
    }

    // Redis powers the response cache and rate limiter; a nil client
    // degrades both to pass-through.
    rdb := config.NewRedisClient()
    if rdb == nil {
        log.Printf("redis: unavailable, cache and rate limiting disabled")
    }

    userRepo := repository.NewUserRepo(db)
    tokenRepo := repository.NewTokenRepo(db)
    ideaRepo := repository.NewIdeaRepo(db)
    paymentRepo := repository.NewPaymentRepo(db)

    gw := gateway.NewHTTPClient(cfg.GatewayBaseURL, cfg.GatewayAPIKey, 10*time.Second)
    verifier := gateway.NewWebhookVerifier(cfg.WebhookSecret)

    cacheCfg := config.LoadCacheConfig()
    feedCache := queue_publisher.NewFeedCache(rdb, cacheCfg.Prefix)

    var notifier reservation.PayoutNotifier
    if cfg.RabbitURL != "" {
        notifier = queue_publisher.NewPayoutPublisher(cfg.RabbitURL)
        go func() {
            if err := queue.StartPayoutConsumer(cfg.RabbitURL); err != nil {
                log.Printf("payout-consumer: %v", err)
            }
        }()
    } else {
        log.Printf("rabbitmq: no URL configured, payout events disabled")
    }

    manager := reservation.NewManager(paymentRepo, gw, cfg.Currency, feedCache)
    reconciler := reservation.NewReconciler(paymentRepo, verifier, notifier, feedCache)

    sweepCtx, stopSweep := context.WithCancel(context.Background())
    sweeper := worker.NewSweeper(manager, cfg.SweepInterval, cfg.SweepGrace)
    go sweeper.Start(sweepCtx)

    e := echo.New()
    e.HideBanner = true
    e.Validator = handler.NewValidator()
    e.Use(echomw.Recover())
    e.Use(echomw.Logger())
    e.Use(appmw.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

    router.RegisterRoutes(e)
    router.RegisterAuth(e, handler.NewAuthHandler(cfg, userRepo, tokenRepo), cfg.JWTSecret)
    // The response cache covers the public feed only; authenticated
    // responses are per user and must not be replayed across accounts.
    router.RegisterIdeas(e, handler.NewIdeaHandler(ideaRepo), cfg.JWTSecret, appmw.NewRedisCache(cacheCfg, rdb))
    router.RegisterPayments(e, handler.NewPaymentHandler(manager, reconciler, userRepo), cfg.JWTSecret)
    router.RegisterAdmin(e, handler.NewAdminHandler(paymentRepo), cfg.JWTSecret)

    go func() {
        addr := ":" + cfg.Port
        log.Printf("listening on %s (env=%s)", addr, cfg.Env)
        if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
            log.Fatalf("server: %v", err)
        }
    }()

    // Block until interrupted, then drain in order: stop taking
    // requests, stop the sweeper, close connections.
    quit := make(chan os.Signal, 1)
    signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
    <-quit
    log.Printf("shutting down")

    shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    if err := e.Shutdown(shutdownCtx); err != nil {
        log.Printf("server shutdown: %v", err)
    }
    stopSweep()
    sweeper.Stop()
    if rdb != nil {
        _ = rdb.Close()
    }
}
