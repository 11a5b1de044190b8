package main // HTTP server for the ticket reservation engine

import (
    "context"
    "errors"
    "net/http"
    "os"
    "os/signal"
    "sync"
    "syscall"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/ticket-inventory/internal/app"
    "github.com/iliyamo/ticket-inventory/internal/config"
    "github.com/iliyamo/ticket-inventory/internal/handler"
    "github.com/iliyamo/ticket-inventory/internal/media"
    "github.com/iliyamo/ticket-inventory/internal/middleware"
    "github.com/iliyamo/ticket-inventory/internal/queue"
    "github.com/iliyamo/ticket-inventory/internal/router"
)

func main() {
    boot := app.NewLogger("info")
    if err := config.LoadDotEnv(); err != nil {
        boot.Error("load .env", "error", err)
        os.Exit(1)
    }
    cfg, err := config.Load()
    if err != nil {
        boot.Error("invalid configuration", "error", err)
        os.Exit(1)
    }
    log := app.NewLogger(cfg.LogLevel)

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    a, err := app.Open(ctx, cfg, log, true)
    if err != nil {
        log.Error("startup failed", "error", err)
        os.Exit(1)
    }
    defer a.Close()

    var workers sync.WaitGroup
    run := func(f func(context.Context)) {
        workers.Add(1)
        go func() { defer workers.Done(); f(ctx) }()
    }
    run(a.Sweeper.Run)
    run(a.Reconciler.Run)
    if cfg.Broker == "rabbitmq" && envOn("BOOKING_LOG_ENABLED") {
        consumer := queue.NewBookingLogConsumer(cfg.RabbitURL, os.Getenv("BOOKING_LOG_PATH"), log)
        run(func(ctx context.Context) {
            if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
                log.Error("booking log consumer stopped", "error", err)
            }
        })
    }

    e := echo.New()
    e.HideBanner = true
    var scripter redis.Scripter
    if a.Redis != nil {
        scripter = a.Redis
    }
    router.Register(e, router.Deps{
        JWTSecret:    cfg.JWTSecret,
        Ready:        a.DB,
        Reservations: handler.NewReservationHandler(a.Coordinator, cfg.HandleSecret, cfg.HandleTTL, log),
        Tickets:      handler.NewTicketHandler(a.Tickets, a.Orders, a.Ledger, a.Clock, log),
        RateLimit:    middleware.NewTokenBucket(config.LoadRateLimitConfig(), scripter, log),
    })
    if ds, ok := a.Media.(*media.DiskStore); ok {
        e.Static("/media", ds.Dir())
    }

    go func() {
        addr := ":" + cfg.Port
        log.Info("listening", "addr", addr, "env", cfg.Env, "lock_backend", cfg.LockBackend, "lock_scope", cfg.LockScope, "broker", cfg.Broker)
        if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
            log.Error("server failed", "error", err)
            stop()
        }
    }()

    <-ctx.Done()
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    if err := e.Shutdown(shutdownCtx); err != nil {
        log.Error("shutdown", "error", err)
    }
    workers.Wait()
    log.Info("stopped")
}

func envOn(key string) bool {
    switch os.Getenv(key) {
    case "1", "true", "yes", "on":
        return true
    }
    return false
}
