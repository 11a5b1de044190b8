// Package app assembles the reservation engine from configuration. Both
// the HTTP server and ledgerctl build their dependencies here.
package app

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "log/slog"
    "os"
    "strings"

    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/ticket-inventory/internal/clock"
    "github.com/iliyamo/ticket-inventory/internal/config"
    "github.com/iliyamo/ticket-inventory/internal/database"
    "github.com/iliyamo/ticket-inventory/internal/ledger"
    "github.com/iliyamo/ticket-inventory/internal/lock"
    "github.com/iliyamo/ticket-inventory/internal/media"
    "github.com/iliyamo/ticket-inventory/internal/payment"
    "github.com/iliyamo/ticket-inventory/internal/phase"
    "github.com/iliyamo/ticket-inventory/internal/repository"
    "github.com/iliyamo/ticket-inventory/internal/reservation"
    "github.com/iliyamo/ticket-inventory/internal/service"
)

// Locks is what a lock backend provides.
type Locks interface {
    reservation.LockStore
    reservation.LockSweeper
}

// App holds the wired components. Close releases what Open acquired.
type App struct {
    Config config.Config
    Log    *slog.Logger
    Clock  clock.Clock

    DB      *sql.DB
    Redis   *redis.Client
    Events  *repository.EventRepo
    Ledger  *repository.LedgerRepo
    Tickets *repository.TicketRepo
    Orders  *repository.OrderRepo
    Locks   Locks
    Media   media.Store
    Pub     service.Publisher

    Writer      *ledger.Writer
    Coordinator *reservation.Coordinator
    Sweeper     *reservation.Sweeper
    Reconciler  *ledger.Reconciler
}

// NewLogger returns a JSON slog logger at level ("debug", "info", "warn",
// "error"). Unknown levels log at info.
func NewLogger(level string) *slog.Logger {
    var lv slog.Level
    if err := lv.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
        lv = slog.LevelInfo
    }
    return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lv}))
}

// Open connects to the database, optionally migrates, and wires every
// component named by cfg.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger, migrate bool) (*App, error) {
    a := &App{Config: cfg, Log: logger, Clock: clock.Real()}
    d := database.Dialect(cfg.DBDriver)

    db, err := database.Open(ctx, database.Options{Driver: d, User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName})
    if err != nil {
        return nil, fmt.Errorf("open database: %w", err)
    }
    a.DB = db
    if migrate {
        if err := database.Migrate(ctx, db, d); err != nil {
            a.Close()
            return nil, fmt.Errorf("migrate: %w", err)
        }
    }
    a.Events = repository.NewEventRepo(db, d)
    a.Ledger = repository.NewLedgerRepo(db, d)
    a.Tickets = repository.NewTicketRepo(db, d)
    a.Orders = repository.NewOrderRepo(db, d)

    a.Redis = config.NewRedisClient(ctx)
    switch cfg.LockBackend {
    case "redis":
        if a.Redis == nil {
            a.Close()
            return nil, errors.New("LOCK_BACKEND=redis but redis is unreachable")
        }
        a.Locks = lock.NewRedisStore(a.Redis, "lock")
    default:
        a.Locks = repository.NewLockRepo(db, d)
    }

    if a.Media, err = openMedia(ctx, cfg); err != nil {
        a.Close()
        return nil, err
    }
    a.Pub = openPublisher(cfg)

    a.Writer = ledger.NewWriter(a.Ledger, a.Media, a.Pub, a.Clock, logger)
    a.Coordinator = reservation.NewCoordinator(a.Events, a.Locks, a.Writer, payment.NewVerifier(cfg.PaymentKeySecret),
        phase.NewResolver(phase.Policy(cfg.PhasePolicy), cfg.PhaseLocation), a.Clock, logger,
        reservation.Options{LockTTL: cfg.LockTTL, Scope: lock.Scope(cfg.LockScope), Currency: cfg.PaymentCurrency})
    a.Sweeper = reservation.NewSweeper(a.Locks, cfg.SweepInterval, a.Clock, logger)
    a.Reconciler = ledger.NewReconciler(a.Ledger, cfg.IntentTimeout, cfg.ReconcileInterval, a.Clock, logger)
    return a, nil
}

func openMedia(ctx context.Context, cfg config.Config) (media.Store, error) {
    if cfg.MediaBackend == "disk" {
        base := cfg.MediaBaseURL
        if base == "" {
            base = "/media"
        }
        s, err := media.NewDiskStore(cfg.MediaDir, base)
        if err != nil {
            return nil, fmt.Errorf("disk media: %w", err)
        }
        return s, nil
    }
    s, err := media.NewS3Store(ctx, media.S3Options{Bucket: cfg.MediaBucket, Region: cfg.S3Region, Endpoint: cfg.S3Endpoint, BaseURL: cfg.MediaBaseURL})
    if err != nil {
        return nil, fmt.Errorf("s3 media: %w", err)
    }
    return s, nil
}

func openPublisher(cfg config.Config) service.Publisher {
    switch cfg.Broker {
    case "rabbitmq":
        return service.NewRabbitPublisher(cfg.RabbitURL)
    case "kafka":
        return service.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
    }
    return service.NopPublisher{}
}

// Close releases connections. It is safe on a partially opened App.
func (a *App) Close() {
    if a.Pub != nil {
        if err := a.Pub.Close(); err != nil {
            a.Log.Warn("close publisher", "error", err)
        }
    }
    if a.Redis != nil {
        _ = a.Redis.Close()
    }
    if a.DB != nil {
        _ = a.DB.Close()
    }
}
