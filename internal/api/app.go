package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/arise/internal/catalog"
	"github.com/felixgeelhaar/arise/internal/config"
	"github.com/felixgeelhaar/arise/internal/domain"
	"github.com/felixgeelhaar/arise/internal/leaderboard"
	"github.com/felixgeelhaar/arise/internal/queue"
	"github.com/felixgeelhaar/arise/internal/repository"
	"github.com/felixgeelhaar/arise/internal/scoring"
	"github.com/felixgeelhaar/arise/internal/storage/postgres"
	"github.com/felixgeelhaar/arise/internal/storage/sqlite"
)

// cacheRefreshInterval bounds how long the leaderboard cache can drift
const cacheRefreshInterval = time.Minute

// ReadModel serves the leaderboard, ledger history and audit queries
type ReadModel interface {
	domain.LeaderboardReader
	domain.LedgerReader
	domain.LedgerAuditor
}

// App holds all application dependencies
type App struct {
	Config      *config.Config
	Catalog     *catalog.Catalog
	Store       domain.Store
	Reads       ReadModel
	Scoring     *scoring.Service
	Leaderboard *leaderboard.Service
	Events      *domain.EventDispatcher

	readDB   *sql.DB // Postgres read side, nil for SQLite
	cache    *leaderboard.RedisCache
	conn     *queue.Connection
	consumer *queue.Consumer
	cancel   context.CancelFunc
}

// NewApp creates a new application instance with all dependencies wired
func NewApp(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	app := &App{
		Config: cfg,
		Events: domain.NewEventDispatcher(),
	}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	// Load the challenge catalog
	if cfg.CatalogPath != "" {
		app.Catalog, err = catalog.NewLoader(cfg.CatalogPath).Load()
	} else {
		app.Catalog, err = catalog.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	if err := app.openStore(ctx); err != nil {
		return nil, err
	}

	if err := app.Store.SeedChallenges(ctx, app.Catalog.List()); err != nil {
		return nil, fmt.Errorf("seed challenges: %w", err)
	}
	slog.Info("challenge catalog loaded", "challenges", app.Catalog.Len(), "max_score", app.Catalog.MaxScore())

	app.Scoring = scoring.NewService(app.Store, app.Catalog)
	app.Leaderboard = leaderboard.NewService(app.Reads, cfg.LeaderboardSize)

	// Optional leaderboard cache
	if cfg.RedisAddr != "" {
		app.cache, err = leaderboard.NewRedisCache(ctx, leaderboard.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		app.Leaderboard.SetCache(app.cache)
		if err := app.Leaderboard.Warm(ctx); err != nil {
			slog.Warn("leaderboard cache warm failed", "error", err)
		}
	}

	app.Events.Subscribe(domain.EventRankChanged, logRankChange)

	// Optional event bus. With RabbitMQ the leaderboard is fed by the
	// consumer, otherwise directly by the in-process dispatcher.
	if cfg.RabbitMQURL != "" {
		app.conn, err = queue.NewConnection(cfg.RabbitMQURL)
		if err != nil {
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		producer := queue.NewResilientPublisher(queue.NewProducer(app.conn), queue.DefaultResilientConfig())
		app.Scoring.SetPublisher(queue.FanOut{app.Events, producer})
		app.consumer = queue.NewConsumer(app.conn, app.applyEvent, queue.DefaultConsumerConfig())
	} else {
		app.Events.SubscribeAll(app.Leaderboard.HandleEvent)
		app.Scoring.SetPublisher(app.Events)
	}

	return app, nil
}

func (a *App) openStore(ctx context.Context) error {
	switch a.Config.StoreDriver {
	case config.DriverPostgres:
		pool, err := postgres.OpenPool(ctx, a.Config.DatabaseURL, postgres.DefaultPoolConfig())
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return fmt.Errorf("migrate postgres: %w", err)
		}
		a.Store = postgres.NewStore(pool)

		a.readDB, err = repository.Open(ctx, a.Config.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open read model: %w", err)
		}
		a.Reads = repository.NewReadRepository(a.readDB)
		logPool(pool)

	default:
		store, err := sqlite.OpenStore(ctx, a.Config.SQLiteFile())
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		a.Store = store
		a.Reads = store
		slog.Info("using sqlite store", "path", a.Config.SQLiteFile())
	}
	return nil
}

func logPool(pool *pgxpool.Pool) {
	cfg := pool.Config()
	slog.Info("using postgres store",
		"host", cfg.ConnConfig.Host,
		"database", cfg.ConnConfig.Database,
		"max_conns", cfg.MaxConns,
	)
}

// applyEvent feeds queued scoring events to the leaderboard cache
func (a *App) applyEvent(ctx context.Context, msg *queue.EventMessage) error {
	if msg.Type == domain.EventRankChanged {
		return nil
	}
	return a.Leaderboard.Apply(ctx, msg)
}

func logRankChange(ctx context.Context, event domain.Event) {
	e, ok := event.(domain.RankChangedEvent)
	if !ok {
		return
	}
	slog.Info("rank changed",
		"user_id", e.UserID,
		"username", e.Username,
		"from", e.From,
		"to", e.To,
		"score", e.Score,
		"promoted", e.Promoted(),
	)
}

// Start runs the background workers: the event consumer and the
// leaderboard cache refresh. They stop when ctx is done or on Close.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	if a.consumer != nil {
		if err := a.consumer.Start(ctx); err != nil {
			return fmt.Errorf("start consumer: %w", err)
		}
	}
	go a.Leaderboard.Refresh(ctx, cacheRefreshInterval)
	return nil
}

// Ready checks the store
func (a *App) Ready(ctx context.Context) error {
	return a.Store.Ping(ctx)
}

// Close cleans up application resources
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		a.consumer.Stop()
	}

	var errs []error
	if a.conn != nil {
		errs = append(errs, a.conn.Close())
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.readDB != nil {
		errs = append(errs, a.readDB.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
