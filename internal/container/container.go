package container

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"handy/catalog/internal/cache"
	"handy/catalog/internal/cascade"
	"handy/catalog/internal/client"
	"handy/catalog/internal/config"
	"handy/catalog/internal/display"
	"handy/catalog/internal/domain"
	"handy/catalog/internal/endpoint"
	"handy/catalog/internal/filters"
	"handy/catalog/internal/invalidation"
	"handy/catalog/internal/nonce"
	"handy/catalog/internal/permalink"
	"handy/catalog/internal/queue"
	"handy/catalog/internal/render"
	"handy/catalog/internal/repository"
	"handy/catalog/internal/server"
	"handy/catalog/internal/service"
	"handy/catalog/internal/state"
)

const shutdownTimeout = 10 * time.Second

// Container holds all initialized components
type Container struct {
	Config       *config.Config
	Repository   repository.ContentRepository
	StateManager state.StateManager
	Dispatcher   *invalidation.Dispatcher
	Rewriter     *permalink.Rewriter
	Scheduler    *permalink.Scheduler
	Service      *service.Service
	Renderers    []*render.Renderer
	Router       *gin.Engine

	// queue is nil when tasks run inline
	queue queue.Queue

	db    *gorm.DB
	pool  *pgxpool.Pool
	redis *redis.Client
}

// New creates a new container with all dependencies initialized
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	container := &Container{
		Config: cfg,
	}

	if err := container.openDatabase(ctx); err != nil {
		return nil, err
	}

	if cfg.Cache.Driver == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
		})
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info("✅ Connected to Redis successfully")
		container.redis = rdb
	}

	var (
		store cache.Store
		rules permalink.RuleStore
	)
	if container.redis != nil {
		store = cache.NewRedisStore(container.redis, cfg.Redis.KeyPrefix)
		rules = permalink.NewRedisRuleStore(container.redis, cfg.Redis.KeyPrefix)
		container.StateManager = state.NewRedisStateManager(container.redis, cfg.Redis.KeyPrefix)
	} else {
		log.Warn("⚠️ Cache driver is memory: caches, rewrite rules and debounce guards are per process")
		store = cache.NewMemoryStore()
		rules = permalink.NewMemoryRuleStore()
		container.StateManager = state.NewMemoryStateManager()
	}

	repo := repository.NewContentRepository(container.db, repository.NewTables(cfg.Database.TablePrefix))
	container.Repository = repo
	terms := cache.NewTermCache(repo, store, container.StateManager, cfg.Cache.TTL)
	queries := cache.NewQueryCache(store, container.StateManager, cfg.Cache.TTL)

	resolver := filters.NewResolver(terms)
	finder := filters.NewFinder(repo, cfg.Filters.QueryCeiling)
	builder := filters.NewBuilder(resolver, repo, finder, queries)
	engine := cascade.NewEngine(resolver, finder, terms)

	var seo client.SEOClient
	if cfg.SEO.Enabled && len(cfg.SEO.Endpoints) > 0 {
		supplier := endpoint.NewSupplier(ctx, cfg.SEO.Endpoints, cfg.SEO.HealthPath)
		seo = client.NewSEOClient(cfg.SEO, supplier)
		log.Infof("🔗 SEO primary-term lookups enabled across %d origin(s)", supplier.Len())
	}

	links := permalink.New(terms, repo, seo)
	container.Rewriter = permalink.NewRewriter(links, repo, terms, rules, cfg.Filters.QueryCeiling)

	var enqueuer queue.Enqueuer
	if container.redis != nil {
		redisQueue, err := queue.NewRedisQueue(ctx, container.redis, cfg.Redis)
		if err != nil {
			container.Close()
			return nil, err
		}
		container.queue = redisQueue
		enqueuer = redisQueue
	}
	container.Service = service.NewService(
		container.Rewriter,
		container.queue,
		container.StateManager,
		cfg.Redis.ConsumerGroup,
		cfg.Redis.MinIdleTime,
	)
	if enqueuer == nil {
		enqueuer = queue.NewInline(container.Service.Handle)
	}
	container.Scheduler = permalink.NewScheduler(enqueuer, container.StateManager, cfg.Permalink.Debounce)

	dispatcher := invalidation.NewDispatcher()
	dispatcher.Subscribe(invalidation.ScopeQueries, "query_cache", queries)
	dispatcher.Subscribe(invalidation.ScopeTerms, "term_cache", terms)
	dispatcher.Subscribe(invalidation.ScopeRewrites, "rewrite_scheduler", container.Scheduler)
	container.Dispatcher = dispatcher

	secret := cfg.Nonce.Secret
	if secret == "" {
		log.Warn("⚠️ nonce.secret is empty, using a random secret: nonces will not survive a restart")
		secret = uuid.NewString()
	}
	nonces, err := nonce.NewManager(secret, cfg.Nonce.TTL)
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize nonce manager: %w", err)
	}

	deps := render.Deps{
		Sanitizer:    filters.NewSanitizer(cfg.Filters),
		Builder:      builder,
		Engine:       engine,
		Display:      display.NewResolver(terms),
		Items:        repo,
		Links:        links,
		Nonces:       nonces,
		ExcerptWords: cfg.Filters.ExcerptWords,
	}
	for _, ct := range domain.ContentTypes {
		rr, err := render.New(ct, deps)
		if err != nil {
			container.Close()
			return nil, err
		}
		container.Renderers = append(container.Renderers, rr)
	}

	if cfg.Hooks.Secret == "" {
		log.Warn("⚠️ hooks.secret is empty: /hooks/events will reject every request")
	}
	gin.SetMode(ginMode(cfg.Server.Mode))
	container.Router = server.NewRouter(server.RouterConfig{
		Renderers:  container.Renderers,
		Paths:      container.Rewriter,
		Events:     dispatcher,
		Nonces:     nonces,
		HookSecret: cfg.Hooks.Secret,
	})

	return container, nil
}

func (c *Container) openDatabase(ctx context.Context) error {
	cfg := c.Config.Database
	switch cfg.Driver {
	case "sqlite":
		db, err := repository.OpenSQLite(cfg.Path)
		if err != nil {
			return err
		}
		c.db = db
	default:
		db, pool, err := repository.OpenPostgres(ctx, cfg)
		if err != nil {
			return err
		}
		c.db = db
		c.pool = pool
	}
	log.WithField("driver", cfg.Driver).Info("✅ Connected to database successfully")

	if cfg.AutoMigrate {
		if err := repository.AutoMigrate(c.db, repository.NewTables(cfg.TablePrefix)); err != nil {
			return err
		}
		log.Info("✅ Schema migrated")
	}
	return nil
}

func ginMode(mode string) string {
	switch mode {
	case gin.DebugMode, gin.TestMode:
		return mode
	default:
		return gin.ReleaseMode
	}
}

// Run serves HTTP and, when tasks go through Redis streams, runs the rewrite
// workers until ctx is cancelled.
func (c *Container) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              c.Config.Server.Addr(),
		Handler:           c.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Infof("🚀 Listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if c.queue != nil {
		g.Go(func() error {
			return c.Service.RunWorkers(ctx, c.Config.Worker.Count)
		})
	}

	return g.Wait()
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Info("Shutting down container...")

	var errs []error
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}
	if c.pool != nil {
		c.pool.Close()
	} else if c.db != nil {
		if sqlDB, err := c.db.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}

	log.Info("Container shut down successfully")
	return errors.Join(errs...)
}
