package app

import (
	"context"
	"fmt"

	"github.com/newsfold/newsfold/internal/aggregator"
	"github.com/newsfold/newsfold/internal/auth"
	"github.com/newsfold/newsfold/internal/cache"
	"github.com/newsfold/newsfold/internal/config"
	"github.com/newsfold/newsfold/internal/database"
	"github.com/newsfold/newsfold/internal/feedimage"
	"github.com/newsfold/newsfold/internal/httpapi"
	"github.com/newsfold/newsfold/internal/logging"
	"github.com/newsfold/newsfold/internal/normalize"
	"github.com/newsfold/newsfold/internal/ratelimit"
	"github.com/newsfold/newsfold/internal/reconcile"
	"github.com/newsfold/newsfold/internal/rehost"
	"github.com/newsfold/newsfold/internal/sources"
)

// App holds all application dependencies
type App struct {
	Config     *config.Config
	Logger     *logging.Logger
	Cache      cache.Cache
	Aggregator *aggregator.Aggregator
	HTTPServer *httpapi.Server

	db             *database.DB
	reconciler     *reconcile.Reconciler
	refreshLimiter ratelimit.RateLimiter
}

// New creates and initializes a new App instance
func New(cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	app.Logger = app.initLogger()
	app.Cache = app.initCache()

	db, err := database.New(database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    database.DefaultConfig().MaxOpenConns,
		MaxIdleConns:    database.DefaultConfig().MaxIdleConns,
		ConnMaxLifetime: database.DefaultConfig().ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to PostgreSQL: %w", err)
	}
	app.db = db

	if err := db.Migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	app.Logger.Info("Connected to PostgreSQL, migrations applied")

	articleStore := database.NewArticleStore(db)
	categoryStore := database.NewCategoryStore(db)
	adStore := database.NewAdStore(db)
	clickStore := database.NewClickStore(db)
	imageStore := database.NewImageStore(db)

	var rehoster reconcile.Rehoster
	if cfg.Fetch.RehostImages {
		rehoster = rehost.NewService(imageStore, "/api/images/", cfg.Fetch.Timeout, app.Logger)
		app.Logger.Info("Image rehosting enabled")
	}

	app.reconciler = reconcile.New(articleStore, categoryStore, rehoster, app.Logger)

	fetchers := app.initFetchers()

	app.Aggregator = aggregator.New(
		fetchers,
		app.reconciler,
		articleStore,
		adStore,
		clickStore,
		app.Cache,
		cfg.Fetch.Retention,
		app.Logger,
	)

	// New rows invalidate the read-side cache immediately; the refresh
	// interval only bounds staleness in the other direction.
	app.reconciler.OnChange(app.Aggregator.InvalidateArticles)

	authService := auth.NewService(auth.Config{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.JWTIssuer,
	})

	app.HTTPServer = httpapi.New(
		app.Aggregator,
		categoryStore,
		clickStore,
		imageStore,
		auth.NewMiddleware(authService),
		app.refreshLimiter,
		app.Logger,
	)

	return app, nil
}

// Run starts the refresh loop and the HTTP server
func (a *App) Run(ctx context.Context) error {
	// Pre-fetch feeds in background
	go func() {
		a.Logger.Info("Pre-fetching feeds in background...")
		if err := a.Aggregator.RefreshAll(ctx); err != nil {
			a.Logger.Warn("Initial fetch had errors", logging.WithField("error", err.Error()))
		}
		a.Logger.Info("Initial fetch complete")
	}()

	go a.Aggregator.StartRefreshLoop(ctx, a.Config.Fetch.RefreshInterval)

	a.Logger.Info("Starting HTTP server", logging.WithField("addr", a.Config.Server.HTTPAddr))
	return a.HTTPServer.Start(a.Config.Server.HTTPAddr)
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error("HTTP server shutdown error", logging.WithField("error", err.Error()))
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Error("Database close error", logging.WithField("error", err.Error()))
		}
	}

	return nil
}

func (a *App) initLogger() *logging.Logger {
	level := logging.LevelInfo
	switch a.Config.Logging.Level {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}
	return logging.New(level)
}

func (a *App) initCache() cache.Cache {
	switch a.Config.Cache.Backend {
	case "redis":
		a.Logger.Info("Using Redis cache backend", logging.WithField("addr", a.Config.Cache.RedisAddr))
		redisCache, err := cache.NewRedis(cache.RedisConfig{
			Addr:   a.Config.Cache.RedisAddr,
			Prefix: "newsfold:",
		}, a.Config.Cache.TTL)
		if err != nil {
			a.Logger.Error("Failed to connect to Redis, falling back to memory cache", logging.WithField("error", err.Error()))
			a.refreshLimiter = ratelimit.New(a.Config.Fetch.RefreshInterval / 2)
			return cache.NewMemory(a.Config.Cache.TTL)
		}
		// Use Redis for distributed rate limiting when available
		a.refreshLimiter = ratelimit.NewRedis(redisCache.Client(), "ratelimit:refresh:", a.Config.Fetch.RefreshInterval/2)
		return redisCache
	default:
		a.Logger.Info("Using in-memory cache backend")
		a.refreshLimiter = ratelimit.New(a.Config.Fetch.RefreshInterval / 2)
		return cache.NewMemory(a.Config.Cache.TTL)
	}
}

func (a *App) initFetchers() []sources.Fetcher {
	fetcherConfig := sources.FetcherConfig{
		Timeout:     a.Config.Fetch.Timeout,
		MaxItems:    sources.DefaultConfig().MaxItems,
		UserAgent:   sources.DefaultConfig().UserAgent,
		ProxyPrefix: a.Config.Fetch.ProxyPrefix,
	}

	normalizer := normalize.New(
		feedimage.NewResolver(feedimage.DefaultConfig()),
		normalize.Config{
			SourceNames:   sources.DefaultSourceNames(),
			ExcerptLength: normalize.DefaultConfig().ExcerptLength,
		},
	)

	limiter := ratelimit.New(a.Config.Fetch.RateLimitDur)

	feedsConfig := sources.GetDefaultFeedsConfig()
	if configPath := sources.FindFeedsConfig(); configPath != "" {
		loaded, err := sources.LoadFeedsConfig(configPath)
		if err != nil {
			a.Logger.Warn("Failed to load feeds config, using defaults", logging.WithFields(map[string]interface{}{
				"path":  configPath,
				"error": err.Error(),
			}))
		} else {
			a.Logger.Info("Loaded feeds configuration", logging.WithFields(map[string]interface{}{
				"path":    configPath,
				"sources": len(loaded.Sources),
			}))
			feedsConfig = loaded
		}
	} else {
		a.Logger.Info("No feeds.json found, using default sources")
	}

	return sources.CreateFetchersFromConfig(feedsConfig, normalizer, limiter, fetcherConfig, a.Logger)
}
