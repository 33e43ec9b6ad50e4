package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tendant/simple-news/pkg/simplenews"
	"github.com/tendant/simple-news/pkg/simplenews/repo/memory"
	repopg "github.com/tendant/simple-news/pkg/simplenews/repo/postgres"
	"github.com/tendant/simple-news/pkg/simplenews/repo/postgrest"
	"github.com/tendant/simple-news/pkg/simplenews/repo/sqlite"
	"github.com/tendant/simple-news/pkg/simplenews/scan"
	fsstorage "github.com/tendant/simple-news/pkg/simplenews/storage/fs"
	memorystorage "github.com/tendant/simple-news/pkg/simplenews/storage/memory"
	s3storage "github.com/tendant/simple-news/pkg/simplenews/storage/s3"
	"github.com/tendant/simple-news/pkg/simplenews/urlstrategy"
)

// App is a fully wired news core.
type App struct {
	Config     *ServerConfig
	Portal     *simplenews.Portal
	Repository simplenews.Repository
	Media      *simplenews.MediaStore
	Sweeper    *scan.Sweeper
	Metrics    *simplenews.Metrics

	// ServesMedia is true when media URLs point at this server's media route.
	ServesMedia bool

	closers []func()
}

// Close stops background work and releases the stores.
func (a *App) Close() {
	if a.Portal != nil {
		a.Portal.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Build creates the repository, blob store, authorizer and Portal described
// by the configuration. Metrics are registered with reg when it is non-nil.
func (c *ServerConfig) Build(ctx context.Context, logger *slog.Logger, reg prometheus.Registerer) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: c, Metrics: simplenews.NewMetrics(reg)}

	repo, closeRepo, err := c.buildRepository(ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	app.Repository = repo
	if closeRepo != nil {
		app.closers = append(app.closers, closeRepo)
	}

	media, servesMedia, err := c.buildMediaStore(ctx, logger)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to build media store: %w", err)
	}
	app.Media = media
	app.ServesMedia = servesMedia

	auth, err := c.buildAuthorizer(logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	events := simplenews.NewNoopEventSink()
	if c.EventLogging {
		events = simplenews.NewLoggingEventSink(logger)
	}

	portal, err := simplenews.NewPortal(repo, media,
		simplenews.WithPortalAuthorizer(auth),
		simplenews.WithPortalEventSink(events),
		simplenews.WithPortalMetrics(app.Metrics),
		simplenews.WithPortalLogger(logger),
		simplenews.WithPortalAtomicCounters(c.AtomicCounters),
		simplenews.WithPortalRefreshTimeout(c.RefreshTimeout),
	)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Portal = portal
	app.Sweeper = scan.New(repo, media, scan.WithLogger(logger))

	logger.Info("news core configured",
		"database_type", c.DatabaseType,
		"storage_type", c.StorageType,
		"atomic_counters", c.AtomicCounters,
		"serves_media", servesMedia)
	return app, nil
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context, logger *slog.Logger) (simplenews.Repository, func(), error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil, nil

	case "postgres":
		cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		if schema := c.DBSchema; schema != "" {
			cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
				_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
				return err
			}
		}
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		if c.DBMigrate {
			if err := repopg.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return repopg.NewWithPool(pool), pool.Close, nil

	case "postgrest":
		return postgrest.New(postgrest.Config{
			BaseURL:     c.PostgRESTURL,
			APIKey:      c.PostgRESTAPIKey,
			NewsTable:   c.NewsTable,
			SliderTable: c.SliderTable,
		}), nil, nil

	case "sqlite":
		repo, err := sqlite.Open(c.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() {
			if err := repo.Close(); err != nil {
				logger.Warn("closing sqlite database", "error", err)
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// buildMediaStore creates the blob store and the URL strategy in front of it.
// Memory and fs media are served by the application unless MEDIA_BASE_URL
// points elsewhere; S3 media defaults to the bucket's public URL.
func (c *ServerConfig) buildMediaStore(ctx context.Context, logger *slog.Logger) (*simplenews.MediaStore, bool, error) {
	var (
		store      simplenews.BlobStore
		defaultCDN string
	)
	switch c.StorageType {
	case "memory":
		store = memorystorage.New()
	case "fs":
		fsStore, err := fsstorage.New(fsstorage.Config{BaseDir: c.FSBaseDir})
		if err != nil {
			return nil, false, err
		}
		store = fsStore
	case "s3":
		s3Store, err := s3storage.New(ctx, s3storage.Config{
			Region:                 c.S3Region,
			Bucket:                 c.S3Bucket,
			AccessKeyID:            c.S3AccessKeyID,
			SecretAccessKey:        c.S3SecretAccessKey,
			Endpoint:               c.S3Endpoint,
			UsePathStyle:           c.S3UsePathStyle,
			EnableSSE:              c.S3EnableSSE,
			SSEAlgorithm:           c.S3SSEAlgorithm,
			SSEKMSKeyID:            c.S3SSEKMSKeyID,
			CreateBucketIfNotExist: c.S3CreateBucket,
		})
		if err != nil {
			return nil, false, err
		}
		store = s3Store
		defaultCDN = s3Store.PublicBaseURL()
	default:
		return nil, false, fmt.Errorf("unsupported storage backend type: %s", c.StorageType)
	}

	urlCfg := urlstrategy.Config{
		Type:      urlstrategy.StrategyTypeAppRouted,
		AppOrigin: c.PublicOrigin,
		MountPath: c.MediaMountPath,
	}
	switch {
	case c.MediaBaseURL != "":
		urlCfg = urlstrategy.Config{Type: urlstrategy.StrategyTypeCDN, CDNBaseURL: c.MediaBaseURL}
	case defaultCDN != "":
		urlCfg = urlstrategy.Config{Type: urlstrategy.StrategyTypeCDN, CDNBaseURL: defaultCDN}
	}
	strategy, err := urlstrategy.NewURLStrategy(urlCfg)
	if err != nil {
		return nil, false, err
	}

	media, err := simplenews.NewMediaStore(store,
		simplenews.WithBackendName(c.StorageType),
		simplenews.WithURLStrategy(strategy),
		simplenews.WithMediaLogger(logger),
	)
	if err != nil {
		return nil, false, err
	}
	return media, urlCfg.Type == urlstrategy.StrategyTypeAppRouted, nil
}

// buildAuthorizer accepts the static admin token and admin JWTs, whichever
// are configured. With neither, every mutation is rejected.
func (c *ServerConfig) buildAuthorizer(logger *slog.Logger) (simplenews.Authorizer, error) {
	var auths simplenews.AnyAuthorizer

	if c.AdminTokenSHA256 != "" {
		static, err := simplenews.NewStaticTokenAuthorizer(c.AdminTokenSHA256)
		if err != nil {
			return nil, err
		}
		auths = append(auths, static)
	}
	if c.JWTSecret != "" {
		jwtAuth, err := simplenews.NewJWTAuthorizer([]byte(c.JWTSecret), c.JWTIssuer)
		if err != nil {
			return nil, err
		}
		auths = append(auths, jwtAuth)
	}

	if len(auths) == 0 {
		if c.IsProduction() {
			return nil, errors.New("ADMIN_TOKEN_SHA256 or JWT_SECRET is required in production")
		}
		logger.Warn("no admin credential configured, mutations are disabled")
		return simplenews.DenyAllAuthorizer{}, nil
	}
	return auths, nil
}
