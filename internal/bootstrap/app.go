package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"wattsmybill-backend/internal/analyses"
	"wattsmybill-backend/internal/shared/config"
	"wattsmybill-backend/internal/shared/server"
	"wattsmybill-backend/internal/shared/storage/db"
	"wattsmybill-backend/internal/shared/storage/object"
	localstore "wattsmybill-backend/internal/shared/storage/object/local"
	s3store "wattsmybill-backend/internal/shared/storage/object/s3"
	"wattsmybill-backend/internal/shared/telemetry"
	"wattsmybill-backend/internal/strategy"
	"wattsmybill-backend/internal/strategy/coordinated"
	"wattsmybill-backend/internal/strategy/standalone"
)

// App holds the wired application dependencies.
type App struct {
	Config   config.Config
	Router   *gin.Engine
	DB       *sql.DB
	Store    object.ObjectStore
	Repo     analyses.Repo
	Selector *strategy.Selector
	Service  *analyses.Service
	Handler  *analyses.Handler
}

// Build prepares all dependencies and the HTTP router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var repo analyses.Repo
	if sqlDB != nil {
		repo = &analyses.PGRepo{DB: sqlDB}
	} else {
		repo = analyses.NewMemoryRepo()
	}

	selector, err := buildSelector(cfg)
	if err != nil {
		return nil, err
	}

	svc := &analyses.Service{
		Repo:     repo,
		Store:    store,
		Selector: selector,
	}
	handler := analyses.NewHandler(svc, selector, cfg.MaxUploadBytes)

	return &App{
		Config:   cfg,
		Router:   server.NewRouter(server.RouterDeps{Config: cfg, AnalysisHandler: handler}),
		DB:       sqlDB,
		Store:    store,
		Repo:     repo,
		Selector: selector,
		Service:  svc,
		Handler:  handler,
	}, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db", map[string]any{
				"message": "DATABASE_URL empty; using in-memory job store",
			})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db", map[string]any{
				"message": "database connect failed; using in-memory job store",
				"error":   err.Error(),
			})
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.AWSRegion) == "" || strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires AWS_REGION and S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildSelector(cfg config.Config) (*strategy.Selector, error) {
	engine, err := standalone.New(cfg.DefaultState)
	if err != nil {
		return nil, fmt.Errorf("standalone engine: %w", err)
	}

	selector := &strategy.Selector{Standalone: engine}
	if cfg.AgentRuntimeURL != "" {
		client := coordinated.New(cfg.AgentRuntimeURL, cfg.AgentRuntimeTimeout)
		selector.Coordinated = client
		selector.Probe = client.Probe
	}
	return selector, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
