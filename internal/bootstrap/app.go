package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"docsec-backend/internal/analyses"
	"docsec-backend/internal/documents"
	"docsec-backend/internal/llm"
	"docsec-backend/internal/llm/claude"
	"docsec-backend/internal/llm/gemini"
	"docsec-backend/internal/llm/openai"
	"docsec-backend/internal/services/health"
	"docsec-backend/internal/shared/config"
	"docsec-backend/internal/shared/server"
	"docsec-backend/internal/shared/server/middleware"
	"docsec-backend/internal/shared/storage/db"
	"docsec-backend/internal/shared/storage/object"
	localstore "docsec-backend/internal/shared/storage/object/local"
	miniostore "docsec-backend/internal/shared/storage/object/minio"
	s3store "docsec-backend/internal/shared/storage/object/s3"
	"docsec-backend/internal/shared/telemetry"
)

// App holds shared dependencies.
type App struct {
	Config           config.Config
	Router           *gin.Engine
	DB               *sql.DB
	Store            object.ObjectStore
	DocumentsRepo    documents.DocumentsRepo
	AnalysesRepo     analyses.Repo
	DocumentsService *documents.Service
	AnalysesService  *analyses.Service
	DocumentsHandler *documents.Handler
	AnalysisHandler  *analyses.Handler
	Health           *health.Service
}

// Option adjusts the App before services are built.
type Option func(*buildOptions)

type buildOptions struct {
	clients []llm.Client
}

// WithClients replaces the provider adapters built from configuration.
func WithClients(clients ...llm.Client) Option {
	return func(o *buildOptions) { o.clients = clients }
}

// Build prepares shared dependencies and the router.
func Build(cfg config.Config, opts ...Option) (*App, error) {
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
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

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
	}

	clients := bo.clients
	if clients == nil {
		clients = BuildClients(cfg)
	}
	if err := buildServices(app, clients); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		DocumentHandler: app.DocumentsHandler,
		AnalysisHandler: app.AnalysisHandler,
		Health:          app.Health,
		Limiter:         middleware.NewRateLimiter(nil),
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Info("bootstrap.memory_repos", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultOptions(db.RoleServer))
	sqlDB, err := db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "database connect failed", "err": err})
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "minio":
		return miniostore.New(ctx, miniostore.Options{
			Endpoint:  cfg.MinIOEndpoint,
			Region:    cfg.AWSRegion,
			Bucket:    cfg.MinIOBucket,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			UseSSL:    cfg.MinIOUseSSL,
		})
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

// BuildClients registers every provider adapter. Adapters without a key stay
// registered and report NotConfigured when called.
func BuildClients(cfg config.Config) []llm.Client {
	return []llm.Client{
		claude.New(claude.Config{APIKey: cfg.AnthropicAPIKey, Model: cfg.ClaudeModel, Timeout: cfg.LLMTimeout}),
		openai.New(openai.Config{APIKey: cfg.OpenAIAPIKey, Model: cfg.OpenAIModel, Timeout: cfg.LLMTimeout}),
		gemini.New(gemini.Config{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel, Timeout: cfg.LLMTimeout}),
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App, clients []llm.Client) error {
	var docRepo documents.DocumentsRepo
	var analysisRepo analyses.Repo
	if app.DB != nil {
		docRepo = &documents.PGRepo{DB: app.DB}
		analysisRepo = &analyses.PGRepo{DB: app.DB}
	} else {
		docRepo = documents.NewMemoryRepo()
		analysisRepo = analyses.NewMemoryRepo()
	}

	docSvc := &documents.Service{
		Store:           app.Store,
		Repo:            docRepo,
		StorageProvider: app.Config.ObjectStoreType,
	}

	analysisSvc := analyses.NewService(analysisRepo, app.Config.LLMTimeout, clients...)
	if raw := strings.TrimSpace(app.Config.DefaultProvider); raw != "" {
		p, err := llm.ParseProvider(raw)
		if err != nil {
			return fmt.Errorf("DEFAULT_PROVIDER: %w", err)
		}
		analysisSvc.DefaultProvider = p
	}

	app.DocumentsRepo = docRepo
	app.AnalysesRepo = analysisRepo
	app.DocumentsService = docSvc
	app.AnalysesService = analysisSvc
	app.DocumentsHandler = documents.NewHandler(docSvc)
	app.AnalysisHandler = analyses.NewHandler(analysisSvc, docSvc)
	if app.DB != nil {
		app.Health = health.NewService(app.DB)
	} else {
		app.Health = health.NewService(nil)
	}

	for _, status := range analysisSvc.Providers() {
		telemetry.Info("bootstrap.provider", map[string]any{
			"provider":   string(status.Name),
			"configured": status.Configured,
			"default":    status.Name == analysisSvc.DefaultProvider,
		})
	}
	return nil
}
