// Package di wires the application object graph from configuration.
package di

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/afero"

	"github.com/opspilot/opspilot/internal/adapter/gateway/llm"
	"github.com/opspilot/opspilot/internal/adapter/gateway/storage"
	"github.com/opspilot/opspilot/internal/app/config"
	"github.com/opspilot/opspilot/internal/application/capability"
	"github.com/opspilot/opspilot/internal/application/classifier"
	"github.com/opspilot/opspilot/internal/application/port/output"
	"github.com/opspilot/opspilot/internal/application/usecase"
	"github.com/opspilot/opspilot/internal/application/workflow"
	"github.com/opspilot/opspilot/internal/domain/repository"
	"github.com/opspilot/opspilot/internal/infrastructure/persistence/memory"
	"github.com/opspilot/opspilot/internal/infrastructure/persistence/sqlite"
)

// LogFunc receives printf-style progress lines from all wired components.
type LogFunc func(format string, args ...interface{})

// Container holds the wired object graph.
type Container struct {
	Config      config.Config
	Gateway     output.CompletionGateway
	Repository  repository.TaskRepository
	Storage     output.StorageGateway
	Coordinator *usecase.Coordinator

	db *sql.DB
}

// NewContainer builds the object graph for a configuration. A nil logf
// disables progress logging.
func NewContainer(cfg config.Config, logf LogFunc) (*Container, error) {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}

	gateway := llm.NewGateway(llm.Provider(cfg.Provider()), cfg.APIKey(), cfg.APIURL(), cfg.Model())

	c := &Container{Config: cfg, Gateway: gateway}
	if err := c.wireRepository(cfg); err != nil {
		return nil, err
	}
	if err := c.wireStorage(cfg); err != nil {
		c.Close()
		return nil, err
	}

	invoker := capability.NewInvoker(gateway,
		capability.WithModel(cfg.Model()),
		capability.WithLogFunc(capability.LogFunc(logf)),
	)
	orchestrator := workflow.NewOrchestrator(
		invoker,
		capability.NewAutomationStage(invoker, cfg.MaxAttempts(), cfg.RetryDelay(), capability.LogFunc(logf)),
		workflow.NewRefinementLoop(invoker, cfg.MaxRecursions(), cfg.ConfidenceThreshold(), workflow.LogFunc(logf)),
		workflow.NewPruner(gateway, cfg.TokenBudget(), workflow.LogFunc(logf)),
		cfg.DiagnosticDepth(),
		workflow.LogFunc(logf),
	)

	opts := []usecase.Option{usecase.WithLogFunc(usecase.LogFunc(logf))}
	if c.Storage != nil {
		opts = append(opts, usecase.WithStorage(c.Storage))
	}
	c.Coordinator = usecase.NewCoordinator(c.Repository, classifier.New(), orchestrator, opts...)
	return c, nil
}

func (c *Container) wireRepository(cfg config.Config) error {
	if cfg.StorePath() == "" {
		c.Repository = memory.NewTaskStore()
		return nil
	}
	db, err := sql.Open("sqlite3", cfg.StorePath())
	if err != nil {
		return fmt.Errorf("open task store: %w", err)
	}
	if err := sqlite.NewMigrator(db).Migrate(); err != nil {
		db.Close()
		return fmt.Errorf("migrate task store: %w", err)
	}
	c.db = db
	c.Repository = sqlite.NewTaskRepository(db)
	return nil
}

func (c *Container) wireStorage(cfg config.Config) error {
	switch cfg.StorageBackend() {
	case "local":
		gw, err := storage.NewLocalStorageGateway(afero.NewOsFs(), cfg.StorageDir())
		if err != nil {
			return fmt.Errorf("init local artifact storage: %w", err)
		}
		c.Storage = gw
	case "s3":
		gw, err := storage.NewS3StorageGateway(storage.S3Config{
			BucketName: cfg.S3Bucket(),
			Prefix:     cfg.S3Prefix(),
			Region:     cfg.S3Region(),
		})
		if err != nil {
			return fmt.Errorf("init S3 artifact storage: %w", err)
		}
		c.Storage = gw
	case "none":
		// Artifact persistence disabled.
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.StorageBackend())
	}
	return nil
}

// Close releases held resources.
func (c *Container) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
