package container

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/garyjia/validation-workflow/internal/application/dispatcher"
	"github.com/garyjia/validation-workflow/internal/application/port"
	"github.com/garyjia/validation-workflow/internal/application/service"
	"github.com/garyjia/validation-workflow/internal/config"
	"github.com/garyjia/validation-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/validation-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/validation-workflow/migrations"
	"github.com/garyjia/validation-workflow/pkg/database"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Threshold     port.ThresholdRepository
	Request       port.ValidationRequestRepository
	Decision      port.DecisionRepository
	Rule          port.RuleRepository
	RuleExecution port.RuleExecutionRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Threshold  service.ThresholdService
	Resolver   service.ThresholdResolver
	Validation service.ValidationService
	Statistics service.StatisticsService
	Rules      service.RuleEngine
}

// ProvideDatabase opens the database and applies pending migrations.
// Migrations come from cfg.MigrationsDir when set, else from the embedded set.
func ProvideDatabase(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if cfg.Path != database.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Open SQLite database with WAL mode, busy timeout and foreign keys
	db, err := database.Open(ctx, database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	var source fs.FS = migrations.FS
	if cfg.MigrationsDir != "" {
		source = os.DirFS(cfg.MigrationsDir)
	}

	if _, err := database.NewMigrator(db, logger).RunMigrations(ctx, source); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := db.Health(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return &DatabaseBundle{
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Threshold:     repository.NewThresholdRepository(sqlDB, logger),
		Request:       repository.NewValidationRequestRepository(sqlDB, logger),
		Decision:      repository.NewDecisionRepository(sqlDB, logger),
		Rule:          repository.NewRuleRepository(sqlDB, logger),
		RuleExecution: repository.NewRuleExecutionRepository(sqlDB, logger),
	}, nil
}

// ProvideDispatcher creates the event dispatcher with the audit log subscriber.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	adapter := &zapLoggerAdapter{logger: logger}
	d := dispatcher.NewDispatcher(dispatcher.WithLogger(adapter))
	d.SubscribeAll("audit-log", dispatcher.AuditLogHandler(&zapLoggerAdapter{logger: logger.Named("events")}))

	return d, nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repositories *RepositoryBundle
	TxManager    port.TransactionManager
	Dispatcher   dispatcher.Dispatcher
	Workflow     config.WorkflowConfig
	Rules        config.RulesConfig
	Logger       *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repositories == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	repos := deps.Repositories
	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}
	resolver := service.NewThresholdResolver(repos.Threshold)

	thresholdOpts := []service.ThresholdOption{service.WithDefaultCurrency(deps.Workflow.DefaultCurrency)}
	validationOpts := []service.ValidationOption{
		service.WithUnconfiguredFallback(deps.Workflow.AllowUnconfiguredEntities),
		service.WithValidatorLevelCheck(deps.Workflow.EnforceValidatorLevel),
	}
	ruleOpts := []service.RuleEngineOption{service.WithExecutionHistoryLimit(deps.Rules.ExecutionHistoryLimit)}

	if deps.Dispatcher != nil {
		thresholdOpts = append(thresholdOpts, service.WithThresholdDispatcher(deps.Dispatcher))
		validationOpts = append(validationOpts, service.WithValidationDispatcher(deps.Dispatcher))
		ruleOpts = append(ruleOpts, service.WithRuleDispatcher(deps.Dispatcher))
	}

	return &ServiceBundle{
		Threshold: service.NewThresholdService(repos.Threshold, repos.Request, serviceLogger, thresholdOpts...),
		Resolver:  resolver,
		Validation: service.NewValidationService(
			repos.Request,
			repos.Decision,
			resolver,
			deps.TxManager,
			serviceLogger,
			validationOpts...,
		),
		Statistics: service.NewStatisticsService(repos.Request, repos.Decision),
		Rules:      service.NewRuleEngine(repos.Rule, repos.RuleExecution, deps.TxManager, serviceLogger, ruleOpts...),
	}, nil
}
