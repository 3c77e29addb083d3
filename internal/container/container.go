package container

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/validation-workflow/internal/application/dispatcher"
	"github.com/garyjia/validation-workflow/internal/config"
	"github.com/garyjia/validation-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/validation-workflow/internal/metrics"
	"go.uber.org/zap"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure - Data
	sqlDB        *sql.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	// Application
	dispatcher dispatcher.Dispatcher
	metrics    *metrics.Recorder
	services   *ServiceBundle

	// Lifecycle
	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components:
// 1. Database, migrations and repositories
// 2. Event dispatcher with its audit and metrics subscribers
// 3. Application services
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	// Step 1: Initialize database and repositories
	if err := c.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	// Step 2: Initialize dispatcher and its subscribers
	if err := c.initDispatcher(); err != nil {
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}
	c.logger.Info("Dispatcher initialized")

	// Step 3: Initialize application services
	if err := c.initServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	// Step 1: Drain async event handlers
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	// Step 2: Close database
	if c.sqlDB != nil {
		if err := c.sqlDB.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	mark := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	// Check database
	switch {
	case c.sqlDB == nil:
		mark("database", false, "not initialized")
	default:
		if err := c.sqlDB.PingContext(ctx); err != nil {
			mark("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			mark("database", true, "")
		}
	}

	// Check dispatcher
	if c.dispatcher != nil {
		mark("dispatcher", true, "")
	} else {
		mark("dispatcher", false, "not initialized")
	}

	// Check services
	if c.services != nil {
		mark("services", true, "")
	} else {
		mark("services", false, "not initialized")
	}

	return status
}

// initDatabase opens the database, applies migrations and builds repositories.
func (c *Container) initDatabase(ctx context.Context) error {
	dbBundle, err := ProvideDatabase(ctx, &c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.sqlDB = dbBundle.SqlDB
	c.db = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.sqlDB, c.logger)
	if err != nil {
		return err
	}
	c.repositories = repos

	return nil
}

// initDispatcher creates the event bus and attaches the audit log and metrics.
func (c *Container) initDispatcher() error {
	d, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = d

	if c.config.Metrics.Enabled {
		c.metrics = metrics.NewRecorder(c.config.Metrics.Namespace)
		c.metrics.Subscribe(d)
	}

	return nil
}

// initServices creates the application services.
func (c *Container) initServices() error {
	services, err := ProvideServices(&ServiceDeps{
		Repositories: c.repositories,
		TxManager:    c.db,
		Dispatcher:   c.dispatcher,
		Workflow:     c.config.Workflow,
		Rules:        c.config.Rules,
		Logger:       c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services

	return nil
}

// Repositories returns the repository bundle.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Metrics returns the metrics recorder, nil when metrics are disabled.
func (c *Container) Metrics() *metrics.Recorder {
	return c.metrics
}

// Services returns the application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the service and dispatcher Logger interfaces.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
