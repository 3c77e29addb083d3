package port

import (
	"context"
	"time"

	"github.com/garyjia/validation-workflow/internal/domain/entity"
)

// Read methods of every repository return (nil, nil) when the row does not
// exist. Services turn that into a not-found error.

// ThresholdFilter selects thresholds of one workspace
type ThresholdFilter struct {
	WorkspaceID string
	EntityType  entity.EntityType // empty means every entity type
	ActiveOnly  bool
}

// ThresholdRepository defines persistence operations for ValidationThreshold
type ThresholdRepository interface {
	Create(ctx context.Context, threshold *entity.ValidationThreshold) error
	GetByID(ctx context.Context, workspaceID, id string) (*entity.ValidationThreshold, error)
	// GetByScope matches the category exactly; an empty category selects the generic policy
	GetByScope(ctx context.Context, workspaceID string, entityType entity.EntityType, category string) (*entity.ValidationThreshold, error)
	List(ctx context.Context, filter ThresholdFilter) ([]*entity.ValidationThreshold, error)
	Update(ctx context.Context, threshold *entity.ValidationThreshold) error
	Delete(ctx context.Context, workspaceID, id string) (bool, error)
}

// RequestFilter is a typed predicate over validation requests.
// Zero-valued fields are ignored.
type RequestFilter struct {
	WorkspaceID   string
	EntityType    entity.EntityType
	EntityID      string
	ThresholdID   string
	Statuses      []entity.ValidationStatus
	RequestedFrom *time.Time
	RequestedTo   *time.Time
	Limit         int
}

// ValidationRequestRepository defines persistence operations for ValidationRequest
type ValidationRequestRepository interface {
	Create(ctx context.Context, req *entity.ValidationRequest) error
	GetByID(ctx context.Context, workspaceID, id string) (*entity.ValidationRequest, error)
	// Find returns matching requests ordered by requested_at then id
	Find(ctx context.Context, filter RequestFilter) ([]*entity.ValidationRequest, error)
	// UpdateWithVersion writes the mutable fields only if the stored version
	// still equals expectedVersion. It reports false when another writer won.
	UpdateWithVersion(ctx context.Context, req *entity.ValidationRequest, expectedVersion int64) (bool, error)
}

// DecisionFilter selects decisions of one workspace
type DecisionFilter struct {
	WorkspaceID string
	ValidatedBy string
	DecidedFrom *time.Time
	DecidedTo   *time.Time
}

// DecisionRepository is the append-only audit trail of validator decisions
type DecisionRepository interface {
	Create(ctx context.Context, decision *entity.ValidationDecision) error
	// ListByRequest returns decisions in the order they were recorded
	ListByRequest(ctx context.Context, requestID string) ([]*entity.ValidationDecision, error)
	Find(ctx context.Context, filter DecisionFilter) ([]*entity.ValidationDecision, error)
}

// RuleFilter selects rules of one workspace
type RuleFilter struct {
	WorkspaceID  string
	DecisionType string
	ActiveOnly   bool
}

// RuleRepository defines persistence operations for DecisionRule
type RuleRepository interface {
	Create(ctx context.Context, rule *entity.DecisionRule) error
	GetByID(ctx context.Context, workspaceID, id string) (*entity.DecisionRule, error)
	// List orders rules by priority DESC, created_at ASC, id ASC
	List(ctx context.Context, filter RuleFilter) ([]*entity.DecisionRule, error)
	Update(ctx context.Context, rule *entity.DecisionRule) error
	Delete(ctx context.Context, workspaceID, id string) (bool, error)
	// RecordExecution bumps the execution counters of a rule
	RecordExecution(ctx context.Context, ruleID string, matched bool, at time.Time) error
}

// RuleExecutionRepository stores rule evaluation records
type RuleExecutionRepository interface {
	Create(ctx context.Context, execution *entity.RuleExecution) error
	// ListByRule returns the most recent executions first
	ListByRule(ctx context.Context, ruleID string, limit int) ([]*entity.RuleExecution, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
