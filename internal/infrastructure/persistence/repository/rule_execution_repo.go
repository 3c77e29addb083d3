package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/validation-workflow/internal/application/port"
	"github.com/garyjia/validation-workflow/internal/domain/entity"
	"github.com/garyjia/validation-workflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// RuleExecutionRepository implements port.RuleExecutionRepository
type RuleExecutionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRuleExecutionRepository creates a new rule execution repository
func NewRuleExecutionRepository(db *sql.DB, logger *zap.Logger) port.RuleExecutionRepository {
	return &RuleExecutionRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores one evaluation record
func (r *RuleExecutionRepository) Create(ctx context.Context, e *entity.RuleExecution) error {
	matched, err := toJSON(e.MatchedConditions)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO rule_executions (
			id, rule_id, workspace_id, decision_type, reference_id,
			conditions_matched, matched_conditions, recommended_action,
			execution_time_ms, executed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.getExecutor(ctx).ExecContext(ctx, query,
		e.ID,
		e.RuleID,
		e.WorkspaceID,
		e.DecisionType,
		nullString(e.ReferenceID),
		e.ConditionsMatched,
		matched,
		nullString(e.RecommendedAction),
		e.ExecutionTimeMs,
		e.ExecutedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create rule execution",
			zap.String("rule_id", e.RuleID),
			zap.String("reference_id", e.ReferenceID),
			zap.Error(err))
		return fmt.Errorf("failed to create rule execution: %w", err)
	}
	return nil
}

// ListByRule returns up to limit executions, most recent first
func (r *RuleExecutionRepository) ListByRule(ctx context.Context, ruleID string, limit int) ([]*entity.RuleExecution, error) {
	query := `
		SELECT id, rule_id, workspace_id, decision_type, reference_id,
			conditions_matched, matched_conditions, recommended_action,
			execution_time_ms, executed_at
		FROM rule_executions
		WHERE rule_id = ?
		ORDER BY executed_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, ruleID, limit)
	if err != nil {
		r.logger.Error("Failed to list rule executions", zap.String("rule_id", ruleID), zap.Error(err))
		return nil, fmt.Errorf("failed to list rule executions: %w", err)
	}
	defer rows.Close()

	executions := []*entity.RuleExecution{}
	for rows.Next() {
		var e entity.RuleExecution
		var referenceID, matched, action sql.NullString

		if err := rows.Scan(
			&e.ID,
			&e.RuleID,
			&e.WorkspaceID,
			&e.DecisionType,
			&referenceID,
			&e.ConditionsMatched,
			&matched,
			&action,
			&e.ExecutionTimeMs,
			&e.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rule execution: %w", err)
		}
		if err := fromJSON(matched, &e.MatchedConditions); err != nil {
			return nil, err
		}

		e.ReferenceID = referenceID.String
		e.RecommendedAction = action.String
		e.ExecutedAt = e.ExecutedAt.UTC()
		executions = append(executions, &e)
	}
	return executions, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *RuleExecutionRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

// Verify interface compliance
var _ port.RuleExecutionRepository = (*RuleExecutionRepository)(nil)
