package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/validation-workflow/internal/application/port"
	"github.com/garyjia/validation-workflow/internal/domain/entity"
	"github.com/garyjia/validation-workflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const ruleColumns = `id, workspace_id, name, description, decision_type, trigger_type,
	conditions, recommended_action, auto_execute, requires_approval, priority,
	is_active, notify_on_match, notify_roles, template_id, created_by, created_by_name,
	execution_count, match_count, last_executed_at, created_at, updated_at`

// RuleRepository implements port.RuleRepository
type RuleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db *sql.DB, logger *zap.Logger) port.RuleRepository {
	return &RuleRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a rule with its counters
func (r *RuleRepository) Create(ctx context.Context, rule *entity.DecisionRule) error {
	conditions, err := toJSON(rule.Conditions)
	if err != nil {
		return err
	}
	roles, err := toJSON(rule.NotifyRoles)
	if err != nil {
		return err
	}

	query := `INSERT INTO decision_rules (` + ruleColumns + `) VALUES (` + placeholders(22) + `)`

	_, err = r.getExecutor(ctx).ExecContext(ctx, query,
		rule.ID,
		rule.WorkspaceID,
		rule.Name,
		nullString(rule.Description),
		rule.DecisionType,
		rule.TriggerType,
		conditions,
		rule.RecommendedAction,
		rule.AutoExecute,
		rule.RequiresApproval,
		rule.Priority,
		rule.IsActive,
		rule.NotifyOnMatch,
		roles,
		nullString(rule.TemplateID),
		nullString(rule.CreatedBy),
		nullString(rule.CreatedByName),
		rule.ExecutionCount,
		rule.MatchCount,
		nullTime(rule.LastExecutedAt),
		rule.CreatedAt.UTC(),
		rule.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create rule",
			zap.String("workspace_id", rule.WorkspaceID),
			zap.String("name", rule.Name),
			zap.Error(err))
		return fmt.Errorf("failed to create rule: %w", err)
	}
	return nil
}

// GetByID retrieves a rule of the workspace
func (r *RuleRepository) GetByID(ctx context.Context, workspaceID, id string) (*entity.DecisionRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM decision_rules WHERE workspace_id = ? AND id = ?`

	rule, err := scanRule(r.getExecutor(ctx).QueryRowContext(ctx, query, workspaceID, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get rule", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// List returns rules by priority DESC, created_at ASC, id ASC
func (r *RuleRepository) List(ctx context.Context, filter port.RuleFilter) ([]*entity.DecisionRule, error) {
	where := []string{"workspace_id = ?"}
	args := []interface{}{filter.WorkspaceID}

	if filter.DecisionType != "" {
		where = append(where, "decision_type = ?")
		args = append(args, filter.DecisionType)
	}
	if filter.ActiveOnly {
		where = append(where, "is_active = TRUE")
	}

	query := `SELECT ` + ruleColumns + ` FROM decision_rules
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY priority DESC, created_at ASC, id ASC`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list rules", zap.String("workspace_id", filter.WorkspaceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	rules := []*entity.DecisionRule{}
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// Update rewrites the editable columns. Counters are owned by RecordExecution.
func (r *RuleRepository) Update(ctx context.Context, rule *entity.DecisionRule) error {
	conditions, err := toJSON(rule.Conditions)
	if err != nil {
		return err
	}
	roles, err := toJSON(rule.NotifyRoles)
	if err != nil {
		return err
	}

	query := `
		UPDATE decision_rules
		SET name = ?, description = ?, decision_type = ?, trigger_type = ?, conditions = ?,
			recommended_action = ?, auto_execute = ?, requires_approval = ?, priority = ?,
			is_active = ?, notify_on_match = ?, notify_roles = ?, updated_at = ?
		WHERE workspace_id = ? AND id = ?
	`

	_, err = r.getExecutor(ctx).ExecContext(ctx, query,
		rule.Name,
		nullString(rule.Description),
		rule.DecisionType,
		rule.TriggerType,
		conditions,
		rule.RecommendedAction,
		rule.AutoExecute,
		rule.RequiresApproval,
		rule.Priority,
		rule.IsActive,
		rule.NotifyOnMatch,
		roles,
		rule.UpdatedAt.UTC(),
		rule.WorkspaceID,
		rule.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update rule", zap.String("id", rule.ID), zap.Error(err))
		return fmt.Errorf("failed to update rule: %w", err)
	}
	return nil
}

// Delete removes a rule and its execution history
func (r *RuleRepository) Delete(ctx context.Context, workspaceID, id string) (bool, error) {
	exec := r.getExecutor(ctx)

	result, err := exec.ExecContext(ctx, `DELETE FROM decision_rules WHERE workspace_id = ? AND id = ?`, workspaceID, id)
	if err != nil {
		r.logger.Error("Failed to delete rule", zap.String("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to delete rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if _, err := exec.ExecContext(ctx, `DELETE FROM rule_executions WHERE rule_id = ?`, id); err != nil {
		r.logger.Error("Failed to delete rule executions", zap.String("rule_id", id), zap.Error(err))
		return false, fmt.Errorf("failed to delete rule executions: %w", err)
	}
	return true, nil
}

// RecordExecution increments the counters atomically in SQL
func (r *RuleRepository) RecordExecution(ctx context.Context, ruleID string, matched bool, at time.Time) error {
	query := `
		UPDATE decision_rules
		SET execution_count = execution_count + 1,
			match_count = match_count + ?,
			last_executed_at = ?
		WHERE id = ?
	`

	inc := 0
	if matched {
		inc = 1
	}

	if _, err := r.getExecutor(ctx).ExecContext(ctx, query, inc, at.UTC(), ruleID); err != nil {
		r.logger.Error("Failed to record rule execution", zap.String("rule_id", ruleID), zap.Error(err))
		return fmt.Errorf("failed to record rule execution: %w", err)
	}
	return nil
}

func scanRule(row scanner) (*entity.DecisionRule, error) {
	var rule entity.DecisionRule
	var description, conditions, roles, templateID, createdBy, createdByName sql.NullString
	var lastExecutedAt sql.NullTime

	err := row.Scan(
		&rule.ID,
		&rule.WorkspaceID,
		&rule.Name,
		&description,
		&rule.DecisionType,
		&rule.TriggerType,
		&conditions,
		&rule.RecommendedAction,
		&rule.AutoExecute,
		&rule.RequiresApproval,
		&rule.Priority,
		&rule.IsActive,
		&rule.NotifyOnMatch,
		&roles,
		&templateID,
		&createdBy,
		&createdByName,
		&rule.ExecutionCount,
		&rule.MatchCount,
		&lastExecutedAt,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := fromJSON(conditions, &rule.Conditions); err != nil {
		return nil, err
	}
	if err := fromJSON(roles, &rule.NotifyRoles); err != nil {
		return nil, err
	}

	rule.Description = description.String
	rule.TemplateID = templateID.String
	rule.CreatedBy = createdBy.String
	rule.CreatedByName = createdByName.String
	rule.LastExecutedAt = timePtr(lastExecutedAt)
	rule.CreatedAt = rule.CreatedAt.UTC()
	rule.UpdatedAt = rule.UpdatedAt.UTC()
	return &rule, nil
}

// getExecutor returns appropriate executor based on context
func (r *RuleRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

// Verify interface compliance
var _ port.RuleRepository = (*RuleRepository)(nil)
