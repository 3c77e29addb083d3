package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/validation-workflow/internal/application/port"
	"github.com/garyjia/validation-workflow/internal/domain/apperr"
	"github.com/garyjia/validation-workflow/internal/domain/entity"
	"github.com/garyjia/validation-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const thresholdColumns = `id, workspace_id, entity_type, category,
	level1_threshold, level2_threshold, level3_threshold, auto_approve_below,
	require_all_levels, currency, description, is_active, created_by,
	created_at, updated_at`

// ThresholdRepository implements port.ThresholdRepository
type ThresholdRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewThresholdRepository creates a new threshold repository
func NewThresholdRepository(db *sql.DB, logger *zap.Logger) port.ThresholdRepository {
	return &ThresholdRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a threshold. A second policy for the same scope is rejected.
func (r *ThresholdRepository) Create(ctx context.Context, t *entity.ValidationThreshold) error {
	query := `INSERT INTO validation_thresholds (` + thresholdColumns + `) VALUES (` + placeholders(15) + `)`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		t.ID,
		t.WorkspaceID,
		string(t.EntityType),
		t.Category,
		t.Level1Threshold,
		t.Level2Threshold,
		t.Level3Threshold,
		t.AutoApproveBelow,
		t.RequireAllLevels,
		t.Currency,
		nullString(t.Description),
		t.IsActive,
		nullString(t.CreatedBy),
		t.CreatedAt.UTC(),
		t.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("a threshold already exists for %s", scopeLabel(t.EntityType, t.Category))
		}
		r.logger.Error("Failed to create threshold",
			zap.String("workspace_id", t.WorkspaceID),
			zap.String("entity_type", string(t.EntityType)),
			zap.Error(err))
		return fmt.Errorf("failed to create threshold: %w", err)
	}

	return nil
}

// GetByID retrieves a threshold of the workspace
func (r *ThresholdRepository) GetByID(ctx context.Context, workspaceID, id string) (*entity.ValidationThreshold, error) {
	query := `SELECT ` + thresholdColumns + ` FROM validation_thresholds WHERE workspace_id = ? AND id = ?`

	t, err := scanThreshold(r.getExecutor(ctx).QueryRowContext(ctx, query, workspaceID, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get threshold", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get threshold: %w", err)
	}
	return t, nil
}

// GetByScope retrieves the policy for an exact (entity type, category) pair
func (r *ThresholdRepository) GetByScope(ctx context.Context, workspaceID string, entityType entity.EntityType, category string) (*entity.ValidationThreshold, error) {
	query := `SELECT ` + thresholdColumns + `
		FROM validation_thresholds
		WHERE workspace_id = ? AND entity_type = ? AND category = ?`

	t, err := scanThreshold(r.getExecutor(ctx).QueryRowContext(ctx, query, workspaceID, string(entityType), category))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get threshold by scope",
			zap.String("workspace_id", workspaceID),
			zap.String("entity_type", string(entityType)),
			zap.String("category", category),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get threshold by scope: %w", err)
	}
	return t, nil
}

// List returns the thresholds of a workspace ordered by entity type then category
func (r *ThresholdRepository) List(ctx context.Context, filter port.ThresholdFilter) ([]*entity.ValidationThreshold, error) {
	var where []string
	args := []interface{}{}

	where = append(where, "workspace_id = ?")
	args = append(args, filter.WorkspaceID)
	if filter.EntityType != "" {
		where = append(where, "entity_type = ?")
		args = append(args, string(filter.EntityType))
	}
	if filter.ActiveOnly {
		where = append(where, "is_active = TRUE")
	}

	query := `SELECT ` + thresholdColumns + ` FROM validation_thresholds
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY entity_type ASC, category ASC, id ASC`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list thresholds", zap.String("workspace_id", filter.WorkspaceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list thresholds: %w", err)
	}
	defer rows.Close()

	thresholds := []*entity.ValidationThreshold{}
	for rows.Next() {
		t, err := scanThreshold(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan threshold: %w", err)
		}
		thresholds = append(thresholds, t)
	}
	return thresholds, rows.Err()
}

// Update rewrites every mutable column of the threshold
func (r *ThresholdRepository) Update(ctx context.Context, t *entity.ValidationThreshold) error {
	query := `
		UPDATE validation_thresholds
		SET category = ?, level1_threshold = ?, level2_threshold = ?, level3_threshold = ?,
			auto_approve_below = ?, require_all_levels = ?, currency = ?, description = ?,
			is_active = ?, updated_at = ?
		WHERE workspace_id = ? AND id = ?
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		t.Category,
		t.Level1Threshold,
		t.Level2Threshold,
		t.Level3Threshold,
		t.AutoApproveBelow,
		t.RequireAllLevels,
		t.Currency,
		nullString(t.Description),
		t.IsActive,
		t.UpdatedAt.UTC(),
		t.WorkspaceID,
		t.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Validation("a threshold already exists for %s", scopeLabel(t.EntityType, t.Category))
		}
		r.logger.Error("Failed to update threshold", zap.String("id", t.ID), zap.Error(err))
		return fmt.Errorf("failed to update threshold: %w", err)
	}
	return nil
}

// Delete removes a threshold and reports whether a row existed
func (r *ThresholdRepository) Delete(ctx context.Context, workspaceID, id string) (bool, error) {
	result, err := r.getExecutor(ctx).ExecContext(ctx,
		`DELETE FROM validation_thresholds WHERE workspace_id = ? AND id = ?`, workspaceID, id)
	if err != nil {
		r.logger.Error("Failed to delete threshold", zap.String("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to delete threshold: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

func scanThreshold(row scanner) (*entity.ValidationThreshold, error) {
	var t entity.ValidationThreshold
	var entityType string
	var description, createdBy sql.NullString

	err := row.Scan(
		&t.ID,
		&t.WorkspaceID,
		&entityType,
		&t.Category,
		&t.Level1Threshold,
		&t.Level2Threshold,
		&t.Level3Threshold,
		&t.AutoApproveBelow,
		&t.RequireAllLevels,
		&t.Currency,
		&description,
		&t.IsActive,
		&createdBy,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.EntityType = entity.EntityType(entityType)
	t.Description = description.String
	t.CreatedBy = createdBy.String
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func scopeLabel(entityType entity.EntityType, category string) string {
	if category == "" {
		return string(entityType)
	}
	return string(entityType) + "/" + category
}

// getExecutor returns appropriate executor based on context
func (r *ThresholdRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

// Verify interface compliance
var _ port.ThresholdRepository = (*ThresholdRepository)(nil)
