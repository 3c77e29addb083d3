package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/garyjia/validation-workflow/internal/application/port"
	"github.com/garyjia/validation-workflow/internal/domain/entity"
	"github.com/garyjia/validation-workflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const requestColumns = `id, workspace_id, entity_type, entity_id, entity_data, category,
	amount, requested_by, requested_at, request_reason, priority, tags,
	status, current_level, required_level, require_all_levels, threshold_id,
	finalized_at, version, created_at, updated_at`

// ValidationRequestRepository implements port.ValidationRequestRepository
type ValidationRequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewValidationRequestRepository creates a new validation request repository
func NewValidationRequestRepository(db *sql.DB, logger *zap.Logger) port.ValidationRequestRepository {
	return &ValidationRequestRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new request
func (r *ValidationRequestRepository) Create(ctx context.Context, req *entity.ValidationRequest) error {
	entityData, err := toJSON(req.EntityData)
	if err != nil {
		return err
	}
	tags, err := toJSON(req.Tags)
	if err != nil {
		return err
	}

	query := `INSERT INTO validation_requests (` + requestColumns + `) VALUES (` + placeholders(21) + `)`

	_, err = r.getExecutor(ctx).ExecContext(ctx, query,
		req.ID,
		req.WorkspaceID,
		string(req.EntityType),
		req.EntityID,
		entityData,
		nullString(req.Category),
		req.Amount,
		req.RequestedBy,
		req.RequestedAt.UTC(),
		nullString(req.RequestReason),
		req.Priority,
		tags,
		string(req.Status),
		nullString(string(req.CurrentLevel)),
		string(req.RequiredLevel),
		req.RequireAllLevels,
		nullString(req.ThresholdID),
		nullTime(req.FinalizedAt),
		req.Version,
		req.CreatedAt.UTC(),
		req.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create validation request",
			zap.String("workspace_id", req.WorkspaceID),
			zap.String("entity_id", req.EntityID),
			zap.Error(err))
		return fmt.Errorf("failed to create validation request: %w", err)
	}

	return nil
}

// GetByID retrieves a request of the workspace
func (r *ValidationRequestRepository) GetByID(ctx context.Context, workspaceID, id string) (*entity.ValidationRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM validation_requests WHERE workspace_id = ? AND id = ?`

	req, err := scanRequest(r.getExecutor(ctx).QueryRowContext(ctx, query, workspaceID, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get validation request", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get validation request: %w", err)
	}
	return req, nil
}

// Find returns the requests matching filter ordered by requested_at then id
func (r *ValidationRequestRepository) Find(ctx context.Context, filter port.RequestFilter) ([]*entity.ValidationRequest, error) {
	where := []string{"workspace_id = ?"}
	args := []interface{}{filter.WorkspaceID}

	if filter.EntityType != "" {
		where = append(where, "entity_type = ?")
		args = append(args, string(filter.EntityType))
	}
	if filter.EntityID != "" {
		where = append(where, "entity_id = ?")
		args = append(args, filter.EntityID)
	}
	if filter.ThresholdID != "" {
		where = append(where, "threshold_id = ?")
		args = append(args, filter.ThresholdID)
	}
	if len(filter.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, s := range filter.Statuses {
			args = append(args, string(s))
		}
	}
	if filter.RequestedFrom != nil {
		where = append(where, "requested_at >= ?")
		args = append(args, filter.RequestedFrom.UTC())
	}
	if filter.RequestedTo != nil {
		where = append(where, "requested_at <= ?")
		args = append(args, filter.RequestedTo.UTC())
	}

	query := `SELECT ` + requestColumns + ` FROM validation_requests
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY requested_at ASC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to find validation requests",
			zap.String("workspace_id", filter.WorkspaceID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to find validation requests: %w", err)
	}
	defer rows.Close()

	requests := []*entity.ValidationRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan validation request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// UpdateWithVersion writes the workflow columns when the stored version
// still matches expectedVersion
func (r *ValidationRequestRepository) UpdateWithVersion(ctx context.Context, req *entity.ValidationRequest, expectedVersion int64) (bool, error) {
	query := `
		UPDATE validation_requests
		SET status = ?, current_level = ?, finalized_at = ?, version = ?, updated_at = ?
		WHERE workspace_id = ? AND id = ? AND version = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		string(req.Status),
		nullString(string(req.CurrentLevel)),
		nullTime(req.FinalizedAt),
		req.Version,
		req.UpdatedAt.UTC(),
		req.WorkspaceID,
		req.ID,
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update validation request",
			zap.String("id", req.ID),
			zap.Int64("expected_version", expectedVersion),
			zap.Error(err))
		return false, fmt.Errorf("failed to update validation request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected == 1, nil
}

func scanRequest(row scanner) (*entity.ValidationRequest, error) {
	var req entity.ValidationRequest
	var entityType, status, requiredLevel string
	var entityData, category, reason, tags, currentLevel, thresholdID sql.NullString
	var finalizedAt sql.NullTime

	err := row.Scan(
		&req.ID,
		&req.WorkspaceID,
		&entityType,
		&req.EntityID,
		&entityData,
		&category,
		&req.Amount,
		&req.RequestedBy,
		&req.RequestedAt,
		&reason,
		&req.Priority,
		&tags,
		&status,
		&currentLevel,
		&requiredLevel,
		&req.RequireAllLevels,
		&thresholdID,
		&finalizedAt,
		&req.Version,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := fromJSON(entityData, &req.EntityData); err != nil {
		return nil, err
	}
	if err := fromJSON(tags, &req.Tags); err != nil {
		return nil, err
	}

	req.EntityType = entity.EntityType(entityType)
	req.Status = entity.ValidationStatus(status)
	req.RequiredLevel = entity.ValidationLevel(requiredLevel)
	req.CurrentLevel = entity.ValidationLevel(currentLevel.String)
	req.Category = category.String
	req.RequestReason = reason.String
	req.ThresholdID = thresholdID.String
	req.FinalizedAt = timePtr(finalizedAt)
	req.RequestedAt = req.RequestedAt.UTC()
	req.CreatedAt = req.CreatedAt.UTC()
	req.UpdatedAt = req.UpdatedAt.UTC()
	return &req, nil
}

// getExecutor returns appropriate executor based on context
func (r *ValidationRequestRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

// Verify interface compliance
var _ port.ValidationRequestRepository = (*ValidationRequestRepository)(nil)
