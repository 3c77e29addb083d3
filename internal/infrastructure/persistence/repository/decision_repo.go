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

const decisionColumns = `id, request_id, workspace_id, level, validated_by, status,
	comment, geolocation, ip_address, user_agent, signature_data,
	previous_status, resulting_status, decided_at`

// DecisionRepository implements port.DecisionRepository. Rows are never
// updated or deleted.
type DecisionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDecisionRepository creates a new decision repository
func NewDecisionRepository(db *sql.DB, logger *zap.Logger) port.DecisionRepository {
	return &DecisionRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a decision to the audit trail
func (r *DecisionRepository) Create(ctx context.Context, d *entity.ValidationDecision) error {
	query := `INSERT INTO validation_decisions (` + decisionColumns + `) VALUES (` + placeholders(14) + `)`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		d.ID,
		d.RequestID,
		d.WorkspaceID,
		string(d.Level),
		d.ValidatedBy,
		string(d.Status),
		nullString(d.Comment),
		nullString(d.Geolocation),
		nullString(d.IPAddress),
		nullString(d.UserAgent),
		nullString(d.SignatureData),
		string(d.PreviousStatus),
		string(d.ResultingStatus),
		d.DecidedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create decision",
			zap.String("request_id", d.RequestID),
			zap.String("validated_by", d.ValidatedBy),
			zap.Error(err))
		return fmt.Errorf("failed to create decision: %w", err)
	}
	return nil
}

// ListByRequest returns the decisions of a request in insertion order
func (r *DecisionRepository) ListByRequest(ctx context.Context, requestID string) ([]*entity.ValidationDecision, error) {
	query := `SELECT ` + decisionColumns + ` FROM validation_decisions
		WHERE request_id = ?
		ORDER BY rowid ASC`

	return r.query(ctx, query, requestID)
}

// Find returns decisions of a workspace in chronological order
func (r *DecisionRepository) Find(ctx context.Context, filter port.DecisionFilter) ([]*entity.ValidationDecision, error) {
	where := []string{"workspace_id = ?"}
	args := []interface{}{filter.WorkspaceID}

	if filter.ValidatedBy != "" {
		where = append(where, "validated_by = ?")
		args = append(args, filter.ValidatedBy)
	}
	if filter.DecidedFrom != nil {
		where = append(where, "decided_at >= ?")
		args = append(args, filter.DecidedFrom.UTC())
	}
	if filter.DecidedTo != nil {
		where = append(where, "decided_at <= ?")
		args = append(args, filter.DecidedTo.UTC())
	}

	query := `SELECT ` + decisionColumns + ` FROM validation_decisions
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY decided_at ASC, rowid ASC`

	return r.query(ctx, query, args...)
}

func (r *DecisionRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.ValidationDecision, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query decisions", zap.Error(err))
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	decisions := []*entity.ValidationDecision{}
	for rows.Next() {
		var d entity.ValidationDecision
		var level, status, previous, resulting string
		var comment, geolocation, ip, userAgent, signature sql.NullString

		if err := rows.Scan(
			&d.ID,
			&d.RequestID,
			&d.WorkspaceID,
			&level,
			&d.ValidatedBy,
			&status,
			&comment,
			&geolocation,
			&ip,
			&userAgent,
			&signature,
			&previous,
			&resulting,
			&d.DecidedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}

		d.Level = entity.ValidationLevel(level)
		d.Status = entity.DecisionStatus(status)
		d.PreviousStatus = entity.ValidationStatus(previous)
		d.ResultingStatus = entity.ValidationStatus(resulting)
		d.Comment = comment.String
		d.Geolocation = geolocation.String
		d.IPAddress = ip.String
		d.UserAgent = userAgent.String
		d.SignatureData = signature.String
		d.DecidedAt = d.DecidedAt.UTC()
		decisions = append(decisions, &d)
	}
	return decisions, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *DecisionRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

// Verify interface compliance
var _ port.DecisionRepository = (*DecisionRepository)(nil)
