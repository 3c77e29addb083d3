package service

import (
	"context"

	"github.com/garyjia/validation-workflow/internal/application/port"
	"github.com/garyjia/validation-workflow/internal/domain/apperr"
	"github.com/garyjia/validation-workflow/internal/domain/entity"
)

// ThresholdResolver picks the applicable policy for an amount
type ThresholdResolver interface {
	Resolve(ctx context.Context, workspaceID string, entityType entity.EntityType, category string, amount float64) (*entity.Resolution, error)
}

type thresholdResolver struct {
	thresholdRepo port.ThresholdRepository
}

// NewThresholdResolver creates a resolver backed by the threshold table
func NewThresholdResolver(thresholdRepo port.ThresholdRepository) ThresholdResolver {
	return &thresholdResolver{thresholdRepo: thresholdRepo}
}

// Resolve looks up the category threshold first and falls back to the
// generic one. Inactive thresholds are skipped.
func (r *thresholdResolver) Resolve(ctx context.Context, workspaceID string, entityType entity.EntityType, category string, amount float64) (*entity.Resolution, error) {
	if !entityType.IsValid() {
		return nil, apperr.Validation("invalid entity type %q", entityType)
	}
	if amount < 0 {
		return nil, apperr.Validation("amount must be non-negative")
	}

	threshold, err := r.lookup(ctx, workspaceID, entityType, category)
	if err != nil {
		return nil, err
	}
	if threshold == nil {
		return nil, apperr.NotFound("threshold policy for", scopeName(entityType, category))
	}

	return &entity.Resolution{
		RequiredLevel: RequiredLevel(threshold, amount),
		AutoApproved:  amount < threshold.AutoApproveBelow,
		Threshold:     threshold,
	}, nil
}

func (r *thresholdResolver) lookup(ctx context.Context, workspaceID string, entityType entity.EntityType, category string) (*entity.ValidationThreshold, error) {
	if category != "" {
		t, err := r.thresholdRepo.GetByScope(ctx, workspaceID, entityType, category)
		if err != nil {
			return nil, err
		}
		if t != nil && t.IsActive {
			return t, nil
		}
	}

	t, err := r.thresholdRepo.GetByScope(ctx, workspaceID, entityType, "")
	if err != nil {
		return nil, err
	}
	if t != nil && t.IsActive {
		return t, nil
	}
	return nil, nil
}

// RequiredLevel returns the smallest level whose threshold is strictly above
// the amount, or owner when the amount reaches level 3.
func RequiredLevel(t *entity.ValidationThreshold, amount float64) entity.ValidationLevel {
	switch {
	case amount < t.Level1Threshold:
		return entity.LevelOne
	case amount < t.Level2Threshold:
		return entity.LevelTwo
	case amount < t.Level3Threshold:
		return entity.LevelThree
	default:
		return entity.LevelOwner
	}
}

func scopeName(entityType entity.EntityType, category string) string {
	if category == "" {
		return string(entityType)
	}
	return string(entityType) + "/" + category
}
