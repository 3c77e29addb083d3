package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/validation-workflow/internal/application/dispatcher"
	"github.com/garyjia/validation-workflow/internal/application/port"
	"github.com/garyjia/validation-workflow/internal/domain/apperr"
	"github.com/garyjia/validation-workflow/internal/domain/entity"
	"github.com/garyjia/validation-workflow/internal/domain/event"
	"github.com/google/uuid"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ThresholdService manages the per-workspace threshold table
type ThresholdService interface {
	CreateThreshold(ctx context.Context, input CreateThresholdInput) (*entity.ValidationThreshold, error)
	UpdateThreshold(ctx context.Context, workspaceID, id string, patch entity.ThresholdPatch) (*entity.ValidationThreshold, error)
	DeleteThreshold(ctx context.Context, workspaceID, id string) error
	GetThreshold(ctx context.Context, workspaceID, id string) (*entity.ValidationThreshold, error)
	GetThresholdsByEntityType(ctx context.Context, workspaceID string, entityType entity.EntityType) ([]*entity.ValidationThreshold, error)
	GetAllThresholds(ctx context.Context, workspaceID string) ([]*entity.ValidationThreshold, error)
	ValidateWorkspaceThresholds(ctx context.Context, workspaceID string) ([]entity.ThresholdIssue, error)
	GetThresholdUsageStats(ctx context.Context, workspaceID string) ([]*entity.ThresholdUsageStats, error)
}

// CreateThresholdInput carries the fields of a new threshold.
// IsActive defaults to true when omitted.
type CreateThresholdInput struct {
	WorkspaceID      string            `json:"-"`
	EntityType       entity.EntityType `json:"entity_type"`
	Category         string            `json:"category"`
	Level1Threshold  float64           `json:"level1_threshold"`
	Level2Threshold  float64           `json:"level2_threshold"`
	Level3Threshold  float64           `json:"level3_threshold"`
	AutoApproveBelow float64           `json:"auto_approve_below"`
	RequireAllLevels bool              `json:"require_all_levels"`
	Currency         string            `json:"currency"`
	Description      string            `json:"description"`
	IsActive         *bool             `json:"is_active"`
	CreatedBy        string            `json:"-"`
}

// ThresholdOption configures the threshold service
type ThresholdOption func(*thresholdServiceImpl)

// WithThresholdDispatcher emits threshold.changed events after each write
func WithThresholdDispatcher(d dispatcher.Dispatcher) ThresholdOption {
	return func(s *thresholdServiceImpl) {
		s.dispatcher = d
	}
}

// WithDefaultCurrency sets the currency stored when the input leaves it empty
func WithDefaultCurrency(currency string) ThresholdOption {
	return func(s *thresholdServiceImpl) {
		if currency != "" {
			s.defaultCurrency = currency
		}
	}
}

type thresholdServiceImpl struct {
	thresholdRepo   port.ThresholdRepository
	requestRepo     port.ValidationRequestRepository
	dispatcher      dispatcher.Dispatcher
	defaultCurrency string
	logger          Logger
	now             func() time.Time
}

// NewThresholdService creates a new ThresholdService
func NewThresholdService(
	thresholdRepo port.ThresholdRepository,
	requestRepo port.ValidationRequestRepository,
	logger Logger,
	opts ...ThresholdOption,
) ThresholdService {
	s := &thresholdServiceImpl{
		thresholdRepo:   thresholdRepo,
		requestRepo:     requestRepo,
		defaultCurrency: entity.DefaultCurrency,
		logger:          logger,
		now:             func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *thresholdServiceImpl) CreateThreshold(ctx context.Context, input CreateThresholdInput) (*entity.ValidationThreshold, error) {
	if input.WorkspaceID == "" {
		return nil, apperr.Validation("workspace id is required")
	}
	if !input.EntityType.IsValid() {
		return nil, apperr.Validation("invalid entity type %q", input.EntityType)
	}

	now := s.now()
	threshold := &entity.ValidationThreshold{
		ID:               uuid.NewString(),
		WorkspaceID:      input.WorkspaceID,
		EntityType:       input.EntityType,
		Category:         input.Category,
		Level1Threshold:  input.Level1Threshold,
		Level2Threshold:  input.Level2Threshold,
		Level3Threshold:  input.Level3Threshold,
		AutoApproveBelow: input.AutoApproveBelow,
		RequireAllLevels: input.RequireAllLevels,
		Currency:         input.Currency,
		Description:      input.Description,
		IsActive:         true,
		CreatedBy:        input.CreatedBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if input.IsActive != nil {
		threshold.IsActive = *input.IsActive
	}
	if threshold.Currency == "" {
		threshold.Currency = s.defaultCurrency
	}

	if err := threshold.ValidateOrdering(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	if err := s.ensureUniqueScope(ctx, threshold); err != nil {
		return nil, err
	}

	if err := s.thresholdRepo.Create(ctx, threshold); err != nil {
		s.logger.Error("Failed to create threshold", "error", err, "workspace_id", input.WorkspaceID)
		return nil, err
	}

	s.logger.Info("Threshold created",
		"id", threshold.ID,
		"workspace_id", threshold.WorkspaceID,
		"entity_type", threshold.EntityType,
		"category", threshold.Category,
	)
	s.publish(ctx, threshold, "created")
	return threshold, nil
}

// UpdateThreshold applies the patch to a copy and re-validates the whole row
// before writing, so a rejected patch leaves the stored threshold untouched.
func (s *thresholdServiceImpl) UpdateThreshold(ctx context.Context, workspaceID, id string, patch entity.ThresholdPatch) (*entity.ValidationThreshold, error) {
	current, err := s.GetThreshold(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}

	updated := *current
	patch.Apply(&updated)
	updated.UpdatedAt = s.now()

	if err := updated.ValidateOrdering(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	if updated.Category != current.Category {
		if err := s.ensureUniqueScope(ctx, &updated); err != nil {
			return nil, err
		}
	}

	if err := s.thresholdRepo.Update(ctx, &updated); err != nil {
		s.logger.Error("Failed to update threshold", "error", err, "id", id)
		return nil, err
	}

	s.logger.Info("Threshold updated", "id", id, "workspace_id", workspaceID)
	s.publish(ctx, &updated, "updated")
	return &updated, nil
}

func (s *thresholdServiceImpl) DeleteThreshold(ctx context.Context, workspaceID, id string) error {
	deleted, err := s.thresholdRepo.Delete(ctx, workspaceID, id)
	if err != nil {
		s.logger.Error("Failed to delete threshold", "error", err, "id", id)
		return err
	}
	if !deleted {
		return apperr.NotFound("threshold", id)
	}

	s.logger.Info("Threshold deleted", "id", id, "workspace_id", workspaceID)
	s.publish(ctx, &entity.ValidationThreshold{ID: id, WorkspaceID: workspaceID}, "deleted")
	return nil
}

func (s *thresholdServiceImpl) GetThreshold(ctx context.Context, workspaceID, id string) (*entity.ValidationThreshold, error) {
	threshold, err := s.thresholdRepo.GetByID(ctx, workspaceID, id)
	if err != nil {
		s.logger.Error("Failed to get threshold", "error", err, "id", id)
		return nil, err
	}
	if threshold == nil {
		return nil, apperr.NotFound("threshold", id)
	}
	return threshold, nil
}

func (s *thresholdServiceImpl) GetThresholdsByEntityType(ctx context.Context, workspaceID string, entityType entity.EntityType) ([]*entity.ValidationThreshold, error) {
	if !entityType.IsValid() {
		return nil, apperr.Validation("invalid entity type %q", entityType)
	}
	return s.thresholdRepo.List(ctx, port.ThresholdFilter{WorkspaceID: workspaceID, EntityType: entityType})
}

func (s *thresholdServiceImpl) GetAllThresholds(ctx context.Context, workspaceID string) ([]*entity.ValidationThreshold, error) {
	return s.thresholdRepo.List(ctx, port.ThresholdFilter{WorkspaceID: workspaceID})
}

// ValidateWorkspaceThresholds reports every stored threshold that breaks the
// ordering invariant. Nothing is modified.
func (s *thresholdServiceImpl) ValidateWorkspaceThresholds(ctx context.Context, workspaceID string) ([]entity.ThresholdIssue, error) {
	thresholds, err := s.thresholdRepo.List(ctx, port.ThresholdFilter{WorkspaceID: workspaceID})
	if err != nil {
		return nil, err
	}

	issues := []entity.ThresholdIssue{}
	for _, t := range thresholds {
		if err := t.ValidateOrdering(); err != nil {
			issues = append(issues, entity.ThresholdIssue{
				ThresholdID: t.ID,
				EntityType:  t.EntityType,
				Category:    t.Category,
				Error:       err.Error(),
			})
		}
	}

	return issues, nil
}

func (s *thresholdServiceImpl) GetThresholdUsageStats(ctx context.Context, workspaceID string) ([]*entity.ThresholdUsageStats, error) {
	thresholds, err := s.thresholdRepo.List(ctx, port.ThresholdFilter{WorkspaceID: workspaceID})
	if err != nil {
		return nil, err
	}
	requests, err := s.requestRepo.Find(ctx, port.RequestFilter{WorkspaceID: workspaceID})
	if err != nil {
		return nil, fmt.Errorf("load requests: %w", err)
	}

	byThreshold := make(map[string]*entity.ThresholdUsageStats, len(thresholds))
	stats := make([]*entity.ThresholdUsageStats, 0, len(thresholds))
	for _, t := range thresholds {
		st := &entity.ThresholdUsageStats{
			ThresholdID: t.ID,
			EntityType:  t.EntityType,
			Category:    t.Category,
		}
		byThreshold[t.ID] = st
		stats = append(stats, st)
	}

	for _, req := range requests {
		st, ok := byThreshold[req.ThresholdID]
		if !ok {
			continue
		}
		st.TotalRequests++
		st.TotalAmount += req.Amount
		switch {
		case req.Status == entity.StatusAutoApproved:
			st.AutoApproved++
		case req.Status == entity.StatusApproved:
			st.Approved++
		case req.Status == entity.StatusRejected:
			st.Rejected++
		case req.Status.IsPending():
			st.Pending++
		}
	}

	for _, st := range stats {
		if st.TotalRequests > 0 {
			st.AverageAmount = st.TotalAmount / float64(st.TotalRequests)
		}
	}

	return stats, nil
}

// ensureUniqueScope rejects a second threshold for the same entity type and category
func (s *thresholdServiceImpl) ensureUniqueScope(ctx context.Context, t *entity.ValidationThreshold) error {
	existing, err := s.thresholdRepo.GetByScope(ctx, t.WorkspaceID, t.EntityType, t.Category)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != t.ID {
		if t.Category == "" {
			return apperr.Validation("a generic threshold already exists for %s", t.EntityType)
		}
		return apperr.Validation("a threshold already exists for %s/%s", t.EntityType, t.Category)
	}
	return nil
}

func (s *thresholdServiceImpl) publish(ctx context.Context, t *entity.ValidationThreshold, action string) {
	if s.dispatcher == nil {
		return
	}
	// delivered synchronously; a handler error is logged, never returned
	evt := event.NewEvent(event.TypeThresholdChanged, t.WorkspaceID, t.ID, map[string]interface{}{
		"action":      action,
		"entity_type": string(t.EntityType),
		"category":    t.Category,
	})
	if err := s.dispatcher.Dispatch(ctx, evt); err != nil {
		s.logger.Error("Threshold event not delivered", "error", err, "id", t.ID, "action", action)
	}
}
