package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/validation-workflow/internal/application/dispatcher"
	"github.com/garyjia/validation-workflow/internal/application/port"
	"github.com/garyjia/validation-workflow/internal/domain/apperr"
	"github.com/garyjia/validation-workflow/internal/domain/entity"
	"github.com/garyjia/validation-workflow/internal/domain/event"
	domainwf "github.com/garyjia/validation-workflow/internal/domain/workflow"
	"github.com/google/uuid"
)

// ValidationService drives validation requests through the approval levels
type ValidationService interface {
	CreateValidationRequest(ctx context.Context, input CreateRequestInput) (*entity.ValidationRequest, error)
	ProcessValidation(ctx context.Context, input ProcessValidationInput) (*entity.ValidationRequest, error)
	GetValidationRequest(ctx context.Context, workspaceID, id string) (*entity.ValidationRequest, error)
	GetPendingValidations(ctx context.Context, workspaceID, validatorID string, level entity.ValidationLevel) ([]*entity.ValidationRequest, error)
	GetValidationHistory(ctx context.Context, workspaceID string, entityType entity.EntityType, entityID string) ([]*entity.ValidationRequest, error)
}

// CreateRequestInput describes the business entity submitted for validation
type CreateRequestInput struct {
	WorkspaceID   string                 `json:"-"`
	EntityType    entity.EntityType      `json:"entity_type"`
	EntityID      string                 `json:"entity_id"`
	EntityData    map[string]interface{} `json:"entity_data"`
	Category      string                 `json:"category"`
	Amount        float64                `json:"amount"`
	RequestedBy   string                 `json:"-"`
	RequestReason string                 `json:"request_reason"`
	Priority      string                 `json:"priority"`
	Tags          []string               `json:"tags"`
}

// ProcessValidationInput is one validator decision.
// ValidatorLevel is optional; when set it is checked against the pending level.
type ProcessValidationInput struct {
	WorkspaceID         string                 `json:"-"`
	ValidationRequestID string                 `json:"-"`
	ValidatedBy         string                 `json:"-"`
	ValidatorLevel      entity.ValidationLevel `json:"-"`
	Status              entity.DecisionStatus  `json:"status"`
	Comment             string                 `json:"comment"`
	Geolocation         string                 `json:"geolocation"`
	IPAddress           string                 `json:"-"`
	UserAgent           string                 `json:"-"`
	SignatureData       string                 `json:"signature_data"`
}

// ValidationOption configures the validation service
type ValidationOption func(*validationServiceImpl)

// WithValidationDispatcher emits lifecycle events after each committed change
func WithValidationDispatcher(d dispatcher.Dispatcher) ValidationOption {
	return func(s *validationServiceImpl) {
		s.dispatcher = d
	}
}

// WithUnconfiguredFallback lets requests without a threshold policy wait on
// level 1 instead of failing with a not-found error.
func WithUnconfiguredFallback(allow bool) ValidationOption {
	return func(s *validationServiceImpl) {
		s.allowUnconfigured = allow
	}
}

// WithValidatorLevelCheck toggles the check of ValidatorLevel against the pending level
func WithValidatorLevelCheck(enforce bool) ValidationOption {
	return func(s *validationServiceImpl) {
		s.enforceLevel = enforce
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) ValidationOption {
	return func(s *validationServiceImpl) {
		s.now = now
	}
}

type validationServiceImpl struct {
	requestRepo       port.ValidationRequestRepository
	decisionRepo      port.DecisionRepository
	resolver          ThresholdResolver
	txManager         port.TransactionManager
	dispatcher        dispatcher.Dispatcher
	logger            Logger
	allowUnconfigured bool
	enforceLevel      bool
	now               func() time.Time
}

// NewValidationService creates a new ValidationService
func NewValidationService(
	requestRepo port.ValidationRequestRepository,
	decisionRepo port.DecisionRepository,
	resolver ThresholdResolver,
	txManager port.TransactionManager,
	logger Logger,
	opts ...ValidationOption,
) ValidationService {
	s := &validationServiceImpl{
		requestRepo:  requestRepo,
		decisionRepo: decisionRepo,
		resolver:     resolver,
		txManager:    txManager,
		logger:       logger,
		enforceLevel: true,
		now:          func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CreateValidationRequest resolves the policy and stores the request either
// auto-approved or pending on its first level. No decision is recorded for
// an auto-approval.
func (s *validationServiceImpl) CreateValidationRequest(ctx context.Context, input CreateRequestInput) (*entity.ValidationRequest, error) {
	if err := validateCreateInput(&input); err != nil {
		return nil, err
	}

	snapshot, err := snapshotEntityData(input.EntityData)
	if err != nil {
		return nil, apperr.Validation("entity data is not serializable: %v", err)
	}

	resolution, err := s.resolver.Resolve(ctx, input.WorkspaceID, input.EntityType, input.Category, input.Amount)
	if err != nil {
		if !(s.allowUnconfigured && apperr.IsNotFound(err)) {
			return nil, err
		}
		s.logger.Info("No threshold configured, falling back to level 1",
			"workspace_id", input.WorkspaceID,
			"entity_type", input.EntityType,
			"category", input.Category,
		)
		resolution = &entity.Resolution{RequiredLevel: entity.LevelOne}
	}

	policy := domainwf.Policy{RequiredLevel: resolution.RequiredLevel}
	if resolution.Threshold != nil {
		policy.RequireAllLevels = resolution.Threshold.RequireAllLevels
	}
	status := domainwf.InitialState(resolution.AutoApproved, policy)

	now := s.now()
	req := &entity.ValidationRequest{
		ID:               uuid.NewString(),
		WorkspaceID:      input.WorkspaceID,
		EntityType:       input.EntityType,
		EntityID:         input.EntityID,
		EntityData:       snapshot,
		Category:         input.Category,
		Amount:           input.Amount,
		RequestedBy:      input.RequestedBy,
		RequestedAt:      now,
		RequestReason:    input.RequestReason,
		Priority:         input.Priority,
		Tags:             input.Tags,
		Status:           status,
		CurrentLevel:     status.Level(),
		RequiredLevel:    policy.RequiredLevel,
		RequireAllLevels: policy.RequireAllLevels,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if resolution.Threshold != nil {
		req.ThresholdID = resolution.Threshold.ID
	}
	if status.IsTerminal() {
		req.FinalizedAt = &now
	}

	if err := s.requestRepo.Create(ctx, req); err != nil {
		s.logger.Error("Failed to create validation request", "error", err, "entity_id", input.EntityID)
		return nil, err
	}

	s.logger.Info("Validation request created",
		"id", req.ID,
		"workspace_id", req.WorkspaceID,
		"entity_type", req.EntityType,
		"entity_id", req.EntityID,
		"status", req.Status,
		"required_level", req.RequiredLevel,
	)

	s.publish(ctx, event.TypeValidationRequested, req, nil)
	if req.Status == entity.StatusAutoApproved {
		s.publish(ctx, event.TypeValidationAutoApproved, req, nil)
	}

	return req, nil
}

// ProcessValidation records one decision and moves the request to its next
// status. The decision insert and the versioned request update commit together;
// a lost race rolls both back with a concurrency conflict.
func (s *validationServiceImpl) ProcessValidation(ctx context.Context, input ProcessValidationInput) (*entity.ValidationRequest, error) {
	if input.ValidationRequestID == "" {
		return nil, apperr.Validation("validation request id is required")
	}
	if input.ValidatedBy == "" {
		return nil, apperr.Validation("validated_by is required")
	}
	trigger, ok := domainwf.TriggerFor(input.Status)
	if !ok {
		return nil, apperr.Validation("decision status must be approved or rejected, got %q", input.Status)
	}
	if input.ValidatorLevel != "" && !input.ValidatorLevel.IsValid() {
		return nil, apperr.Validation("invalid validator level %q", input.ValidatorLevel)
	}

	var (
		req      *entity.ValidationRequest
		decision *entity.ValidationDecision
	)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.requestRepo.GetByID(txCtx, input.WorkspaceID, input.ValidationRequestID)
		if err != nil {
			return fmt.Errorf("get request: %w", err)
		}
		if current == nil {
			return apperr.NotFound("validation request", input.ValidationRequestID)
		}
		if current.Status.IsTerminal() {
			return apperr.InvalidState("validation request %s is already %s", current.ID, current.Status)
		}
		if err := s.checkValidatorLevel(current, input.ValidatorLevel); err != nil {
			return err
		}

		machine := domainwf.NewValidationMachine(current.Status)
		policyCtx := domainwf.WithPolicy(txCtx, domainwf.Policy{
			RequiredLevel:    current.RequiredLevel,
			RequireAllLevels: current.RequireAllLevels,
		})
		if err := machine.Fire(policyCtx, trigger); err != nil {
			return apperr.InvalidState("cannot %s request %s in status %s", trigger, current.ID, current.Status)
		}

		now := s.now()
		decision = &entity.ValidationDecision{
			ID:              uuid.NewString(),
			RequestID:       current.ID,
			WorkspaceID:     current.WorkspaceID,
			Level:           current.Status.Level(),
			ValidatedBy:     input.ValidatedBy,
			Status:          input.Status,
			Comment:         input.Comment,
			Geolocation:     input.Geolocation,
			IPAddress:       input.IPAddress,
			UserAgent:       input.UserAgent,
			SignatureData:   input.SignatureData,
			PreviousStatus:  current.Status,
			ResultingStatus: machine.State(),
			DecidedAt:       now,
		}
		if err := s.decisionRepo.Create(txCtx, decision); err != nil {
			return fmt.Errorf("record decision: %w", err)
		}

		expected := current.Version
		next := *current
		next.Status = machine.State()
		next.CurrentLevel = next.Status.Level()
		next.UpdatedAt = now
		next.Version = expected + 1
		if next.Status.IsTerminal() {
			next.FinalizedAt = &now
		}

		updated, err := s.requestRepo.UpdateWithVersion(txCtx, &next, expected)
		if err != nil {
			return fmt.Errorf("update request: %w", err)
		}
		if !updated {
			return apperr.ConcurrencyConflict("validation request", current.ID)
		}

		req = &next
		return nil
	})

	if err != nil {
		var appErr *apperr.Error
		if !errors.As(err, &appErr) {
			s.logger.Error("Failed to process validation", "error", err, "request_id", input.ValidationRequestID)
		}
		return nil, err
	}

	s.logger.Info("Validation decision recorded",
		"request_id", req.ID,
		"decision_id", decision.ID,
		"validated_by", decision.ValidatedBy,
		"decision", decision.Status,
		"previous_status", decision.PreviousStatus,
		"status", req.Status,
	)

	payload := map[string]interface{}{
		"decision_id":     decision.ID,
		"validated_by":    decision.ValidatedBy,
		"level":           string(decision.Level),
		"previous_status": string(decision.PreviousStatus),
	}
	switch req.Status {
	case entity.StatusApproved:
		s.publish(ctx, event.TypeValidationApproved, req, payload)
	case entity.StatusRejected:
		s.publish(ctx, event.TypeValidationRejected, req, payload)
	default:
		s.publish(ctx, event.TypeValidationEscalated, req, payload)
	}

	return req, nil
}

func (s *validationServiceImpl) GetValidationRequest(ctx context.Context, workspaceID, id string) (*entity.ValidationRequest, error) {
	req, err := s.requestRepo.GetByID(ctx, workspaceID, id)
	if err != nil {
		s.logger.Error("Failed to get validation request", "error", err, "id", id)
		return nil, err
	}
	if req == nil {
		return nil, apperr.NotFound("validation request", id)
	}

	decisions, err := s.decisionRepo.ListByRequest(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("load decisions: %w", err)
	}
	req.Decisions = decisions
	return req, nil
}

// GetPendingValidations returns the requests waiting on exactly the given level
func (s *validationServiceImpl) GetPendingValidations(ctx context.Context, workspaceID, validatorID string, level entity.ValidationLevel) ([]*entity.ValidationRequest, error) {
	if !level.IsValid() {
		return nil, apperr.Validation("invalid validator level %q", level)
	}

	requests, err := s.requestRepo.Find(ctx, port.RequestFilter{
		WorkspaceID: workspaceID,
		Statuses:    []entity.ValidationStatus{level.PendingStatus()},
	})
	if err != nil {
		s.logger.Error("Failed to list pending validations", "error", err, "validator_id", validatorID, "level", level)
		return nil, err
	}
	return requests, nil
}

// GetValidationHistory returns every request filed for the entity, oldest
// first, each with its decisions in recorded order.
func (s *validationServiceImpl) GetValidationHistory(ctx context.Context, workspaceID string, entityType entity.EntityType, entityID string) ([]*entity.ValidationRequest, error) {
	if !entityType.IsValid() {
		return nil, apperr.Validation("invalid entity type %q", entityType)
	}
	if entityID == "" {
		return nil, apperr.Validation("entity id is required")
	}

	requests, err := s.requestRepo.Find(ctx, port.RequestFilter{
		WorkspaceID: workspaceID,
		EntityType:  entityType,
		EntityID:    entityID,
	})
	if err != nil {
		return nil, err
	}

	for _, req := range requests {
		decisions, err := s.decisionRepo.ListByRequest(ctx, req.ID)
		if err != nil {
			return nil, fmt.Errorf("load decisions for %s: %w", req.ID, err)
		}
		req.Decisions = decisions
	}

	return requests, nil
}

// checkValidatorLevel rejects a decision from a level other than the pending
// one. The owner may decide at any level.
func (s *validationServiceImpl) checkValidatorLevel(req *entity.ValidationRequest, level entity.ValidationLevel) error {
	if !s.enforceLevel || level == "" || level == entity.LevelOwner {
		return nil
	}
	if pending := req.Status.Level(); level != pending {
		return apperr.Permission("validator level %s cannot decide a request pending %s", level, pending)
	}
	return nil
}

func (s *validationServiceImpl) publish(ctx context.Context, t event.Type, req *entity.ValidationRequest, extra map[string]interface{}) {
	if s.dispatcher == nil {
		return
	}
	payload := map[string]interface{}{
		"entity_type":    string(req.EntityType),
		"entity_id":      req.EntityID,
		"status":         string(req.Status),
		"amount":         req.Amount,
		"required_level": string(req.RequiredLevel),
		"requested_at":   req.RequestedAt,
	}
	for k, v := range extra {
		payload[k] = v
	}
	// events of one request are correlated by the request id
	s.dispatcher.DispatchAsync(ctx, event.NewEvent(t, req.WorkspaceID, req.ID, payload).WithCorrelation(req.ID))
}

func validateCreateInput(input *CreateRequestInput) error {
	if input.WorkspaceID == "" {
		return apperr.Validation("workspace id is required")
	}
	if !input.EntityType.IsValid() {
		return apperr.Validation("invalid entity type %q", input.EntityType)
	}
	if input.EntityID == "" {
		return apperr.Validation("entity_id is required")
	}
	if input.RequestedBy == "" {
		return apperr.Validation("requested_by is required")
	}
	if input.Amount < 0 {
		return apperr.Validation("amount must be non-negative")
	}
	if input.Priority == "" {
		input.Priority = entity.PriorityNormal
	}
	if !entity.IsValidPriority(input.Priority) {
		return apperr.Validation("invalid priority %q", input.Priority)
	}
	return nil
}

// snapshotEntityData deep-copies the caller's map so later mutations of the
// business object never reach the stored request.
func snapshotEntityData(data map[string]interface{}) (map[string]interface{}, error) {
	if data == nil {
		return map[string]interface{}{}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var snapshot map[string]interface{}
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}
