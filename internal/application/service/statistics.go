package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/validation-workflow/internal/application/port"
	"github.com/garyjia/validation-workflow/internal/domain/apperr"
	"github.com/garyjia/validation-workflow/internal/domain/entity"
)

// StatisticsService exposes read-only aggregations over requests and decisions
type StatisticsService interface {
	GetValidatorStats(ctx context.Context, workspaceID, validatorID string, start, end time.Time) (*entity.ValidatorStats, error)
	GetWorkflowStats(ctx context.Context, workspaceID string) (*entity.WorkflowStats, error)
}

type statisticsService struct {
	requestRepo  port.ValidationRequestRepository
	decisionRepo port.DecisionRepository
}

// NewStatisticsService creates a new StatisticsService
func NewStatisticsService(requestRepo port.ValidationRequestRepository, decisionRepo port.DecisionRepository) StatisticsService {
	return &statisticsService{
		requestRepo:  requestRepo,
		decisionRepo: decisionRepo,
	}
}

// GetValidatorStats counts the decisions of one validator made in [start, end].
// Decision time is measured from the request's creation.
func (s *statisticsService) GetValidatorStats(ctx context.Context, workspaceID, validatorID string, start, end time.Time) (*entity.ValidatorStats, error) {
	if validatorID == "" {
		return nil, apperr.Validation("validator id is required")
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return nil, apperr.Validation("end date must not be before start date")
	}

	filter := port.DecisionFilter{WorkspaceID: workspaceID, ValidatedBy: validatorID}
	if !start.IsZero() {
		filter.DecidedFrom = &start
	}
	if !end.IsZero() {
		filter.DecidedTo = &end
	}

	decisions, err := s.decisionRepo.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("load decisions: %w", err)
	}

	stats := &entity.ValidatorStats{
		WorkspaceID: workspaceID,
		ValidatorID: validatorID,
		StartDate:   start,
		EndDate:     end,
	}

	requestedAt := make(map[string]time.Time)
	var totalHours float64
	var timed int
	for _, d := range decisions {
		stats.TotalDecisions++
		if d.Status == entity.DecisionApproved {
			stats.Approvals++
		} else {
			stats.Rejections++
		}

		at, ok := requestedAt[d.RequestID]
		if !ok {
			req, err := s.requestRepo.GetByID(ctx, workspaceID, d.RequestID)
			if err != nil {
				return nil, fmt.Errorf("load request %s: %w", d.RequestID, err)
			}
			if req == nil {
				continue
			}
			at = req.RequestedAt
			requestedAt[d.RequestID] = at
		}
		totalHours += d.DecidedAt.Sub(at).Hours()
		timed++
	}

	if stats.TotalDecisions > 0 {
		stats.ApprovalRate = float64(stats.Approvals) / float64(stats.TotalDecisions)
	}
	if timed > 0 {
		stats.AverageDecisionHours = totalHours / float64(timed)
	}

	return stats, nil
}

// GetWorkflowStats summarises every request of the workspace. The approval
// rate only considers requests finalized by a human decision.
func (s *statisticsService) GetWorkflowStats(ctx context.Context, workspaceID string) (*entity.WorkflowStats, error) {
	requests, err := s.requestRepo.Find(ctx, port.RequestFilter{WorkspaceID: workspaceID})
	if err != nil {
		return nil, fmt.Errorf("load requests: %w", err)
	}

	stats := &entity.WorkflowStats{
		WorkspaceID: workspaceID,
		ByStatus:    make(map[entity.ValidationStatus]int, len(entity.ValidationStatuses)),
	}
	for _, st := range entity.ValidationStatuses {
		stats.ByStatus[st] = 0
	}

	var finalizeHours float64
	var finalized int
	for _, req := range requests {
		stats.TotalRequests++
		stats.ByStatus[req.Status]++
		if req.Status.IsPending() {
			stats.PendingTotal++
		}
		if req.FinalizedAt != nil && req.Status != entity.StatusAutoApproved {
			finalizeHours += req.FinalizedAt.Sub(req.RequestedAt).Hours()
			finalized++
		}
	}

	approved := stats.ByStatus[entity.StatusApproved]
	if decided := approved + stats.ByStatus[entity.StatusRejected]; decided > 0 {
		stats.ApprovalRate = float64(approved) / float64(decided)
	}
	if stats.TotalRequests > 0 {
		stats.AutoApprovalRate = float64(stats.ByStatus[entity.StatusAutoApproved]) / float64(stats.TotalRequests)
	}
	if finalized > 0 {
		stats.AverageFinalizeHours = finalizeHours / float64(finalized)
	}

	return stats, nil
}
