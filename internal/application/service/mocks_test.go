package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/validation-workflow/internal/application/port"
	"github.com/garyjia/validation-workflow/internal/domain/entity"
)

// In-memory repositories. Each keeps copies so callers cannot mutate stored rows.

type mockThresholdRepo struct {
	mu    sync.Mutex
	items map[string]*entity.ValidationThreshold
	order []string

	createFunc func(ctx context.Context, t *entity.ValidationThreshold) error
}

func newMockThresholdRepo() *mockThresholdRepo {
	return &mockThresholdRepo{items: make(map[string]*entity.ValidationThreshold)}
}

func (m *mockThresholdRepo) Create(ctx context.Context, t *entity.ValidationThreshold) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.items[t.ID] = &cp
	m.order = append(m.order, t.ID)
	return nil
}

func (m *mockThresholdRepo) GetByID(ctx context.Context, workspaceID, id string) (*entity.ValidationThreshold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.items[id]
	if !ok || t.WorkspaceID != workspaceID {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *mockThresholdRepo) GetByScope(ctx context.Context, workspaceID string, entityType entity.EntityType, category string) (*entity.ValidationThreshold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		t, ok := m.items[id]
		if ok && t.WorkspaceID == workspaceID && t.EntityType == entityType && t.Category == category {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockThresholdRepo) List(ctx context.Context, filter port.ThresholdFilter) ([]*entity.ValidationThreshold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*entity.ValidationThreshold{}
	for _, id := range m.order {
		t, ok := m.items[id]
		if !ok || t.WorkspaceID != filter.WorkspaceID {
			continue
		}
		if filter.EntityType != "" && t.EntityType != filter.EntityType {
			continue
		}
		if filter.ActiveOnly && !t.IsActive {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockThresholdRepo) Update(ctx context.Context, t *entity.ValidationThreshold) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.items[t.ID] = &cp
	return nil
}

func (m *mockThresholdRepo) Delete(ctx context.Context, workspaceID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.items[id]
	if !ok || t.WorkspaceID != workspaceID {
		return false, nil
	}
	delete(m.items, id)
	return true, nil
}

// put stores a threshold directly, bypassing service validation
func (m *mockThresholdRepo) put(t *entity.ValidationThreshold) {
	_ = m.Create(context.Background(), t)
}

type mockRequestRepo struct {
	mu    sync.Mutex
	items map[string]*entity.ValidationRequest
	order []string

	// beforeUpdate runs before the version check, to simulate a racing writer
	beforeUpdate func(id string)
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{items: make(map[string]*entity.ValidationRequest)}
}

func (m *mockRequestRepo) Create(ctx context.Context, req *entity.ValidationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *req
	m.items[req.ID] = &cp
	m.order = append(m.order, req.ID)
	return nil
}

func (m *mockRequestRepo) GetByID(ctx context.Context, workspaceID, id string) (*entity.ValidationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.items[id]
	if !ok || req.WorkspaceID != workspaceID {
		return nil, nil
	}
	cp := *req
	return &cp, nil
}

func (m *mockRequestRepo) Find(ctx context.Context, filter port.RequestFilter) ([]*entity.ValidationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*entity.ValidationRequest{}
	for _, id := range m.order {
		req := m.items[id]
		if req.WorkspaceID != filter.WorkspaceID {
			continue
		}
		if filter.EntityType != "" && req.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityID != "" && req.EntityID != filter.EntityID {
			continue
		}
		if filter.ThresholdID != "" && req.ThresholdID != filter.ThresholdID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, req.Status) {
			continue
		}
		cp := *req
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out, nil
}

func (m *mockRequestRepo) UpdateWithVersion(ctx context.Context, req *entity.ValidationRequest, expectedVersion int64) (bool, error) {
	if m.beforeUpdate != nil {
		m.beforeUpdate(req.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.items[req.ID]
	if !ok || stored.Version != expectedVersion {
		return false, nil
	}
	cp := *req
	m.items[req.ID] = &cp
	return true, nil
}

// bumpVersion simulates a concurrent writer
func (m *mockRequestRepo) bumpVersion(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[id].Version++
}

func containsStatus(list []entity.ValidationStatus, s entity.ValidationStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type mockDecisionRepo struct {
	mu    sync.Mutex
	items []*entity.ValidationDecision
}

func (m *mockDecisionRepo) Create(ctx context.Context, d *entity.ValidationDecision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.items = append(m.items, &cp)
	return nil
}

func (m *mockDecisionRepo) ListByRequest(ctx context.Context, requestID string) ([]*entity.ValidationDecision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*entity.ValidationDecision{}
	for _, d := range m.items {
		if d.RequestID == requestID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockDecisionRepo) Find(ctx context.Context, filter port.DecisionFilter) ([]*entity.ValidationDecision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*entity.ValidationDecision{}
	for _, d := range m.items {
		if d.WorkspaceID != filter.WorkspaceID {
			continue
		}
		if filter.ValidatedBy != "" && d.ValidatedBy != filter.ValidatedBy {
			continue
		}
		if filter.DecidedFrom != nil && d.DecidedAt.Before(*filter.DecidedFrom) {
			continue
		}
		if filter.DecidedTo != nil && d.DecidedAt.After(*filter.DecidedTo) {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockDecisionRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

type mockRuleRepo struct {
	mu    sync.Mutex
	items map[string]*entity.DecisionRule
}

func newMockRuleRepo() *mockRuleRepo {
	return &mockRuleRepo{items: make(map[string]*entity.DecisionRule)}
}

func (m *mockRuleRepo) Create(ctx context.Context, rule *entity.DecisionRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rule
	m.items[rule.ID] = &cp
	return nil
}

func (m *mockRuleRepo) GetByID(ctx context.Context, workspaceID, id string) (*entity.DecisionRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule, ok := m.items[id]
	if !ok || rule.WorkspaceID != workspaceID {
		return nil, nil
	}
	cp := *rule
	return &cp, nil
}

func (m *mockRuleRepo) List(ctx context.Context, filter port.RuleFilter) ([]*entity.DecisionRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*entity.DecisionRule{}
	for _, rule := range m.items {
		if rule.WorkspaceID != filter.WorkspaceID {
			continue
		}
		if filter.DecisionType != "" && rule.DecisionType != filter.DecisionType {
			continue
		}
		if filter.ActiveOnly && !rule.IsActive {
			continue
		}
		cp := *rule
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *mockRuleRepo) Update(ctx context.Context, rule *entity.DecisionRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rule
	m.items[rule.ID] = &cp
	return nil
}

func (m *mockRuleRepo) Delete(ctx context.Context, workspaceID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule, ok := m.items[id]
	if !ok || rule.WorkspaceID != workspaceID {
		return false, nil
	}
	delete(m.items, id)
	return true, nil
}

func (m *mockRuleRepo) RecordExecution(ctx context.Context, ruleID string, matched bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule, ok := m.items[ruleID]
	if !ok {
		return nil
	}
	rule.ExecutionCount++
	if matched {
		rule.MatchCount++
	}
	rule.LastExecutedAt = &at
	return nil
}

type mockExecutionRepo struct {
	mu    sync.Mutex
	items []*entity.RuleExecution
}

func (m *mockExecutionRepo) Create(ctx context.Context, e *entity.RuleExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, e)
	return nil
}

func (m *mockExecutionRepo) ListByRule(ctx context.Context, ruleID string, limit int) ([]*entity.RuleExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*entity.RuleExecution{}
	for i := len(m.items) - 1; i >= 0 && len(out) < limit; i-- {
		if m.items[i].RuleID == ruleID {
			out = append(out, m.items[i])
		}
	}
	return out, nil
}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

// fixedClock returns a clock that advances one minute per call
func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := current
		current = current.Add(time.Minute)
		return t
	}
}

// standardThreshold is the W1 expense policy used across the scenarios
func standardThreshold(requireAll bool) *entity.ValidationThreshold {
	return &entity.ValidationThreshold{
		ID:               "th-expense",
		WorkspaceID:      "W1",
		EntityType:       entity.EntityTypeExpense,
		AutoApproveBelow: 1000,
		Level1Threshold:  5000,
		Level2Threshold:  20000,
		Level3Threshold:  100000,
		RequireAllLevels: requireAll,
		Currency:         entity.DefaultCurrency,
		IsActive:         true,
	}
}
