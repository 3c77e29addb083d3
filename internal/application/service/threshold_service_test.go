package service

import (
	"context"
	"errors"
	"testing"

	"github.com/garyjia/validation-workflow/internal/application/dispatcher"
	"github.com/garyjia/validation-workflow/internal/domain/apperr"
	"github.com/garyjia/validation-workflow/internal/domain/entity"
	"github.com/garyjia/validation-workflow/internal/domain/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestThresholdService() (ThresholdService, *mockThresholdRepo, *mockRequestRepo) {
	thresholds := newMockThresholdRepo()
	requests := newMockRequestRepo()
	return NewThresholdService(thresholds, requests, &mockLogger{}), thresholds, requests
}

func validThresholdInput() CreateThresholdInput {
	return CreateThresholdInput{
		WorkspaceID:      "W1",
		EntityType:       entity.EntityTypeExpense,
		AutoApproveBelow: 1000,
		Level1Threshold:  5000,
		Level2Threshold:  20000,
		Level3Threshold:  100000,
		CreatedBy:        "admin",
	}
}

func floatPtr(f float64) *float64 { return &f }
func boolPtr(b bool) *bool        { return &b }
func strPtr(s string) *string     { return &s }

func TestThresholdService_CreateThreshold(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(in *CreateThresholdInput)
		wantErr bool
	}{
		{"valid", func(in *CreateThresholdInput) {}, false},
		{"equal levels allowed", func(in *CreateThresholdInput) {
			in.AutoApproveBelow, in.Level1Threshold, in.Level2Threshold, in.Level3Threshold = 5000, 5000, 5000, 5000
		}, false},
		{"auto approve above level1", func(in *CreateThresholdInput) { in.AutoApproveBelow = 6000 }, true},
		{"level1 above level2", func(in *CreateThresholdInput) { in.Level1Threshold = 25000 }, true},
		{"level2 above level3", func(in *CreateThresholdInput) { in.Level2Threshold = 200000 }, true},
		{"negative auto approve", func(in *CreateThresholdInput) { in.AutoApproveBelow = -1 }, true},
		{"unknown entity type", func(in *CreateThresholdInput) { in.EntityType = "invoice" }, true},
		{"missing workspace", func(in *CreateThresholdInput) { in.WorkspaceID = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := newTestThresholdService()
			in := validThresholdInput()
			tt.mutate(&in)

			got, err := svc.CreateThreshold(context.Background(), in)

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperr.IsValidation(err), "want validation error, got %v", err)
				assert.Empty(t, repo.items, "nothing must be written")
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, got.ID)
			assert.True(t, got.IsActive)
			assert.Equal(t, entity.DefaultCurrency, got.Currency)
			assert.Len(t, repo.items, 1)
		})
	}
}

func TestThresholdService_CreateThreshold_DuplicateScope(t *testing.T) {
	svc, _, _ := newTestThresholdService()
	ctx := context.Background()

	_, err := svc.CreateThreshold(ctx, validThresholdInput())
	require.NoError(t, err)

	_, err = svc.CreateThreshold(ctx, validThresholdInput())
	assert.True(t, apperr.IsValidation(err))

	travel := validThresholdInput()
	travel.Category = "travel"
	_, err = svc.CreateThreshold(ctx, travel)
	assert.NoError(t, err, "a category threshold may coexist with the generic one")
}

func TestThresholdService_CreateThreshold_Options(t *testing.T) {
	thresholds := newMockThresholdRepo()
	svc := NewThresholdService(thresholds, newMockRequestRepo(), &mockLogger{}, WithDefaultCurrency("EUR"))

	in := validThresholdInput()
	in.IsActive = boolPtr(false)
	got, err := svc.CreateThreshold(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, "EUR", got.Currency)
	assert.False(t, got.IsActive)
}

func TestThresholdService_UpdateThreshold(t *testing.T) {
	svc, repo, _ := newTestThresholdService()
	ctx := context.Background()
	created, err := svc.CreateThreshold(ctx, validThresholdInput())
	require.NoError(t, err)

	t.Run("valid patch", func(t *testing.T) {
		updated, err := svc.UpdateThreshold(ctx, "W1", created.ID, entity.ThresholdPatch{
			Level1Threshold:  floatPtr(8000),
			RequireAllLevels: boolPtr(true),
		})
		require.NoError(t, err)
		assert.Equal(t, 8000.0, updated.Level1Threshold)
		assert.True(t, updated.RequireAllLevels)
		assert.Equal(t, 1000.0, updated.AutoApproveBelow, "untouched fields keep their value")
	})

	t.Run("ordering violation leaves row untouched", func(t *testing.T) {
		_, err := svc.UpdateThreshold(ctx, "W1", created.ID, entity.ThresholdPatch{
			Level2Threshold: floatPtr(1),
		})
		require.Error(t, err)
		assert.True(t, apperr.IsValidation(err))

		stored := repo.items[created.ID]
		assert.Equal(t, 20000.0, stored.Level2Threshold)
		assert.Equal(t, 8000.0, stored.Level1Threshold)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := svc.UpdateThreshold(ctx, "W1", "missing", entity.ThresholdPatch{})
		assert.True(t, apperr.IsNotFound(err))
	})

	t.Run("other workspace", func(t *testing.T) {
		_, err := svc.UpdateThreshold(ctx, "W2", created.ID, entity.ThresholdPatch{})
		assert.True(t, apperr.IsNotFound(err))
	})

	t.Run("category collision", func(t *testing.T) {
		in := validThresholdInput()
		in.Category = "travel"
		travel, err := svc.CreateThreshold(ctx, in)
		require.NoError(t, err)

		_, err = svc.UpdateThreshold(ctx, "W1", travel.ID, entity.ThresholdPatch{Category: strPtr("")})
		assert.True(t, apperr.IsValidation(err))
	})
}

func TestThresholdService_DeleteThreshold(t *testing.T) {
	svc, _, _ := newTestThresholdService()
	ctx := context.Background()
	created, err := svc.CreateThreshold(ctx, validThresholdInput())
	require.NoError(t, err)

	require.NoError(t, svc.DeleteThreshold(ctx, "W1", created.ID))

	_, err = svc.GetThreshold(ctx, "W1", created.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	err = svc.DeleteThreshold(ctx, "W1", created.ID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestThresholdService_Queries(t *testing.T) {
	svc, _, _ := newTestThresholdService()
	ctx := context.Background()

	_, err := svc.CreateThreshold(ctx, validThresholdInput())
	require.NoError(t, err)
	po := validThresholdInput()
	po.EntityType = entity.EntityTypePurchaseOrder
	_, err = svc.CreateThreshold(ctx, po)
	require.NoError(t, err)

	all, err := svc.GetAllThresholds(ctx, "W1")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	expenses, err := svc.GetThresholdsByEntityType(ctx, "W1", entity.EntityTypeExpense)
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, entity.EntityTypeExpense, expenses[0].EntityType)

	_, err = svc.GetThresholdsByEntityType(ctx, "W1", "bogus")
	assert.True(t, apperr.IsValidation(err))

	other, err := svc.GetAllThresholds(ctx, "W2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestThresholdService_ValidateWorkspaceThresholds(t *testing.T) {
	svc, repo, _ := newTestThresholdService()

	good := standardThreshold(false)
	bad := standardThreshold(false)
	bad.ID = "th-bad"
	bad.Category = "legacy"
	bad.Level1Threshold = 50000
	repo.put(good)
	repo.put(bad)

	issues, err := svc.ValidateWorkspaceThresholds(context.Background(), "W1")

	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "th-bad", issues[0].ThresholdID)
	assert.Equal(t, "legacy", issues[0].Category)
	assert.Contains(t, issues[0].Error, "level1_threshold")
	assert.Equal(t, 50000.0, repo.items["th-bad"].Level1Threshold, "audit must not modify rows")
}

func TestThresholdService_GetThresholdUsageStats(t *testing.T) {
	svc, repo, requests := newTestThresholdService()
	repo.put(standardThreshold(false))
	ctx := context.Background()

	for _, r := range []*entity.ValidationRequest{
		{ID: "r1", WorkspaceID: "W1", ThresholdID: "th-expense", Amount: 500, Status: entity.StatusAutoApproved},
		{ID: "r2", WorkspaceID: "W1", ThresholdID: "th-expense", Amount: 3000, Status: entity.StatusPendingLevel1},
		{ID: "r3", WorkspaceID: "W1", ThresholdID: "th-expense", Amount: 4000, Status: entity.StatusApproved},
		{ID: "r4", WorkspaceID: "W1", ThresholdID: "th-expense", Amount: 4500, Status: entity.StatusRejected},
		{ID: "r5", WorkspaceID: "W1", ThresholdID: "", Amount: 9999, Status: entity.StatusPendingLevel1},
	} {
		require.NoError(t, requests.Create(ctx, r))
	}

	stats, err := svc.GetThresholdUsageStats(ctx, "W1")

	require.NoError(t, err)
	require.Len(t, stats, 1)
	st := stats[0]
	assert.Equal(t, 4, st.TotalRequests)
	assert.Equal(t, 1, st.AutoApproved)
	assert.Equal(t, 1, st.Pending)
	assert.Equal(t, 1, st.Approved)
	assert.Equal(t, 1, st.Rejected)
	assert.Equal(t, 12000.0, st.TotalAmount)
	assert.Equal(t, 3000.0, st.AverageAmount)
}

func TestThresholdResolver_Resolve(t *testing.T) {
	repo := newMockThresholdRepo()
	repo.put(standardThreshold(false))
	resolver := NewThresholdResolver(repo)
	ctx := context.Background()

	tests := []struct {
		amount       float64
		wantLevel    entity.ValidationLevel
		autoApproved bool
	}{
		{999, entity.LevelOne, true},
		{1000, entity.LevelOne, false},
		{1001, entity.LevelOne, false},
		{4999, entity.LevelOne, false},
		{5000, entity.LevelTwo, false},
		{19999, entity.LevelTwo, false},
		{20000, entity.LevelThree, false},
		{50000, entity.LevelThree, false},
		{100000, entity.LevelOwner, false},
		{250000, entity.LevelOwner, false},
	}

	for _, tt := range tests {
		res, err := resolver.Resolve(ctx, "W1", entity.EntityTypeExpense, "", tt.amount)
		require.NoError(t, err)
		assert.Equal(t, tt.wantLevel, res.RequiredLevel, "amount %.0f", tt.amount)
		assert.Equal(t, tt.autoApproved, res.AutoApproved, "amount %.0f", tt.amount)
		assert.Equal(t, "th-expense", res.Threshold.ID)
	}
}

func TestThresholdResolver_CategoryPrecedence(t *testing.T) {
	repo := newMockThresholdRepo()
	repo.put(standardThreshold(false))

	travel := standardThreshold(true)
	travel.ID = "th-travel"
	travel.Category = "travel"
	travel.AutoApproveBelow = 0
	repo.put(travel)

	disabled := standardThreshold(false)
	disabled.ID = "th-meals"
	disabled.Category = "meals"
	disabled.IsActive = false
	repo.put(disabled)

	resolver := NewThresholdResolver(repo)
	ctx := context.Background()

	res, err := resolver.Resolve(ctx, "W1", entity.EntityTypeExpense, "travel", 500)
	require.NoError(t, err)
	assert.Equal(t, "th-travel", res.Threshold.ID)
	assert.False(t, res.AutoApproved)

	res, err = resolver.Resolve(ctx, "W1", entity.EntityTypeExpense, "office", 500)
	require.NoError(t, err)
	assert.Equal(t, "th-expense", res.Threshold.ID, "unknown category falls back to generic")

	res, err = resolver.Resolve(ctx, "W1", entity.EntityTypeExpense, "meals", 500)
	require.NoError(t, err)
	assert.Equal(t, "th-expense", res.Threshold.ID, "inactive category threshold is skipped")
}

func TestThresholdResolver_NotFound(t *testing.T) {
	resolver := NewThresholdResolver(newMockThresholdRepo())

	_, err := resolver.Resolve(context.Background(), "W1", entity.EntityTypeLeave, "", 10)
	assert.True(t, apperr.IsNotFound(err))

	_, err = resolver.Resolve(context.Background(), "W1", "unknown", "", 10)
	assert.True(t, apperr.IsValidation(err))
}

func TestThresholdService_PublishesSynchronously(t *testing.T) {
	d := dispatcher.NewDispatcher()
	var actions []string
	d.SubscribeNamed(event.TypeThresholdChanged, "recorder", func(_ context.Context, evt *event.Event) error {
		actions = append(actions, evt.GetPayloadString("action"))
		return nil
	})
	d.SubscribeNamed(event.TypeThresholdChanged, "failing", func(context.Context, *event.Event) error {
		return errors.New("sink down")
	})

	svc := NewThresholdService(newMockThresholdRepo(), newMockRequestRepo(), &mockLogger{}, WithThresholdDispatcher(d))
	ctx := context.Background()

	created, err := svc.CreateThreshold(ctx, validThresholdInput())
	require.NoError(t, err, "a failing subscriber does not fail the write")
	assert.Equal(t, []string{"created"}, actions)

	_, err = svc.UpdateThreshold(ctx, "W1", created.ID, entity.ThresholdPatch{Level1Threshold: floatPtr(6000)})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteThreshold(ctx, "W1", created.ID))
	assert.Equal(t, []string{"created", "updated", "deleted"}, actions)
}
