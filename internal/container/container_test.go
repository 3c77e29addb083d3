package container

import (
	"context"
	"testing"

	"github.com/garyjia/validation-workflow/internal/application/service"
	"github.com/garyjia/validation-workflow/internal/config"
	"github.com/garyjia/validation-workflow/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Database.Path = ":memory:"
	cfg.Metrics.Namespace = "container_test"
	return cfg
}

func TestNewContainer_RequiresDependencies(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(testConfig(t), nil)
	assert.Error(t, err)

	cfg := testConfig(t)
	cfg.Server.Port = 0
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestContainer_Lifecycle(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	assert.False(t, c.Ready())
	assert.False(t, c.Health(ctx).Overall)

	require.NoError(t, c.Start(ctx))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(ctx), "second start is refused")

	health := c.Health(ctx)
	assert.True(t, health.Overall)
	assert.True(t, health.Components["database"].Healthy)
	require.NotNil(t, c.Metrics())

	// the wired stack serves a full request round trip
	svc := c.Services()
	_, err = svc.Threshold.CreateThreshold(ctx, service.CreateThresholdInput{
		WorkspaceID:      "W1",
		EntityType:       entity.EntityTypeExpense,
		Level1Threshold:  5000,
		Level2Threshold:  20000,
		Level3Threshold:  100000,
		AutoApproveBelow: 1000,
		CreatedBy:        "admin",
	})
	require.NoError(t, err)

	req, err := svc.Validation.CreateValidationRequest(ctx, service.CreateRequestInput{
		WorkspaceID: "W1",
		EntityType:  entity.EntityTypeExpense,
		EntityID:    "exp-1",
		Amount:      500,
		RequestedBy: "u-1",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAutoApproved, req.Status)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
	assert.Error(t, c.Start(ctx), "closed container cannot restart")
}

func TestContainer_MetricsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = false

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	assert.Nil(t, c.Metrics())
	assert.NotNil(t, c.Services().Rules)
}

func TestProviders_RejectMissingInputs(t *testing.T) {
	_, err := ProvideDatabase(context.Background(), nil, zap.NewNop())
	assert.Error(t, err)

	_, err = ProvideRepositories(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = ProvideDispatcher(nil)
	assert.Error(t, err)

	_, err = ProvideServices(&ServiceDeps{Logger: zap.NewNop()})
	assert.Error(t, err)
}

func TestConvertToZapFields(t *testing.T) {
	fields := convertToZapFields("id", "r1", 42, "skipped", "err", assert.AnError, "dangling")
	require.Len(t, fields, 2)
	assert.Equal(t, "id", fields[0].Key)
	assert.Equal(t, "err", fields[1].Key)
}
