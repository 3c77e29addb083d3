package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/validation-workflow/internal/config"
	"github.com/garyjia/validation-workflow/internal/container"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

type testAPI struct {
	t      *testing.T
	router *gin.Engine
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Server.Mode = gin.TestMode
	cfg.Database.Path = ":memory:"
	cfg.Metrics.Namespace = "api_test"

	c, err := container.NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	svc := c.Services()
	server := NewServer(cfg.Server, Services{
		Thresholds: svc.Threshold,
		Resolver:   svc.Resolver,
		Validation: svc.Validation,
		Statistics: svc.Statistics,
		Rules:      svc.Rules,
	}, nopLogger{},
		WithMetrics(c.Metrics(), cfg.Metrics.Path),
		WithHealthCheck(func(ctx context.Context) (bool, interface{}) {
			h := c.Health(ctx)
			return h.Overall, h.Components
		}),
	)

	return &testAPI{t: t, router: server.Router()}
}

// call sends a request as user u-1 of workspace W1 unless headers override them
func (a *testAPI) call(method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, Response) {
	a.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderWorkspaceID, "W1")
	req.Header.Set(HeaderUserID, "u-1")
	for k, v := range headers {
		if v == "" {
			req.Header.Del(k)
			continue
		}
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var resp Response
	if w.Header().Get("Content-Type") != "" && bytes.HasPrefix(w.Body.Bytes(), []byte("{")) {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

// dataMap re-decodes the data field of a response
func dataMap(t *testing.T, resp Response) map[string]interface{} {
	t.Helper()
	m, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "data is %T", resp.Data)
	return m
}

func (a *testAPI) seedThreshold(requireAll bool) string {
	a.t.Helper()
	w, resp := a.call(http.MethodPost, "/api/v1/thresholds", map[string]interface{}{
		"entity_type":        "expense",
		"level1_threshold":   5000,
		"level2_threshold":   20000,
		"level3_threshold":   100000,
		"auto_approve_below": 1000,
		"require_all_levels": requireAll,
	}, nil)
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return dataMap(a.t, resp)["id"].(string)
}

func (a *testAPI) createRequest(amount float64) map[string]interface{} {
	a.t.Helper()
	w, resp := a.call(http.MethodPost, "/api/v1/validations", map[string]interface{}{
		"entity_type": "expense",
		"entity_id":   "exp-1",
		"amount":      amount,
		"entity_data": map[string]interface{}{"label": "Carburant"},
	}, nil)
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return dataMap(a.t, resp)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	w, resp := api.call(http.MethodGet, "/health", nil, map[string]string{HeaderWorkspaceID: ""})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "healthy", dataMap(t, resp)["status"])
}

func TestWorkspaceHeaderRequired(t *testing.T) {
	api := newTestAPI(t)

	w, resp := api.call(http.MethodGet, "/api/v1/thresholds", nil, map[string]string{HeaderWorkspaceID: ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "validation_error", resp.Code)
}

func TestUserHeaderRequiredForWrites(t *testing.T) {
	api := newTestAPI(t)

	w, resp := api.call(http.MethodPost, "/api/v1/validations", map[string]interface{}{
		"entity_type": "expense",
		"entity_id":   "exp-1",
		"amount":      10,
	}, map[string]string{HeaderUserID: ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", resp.Code)
}

func TestValidationLifecycle(t *testing.T) {
	api := newTestAPI(t)
	api.seedThreshold(false)

	auto := api.createRequest(500)
	assert.Equal(t, "auto_approved", auto["status"])

	req := api.createRequest(3000)
	assert.Equal(t, "pending_level_1", req["status"])
	id := req["id"].(string)

	w, resp := api.call(http.MethodGet, "/api/v1/validations/pending?level=level_1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 1)

	w, resp = api.call(http.MethodPost, "/api/v1/validations/"+id+"/decision",
		map[string]interface{}{"status": "approved", "comment": "ok"},
		map[string]string{HeaderUserID: "v-1", HeaderValidatorLevel: "level_1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "approved", dataMap(t, resp)["status"])

	// a finalized request accepts no more decisions
	w, resp = api.call(http.MethodPost, "/api/v1/validations/"+id+"/decision",
		map[string]interface{}{"status": "rejected"}, map[string]string{HeaderUserID: "v-2"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_state", resp.Code)

	w, resp = api.call(http.MethodGet, "/api/v1/validations/"+id, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decisions := dataMap(t, resp)["decisions"].([]interface{})
	require.Len(t, decisions, 1)
	assert.Equal(t, "v-1", decisions[0].(map[string]interface{})["validated_by"])

	w, resp = api.call(http.MethodGet, "/api/v1/validations/history/expense/exp-1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 2)

	w, resp = api.call(http.MethodGet, "/api/v1/validations/stats", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, dataMap(t, resp)["total_requests"])

	w, resp = api.call(http.MethodGet, "/api/v1/validations/stats/validators/v-1?start=2000-01-01", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, dataMap(t, resp)["approvals"])

	today := time.Now().UTC().Format(time.DateOnly)
	w, resp = api.call(http.MethodGet, "/api/v1/validations/stats/validators/v-1?start="+today+"&end="+today, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, dataMap(t, resp)["approvals"], "a bare end date includes the whole day")
}

func TestQueryTime(t *testing.T) {
	day := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		query    string
		endOfDay bool
		want     time.Time
		wantErr  bool
	}{
		{"absent", "", false, time.Time{}, false},
		{"date as start", "at=2026-10-15", false, day, false},
		{"date as end", "at=2026-10-15", true, day.Add(24*time.Hour - time.Nanosecond), false},
		{"timestamp as end is exact", "at=2026-10-15T08:30:00Z", true, day.Add(8*time.Hour + 30*time.Minute), false},
		{"garbage", "at=yesterday", false, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)

			got, err := queryTime(c, "at", tt.endOfDay)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
		})
	}
}

func TestDecisionErrorsMapToStatus(t *testing.T) {
	api := newTestAPI(t)
	api.seedThreshold(false)

	req := api.createRequest(10000)
	require.Equal(t, "pending_level_2", req["status"])
	id := req["id"].(string)

	tests := []struct {
		name     string
		path     string
		body     map[string]interface{}
		headers  map[string]string
		wantCode int
		wantKind string
	}{
		{
			name:     "wrong validator level",
			path:     "/api/v1/validations/" + id + "/decision",
			body:     map[string]interface{}{"status": "approved"},
			headers:  map[string]string{HeaderValidatorLevel: "level_1"},
			wantCode: http.StatusForbidden,
			wantKind: "permission_denied",
		},
		{
			name:     "unknown level header",
			path:     "/api/v1/validations/" + id + "/decision",
			body:     map[string]interface{}{"status": "approved"},
			headers:  map[string]string{HeaderValidatorLevel: "level_9"},
			wantCode: http.StatusBadRequest,
			wantKind: "validation_error",
		},
		{
			name:     "bad decision status",
			path:     "/api/v1/validations/" + id + "/decision",
			body:     map[string]interface{}{"status": "maybe"},
			wantCode: http.StatusBadRequest,
			wantKind: "validation_error",
		},
		{
			name:     "unknown request",
			path:     "/api/v1/validations/missing/decision",
			body:     map[string]interface{}{"status": "approved"},
			wantCode: http.StatusNotFound,
			wantKind: "not_found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := api.call(http.MethodPost, tt.path, tt.body, tt.headers)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			assert.Equal(t, tt.wantKind, resp.Code)
		})
	}
}

func TestRequestsAreWorkspaceScoped(t *testing.T) {
	api := newTestAPI(t)
	api.seedThreshold(false)
	id := api.createRequest(3000)["id"].(string)

	w, _ := api.call(http.MethodGet, "/api/v1/validations/"+id, nil, map[string]string{HeaderWorkspaceID: "W2"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestThresholdEndpoints(t *testing.T) {
	api := newTestAPI(t)
	id := api.seedThreshold(false)

	w, resp := api.call(http.MethodGet, "/api/v1/thresholds/resolve?entityType=expense&amount=25000", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "level_3", dataMap(t, resp)["required_level"])
	assert.Equal(t, false, dataMap(t, resp)["auto_approved"])

	w, _ = api.call(http.MethodGet, "/api/v1/thresholds/resolve?entityType=expense&amount=abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = api.call(http.MethodPatch, "/api/v1/thresholds/"+id, map[string]interface{}{"level2_threshold": 1000}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "ordering violated")
	assert.Equal(t, "validation_error", resp.Code)

	w, resp = api.call(http.MethodPatch, "/api/v1/thresholds/"+id, map[string]interface{}{"description": "Frais"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Frais", dataMap(t, resp)["description"])

	w, resp = api.call(http.MethodGet, "/api/v1/thresholds/validate", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, dataMap(t, resp)["valid"])

	w, resp = api.call(http.MethodGet, "/api/v1/thresholds/entity/expense", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 1)

	w, _ = api.call(http.MethodGet, "/api/v1/thresholds/usage", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = api.call(http.MethodDelete, "/api/v1/thresholds/"+id, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp = api.call(http.MethodGet, "/api/v1/thresholds/"+id, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", resp.Code)
}

func TestRuleEndpoints(t *testing.T) {
	api := newTestAPI(t)

	w, resp := api.call(http.MethodPost, "/api/v1/rules", map[string]interface{}{
		"name":               "Grosse dépense",
		"decision_type":      "expense",
		"trigger_type":       "on_create",
		"recommended_action": "require_manager_approval",
		"priority":           10,
		"conditions": []map[string]interface{}{
			{"field": "amount", "operator": "greater_than", "value": 1000},
		},
	}, map[string]string{HeaderUserName: "Awa"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rule := dataMap(t, resp)
	ruleID := rule["id"].(string)
	assert.Equal(t, "Awa", rule["created_by_name"])

	w, resp = api.call(http.MethodPost, "/api/v1/rules/execute", map[string]interface{}{
		"decision_type":  "expense",
		"reference_id":   "exp-9",
		"reference_data": map[string]interface{}{"amount": 5000},
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := dataMap(t, resp)
	assert.Len(t, result["matched_rules"], 1)
	assert.Len(t, result["executions"], 1)

	w, resp = api.call(http.MethodGet, "/api/v1/rules/"+ruleID+"/executions?limit=10", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 1)

	w, _ = api.call(http.MethodGet, "/api/v1/rules/"+ruleID+"/executions?limit=ten", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = api.call(http.MethodPost, "/api/v1/rules/"+ruleID+"/toggle", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, dataMap(t, resp)["is_active"])

	w, resp = api.call(http.MethodPost, "/api/v1/rules/"+ruleID+"/duplicate", nil, map[string]string{HeaderUserID: "u-2"})
	require.Equal(t, http.StatusCreated, w.Code)
	dup := dataMap(t, resp)
	assert.Equal(t, "Grosse dépense (copie)", dup["name"])
	assert.EqualValues(t, 0, dup["execution_count"])

	w, resp = api.call(http.MethodGet, "/api/v1/rules?decision_type=expense", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 2)

	w, _ = api.call(http.MethodDelete, "/api/v1/rules/"+ruleID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = api.call(http.MethodGet, "/api/v1/rules/"+ruleID, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRuleTemplates(t *testing.T) {
	api := newTestAPI(t)

	w, resp := api.call(http.MethodGet, "/api/v1/rule-templates", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, resp.Data)

	w, resp = api.call(http.MethodPost, "/api/v1/rule-templates/high-value-expense/rules", nil, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "high-value-expense", dataMap(t, resp)["template_id"])

	w, resp = api.call(http.MethodPost, "/api/v1/rule-templates/credit-limit-exceeded/rules",
		map[string]interface{}{"name": "Crédit"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "credit_limit has no default")
	assert.Equal(t, "validation_error", resp.Code)

	w, _ = api.call(http.MethodPost, "/api/v1/rule-templates/unknown/rules", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t)

	api.call(http.MethodGet, "/api/v1/validations/missing", nil, nil)

	w, _ := api.call(http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `api_test_http_requests_total{method="GET",path="/api/v1/validations/:id",status="404"} 1`)
	assert.Contains(t, body, `api_test_errors_total{kind="not_found"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	api := newTestAPI(t)

	w, _ := api.call(http.MethodOptions, "/api/v1/validations", nil, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), HeaderWorkspaceID)
}
