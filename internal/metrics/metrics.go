// Package metrics exposes Prometheus collectors for the validation workflow
// and the rule engine.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/garyjia/validation-workflow/internal/application/dispatcher"
	"github.com/garyjia/validation-workflow/internal/domain/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "validation_workflow"

// Recorder owns a private registry so several instances can coexist in tests
type Recorder struct {
	registry *prometheus.Registry

	requestsCreated  *prometheus.CounterVec
	requestAmounts   *prometheus.HistogramVec
	autoApprovals    *prometheus.CounterVec
	decisions        *prometheus.CounterVec
	escalations      *prometheus.CounterVec
	decisionLatency  *prometheus.HistogramVec
	ruleMatches      *prometheus.CounterVec
	thresholdChanges *prometheus.CounterVec
	appErrors        *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewRecorder registers every collector under namespace
func NewRecorder(namespace string) *Recorder {
	if namespace == "" {
		namespace = defaultNamespace
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		requestsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_created_total",
			Help:      "Validation requests created",
		}, []string{"entity_type", "required_level"}),

		requestAmounts: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_amount",
			Help:      "Amounts submitted for validation, in the workspace currency",
			Buckets:   prometheus.ExponentialBuckets(1000, 5, 8),
		}, []string{"entity_type"}),

		autoApprovals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auto_approvals_total",
			Help:      "Requests approved below the auto-approval threshold",
		}, []string{"entity_type"}),

		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_finalized_total",
			Help:      "Requests finalized by a validator decision",
		}, []string{"entity_type", "status"}),

		escalations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Approvals that moved a request to the next level",
		}, []string{"entity_type", "level"}),

		decisionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "finalize_duration_hours",
			Help:      "Hours between request creation and its final decision",
			Buckets:   []float64{0.25, 1, 4, 8, 24, 48, 120, 240},
		}, []string{"entity_type"}),

		ruleMatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_matches_total",
			Help:      "Decision rules whose conditions all matched",
		}, []string{"decision_type"}),

		thresholdChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threshold_changes_total",
			Help:      "Threshold policy writes",
		}, []string{"action"}),

		appErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors returned to API callers by kind",
		}, []string{"kind"}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served",
		}, []string{"method", "path", "status"}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// Registry returns the registry backing the recorder
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Subscribe feeds the recorder from the domain event bus
func (r *Recorder) Subscribe(d dispatcher.Dispatcher) {
	d.SubscribeAll("metrics", r.handle)
}

func (r *Recorder) handle(_ context.Context, evt *event.Event) error {
	entityType := evt.GetPayloadString("entity_type")

	switch evt.Type {
	case event.TypeValidationRequested:
		r.requestsCreated.WithLabelValues(entityType, evt.GetPayloadString("required_level")).Inc()
		r.requestAmounts.WithLabelValues(entityType).Observe(evt.GetPayloadFloat("amount"))
	case event.TypeValidationAutoApproved:
		r.autoApprovals.WithLabelValues(entityType).Inc()
	case event.TypeValidationEscalated:
		r.escalations.WithLabelValues(entityType, evt.GetPayloadString("level")).Inc()
	case event.TypeValidationApproved, event.TypeValidationRejected:
		r.decisions.WithLabelValues(entityType, evt.GetPayloadString("status")).Inc()
		if requestedAt, ok := evt.Payload["requested_at"].(time.Time); ok {
			r.decisionLatency.WithLabelValues(entityType).Observe(evt.Timestamp.Sub(requestedAt).Hours())
		}
	case event.TypeRuleMatched:
		r.ruleMatches.WithLabelValues(evt.GetPayloadString("decision_type")).Inc()
	case event.TypeThresholdChanged:
		r.thresholdChanges.WithLabelValues(evt.GetPayloadString("action")).Inc()
	}
	return nil
}

// ObserveError counts an error returned to a caller
func (r *Recorder) ObserveError(kind string) {
	r.appErrors.WithLabelValues(kind).Inc()
}

// ObserveHTTP records one served request. path should be the route template
// so label cardinality stays bounded.
func (r *Recorder) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	r.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}
