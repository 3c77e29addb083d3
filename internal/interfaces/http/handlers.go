package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/validation-workflow/internal/domain/apperr"
	"github.com/garyjia/validation-workflow/internal/domain/entity"
	"github.com/garyjia/validation-workflow/internal/metrics"
	"github.com/garyjia/validation-workflow/pkg/utils"
)

// Request headers carrying the caller's context
const (
	HeaderWorkspaceID    = "X-Workspace-ID"
	HeaderUserID         = "X-User-ID"
	HeaderUserName       = "X-User-Name"
	HeaderValidatorLevel = "X-Validator-Level"
)

const workspaceKey = "workspace_id"

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	metrics  *metrics.Recorder
	logger   Logger
}

// NewHandlers creates a new Handlers instance. recorder may be nil.
func NewHandlers(services Services, recorder *metrics.Recorder, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		metrics:  recorder,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// actor is the authenticated caller as forwarded by the gateway
type actor struct {
	UserID   string
	UserName string
	Level    entity.ValidationLevel
}

// requireWorkspace rejects API calls without a usable workspace header
func requireWorkspace() gin.HandlerFunc {
	return func(c *gin.Context) {
		workspaceID := c.GetHeader(HeaderWorkspaceID)
		if err := utils.ValidateIdentifier("workspace id", workspaceID); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, Response{
				Success: false,
				Error:   err.Error(),
				Code:    string(apperr.KindValidation),
			})
			return
		}
		c.Set(workspaceKey, workspaceID)
		c.Next()
	}
}

func workspaceID(c *gin.Context) string {
	return c.GetString(workspaceKey)
}

// requireActor reads the caller headers; it answers 400 and returns false
// when the user id is missing or the level is unknown
func (h *Handlers) requireActor(c *gin.Context) (actor, bool) {
	a := actor{
		UserID:   c.GetHeader(HeaderUserID),
		UserName: utils.SanitizeString(c.GetHeader(HeaderUserName)),
		Level:    entity.ValidationLevel(c.GetHeader(HeaderValidatorLevel)),
	}
	if err := utils.ValidateIdentifier("user id", a.UserID); err != nil {
		h.fail(c, apperr.Validation("%s", err.Error()))
		return actor{}, false
	}
	if a.Level != "" && !a.Level.IsValid() {
		h.fail(c, apperr.Validation("invalid validator level %q", a.Level))
		return actor{}, false
	}
	return a, true
}

// bind decodes the JSON body; it answers 400 and returns false on failure
func (h *Handlers) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.logger.Error("Invalid request body", "path", c.FullPath(), "error", err)
		h.fail(c, apperr.Validation("invalid request body: %v", err))
		return false
	}
	return true
}

func (h *Handlers) ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Success: true,
		Data:    data,
	})
}

// fail maps an application error kind onto the HTTP status
func (h *Handlers) fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindInvalidState, apperr.KindConcurrencyConflict:
		status = http.StatusConflict
	case apperr.KindPermission:
		status = http.StatusForbidden
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.FullPath(), "workspace_id", workspaceID(c), "error", err)
		message = "internal error"
	}
	if h.metrics != nil {
		h.metrics.ObserveError(string(kind))
	}

	c.JSON(status, Response{
		Success: false,
		Error:   message,
		Code:    string(kind),
	})
}

// queryFloat parses an optional numeric query parameter
func queryFloat(c *gin.Context, name string) (float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperr.Validation("%s must be a number", name)
	}
	return v, nil
}

// queryTime parses an optional RFC 3339 or YYYY-MM-DD query parameter.
// With endOfDay a bare date covers the whole day, so an inclusive upper
// bound keeps everything decided on it.
func queryTime(c *gin.Context, name string, endOfDay bool) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		if endOfDay {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		return t, nil
	}
	return time.Time{}, apperr.Validation("%s must be an RFC 3339 timestamp or a date", name)
}
