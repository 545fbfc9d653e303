package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"telephony-relay/internal/auth"
	"telephony-relay/internal/contacts"
	"telephony-relay/internal/dispatch"
	"telephony-relay/internal/eventlog"
	"telephony-relay/internal/rbac"
	"telephony-relay/internal/reporting"
	"telephony-relay/internal/settings"
	"telephony-relay/pkg/logger"
)

// IntentQueue accepts outbound intents for asynchronous dispatch.
type IntentQueue interface {
	Enqueue(ctx context.Context, in dispatch.Intent) error
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth      *auth.Manager
	Settings  *settings.Service
	Events    *eventlog.Service
	Contacts  *contacts.Service
	Reporting *reporting.Service
	Intents   IntentQueue

	// AllowDevLogin enables token issuance without credentials. Never set in production.
	AllowDevLogin bool
	// Health reports backing store readiness for /healthz. Optional.
	Health func(ctx context.Context) error
}

func (h Handlers) Healthz(c *gin.Context) {
	if h.Health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.Health(ctx); err != nil {
			logger.FromGin(c).Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Role   string `json:"role"`
}

// Login issues a token pair for any user id. Development only.
func (h Handlers) Login(c *gin.Context) {
	if !h.AllowDevLogin {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Role == "" {
		req.Role = rbac.RoleUser
	}
	if req.UserID == "" || !rbac.Valid(req.Role) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id and a valid role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h Handlers) Refresh(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}
	pair, err := h.Auth.Refresh(req.RefreshToken, time.Now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h Handlers) Me(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"user_id": uid, "role": role})
}

// --- Dashboard ---

func (h Handlers) Dashboard(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	out, err := h.Reporting.Dashboard(c.Request.Context(), owner)
	if err != nil {
		internalError(c, "dashboard failed", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// ownerID aborts with 401 when the request carries no identity.
func ownerID(c *gin.Context) (string, bool) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return "", false
	}
	return uid, true
}

func internalError(c *gin.Context, msg string, err error) {
	logger.FromGin(c).Error(msg, zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": msg})
}

// validationFailed renders field errors as 422.
func validationFailed(c *gin.Context, fields map[string]string) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
		"error":  "the given data was invalid",
		"errors": fields,
	})
}

func isValidation(err error, fields *map[string]string) bool {
	var sv *settings.ValidationError
	if errors.As(err, &sv) {
		*fields = sv.Fields
		return true
	}
	var cv *contacts.ValidationError
	if errors.As(err, &cv) {
		*fields = cv.Fields
		return true
	}
	return false
}
