package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"telephony-relay/internal/settings"
)

// GetSettings returns the caller's configuration, or null when none is saved.
func (h Handlers) GetSettings(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	cfg, err := h.Settings.Get(c.Request.Context(), owner)
	switch {
	case errors.Is(err, settings.ErrNotFound):
		c.JSON(http.StatusOK, gin.H{"data": nil})
	case err != nil:
		internalError(c, "settings lookup failed", err)
	default:
		c.JSON(http.StatusOK, gin.H{"data": cfg.View()})
	}
}

func (h Handlers) PutSettings(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	var in settings.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	cfg, err := h.Settings.Save(c.Request.Context(), owner, in)
	var fields map[string]string
	switch {
	case isValidation(err, &fields):
		validationFailed(c, fields)
	case errors.Is(err, settings.ErrNumberTaken):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "inbound number is already in use"})
	case err != nil:
		internalError(c, "settings save failed", err)
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Telephony settings updated successfully.", "data": cfg.View()})
	}
}

// AdminListSettings lists every configuration with credentials redacted.
func (h Handlers) AdminListSettings(c *gin.Context) {
	all, err := h.Settings.List(c.Request.Context())
	if err != nil {
		internalError(c, "settings list failed", err)
		return
	}
	views := make([]settings.View, 0, len(all))
	for _, cfg := range all {
		views = append(views, cfg.View())
	}
	c.JSON(http.StatusOK, gin.H{"data": views, "total": len(views)})
}
