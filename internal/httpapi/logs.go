package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"telephony-relay/internal/eventlog"
)

// ListLogs pages the caller's event ledger, newest first.
func (h Handlers) ListLogs(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	f := eventlog.Filter{
		Type:   eventlog.Type(c.Query("type")),
		Status: eventlog.Status(c.Query("status")),
		Search: c.Query("search"),
		Page:   queryInt(c, "page"),
	}
	if f.Type != "" && !f.Type.Valid() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown type"})
		return
	}
	if f.Status != "" && !f.Status.Valid() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	page, err := h.Events.List(c.Request.Context(), owner, f)
	if err != nil {
		internalError(c, "log listing failed", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}
