package httpapi

import (
	"github.com/gin-gonic/gin"

	"telephony-relay/internal/rbac"
)

// RegisterPublic mounts the unauthenticated /v1 routes.
func (h Handlers) RegisterPublic(v1 *gin.RouterGroup) {
	a := v1.Group("/auth")
	a.POST("/login", h.Login)
	a.POST("/refresh", h.Refresh)
}

// RegisterProtected mounts the /v1 routes. authMW must inject identity.
func (h Handlers) RegisterProtected(v1 *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := v1.Group("")
	g.Use(authMW, rbac.RequireAnyRole(rbac.RoleUser))

	g.GET("/me", h.Me)
	g.GET("/dashboard", h.Dashboard)
	g.GET("/settings", h.GetSettings)
	g.PUT("/settings", h.PutSettings)
	g.GET("/logs", h.ListLogs)

	ct := g.Group("/contacts")
	ct.GET("", h.ListContacts)
	ct.POST("", h.CreateContact)
	ct.GET("/:id", h.GetContact)
	ct.PUT("/:id", h.UpdateContact)
	ct.DELETE("/:id", h.DeleteContact)
	ct.POST("/:id/favorite", h.ToggleFavorite)
	ct.POST("/:id/call", h.CallContact)
	ct.POST("/:id/sms", h.SMSContact)

	admin := v1.Group("/admin")
	admin.Use(authMW, rbac.RequireAnyRole(rbac.RoleAdmin))
	admin.GET("/settings", h.AdminListSettings)
}
