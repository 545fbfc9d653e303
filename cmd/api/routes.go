package main

import (
	"github.com/gin-gonic/gin"

	"telephony-relay/internal/config"
	"telephony-relay/internal/httpapi"
	"telephony-relay/internal/telephony"
)

type routeDeps struct {
	inbound telephony.InboundHandler
	api     httpapi.Handlers
	authMW  gin.HandlerFunc
}

// registerRoutes wires HTTP routes to handlers. No business logic here.
func registerRoutes(r *gin.Engine, cfg config.Config, d routeDeps) {
	r.GET("/healthz", d.api.Healthz)

	// Provider webhooks are public; Twilio signs them when validation is enabled.
	var hooks []gin.HandlerFunc
	if cfg.Twilio.ValidateSignature {
		hooks = append(hooks, telephony.RequireTwilioSignature(cfg.Twilio.AuthToken, cfg.Twilio.PublicBaseURL))
	}
	for _, prefix := range []string{"/webhooks", "/webhooks/twilio"} {
		g := r.Group(prefix, hooks...)
		g.POST("/voice", d.inbound.HandleVoice)
		g.POST("/sms", d.inbound.HandleSMS)
	}

	v1 := r.Group("/v1")
	d.api.RegisterPublic(v1)
	d.api.RegisterProtected(v1, d.authMW)
}
