package telephony

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/twilio/twilio-go/client"
	"go.uber.org/zap"

	"telephony-relay/pkg/logger"
)

const headerTwilioSignature = "X-Twilio-Signature"

// RequireTwilioSignature rejects webhook requests whose X-Twilio-Signature does not
// match publicBaseURL + request URI signed with authToken.
func RequireTwilioSignature(authToken, publicBaseURL string) gin.HandlerFunc {
	validator := client.NewRequestValidator(authToken)
	return func(c *gin.Context) {
		if err := c.Request.ParseForm(); err != nil {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		params := make(map[string]string, len(c.Request.PostForm))
		for k := range c.Request.PostForm {
			params[k] = c.Request.PostForm.Get(k)
		}
		url := publicBaseURL + c.Request.URL.RequestURI()
		if !validator.Validate(url, params, c.GetHeader(headerTwilioSignature)) {
			logger.FromGin(c).Warn("twilio signature rejected", zap.String("path", c.Request.URL.Path))
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}
