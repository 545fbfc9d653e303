package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"telephony-relay/pkg/utils"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		utils.UseJSONFieldNames(v)
	}
}

// bindJSON decodes and validates the body. It answers 422 for binding-tag
// failures and 400 for anything else.
func bindJSON(c *gin.Context, obj any) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}
	if fields, ok := utils.FieldErrors(err); ok {
		validationFailed(c, fields)
		return false
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
	return false
}
