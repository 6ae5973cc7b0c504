package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	resp "catalog-admin/internal/transport/http/response"
)

// abort ends the chain with an error envelope and records the code for Metrics and
// AccessLog.
func abort(c *gin.Context, code int, msg string) {
	c.Set(resp.KeyCode, code)
	c.AbortWithStatusJSON(http.StatusOK, resp.Error(code, msg))
}
