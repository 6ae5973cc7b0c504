package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	resp "catalog-admin/internal/transport/http/response"
)

// MaxBodyBytes caps the request body at n bytes.
func MaxBodyBytes(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
		if len(c.Errors) > 0 && !c.Writer.Written() {
			abort(c, resp.CodePayloadTooLarge, "request body too large")
		}
	}
}
