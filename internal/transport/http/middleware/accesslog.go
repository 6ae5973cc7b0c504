package middleware

import (
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	resp "catalog-admin/internal/transport/http/response"
)

var sensitiveQuery = map[string]struct{}{
	"password": {}, "token": {}, "authorization": {}, "secret": {},
	"confirmpassword": {}, "reset_token": {}, "access_token": {},
}

// maskQuery blanks credential-like parameters, e.g. a reset token pasted into a link.
func maskQuery(q url.Values) map[string][]string {
	out := make(map[string][]string, len(q))
	for k, v := range q {
		if _, ok := sensitiveQuery[strings.ToLower(k)]; ok {
			out[k] = []string{"****"}
			continue
		}
		out[k] = v
	}
	return out
}

// AccessLog writes one line per request. The level follows the envelope code: rejected
// requests log at warn and server failures at error. skip lists exact paths to leave out.
func AccessLog(l *zap.Logger, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := skipped[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		code := c.GetInt(resp.KeyCode)
		lvl := zapcore.InfoLevel
		switch {
		case code >= resp.CodeServerError:
			lvl = zapcore.ErrorLevel
		case code != resp.CodeOK:
			lvl = zapcore.WarnLevel
		}
		fields := []zap.Field{
			zap.String("rid", RequestIDFrom(c)),
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Int("code", code),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.Int("size", c.Writer.Size()),
		}
		if p, ok := PrincipalFrom(c); ok {
			fields = append(fields, zap.String("uid", p.UserID), zap.String("role", string(p.Role)))
		}
		if len(c.Request.URL.RawQuery) > 0 {
			fields = append(fields, zap.Any("query", maskQuery(c.Request.URL.Query())))
		}
		if ce := l.Check(lvl, "http"); ce != nil {
			ce.Write(fields...)
		}
	}
}
