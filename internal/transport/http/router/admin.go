package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"catalog-admin/internal/core/server"
	"catalog-admin/internal/domain"
	"catalog-admin/internal/transport/http/ez"
	"catalog-admin/internal/transport/http/handler"
	mdw "catalog-admin/internal/transport/http/middleware"
)

type Options struct {
	RequestTimeout time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	MaxConcurrent  int64
	// MaxBodyBytes should leave room above the import file cap for multipart framing.
	MaxBodyBytes int64
	CORSOrigins  []string
}

func (o Options) withDefaults() Options {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	if o.RateLimitRPS <= 0 {
		o.RateLimitRPS = 200
	}
	if o.RateLimitBurst <= 0 {
		o.RateLimitBurst = 400
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 300
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 11 << 20
	}
	return o
}

// NewEngine builds the full HTTP surface: health, metrics, the public API and the
// role-gated admin API.
func NewEngine(l *zap.Logger, d handler.Deps, o Options) *gin.Engine {
	o = o.withDefaults()
	ez.RegisterValidators()

	r := server.NewRouter(l, o.CORSOrigins, mdw.KeyRequestID)
	r.Use(
		mdw.RequestID(),
		mdw.Metrics(),
		mdw.AccessLog(l, "/health", "/metrics"),
		mdw.Recovery(l),
		mdw.RateLimit(rate.Limit(o.RateLimitRPS), o.RateLimitBurst),
		mdw.ConcurrencyLimit(o.MaxConcurrent),
		mdw.MaxBodyBytes(o.MaxBodyBytes),
		mdw.Timeout(o.RequestTimeout),
	)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	reg := &Registry{}
	reg.Register(
		handler.NewAuthHandler(d),
		handler.NewDashboardHandler(d),
		handler.NewCategoryHandler(d),
		handler.NewAppHandler(d),
		handler.NewImportHandler(d),
		handler.NewUserHandler(d),
	)

	mountAPI(r, reg)

	// every admin route needs at least Editor; stricter roles are applied per route
	admin := r.Group("/admin/v1", mdw.AuthJWT(d.Auth), mdw.RequireRole(domain.RoleEditor))
	reg.MountAllAdmin(admin)

	return r
}
