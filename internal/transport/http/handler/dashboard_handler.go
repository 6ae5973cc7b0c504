package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"catalog-admin/internal/audit"
	"catalog-admin/internal/catalog"
	"catalog-admin/internal/core/cache"
	"catalog-admin/internal/domain"
	"catalog-admin/internal/transport/http/ez"
)

const (
	dashboardKey = "catalog:dashboard"
	dashboardTTL = 10 * time.Second
	recentCount  = 5
)

type DashboardHandler struct{ Deps }

func NewDashboardHandler(d Deps) *DashboardHandler { return &DashboardHandler{d} }

type Dashboard struct {
	catalog.Stats
	Recent []domain.AuditEntry `json:"recentActivity"`
}

type auditQuery struct {
	pageQuery
	EntityType domain.EntityType `form:"entityType" binding:"omitempty,oneof=category app user"`
	Action     domain.Action     `form:"action"`
	UserID     string            `form:"userId"`
	EntityID   string            `form:"entityId"`
}

func (h *DashboardHandler) MountAdmin(admin *gin.RouterGroup) {
	e := ez.New(admin, h.logger())

	ez.RegisterAction(e, ez.Action[struct{}, Dashboard]{
		Method: http.MethodGet,
		Path:   "/dashboard",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (Dashboard, error) {
			return cache.Fetch(c.Request.Context(), h.Cache, dashboardKey, dashboardTTL,
				func(context.Context) (Dashboard, error) {
					return Dashboard{Stats: h.Store.Stats(), Recent: h.Store.Recorder().Recent(recentCount)}, nil
				})
		},
	})

	ez.RegisterAction(e, ez.Action[auditQuery, Page[domain.AuditEntry]]{
		Method: http.MethodGet,
		Path:   "/audit",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, in *auditQuery) (Page[domain.AuditEntry], error) {
			items, total := h.Store.Recorder().List(audit.Filter{
				EntityType: in.EntityType, Action: in.Action, UserID: in.UserID, EntityID: in.EntityID,
				Offset: in.offset(), Limit: in.limit(),
			})
			return Page[domain.AuditEntry]{Total: total, Items: items}, nil
		},
	})
}
