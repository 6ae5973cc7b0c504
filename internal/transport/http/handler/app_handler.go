package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"catalog-admin/internal/catalog"
	"catalog-admin/internal/domain"
	"catalog-admin/internal/transport/http/ez"
	mdw "catalog-admin/internal/transport/http/middleware"
)

type AppHandler struct{ Deps }

func NewAppHandler(d Deps) *AppHandler { return &AppHandler{d} }

type appQuery struct {
	pageQuery
	Status     domain.Status `form:"status" binding:"omitempty,oneof=active inactive"`
	Source     domain.Source `form:"source" binding:"omitempty,oneof=manual api import"`
	CategoryID string        `form:"categoryId"`
}

func (h *AppHandler) MountAdmin(admin *gin.RouterGroup) {
	e := ez.New(admin, h.logger())

	ez.RegisterAction(e, ez.Action[appQuery, Page[domain.App]]{
		Method: http.MethodGet,
		Path:   "/apps",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, in *appQuery) (Page[domain.App], error) {
			items, total := h.Store.ListApps(catalog.AppFilter{
				Search: in.Q, Status: in.Status, Source: in.Source, CategoryID: in.CategoryID,
				Offset: in.offset(), Limit: in.limit(),
			})
			return Page[domain.App]{Total: total, Items: items}, nil
		},
	})
	ez.RegisterAction(e, ez.Action[struct{}, domain.App]{
		Method: http.MethodGet,
		Path:   "/apps/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (domain.App, error) {
			return h.Store.GetApp(c.Param("id"))
		},
	})
	ez.RegisterAction(e, ez.Action[domain.CreateAppInput, domain.App]{
		Method: http.MethodPost,
		Path:   "/apps",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *domain.CreateAppInput) (domain.App, error) {
			return h.Store.CreateApp(c.Request.Context(), mdw.Actor(c), *in)
		},
	})
	ez.RegisterAction(e, ez.Action[domain.UpdateAppInput, domain.App]{
		Method: http.MethodPut,
		Path:   "/apps/:id",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *domain.UpdateAppInput) (domain.App, error) {
			return h.Store.UpdateApp(c.Request.Context(), mdw.Actor(c), c.Param("id"), *in)
		},
	})
	ez.RegisterAction(e, ez.Action[struct{}, domain.App]{
		Method: http.MethodPost,
		Path:   "/apps/:id/toggle",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (domain.App, error) {
			return h.Store.ToggleAppStatus(c.Request.Context(), mdw.Actor(c), c.Param("id"))
		},
	})

	adm := ez.New(admin.Group("", mdw.RequireRole(domain.RoleAdmin)), h.logger())
	ez.RegisterAction(adm, ez.Action[struct{}, gin.H]{
		Method: http.MethodDelete,
		Path:   "/apps/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
			id := c.Param("id")
			if err := h.Store.DeleteApp(c.Request.Context(), mdw.Actor(c), id); err != nil {
				return nil, err
			}
			return gin.H{"id": id}, nil
		},
	})
}
