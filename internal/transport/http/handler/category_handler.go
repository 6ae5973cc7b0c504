package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"catalog-admin/internal/catalog"
	"catalog-admin/internal/domain"
	"catalog-admin/internal/transport/http/ez"
	mdw "catalog-admin/internal/transport/http/middleware"
)

type CategoryHandler struct{ Deps }

func NewCategoryHandler(d Deps) *CategoryHandler { return &CategoryHandler{d} }

type categoryQuery struct {
	pageQuery
	Status domain.Status `form:"status" binding:"omitempty,oneof=active inactive"`
}

func (h *CategoryHandler) MountAdmin(admin *gin.RouterGroup) {
	e := ez.New(admin, h.logger())

	ez.RegisterAction(e, ez.Action[categoryQuery, Page[domain.Category]]{
		Method: http.MethodGet,
		Path:   "/categories",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, in *categoryQuery) (Page[domain.Category], error) {
			items, total := h.Store.ListCategories(catalog.CategoryFilter{
				Search: in.Q, Status: in.Status, Offset: in.offset(), Limit: in.limit(),
			})
			return Page[domain.Category]{Total: total, Items: items}, nil
		},
	})
	ez.RegisterAction(e, ez.Action[struct{}, domain.Category]{
		Method: http.MethodGet,
		Path:   "/categories/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (domain.Category, error) {
			return h.Store.GetCategory(c.Param("id"))
		},
	})
	ez.RegisterAction(e, ez.Action[domain.CreateCategoryInput, domain.Category]{
		Method: http.MethodPost,
		Path:   "/categories",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *domain.CreateCategoryInput) (domain.Category, error) {
			return h.Store.CreateCategory(c.Request.Context(), mdw.Actor(c), *in)
		},
	})
	ez.RegisterAction(e, ez.Action[domain.UpdateCategoryInput, domain.Category]{
		Method: http.MethodPut,
		Path:   "/categories/:id",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *domain.UpdateCategoryInput) (domain.Category, error) {
			return h.Store.UpdateCategory(c.Request.Context(), mdw.Actor(c), c.Param("id"), *in)
		},
	})
	ez.RegisterAction(e, ez.Action[struct{}, domain.Category]{
		Method: http.MethodPost,
		Path:   "/categories/:id/toggle",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (domain.Category, error) {
			return h.Store.ToggleCategoryStatus(c.Request.Context(), mdw.Actor(c), c.Param("id"))
		},
	})

	adm := ez.New(admin.Group("", mdw.RequireRole(domain.RoleAdmin)), h.logger())
	ez.RegisterAction(adm, ez.Action[struct{}, gin.H]{
		Method: http.MethodDelete,
		Path:   "/categories/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
			id := c.Param("id")
			opts := catalog.DeleteOptions{Cascade: boolParam(c, "cascade")}
			if err := h.Store.DeleteCategory(c.Request.Context(), mdw.Actor(c), id, opts); err != nil {
				return nil, err
			}
			return gin.H{"id": id}, nil
		},
	})
}
