package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"catalog-admin/internal/catalog"
	"catalog-admin/internal/domain"
	"catalog-admin/internal/transport/http/ez"
	mdw "catalog-admin/internal/transport/http/middleware"
)

type UserHandler struct{ Deps }

func NewUserHandler(d Deps) *UserHandler { return &UserHandler{d} }

type userQuery struct {
	pageQuery
	Role   domain.Role   `form:"role" binding:"omitempty,oneof=Editor Admin SuperAdmin"`
	Status domain.Status `form:"status" binding:"omitempty,oneof=active inactive"`
}

func (h *UserHandler) MountAdmin(admin *gin.RouterGroup) {
	adm := ez.New(admin.Group("", mdw.RequireRole(domain.RoleAdmin)), h.logger())
	ez.RegisterAction(adm, ez.Action[userQuery, Page[domain.User]]{
		Method: http.MethodGet,
		Path:   "/users",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, in *userQuery) (Page[domain.User], error) {
			items, total := h.Store.ListUsers(catalog.UserFilter{
				Search: in.Q, Role: in.Role, Status: in.Status, Offset: in.offset(), Limit: in.limit(),
			})
			return Page[domain.User]{Total: total, Items: items}, nil
		},
	})

	super := ez.New(admin.Group("", mdw.RequireRole(domain.RoleSuperAdmin)), h.logger())
	ez.RegisterAction(super, ez.Action[domain.UpdateUserInput, domain.User]{
		Method: http.MethodPut,
		Path:   "/users/:id",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *domain.UpdateUserInput) (domain.User, error) {
			return h.Store.UpdateUser(c.Request.Context(), mdw.Actor(c), c.Param("id"), *in)
		},
	})
	ez.RegisterAction(super, ez.Action[struct{}, domain.User]{
		Method: http.MethodPost,
		Path:   "/users/:id/toggle",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (domain.User, error) {
			id := c.Param("id")
			if p, _ := mdw.PrincipalFrom(c); p.UserID == id {
				return domain.User{}, domain.Conflict("cannot change your own status")
			}
			return h.Store.ToggleUserStatus(c.Request.Context(), mdw.Actor(c), id)
		},
	})
}
