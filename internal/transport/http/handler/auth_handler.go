package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"catalog-admin/internal/authgate"
	"catalog-admin/internal/domain"
	"catalog-admin/internal/transport/http/ez"
	mdw "catalog-admin/internal/transport/http/middleware"
)

type AuthHandler struct{ Deps }

func NewAuthHandler(d Deps) *AuthHandler { return &AuthHandler{d} }

type forgotIn struct {
	Email string `json:"email" binding:"required,email"`
}

type meOut struct {
	User domain.User `json:"user"`
}

func (h *AuthHandler) MountAPI(api *gin.RouterGroup) {
	public := api.Group("/auth", mdw.RateLimitPerIP(rate.Limit(2), 10))
	pub := ez.New(public, h.logger())

	ez.RegisterAction(pub, ez.Action[authgate.Credentials, authgate.Session]{
		Method: http.MethodPost,
		Path:   "/sign-in",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *authgate.Credentials) (authgate.Session, error) {
			in.IPAddress = c.ClientIP()
			return h.Auth.SignIn(c.Request.Context(), *in)
		},
	})
	ez.RegisterAction(pub, ez.Action[authgate.SignUpInput, authgate.Session]{
		Method: http.MethodPost,
		Path:   "/sign-up",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *authgate.SignUpInput) (authgate.Session, error) {
			in.IPAddress = c.ClientIP()
			return h.Auth.SignUp(c.Request.Context(), *in)
		},
	})
	ez.RegisterAction(pub, ez.Action[forgotIn, gin.H]{
		Method: http.MethodPost,
		Path:   "/forgot-password",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *forgotIn) (gin.H, error) {
			// same answer whether or not the account exists
			if err := h.Auth.ForgotPassword(c.Request.Context(), in.Email); err != nil {
				return nil, err
			}
			return gin.H{"sent": true}, nil
		},
	})
	ez.RegisterAction(pub, ez.Action[authgate.ResetPasswordInput, gin.H]{
		Method: http.MethodPost,
		Path:   "/reset-password",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *authgate.ResetPasswordInput) (gin.H, error) {
			in.IPAddress = c.ClientIP()
			if err := h.Auth.ResetPassword(c.Request.Context(), *in); err != nil {
				return nil, err
			}
			return gin.H{"reset": true}, nil
		},
	})

	authed := ez.New(api.Group("", mdw.AuthJWT(h.Auth)), h.logger())
	ez.RegisterAction(authed, ez.Action[struct{}, gin.H]{
		Method: http.MethodPost,
		Path:   "/auth/sign-out",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
			if err := h.Auth.SignOut(c.Request.Context(), c.GetString(mdw.KeyToken)); err != nil {
				return nil, err
			}
			return gin.H{"signedOut": true}, nil
		},
	})
	ez.RegisterAction(authed, ez.Action[struct{}, meOut]{
		Method: http.MethodGet,
		Path:   "/me",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (meOut, error) {
			p, _ := mdw.PrincipalFrom(c)
			u, err := h.Store.GetUser(p.UserID)
			if err != nil {
				return meOut{}, err
			}
			return meOut{User: u}, nil
		},
	})
}
