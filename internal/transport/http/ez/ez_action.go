package ez

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"catalog-admin/internal/domain"
	resp "catalog-admin/internal/transport/http/response"
)

// KeyRequestID matches the key the RequestID middleware stores.
const KeyRequestID = "X-Request-ID"

type EZ struct {
	g   *gin.RouterGroup
	log *zap.Logger
}

func New(g *gin.RouterGroup, log *zap.Logger) EZ {
	if log == nil {
		log = zap.NewNop()
	}
	return EZ{g: g, log: log}
}

type Binder string

const (
	BindJSON  Binder = "json"
	BindQuery Binder = "query"
	BindNone  Binder = "none" // handler reads c.Param / c.PostForm itself
)

// AErr is a transport-level failure with an explicit response code.
type AErr struct {
	Code int
	Msg  string
	Err  error
}

func (e *AErr) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "action error"
}

func (e *AErr) Unwrap() error { return e.Err }

func BadRequest(msg string) error   { return &AErr{Code: resp.CodeBadRequest, Msg: msg} }
func Unauthorized(msg string) error { return &AErr{Code: resp.CodeUnauthorized, Msg: msg} }
func Forbidden(msg string) error    { return &AErr{Code: resp.CodeForbidden, Msg: msg} }
func NotFound(msg string) error     { return &AErr{Code: resp.CodeNotFound, Msg: msg} }
func TooLarge(msg string) error     { return &AErr{Code: resp.CodePayloadTooLarge, Msg: msg} }
func Internal(msg string, err error) error {
	return &AErr{Code: resp.CodeServerError, Msg: msg, Err: err}
}

type Action[I any, O any] struct {
	Method  string // GET | POST | PUT | DELETE
	Path    string
	Binder  Binder
	Handler func(c *gin.Context, in *I) (O, error)
}

func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	h := func(c *gin.Context) {
		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		}
		if bindErr != nil {
			Fail(c, e.log, BindError(bindErr))
			return
		}
		out, err := a.Handler(c, &in)
		if err != nil {
			Fail(c, e.log, err)
			return
		}
		c.JSON(http.StatusOK, resp.OK(out))
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default:
		e.g.POST(a.Path, h)
	}
}

// BindError turns gin binding failures into a validation error naming the first bad field.
func BindError(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return TooLarge("request body too large")
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		return domain.Validation(lowerFirst(fe.Field()), describe(fe))
	}
	return domain.Validation("body", err.Error())
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "pkgname":
		return "must be a valid package name"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "url":
		return "must be a valid URL"
	}
	return "is invalid (" + fe.Tag() + ")"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// Code maps an error to a response code. Domain errors map by kind; anything
// unrecognised is a 500.
func Code(err error) int {
	var ae *AErr
	if errors.As(err, &ae) {
		return ae.Code
	}
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return resp.CodeBadRequest
	case domain.KindNotFound:
		return resp.CodeNotFound
	case domain.KindConflict:
		return resp.CodeConflict
	case domain.KindCapExceeded:
		return resp.CodePayloadTooLarge
	case domain.KindAuth:
		return resp.CodeUnauthorized
	case domain.KindForbidden:
		return resp.CodeForbidden
	}
	return resp.CodeServerError
}

// Fail writes the envelope for err. Internal details are logged, not returned.
func Fail(c *gin.Context, log *zap.Logger, err error) {
	code := Code(err)
	c.Set(resp.KeyCode, code)
	if code == resp.CodeServerError {
		log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("rid", c.GetString(KeyRequestID)),
			zap.Error(err),
		)
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusOK, resp.Error(code, ""))
		return
	}
	var de *domain.Error
	if errors.As(err, &de) && de.Field != "" {
		c.AbortWithStatusJSON(http.StatusOK, resp.ErrorData(code, err.Error(), gin.H{"field": de.Field}))
		return
	}
	c.AbortWithStatusJSON(http.StatusOK, resp.Error(code, err.Error()))
}
