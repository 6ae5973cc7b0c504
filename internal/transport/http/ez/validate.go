package ez

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"catalog-admin/internal/domain"
)

var registerOnce sync.Once

// RegisterValidators adds the catalog's custom binding tags to gin's validator.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("pkgname", func(fl validator.FieldLevel) bool {
			return domain.ValidPackage(fl.Field().String())
		})
	})
}
