package router

import (
	"github.com/gin-gonic/gin"
)

func mountAPI(r *gin.Engine, reg *Registry) {
	api := r.Group("/api/v1")
	reg.MountAllAPI(api)
}
