// Package handler exposes the catalog, import, auth and user operations over HTTP.
// Each handler mounts itself on the public /api/v1 group, the authenticated /admin/v1
// group, or both.
package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"catalog-admin/internal/archive"
	"catalog-admin/internal/authgate"
	"catalog-admin/internal/catalog"
	"catalog-admin/internal/core/cache"
	"catalog-admin/internal/importer"
)

// ArchiveLister lists archived import uploads; archive.ObjectArchive implements it.
type ArchiveLister interface {
	List(ctx context.Context, prefix string, limit int) ([]archive.Object, error)
}

type Deps struct {
	Store    *catalog.Store
	Auth     *authgate.Service
	Importer *importer.Importer
	Cache    *cache.Cache // nil disables dashboard caching
	Archive  ArchiveLister
	Log      *zap.Logger
}

func (d Deps) logger() *zap.Logger {
	if d.Log == nil {
		return zap.NewNop()
	}
	return d.Log
}

// Page is the list envelope shared by every collection endpoint.
type Page[T any] struct {
	Total int `json:"total"`
	Items []T `json:"items"`
}

type pageQuery struct {
	Offset int    `form:"offset,default=0"`
	Limit  int    `form:"limit,default=20"`
	Q      string `form:"q"`
}

func (q pageQuery) limit() int {
	if q.Limit <= 0 || q.Limit > 100 {
		return 20
	}
	return q.Limit
}

func (q pageQuery) offset() int {
	if q.Offset < 0 {
		return 0
	}
	return q.Offset
}

func boolParam(c *gin.Context, name string) bool {
	v, _ := strconv.ParseBool(c.Query(name))
	return v
}
