package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"catalog-admin/internal/audit"
	"catalog-admin/internal/domain"
	"catalog-admin/internal/importer"
	"catalog-admin/internal/transport/http/ez"
	mdw "catalog-admin/internal/transport/http/middleware"
)

type ImportHandler struct{ Deps }

func NewImportHandler(d Deps) *ImportHandler { return &ImportHandler{d} }

type importOut struct {
	DryRun bool `json:"dryRun"`
	domain.ImportResult
}

type historyOut struct {
	Page[domain.AuditEntry]
	Archived []string `json:"archived,omitempty"`
}

func (h *ImportHandler) MountAdmin(admin *gin.RouterGroup) {
	e := ez.New(admin.Group("", mdw.RequireRole(domain.RoleAdmin)), h.logger())

	// Accepts the document either as the JSON body or as a multipart "file" field.
	// dryRun defaults to true, matching the dashboard's import page.
	ez.RegisterAction(e, ez.Action[struct{}, importOut]{
		Method: http.MethodPost,
		Path:   "/imports",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (importOut, error) {
			dry := true
			if v := c.Query("dryRun"); v != "" {
				dry = boolParam(c, "dryRun")
			}
			data, err := h.readUpload(c)
			if err != nil {
				return importOut{}, err
			}
			res, err := h.Importer.Run(c.Request.Context(), mdw.Actor(c), importer.Request{Data: data, DryRun: dry})
			if err != nil {
				return importOut{}, err
			}
			if !dry {
				h.Cache.Invalidate(c.Request.Context(), dashboardKey)
			}
			return importOut{DryRun: dry, ImportResult: res}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[pageQuery, historyOut]{
		Method: http.MethodGet,
		Path:   "/imports",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, in *pageQuery) (historyOut, error) {
			items, total := h.Store.Recorder().List(audit.Filter{
				Action: domain.ActionImport, Offset: in.offset(), Limit: in.limit(),
			})
			out := historyOut{Page: Page[domain.AuditEntry]{Total: total, Items: items}}
			if h.Archive == nil {
				return out, nil
			}
			prefix := "imports/"
			if day := c.Query("date"); day != "" {
				if _, err := time.Parse("2006-01-02", day); err != nil {
					return historyOut{}, domain.Validation("date", "must be YYYY-MM-DD")
				}
				prefix += day + "/"
			}
			objs, err := h.Archive.List(c.Request.Context(), prefix, in.limit())
			if err != nil {
				return historyOut{}, ez.Internal("list archive", err)
			}
			for _, o := range objs {
				out.Archived = append(out.Archived, o.Key)
			}
			return out, nil
		},
	})
}

func (h *ImportHandler) readUpload(c *gin.Context) ([]byte, error) {
	// one byte over the cap lets the importer report the size violation itself
	limit := int64(h.Importer.Limits().MaxFileSizeMB)<<20 + 1

	var r io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, ez.BindError(err)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, ez.Internal("open upload", err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, domain.CapExceeded("file exceeds the upload size limit")
		}
		return nil, ez.BadRequest("read upload: " + err.Error())
	}
	if len(data) == 0 {
		return nil, domain.Validation("file", "upload is empty")
	}
	return data, nil
}
