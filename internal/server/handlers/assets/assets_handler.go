package assets

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/openmined/assetsync/internal/server/blob"
	"github.com/openmined/assetsync/internal/server/handlers/api"
	"github.com/openmined/assetsync/internal/utils"
)

type AssetsHandler struct {
	blob *blob.BlobService
}

func New(svc *blob.BlobService) *AssetsHandler {
	return &AssetsHandler{blob: svc}
}

// Download streams one published asset, including the manifest and the
// version marker.
func (h *AssetsHandler) Download(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("filepath"), "/")
	if !blob.ValidateKey(key) {
		api.AbortWithError(c, http.StatusBadRequest, api.CodeAssetInvalidPath, fmt.Errorf("invalid asset path %q", key))
		return
	}

	obj, err := h.blob.GetObject(c.Request.Context(), key)
	if err != nil {
		h.abortObjectError(c, key, err)
		return
	}
	defer obj.Body.Close()

	c.Header("Content-Type", utils.DetectContentType(key))
	if obj.ETag != "" {
		c.Header("ETag", strconv.Quote(obj.ETag))
	}

	// files on disk get ranges and conditional requests for free
	if rs, ok := obj.Body.(io.ReadSeeker); ok {
		http.ServeContent(c.Writer, c.Request, key, obj.LastModified, rs)
		return
	}

	c.Header("Content-Length", strconv.FormatInt(obj.Size, 10))
	c.Status(http.StatusOK)
	if c.Request.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(c.Writer, obj.Body); err != nil {
		c.Error(fmt.Errorf("stream %q: %w", key, err))
	}
}

// Manifest renders the current manifest as JSON.
func (h *AssetsHandler) Manifest(c *gin.Context) {
	m, err := h.blob.Manifest(c.Request.Context())
	if err != nil {
		api.AbortWithError(c, http.StatusServiceUnavailable, api.CodeManifestUnavailable, err)
		return
	}

	resp := ManifestResponse{
		Version:   m.Version,
		Files:     m.Len(),
		TotalSize: m.TotalSize(),
		Entries:   make([]ManifestEntry, 0, m.Len()),
	}
	for _, e := range m.Entries() {
		resp.Entries = append(resp.Entries, ManifestEntry{Path: e.Path, Size: e.Size, Hash: e.Hash})
	}

	data, err := json.Marshal(resp)
	if err != nil {
		api.AbortWithError(c, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// Version reports the published version without the entry list.
func (h *AssetsHandler) Version(c *gin.Context) {
	m, err := h.blob.Manifest(c.Request.Context())
	if err != nil {
		api.AbortWithError(c, http.StatusServiceUnavailable, api.CodeManifestUnavailable, err)
		return
	}
	c.PureJSON(http.StatusOK, VersionResponse{
		Version: m.Version,
		Files:   m.Len(),
		Backend: h.blob.Backend().Name(),
	})
}

func (h *AssetsHandler) abortObjectError(c *gin.Context, key string, err error) {
	switch {
	case errors.Is(err, blob.ErrObjectNotFound):
		api.AbortWithError(c, http.StatusNotFound, api.CodeAssetNotFound, fmt.Errorf("asset %q not found", key))
	case errors.Is(err, blob.ErrInvalidKey):
		api.AbortWithError(c, http.StatusBadRequest, api.CodeAssetInvalidPath, fmt.Errorf("invalid asset path %q", key))
	case errors.Is(err, blob.ErrManifestNotPublished):
		api.AbortWithError(c, http.StatusServiceUnavailable, api.CodeManifestUnavailable, err)
	default:
		api.AbortWithError(c, http.StatusInternalServerError, api.CodeAssetReadFailed, err)
	}
}
