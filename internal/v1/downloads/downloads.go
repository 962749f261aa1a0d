// Package downloads serves the host agent installer bundle.
package downloads

import (
	"net/http"
	"os"

	"github.com/RoseWrightdev/Remote-Control/internal/v1/logging"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler streams the packaged host application archive.
type Handler struct {
	zipPath string
}

func NewHandler(zipPath string) *Handler {
	return &Handler{zipPath: zipPath}
}

// HostAppZip serves the Windows host agent bundle as an attachment. A missing
// or unreadable archive is a 404, not a 500: the bundle is an optional
// deployment artifact.
func (h *Handler) HostAppZip(c *gin.Context) {
	info, err := os.Stat(h.zipPath)
	if err != nil || info.IsDir() {
		logging.Warn(c.Request.Context(), "host app bundle unavailable",
			zap.String("path", h.zipPath), zap.Error(err))
		c.JSON(http.StatusNotFound, gin.H{"error": "host app bundle not available"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="host-app-win.zip"`)
	c.Header("Content-Type", "application/zip")
	c.File(h.zipPath)
}
