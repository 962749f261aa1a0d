package downloads

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, zipPath string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/downloads/host-app-win.zip", NewHandler(zipPath).HostAppZip)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/downloads/host-app-win.zip", nil))
	return w
}

func TestHostAppZip_ServesBundle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "host-app.zip")
	require.NoError(t, os.WriteFile(path, []byte("PK\x03\x04fake-zip"), 0o644))

	w := serve(t, path)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "host-app-win.zip")
	assert.Equal(t, "PK\x03\x04fake-zip", w.Body.String())
}

func TestHostAppZip_MissingBundle(t *testing.T) {
	w := serve(t, filepath.Join(t.TempDir(), "nope.zip"))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"host app bundle not available"}`, w.Body.String())
}

func TestHostAppZip_DirectoryPath(t *testing.T) {
	w := serve(t, t.TempDir())

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHostAppZip_EmptyPath(t *testing.T) {
	w := serve(t, "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}
