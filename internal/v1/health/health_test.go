package health

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func router(checker *Checker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", checker.Root)
	r.GET("/health/live", checker.Live)
	r.GET("/health/ready", checker.Ready)
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRoot(t *testing.T) {
	w := get(router(NewChecker(nil)), "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String(), "host agents probe for this exact body")
}

func TestLive(t *testing.T) {
	w := get(router(NewChecker(nil)), "/health/live")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"alive"}`, w.Body.String())
}

func TestReady_WithoutRedis(t *testing.T) {
	w := get(router(NewChecker(nil)), "/health/ready")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ready"}`, w.Body.String())
}

func TestReady_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	r := router(NewChecker(client))
	assert.Equal(t, http.StatusOK, get(r, "/health/ready").Code)

	mr.Close()
	w := get(r, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
