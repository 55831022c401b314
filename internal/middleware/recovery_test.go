package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func setupRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(handlers...)
	return router
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRecoveryMiddlewareTurnsPanicInto500(t *testing.T) {
	router := setupRouter(RecoveryMiddleware(zap.NewNop()))
	router.GET("/boom", func(*gin.Context) {
		panic("unexpected")
	})

	w := get(router, "/boom")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal Server Error")
}

func TestTimeoutMiddlewareRepliesExactlyOnce(t *testing.T) {
	router := setupRouter(TimeoutMiddleware(10 * time.Millisecond))
	done := make(chan struct{})
	router.GET("/slow", func(c *gin.Context) {
		defer close(done)
		time.Sleep(50 * time.Millisecond)
		c.JSON(http.StatusOK, gin.H{"status": "late"})
	})

	w := get(router, "/slow")
	<-done

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.JSONEq(t, `{"error": "Request Timeout"}`, w.Body.String())
}

func TestTimeoutMiddlewareLetsFastHandlersThrough(t *testing.T) {
	router := setupRouter(TimeoutMiddleware(time.Second))
	router.GET("/fast", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	w := get(router, "/fast")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok"}`, w.Body.String())
}
