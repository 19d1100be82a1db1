package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestAPIKeyAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		cfg     AuthConfig
		headers map[string]string
		want    int
	}{
		{"未启用直接放行", AuthConfig{}, nil, http.StatusOK},
		{"缺少Key", AuthConfig{Enabled: true, APIKeys: []string{"sk_test_123456"}}, nil, http.StatusUnauthorized},
		{"X-API-Key 有效", AuthConfig{Enabled: true, APIKeys: []string{"sk_test_123456"}},
			map[string]string{"X-API-Key": "sk_test_123456"}, http.StatusOK},
		{"Bearer 有效", AuthConfig{Enabled: true, APIKeys: []string{"sk_test_123456"}},
			map[string]string{"Authorization": "Bearer sk_test_123456"}, http.StatusOK},
		{"Key 无效", AuthConfig{Enabled: true, APIKeys: []string{"sk_test_123456"}},
			map[string]string{"X-API-Key": "nope"}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(APIKeyAuth(tt.cfg, zap.NewNop()))
			r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "****", maskAPIKey("short"))
	assert.Equal(t, "sk_t****3456", maskAPIKey("sk_test_123456"))
}
