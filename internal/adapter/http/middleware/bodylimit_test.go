package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoBody(c *gin.Context) {
	b, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "read failed")
		return
	}
	c.String(http.StatusOK, string(b))
}

func TestBodyLimit(t *testing.T) {
	tests := []struct {
		name     string
		limit    int64
		body     string
		chunked  bool
		wantCode int
	}{
		{"within limit", 1024, `{"uid":"04A1"}`, false, http.StatusOK},
		{"exact limit", 5, "12345", false, http.StatusOK},
		{"declared length over limit", 16, strings.Repeat("A", 100), false, http.StatusRequestEntityTooLarge},
		{"undeclared length over limit", 16, strings.Repeat("A", 100), true, http.StatusBadRequest},
		{"disabled", 0, strings.Repeat("A", 100), false, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(BodyLimit(tt.limit))
			r.POST("/test", echoBody)

			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(tt.body))
			if tt.chunked {
				req.ContentLength = -1
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestBodyLimit_NilBody(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(8))
	r.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}
