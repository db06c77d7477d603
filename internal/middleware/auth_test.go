package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"paydash-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthedRouter(m *token.JWTManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(), ClientAuth(m))
	r.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ClientIDKey))
	})
	return r
}

func TestClientAuth(t *testing.T) {
	m := token.NewJWTManager("secret", 1)
	tok, err := m.GenerateToken("client-1")
	require.NoError(t, err)
	r := newAuthedRouter(m)

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid", "Bearer " + tok, http.StatusOK, "client-1"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic " + tok, http.StatusUnauthorized, ""},
		{"garbage", "Bearer nope", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	short := "abc"
	assert.Equal(t, short, truncate(short))
	long := string(make([]byte, maxLoggedBody+10))
	assert.Len(t, truncate(long), maxLoggedBody+len("...(truncated)"))
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	// 三字节的汉字不能被截断在中间
	for pad := 0; pad < 3; pad++ {
		s := strings.Repeat("a", pad) + strings.Repeat("收", maxLoggedBody)
		out := truncate(s)
		assert.True(t, utf8.ValidString(out), "pad %d", pad)
		assert.LessOrEqual(t, len(out), maxLoggedBody+len("...(truncated)"))
		assert.True(t, strings.HasSuffix(out, "...(truncated)"))
	}
	emoji := strings.Repeat("📈", maxLoggedBody)
	assert.True(t, utf8.ValidString(truncate(emoji)))
}

func TestClientAuthSetsOnlyClientID(t *testing.T) {
	m := token.NewJWTManager("secret", 1)
	tok, err := m.GenerateToken("client-1")
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ClientAuth(m))
	var (
		n        int
		clientID string
	)
	r.GET("/keys", func(c *gin.Context) {
		n, clientID = len(c.Keys), c.GetString(ClientIDKey)
		c.Status(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/keys", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, n)
	assert.Equal(t, "client-1", clientID)
}
