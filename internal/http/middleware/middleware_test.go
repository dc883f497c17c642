package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/pkg/apperror"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubParser struct {
	userID uuid.UUID
	err    error
}

func (p stubParser) ParseAccess(string) (uuid.UUID, string, error) {
	return p.userID, "student", p.err
}

func TestAuthMiddleware(t *testing.T) {
	userID := uuid.New()
	r := gin.New()
	r.GET("/me", AuthMiddleware(stubParser{userID: userID}), func(c *gin.Context) {
		c.String(http.StatusOK, c.MustGet(ContextUserIDKey).(uuid.UUID).String())
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer token")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID.String(), w.Body.String())
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	r := gin.New()
	r.GET("/me", AuthMiddleware(stubParser{err: errors.New("expired")}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	instance, err := NewLimiter(2, time.Minute, nil)
	require.NoError(t, err)

	r := gin.New()
	r.POST("/v/:subjectId", RateLimitMiddleware(instance, ClientIPAndParamKey("subjectId")), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	do := func(path string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
		return w.Code
	}
	assert.Equal(t, http.StatusOK, do("/v/a"))
	assert.Equal(t, http.StatusOK, do("/v/a"))
	assert.Equal(t, http.StatusTooManyRequests, do("/v/a"))
	assert.Equal(t, http.StatusOK, do("/v/b"))
}

func TestWebhookSignature(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	secret := "webhook-secret"
	body := `{"transaction_id":"x","amount_minor":100}`

	r := gin.New()
	r.POST("/hook", WebhookSignature(secret, 5*time.Minute, func() time.Time { return now }), func(c *gin.Context) {
		raw, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusOK, string(raw))
	})

	send := func(ts, sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body))
		req.Header.Set(HeaderWebhookTimestamp, ts)
		req.Header.Set(HeaderWebhookSignature, sig)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	ts := strconv.FormatInt(now.Unix(), 10)
	w := send(ts, SignWebhook(secret, ts, []byte(body)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, body, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, send(ts, SignWebhook("other", ts, []byte(body))).Code)
	assert.Equal(t, http.StatusUnauthorized, send(ts, "zz").Code)
	assert.Equal(t, http.StatusUnauthorized, send("", "").Code)

	stale := strconv.FormatInt(now.Add(-10*time.Minute).Unix(), 10)
	assert.Equal(t, http.StatusUnauthorized, send(stale, SignWebhook(secret, stale, []byte(body))).Code)
}

func TestErrorHandler_RendersAppError(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/gone", func(c *gin.Context) { _ = c.Error(apperror.ErrExpired) })
	r.GET("/boom", func(c *gin.Context) { _ = c.Error(errors.New("sql: connection refused")) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/gone", nil))
	assert.Equal(t, http.StatusGone, w.Code)
	assert.Contains(t, w.Body.String(), `"action":"resend"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "sql")
}

func TestUUIDValidator(t *testing.T) {
	r := gin.New()
	r.GET("/x/:id", UUIDValidator("id"), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://campus.kz/"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://campus.kz")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://campus.kz", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete)

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestAuthMiddleware_MissingBearer(t *testing.T) {
	r := gin.New()
	r.GET("/me", AuthMiddleware(stubParser{userID: uuid.New()}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for _, header := range []string{"", "Basic abc", "Bearer ", "token"} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
		assert.Contains(t, w.Body.String(), string(apperror.ErrCodeUnauthorized), header)
	}
}

func TestBearerToken(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("Authorization", "bearer  abc.def ")

	token, ok := BearerToken(c)
	require.True(t, ok)
	assert.Equal(t, "abc.def", token)
}

func TestRequireRole(t *testing.T) {
	r := gin.New()
	r.GET("/svc",
		func(c *gin.Context) { c.Set(ContextRoleKey, c.Query("role")) },
		RequireRole(RoleService),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/svc?role=service", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	for _, role := range []string{"user", ""} {
		w = httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/svc?role="+role, nil))
		assert.Equal(t, http.StatusForbidden, w.Code, role)
	}
}
