package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/dto"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/models"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/repository/memory"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/service"
)

const testSubject = "account:7b1c"

type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
}

func (s *captureSender) Send(_ context.Context, _, destination, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codes == nil {
		s.codes = make(map[string]string)
	}
	s.codes[destination] = code
	return nil
}

func (s *captureSender) code(destination string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[destination]
}

func setupVerificationRouter(t *testing.T) (*gin.Engine, *captureSender, *memory.IdentityStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	identity := memory.NewIdentityStore(models.Subject{
		ID:          testSubject,
		Kind:        models.SubjectKindAccount,
		Channel:     models.ChannelEmail,
		Destination: "student@campus.kz",
	})
	sender := &captureSender{}
	svc := service.NewVerificationService(
		memory.NewVerificationLedger(),
		identity,
		sender,
		service.NewRandomCodeGenerator(6),
		service.NewHMACCodeHasher("test-pepper"),
		service.VerificationPolicy{CodeTTL: 2 * time.Minute, MaxAttempts: 3, MaxResends: 1},
	)

	h := NewVerificationHandler(svc)
	r := gin.New()
	g := r.Group("/api/verification/:subjectId")
	g.GET("/status", h.Status)
	g.POST("/issue", h.Issue)
	g.POST("/resend", h.Resend)
	g.POST("/check", h.Check)
	r.DELETE("/api/internal/verification/:subjectId", h.Restart)
	return r, sender, identity
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestVerificationHandler_IssueAndCheck(t *testing.T) {
	r, sender, identity := setupVerificationRouter(t)

	w := doJSON(r, http.MethodPost, "/api/verification/"+testSubject+"/issue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), sender.code("student@campus.kz"))

	var issued service.IssueResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issued))
	assert.Equal(t, 3, issued.AttemptsRemaining)
	assert.True(t, issued.Delivered)

	w = doJSON(r, http.MethodPost, "/api/verification/"+testSubject+"/check",
		dto.CheckCodeRequest{Code: sender.code("student@campus.kz")})
	require.Equal(t, http.StatusOK, w.Code)

	subject, err := identity.Lookup(context.Background(), testSubject)
	require.NoError(t, err)
	assert.True(t, subject.Verified)

	w = doJSON(r, http.MethodPost, "/api/verification/"+testSubject+"/issue", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_VERIFIED", decodeError(t, w).Code)
}

func TestVerificationHandler_WrongCodeReportsAttempts(t *testing.T) {
	r, sender, _ := setupVerificationRouter(t)
	require.Equal(t, http.StatusOK, doJSON(r, http.MethodPost, "/api/verification/"+testSubject+"/issue", nil).Code)

	wrong := "000000"
	if sender.code("student@campus.kz") == wrong {
		wrong = "111111"
	}

	w := doJSON(r, http.MethodPost, "/api/verification/"+testSubject+"/check", dto.CheckCodeRequest{Code: wrong})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "INVALID_CODE", resp.Code)
	assert.Equal(t, "retry", resp.Action)
	assert.EqualValues(t, 2, resp.Details["attempts_remaining"])

	doJSON(r, http.MethodPost, "/api/verification/"+testSubject+"/check", dto.CheckCodeRequest{Code: wrong})
	w = doJSON(r, http.MethodPost, "/api/verification/"+testSubject+"/check", dto.CheckCodeRequest{Code: wrong})
	resp = decodeError(t, w)
	assert.Equal(t, "resend", resp.Action)

	w = doJSON(r, http.MethodPost, "/api/verification/"+testSubject+"/check",
		dto.CheckCodeRequest{Code: sender.code("student@campus.kz")})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "ATTEMPTS_EXHAUSTED", decodeError(t, w).Code)
}

func TestVerificationHandler_ResendLimit(t *testing.T) {
	r, _, _ := setupVerificationRouter(t)
	require.Equal(t, http.StatusOK, doJSON(r, http.MethodPost, "/api/verification/"+testSubject+"/issue", nil).Code)
	require.Equal(t, http.StatusOK, doJSON(r, http.MethodPost, "/api/verification/"+testSubject+"/resend", nil).Code)

	w := doJSON(r, http.MethodPost, "/api/verification/"+testSubject+"/resend", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RESEND_LIMIT_EXCEEDED", decodeError(t, w).Code)

	w = doJSON(r, http.MethodDelete, "/api/internal/verification/"+testSubject, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(r, http.MethodPost, "/api/verification/"+testSubject+"/issue", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestVerificationHandler_Status(t *testing.T) {
	r, _, _ := setupVerificationRouter(t)

	w := doJSON(r, http.MethodGet, "/api/verification/"+testSubject+"/status", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	doJSON(r, http.MethodPost, "/api/verification/"+testSubject+"/issue", nil)
	w = doJSON(r, http.MethodGet, "/api/verification/"+testSubject+"/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status service.VerificationStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.False(t, status.Expired)
	assert.InDelta(t, 120, status.SecondsRemaining, 1)
}

func TestVerificationHandler_UnknownSubject(t *testing.T) {
	r, _, _ := setupVerificationRouter(t)

	w := doJSON(r, http.MethodPost, "/api/verification/account:missing/issue", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVerificationHandler_Check_InvalidBody(t *testing.T) {
	r, _, _ := setupVerificationRouter(t)

	w := doJSON(r, http.MethodPost, "/api/verification/"+testSubject+"/check", map[string]string{"code": "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerificationHandler_MalformedSubject(t *testing.T) {
	r, _, _ := setupVerificationRouter(t)

	w := doJSON(r, http.MethodPost, "/api/verification/nobody/issue", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w).Code)
}
