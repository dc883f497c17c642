package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/logger"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/pkg/apperror"
)

// Заголовки подписанного вебхука платёжного шлюза.
const (
	HeaderWebhookTimestamp = "X-Webhook-Timestamp"
	HeaderWebhookSignature = "X-Webhook-Signature"

	maxWebhookBody = 64 << 10
)

var errBadSignature = apperror.New(apperror.ErrCodeUnauthorized, "неверная подпись вебхука")

// SignWebhook вычисляет hex(HMAC-SHA256(secret, timestamp + "." + body)).
func SignWebhook(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// WebhookSignature пропускает только запросы с валидной подписью и свежей меткой времени.
// Тело запроса после проверки остаётся доступным хендлеру.
func WebhookSignature(secret string, tolerance time.Duration, now func() time.Time) gin.HandlerFunc {
	if now == nil {
		now = time.Now
	}

	reject := func(c *gin.Context, reason string) {
		logger.L().WithField("reason", reason).Warn("Вебхук отклонён")
		abortWithAppError(c, errBadSignature)
	}

	return func(c *gin.Context) {
		tsHeader := strings.TrimSpace(c.GetHeader(HeaderWebhookTimestamp))
		sigHeader := strings.TrimSpace(c.GetHeader(HeaderWebhookSignature))
		if tsHeader == "" || sigHeader == "" {
			reject(c, "missing headers")
			return
		}

		unix, err := strconv.ParseInt(tsHeader, 10, 64)
		if err != nil {
			reject(c, "invalid timestamp")
			return
		}
		skew := now().Sub(time.Unix(unix, 0))
		if skew < 0 {
			skew = -skew
		}
		if tolerance > 0 && skew > tolerance {
			reject(c, "timestamp outside tolerance")
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
		if err != nil || len(body) > maxWebhookBody {
			reject(c, "body too large or unreadable")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		provided, err := hex.DecodeString(sigHeader)
		if err != nil {
			reject(c, "invalid signature encoding")
			return
		}
		expected, _ := hex.DecodeString(SignWebhook(secret, tsHeader, body))
		if !hmac.Equal(provided, expected) {
			reject(c, "signature mismatch")
			return
		}

		c.Next()
	}
}
