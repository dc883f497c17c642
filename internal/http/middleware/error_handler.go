package middleware

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/logger"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/pkg/apperror"
)

var errInternal = apperror.New(apperror.ErrCodeInternal, "внутренняя ошибка сервера")

// abortWithAppError прерывает цепочку ответом в формате AppError.
func abortWithAppError(c *gin.Context, appErr *apperror.AppError) {
	body := gin.H{
		"error":  appErr.Message,
		"code":   appErr.Code,
		"action": appErr.Action(),
	}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus, body)
}

// ErrorHandler отвечает за ошибки, добавленные через c.Error, если хендлер сам не записал ответ.
// Ошибки вне таксономии apperror и 5xx маскируются.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		logger.L().WithFields(logrus.Fields{
			"error":  err.Error(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Error("Request error")

		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.HTTPStatus < http.StatusInternalServerError {
			abortWithAppError(c, appErr)
			return
		}
		abortWithAppError(c, errInternal)
	}
}

// Recovery перехватывает panic в хендлерах и пишет её в logrus.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		logger.L().WithFields(logrus.Fields{
			"panic":  recovered,
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Error("Panic в обработчике запроса")
		abortWithAppError(c, errInternal)
	})
}
