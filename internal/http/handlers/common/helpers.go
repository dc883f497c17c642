package common

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/dto"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/http/middleware"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/logger"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/pkg/apperror"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

var (
	// ErrUserNotFound в контексте нет пользователя: маршрут не закрыт AuthMiddleware.
	ErrUserNotFound = errors.New("пользователь не найден в контексте")

	// ErrInvalidUUID параметр маршрута не является UUID.
	ErrInvalidUUID = errors.New("неверный формат UUID")
)

// CurrentUserID возвращает пользователя, положенного в контекст AuthMiddleware.
func CurrentUserID(c *gin.Context) (uuid.UUID, error) {
	if userID, ok := c.Value(middleware.ContextUserIDKey).(uuid.UUID); ok && userID != uuid.Nil {
		return userID, nil
	}
	return uuid.Nil, ErrUserNotFound
}

func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(c.Param(paramName))
	if err != nil {
		return uuid.Nil, ErrInvalidUUID
	}
	return parsed, nil
}

// RespondAppError пишет ошибку таксономии: статус, код и подсказку следующего шага.
// Ошибки вне таксономии и 5xx логируются, клиент получает обезличенное сообщение.
func RespondAppError(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.Wrap(err, apperror.ErrCodeInternal, "внутренняя ошибка сервера")
	}

	resp := dto.ErrorResponse{
		Error:   appErr.Message,
		Code:    string(appErr.Code),
		Action:  string(appErr.Action()),
		Details: appErr.Details,
	}

	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.L().WithFields(logrus.Fields{
			"error":  appErr.Error(),
			"path":   c.FullPath(),
			"method": c.Request.Method,
		}).Error("Ошибка обработки запроса")
		resp.Error = "внутренняя ошибка сервера"
		resp.Details = nil
	}

	c.JSON(appErr.HTTPStatus, resp)
}

func RespondUnauthorized(c *gin.Context, message string) {
	if message == "" {
		message = apperror.ErrUnauthorized.Message
	}
	RespondAppError(c, apperror.New(apperror.ErrCodeUnauthorized, message))
}

// RespondBadRequest ответ на тело или параметры, не прошедшие binding.
func RespondBadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "некорректный запрос"
	}
	RespondAppError(c, apperror.New(apperror.ErrCodeValidation, message))
}

// GetPagination читает limit и offset, приводя их к допустимым границам.
func GetPagination(c *gin.Context) (limit, offset int) {
	limit = queryInt(c, "limit", DefaultPageLimit)
	offset = queryInt(c, "offset", 0)
	if limit < 1 || limit > MaxPageLimit {
		limit = DefaultPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if parsed, err := strconv.Atoi(c.Query(key)); err == nil {
		return parsed
	}
	return fallback
}
