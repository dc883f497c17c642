package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/pkg/apperror"
)

// UUIDValidator отклоняет запрос, если параметр маршрута не UUID.
func UUIDValidator(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := uuid.Parse(c.Param(paramName)); err == nil {
			c.Next()
			return
		}
		abortWithAppError(c, apperror.New(apperror.ErrCodeValidation, "параметр должен быть UUID").WithDetail("param", paramName))
	}
}
