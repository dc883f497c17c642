package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/pkg/apperror"
)

// Ключи gin.Context, которые заполняет AuthMiddleware.
const (
	ContextUserIDKey = "userID"
	ContextRoleKey   = "role"
)

// Роли в access токене. service выдаётся внутренним сервисам (регистрация, сброс пароля).
const (
	RoleUser    = "user"
	RoleService = "service"
)

var (
	errMissingToken = apperror.New(apperror.ErrCodeUnauthorized, "требуется авторизация")
	errInvalidToken = apperror.New(apperror.ErrCodeUnauthorized, "токен невалиден")
	errRoleDenied   = apperror.New(apperror.ErrCodeForbidden, "недостаточно прав")
)

// AccessTokenParser проверяет access токен.
type AccessTokenParser interface {
	ParseAccess(token string) (uuid.UUID, string, error)
}

// BearerToken достаёт токен из заголовка Authorization.
func BearerToken(c *gin.Context) (string, bool) {
	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AuthMiddleware пускает дальше только запросы с валидным access токеном.
// Участник сделки определяется по userID, роль из токена информационная.
func AuthMiddleware(tokens AccessTokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := BearerToken(c)
		if !ok {
			abortWithAppError(c, errMissingToken)
			return
		}

		userID, role, err := tokens.ParseAccess(raw)
		if err != nil || userID == uuid.Nil {
			abortWithAppError(c, errInvalidToken)
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Set(ContextRoleKey, role)
		c.Next()
	}
}

// RequireRole пропускает только токены с одной из ролей. Ставится после AuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextRoleKey)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		abortWithAppError(c, errRoleDenied.WithDetail("role", role))
	}
}
