package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/dto"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/http/handlers/common"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/http/middleware"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/pkg/apperror"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/service"
)

// DevHandler выдаёт access токены для локальной разработки.
// Регистрируется только вне production.
type DevHandler struct {
	tokens *service.TokenManager
}

func NewDevHandler(tokens *service.TokenManager) *DevHandler {
	return &DevHandler{tokens: tokens}
}

// IssueToken POST /api/dev/token
func (h *DevHandler) IssueToken(c *gin.Context) {
	var req dto.DevTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	role := req.Role
	if role == "" {
		role = middleware.RoleUser
	}
	token, expiresAt, err := h.tokens.IssueAccess(req.UserID, role)
	if err != nil {
		common.RespondAppError(c, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось выпустить токен"))
		return
	}
	c.JSON(http.StatusOK, dto.TokenResponse{AccessToken: token, ExpiresAt: expiresAt})
}
