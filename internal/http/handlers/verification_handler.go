package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/dto"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/http/handlers/common"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/pkg/apperror"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/service"
)

type VerificationHandler struct {
	svc *service.VerificationService
}

func NewVerificationHandler(s *service.VerificationService) *VerificationHandler {
	return &VerificationHandler{svc: s}
}

// Issue POST /api/verification/:subjectId/issue
func (h *VerificationHandler) Issue(c *gin.Context) {
	result, err := h.svc.Issue(c.Request.Context(), c.Param("subjectId"))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	// Код никогда не возвращается клиенту, только уходит по каналу доставки.
	c.JSON(http.StatusOK, result)
}

// Resend POST /api/verification/:subjectId/resend
func (h *VerificationHandler) Resend(c *gin.Context) {
	result, err := h.svc.Resend(c.Request.Context(), c.Param("subjectId"))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Check POST /api/verification/:subjectId/check
func (h *VerificationHandler) Check(c *gin.Context) {
	var req dto.CheckCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	result, err := h.svc.Check(c.Request.Context(), c.Param("subjectId"), req.Code)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	if result.Outcome == service.CheckRejected {
		common.RespondAppError(c, apperror.ErrInvalidCode.WithDetail("attempts_remaining", result.AttemptsRemaining))
		return
	}
	c.JSON(http.StatusOK, result)
}

// Status GET /api/verification/:subjectId/status
func (h *VerificationHandler) Status(c *gin.Context) {
	status, err := h.svc.Status(c.Request.Context(), c.Param("subjectId"))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Restart DELETE /api/internal/verification/:subjectId
func (h *VerificationHandler) Restart(c *gin.Context) {
	if err := h.svc.Restart(c.Request.Context(), c.Param("subjectId")); err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
