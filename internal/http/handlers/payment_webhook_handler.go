package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/dto"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/http/handlers/common"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/logger"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/models"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/pkg/apperror"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/service"
)

var errGatewayOnly = apperror.New(apperror.ErrCodeForbidden, "подтверждение оплаты принимается только от платёжного шлюза").
	WithDetail("event", models.EscrowEventPaymentCaptured)

// PaymentWebhookHandler принимает подтверждения захвата средств от шлюза.
// Подпись запроса проверяет middleware.WebhookSignature.
type PaymentWebhookHandler struct {
	escrow *service.EscrowService
}

func NewPaymentWebhookHandler(escrow *service.EscrowService) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{escrow: escrow}
}

// PaymentCaptured POST /api/webhooks/payments
func (h *PaymentWebhookHandler) PaymentCaptured(c *gin.Context) {
	var req dto.PaymentCapturedWebhook
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	logger.L().WithFields(logrus.Fields{
		"transaction_id": req.TransactionID,
		"reference":      req.Reference,
	}).Info("Получен вебхук оплаты")

	result, err := h.escrow.Transition(c.Request.Context(), req.TransactionID, service.EscrowEvent{
		Type:        models.EscrowEventPaymentCaptured,
		Actor:       models.ActorGateway,
		AmountMinor: req.AmountMinor,
		Currency:    strings.ToUpper(req.Currency),
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transaction_id": result.Transaction.ID,
		"state":          result.Transaction.State,
		"replayed":       result.Replayed,
	})
}
