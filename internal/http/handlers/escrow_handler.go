package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/dto"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/http/handlers/common"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/models"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/service"
)

// EscrowHandler обслуживает защищённые сделки от имени участников.
type EscrowHandler struct {
	svc *service.EscrowService
}

func NewEscrowHandler(s *service.EscrowService) *EscrowHandler {
	return &EscrowHandler{svc: s}
}

// Open POST /api/escrow
func (h *EscrowHandler) Open(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.OpenEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	t, err := h.svc.Open(c.Request.Context(), service.OpenEscrowInput{
		BuyerID:     userID,
		SellerID:    req.SellerID,
		ListingID:   req.ListingID,
		AmountMinor: req.AmountMinor,
		Currency:    strings.ToUpper(req.Currency),
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.view(t, userID))
}

// List GET /api/escrow
func (h *EscrowHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	items, err := h.svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	if items == nil {
		items = []models.EscrowTransaction{}
	}
	c.JSON(http.StatusOK, dto.EscrowListResponse{Items: items, Limit: limit, Offset: offset})
}

// Get GET /api/escrow/:id
func (h *EscrowHandler) Get(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	t, err := h.svc.Get(c.Request.Context(), id, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.view(t, userID))
}

// Transition POST /api/escrow/:id/transitions
func (h *EscrowHandler) Transition(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	event := models.EscrowEventType(req.Event)
	// paymentCaptured приходит только от шлюза через вебхук.
	if event == models.EscrowEventPaymentCaptured {
		common.RespondAppError(c, errGatewayOnly)
		return
	}

	result, err := h.svc.Transition(c.Request.Context(), id, service.EscrowEvent{
		Type:    event,
		ActorID: &userID,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.TransitionResponse{
		EscrowResponse: h.view(result.Transaction, userID),
		Replayed:       result.Replayed,
	})
}

func (h *EscrowHandler) view(t *models.EscrowTransaction, userID uuid.UUID) dto.EscrowResponse {
	allowed := h.svc.AllowedEvents(t, userID)
	if allowed == nil {
		allowed = []models.EscrowEventType{}
	}
	return dto.EscrowResponse{EscrowTransaction: t, AllowedEvents: allowed}
}
