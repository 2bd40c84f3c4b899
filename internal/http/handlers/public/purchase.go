package public

import (
	"strings"

	"github.com/tagvault/tagvault/internal/http/response"
	"github.com/tagvault/tagvault/internal/service"

	"github.com/gin-gonic/gin"
)

// MarkPurchasedRequest 购买落账请求
type MarkPurchasedRequest struct {
	OrderID  string `json:"order_id" binding:"required"`
	Quantity int    `json:"quantity"`
}

// MarkPurchased 外部支付确认后把码落为 purchased
func (h *Handler) MarkPurchased(c *gin.Context) {
	businessID, ok := getBusinessID(c)
	if !ok {
		return
	}
	codeID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req MarkPurchasedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	code, err := h.AllocationService.MarkPurchased(c.Request.Context(), service.MarkPurchasedInput{
		CodeID:     codeID,
		BusinessID: businessID,
		OrderID:    req.OrderID,
		Quantity:   req.Quantity,
		ActorID:    getActorID(c),
	})
	if err != nil {
		respondPurchaseError(c, err)
		return
	}
	response.Success(c, code)
}

// PaymentConfirmationRequest 外部支付处理器确认回调请求
type PaymentConfirmationRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

// PaymentConfirmation 外部支付处理器回调入口。
// 只记录确认信号，扣款与对账在引擎边界之外完成。
func (h *Handler) PaymentConfirmation(c *gin.Context) {
	var req PaymentConfirmationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	if strings.TrimSpace(req.OrderID) == "" {
		respondError(c, response.CodeBadRequest, "order id required", nil)
		return
	}

	if err := h.Payments.Record(c.Request.Context(), req.OrderID); err != nil {
		respondError(c, response.CodeInternal, "record confirmation failed", err)
		return
	}
	requestLog(c).Infow("payment_confirmation_recorded", "order_id", req.OrderID)
	response.SuccessWithMsg(c, "confirmed", nil)
}
