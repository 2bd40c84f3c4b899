package public

import (
	"errors"

	"github.com/tagvault/tagvault/internal/http/response"
	"github.com/tagvault/tagvault/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackMsg, err)
}

var allocationCommonErrorRules = []mappedHandlerError{
	{target: service.ErrValidation, code: response.CodeBadRequest, msg: "invalid request"},
	{target: service.ErrNotFound, code: response.CodeNotFound, msg: "code not found"},
	{target: service.ErrForbidden, code: response.CodeForbidden, msg: "code owned by another business"},
	{target: service.ErrConflict, code: response.CodeConflict, msg: "code state changed concurrently"},
	{target: service.ErrInvalidState, code: response.CodeConflict, msg: "invalid state transition"},
}

var reserveErrorRules = []mappedHandlerError{
	{target: service.ErrInsufficientInventory, code: response.CodeConflict, msg: "out of stock, try a different size or batch"},
	{target: service.ErrValidation, code: response.CodeBadRequest, msg: "invalid request"},
}

var purchaseErrorRules = append([]mappedHandlerError{
	{target: service.ErrPaymentNotConfirmed, code: response.CodeBadRequest, msg: "payment not confirmed"},
	{target: service.ErrInsufficientInventory, code: response.CodeConflict, msg: "out of stock, try a different size or batch"},
}, allocationCommonErrorRules...)

var verificationErrorRules = []mappedHandlerError{
	{target: service.ErrValidation, code: response.CodeBadRequest, msg: "invalid request"},
	{target: service.ErrNotFound, code: response.CodeNotFound, msg: "code not found"},
	{target: service.ErrInvalidState, code: response.CodeConflict, msg: "code not eligible for verification"},
	{target: service.ErrRateLimited, code: response.CodeTooManyRequests, msg: "too many verification attempts"},
	{target: service.ErrVerificationExpired, code: response.CodeBadRequest, msg: "verification token expired"},
}

func respondAllocationError(c *gin.Context, err error) {
	respondWithMappedError(c, err, allocationCommonErrorRules, response.CodeInternal, "allocation failed")
}

func respondReserveError(c *gin.Context, err error) {
	respondWithMappedError(c, err, reserveErrorRules, response.CodeInternal, "reserve failed")
}

func respondPurchaseError(c *gin.Context, err error) {
	respondWithMappedError(c, err, purchaseErrorRules, response.CodeInternal, "purchase failed")
}

func respondVerificationError(c *gin.Context, err error) {
	respondWithMappedError(c, err, verificationErrorRules, response.CodeInternal, "verification failed")
}
