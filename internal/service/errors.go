package service

import (
	"errors"
	"fmt"
)

// 业务错误定义。handler 层用 errors.Is 匹配并映射为响应码。
var (
	ErrNotFound              = errors.New("resource not found")
	ErrValidation            = errors.New("invalid input")
	ErrForbidden             = errors.New("ownership mismatch")
	ErrConflict              = errors.New("state conflict")
	ErrInvalidState          = errors.New("invalid state transition")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	// ErrNoAvailableCode 是库存不足在预约路径上的具体形态，
	// errors.Is 对两者都命中
	ErrNoAvailableCode       = fmt.Errorf("no available code: %w", ErrInsufficientInventory)
	ErrInvalidBatchStatus    = errors.New("invalid batch status transition")
	ErrBatchCreateFailed     = errors.New("batch create failed")
	ErrCodeFetchFailed       = errors.New("code fetch failed")
	ErrAuditFetchFailed      = errors.New("audit fetch failed")
	ErrPrintRunCreateFailed  = errors.New("print run create failed")
	ErrPaymentNotConfirmed   = errors.New("payment not confirmed")
	ErrRateLimited           = errors.New("rate limited")
	ErrVerificationExpired   = errors.New("verification token expired")
)
