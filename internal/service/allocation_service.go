package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tagvault/tagvault/internal/constants"
	"github.com/tagvault/tagvault/internal/logger"
	"github.com/tagvault/tagvault/internal/models"
	"github.com/tagvault/tagvault/internal/repository"

	"gorm.io/gorm"
)

// TaskScheduler 异步任务投递边界，由队列客户端实现。
// 未配置时引擎退化为惰性回收（读路径判定过期 + 周期兜底扫描）。
type TaskScheduler interface {
	ScheduleReservationExpire(codeID uint, delay time.Duration) error
	EnqueueLowStockCheck(batchID uint) error
}

// AllocationOptions 分配引擎参数
type AllocationOptions struct {
	ReservationTTL     time.Duration
	MaxReserveAttempts int
}

// AllocationService 码分配引擎。
// 所有状态流转走 CompareAndSetStatus 的单条条件 UPDATE，
// 并发竞争同一码时恰有一方成功，其余按冲突处理。
type AllocationService struct {
	codeRepo  repository.CodeRepository
	batchRepo repository.BatchRepository
	audit     *AuditService
	inventory *InventoryService
	payments  PaymentConfirmer
	scheduler TaskScheduler
	opts      AllocationOptions
}

// NewAllocationService 创建分配引擎
func NewAllocationService(
	codeRepo repository.CodeRepository,
	batchRepo repository.BatchRepository,
	audit *AuditService,
	inventory *InventoryService,
	payments PaymentConfirmer,
	scheduler TaskScheduler,
	opts AllocationOptions,
) *AllocationService {
	if opts.ReservationTTL <= 0 {
		opts.ReservationTTL = time.Duration(constants.DefaultReservationTTLSeconds) * time.Second
	}
	if opts.MaxReserveAttempts <= 0 {
		opts.MaxReserveAttempts = constants.DefaultMaxReserveAttempts
	}
	return &AllocationService{
		codeRepo:  codeRepo,
		batchRepo: batchRepo,
		audit:     audit,
		inventory: inventory,
		payments:  payments,
		scheduler: scheduler,
		opts:      opts,
	}
}

// ReserveCodeInput 预约输入。预约只是时间受限的持有，
// 漏斗绑定发生在确认分配时，这里不接受漏斗参数。
type ReserveCodeInput struct {
	BusinessID uint
	BatchID    uint
	Size       string
	Style      string
	ActorID    *uint
}

// ReserveCode 为商家预约一枚码。
// 候选集一次取够重试上限，逐个 CAS 抢占；已过期的 reserved 码
// 先回收成 available 再抢占，两步各自原子，抢不到就换下一个候选。
func (s *AllocationService) ReserveCode(input ReserveCodeInput) (*models.Code, error) {
	if input.BusinessID == 0 {
		return nil, fmt.Errorf("%w: business id required", ErrValidation)
	}

	now := time.Now()
	candidates, err := s.codeRepo.FindCandidates(repository.CandidateCriteria{
		BatchID: input.BatchID,
		Size:    strings.TrimSpace(input.Size),
		Style:   strings.TrimSpace(input.Style),
		Limit:   s.opts.MaxReserveAttempts,
		Now:     now,
	})
	if err != nil {
		return nil, ErrCodeFetchFailed
	}
	if len(candidates) == 0 {
		return nil, ErrNoAvailableCode
	}

	expiresAt := now.Add(s.opts.ReservationTTL)
	for _, candidate := range candidates {
		if candidate.Status == constants.CodeStatusReserved {
			// 过期预约先回收；0 行说明定时任务或别的请求已经处理过
			reclaimed, err := s.codeRepo.CompareAndSetStatus(repository.StatusSwap{
				CodeID:         candidate.ID,
				ExpectedStatus: constants.CodeStatusReserved,
				NewStatus:      constants.CodeStatusAvailable,
				ExpiredBefore:  &now,
				Fields:         releasedFields(),
			})
			if err != nil {
				return nil, ErrCodeFetchFailed
			}
			if reclaimed > 0 {
				s.audit.Append(AppendRecordInput{
					CodeID:         candidate.ID,
					Action:         constants.AllocationActionExpire,
					PreviousStatus: constants.CodeStatusReserved,
					NewStatus:      constants.CodeStatusAvailable,
					BusinessID:     candidate.OwnerBusinessID,
					Reason:         "reservation expired",
					IsSuccessful:   true,
				})
			}
		}

		affected, err := s.codeRepo.CompareAndSetStatus(repository.StatusSwap{
			CodeID:         candidate.ID,
			ExpectedStatus: constants.CodeStatusAvailable,
			NewStatus:      constants.CodeStatusReserved,
			Fields: map[string]interface{}{
				"owner_business_id":      input.BusinessID,
				"reserved_at":            now,
				"reservation_expires_at": expiresAt,
			},
		})
		if err != nil {
			return nil, ErrCodeFetchFailed
		}
		if affected == 0 {
			// 被并发请求抢走，换下一个候选
			continue
		}

		s.audit.Append(AppendRecordInput{
			CodeID:         candidate.ID,
			Action:         constants.AllocationActionReserve,
			PreviousStatus: constants.CodeStatusAvailable,
			NewStatus:      constants.CodeStatusReserved,
			BusinessID:     &input.BusinessID,
			ActorID:        input.ActorID,
			IsSuccessful:   true,
		})
		s.scheduleExpiry(candidate.ID, expiresAt)
		s.inventory.InvalidateOverview()
		return s.codeRepo.GetByID(candidate.ID)
	}

	logger.Warnw("reserve_contention_exhausted",
		"business_id", input.BusinessID,
		"batch_id", input.BatchID,
		"attempts", len(candidates),
	)
	// 每个候选都被并发请求抢走，按最后一个候选记一条失败流水
	s.audit.Append(AppendRecordInput{
		CodeID:         candidates[len(candidates)-1].ID,
		Action:         constants.AllocationActionReserve,
		PreviousStatus: constants.CodeStatusAvailable,
		NewStatus:      constants.CodeStatusAvailable,
		BusinessID:     &input.BusinessID,
		ActorID:        input.ActorID,
		Reason:         "reserve contention exhausted",
		IsSuccessful:   false,
	})
	return nil, ErrNoAvailableCode
}

// AssignCodeInput 确认分配输入
type AssignCodeInput struct {
	CodeID     uint
	BusinessID uint
	FunnelID   *uint
	ActorID    *uint
}

// AssignCode 把预约中的码（或商家自有未分配的码）确认分配给商家。
// CAS 与批次 used_quantity 重算在同一事务内提交。
func (s *AllocationService) AssignCode(input AssignCodeInput) (*models.Code, error) {
	if input.CodeID == 0 || input.BusinessID == 0 {
		return nil, fmt.Errorf("%w: code id and business id required", ErrValidation)
	}
	code, err := s.getCode(input.CodeID)
	if err != nil {
		return nil, err
	}

	// funnel_id 无条件写入：仅 assigned 状态允许非空漏斗，
	// 不写会让上一轮分配残留的值泄漏进本次分配
	now := time.Now()
	fields := map[string]interface{}{
		"funnel_id":              input.FunnelID,
		"assigned_at":            now,
		"reservation_expires_at": nil,
	}

	var previousStatus string
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		codeRepo := s.codeRepo.WithTx(tx)
		for _, expected := range []string{constants.CodeStatusReserved, constants.CodeStatusOwnedUnassigned} {
			affected, err := codeRepo.CompareAndSetStatus(repository.StatusSwap{
				CodeID:          input.CodeID,
				ExpectedStatus:  expected,
				NewStatus:       constants.CodeStatusAssigned,
				OwnerBusinessID: &input.BusinessID,
				Fields:          fields,
			})
			if err != nil {
				return err
			}
			if affected > 0 {
				previousStatus = expected
				return s.batchRepo.WithTx(tx).RecountUsed(code.BatchID)
			}
		}
		return ErrConflict
	})
	if err != nil {
		s.audit.Append(AppendRecordInput{
			CodeID:         input.CodeID,
			Action:         constants.AllocationActionAssign,
			PreviousStatus: code.Status,
			NewStatus:      code.Status,
			BusinessID:     &input.BusinessID,
			FunnelID:       input.FunnelID,
			ActorID:        input.ActorID,
			Reason:         "conditional update matched no rows",
			IsSuccessful:   false,
		})
		return nil, s.conflictReason(input.CodeID, input.BusinessID, err)
	}

	s.audit.Append(AppendRecordInput{
		CodeID:         input.CodeID,
		Action:         constants.AllocationActionAssign,
		PreviousStatus: previousStatus,
		NewStatus:      constants.CodeStatusAssigned,
		BusinessID:     &input.BusinessID,
		FunnelID:       input.FunnelID,
		ActorID:        input.ActorID,
		IsSuccessful:   true,
	})
	s.inventory.InvalidateOverview()
	s.checkLowStock(code.BatchID)
	return s.codeRepo.GetByID(input.CodeID)
}

// ClaimCode 商家认领一枚空闲码作为自有库存（尚未分配给具体漏斗）
func (s *AllocationService) ClaimCode(codeID, businessID uint, actorID *uint) (*models.Code, error) {
	if codeID == 0 || businessID == 0 {
		return nil, fmt.Errorf("%w: code id and business id required", ErrValidation)
	}
	affected, err := s.codeRepo.CompareAndSetStatus(repository.StatusSwap{
		CodeID:         codeID,
		ExpectedStatus: constants.CodeStatusAvailable,
		NewStatus:      constants.CodeStatusOwnedUnassigned,
		Fields: map[string]interface{}{
			"owner_business_id": businessID,
		},
	})
	if err != nil {
		return nil, ErrCodeFetchFailed
	}
	if affected == 0 {
		s.audit.Append(AppendRecordInput{
			CodeID:         codeID,
			Action:         constants.AllocationActionAssign,
			PreviousStatus: constants.CodeStatusAvailable,
			NewStatus:      constants.CodeStatusAvailable,
			BusinessID:     &businessID,
			ActorID:        actorID,
			Reason:         "claimed as owned stock",
			IsSuccessful:   false,
		})
		return nil, s.conflictReason(codeID, businessID, ErrConflict)
	}
	s.audit.Append(AppendRecordInput{
		CodeID:         codeID,
		Action:         constants.AllocationActionAssign,
		PreviousStatus: constants.CodeStatusAvailable,
		NewStatus:      constants.CodeStatusOwnedUnassigned,
		BusinessID:     &businessID,
		ActorID:        actorID,
		Reason:         "claimed as owned stock",
		IsSuccessful:   true,
	})
	s.inventory.InvalidateOverview()
	return s.codeRepo.GetByID(codeID)
}

// ReleaseCodeInput 释放输入
type ReleaseCodeInput struct {
	CodeID     uint
	BusinessID uint
	Reason     string
	ActorID    *uint
}

// ReleaseCode 解除码与漏斗的绑定，码退回商家自有库存（owned_unassigned）。
// 仅 assigned 可释放，归属必须匹配；归属不变，彻底退还走 CancelReservation 或过期回收。
func (s *AllocationService) ReleaseCode(input ReleaseCodeInput) error {
	if input.CodeID == 0 || input.BusinessID == 0 {
		return fmt.Errorf("%w: code id and business id required", ErrValidation)
	}
	code, err := s.getCode(input.CodeID)
	if err != nil {
		return err
	}

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		affected, err := s.codeRepo.WithTx(tx).CompareAndSetStatus(repository.StatusSwap{
			CodeID:          input.CodeID,
			ExpectedStatus:  constants.CodeStatusAssigned,
			NewStatus:       constants.CodeStatusOwnedUnassigned,
			OwnerBusinessID: &input.BusinessID,
			Fields:          unassignedFields(),
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrConflict
		}
		return s.batchRepo.WithTx(tx).RecountUsed(code.BatchID)
	})
	if err != nil {
		s.audit.Append(AppendRecordInput{
			CodeID:         input.CodeID,
			Action:         constants.AllocationActionRelease,
			PreviousStatus: code.Status,
			NewStatus:      code.Status,
			BusinessID:     &input.BusinessID,
			ActorID:        input.ActorID,
			Reason:         input.Reason,
			IsSuccessful:   false,
		})
		return s.conflictReason(input.CodeID, input.BusinessID, err)
	}

	s.audit.Append(AppendRecordInput{
		CodeID:         input.CodeID,
		Action:         constants.AllocationActionRelease,
		PreviousStatus: constants.CodeStatusAssigned,
		NewStatus:      constants.CodeStatusOwnedUnassigned,
		BusinessID:     &input.BusinessID,
		ActorID:        input.ActorID,
		Reason:         input.Reason,
		IsSuccessful:   true,
	})
	s.inventory.InvalidateOverview()
	return nil
}

// BulkFailure 批量操作中单个码的失败明细
type BulkFailure struct {
	CodeID uint   `json:"code_id"`
	Reason string `json:"reason"`
}

// BulkResult 批量操作结果，顺序与输入一致
type BulkResult struct {
	Succeeded []models.Code `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}

// BulkAssignInput 批量分配输入
type BulkAssignInput struct {
	CodeIDs    []uint
	BusinessID uint
	FunnelID   *uint
	ActorID    *uint
}

// BulkAssign 逐码独立分配：单码失败不影响其余码，
// 结果按输入顺序汇总成功与失败两组。
func (s *AllocationService) BulkAssign(input BulkAssignInput) (*BulkResult, error) {
	if len(input.CodeIDs) == 0 {
		return nil, fmt.Errorf("%w: code ids required", ErrValidation)
	}
	if input.BusinessID == 0 {
		return nil, fmt.Errorf("%w: business id required", ErrValidation)
	}

	result := &BulkResult{
		Succeeded: make([]models.Code, 0, len(input.CodeIDs)),
		Failed:    make([]BulkFailure, 0),
	}
	for _, codeID := range input.CodeIDs {
		code, err := s.AssignCode(AssignCodeInput{
			CodeID:     codeID,
			BusinessID: input.BusinessID,
			FunnelID:   input.FunnelID,
			ActorID:    input.ActorID,
		})
		if err != nil {
			result.Failed = append(result.Failed, BulkFailure{CodeID: codeID, Reason: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, *code)
	}
	return result, nil
}

// BulkReleaseInput 批量释放输入
type BulkReleaseInput struct {
	CodeIDs    []uint
	BusinessID uint
	Reason     string
	ActorID    *uint
}

// BulkRelease 逐码独立释放，结果按输入顺序汇总
func (s *AllocationService) BulkRelease(input BulkReleaseInput) (*BulkResult, error) {
	if len(input.CodeIDs) == 0 {
		return nil, fmt.Errorf("%w: code ids required", ErrValidation)
	}
	if input.BusinessID == 0 {
		return nil, fmt.Errorf("%w: business id required", ErrValidation)
	}

	result := &BulkResult{
		Succeeded: make([]models.Code, 0, len(input.CodeIDs)),
		Failed:    make([]BulkFailure, 0),
	}
	for _, codeID := range input.CodeIDs {
		err := s.ReleaseCode(ReleaseCodeInput{
			CodeID:     codeID,
			BusinessID: input.BusinessID,
			Reason:     input.Reason,
			ActorID:    input.ActorID,
		})
		if err != nil {
			result.Failed = append(result.Failed, BulkFailure{CodeID: codeID, Reason: err.Error()})
			continue
		}
		if code, err := s.codeRepo.GetByID(codeID); err == nil && code != nil {
			result.Succeeded = append(result.Succeeded, *code)
		}
	}
	return result, nil
}

// MarkPurchasedInput 购买落账输入
type MarkPurchasedInput struct {
	CodeID     uint
	BusinessID uint
	OrderID    string
	Quantity   int
	ActorID    *uint
}

// MarkPurchased 外部支付确认后把 assigned 的码落为 purchased。
// 未收到支付确认信号一律拒绝，单价按批次阶梯定价计算后随码记录。
func (s *AllocationService) MarkPurchased(ctx context.Context, input MarkPurchasedInput) (*models.Code, error) {
	if input.CodeID == 0 || input.BusinessID == 0 {
		return nil, fmt.Errorf("%w: code id and business id required", ErrValidation)
	}
	if strings.TrimSpace(input.OrderID) == "" {
		return nil, fmt.Errorf("%w: order id required", ErrValidation)
	}
	if s.payments == nil {
		return nil, ErrPaymentNotConfirmed
	}
	confirmed, err := s.payments.Confirmed(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !confirmed {
		return nil, ErrPaymentNotConfirmed
	}

	code, err := s.getCode(input.CodeID)
	if err != nil {
		return nil, err
	}
	batch, err := s.batchRepo.GetByID(code.BatchID)
	if err != nil || batch == nil {
		return nil, ErrCodeFetchFailed
	}
	quantity := input.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	unitPrice, err := QuoteUnitPrice(batch, quantity, code.Size)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		affected, err := s.codeRepo.WithTx(tx).CompareAndSetStatus(repository.StatusSwap{
			CodeID:          input.CodeID,
			ExpectedStatus:  constants.CodeStatusAssigned,
			NewStatus:       constants.CodeStatusPurchased,
			OwnerBusinessID: &input.BusinessID,
			Fields: map[string]interface{}{
				// 漏斗绑定只存在于 assigned 状态，成交归属由流水追溯
				"funnel_id":      nil,
				"purchased_at":   now,
				"purchase_price": unitPrice,
			},
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrConflict
		}
		return s.batchRepo.WithTx(tx).RecountUsed(code.BatchID)
	})
	if err != nil {
		s.audit.Append(AppendRecordInput{
			CodeID:         input.CodeID,
			Action:         constants.AllocationActionPurchase,
			PreviousStatus: code.Status,
			NewStatus:      code.Status,
			BusinessID:     &input.BusinessID,
			ActorID:        input.ActorID,
			Reason:         "order " + input.OrderID,
			IsSuccessful:   false,
		})
		return nil, s.conflictReason(input.CodeID, input.BusinessID, err)
	}

	s.audit.Append(AppendRecordInput{
		CodeID:         input.CodeID,
		Action:         constants.AllocationActionPurchase,
		PreviousStatus: constants.CodeStatusAssigned,
		NewStatus:      constants.CodeStatusPurchased,
		BusinessID:     &input.BusinessID,
		FunnelID:       code.FunnelID,
		ActorID:        input.ActorID,
		Reason:         "order " + input.OrderID,
		IsSuccessful:   true,
	})
	s.inventory.InvalidateOverview()
	s.checkLowStock(code.BatchID)
	return s.codeRepo.GetByID(input.CodeID)
}

// ReportConditionInput 实物异常上报输入
type ReportConditionInput struct {
	CodeID     uint
	BusinessID uint
	Condition  string // damaged 或 lost
	Reason     string
	ActorID    *uint
}

// ReportCondition 上报实物损毁或遗失。
// 仅 owned_unassigned 与 assigned 可上报；damaged/lost 是可由管理员恢复的准终态。
func (s *AllocationService) ReportCondition(input ReportConditionInput) error {
	if input.CodeID == 0 {
		return fmt.Errorf("%w: code id required", ErrValidation)
	}
	var action, newStatus string
	switch input.Condition {
	case constants.CodeStatusDamaged:
		action, newStatus = constants.AllocationActionDamage, constants.CodeStatusDamaged
	case constants.CodeStatusLost:
		action, newStatus = constants.AllocationActionReportLost, constants.CodeStatusLost
	default:
		return fmt.Errorf("%w: condition must be damaged or lost", ErrValidation)
	}

	code, err := s.getCode(input.CodeID)
	if err != nil {
		return err
	}
	var owner *uint
	if input.BusinessID != 0 {
		owner = &input.BusinessID
	}
	switch code.Status {
	case constants.CodeStatusOwnedUnassigned, constants.CodeStatusAssigned:
	default:
		s.audit.Append(AppendRecordInput{
			CodeID:         input.CodeID,
			Action:         action,
			PreviousStatus: code.Status,
			NewStatus:      code.Status,
			BusinessID:     owner,
			ActorID:        input.ActorID,
			Reason:         input.Reason,
			IsSuccessful:   false,
		})
		return ErrInvalidState
	}

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		affected, err := s.codeRepo.WithTx(tx).CompareAndSetStatus(repository.StatusSwap{
			CodeID:          input.CodeID,
			ExpectedStatus:  code.Status,
			NewStatus:       newStatus,
			OwnerBusinessID: owner,
			Fields:          unassignedFields(),
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrConflict
		}
		return s.batchRepo.WithTx(tx).RecountUsed(code.BatchID)
	})
	if err != nil {
		s.audit.Append(AppendRecordInput{
			CodeID:         input.CodeID,
			Action:         action,
			PreviousStatus: code.Status,
			NewStatus:      code.Status,
			BusinessID:     owner,
			ActorID:        input.ActorID,
			Reason:         input.Reason,
			IsSuccessful:   false,
		})
		return s.conflictReason(input.CodeID, input.BusinessID, err)
	}

	s.audit.Append(AppendRecordInput{
		CodeID:         input.CodeID,
		Action:         action,
		PreviousStatus: code.Status,
		NewStatus:      newStatus,
		BusinessID:     owner,
		ActorID:        input.ActorID,
		Reason:         input.Reason,
		IsSuccessful:   true,
	})
	s.inventory.InvalidateOverview()
	return nil
}

// AdminRestore 管理员把 damaged/lost 的码恢复为商家自有库存（owned_unassigned）。
// 归属保留，恢复后可直接再次分配。
func (s *AllocationService) AdminRestore(codeID uint, reason string, actorID *uint) error {
	if codeID == 0 {
		return fmt.Errorf("%w: code id required", ErrValidation)
	}
	code, err := s.getCode(codeID)
	if err != nil {
		return err
	}
	if code.Status != constants.CodeStatusDamaged && code.Status != constants.CodeStatusLost {
		s.audit.Append(AppendRecordInput{
			CodeID:         codeID,
			Action:         constants.AllocationActionRestore,
			PreviousStatus: code.Status,
			NewStatus:      code.Status,
			ActorID:        actorID,
			Reason:         reason,
			IsSuccessful:   false,
		})
		return ErrInvalidState
	}

	affected, err := s.codeRepo.CompareAndSetStatus(repository.StatusSwap{
		CodeID:         codeID,
		ExpectedStatus: code.Status,
		NewStatus:      constants.CodeStatusOwnedUnassigned,
		Fields:         unassignedFields(),
	})
	if err != nil {
		return ErrCodeFetchFailed
	}
	if affected == 0 {
		s.audit.Append(AppendRecordInput{
			CodeID:         codeID,
			Action:         constants.AllocationActionRestore,
			PreviousStatus: code.Status,
			NewStatus:      code.Status,
			ActorID:        actorID,
			Reason:         reason,
			IsSuccessful:   false,
		})
		return ErrConflict
	}

	s.audit.Append(AppendRecordInput{
		CodeID:         codeID,
		Action:         constants.AllocationActionRestore,
		PreviousStatus: code.Status,
		NewStatus:      constants.CodeStatusOwnedUnassigned,
		BusinessID:     code.OwnerBusinessID,
		ActorID:        actorID,
		Reason:         reason,
		IsSuccessful:   true,
	})
	s.inventory.InvalidateOverview()
	return nil
}

// CancelReservation 商家主动取消自己的预约
func (s *AllocationService) CancelReservation(codeID, businessID uint, actorID *uint) error {
	if codeID == 0 || businessID == 0 {
		return fmt.Errorf("%w: code id and business id required", ErrValidation)
	}
	affected, err := s.codeRepo.CompareAndSetStatus(repository.StatusSwap{
		CodeID:          codeID,
		ExpectedStatus:  constants.CodeStatusReserved,
		NewStatus:       constants.CodeStatusAvailable,
		OwnerBusinessID: &businessID,
		Fields:          releasedFields(),
	})
	if err != nil {
		return ErrCodeFetchFailed
	}
	if affected == 0 {
		s.audit.Append(AppendRecordInput{
			CodeID:         codeID,
			Action:         constants.AllocationActionCancel,
			PreviousStatus: constants.CodeStatusReserved,
			NewStatus:      constants.CodeStatusReserved,
			BusinessID:     &businessID,
			ActorID:        actorID,
			Reason:         "conditional update matched no rows",
			IsSuccessful:   false,
		})
		return s.conflictReason(codeID, businessID, ErrConflict)
	}

	s.audit.Append(AppendRecordInput{
		CodeID:         codeID,
		Action:         constants.AllocationActionCancel,
		PreviousStatus: constants.CodeStatusReserved,
		NewStatus:      constants.CodeStatusAvailable,
		BusinessID:     &businessID,
		ActorID:        actorID,
		IsSuccessful:   true,
	})
	s.inventory.InvalidateOverview()
	return nil
}

// ExpireReservation 回收一枚过期预约。定时任务触发；
// 预约已被确认或已由读路径回收时影响行数为 0，静默结束。
func (s *AllocationService) ExpireReservation(codeID uint) error {
	if codeID == 0 {
		return nil
	}
	now := time.Now()
	code, err := s.codeRepo.GetByID(codeID)
	if err != nil || code == nil {
		return err
	}
	affected, err := s.codeRepo.CompareAndSetStatus(repository.StatusSwap{
		CodeID:         codeID,
		ExpectedStatus: constants.CodeStatusReserved,
		NewStatus:      constants.CodeStatusAvailable,
		ExpiredBefore:  &now,
		Fields:         releasedFields(),
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return nil
	}

	s.audit.Append(AppendRecordInput{
		CodeID:         codeID,
		Action:         constants.AllocationActionExpire,
		PreviousStatus: constants.CodeStatusReserved,
		NewStatus:      constants.CodeStatusAvailable,
		BusinessID:     code.OwnerBusinessID,
		Reason:         "reservation expired",
		IsSuccessful:   true,
	})
	s.inventory.InvalidateOverview()
	return nil
}

// SweepExpired 兜底扫描：回收定时任务遗漏的过期预约，返回回收数量
func (s *AllocationService) SweepExpired(limit int) (int, error) {
	now := time.Now()
	expired, err := s.codeRepo.FindExpiredReservations(now, limit)
	if err != nil {
		return 0, err
	}
	reclaimed := 0
	for _, code := range expired {
		if err := s.ExpireReservation(code.ID); err != nil {
			logger.Warnw("sweep_expire_failed", "code_id", code.ID, "error", err)
			continue
		}
		reclaimed++
	}
	if reclaimed > 0 {
		logger.Infow("expired_reservations_swept", "count", reclaimed)
	}
	return reclaimed, nil
}

// GetCode 查询单码，惰性判定预约过期：
// 读到已过期的 reserved 码时现场回收，调用方看到的状态总是新鲜的。
func (s *AllocationService) GetCode(codeID uint) (*models.Code, error) {
	code, err := s.getCode(codeID)
	if err != nil {
		return nil, err
	}
	if code.Status == constants.CodeStatusReserved && code.ReservationExpired(time.Now()) {
		if err := s.ExpireReservation(code.ID); err != nil {
			logger.Warnw("lazy_expire_failed", "code_id", code.ID, "error", err)
		}
		return s.getCode(codeID)
	}
	return code, nil
}

// GetCodeByString 按码串查询，同样走惰性过期判定
func (s *AllocationService) GetCodeByString(codeStr string) (*models.Code, error) {
	codeStr = strings.TrimSpace(codeStr)
	if codeStr == "" {
		return nil, ErrValidation
	}
	code, err := s.codeRepo.GetByCode(codeStr)
	if err != nil {
		return nil, ErrCodeFetchFailed
	}
	if code == nil {
		return nil, ErrNotFound
	}
	return s.GetCode(code.ID)
}

// ListCodes 按批次分页查询码
func (s *AllocationService) ListCodes(batchID uint, status string, page, pageSize int) ([]models.Code, int64, error) {
	if batchID == 0 {
		return nil, 0, ErrValidation
	}
	return s.codeRepo.ListByBatch(batchID, strings.TrimSpace(status), page, pageSize)
}

func (s *AllocationService) getCode(codeID uint) (*models.Code, error) {
	code, err := s.codeRepo.GetByID(codeID)
	if err != nil {
		return nil, ErrCodeFetchFailed
	}
	if code == nil {
		return nil, ErrNotFound
	}
	return code, nil
}

// conflictReason 在条件更新落空后回查一次，区分归属错误与状态冲突。
// 回查只影响错误文案，真正的正确性由条件 UPDATE 保证。
func (s *AllocationService) conflictReason(codeID, businessID uint, fallback error) error {
	code, err := s.codeRepo.GetByID(codeID)
	if err != nil || code == nil {
		return fallback
	}
	if businessID != 0 && code.OwnerBusinessID != nil && *code.OwnerBusinessID != businessID {
		return ErrForbidden
	}
	if fallback == nil {
		return ErrConflict
	}
	return fallback
}

func (s *AllocationService) scheduleExpiry(codeID uint, expiresAt time.Time) {
	if s.scheduler == nil {
		return
	}
	delay := time.Until(expiresAt)
	if delay < 0 {
		delay = 0
	}
	if err := s.scheduler.ScheduleReservationExpire(codeID, delay); err != nil {
		// 投递失败不影响预约本身，兜底扫描会处理
		logger.Warnw("schedule_expiry_failed", "code_id", codeID, "error", err)
	}
}

func (s *AllocationService) checkLowStock(batchID uint) {
	if s.scheduler != nil {
		if err := s.scheduler.EnqueueLowStockCheck(batchID); err == nil {
			return
		}
	}
	s.inventory.CheckLowStock(batchID)
}

// releasedFields 码回到 available 时清空的持有字段
func releasedFields() map[string]interface{} {
	return map[string]interface{}{
		"owner_business_id":      nil,
		"funnel_id":              nil,
		"reserved_at":            nil,
		"reservation_expires_at": nil,
		"assigned_at":            nil,
	}
}

// unassignedFields 码离开 assigned 但仍归商家持有时清空的绑定字段。
// 归属不动，仅解除漏斗与分配痕迹。
func unassignedFields() map[string]interface{} {
	return map[string]interface{}{
		"funnel_id":              nil,
		"reserved_at":            nil,
		"reservation_expires_at": nil,
		"assigned_at":            nil,
	}
}
