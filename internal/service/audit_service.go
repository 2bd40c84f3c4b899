package service

import (
	"time"

	"github.com/tagvault/tagvault/internal/logger"
	"github.com/tagvault/tagvault/internal/models"
	"github.com/tagvault/tagvault/internal/repository"
)

// AuditService 分配流水服务。写入永不失败触发方的业务操作：
// 状态流转已经落库的事实不因流水写失败而回滚，失败进错误通道并记日志。
type AuditService struct {
	recordRepo repository.AllocationRecordRepository
	codeRepo   repository.CodeRepository

	failures chan error
}

// NewAuditService 创建分配流水服务
func NewAuditService(recordRepo repository.AllocationRecordRepository, codeRepo repository.CodeRepository) *AuditService {
	return &AuditService{
		recordRepo: recordRepo,
		codeRepo:   codeRepo,
		failures:   make(chan error, 64),
	}
}

// AppendRecordInput 流水写入输入
type AppendRecordInput struct {
	CodeID         uint
	Action         string
	PreviousStatus string
	NewStatus      string
	BusinessID     *uint
	FunnelID       *uint
	ActorID        *uint
	Reason         string
	IsSuccessful   bool
}

// Append 同步尝试追加一条流水。失败只降级可观测性，不影响业务结果。
func (s *AuditService) Append(input AppendRecordInput) {
	if s == nil || s.recordRepo == nil || input.CodeID == 0 {
		return
	}
	record := &models.AllocationRecord{
		CodeID:         input.CodeID,
		Action:         input.Action,
		PreviousStatus: input.PreviousStatus,
		NewStatus:      input.NewStatus,
		BusinessID:     input.BusinessID,
		FunnelID:       input.FunnelID,
		ActorID:        input.ActorID,
		Reason:         input.Reason,
		IsSuccessful:   input.IsSuccessful,
		CreatedAt:      time.Now(),
	}
	if err := s.recordRepo.Create(record); err != nil {
		logger.Errorw("audit_append_failed",
			"code_id", input.CodeID,
			"action", input.Action,
			"error", err,
		)
		select {
		case s.failures <- err:
		default:
			// 通道满时丢弃，日志里已有完整记录
		}
	}
}

// Failures 返回流水写入失败的带外错误通道
func (s *AuditService) Failures() <-chan error {
	return s.failures
}

// History 按码查询流水，新记录在前
func (s *AuditService) History(codeID uint) ([]models.AllocationRecord, error) {
	if codeID == 0 {
		return nil, ErrValidation
	}
	code, err := s.codeRepo.GetByID(codeID)
	if err != nil {
		return nil, ErrAuditFetchFailed
	}
	if code == nil {
		return nil, ErrNotFound
	}
	records, err := s.recordRepo.ListByCode(codeID)
	if err != nil {
		return nil, ErrAuditFetchFailed
	}
	return records, nil
}

// HistoryForBusinessInput 商家流水查询输入
type HistoryForBusinessInput struct {
	BusinessID uint
	From       time.Time
	To         time.Time
	Page       int
	PageSize   int
}

// HistoryForBusiness 按商家与时间范围查询流水
func (s *AuditService) HistoryForBusiness(input HistoryForBusinessInput) ([]models.AllocationRecord, int64, error) {
	if input.BusinessID == 0 {
		return nil, 0, ErrValidation
	}
	records, total, err := s.recordRepo.ListByBusiness(input.BusinessID, input.From, input.To, input.Page, input.PageSize)
	if err != nil {
		return nil, 0, ErrAuditFetchFailed
	}
	return records, total, nil
}
