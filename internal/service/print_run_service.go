package service

import (
	"fmt"

	"github.com/tagvault/tagvault/internal/constants"
	"github.com/tagvault/tagvault/internal/logger"
	"github.com/tagvault/tagvault/internal/models"
	"github.com/tagvault/tagvault/internal/repository"
)

// printRunStatusNext 打印任务状态只能逐级推进
var printRunStatusNext = map[string]string{
	constants.PrintRunStatusRequested: constants.PrintRunStatusQueued,
	constants.PrintRunStatusQueued:    constants.PrintRunStatusCompleted,
}

// PrintRunService 补印任务服务。
// 补印生成同码的新实物，不是新码：码的状态与归属不因补印变化，
// 补印事实进分配流水（action=reprint）。
type PrintRunService struct {
	printRunRepo repository.PrintRunRepository
	codeRepo     repository.CodeRepository
	audit        *AuditService
}

// NewPrintRunService 创建补印服务
func NewPrintRunService(printRunRepo repository.PrintRunRepository, codeRepo repository.CodeRepository, audit *AuditService) *PrintRunService {
	return &PrintRunService{
		printRunRepo: printRunRepo,
		codeRepo:     codeRepo,
		audit:        audit,
	}
}

// CreatePrintRunInput 补印请求输入
type CreatePrintRunInput struct {
	CodeID     uint
	BusinessID uint
	Quantity   int
	ActorID    *uint
}

// CreatePrintRun 为商家名下已分配的码创建补印任务
func (s *PrintRunService) CreatePrintRun(input CreatePrintRunInput) (*models.PrintRun, error) {
	if input.CodeID == 0 || input.BusinessID == 0 {
		return nil, fmt.Errorf("%w: code id and business id required", ErrValidation)
	}
	if input.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}

	code, err := s.codeRepo.GetByID(input.CodeID)
	if err != nil {
		return nil, ErrCodeFetchFailed
	}
	if code == nil {
		return nil, ErrNotFound
	}
	switch code.Status {
	case constants.CodeStatusAssigned, constants.CodeStatusPurchased:
	default:
		return nil, ErrInvalidState
	}
	if code.OwnerBusinessID == nil || *code.OwnerBusinessID != input.BusinessID {
		return nil, ErrForbidden
	}

	run := &models.PrintRun{
		CodeID:     code.ID,
		BusinessID: input.BusinessID,
		Size:       code.Size,
		Style:      code.Style,
		Quantity:   input.Quantity,
		Status:     constants.PrintRunStatusRequested,
	}
	if err := s.printRunRepo.Create(run); err != nil {
		logger.Errorw("print_run_create_failed", "code_id", code.ID, "error", err)
		return nil, ErrPrintRunCreateFailed
	}

	s.audit.Append(AppendRecordInput{
		CodeID:         code.ID,
		Action:         constants.AllocationActionReprint,
		PreviousStatus: code.Status,
		NewStatus:      code.Status,
		BusinessID:     &input.BusinessID,
		ActorID:        input.ActorID,
		Reason:         fmt.Sprintf("print run %d, quantity %d", run.ID, run.Quantity),
		IsSuccessful:   true,
	})
	return run, nil
}

// GetPrintRun 获取补印任务详情
func (s *PrintRunService) GetPrintRun(runID uint) (*models.PrintRun, error) {
	if runID == 0 {
		return nil, ErrValidation
	}
	run, err := s.printRunRepo.GetByID(runID)
	if err != nil {
		return nil, ErrCodeFetchFailed
	}
	if run == nil {
		return nil, ErrNotFound
	}
	return run, nil
}

// ListPrintRuns 按商家分页查询补印任务
func (s *PrintRunService) ListPrintRuns(businessID uint, page, pageSize int) ([]models.PrintRun, int64, error) {
	if businessID == 0 {
		return nil, 0, ErrValidation
	}
	return s.printRunRepo.ListByBusiness(businessID, page, pageSize)
}

// AdvanceStatus 逐级推进补印任务状态（requested → queued → completed）
func (s *PrintRunService) AdvanceStatus(runID uint, newStatus string) (*models.PrintRun, error) {
	run, err := s.GetPrintRun(runID)
	if err != nil {
		return nil, err
	}
	expected, ok := printRunStatusNext[run.Status]
	if !ok || expected != newStatus {
		return nil, ErrInvalidState
	}

	affected, err := s.printRunRepo.UpdateStatus(run.ID, run.Status, newStatus)
	if err != nil {
		return nil, ErrCodeFetchFailed
	}
	if affected == 0 {
		return nil, ErrConflict
	}
	run.Status = newStatus
	return run, nil
}
