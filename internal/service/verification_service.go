package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tagvault/tagvault/internal/cache"
	"github.com/tagvault/tagvault/internal/config"
	"github.com/tagvault/tagvault/internal/constants"
	"github.com/tagvault/tagvault/internal/logger"
	"github.com/tagvault/tagvault/internal/models"
	"github.com/tagvault/tagvault/internal/repository"

	"github.com/google/uuid"
)

// VerificationService 实物所有权验证服务。
// 扫码方换取一次性短时令牌，持令牌方与码的归属记录比对完成验真。
type VerificationService struct {
	codeRepo repository.CodeRepository
	cfg      config.VerificationRateConfig
}

// NewVerificationService 创建验证服务
func NewVerificationService(codeRepo repository.CodeRepository, cfg config.VerificationRateConfig) *VerificationService {
	if cfg.TokenExpireMinutes <= 0 {
		cfg.TokenExpireMinutes = 10
	}
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = 60
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	return &VerificationService{codeRepo: codeRepo, cfg: cfg}
}

// IssuedToken 签发结果
type IssuedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueToken 按码串签发验证令牌。
// 按客户端维度做固定窗口限流，防止批量撞码；
// 只有已分配或已购买的码才值得验真。
func (s *VerificationService) IssueToken(ctx context.Context, codeStr, clientKey string) (*IssuedToken, error) {
	codeStr = strings.TrimSpace(codeStr)
	if codeStr == "" {
		return nil, fmt.Errorf("%w: code required", ErrValidation)
	}

	if clientKey = strings.TrimSpace(clientKey); clientKey != "" {
		count, _, err := cache.IncrWindow(ctx, "verify:"+clientKey, s.cfg.WindowSeconds)
		if err != nil && !errors.Is(err, cache.ErrCounterUnavailable) {
			logger.Warnw("verify_rate_limit_unavailable", "error", err)
		}
		if err == nil && count > int64(s.cfg.MaxAttempts) {
			return nil, ErrRateLimited
		}
	}

	code, err := s.codeRepo.GetByCode(codeStr)
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

	token := uuid.NewString()
	expiresAt := time.Now().Add(time.Duration(s.cfg.TokenExpireMinutes) * time.Minute)
	if err := s.codeRepo.SetVerification(code.ID, token, expiresAt); err != nil {
		return nil, ErrCodeFetchFailed
	}
	return &IssuedToken{Token: token, ExpiresAt: expiresAt}, nil
}

// ConfirmToken 核销验证令牌。令牌一次性，核销即清除；
// 过期令牌同样清除并返回过期错误。
func (s *VerificationService) ConfirmToken(token string) (*models.Code, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: token required", ErrValidation)
	}

	code, err := s.codeRepo.GetByVerificationToken(token)
	if err != nil {
		return nil, ErrCodeFetchFailed
	}
	if code == nil {
		return nil, ErrNotFound
	}

	if err := s.codeRepo.ClearVerification(code.ID); err != nil {
		return nil, ErrCodeFetchFailed
	}
	if code.VerificationExpiresAt == nil || time.Now().After(*code.VerificationExpiresAt) {
		return nil, ErrVerificationExpired
	}
	code.VerificationToken = nil
	code.VerificationExpiresAt = nil
	return code, nil
}
