package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/tagvault/tagvault/internal/constants"
	"github.com/tagvault/tagvault/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupCodeRepositoryTest(t *testing.T) (*GormCodeRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:code_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.CodeBatch{},
		&models.Code{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewCodeRepository(db), db
}

func createRepoTestCode(t *testing.T, db *gorm.DB, code string, status string, owner *uint, expiresAt *time.Time, createdAt time.Time) *models.Code {
	t.Helper()
	item := &models.Code{
		Code:                 code,
		BatchID:              1,
		Status:               status,
		OwnerBusinessID:      owner,
		Size:                 "30x30",
		Style:                "matte",
		ReservationExpiresAt: expiresAt,
		CreatedAt:            createdAt,
		UpdatedAt:            createdAt,
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("create code %s failed: %v", code, err)
	}
	return item
}

func TestCodeRepositoryCompareAndSetStatusSingleWinner(t *testing.T) {
	repo, db := setupCodeRepositoryTest(t)
	now := time.Now()
	code := createRepoTestCode(t, db, "TV-CAS-001", constants.CodeStatusAvailable, nil, nil, now)

	businessID := uint(11)
	swap := StatusSwap{
		CodeID:         code.ID,
		ExpectedStatus: constants.CodeStatusAvailable,
		NewStatus:      constants.CodeStatusReserved,
		Fields: map[string]interface{}{
			"owner_business_id": businessID,
			"reserved_at":       now,
		},
	}
	affected, err := repo.CompareAndSetStatus(swap)
	if err != nil {
		t.Fatalf("first swap failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("first swap affected want 1 got %d", affected)
	}

	// 同一前置状态的第二次更新必须落空
	affected, err = repo.CompareAndSetStatus(swap)
	if err != nil {
		t.Fatalf("second swap failed: %v", err)
	}
	if affected != 0 {
		t.Fatalf("second swap affected want 0 got %d", affected)
	}

	updated, err := repo.GetByID(code.ID)
	if err != nil {
		t.Fatalf("get code failed: %v", err)
	}
	if updated.Status != constants.CodeStatusReserved {
		t.Fatalf("status want reserved got %s", updated.Status)
	}
	if updated.OwnerBusinessID == nil || *updated.OwnerBusinessID != businessID {
		t.Fatalf("owner want %d got %v", businessID, updated.OwnerBusinessID)
	}
}

func TestCodeRepositoryCompareAndSetStatusOwnerMismatch(t *testing.T) {
	repo, db := setupCodeRepositoryTest(t)
	owner := uint(21)
	stranger := uint(22)
	code := createRepoTestCode(t, db, "TV-CAS-002", constants.CodeStatusReserved, &owner, nil, time.Now())

	affected, err := repo.CompareAndSetStatus(StatusSwap{
		CodeID:          code.ID,
		ExpectedStatus:  constants.CodeStatusReserved,
		NewStatus:       constants.CodeStatusAssigned,
		OwnerBusinessID: &stranger,
	})
	if err != nil {
		t.Fatalf("swap with wrong owner failed: %v", err)
	}
	if affected != 0 {
		t.Fatalf("wrong owner affected want 0 got %d", affected)
	}

	affected, err = repo.CompareAndSetStatus(StatusSwap{
		CodeID:          code.ID,
		ExpectedStatus:  constants.CodeStatusReserved,
		NewStatus:       constants.CodeStatusAssigned,
		OwnerBusinessID: &owner,
	})
	if err != nil {
		t.Fatalf("swap with owner failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("owner swap affected want 1 got %d", affected)
	}
}

func TestCodeRepositoryCompareAndSetStatusExpiredBefore(t *testing.T) {
	repo, db := setupCodeRepositoryTest(t)
	owner := uint(31)
	now := time.Now()
	future := now.Add(10 * time.Minute)
	past := now.Add(-10 * time.Minute)
	active := createRepoTestCode(t, db, "TV-CAS-003", constants.CodeStatusReserved, &owner, &future, now)
	expired := createRepoTestCode(t, db, "TV-CAS-004", constants.CodeStatusReserved, &owner, &past, now)

	affected, err := repo.CompareAndSetStatus(StatusSwap{
		CodeID:         active.ID,
		ExpectedStatus: constants.CodeStatusReserved,
		NewStatus:      constants.CodeStatusAvailable,
		ExpiredBefore:  &now,
	})
	if err != nil {
		t.Fatalf("swap active reservation failed: %v", err)
	}
	if affected != 0 {
		t.Fatalf("active reservation must not be reclaimed, affected %d", affected)
	}

	affected, err = repo.CompareAndSetStatus(StatusSwap{
		CodeID:         expired.ID,
		ExpectedStatus: constants.CodeStatusReserved,
		NewStatus:      constants.CodeStatusAvailable,
		ExpiredBefore:  &now,
		Fields: map[string]interface{}{
			"owner_business_id":      nil,
			"reservation_expires_at": nil,
		},
	})
	if err != nil {
		t.Fatalf("swap expired reservation failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expired reservation affected want 1 got %d", affected)
	}

	updated, err := repo.GetByID(expired.ID)
	if err != nil {
		t.Fatalf("get code failed: %v", err)
	}
	if updated.Status != constants.CodeStatusAvailable {
		t.Fatalf("status want available got %s", updated.Status)
	}
	if updated.OwnerBusinessID != nil || updated.ReservationExpiresAt != nil {
		t.Fatalf("holding fields must be cleared, got %+v", updated)
	}
}

func TestCodeRepositoryFindCandidatesDeterministicOrder(t *testing.T) {
	repo, db := setupCodeRepositoryTest(t)
	owner := uint(41)
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	// 创建顺序：过期预约（最老）、可用、未过期预约
	expiredReserved := createRepoTestCode(t, db, "TV-CAND-01", constants.CodeStatusReserved, &owner, &past, now.Add(-3*time.Hour))
	available := createRepoTestCode(t, db, "TV-CAND-02", constants.CodeStatusAvailable, nil, nil, now.Add(-2*time.Hour))
	createRepoTestCode(t, db, "TV-CAND-03", constants.CodeStatusReserved, &owner, &future, now.Add(-1*time.Hour))

	candidates, err := repo.FindCandidates(CandidateCriteria{Limit: 10, Now: now})
	if err != nil {
		t.Fatalf("find candidates failed: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("candidate count want 2 got %d", len(candidates))
	}
	if candidates[0].ID != expiredReserved.ID {
		t.Fatalf("first candidate want code %d got %d", expiredReserved.ID, candidates[0].ID)
	}
	if candidates[1].ID != available.ID {
		t.Fatalf("second candidate want code %d got %d", available.ID, candidates[1].ID)
	}
}

func TestCodeRepositoryFindCandidatesFilters(t *testing.T) {
	repo, db := setupCodeRepositoryTest(t)
	now := time.Now()
	small := createRepoTestCode(t, db, "TV-CAND-11", constants.CodeStatusAvailable, nil, nil, now)
	big := createRepoTestCode(t, db, "TV-CAND-12", constants.CodeStatusAvailable, nil, nil, now)
	if err := db.Model(&models.Code{}).Where("id = ?", big.ID).Update("size", "50x50").Error; err != nil {
		t.Fatalf("update size failed: %v", err)
	}

	candidates, err := repo.FindCandidates(CandidateCriteria{Size: "50x50", Limit: 10, Now: now})
	if err != nil {
		t.Fatalf("find candidates failed: %v", err)
	}
	if len(candidates) != 1 || candidates[0].ID != big.ID {
		t.Fatalf("size filter expected only code %d, got %d candidates", big.ID, len(candidates))
	}

	candidates, err = repo.FindCandidates(CandidateCriteria{Size: "30x30", Limit: 10, Now: now})
	if err != nil {
		t.Fatalf("find candidates failed: %v", err)
	}
	if len(candidates) != 1 || candidates[0].ID != small.ID {
		t.Fatalf("size filter expected only code %d, got %d candidates", small.ID, len(candidates))
	}
}

func TestCodeRepositoryVerificationTokenLifecycle(t *testing.T) {
	repo, db := setupCodeRepositoryTest(t)
	owner := uint(51)
	code := createRepoTestCode(t, db, "TV-VER-01", constants.CodeStatusAssigned, &owner, nil, time.Now())

	expiresAt := time.Now().Add(10 * time.Minute)
	if err := repo.SetVerification(code.ID, "token-abc", expiresAt); err != nil {
		t.Fatalf("set verification failed: %v", err)
	}

	found, err := repo.GetByVerificationToken("token-abc")
	if err != nil {
		t.Fatalf("get by token failed: %v", err)
	}
	if found == nil || found.ID != code.ID {
		t.Fatalf("expected code %d for token, got %+v", code.ID, found)
	}

	if err := repo.ClearVerification(code.ID); err != nil {
		t.Fatalf("clear verification failed: %v", err)
	}
	found, err = repo.GetByVerificationToken("token-abc")
	if err != nil {
		t.Fatalf("get by token after clear failed: %v", err)
	}
	if found != nil {
		t.Fatalf("token must be single lookup after clear, got code %d", found.ID)
	}
}
