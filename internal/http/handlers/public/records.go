package public

import (
	"strconv"
	"time"

	handlershared "github.com/tagvault/tagvault/internal/http/handlers/shared"
	"github.com/tagvault/tagvault/internal/http/response"
	"github.com/tagvault/tagvault/internal/service"

	"github.com/gin-gonic/gin"
)

// ListMyRecords 按时间范围分页查询当前商家的分配流水
func (h *Handler) ListMyRecords(c *gin.Context) {
	businessID, ok := getBusinessID(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)

	var from, to time.Time
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "invalid from timestamp", nil)
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "invalid to timestamp", nil)
			return
		}
		to = parsed
	}

	records, total, err := h.AuditService.HistoryForBusiness(service.HistoryForBusinessInput{
		BusinessID: businessID,
		From:       from,
		To:         to,
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "fetch records failed", err)
		return
	}
	response.SuccessWithPage(c, records, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: handlershared.TotalPages(total, pageSize),
	})
}
