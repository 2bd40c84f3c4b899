package admin

import (
	"errors"
	"strconv"

	handlershared "github.com/tagvault/tagvault/internal/http/handlers/shared"
	"github.com/tagvault/tagvault/internal/http/response"
	"github.com/tagvault/tagvault/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "invalid "+name, nil)
		return 0, false
	}
	return uint(id), true
}

func respondServiceError(c *gin.Context, err error, fallbackMsg string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		respondError(c, response.CodeBadRequest, err.Error(), nil)
	case errors.Is(err, service.ErrNotFound):
		respondError(c, response.CodeNotFound, "resource not found", nil)
	case errors.Is(err, service.ErrConflict):
		respondError(c, response.CodeConflict, "state changed concurrently", nil)
	case errors.Is(err, service.ErrInvalidState):
		respondError(c, response.CodeConflict, "invalid state transition", nil)
	case errors.Is(err, service.ErrInvalidBatchStatus):
		respondError(c, response.CodeConflict, "invalid batch status transition", nil)
	default:
		respondError(c, response.CodeInternal, fallbackMsg, err)
	}
}
