package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ivspro/tariff-import/internal/repository"
	"github.com/ivspro/tariff-import/internal/utils"
)

// ImportLogHandler serves the run history records.
type ImportLogHandler struct {
	logRepo *repository.ImportLogRepository
}

// NewImportLogHandler constructs an ImportLogHandler.
func NewImportLogHandler(logRepo *repository.ImportLogRepository) *ImportLogHandler {
	return &ImportLogHandler{logRepo: logRepo}
}

// ListLogs handles GET /v1/import-logs
func (h *ImportLogHandler) ListLogs(c *gin.Context) {
	providerID, _ := strconv.Atoi(c.DefaultQuery("provider_id", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	logs, err := h.logRepo.List(c.Request.Context(), providerID, limit, offset)
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to retrieve import logs")
		return
	}
	utils.Success(c, 200, "Import logs retrieved", logs)
}

// GetLog handles GET /v1/import-logs/:id
func (h *ImportLogHandler) GetLog(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.Error(c, 400, "INVALID_ID", "Invalid log ID")
		return
	}

	rec, err := h.logRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		utils.Error(c, 404, "NOT_FOUND", "Import log not found")
		return
	}
	utils.Success(c, 200, "Import log retrieved", rec)
}
