package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ivspro/tariff-import/internal/remote"
	"github.com/ivspro/tariff-import/internal/service"
	"github.com/ivspro/tariff-import/internal/utils"
)

// ImportHandler exposes the preview and run-trigger endpoints.
type ImportHandler struct {
	runSvc     *service.RunService
	previewSvc *service.PreviewService
}

// NewImportHandler constructs an ImportHandler.
func NewImportHandler(runSvc *service.RunService, previewSvc *service.PreviewService) *ImportHandler {
	return &ImportHandler{runSvc: runSvc, previewSvc: previewSvc}
}

// ListFiles handles GET /v1/providers/:id/files
func (h *ImportHandler) ListFiles(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.Error(c, 400, "INVALID_ID", "Invalid provider ID")
		return
	}

	files, err := h.previewSvc.ListFiles(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	utils.Success(c, 200, "Files listed", files)
}

// PreviewFile handles POST /v1/providers/:id/preview
func (h *ImportHandler) PreviewFile(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.Error(c, 400, "INVALID_ID", "Invalid provider ID")
		return
	}

	var req struct {
		Path    string `json:"path" binding:"required"`
		MaxRows int    `json:"maxRows"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "path is required")
		return
	}

	preview, err := h.previewSvc.PreviewFile(c.Request.Context(), id, req.Path, req.MaxRows)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	utils.Success(c, 200, "File preview", preview)
}

// RunProvider handles POST /v1/providers/:id/run
// An optional body {"paths": [...]} restricts the run to the given
// remote paths; selected runs never relocate remote files.
func (h *ImportHandler) RunProvider(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.Error(c, 400, "INVALID_ID", "Invalid provider ID")
		return
	}

	var req struct {
		Paths []string `json:"paths"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
			return
		}
	}

	ctx := c.Request.Context()
	if len(req.Paths) > 0 {
		err = h.runSvc.ProcessSelected(ctx, id, req.Paths)
	} else {
		err = h.runSvc.ProcessProvider(ctx, id)
	}
	if err != nil {
		writeDomainError(c, err)
		return
	}
	utils.Success(c, 200, "Run completed", nil)
}

// writeDomainError maps service-level errors onto HTTP responses.
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, utils.ErrProviderNotFound):
		utils.Error(c, 404, "NOT_FOUND", "Provider not found")
	case errors.Is(err, utils.ErrProviderInactive):
		utils.Error(c, 409, "PROVIDER_INACTIVE", "Provider is inactive")
	case errors.Is(err, utils.ErrProviderNotReady):
		utils.Error(c, 409, "PROVIDER_NOT_CONFIGURED", "Provider has no usable connection settings")
	case errors.Is(err, utils.ErrRunInProgress):
		utils.Error(c, 409, "RUN_IN_PROGRESS", "A run for this provider is already in progress")
	case errors.Is(err, utils.ErrFileNotFound):
		utils.Error(c, 404, "FILE_NOT_FOUND", "Remote file not found")
	case errors.Is(err, remote.ErrCapabilityUnavailable):
		utils.Error(c, 503, "SFTP_DISABLED", "Encrypted transfer capability is disabled")
	default:
		var se *remote.SourceError
		if errors.As(err, &se) {
			switch se.Kind {
			case remote.KindAuth:
				utils.Error(c, 502, "REMOTE_AUTH_FAILED", "Remote authentication failed")
			case remote.KindHostKey:
				utils.Error(c, 502, "HOSTKEY_MISMATCH", "Remote host identity mismatch")
			default:
				utils.Error(c, 502, "REMOTE_UNAVAILABLE", "Remote source unavailable")
			}
			return
		}
		utils.Error(c, 500, "INTERNAL_ERROR", err.Error())
	}
}
