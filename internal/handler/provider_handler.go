package handler

import (
	"database/sql"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ivspro/tariff-import/internal/models"
	"github.com/ivspro/tariff-import/internal/repository"
	"github.com/ivspro/tariff-import/internal/service"
	"github.com/ivspro/tariff-import/internal/utils"
)

// ProviderHandler handles provider management HTTP endpoints.
type ProviderHandler struct {
	providerRepo *repository.ProviderRepository
	previewSvc   *service.PreviewService
}

// NewProviderHandler constructs a ProviderHandler.
func NewProviderHandler(providerRepo *repository.ProviderRepository, previewSvc *service.PreviewService) *ProviderHandler {
	return &ProviderHandler{providerRepo: providerRepo, previewSvc: previewSvc}
}

// ListProviders handles GET /v1/providers
func (h *ProviderHandler) ListProviders(c *gin.Context) {
	activeOnly := c.Query("active") == "true"

	providers, err := h.providerRepo.GetAll(c.Request.Context(), activeOnly)
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to retrieve providers")
		return
	}

	utils.Success(c, 200, "Providers retrieved", providers)
}

// GetProvider handles GET /v1/providers/:id
func (h *ProviderHandler) GetProvider(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.Error(c, 400, "INVALID_ID", "Invalid provider ID")
		return
	}

	provider, err := h.providerRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		utils.Error(c, 404, "NOT_FOUND", "Provider not found")
		return
	}

	utils.Success(c, 200, "Provider retrieved", provider)
}

// providerRequest is the JSON shape bound by create/update. The model hides
// credentials from responses with json:"-", so they bind here as write-only
// fields; a nil pointer means "not provided", keeping the stored value.
type providerRequest struct {
	models.Provider
	Password          *string `json:"password"`
	SFTPPrivateKey    *string `json:"sftpPrivateKey"`
	SFTPKeyPassphrase *string `json:"sftpKeyPassphrase"`
}

// toProvider folds the write-only credential fields back into the model.
func (r *providerRequest) toProvider() models.Provider {
	p := r.Provider
	if r.Password != nil {
		p.Password = *r.Password
	}
	if r.SFTPPrivateKey != nil {
		p.SFTPPrivateKey = *r.SFTPPrivateKey
	}
	if r.SFTPKeyPassphrase != nil {
		p.SFTPKeyPassphrase = *r.SFTPKeyPassphrase
	}
	return p
}

// CreateProvider handles POST /v1/providers
func (h *ProviderHandler) CreateProvider(c *gin.Context) {
	var req providerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return
	}
	p := req.toProvider()
	if p.Name == "" || p.Host == "" {
		utils.Error(c, 400, "INVALID_REQUEST", "name and host are required")
		return
	}
	switch p.Protocol {
	case models.ProtocolFTP, models.ProtocolSFTP, models.ProtocolIMAP:
	default:
		utils.Error(c, 400, "INVALID_PROTOCOL", "protocol must be ftp, sftp or imap")
		return
	}

	if err := h.providerRepo.Create(c.Request.Context(), &p); err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to create provider")
		return
	}
	utils.Success(c, 201, "Provider created", p)
}

// UpdateProvider handles PUT /v1/providers/:id
func (h *ProviderHandler) UpdateProvider(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.Error(c, 400, "INVALID_ID", "Invalid provider ID")
		return
	}

	existing, err := h.providerRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		utils.Error(c, 404, "NOT_FOUND", "Provider not found")
		return
	}

	// Bind over the stored record so omitted fields keep their values;
	// omitted credentials stay untouched via the nil-pointer convention.
	req := providerRequest{Provider: *existing}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return
	}
	p := req.toProvider()
	p.ID = id

	if err := h.providerRepo.Update(c.Request.Context(), &p); err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to update provider")
		return
	}
	utils.Success(c, 200, "Provider updated", p)
}

// DeleteProvider handles DELETE /v1/providers/:id
func (h *ProviderHandler) DeleteProvider(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.Error(c, 400, "INVALID_ID", "Invalid provider ID")
		return
	}

	if _, err := h.providerRepo.GetByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			utils.Error(c, 404, "NOT_FOUND", "Provider not found")
			return
		}
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to load provider")
		return
	}

	if err := h.providerRepo.Delete(c.Request.Context(), id); err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to delete provider")
		return
	}
	utils.Success(c, 200, "Provider deleted", nil)
}

// TestConnection handles POST /v1/providers/:id/test
func (h *ProviderHandler) TestConnection(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.Error(c, 400, "INVALID_ID", "Invalid provider ID")
		return
	}

	if err := h.previewSvc.TestConnection(c.Request.Context(), id); err != nil {
		writeDomainError(c, err)
		return
	}
	utils.Success(c, 200, "Connection OK", nil)
}
