package handler

import (
	"database/sql"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ivspro/tariff-import/internal/models"
	"github.com/ivspro/tariff-import/internal/repository"
	"github.com/ivspro/tariff-import/internal/utils"
)

// MappingTemplateHandler handles free-form mapping template endpoints.
type MappingTemplateHandler struct {
	templateRepo *repository.MappingTemplateRepository
}

// NewMappingTemplateHandler constructs a MappingTemplateHandler.
func NewMappingTemplateHandler(templateRepo *repository.MappingTemplateRepository) *MappingTemplateHandler {
	return &MappingTemplateHandler{templateRepo: templateRepo}
}

// ListTemplates handles GET /v1/mapping-templates
func (h *MappingTemplateHandler) ListTemplates(c *gin.Context) {
	providerID, _ := strconv.Atoi(c.Query("provider_id"))

	templates, err := h.templateRepo.List(c.Request.Context(), providerID)
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to retrieve mapping templates")
		return
	}
	utils.Success(c, 200, "Mapping templates retrieved", templates)
}

// GetTemplate handles GET /v1/mapping-templates/:id
func (h *MappingTemplateHandler) GetTemplate(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.Error(c, 400, "INVALID_ID", "Invalid template ID")
		return
	}

	tpl, err := h.templateRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		utils.Error(c, 404, "NOT_FOUND", "Mapping template not found")
		return
	}
	utils.Success(c, 200, "Mapping template retrieved", tpl)
}

// CreateTemplate handles POST /v1/mapping-templates
func (h *MappingTemplateHandler) CreateTemplate(c *gin.Context) {
	var tpl models.MappingTemplate
	if err := c.ShouldBindJSON(&tpl); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if msg, ok := validateTemplate(&tpl); !ok {
		utils.Error(c, 400, "INVALID_REQUEST", msg)
		return
	}

	if err := h.templateRepo.Create(c.Request.Context(), &tpl); err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to create mapping template")
		return
	}
	utils.Success(c, 201, "Mapping template created", tpl)
}

// UpdateTemplate handles PUT /v1/mapping-templates/:id
func (h *MappingTemplateHandler) UpdateTemplate(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.Error(c, 400, "INVALID_ID", "Invalid template ID")
		return
	}

	existing, err := h.templateRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		utils.Error(c, 404, "NOT_FOUND", "Mapping template not found")
		return
	}

	tpl := *existing
	if err := c.ShouldBindJSON(&tpl); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return
	}
	tpl.ID = id
	if msg, ok := validateTemplate(&tpl); !ok {
		utils.Error(c, 400, "INVALID_REQUEST", msg)
		return
	}

	if err := h.templateRepo.Update(c.Request.Context(), &tpl); err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to update mapping template")
		return
	}
	utils.Success(c, 200, "Mapping template updated", tpl)
}

// DeleteTemplate handles DELETE /v1/mapping-templates/:id
func (h *MappingTemplateHandler) DeleteTemplate(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.Error(c, 400, "INVALID_ID", "Invalid template ID")
		return
	}

	if err := h.templateRepo.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			utils.Error(c, 404, "NOT_FOUND", "Mapping template not found")
			return
		}
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to delete mapping template")
		return
	}
	utils.Success(c, 200, "Mapping template deleted", nil)
}

// validateTemplate checks that a template is applicable: named, and
// binding at least the barcode and price targets.
func validateTemplate(tpl *models.MappingTemplate) (string, bool) {
	if tpl.Name == "" {
		return "name is required", false
	}
	if tpl.Columns[models.MappingTargetBarcode] == "" {
		return "columns must bind the barcode target", false
	}
	if tpl.Columns[models.MappingTargetPrice] == "" {
		return "columns must bind the price target", false
	}
	return "", true
}
