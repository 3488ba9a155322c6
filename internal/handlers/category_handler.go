package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "finledger/internal/errors"
	"finledger/internal/models"
	"finledger/internal/services"
)

// CategoryHandler handles category-related requests.
type CategoryHandler struct {
	categoryService services.CategoryServicer
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(categoryService services.CategoryServicer) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService}
}

// CreateCategoryRequest represents the request payload for creating a category.
type CreateCategoryRequest struct {
	Name     string  `json:"name" binding:"required,min=1,max=100"`
	Type     string  `json:"type" binding:"required,category_type"`
	ParentID *string `json:"parent_id"`
	Icon     string  `json:"icon" binding:"max=50"`
	Color    string  `json:"color" binding:"omitempty,hex_color"`
}

// UpdateCategoryRequest represents the request payload for updating a category.
// ParentID moves the category and its whole subtree under a new parent.
type UpdateCategoryRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=1,max=100"`
	Icon     *string `json:"icon" binding:"omitempty,max=50"`
	Color    *string `json:"color" binding:"omitempty,hex_color"`
	ParentID *string `json:"parent_id"`
	IsActive *bool   `json:"is_active"`
}

// CreateCategory handles the creation of a new category.
func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	category, err := h.categoryService.CreateCategory(req.Name, models.CategoryType(req.Type), req.ParentID, req.Icon, req.Color)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"category": category})
}

// GetCategories handles the retrieval of categories, optionally filtered by type.
func (h *CategoryHandler) GetCategories(c *gin.Context) {
	var categoryType *models.CategoryType
	if v := c.Query("type"); v != "" {
		t := models.CategoryType(v)
		switch t {
		case models.CategoryTypeExpense, models.CategoryTypeIncome, models.CategoryTypeTransfer:
			categoryType = &t
		default:
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid category type: "+v))
			return
		}
	}
	includeInactive := c.Query("include_inactive") == "true"

	categories, err := h.categoryService.GetCategories(categoryType, includeInactive)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// GetCategory handles the retrieval of a single category.
func (h *CategoryHandler) GetCategory(c *gin.Context) {
	category, err := h.categoryService.GetCategoryByID(c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"category": category})
}

// UpdateCategory handles updating a category, including reparenting.
func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	var req UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	category, err := h.categoryService.UpdateCategory(c.Param("id"), req.Name, req.Icon, req.Color, req.ParentID, req.IsActive)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"category": category})
}

// DeleteCategory handles category deletion.
func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	if err := h.categoryService.DeleteCategory(c.Param("id")); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
