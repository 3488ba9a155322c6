package services

import (
	"errors"

	"gorm.io/gorm"

	apperrors "finledger/internal/errors"
	"finledger/internal/models"
)

// categoryService handles category-related business logic, including
// maintenance of the materialized tree path used for subtree rollups.
type categoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(db *gorm.DB) CategoryServicer {
	return &categoryService{db: db}
}

// CreateCategory creates a new category under the optional parent.
func (s *categoryService) CreateCategory(name string, categoryType models.CategoryType, parentID *string, icon, color string) (*models.Category, error) {
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}

	var parent *models.Category
	if parentID != nil && *parentID != "" {
		var err error
		parent, err = s.GetCategoryByID(*parentID)
		if err != nil {
			return nil, err
		}
		if parent.Type != categoryType {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category type must match its parent")
		}
	} else {
		parentID = nil
	}

	category := &models.Category{
		Name:     name,
		Type:     categoryType,
		ParentID: parentID,
		Icon:     icon,
		Color:    color,
		IsActive: true,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(category).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		// Path depends on the generated id, so it is set right after insert.
		if parent != nil {
			category.Path = parent.Path + category.ID + "/"
			category.Level = parent.Level + 1
		} else {
			category.Path = category.ID + "/"
			category.Level = 0
		}
		if err := tx.Model(category).Updates(map[string]interface{}{
			"path":  category.Path,
			"level": category.Level,
		}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}

// GetCategories lists categories ordered the way a tree renders: type,
// depth, then name.
func (s *categoryService) GetCategories(categoryType *models.CategoryType, includeInactive bool) ([]models.Category, error) {
	base := s.db.Model(&models.Category{})
	if categoryType != nil {
		base = base.Where("type = ?", *categoryType)
	}
	if !includeInactive {
		base = base.Where("is_active = ?", true)
	}

	var categories []models.Category
	if err := base.Order("type").Order("level").Order("name").Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return categories, nil
}

// GetCategoryByID retrieves a category by ID.
func (s *categoryService) GetCategoryByID(categoryID string) (*models.Category, error) {
	var category models.Category
	if err := s.db.Where("id = ?", categoryID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

// UpdateCategory updates a category and, on reparenting, recomputes the path
// and level of the category and its whole subtree. A reparent that would
// make the category its own ancestor is rejected.
func (s *categoryService) UpdateCategory(categoryID string, name, icon, color *string, parentID *string, isActive *bool) (*models.Category, error) {
	category, err := s.GetCategoryByID(categoryID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if name != nil && *name != "" {
		updates["name"] = *name
	}
	if icon != nil {
		updates["icon"] = *icon
	}
	if color != nil {
		updates["color"] = *color
	}
	if isActive != nil {
		updates["is_active"] = *isActive
	}

	reparent := parentID != nil && (category.ParentID == nil || *category.ParentID != *parentID)
	var newParent *models.Category
	if reparent && *parentID != "" {
		if *parentID == categoryID {
			return nil, apperrors.ErrCategoryCycle
		}
		newParent, err = s.GetCategoryByID(*parentID)
		if err != nil {
			return nil, err
		}
		// Walking ancestors before commit keeps the tree acyclic; the new
		// parent must not sit inside this category's subtree.
		if err := s.ensureNotDescendant(category, newParent); err != nil {
			return nil, err
		}
		if newParent.Type != category.Type {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category type must match its parent")
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(category).Updates(updates).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
		if reparent {
			return s.rebase(tx, category, newParent)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetCategoryByID(categoryID)
}

// ensureNotDescendant rejects a reparent when candidate lies in the subtree
// rooted at category.
func (s *categoryService) ensureNotDescendant(category *models.Category, candidate *models.Category) error {
	current := candidate
	for current.ParentID != nil {
		if *current.ParentID == category.ID {
			return apperrors.ErrCategoryCycle
		}
		parent, err := s.GetCategoryByID(*current.ParentID)
		if err != nil {
			return err
		}
		current = parent
	}
	if candidate.ID == category.ID {
		return apperrors.ErrCategoryCycle
	}
	return nil
}

// rebase moves category under newParent (nil for root) and rewrites the
// path/level of every node in the moved subtree top-down.
func (s *categoryService) rebase(tx *gorm.DB, category *models.Category, newParent *models.Category) error {
	oldPath := category.Path
	var newPath string
	var newLevel int
	var newParentID *string
	if newParent != nil {
		newPath = newParent.Path + category.ID + "/"
		newLevel = newParent.Level + 1
		newParentID = &newParent.ID
	} else {
		newPath = category.ID + "/"
		newLevel = 0
	}

	if err := tx.Model(category).Updates(map[string]interface{}{
		"parent_id": newParentID,
		"path":      newPath,
		"level":     newLevel,
	}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var descendants []models.Category
	if err := tx.Where("path LIKE ? AND id <> ?", oldPath+"%", category.ID).Find(&descendants).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	levelShift := newLevel - category.Level
	for i := range descendants {
		d := &descendants[i]
		rewritten := newPath + d.Path[len(oldPath):]
		if err := tx.Model(d).Updates(map[string]interface{}{
			"path":  rewritten,
			"level": d.Level + levelShift,
		}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return nil
}

// DeleteCategory deletes a category that nothing references. Deletion is
// rejected while transactions or child categories point at it; deactivation
// through UpdateCategory is always available instead.
func (s *categoryService) DeleteCategory(categoryID string) error {
	category, err := s.GetCategoryByID(categoryID)
	if err != nil {
		return err
	}

	var txCount int64
	if err := s.db.Model(&models.Transaction{}).
		Where("category_id = ? OR subcategory_id = ?", categoryID, categoryID).
		Count(&txCount).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if txCount > 0 {
		return apperrors.ErrCategoryInUse
	}

	var childCount int64
	if err := s.db.Model(&models.Category{}).Where("parent_id = ?", categoryID).Count(&childCount).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if childCount > 0 {
		return apperrors.ErrCategoryHasChildren
	}

	if err := s.db.Delete(category).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// SubtreeIDs resolves the category and all descendants via a prefix match on
// the materialized path.
func (s *categoryService) SubtreeIDs(categoryID string) ([]string, error) {
	category, err := s.GetCategoryByID(categoryID)
	if err != nil {
		return nil, err
	}

	var ids []string
	if err := s.db.Model(&models.Category{}).
		Where("path LIKE ?", category.Path+"%").
		Pluck("id", &ids).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return ids, nil
}
