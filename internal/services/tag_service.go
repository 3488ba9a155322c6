package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "finledger/internal/errors"
	"finledger/internal/models"
)

// tagService handles tag-related business logic.
type tagService struct {
	db *gorm.DB
}

// NewTagService creates a new TagServicer.
func NewTagService(db *gorm.DB) TagServicer {
	return &tagService{db: db}
}

// CreateTag creates a tag with a case-insensitively unique name.
func (s *tagService) CreateTag(name, color string) (*models.Tag, error) {
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "tag name is required")
	}

	var count int64
	if err := s.db.Model(&models.Tag{}).
		Where("LOWER(name) = ?", strings.ToLower(name)).
		Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateTag
	}

	tag := &models.Tag{Name: name, Color: color}
	if err := s.db.Create(tag).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return tag, nil
}

// GetTags lists all tags ordered by name.
func (s *tagService) GetTags() ([]models.Tag, error) {
	var tags []models.Tag
	if err := s.db.Order("name").Find(&tags).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return tags, nil
}

// UpdateTag updates a tag's name or color.
func (s *tagService) UpdateTag(tagID string, name, color *string) (*models.Tag, error) {
	var tag models.Tag
	if err := s.db.Where("id = ?", tagID).First(&tag).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTagNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	updates := make(map[string]interface{})
	if name != nil && *name != "" {
		var count int64
		if err := s.db.Model(&models.Tag{}).
			Where("LOWER(name) = ? AND id <> ?", strings.ToLower(*name), tagID).
			Count(&count).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count > 0 {
			return nil, apperrors.ErrDuplicateTag
		}
		updates["name"] = *name
	}
	if color != nil {
		updates["color"] = *color
	}

	if len(updates) > 0 {
		if err := s.db.Model(&tag).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return &tag, nil
}

// DeleteTag deletes a tag that is not attached to any transaction.
func (s *tagService) DeleteTag(tagID string) error {
	var tag models.Tag
	if err := s.db.Where("id = ?", tagID).First(&tag).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrTagNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	count := s.db.Model(&tag).Association("Transactions").Count()
	if count > 0 {
		return apperrors.ErrTagInUse
	}

	if err := s.db.Delete(&tag).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
