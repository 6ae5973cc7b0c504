package category

import (
	"time"

	"catalog-admin/internal/domain"
)

// CategoryModel has no app count column; the count is derived from apps on load.
type CategoryModel struct {
	ID          string `gorm:"primaryKey;type:varchar(32)"`
	Name        string `gorm:"size:100;not null;index"`
	Slug        string `gorm:"uniqueIndex;size:120;not null"`
	Description string `gorm:"size:500"`
	Status      string `gorm:"size:16;not null;default:active"`
	Version     int64  `gorm:"not null;default:1"`
	CreatedBy   string `gorm:"type:varchar(32)"`

	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (CategoryModel) TableName() string { return "categories" }

func FromDomain(c domain.Category) CategoryModel {
	return CategoryModel{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		Status:      string(c.Status),
		Version:     c.Version,
		CreatedBy:   c.CreatedBy,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func (m CategoryModel) ToDomain() domain.Category {
	return domain.Category{
		ID:          m.ID,
		Name:        m.Name,
		Slug:        m.Slug,
		Description: m.Description,
		Status:      domain.Status(m.Status),
		Version:     m.Version,
		CreatedBy:   m.CreatedBy,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}
