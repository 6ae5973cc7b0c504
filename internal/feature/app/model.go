package app

import (
	"time"

	"catalog-admin/internal/domain"
)

type AppModel struct {
	ID          string   `gorm:"primaryKey;type:varchar(32)"`
	Name        string   `gorm:"size:120;not null"`
	Package     string   `gorm:"uniqueIndex;size:255;not null"`
	PackageURL  string   `gorm:"size:512"`
	Icon        string   `gorm:"size:512"`
	Description string   `gorm:"size:1000"`
	CategoryID  string   `gorm:"type:varchar(32);not null;index"`
	Tags        []string `gorm:"serializer:json;type:text"`
	Source      string   `gorm:"size:16;not null;default:manual"`
	Status      string   `gorm:"size:16;not null;default:active;index"`
	Version     int64    `gorm:"not null;default:1"`
	CreatedBy   string   `gorm:"type:varchar(32)"`

	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (AppModel) TableName() string { return "apps" }

func FromDomain(a domain.App) AppModel {
	return AppModel{
		ID:          a.ID,
		Name:        a.Name,
		Package:     a.Package,
		PackageURL:  a.PackageURL,
		Icon:        a.Icon,
		Description: a.Description,
		CategoryID:  a.CategoryID,
		Tags:        append([]string{}, a.Tags...),
		Source:      string(a.Source),
		Status:      string(a.Status),
		Version:     a.Version,
		CreatedBy:   a.CreatedBy,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func (m AppModel) ToDomain() domain.App {
	return domain.App{
		ID:          m.ID,
		Name:        m.Name,
		Package:     m.Package,
		PackageURL:  m.PackageURL,
		Icon:        m.Icon,
		Description: m.Description,
		CategoryID:  m.CategoryID,
		Tags:        m.Tags,
		Source:      domain.Source(m.Source),
		Status:      domain.Status(m.Status),
		Version:     m.Version,
		CreatedBy:   m.CreatedBy,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}
