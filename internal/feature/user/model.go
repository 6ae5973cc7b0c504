package user

import (
	"time"

	"catalog-admin/internal/domain"
)

type UserModel struct {
	ID           string     `gorm:"primaryKey;type:varchar(32)"`
	Email        string     `gorm:"uniqueIndex;size:255;not null"`
	Name         string     `gorm:"size:64;not null"`
	PasswordHash string     `gorm:"size:100;not null"`
	Role         string     `gorm:"size:16;not null;default:Editor"`
	Status       string     `gorm:"size:16;not null;default:active"`
	LastLogin    *time.Time `gorm:"index"`

	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (UserModel) TableName() string { return "users" }

func FromDomain(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Status:       string(u.Status),
		LastLogin:    u.LastLogin,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (m UserModel) ToDomain() domain.User {
	return domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		Role:         domain.Role(m.Role),
		Status:       domain.Status(m.Status),
		PasswordHash: m.PasswordHash,
		LastLogin:    m.LastLogin,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}
