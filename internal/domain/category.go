package domain

import "time"

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	AppCount    int       `json:"appCount"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	CreatedBy   string    `json:"createdBy"`
}

type CreateCategoryInput struct {
	Name        string  `json:"name" binding:"required,max=100"`
	Slug        string  `json:"slug" binding:"omitempty,max=120"`
	Description string  `json:"description" binding:"max=500"`
	Status      *Status `json:"status" binding:"omitempty,oneof=active inactive"`
}

// UpdateCategoryInput is a patch; nil fields are left unchanged. A non-zero Version must
// match the stored version.
type UpdateCategoryInput struct {
	Name        *string `json:"name" binding:"omitempty,max=100"`
	Slug        *string `json:"slug" binding:"omitempty,max=120"`
	Description *string `json:"description" binding:"omitempty,max=500"`
	Status      *Status `json:"status" binding:"omitempty,oneof=active inactive"`
	Version     int64   `json:"version"`
}
