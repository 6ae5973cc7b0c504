package domain

import "time"

type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Role         Role       `json:"role"`
	Status       Status     `json:"status"`
	PasswordHash string     `json:"-"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type CreateUserInput struct {
	Name         string
	Email        string
	Role         Role
	Status       Status
	PasswordHash string
}

type UpdateUserInput struct {
	Name   *string `json:"name" binding:"omitempty,max=64"`
	Role   *Role   `json:"role" binding:"omitempty,oneof=Editor Admin SuperAdmin"`
	Status *Status `json:"status" binding:"omitempty,oneof=active inactive"`
}

// Actor is who performs a mutation; it is copied into every audit entry.
type Actor struct {
	UserID    string
	UserName  string
	IPAddress string
}

// SystemActor is used for bootstrap work such as seeding.
var SystemActor = Actor{UserID: "system", UserName: "system"}
