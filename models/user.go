package models

import (
	"time"
)

type Role string

const (
	AdminRole Role = "ADMIN"
	UserRole  Role = "USER"
)

type User struct {
	ID               string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Email            string    `json:"email" gorm:"uniqueIndex;not null" binding:"required,email"`
	Password         string    `json:"password,omitempty" binding:"required,min=6"`
	UserName         string    `json:"username"`
	Role             Role      `json:"role" gorm:"type:varchar(20);default:'USER'"`
	StripeCustomerId string    `json:"stripeCustomerId"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// UserLogin is the payload accepted by the login endpoint.
type UserLogin struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}
