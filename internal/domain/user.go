package domain

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	UserID        string    `json:"id" dynamodbav:"user_id"`
	Phone         string    `json:"phone" dynamodbav:"phone"`
	Email         string    `json:"email" dynamodbav:"email"`
	Name          string    `json:"name" dynamodbav:"name"`
	Role          string    `json:"role" dynamodbav:"role"`
	Company       string    `json:"company" dynamodbav:"company"`
	PhoneVerified bool      `json:"phone_verified" dynamodbav:"phone_verified"`
	EmailVerified bool      `json:"email_verified" dynamodbav:"email_verified"`
	Enable        bool      `json:"enable" dynamodbav:"enable"`
	CreatedAt     time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt     time.Time `json:"updated" dynamodbav:"updated_at"`
}
