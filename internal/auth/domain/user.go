package domain

import "time"

type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`     // stored lowercased
	PasswordHash string     `json:"-"`         // argon2id PHC string, or legacy bcrypt
	LastLogin    *time.Time `json:"lastLogin"` // nil until first signin
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}
