package models

import "time"

// User is a mobile app account. Its token unlocks the /mobile and /api routes
// when auth is enabled; device routes never need one.
type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
