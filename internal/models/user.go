// internal/models/user.go
package models

import "time"

type UserStatus string

const (
	UserStatusNew  UserStatus = "NEW"
	UserStatusNone UserStatus = "NONE"
)

type User struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	Status    UserStatus `json:"status"`
	Admin     bool       `json:"admin"`
	CreatedAt time.Time  `json:"createdAt"`
}

// UserKey is a public key registered by a user.
type UserKey struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"userId"`
	PublicKey string `json:"publicKey"`
}
