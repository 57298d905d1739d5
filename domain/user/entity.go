package user

import (
	"time"

	"gorm.io/gorm"
)

// User represents an account in the system. Accounts are soft deleted so
// that session history keeps a valid owner reference.
type User struct {
	ID           string `gorm:"primaryKey;type:text"`
	Email        string `gorm:"uniqueIndex;not null;type:text"`
	PasswordHash string `gorm:"not null;type:text"`
	DisplayName  string `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

// TableName returns the table name for the User entity.
func (User) TableName() string {
	return "users"
}

// Profile is the sanitized view of a User returned to callers.
// It never carries the password hash or the soft-delete marker.
type Profile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Sanitize strips the secret fields from a User.
func (u *User) Sanitize() Profile {
	return Profile{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}

// Session is one row per active refresh token. Rotation inserts the
// successor row and deletes this one; logout deletes it; expiry makes the
// row unusable at lookup time.
type Session struct {
	ID        string    `gorm:"primaryKey;type:text"`
	UserID    string    `gorm:"index;not null;type:text"`
	Token     string    `gorm:"uniqueIndex;not null;type:text"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
}

// TableName returns the table name for the Session entity.
func (Session) TableName() string {
	return "sessions"
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// TokenPair represents access and refresh tokens issued together.
// It is never persisted; only the refresh token gets a Session row.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Claims represents the identity extracted from a verified access token.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}
