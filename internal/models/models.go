package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const RoleAdmin = "admin"

type Role struct {
	ID    uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	Value string `gorm:"uniqueIndex;not null"     json:"value"`
}

type User struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"      json:"id"`
	Name            string    `gorm:"not null"                  json:"name"`
	Email           string    `gorm:"uniqueIndex;not null"      json:"email"`
	PasswordHash    string    `gorm:"not null"                  json:"-"`
	IsEmailVerified bool      `gorm:"default:false"             json:"is_email_verified"`
	Roles           []Role    `gorm:"many2many:user_roles;"     json:"roles"`
	CreatedAt       time.Time `json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (u *User) HasRole(value string) bool {
	for _, r := range u.Roles {
		if r.Value == value {
			return true
		}
	}
	return false
}

func (u *User) RoleValues() []string {
	out := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		out = append(out, r.Value)
	}
	return out
}

// Token is a bearer credential. ExpiryAt is epoch milliseconds.
type Token struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"           json:"id"`
	Value     string     `gorm:"uniqueIndex;not null"           json:"value"`
	UserID    uuid.UUID  `gorm:"type:uuid;index;not null"       json:"user_id"`
	User      *User      `gorm:"constraint:OnDelete:CASCADE;"   json:"user,omitempty"`
	ExpiryAt  int64      `gorm:"index;not null"                 json:"expiry_at"`
	Revoked   bool       `gorm:"index;default:false"            json:"revoked"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (t *Token) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

type TokenStatus string

const (
	TokenActive  TokenStatus = "active"
	TokenExpired TokenStatus = "expired"
	TokenRevoked TokenStatus = "revoked"
)

// Status reports the lifecycle state at now. Revocation wins over expiry.
func (t *Token) Status(now time.Time) TokenStatus {
	switch {
	case t.Revoked:
		return TokenRevoked
	case now.UnixMilli() >= t.ExpiryAt:
		return TokenExpired
	default:
		return TokenActive
	}
}

func (t *Token) Expiry() time.Time {
	return time.UnixMilli(t.ExpiryAt)
}

func All() []any {
	return []any{&Role{}, &User{}, &Token{}}
}
