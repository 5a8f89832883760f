package httpserver

import (
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/identity/internal/models"
)

type SignUpRequest struct {
	Name     string `json:"name"     form:"name"`
	Email    string `json:"email"    form:"email"`
	Password string `json:"password" form:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"    form:"email"`
	Password string `json:"password" form:"password"`
}

type LogoutRequest struct {
	Token string `json:"token" form:"token"`
}

type UserResponse struct {
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

type TokenResponse struct {
	Value    string       `json:"value"`
	ExpiryAt int64        `json:"expiryAt"`
	User     UserResponse `json:"user"`
}

type TokenInfo struct {
	ID        uuid.UUID          `json:"id"`
	ExpiryAt  int64              `json:"expiryAt"`
	Revoked   bool               `json:"revoked"`
	RevokedAt *time.Time         `json:"revokedAt,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
	Status    models.TokenStatus `json:"status"`
}

type TokenListResponse struct {
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Size  int         `json:"size"`
	Items []TokenInfo `json:"items"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{Name: u.Name, Email: u.Email, Roles: u.RoleValues()}
}

func toTokenResponse(t *models.Token) TokenResponse {
	resp := TokenResponse{Value: t.Value, ExpiryAt: t.ExpiryAt}
	if t.User != nil {
		resp.User = toUserResponse(t.User)
	}
	return resp
}
