package dto

import (
	"time"

	"github.com/spec-kit/support-portal/internal/domain"
)

// SignUpRequest payload.
type SignUpRequest struct {
	Name       string      `json:"name"`
	Email      string      `json:"email"`
	Password   string      `json:"password"`
	Role       domain.Role `json:"role"`
	Department string      `json:"department"`
}

// SignInRequest payload.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileRequest payload.
type UpdateProfileRequest struct {
	Name       string `json:"name"`
	Department string `json:"department"`
}

// AuthResponse carries the issued token.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ProfileResponse is the public profile record.
type ProfileResponse struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Email      string      `json:"email"`
	Role       domain.Role `json:"role"`
	Department string      `json:"department"`
}

// Profile maps a user to its public profile.
func Profile(user *domain.User) ProfileResponse {
	return ProfileResponse{
		ID:         user.ID,
		Name:       user.Name,
		Email:      user.Email,
		Role:       user.Role,
		Department: user.Department,
	}
}
