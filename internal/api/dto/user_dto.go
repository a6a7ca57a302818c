package dto

import (
	"time"

	"github.com/spec-kit/review-service/internal/domain"
)

// UserRegisterRequest payload for publisher self-signup.
type UserRegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateUserRequest payload for admin-provisioned accounts.
type CreateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// ChangeRoleRequest payload for admin role changes.
type ChangeRoleRequest struct {
	Role string `json:"role"`
}

// UserLoginRequest payload for login.
type UserLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserSummary is the public view of an account.
type UserSummary struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token        string               `json:"token"`
	ExpiresAt    time.Time            `json:"expires_at"`
	Role         domain.Role          `json:"role"`
	Capabilities domain.CapabilitySet `json:"capabilities"`
}

// NewUserSummary maps a user to its public view.
func NewUserSummary(user *domain.User) UserSummary {
	return UserSummary{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role}
}
