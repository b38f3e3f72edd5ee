package transport

import "time"

type LoginRequest struct {
	Username string `json:"username" validate:"required,notblank,max=100"`
	Password string `json:"password" validate:"required,max=200"`
}

// RefreshRequest is optional; the refresh cookie takes precedence.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type TokenResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int64        `json:"expiresIn"`
	User         UserResponse `json:"user"`
}

type UserResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Name        string    `json:"name"`
	Phone       *string   `json:"phone,omitempty"`
	Role        string    `json:"role"`
	ProfileID   *string   `json:"profileId,omitempty"`
	ProfileName *string   `json:"profileName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
