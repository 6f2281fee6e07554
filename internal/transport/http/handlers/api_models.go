package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/avelychko/contacthub/internal/core/domain"
	"github.com/avelychko/contacthub/internal/infra/logger"
)

// ErrorResponse represents a generic error payload with the request ID for debugging.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// NewErrorResponse creates an error response carrying the request correlation ID.
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	reqID, _ := c.Request.Context().Value(logger.RequestIDKey{}).(string)

	return ErrorResponse{
		Error:     errorMsg,
		RequestID: reqID,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserProfile describes the view of a user returned by the API.
type UserProfile struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	IsVerified   bool      `json:"is_verified"`
	AvatarURL    *string   `json:"avatar_url,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

func newUserProfile(user domain.User) UserProfile {
	return UserProfile{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		IsVerified:   user.IsActive,
		AvatarURL:    user.AvatarURL,
		RegisteredAt: user.RegisteredAt,
	}
}

// RegisterRequest defines the payload for account creation.
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterResponse is returned for a successfully created account.
type RegisterResponse struct {
	User    UserProfile `json:"user"`
	Message string      `json:"message"`
}

// EmailRequest carries a bare email address, used by the resend and
// password reset request endpoints.
type EmailRequest struct {
	Email string `json:"email" binding:"required"`
}

// LoginRequest defines the payload for the login endpoint. The identifier
// is a username or an email address.
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// TokenPairResponse describes the tokens returned by login and refresh.
type TokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// LoginResponse describes the response returned for a successful login.
type LoginResponse struct {
	TokenPairResponse
	User UserProfile `json:"user"`
}

// RefreshRequest represents the payload to refresh a token pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// ResetConfirmRequest carries the replacement password for a reset.
type ResetConfirmRequest struct {
	Password string `json:"password" binding:"required"`
}

// birthdayLayout is the wire format for contact birthdays.
const birthdayLayout = "2006-01-02"

// ContactRequest defines the payload for creating a contact. Birthday is
// an optional calendar date without a time component.
type ContactRequest struct {
	FirstName   string  `json:"first_name" binding:"required"`
	LastName    string  `json:"last_name" binding:"required"`
	Email       string  `json:"email" binding:"required"`
	PhoneNumber string  `json:"phone_number" binding:"required"`
	Birthday    *string `json:"birthday"`
	ExtraInfo   *string `json:"extra_info"`
}

// ContactUpdateRequest defines a partial contact update; absent fields
// are left untouched.
type ContactUpdateRequest struct {
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phone_number"`
	Birthday    *string `json:"birthday"`
	ExtraInfo   *string `json:"extra_info"`
}

// ContactResponse describes a contact returned by the API.
type ContactResponse struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phone_number"`
	Birthday    *string   `json:"birthday,omitempty"`
	ExtraInfo   *string   `json:"extra_info,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newContactResponse(contact domain.Contact) ContactResponse {
	resp := ContactResponse{
		ID:          contact.ID,
		FirstName:   contact.FirstName,
		LastName:    contact.LastName,
		Email:       contact.Email,
		PhoneNumber: contact.PhoneNumber,
		ExtraInfo:   contact.ExtraInfo,
		CreatedAt:   contact.CreatedAt,
		UpdatedAt:   contact.UpdatedAt,
	}
	if contact.Birthday != nil {
		b := contact.Birthday.Format(birthdayLayout)
		resp.Birthday = &b
	}
	return resp
}

func newContactListResponse(contacts []domain.Contact) []ContactResponse {
	out := make([]ContactResponse, 0, len(contacts))
	for _, contact := range contacts {
		out = append(out, newContactResponse(contact))
	}
	return out
}

// AvatarResponse returns the public URL of an uploaded avatar.
type AvatarResponse struct {
	AvatarURL string `json:"avatar_url"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports readiness of each backing dependency.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
