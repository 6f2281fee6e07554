package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avelychko/contacthub/internal/usecase"
)

// RegistrationHandler exposes account creation and email verification.
type RegistrationHandler struct {
	registration *usecase.RegistrationService
}

func NewRegistrationHandler(registration *usecase.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registration: registration}
}

// RegisterRoutes binds registration endpoints.
func (h *RegistrationHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/register", h.Register)
	r.GET("/confirm_email/:token", h.ConfirmEmail)
	r.POST("/request_email", h.RequestEmail)
}

// Register creates an unverified account and sends the activation mail.
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	user, err := h.registration.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrDuplicateIdentity, Status: http.StatusConflict, Message: "account already exists"},
			{Err: usecase.ErrWeakPassword, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
		}, http.StatusInternalServerError, "registration failed")
		return
	}

	c.JSON(http.StatusCreated, RegisterResponse{
		User:    newUserProfile(user),
		Message: "confirmation email sent",
	})
}

// ConfirmEmail activates the account behind a verification token.
func (h *RegistrationHandler) ConfirmEmail(c *gin.Context) {
	token := c.Param("token")

	if err := h.registration.VerifyEmail(c.Request.Context(), token); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidToken, Status: http.StatusUnprocessableEntity, Message: "verification link is invalid or expired"},
			{Err: usecase.ErrNotFound, Status: http.StatusNotFound, Message: "account not found"},
		}, http.StatusInternalServerError, "verification failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "email confirmed"})
}

// RequestEmail resends the verification mail. The response never reveals
// whether the address exists or is already verified.
func (h *RegistrationHandler) RequestEmail(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	err := h.registration.ResendVerification(c.Request.Context(), req.Email)
	if err != nil && !isSilentEmailError(err) {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "request failed"))
		return
	}

	c.JSON(http.StatusAccepted, MessageResponse{Message: "check your email for confirmation"})
}
