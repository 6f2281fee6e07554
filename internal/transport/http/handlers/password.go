package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avelychko/contacthub/internal/usecase"
)

// PasswordHandler exposes the forgot-password flow.
type PasswordHandler struct {
	reset *usecase.PasswordResetService
}

func NewPasswordHandler(reset *usecase.PasswordResetService) *PasswordHandler {
	return &PasswordHandler{reset: reset}
}

// RegisterRoutes binds password reset endpoints.
func (h *PasswordHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/reset_password", h.RequestReset)
	r.POST("/reset_password/:token", h.ConfirmReset)
}

// RequestReset emails a reset link. Unknown addresses get the same 202 as
// known ones so the endpoint cannot be used to enumerate accounts.
func (h *PasswordHandler) RequestReset(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	err := h.reset.RequestReset(c.Request.Context(), req.Email)
	if err != nil {
		if respondRateLimited(c, err) {
			return
		}
		if !isSilentEmailError(err) {
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "request failed"))
			return
		}
	}

	c.JSON(http.StatusAccepted, MessageResponse{Message: "check your email for the reset link"})
}

// ConfirmReset replaces the credential behind a valid reset token.
func (h *PasswordHandler) ConfirmReset(c *gin.Context) {
	token := c.Param("token")

	var req ResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	if err := h.reset.ConfirmReset(c.Request.Context(), token, req.Password); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidToken, Status: http.StatusUnprocessableEntity, Message: "reset link is invalid or expired"},
			{Err: usecase.ErrWeakPassword, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
			{Err: usecase.ErrNotFound, Status: http.StatusNotFound, Message: "account not found"},
		}, http.StatusInternalServerError, "reset failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password updated"})
}

// isSilentEmailError reports whether the error must be hidden from the
// client to avoid leaking which addresses have accounts.
func isSilentEmailError(err error) bool {
	return errors.Is(err, usecase.ErrNotFound)
}
