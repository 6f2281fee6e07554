package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/avelychko/contacthub/internal/core/domain"
	"github.com/avelychko/contacthub/internal/transport/http/middleware"
	"github.com/avelychko/contacthub/internal/usecase"
)

// ContactHandler exposes the address-book CRUD endpoints. Every route
// requires authentication; the owner is always the current user.
type ContactHandler struct {
	contacts *usecase.ContactService
}

func NewContactHandler(contacts *usecase.ContactService) *ContactHandler {
	return &ContactHandler{contacts: contacts}
}

// RegisterRoutes binds contact endpoints.
func (h *ContactHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("", h.Create)
	r.GET("", h.List)
	r.GET("/birthdays", h.UpcomingBirthdays)
	r.GET("/:id", h.Get)
	r.PUT("/:id", h.Update)
	r.DELETE("/:id", h.Delete)
}

// Create stores a new contact for the current user.
func (h *ContactHandler) Create(c *gin.Context) {
	ownerID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid contact payload"))
		return
	}

	birthday, ok := parseBirthday(c, req.Birthday)
	if !ok {
		return
	}

	contact, err := h.contacts.Create(c.Request.Context(), ownerID, usecase.ContactInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Birthday:    birthday,
		ExtraInfo:   req.ExtraInfo,
	})
	if err != nil {
		if errors.Is(err, usecase.ErrDuplicateContact) {
			c.JSON(http.StatusConflict, NewErrorResponse(c, "a contact with that email already exists"))
			return
		}
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, newContactResponse(contact))
}

// List returns the current user's contacts, optionally filtered by the
// "q" query over names and email.
func (h *ContactHandler) List(c *gin.Context) {
	ownerID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	contacts, err := h.contacts.Search(c.Request.Context(), ownerID, c.Query("q"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list contacts"))
		return
	}

	c.JSON(http.StatusOK, newContactListResponse(contacts))
}

// Get returns a single contact.
func (h *ContactHandler) Get(c *gin.Context) {
	ownerID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	contact, err := h.contacts.Get(c.Request.Context(), ownerID, c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrNotFound, Status: http.StatusNotFound, Message: "contact not found"},
		}, http.StatusInternalServerError, "failed to load contact")
		return
	}

	c.JSON(http.StatusOK, newContactResponse(contact))
}

// Update applies a partial update and returns the fresh contact.
func (h *ContactHandler) Update(c *gin.Context) {
	ownerID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req ContactUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid contact payload"))
		return
	}

	birthday, ok := parseBirthday(c, req.Birthday)
	if !ok {
		return
	}

	contact, err := h.contacts.Update(c.Request.Context(), ownerID, c.Param("id"), domain.ContactUpdate{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Birthday:    birthday,
		ExtraInfo:   req.ExtraInfo,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrNotFound, Status: http.StatusNotFound, Message: "contact not found"},
			{Err: usecase.ErrDuplicateContact, Status: http.StatusConflict, Message: "a contact with that email already exists"},
		}, http.StatusInternalServerError, "failed to update contact")
		return
	}

	c.JSON(http.StatusOK, newContactResponse(contact))
}

// Delete removes a contact.
func (h *ContactHandler) Delete(c *gin.Context) {
	ownerID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.contacts.Delete(c.Request.Context(), ownerID, c.Param("id")); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrNotFound, Status: http.StatusNotFound, Message: "contact not found"},
		}, http.StatusInternalServerError, "failed to delete contact")
		return
	}

	c.Status(http.StatusNoContent)
}

// UpcomingBirthdays lists contacts whose birthday falls in the next days,
// 7 by default.
func (h *ContactHandler) UpcomingBirthdays(c *gin.Context) {
	ownerID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	days := 7
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "days must be a positive integer"))
			return
		}
		days = parsed
	}

	contacts, err := h.contacts.UpcomingBirthdays(c.Request.Context(), ownerID, days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to load birthdays"))
		return
	}

	c.JSON(http.StatusOK, newContactListResponse(contacts))
}

// parseBirthday converts an optional YYYY-MM-DD string. On a malformed
// value it writes the error response and reports false.
func parseBirthday(c *gin.Context, raw *string) (*time.Time, bool) {
	if raw == nil || *raw == "" {
		return nil, true
	}

	parsed, err := time.Parse(birthdayLayout, *raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "birthday must be formatted as YYYY-MM-DD"))
		return nil, false
	}
	return &parsed, true
}
