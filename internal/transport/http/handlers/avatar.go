package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avelychko/contacthub/internal/transport/http/middleware"
	"github.com/avelychko/contacthub/internal/usecase"
)

// AvatarHandler accepts avatar uploads for the current user.
type AvatarHandler struct {
	avatars *usecase.AvatarService
}

func NewAvatarHandler(avatars *usecase.AvatarService) *AvatarHandler {
	return &AvatarHandler{avatars: avatars}
}

// RegisterRoutes binds the avatar endpoint.
func (h *AvatarHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.PATCH("/avatar", h.Upload)
}

// Upload stores the multipart "file" part as the user's avatar.
func (h *AvatarHandler) Upload(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "file part is required"))
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "unable to read uploaded file"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	url, err := h.avatars.Upload(c.Request.Context(), userID, contentType, file, header.Size)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUploadRejected, Status: http.StatusUnsupportedMediaType, Message: "file must be a jpeg, png, or webp within the size limit"},
			{Err: usecase.ErrStorageUnavailable, Status: http.StatusBadGateway, Message: "storage is temporarily unavailable"},
			{Err: usecase.ErrNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "avatar upload failed")
		return
	}

	c.JSON(http.StatusOK, AvatarResponse{AvatarURL: url})
}
