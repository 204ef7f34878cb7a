package handler

import (
	"net/http"

	"alumnet-chat/internal/services"
	"alumnet-chat/internal/storage"
	"alumnet-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type UploadHandler struct {
	s3 *storage.Client
}

func NewUploadHandler(s3 *storage.Client) *UploadHandler {
	return &UploadHandler{s3: s3}
}

// Presign handles POST /uploads. The caller uploads straight to the
// bucket and passes the returned file_url when sending an IMAGE/FILE
// message.
func (h *UploadHandler) Presign(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	if h.s3 == nil {
		c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse("media uploads disabled", "SERVICE_UNAVAILABLE"))
		return
	}
	var req httpdto.PresignUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	key := storage.NewObjectKey(userID, req.FileName)
	uploadURL, headers, err := h.s3.PresignPut(c.Request.Context(), key, req.ContentType, req.SizeBytes)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.PresignUploadResponse{
		UploadURL: uploadURL,
		Headers:   headers,
		FileURL:   h.s3.FileURL(key),
	}))
}
