package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"englishmastery/internal/media/sniffer"
	"englishmastery/internal/service"
)

// storeUpload reads the "file" form part and stores it for purpose.
func (h HandlerSet) storeUpload(c *gin.Context, ownerID string, purpose service.MediaPurpose) (service.StoredMedia, bool) {
	if limit := h.cfg.Storage.MaxUploadSize; limit > 0 {
		// Multipart framing adds a little on top of the file itself.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+1<<20)
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, "file is required")
		return service.StoredMedia{}, false
	}
	defer file.Close()

	stored, err := h.media.Upload(c.Request.Context(), service.UploadInput{
		OwnerID:  ownerID,
		Purpose:  purpose,
		File:     file,
		Size:     header.Size,
		Declared: sniffer.MimeTypeFromHTTP(http.Header(header.Header)),
	})
	if err != nil {
		h.writeError(c, err)
		return service.StoredMedia{}, false
	}
	return stored, true
}

func (h HandlerSet) UploadMedia(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	stored, ok := h.storeUpload(c, user.ID, service.MediaPost)
	if !ok {
		return
	}
	respond(c, http.StatusCreated, stored)
}
