package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"englishmastery/internal/service"
)

func (h HandlerSet) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	view, err := h.users.Get(c.Request.Context(), user.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, view)
}

func (h HandlerSet) GetProfile(c *gin.Context) {
	h.Me(c)
}

func (h HandlerSet) UpdateProfile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req service.ProfileInput
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.users.UpdateProfile(c.Request.Context(), user.ID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, view)
}

func (h HandlerSet) UploadAvatar(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	stored, ok := h.storeUpload(c, user.ID, service.MediaAvatar)
	if !ok {
		return
	}
	view, err := h.users.SetAvatar(c.Request.Context(), user.ID, stored.URL)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, view)
}
