package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"englishmastery/internal/models"
	"englishmastery/internal/service"
)

func (h HandlerSet) ListChallenges(c *gin.Context) {
	page, perPage, ok := pageParams(c)
	if !ok {
		return
	}
	list, err := h.challenges.List(c.Request.Context(), service.ChallengeListInput{
		Type:       models.ChallengeType(c.Query("type")),
		Difficulty: models.Difficulty(c.Query("difficulty")),
		Page:       page,
		PerPage:    perPage,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, list)
}

func (h HandlerSet) GetChallenge(c *gin.Context) {
	challenge, err := h.challenges.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, challenge)
}

// bindChallenge accepts JSON, or a multipart form whose "file" part is the
// challenge video.
func (h HandlerSet) bindChallenge(c *gin.Context, ownerID string) (service.ChallengeInput, bool) {
	var input service.ChallengeInput
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		if !bindJSON(c, &input) {
			return input, false
		}
		return input, true
	}

	stored, ok := h.storeUpload(c, ownerID, service.MediaChallenge)
	if !ok {
		return input, false
	}
	input.Title = c.PostForm("title")
	input.Description = c.PostForm("description")
	input.Difficulty = models.Difficulty(c.PostForm("difficulty"))
	input.Type = models.ChallengeType(c.PostForm("type"))
	if raw := c.PostForm("durationSeconds"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, "durationSeconds must be an integer")
			return input, false
		}
		input.DurationSeconds = d
	}
	input.VideoURL = stored.URL
	input.UploadedKey = stored.Key
	return input, true
}

func (h HandlerSet) CreateChallenge(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	input, ok := h.bindChallenge(c, user.ID)
	if !ok {
		return
	}
	challenge, err := h.challenges.CreateUserGenerated(c.Request.Context(), user.ID, input)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, challenge)
}

func (h HandlerSet) DeleteChallenge(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.challenges.Delete(c.Request.Context(), c.Param("id"), user.ID); err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": c.Param("id")})
}

func (h HandlerSet) AdminCreateChallenge(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	input, ok := h.bindChallenge(c, user.ID)
	if !ok {
		return
	}
	challenge, err := h.challenges.Create(c.Request.Context(), user.ID, input)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, challenge)
}

type activeRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func (h HandlerSet) AdminSetChallengeActive(c *gin.Context) {
	var req activeRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.challenges.SetActive(c.Request.Context(), c.Param("id"), *req.Active); err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": c.Param("id"), "active": *req.Active})
}
