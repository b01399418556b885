package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"englishmastery/internal/service"
)

func (h HandlerSet) listPosts(c *gin.Context, includeHidden bool) {
	page, perPage, ok := pageParams(c)
	if !ok {
		return
	}
	posts, err := h.posts.List(c.Request.Context(), service.PostListInput{
		UserID:        c.Query("userId"),
		ChallengeID:   c.Query("challengeId"),
		IncludeHidden: includeHidden,
		Page:          page,
		PerPage:       perPage,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, posts)
}

func (h HandlerSet) ListPosts(c *gin.Context) {
	h.listPosts(c, false)
}

func (h HandlerSet) CreatePost(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req service.PostInput
	if !bindJSON(c, &req) {
		return
	}
	post, err := h.posts.Create(c.Request.Context(), user.ID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, post)
}

func (h HandlerSet) LikePost(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.posts.Like(c.Request.Context(), c.Param("id"), user.ID); err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"liked": true})
}

func (h HandlerSet) UnlikePost(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.posts.Unlike(c.Request.Context(), c.Param("id"), user.ID); err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"liked": false})
}

func (h HandlerSet) ListComments(c *gin.Context) {
	page, perPage, ok := pageParams(c)
	if !ok {
		return
	}
	comments, err := h.posts.Comments(c.Request.Context(), c.Param("id"), page, perPage)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, comments)
}

type commentRequest struct {
	Content string `json:"content"`
}

func (h HandlerSet) CreateComment(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req commentRequest
	if !bindJSON(c, &req) {
		return
	}
	comment, err := h.posts.Comment(c.Request.Context(), c.Param("id"), user.ID, req.Content)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, comment)
}
