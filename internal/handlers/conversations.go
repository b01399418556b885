package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"englishmastery/internal/models"
	"englishmastery/internal/service"
)

func (h HandlerSet) ListConversations(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	summaries, err := h.conversations.ListForUser(c.Request.Context(), user.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, summaries)
}

func (h HandlerSet) StartConversation(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req service.StartConversationInput
	if !bindJSON(c, &req) {
		return
	}
	summary, err := h.conversations.Start(c.Request.Context(), user.ID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, summary)
}

func (h HandlerSet) GetConversation(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	summary, err := h.conversations.Get(c.Request.Context(), c.Param("id"), user.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, summary)
}

func (h HandlerSet) MarkConversationRead(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	at, err := h.conversations.MarkRead(c.Request.Context(), c.Param("id"), user.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"lastReadAt": at.Format(time.RFC3339Nano)})
}

func (h HandlerSet) CloseConversation(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	summary, err := h.conversations.Close(c.Request.Context(), c.Param("id"), user.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, summary)
}

func (h HandlerSet) ListMessages(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}
	page, err := h.messages.Feed(c.Request.Context(), c.Param("id"), user.ID, limit, offset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, page)
}

type sendMessageRequest struct {
	Content  string             `json:"content"`
	Type     models.MessageType `json:"type"`
	MediaURL *string            `json:"mediaUrl"`
}

func (h HandlerSet) SendMessage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req sendMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.messages.Send(c.Request.Context(), service.SendMessageInput{
		ConversationID: c.Param("id"),
		SenderID:       user.ID,
		Content:        req.Content,
		Type:           req.Type,
		MediaURL:       req.MediaURL,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, msg)
}
