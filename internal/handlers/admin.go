package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"englishmastery/internal/models"
	"englishmastery/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func adminUserFilter(c *gin.Context) (service.AdminUserFilter, bool) {
	page, perPage, ok := pageParams(c)
	if !ok {
		return service.AdminUserFilter{}, false
	}
	filter := service.AdminUserFilter{
		Role:    models.UserRole(c.Query("role")),
		Status:  models.UserStatus(c.Query("status")),
		Page:    page,
		PerPage: perPage,
	}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, "active must be a boolean")
			return service.AdminUserFilter{}, false
		}
		filter.IsActive = &active
	}
	return filter, true
}

func (h HandlerSet) AdminListUsers(c *gin.Context) {
	filter, ok := adminUserFilter(c)
	if !ok {
		return
	}
	users, err := h.admin.ListUsers(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, users)
}

func (h HandlerSet) AdminExportUsers(c *gin.Context) {
	filter, ok := adminUserFilter(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	n, err := h.admin.ExportUsers(c.Request.Context(), filter, &buf)
	if err != nil {
		h.writeError(c, err)
		return
	}

	name := fmt.Sprintf("users-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Header("X-Total-Count", strconv.Itoa(n))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h HandlerSet) AdminApproveUser(c *gin.Context) {
	if err := h.admin.Approve(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": c.Param("id"), "status": models.UserStatusApproved})
}

func (h HandlerSet) AdminRejectUser(c *gin.Context) {
	if err := h.admin.Reject(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": c.Param("id"), "status": models.UserStatusRejected})
}

type roleRequest struct {
	Role models.UserRole `json:"role" binding:"required"`
}

func (h HandlerSet) AdminChangeRole(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	var req roleRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.admin.ChangeRole(c.Request.Context(), actor.ID, c.Param("id"), req.Role); err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": c.Param("id"), "role": req.Role})
}

func (h HandlerSet) AdminSetActive(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	var req activeRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.admin.SetActive(c.Request.Context(), actor.ID, c.Param("id"), *req.Active); err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": c.Param("id"), "active": *req.Active})
}

func (h HandlerSet) AdminListPosts(c *gin.Context) {
	h.listPosts(c, true)
}

type hiddenRequest struct {
	Hidden *bool `json:"hidden" binding:"required"`
}

func (h HandlerSet) AdminSetPostHidden(c *gin.Context) {
	var req hiddenRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.posts.SetHidden(c.Request.Context(), c.Param("id"), *req.Hidden); err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": c.Param("id"), "hidden": *req.Hidden})
}

func (h HandlerSet) AdminTriggerDailyRefresh(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.admin.TriggerDailyRefresh(c.Request.Context(), actor.ID); err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusAccepted, gin.H{"queued": true})
}
