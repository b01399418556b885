package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CronDailyRefresh runs the refresh inline so the caller sees the outcome.
func (h HandlerSet) CronDailyRefresh(c *gin.Context) {
	result, err := h.daily.Refresh(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}
