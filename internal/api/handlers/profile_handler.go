package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/nutricoach/internal/services"
)

type ProfileHandler struct {
	svc services.ProfileService
}

func NewProfileHandler(svc services.ProfileService) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

// GET /admin/profiles/:chat_id
func (h *ProfileHandler) Get(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	p, err := h.svc.Get(c.Request.Context(), chatID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"profile":  p,
		"complete": p.Complete(),
	})
}

// DELETE /admin/profiles/:chat_id
func (h *ProfileHandler) Delete(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), chatID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /admin/profiles/:chat_id/menus?limit=N
func (h *ProfileHandler) Menus(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	rows, err := h.svc.Menus(c.Request.Context(), chatID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"menus": rows})
}

// GET /admin/menus/:id
func (h *ProfileHandler) Menu(c *gin.Context) {
	row, err := h.svc.Menu(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}
