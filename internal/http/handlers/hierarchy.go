package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	response "github.com/yungbote/bomgraph-backend/internal/http/response"
)

// GET /api/bom/hierarchy[?refresh=true][&view=flat]
func (h *BOMHandler) GetHierarchy(c *gin.Context) {
	ctx := c.Request.Context()
	refresh, _ := strconv.ParseBool(c.DefaultQuery("refresh", "false"))

	snap, err := h.svc.Current(ctx)
	if err == nil && refresh {
		snap, err = h.svc.Refresh(ctx)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	response.RespondOK(c, h.hierarchyView(c, snap))
}

// POST /api/bom/refresh
func (h *BOMHandler) Refresh(c *gin.Context) {
	snap, err := h.svc.Refresh(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	response.RespondOK(c, h.hierarchyView(c, snap))
}
