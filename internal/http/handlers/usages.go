package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	response "github.com/yungbote/bomgraph-backend/internal/http/response"
)

type addUsageRequest struct {
	ParentPartID string        `json:"parentPartId"`
	ChildPartID  string        `json:"childPartId"`
	Quantity     quantityField `json:"quantity"`
}

// POST /api/bom/usages
// Responds with the refreshed parent part.
func (h *BOMHandler) AddUsage(c *gin.Context) {
	var req addUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	parentID := strings.TrimSpace(req.ParentPartID)
	childID := strings.TrimSpace(req.ChildPartID)
	if parentID == "" || childID == "" {
		badRequest(c, "parentPartId and childPartId are required")
		return
	}
	qty, err := req.Quantity.Int()
	if err != nil {
		writeError(c, err)
		return
	}

	parent, err := h.svc.AddChildUsage(c.Request.Context(), parentID, childID, qty)
	if err != nil {
		writeError(c, err)
		return
	}
	response.RespondCreated(c, parent)
}

// DELETE /api/bom/parts/:id/usages/:childId
// Removes every usage of childId under id.
func (h *BOMHandler) RemoveUsage(c *gin.Context) {
	parent, err := h.svc.RemoveChildUsage(c.Request.Context(), c.Param("id"), c.Param("childId"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.RespondOK(c, parent)
}
