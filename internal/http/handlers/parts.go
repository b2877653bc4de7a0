package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bomgraph-backend/internal/bom"
	"github.com/yungbote/bomgraph-backend/internal/domain/parts"
	response "github.com/yungbote/bomgraph-backend/internal/http/response"
)

type partDetailResponse struct {
	Part        parts.Part        `json:"part"`
	WhereUsed   []parts.UsageEdge `json:"whereUsed"`
	Occurrences []string          `json:"occurrences"`
}

type rollupResponse struct {
	PartID   string           `json:"partId"`
	Key      string           `json:"key"`
	Lines    []bom.RollupLine `json:"lines"`
	Complete bool             `json:"complete"`
}

type createPartRequest struct {
	parts.Fields
	ParentPartID string        `json:"parentPartId"`
	Quantity     quantityField `json:"quantity"`
}

// GET /api/bom/parts
func (h *BOMHandler) ListParts(c *gin.Context) {
	snap, err := h.svc.Current(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	list := snap.Parts
	if list == nil {
		list = []parts.Part{}
	}
	response.RespondOK(c, gin.H{"version": snap.Version, "parts": list})
}

// GET /api/bom/parts/:id
func (h *BOMHandler) GetPart(c *gin.Context) {
	id := c.Param("id")
	snap, err := h.svc.Current(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	p, ok := snap.Part(id)
	if !ok {
		writeError(c, &bom.NotFoundError{ID: id})
		return
	}
	keys := []string{}
	for _, n := range bom.Occurrences(snap.Hierarchy.Roots, id) {
		keys = append(keys, n.Key)
	}
	response.RespondOK(c, partDetailResponse{
		Part:        p,
		WhereUsed:   bom.WhereUsed(snap.Parts, id),
		Occurrences: keys,
	})
}

// GET /api/bom/parts/:id/rollup[?key=<occurrence>]
func (h *BOMHandler) Rollup(c *gin.Context) {
	id := c.Param("id")
	snap, err := h.svc.Current(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	var node *bom.Node
	if key := strings.TrimSpace(c.Query("key")); key != "" {
		n, ok := bom.Find(snap.Hierarchy.Roots, key)
		if !ok || n.PartID() != id {
			writeError(c, &bom.NotFoundError{Kind: "occurrence", ID: key})
			return
		}
		node = n
	} else if occ := bom.Occurrences(snap.Hierarchy.Roots, id); len(occ) > 0 {
		node = occ[0]
	}
	if node == nil {
		writeError(c, &bom.NotFoundError{ID: id})
		return
	}

	lines, complete := bom.Rollup(node)
	response.RespondOK(c, rollupResponse{PartID: id, Key: node.Key, Lines: lines, Complete: complete})
}

// GET /api/bom/parts/:id/candidates
func (h *BOMHandler) Candidates(c *gin.Context) {
	id := c.Param("id")
	snap, err := h.svc.Current(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if _, ok := snap.Part(id); !ok {
		writeError(c, &bom.NotFoundError{ID: id})
		return
	}
	response.RespondOK(c, gin.H{"partId": id, "candidates": bom.CandidateChildren(snap.Parts, id)})
}

// POST /api/bom/parts
// With parentPartId the new part is linked under that parent.
func (h *BOMHandler) CreatePart(c *gin.Context) {
	var req createPartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	ctx := c.Request.Context()

	parentID := strings.TrimSpace(req.ParentPartID)
	if parentID == "" {
		p, err := h.svc.CreatePart(ctx, req.Fields)
		if err != nil {
			writeError(c, err)
			return
		}
		response.RespondCreated(c, p)
		return
	}

	qty, err := req.Quantity.Int()
	if err != nil {
		writeError(c, err)
		return
	}
	p, err := h.svc.CreateChildPart(ctx, parentID, req.Fields, qty)
	if err != nil {
		writeError(c, err)
		return
	}
	response.RespondCreated(c, p)
}

// PUT /api/bom/parts/:id
func (h *BOMHandler) UpdatePart(c *gin.Context) {
	var fields parts.Fields
	if err := c.ShouldBindJSON(&fields); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	p, err := h.svc.UpdatePart(c.Request.Context(), c.Param("id"), fields)
	if err != nil {
		writeError(c, err)
		return
	}
	response.RespondOK(c, p)
}

// DELETE /api/bom/parts/:id
func (h *BOMHandler) DeletePart(c *gin.Context) {
	if err := h.svc.DeletePart(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
