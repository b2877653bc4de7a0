package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bomgraph-backend/internal/bom"
	"github.com/yungbote/bomgraph-backend/internal/http/middleware"
	response "github.com/yungbote/bomgraph-backend/internal/http/response"
	"github.com/yungbote/bomgraph-backend/internal/platform/ctxutil"
)

type selectionResponse struct {
	Key  *string   `json:"key"`
	Node *bom.Node `json:"node,omitempty"`
}

func sessionID(c *gin.Context) string {
	if td := ctxutil.GetTraceData(c.Request.Context()); td != nil && td.SessionID != "" {
		return td.SessionID
	}
	return strings.TrimSpace(c.GetHeader(middleware.HeaderSessionID))
}

func requireSession(c *gin.Context) (string, bool) {
	s := sessionID(c)
	if s == "" {
		badRequest(c, middleware.HeaderSessionID+" header is required")
		return "", false
	}
	return s, true
}

// GET /api/bom/selection
func (h *BOMHandler) GetSelection(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	snap, err := h.svc.Current(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	n, found := h.selection.Resolve(session, snap.Hierarchy.Roots)
	if !found {
		response.RespondOK(c, selectionResponse{})
		return
	}
	key := n.Key
	response.RespondOK(c, selectionResponse{Key: &key, Node: n})
}

// PUT /api/bom/selection
func (h *BOMHandler) PutSelection(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	var req struct {
		Key string `json:"key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Key) == "" {
		badRequest(c, "key is required")
		return
	}
	snap, err := h.svc.Current(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	n, err := h.selection.Select(session, snap.Hierarchy.Roots, req.Key)
	if err != nil {
		writeError(c, err)
		return
	}
	key := n.Key
	response.RespondOK(c, selectionResponse{Key: &key, Node: n})
}

// DELETE /api/bom/selection
func (h *BOMHandler) DeleteSelection(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	h.selection.Clear(session)
	c.Status(http.StatusNoContent)
}
