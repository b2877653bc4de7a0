package handlers

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bomgraph-backend/internal/bom"
	"github.com/yungbote/bomgraph-backend/internal/bom/coordinator"
	"github.com/yungbote/bomgraph-backend/internal/domain/parts"
	"github.com/yungbote/bomgraph-backend/internal/platform/logger"
)

// BOMService is the slice of the coordinator the handlers use.
type BOMService interface {
	Current(ctx context.Context) (*coordinator.Snapshot, error)
	Refresh(ctx context.Context) (*coordinator.Snapshot, error)
	AddChildUsage(ctx context.Context, parentID, childID string, quantity int) (parts.Part, error)
	RemoveChildUsage(ctx context.Context, parentID, childID string) (parts.Part, error)
	CreatePart(ctx context.Context, fields parts.Fields) (parts.Part, error)
	CreateChildPart(ctx context.Context, parentID string, fields parts.Fields, quantity int) (parts.Part, error)
	UpdatePart(ctx context.Context, id string, fields parts.Fields) (parts.Part, error)
	DeletePart(ctx context.Context, id string) error
}

type BOMHandler struct {
	log       *logger.Logger
	svc       BOMService
	selection *bom.Selection
}

func NewBOMHandler(log *logger.Logger, svc BOMService, selection *bom.Selection) *BOMHandler {
	if log == nil {
		log = logger.NewNop()
	}
	if selection == nil {
		selection = bom.NewSelection()
	}
	return &BOMHandler{
		log:       log.With("handler", "BOMHandler"),
		svc:       svc,
		selection: selection,
	}
}

type hierarchyResponse struct {
	Version     uint64                  `json:"version"`
	LoadedAt    time.Time               `json:"loadedAt"`
	Roots       []*bom.Node             `json:"roots,omitempty"`
	Rows        []bom.Row               `json:"rows,omitempty"`
	Dangling    []bom.DanglingReference `json:"dangling"`
	Truncated   []string                `json:"truncated"`
	Unreachable []string                `json:"unreachable"`
	SelectedKey *string                 `json:"selectedKey,omitempty"`
}

func (h *BOMHandler) hierarchyView(c *gin.Context, snap *coordinator.Snapshot) hierarchyResponse {
	res := hierarchyResponse{
		Version:     snap.Version,
		LoadedAt:    snap.LoadedAt,
		Dangling:    snap.Hierarchy.Dangling,
		Truncated:   snap.Hierarchy.Truncated,
		Unreachable: snap.Hierarchy.Unreachable,
	}
	if strings.EqualFold(c.Query("view"), "flat") {
		res.Rows = bom.Flatten(snap.Hierarchy.Roots)
	} else {
		res.Roots = snap.Hierarchy.Roots
		if res.Roots == nil {
			res.Roots = []*bom.Node{}
		}
	}
	if session := sessionID(c); session != "" {
		if n, ok := h.selection.Resolve(session, snap.Hierarchy.Roots); ok {
			key := n.Key
			res.SelectedKey = &key
		}
	}
	return res
}

// quantityField accepts a JSON number or numeric string. Absent means 1.
type quantityField struct {
	raw json.RawMessage
}

func (q *quantityField) UnmarshalJSON(b []byte) error {
	q.raw = append(q.raw[:0], b...)
	return nil
}

func (q quantityField) Int() (int, error) {
	s := strings.TrimSpace(string(q.raw))
	if s == "" || s == "null" {
		return 1, nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &bom.InvalidQuantityError{Raw: s}
	}
	if err := bom.ValidateQuantity(n); err != nil {
		return 0, err
	}
	return n, nil
}
