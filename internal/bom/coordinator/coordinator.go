// Package coordinator runs every BOM mutation: validate against the current
// snapshot, write through the Part service, then rebuild the whole forest
// from the authoritative part list.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/yungbote/bomgraph-backend/internal/bom"
	"github.com/yungbote/bomgraph-backend/internal/domain/parts"
	"github.com/yungbote/bomgraph-backend/internal/observability"
	"github.com/yungbote/bomgraph-backend/internal/partclient"
	"github.com/yungbote/bomgraph-backend/internal/platform/ctxutil"
	"github.com/yungbote/bomgraph-backend/internal/platform/logger"
	"github.com/yungbote/bomgraph-backend/internal/realtime/bus"
)

// PartRepository is the Part service as the coordinator sees it.
// *partclient.Client implements it.
type PartRepository interface {
	ListParts(ctx context.Context) ([]parts.Part, error)
	GetPart(ctx context.Context, id string) (parts.Part, error)
	CreatePart(ctx context.Context, fields parts.Fields) (parts.Part, error)
	UpdatePart(ctx context.Context, id string, fields parts.Fields) (parts.Part, error)
	DeletePart(ctx context.Context, id string) error
	AddUsage(ctx context.Context, in parts.UsageInput) (parts.UsageEdge, error)
	RemoveUsage(ctx context.Context, parentID, childID string) error
}

// Publisher receives a change event after each successful mutation.
type Publisher interface {
	Publish(ctx context.Context, ev bus.Event) error
}

const (
	OpAddUsage        = "add_usage"
	OpRemoveUsage     = "remove_usage"
	OpCreatePart      = "create_part"
	OpCreateChildPart = "create_child_part"
	OpUpdatePart      = "update_part"
	OpDeletePart      = "delete_part"
)

type Options struct {
	MaxDepth int
	// RefreshBeforeValidate reloads the part list right before the cycle
	// check instead of trusting the held snapshot.
	RefreshBeforeValidate bool

	InstanceID string
	Publisher  Publisher
	Metrics    *observability.Metrics
}

// Snapshot is one immutable build of the forest. Callers must not modify
// anything reachable from it.
type Snapshot struct {
	Version   uint64
	Parts     []parts.Part
	Hierarchy bom.Result
	LoadedAt  time.Time

	byID map[string]parts.Part
}

func (s *Snapshot) Part(id string) (parts.Part, bool) {
	if s == nil {
		return parts.Part{}, false
	}
	p, ok := s.byID[id]
	return p, ok
}

type Coordinator struct {
	log  *logger.Logger
	repo PartRepository
	opts Options

	// mu serializes mutations.
	mu sync.Mutex

	snapMu     sync.RWMutex
	snap       *Snapshot
	appliedSeq uint64

	loadSeq atomic.Uint64
	sf      singleflight.Group
}

func New(log *logger.Logger, repo PartRepository, opts Options) (*Coordinator, error) {
	if repo == nil {
		return nil, errors.New("coordinator: part repository required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = bom.DefaultMaxDepth
	}
	return &Coordinator{
		log:  log.With("component", "BomCoordinator"),
		repo: repo,
		opts: opts,
	}, nil
}

// Snapshot returns the last built snapshot, or nil before the first load.
func (c *Coordinator) Snapshot() *Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap
}

// Current returns the held snapshot, loading it on first use.
func (c *Coordinator) Current(ctx context.Context) (*Snapshot, error) {
	if s := c.Snapshot(); s != nil {
		return s, nil
	}
	return c.Refresh(ctx)
}

// Refresh reloads the part list and rebuilds the forest. Concurrent calls
// share one upstream request.
func (c *Coordinator) Refresh(ctx context.Context) (*Snapshot, error) {
	v, err, _ := c.sf.Do("refresh", func() (interface{}, error) {
		return c.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// load always hits the Part service. A load that finishes after a newer one
// has been applied returns the newer snapshot and is discarded.
func (c *Coordinator) load(ctx context.Context) (*Snapshot, error) {
	seq := c.loadSeq.Add(1)

	ctx, span := observability.StartSpan(ctx, "bom.Refresh")
	defer span.End()

	list, err := c.repo.ListParts(ctx)
	if err != nil {
		endSpan(span, err)
		return nil, err
	}

	start := time.Now()
	res := bom.Build(list, bom.Options{MaxDepth: c.opts.MaxDepth})
	elapsed := time.Since(start)
	c.opts.Metrics.ObserveBuild(len(list), len(res.Dangling), len(res.Truncated), elapsed)

	log := c.log.With(ctxutil.LogFields(ctx)...)
	for _, d := range res.Dangling {
		log.Warn("usage references missing part; edge skipped",
			"parent_part_id", d.ParentPartID,
			"child_part_id", d.ChildPartID,
			"usage_id", d.UsageID,
		)
	}
	if len(res.Truncated) > 0 {
		log.Warn("hierarchy contains cycles; subtrees truncated",
			"truncated", len(res.Truncated),
			"unreachable", res.Unreachable,
		)
	}

	next := &Snapshot{
		Parts:     list,
		Hierarchy: res,
		LoadedAt:  time.Now().UTC(),
		byID:      parts.Index(list),
	}

	c.snapMu.Lock()
	defer c.snapMu.Unlock()
	if c.snap != nil && seq < c.appliedSeq {
		return c.snap, nil
	}
	if c.snap != nil {
		next.Version = c.snap.Version + 1
	} else {
		next.Version = 1
	}
	c.snap = next
	c.appliedSeq = seq

	span.SetAttributes(
		attribute.Int("bom.parts", len(list)),
		attribute.Int("bom.roots", len(res.Roots)),
		attribute.Int64("bom.version", int64(next.Version)),
	)
	log.Debug("hierarchy rebuilt",
		"version", next.Version,
		"parts", len(list),
		"roots", len(res.Roots),
		"build_ms", elapsed.Milliseconds(),
	)
	return next, nil
}

// AddChildUsage adds one usage of childID under parentID and returns the
// refreshed parent. A would-be cycle is rejected before any network call.
func (c *Coordinator) AddChildUsage(ctx context.Context, parentID, childID string, quantity int) (p parts.Part, err error) {
	ctx, done := c.begin(ctx, OpAddUsage,
		attribute.String("bom.parent_id", parentID),
		attribute.String("bom.child_id", childID),
		attribute.Int("bom.quantity", quantity),
	)
	defer func() { done(err) }()

	if err := bom.ValidateQuantity(quantity); err != nil {
		return parts.Part{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	snap, err := c.validationSnapshot(ctx)
	if err != nil {
		return parts.Part{}, err
	}
	if _, ok := snap.Part(parentID); !ok {
		return parts.Part{}, &bom.NotFoundError{ID: parentID}
	}
	if _, ok := snap.Part(childID); !ok {
		return parts.Part{}, &bom.NotFoundError{ID: childID}
	}
	if err := bom.CanAddUsage(snap.Parts, parentID, childID); err != nil {
		return parts.Part{}, err
	}

	edge, err := c.repo.AddUsage(ctx, parts.UsageInput{
		ParentPartID: parentID,
		ChildPartID:  childID,
		Quantity:     quantity,
	})
	if err != nil {
		return parts.Part{}, fmt.Errorf("add usage %s -> %s: %w", parentID, childID, classify(err, parentID, childID, true))
	}

	next, err := c.afterMutation(ctx, OpAddUsage, parentID, childID)
	if err != nil {
		return parts.Part{}, err
	}
	c.log.Info("usage added", append(ctxutil.LogFields(ctx),
		"usage_id", edge.UsageID, "parent_part_id", parentID, "child_part_id", childID, "quantity", quantity)...)
	return refreshedPart(next, parentID)
}

// RemoveChildUsage removes every usage edge from parentID to childID.
func (c *Coordinator) RemoveChildUsage(ctx context.Context, parentID, childID string) (p parts.Part, err error) {
	ctx, done := c.begin(ctx, OpRemoveUsage,
		attribute.String("bom.parent_id", parentID),
		attribute.String("bom.child_id", childID),
	)
	defer func() { done(err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	snap, err := c.Current(ctx)
	if err != nil {
		return parts.Part{}, err
	}
	parent, ok := snap.Part(parentID)
	if !ok {
		return parts.Part{}, &bom.NotFoundError{ID: parentID}
	}
	if len(parent.UsagesOf(childID)) == 0 {
		return parts.Part{}, &bom.NotFoundError{Kind: "usage", ID: parentID + " -> " + childID}
	}

	if err := c.repo.RemoveUsage(ctx, parentID, childID); err != nil {
		return parts.Part{}, fmt.Errorf("remove usage %s -> %s: %w", parentID, childID, classify(err, parentID, childID, false))
	}

	next, err := c.afterMutation(ctx, OpRemoveUsage, parentID, childID)
	if err != nil {
		return parts.Part{}, err
	}
	c.log.Info("usage removed", append(ctxutil.LogFields(ctx), "parent_part_id", parentID, "child_part_id", childID)...)
	return refreshedPart(next, parentID)
}

// CreatePart creates a standalone part, which shows up as a new root.
func (c *Coordinator) CreatePart(ctx context.Context, fields parts.Fields) (p parts.Part, err error) {
	ctx, done := c.begin(ctx, OpCreatePart)
	defer func() { done(err) }()

	fields = fields.Normalize()
	if err := bom.ValidateFields(fields); err != nil {
		return parts.Part{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	created, err := c.repo.CreatePart(ctx, fields)
	if err != nil {
		return parts.Part{}, fmt.Errorf("create part: %w", err)
	}

	next, err := c.afterMutation(ctx, OpCreatePart, created.ID, "")
	if err != nil {
		return parts.Part{}, err
	}
	c.log.Info("part created", append(ctxutil.LogFields(ctx), "part_id", created.ID)...)
	if p, ok := next.Part(created.ID); ok {
		return p.Clone(), nil
	}
	return created, nil
}

// CreateChildPart creates a part and links it under parentID. The two writes
// are not atomic: when the link fails the new part is left in place and an
// *bom.OrphanedPartError carrying it is returned.
func (c *Coordinator) CreateChildPart(ctx context.Context, parentID string, fields parts.Fields, quantity int) (p parts.Part, err error) {
	ctx, done := c.begin(ctx, OpCreateChildPart,
		attribute.String("bom.parent_id", parentID),
		attribute.Int("bom.quantity", quantity),
	)
	defer func() { done(err) }()

	fields = fields.Normalize()
	if err := bom.ValidateFields(fields); err != nil {
		return parts.Part{}, err
	}
	if err := bom.ValidateQuantity(quantity); err != nil {
		return parts.Part{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	snap, err := c.Current(ctx)
	if err != nil {
		return parts.Part{}, err
	}
	if _, ok := snap.Part(parentID); !ok {
		return parts.Part{}, &bom.NotFoundError{ID: parentID}
	}

	created, err := c.repo.CreatePart(ctx, fields)
	if err != nil {
		return parts.Part{}, fmt.Errorf("create part: %w", err)
	}

	if _, err := c.repo.AddUsage(ctx, parts.UsageInput{
		ParentPartID: parentID,
		ChildPartID:  created.ID,
		Quantity:     quantity,
	}); err != nil {
		c.log.Error("part created but usage edge failed",
			append(ctxutil.LogFields(ctx), "part_id", created.ID, "parent_part_id", parentID, "error", err)...)
		return parts.Part{}, &bom.OrphanedPartError{
			Part:     created,
			ParentID: parentID,
			Err:      classify(err, parentID, created.ID, true),
		}
	}

	next, err := c.afterMutation(ctx, OpCreateChildPart, parentID, created.ID)
	if err != nil {
		return parts.Part{}, err
	}
	c.log.Info("child part created", append(ctxutil.LogFields(ctx), "part_id", created.ID, "parent_part_id", parentID)...)
	if p, ok := next.Part(created.ID); ok {
		return p.Clone(), nil
	}
	return created, nil
}

// UpdatePart replaces a part's descriptive fields. Usages are untouched.
func (c *Coordinator) UpdatePart(ctx context.Context, id string, fields parts.Fields) (p parts.Part, err error) {
	ctx, done := c.begin(ctx, OpUpdatePart, attribute.String("bom.part_id", id))
	defer func() { done(err) }()

	fields = fields.Normalize()
	if err := bom.ValidateFields(fields); err != nil {
		return parts.Part{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	updated, err := c.repo.UpdatePart(ctx, id, fields)
	if err != nil {
		return parts.Part{}, fmt.Errorf("update part %s: %w", id, classify(err, id, "", false))
	}

	next, err := c.afterMutation(ctx, OpUpdatePart, id, "")
	if err != nil {
		return parts.Part{}, err
	}
	if p, ok := next.Part(id); ok {
		return p.Clone(), nil
	}
	return updated, nil
}

// DeletePart deletes a part. Edges pointing at it are left to the Part
// service; any it keeps show up as dangling references on the next build.
func (c *Coordinator) DeletePart(ctx context.Context, id string) (err error) {
	ctx, done := c.begin(ctx, OpDeletePart, attribute.String("bom.part_id", id))
	defer func() { done(err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.repo.DeletePart(ctx, id); err != nil {
		return fmt.Errorf("delete part %s: %w", id, classify(err, id, "", false))
	}
	if _, err := c.afterMutation(ctx, OpDeletePart, id, ""); err != nil {
		return err
	}
	c.log.Info("part deleted", append(ctxutil.LogFields(ctx), "part_id", id)...)
	return nil
}

func (c *Coordinator) validationSnapshot(ctx context.Context) (*Snapshot, error) {
	if c.opts.RefreshBeforeValidate {
		return c.load(ctx)
	}
	return c.Current(ctx)
}

// afterMutation rebuilds from the Part service and announces the change.
// It bypasses singleflight so it never reuses a list fetched before the write.
func (c *Coordinator) afterMutation(ctx context.Context, op, partID, childID string) (*Snapshot, error) {
	next, err := c.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh after %s: %w", op, err)
	}
	if c.opts.Publisher != nil {
		ev := bus.Event{
			Type:    bus.EventPartsChanged,
			Op:      op,
			PartID:  partID,
			ChildID: childID,
			Origin:  c.opts.InstanceID,
			Version: next.Version,
			At:      time.Now().UTC(),
		}
		if err := c.opts.Publisher.Publish(ctx, ev); err != nil {
			c.log.Warn("publish change event failed", append(ctxutil.LogFields(ctx), "op", op, "error", err)...)
		}
	}
	return next, nil
}

func (c *Coordinator) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "bom."+op, attrs...)
	return ctx, func(err error) {
		out := Outcome(err)
		c.opts.Metrics.ObserveMutation(op, out, time.Since(start))
		span.SetAttributes(attribute.String("bom.outcome", out))
		endSpan(span, err)
		if err != nil {
			c.log.Debug("mutation rejected", append(ctxutil.LogFields(ctx), "op", op, "outcome", out, "error", err)...)
		}
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func refreshedPart(s *Snapshot, id string) (parts.Part, error) {
	p, ok := s.Part(id)
	if !ok {
		return parts.Part{}, &bom.NotFoundError{ID: id}
	}
	return p.Clone(), nil
}

// classify turns Part service rejections the engine understands into engine
// errors. The transport error stays reachable through Unwrap.
func classify(err error, id, childID string, addingUsage bool) error {
	var te *partclient.TransportError
	if !errors.As(err, &te) {
		return err
	}
	if strings.EqualFold(te.Code, "cycle_detected") || (addingUsage && te.StatusCode == 409) {
		return &bom.CycleError{Parent: id, Child: childID, Remote: true, Err: err}
	}
	if te.StatusCode == 404 {
		if childID != "" {
			return &bom.NotFoundError{Kind: "usage", ID: id + " -> " + childID, Err: err}
		}
		return &bom.NotFoundError{ID: id, Err: err}
	}
	return err
}

// Outcome names the class of a mutation result for metrics and logs.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var (
		orphan  *bom.OrphanedPartError
		cycle   *bom.CycleError
		qty     *bom.InvalidQuantityError
		invalid *bom.ValidationError
		missing *bom.NotFoundError
		te      *partclient.TransportError
	)
	switch {
	case errors.As(err, &orphan):
		return "orphaned_part"
	case errors.As(err, &cycle):
		return "cycle"
	case errors.As(err, &qty):
		return "invalid_quantity"
	case errors.As(err, &invalid):
		return "validation"
	case errors.As(err, &missing):
		return "not_found"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &te):
		return "transport"
	default:
		return "error"
	}
}
