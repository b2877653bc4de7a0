package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bomgraph-backend/internal/bom"
	"github.com/yungbote/bomgraph-backend/internal/bom/coordinator"
	"github.com/yungbote/bomgraph-backend/internal/domain/parts"
	httpH "github.com/yungbote/bomgraph-backend/internal/http/handlers"
	"github.com/yungbote/bomgraph-backend/internal/observability"
	"github.com/yungbote/bomgraph-backend/internal/partclient"
	"github.com/yungbote/bomgraph-backend/internal/partclient/partfake"
)

type testEnv struct {
	store  *partfake.Store
	router *gin.Engine
}

// newTestEnv wires the router to a real Part service client talking to an
// in-memory Part service over HTTP.
func newTestEnv(t *testing.T, seed ...parts.Part) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := partfake.New(seed...)
	upstream := httptest.NewServer(store.Handler())
	t.Cleanup(upstream.Close)

	client, err := partclient.New(partclient.Options{BaseURL: upstream.URL, HTTPClient: upstream.Client()})
	if err != nil {
		t.Fatalf("partclient.New: %v", err)
	}
	coord, err := coordinator.New(nil, client, coordinator.Options{})
	if err != nil {
		t.Fatalf("coordinator.New: %v", err)
	}
	router := NewRouter(RouterConfig{
		Metrics:       observability.NewMetrics(),
		BOMHandler:    httpH.NewBOMHandler(nil, coord, bom.NewSelection()),
		HealthHandler: httpH.NewHealthHandler(),
	})
	return &testEnv{store: store, router: router}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			if err := json.NewEncoder(&buf).Encode(b); err != nil {
				t.Fatalf("encode: %v", err)
			}
		}
	}
	req := httptest.NewRequest(method, path, &buf).WithContext(context.Background())
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createPart(t *testing.T, title string) parts.Part {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/bom/parts", map[string]any{"title": title})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create %s: status=%d body=%s", title, rec.Code, rec.Body.String())
	}
	var p parts.Part
	decode(t, rec, &p)
	return p
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

type errorBody struct {
	Error struct {
		Message string         `json:"message"`
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func seedCar() []parts.Part {
	return []parts.Part{
		{ID: "CAR", Title: "Car", ChildUsages: []parts.ChildUsage{
			{ID: "u1", ChildPartID: "WHEEL", Quantity: 4},
			{ID: "u2", ChildPartID: "FRAME", Quantity: 1},
		}},
		{ID: "WHEEL", Title: "Wheel", ChildUsages: []parts.ChildUsage{{ID: "u3", ChildPartID: "BOLT", Quantity: 5}}},
		{ID: "FRAME", Title: "Frame", ChildUsages: []parts.ChildUsage{{ID: "u4", ChildPartID: "BOLT", Quantity: 20}}},
		{ID: "BOLT", Title: "Bolt"},
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodGet, "/healthcheck", nil); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthcheck: %d %q", rec.Code, rec.Body.String())
	}
	rec := env.do(t, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "bomd_http_requests_total") {
		t.Fatalf("metrics: %d", rec.Code)
	}
}

func TestGetHierarchy(t *testing.T) {
	env := newTestEnv(t, seedCar()...)

	rec := env.do(t, http.MethodGet, "/api/bom/hierarchy", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Version uint64 `json:"version"`
		Roots   []struct {
			Key      string  `json:"key"`
			UsageID  *string `json:"usageId"`
			Children []struct {
				Key      string `json:"key"`
				Quantity int    `json:"quantity"`
				Children []struct {
					Key      string `json:"key"`
					Quantity int    `json:"quantity"`
				} `json:"children"`
			} `json:"children"`
		} `json:"roots"`
		Dangling []any `json:"dangling"`
	}
	decode(t, rec, &body)

	if body.Version != 1 || len(body.Roots) != 1 || body.Roots[0].Key != "CAR" || body.Roots[0].UsageID != nil {
		t.Fatalf("roots=%+v", body.Roots)
	}
	kids := body.Roots[0].Children
	if len(kids) != 2 || kids[0].Quantity != 4 || kids[1].Quantity != 1 {
		t.Fatalf("children=%+v", kids)
	}
	if kids[0].Children[0].Key != "CAR/u1/u3" || kids[1].Children[0].Key != "CAR/u2/u4" {
		t.Fatalf("bolt occurrences=%+v %+v", kids[0].Children, kids[1].Children)
	}
	if body.Dangling == nil {
		t.Fatalf("dangling must be an empty list, not null")
	}
}

func TestGetHierarchyFlatView(t *testing.T) {
	env := newTestEnv(t, seedCar()...)

	rec := env.do(t, http.MethodGet, "/api/bom/hierarchy?view=flat", nil)
	var body struct {
		Rows []bom.Row `json:"rows"`
	}
	decode(t, rec, &body)
	if len(body.Rows) != 5 || body.Rows[2].Key != "CAR/u1/u3" || body.Rows[2].Depth != 2 {
		t.Fatalf("rows=%+v", body.Rows)
	}
}

func TestAddUsage(t *testing.T) {
	env := newTestEnv(t, seedCar()...)
	nut := env.createPart(t, "Nut")

	rec := env.do(t, http.MethodPost, "/api/bom/usages", `{"parentPartId":"FRAME","childPartId":"`+nut.ID+`","quantity":3}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var parent parts.Part
	decode(t, rec, &parent)
	if parent.ID != "FRAME" || len(parent.ChildUsages) != 2 || parent.ChildUsages[1].Quantity != 3 {
		t.Fatalf("parent=%+v", parent)
	}
}

func TestAddUsageDefaultsQuantityToOne(t *testing.T) {
	env := newTestEnv(t, seedCar()...)
	nut := env.createPart(t, "Nut")

	rec := env.do(t, http.MethodPost, "/api/bom/usages", `{"parentPartId":"FRAME","childPartId":"`+nut.ID+`"}`)
	var parent parts.Part
	decode(t, rec, &parent)
	if rec.Code != http.StatusCreated || parent.ChildUsages[1].Quantity != 1 {
		t.Fatalf("status=%d parent=%+v", rec.Code, parent)
	}
}

func TestAddUsageRejectsBadQuantity(t *testing.T) {
	env := newTestEnv(t, seedCar()...)

	for _, q := range []string{"0", "-1", "2.5", `"many"`} {
		rec := env.do(t, http.MethodPost, "/api/bom/usages", `{"parentPartId":"FRAME","childPartId":"BOLT","quantity":`+q+`}`)
		var body errorBody
		decode(t, rec, &body)
		if rec.Code != http.StatusUnprocessableEntity || body.Error.Code != "invalid_quantity" {
			t.Fatalf("quantity %s: status=%d body=%+v", q, rec.Code, body)
		}
	}
	if n := env.store.Calls(partfake.OpAddUsage); n != 0 {
		t.Fatalf("add usage calls=%d", n)
	}
}

func TestAddUsageCycle(t *testing.T) {
	env := newTestEnv(t, seedCar()...)

	rec := env.do(t, http.MethodPost, "/api/bom/usages", map[string]any{"parentPartId": "BOLT", "childPartId": "CAR", "quantity": 1})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var body errorBody
	decode(t, rec, &body)
	if body.Error.Code != "cycle_detected" {
		t.Fatalf("code=%q", body.Error.Code)
	}
	path, _ := body.Error.Details["path"].([]any)
	if len(path) < 3 || path[0] != "BOLT" || path[len(path)-1] != "BOLT" {
		t.Fatalf("path=%v", body.Error.Details["path"])
	}
	if n := env.store.Calls(partfake.OpAddUsage); n != 0 {
		t.Fatalf("add usage calls=%d", n)
	}
}

func TestUpstreamFailureIsReported(t *testing.T) {
	env := newTestEnv(t, seedCar()...)
	env.do(t, http.MethodGet, "/api/bom/hierarchy", nil)
	env.store.FailNext(partfake.OpRemoveUsage, &partclient.TransportError{
		StatusCode: http.StatusServiceUnavailable,
		Code:       "maintenance",
		Message:    "parts database is read-only",
	})

	rec := env.do(t, http.MethodDelete, "/api/bom/parts/CAR/usages/WHEEL", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var body errorBody
	decode(t, rec, &body)
	if body.Error.Code != "upstream_error" || body.Error.Message != "Failed to remove usage: parts database is read-only" {
		t.Fatalf("error=%+v", body.Error)
	}
}

func TestRemoveUsage(t *testing.T) {
	env := newTestEnv(t, seedCar()...)

	rec := env.do(t, http.MethodDelete, "/api/bom/parts/CAR/usages/WHEEL", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var parent parts.Part
	decode(t, rec, &parent)
	if len(parent.ChildUsages) != 1 || parent.ChildUsages[0].ChildPartID != "FRAME" {
		t.Fatalf("parent=%+v", parent)
	}

	rec = env.do(t, http.MethodDelete, "/api/bom/parts/CAR/usages/WHEEL", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second removal status=%d", rec.Code)
	}
}

func TestCreateChildPartAndOrphan(t *testing.T) {
	env := newTestEnv(t, seedCar()...)

	rec := env.do(t, http.MethodPost, "/api/bom/parts", map[string]any{"title": "Washer", "parentPartId": "WHEEL", "quantity": 2})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var created parts.Part
	decode(t, rec, &created)

	rec = env.do(t, http.MethodGet, "/api/bom/parts/"+created.ID, nil)
	var detail struct {
		WhereUsed   []parts.UsageEdge `json:"whereUsed"`
		Occurrences []string          `json:"occurrences"`
	}
	decode(t, rec, &detail)
	if len(detail.WhereUsed) != 1 || detail.WhereUsed[0].ParentPartID != "WHEEL" || detail.WhereUsed[0].Quantity != 2 {
		t.Fatalf("whereUsed=%+v", detail.WhereUsed)
	}
	if len(detail.Occurrences) != 1 || !strings.HasPrefix(detail.Occurrences[0], "CAR/u1/") {
		t.Fatalf("occurrences=%v", detail.Occurrences)
	}

	env.store.FailNext(partfake.OpAddUsage, &partclient.TransportError{StatusCode: http.StatusInternalServerError, Message: "boom"})
	rec = env.do(t, http.MethodPost, "/api/bom/parts", map[string]any{"title": "Clip", "parentPartId": "WHEEL"})
	var body errorBody
	decode(t, rec, &body)
	if rec.Code != http.StatusBadGateway || body.Error.Code != "orphaned_part" {
		t.Fatalf("status=%d body=%+v", rec.Code, body)
	}
	if orphan, _ := body.Error.Details["part"].(map[string]any); orphan["title"] != "Clip" {
		t.Fatalf("orphan detail=%v", body.Error.Details)
	}
}

func TestCreatePartValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/bom/parts", map[string]any{"description": "no title"})
	var body errorBody
	decode(t, rec, &body)
	if rec.Code != http.StatusBadRequest || body.Error.Code != "validation_error" {
		t.Fatalf("status=%d body=%+v", rec.Code, body)
	}

	rec = env.do(t, http.MethodPost, "/api/bom/parts", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json status=%d", rec.Code)
	}
}

func TestUpdateAndDeletePart(t *testing.T) {
	env := newTestEnv(t, seedCar()...)

	rec := env.do(t, http.MethodPut, "/api/bom/parts/BOLT", map[string]any{"title": "M6 Bolt", "stage": "released"})
	var p parts.Part
	decode(t, rec, &p)
	if rec.Code != http.StatusOK || p.Title != "M6 Bolt" || p.Stage != "released" {
		t.Fatalf("status=%d part=%+v", rec.Code, p)
	}

	if rec := env.do(t, http.MethodDelete, "/api/bom/parts/FRAME", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodGet, "/api/bom/parts/FRAME", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted status=%d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/api/bom/parts/FRAME", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRollupAndCandidates(t *testing.T) {
	env := newTestEnv(t, seedCar()...)

	rec := env.do(t, http.MethodGet, "/api/bom/parts/CAR/rollup", nil)
	var rollup struct {
		Lines    []bom.RollupLine `json:"lines"`
		Complete bool             `json:"complete"`
	}
	decode(t, rec, &rollup)
	want := map[string]int{"BOLT": 40, "FRAME": 1, "WHEEL": 4}
	if len(rollup.Lines) != 3 || !rollup.Complete {
		t.Fatalf("rollup=%+v", rollup)
	}
	for _, l := range rollup.Lines {
		if want[l.PartID] != l.Quantity {
			t.Fatalf("line %+v", l)
		}
	}

	rec = env.do(t, http.MethodGet, "/api/bom/parts/WHEEL/candidates", nil)
	var cand struct {
		Candidates []string `json:"candidates"`
	}
	decode(t, rec, &cand)
	if strings.Join(cand.Candidates, ",") != "FRAME,BOLT" {
		t.Fatalf("candidates=%v", cand.Candidates)
	}
}

func TestSelectionSurvivesRebuild(t *testing.T) {
	env := newTestEnv(t, seedCar()...)
	session := []string{"X-Session-Id", "s-1"}

	rec := env.do(t, http.MethodPut, "/api/bom/selection", map[string]any{"key": "CAR/u2/u4"}, session...)
	if rec.Code != http.StatusOK {
		t.Fatalf("select status=%d body=%s", rec.Code, rec.Body.String())
	}

	env.do(t, http.MethodPost, "/api/bom/refresh", nil)

	rec = env.do(t, http.MethodGet, "/api/bom/selection", nil, session...)
	var sel struct {
		Key  *string `json:"key"`
		Node struct {
			Quantity int `json:"quantity"`
		} `json:"node"`
	}
	decode(t, rec, &sel)
	if sel.Key == nil || *sel.Key != "CAR/u2/u4" || sel.Node.Quantity != 20 {
		t.Fatalf("selection=%+v", sel)
	}

	env.do(t, http.MethodDelete, "/api/bom/parts/CAR/usages/FRAME", nil)
	rec = env.do(t, http.MethodGet, "/api/bom/selection", nil, session...)
	sel.Key = nil
	decode(t, rec, &sel)
	if sel.Key != nil {
		t.Fatalf("stale selection kept: %v", *sel.Key)
	}

	if rec := env.do(t, http.MethodPut, "/api/bom/selection", map[string]any{"key": "CAR/nope"}, session...); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown key status=%d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/bom/selection", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing session status=%d", rec.Code)
	}
}
