package partclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/bomgraph-backend/internal/domain/parts"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func testClient(t *testing.T, fn roundTripperFunc) *Client {
	t.Helper()
	c, err := New(Options{
		BaseURL:    "http://parts.local/",
		APIKey:     "secret",
		Timeout:    2 * time.Second,
		HTTPClient: &http.Client{Transport: fn},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(Options{BaseURL: "  "}); err == nil {
		t.Fatalf("expected error for empty base URL")
	}
}

func TestListParts(t *testing.T) {
	c := testClient(t, func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodGet || req.URL.Path != "/parts" {
			t.Fatalf("unexpected request: %s %s", req.Method, req.URL.Path)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer secret" {
			t.Fatalf("authorization=%q", got)
		}
		return jsonResponse(http.StatusOK, `[
			{"id":"P1","title":"Bolt","childUsages":[]},
			{"id":"P2","title":"Wheel","childUsages":[{"id":"u1","childPartId":"P1","quantity":4}]}
		]`), nil
	})

	list, err := c.ListParts(context.Background())
	if err != nil {
		t.Fatalf("ListParts: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len=%d", len(list))
	}
	if got := list[1].ChildUsages; len(got) != 1 || got[0].ChildPartID != "P1" || got[0].Quantity != 4 || got[0].ID != "u1" {
		t.Fatalf("unexpected usages: %+v", got)
	}
}

func TestListPartsEnvelope(t *testing.T) {
	c := testClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"data":[{"id":"A","title":"A"}]}`), nil
	})

	list, err := c.ListParts(context.Background())
	if err != nil {
		t.Fatalf("ListParts: %v", err)
	}
	if len(list) != 1 || list[0].ID != "A" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestCreateAndUpdatePart(t *testing.T) {
	c := testClient(t, func(req *http.Request) (*http.Response, error) {
		var in parts.Fields
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			t.Fatalf("decode req: %v", err)
		}
		if req.Header.Get("Content-Type") != "application/json" {
			t.Fatalf("content-type=%q", req.Header.Get("Content-Type"))
		}
		switch {
		case req.Method == http.MethodPost && req.URL.Path == "/parts":
			return jsonResponse(http.StatusCreated, `{"id":"new-1","title":"`+in.Title+`","stage":"`+in.Stage+`"}`), nil
		case req.Method == http.MethodPut && req.URL.Path == "/parts/new-1":
			return jsonResponse(http.StatusOK, `{"id":"new-1","title":"`+in.Title+`"}`), nil
		}
		t.Fatalf("unexpected request: %s %s", req.Method, req.URL.Path)
		return nil, nil
	})

	created, err := c.CreatePart(context.Background(), parts.Fields{Title: "Housing", Stage: "design"})
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	if created.ID != "new-1" || created.Title != "Housing" || created.Stage != "design" {
		t.Fatalf("unexpected part: %+v", created)
	}

	updated, err := c.UpdatePart(context.Background(), "new-1", parts.Fields{Title: "Housing v2"})
	if err != nil {
		t.Fatalf("UpdatePart: %v", err)
	}
	if updated.Title != "Housing v2" {
		t.Fatalf("title=%q", updated.Title)
	}
}

func TestUsageEndpoints(t *testing.T) {
	var calls []string
	c := testClient(t, func(req *http.Request) (*http.Response, error) {
		calls = append(calls, req.Method+" "+req.URL.EscapedPath())
		switch req.Method {
		case http.MethodPost:
			var in parts.UsageInput
			if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
				t.Fatalf("decode req: %v", err)
			}
			if in.ParentPartID != "A" || in.ChildPartID != "B" || in.Quantity != 3 {
				t.Fatalf("unexpected usage input: %+v", in)
			}
			return jsonResponse(http.StatusCreated, `{"id":"u9"}`), nil
		case http.MethodDelete:
			return jsonResponse(http.StatusNoContent, ``), nil
		}
		return nil, errors.New("unexpected")
	})

	edge, err := c.AddUsage(context.Background(), parts.UsageInput{ParentPartID: "A", ChildPartID: "B", Quantity: 3})
	if err != nil {
		t.Fatalf("AddUsage: %v", err)
	}
	want := parts.UsageEdge{UsageID: "u9", ParentPartID: "A", ChildPartID: "B", Quantity: 3}
	if edge != want {
		t.Fatalf("edge=%+v want %+v", edge, want)
	}

	if err := c.RemoveUsage(context.Background(), "A", "B/x"); err != nil {
		t.Fatalf("RemoveUsage: %v", err)
	}
	if err := c.DeletePart(context.Background(), "A"); err != nil {
		t.Fatalf("DeletePart: %v", err)
	}

	wantCalls := []string{"POST /parts/usage", "DELETE /parts/A/usage/B%2Fx", "DELETE /parts/A"}
	if strings.Join(calls, "|") != strings.Join(wantCalls, "|") {
		t.Fatalf("calls=%v", calls)
	}
}

func TestHTTPErrorIsTransportError(t *testing.T) {
	c := testClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusConflict, `{"error":{"message":"usage would create a cycle","code":"cycle_detected"}}`), nil
	})

	_, err := c.AddUsage(context.Background(), parts.UsageInput{ParentPartID: "A", ChildPartID: "B", Quantity: 1})
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %T %v", err, err)
	}
	if terr.StatusCode != http.StatusConflict || terr.Code != "cycle_detected" || terr.Op != "add usage" {
		t.Fatalf("unexpected error: %+v", terr)
	}
	if terr.ServerMessage() != "usage would create a cycle" {
		t.Fatalf("message=%q", terr.ServerMessage())
	}
}

func TestFlatErrorEnvelopeAndRawBody(t *testing.T) {
	var n int32
	c := testClient(t, func(req *http.Request) (*http.Response, error) {
		if atomic.AddInt32(&n, 1) == 1 {
			return jsonResponse(http.StatusBadRequest, `{"message":"title is required","code":"validation"}`), nil
		}
		return jsonResponse(http.StatusBadGateway, `upstream exploded`), nil
	})

	_, err := c.CreatePart(context.Background(), parts.Fields{})
	var terr *TransportError
	if !errors.As(err, &terr) || terr.Message != "title is required" || terr.Code != "validation" {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = c.GetPart(context.Background(), "x")
	if !errors.As(err, &terr) || terr.StatusCode != http.StatusBadGateway || terr.Body != "upstream exploded" {
		t.Fatalf("unexpected error: %v", err)
	}
	if terr.ServerMessage() != http.StatusText(http.StatusBadGateway) {
		t.Fatalf("message=%q", terr.ServerMessage())
	}
}

func TestNoRetryOnFailure(t *testing.T) {
	var calls int32
	c := testClient(t, func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return jsonResponse(http.StatusServiceUnavailable, `{}`), nil
	})

	if _, err := c.CreatePart(context.Background(), parts.Fields{Title: "x"}); err == nil {
		t.Fatalf("expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("calls=%d, want exactly one attempt", got)
	}
}

func TestTimeoutSurfacesAsTransportError(t *testing.T) {
	c, err := New(Options{
		BaseURL: "http://parts.local",
		Timeout: 20 * time.Millisecond,
		HTTPClient: &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			<-req.Context().Done()
			return nil, req.Context().Err()
		})},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.ListParts(context.Background())
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %T %v", err, err)
	}
	if terr.StatusCode != 0 || !terr.Timeout() {
		t.Fatalf("unexpected error: %+v", terr)
	}
}

func TestObserverSeesEveryCall(t *testing.T) {
	var seen []string
	c, err := New(Options{
		BaseURL: "http://parts.local",
		HTTPClient: &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusNotFound, `{"message":"no such part"}`), nil
		})},
		Observer: func(op string, status int, _ time.Duration) {
			seen = append(seen, op)
			if status != http.StatusNotFound {
				t.Fatalf("status=%d", status)
			}
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, _ = c.GetPart(context.Background(), "missing")
	if len(seen) != 1 || seen[0] != "get part" {
		t.Fatalf("seen=%v", seen)
	}
}
