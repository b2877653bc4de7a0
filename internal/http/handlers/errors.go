package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bomgraph-backend/internal/bom"
	response "github.com/yungbote/bomgraph-backend/internal/http/response"
	"github.com/yungbote/bomgraph-backend/internal/partclient"
	"github.com/yungbote/bomgraph-backend/internal/platform/apierr"
)

// classify maps engine and transport errors onto HTTP statuses and codes.
// Wrapping errors are checked first, since orphan and remote cycle errors
// also unwrap to a transport error.
func classify(err error) *apierr.Error {
	var (
		ae      *apierr.Error
		orphan  *bom.OrphanedPartError
		cycle   *bom.CycleError
		qty     *bom.InvalidQuantityError
		invalid *bom.ValidationError
		missing *bom.NotFoundError
		te      *partclient.TransportError
	)
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.As(err, &orphan):
		return apierr.New(http.StatusBadGateway, "orphaned_part", orphan).WithDetail("part", orphan.Part)
	case errors.As(err, &cycle):
		out := apierr.New(http.StatusConflict, "cycle_detected", cycle)
		if len(cycle.Path) > 0 {
			out.WithDetail("path", cycle.Path)
		}
		return out
	case errors.As(err, &qty):
		return apierr.New(http.StatusUnprocessableEntity, "invalid_quantity", qty)
	case errors.As(err, &invalid):
		return apierr.New(http.StatusBadRequest, "validation_error", invalid)
	case errors.As(err, &missing):
		return apierr.New(http.StatusNotFound, "not_found", missing)
	case errors.As(err, &te):
		out := apierr.New(http.StatusBadGateway, "upstream_error", te)
		out.Message = fmt.Sprintf("Failed to %s: %s", te.Op, te.ServerMessage())
		if te.StatusCode > 0 {
			out.WithDetail("upstreamStatus", te.StatusCode)
		}
		if te.Timeout() {
			out.WithDetail("timeout", true)
		}
		return out
	case errors.Is(err, context.DeadlineExceeded):
		return apierr.New(http.StatusGatewayTimeout, "timeout", err)
	default:
		return apierr.New(http.StatusInternalServerError, "internal", err)
	}
}

func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	response.RespondAPIError(c, classify(err))
}

func badRequest(c *gin.Context, msg string) {
	writeError(c, &bom.ValidationError{Message: msg})
}
