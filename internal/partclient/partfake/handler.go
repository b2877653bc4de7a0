package partfake

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bomgraph-backend/internal/domain/parts"
	"github.com/yungbote/bomgraph-backend/internal/partclient"
)

// Handler serves the store over the Part service's REST contract. Errors
// are written in the {"error":{"message","code"}} envelope.
func (s *Store) Handler() http.Handler {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	r.GET("/parts", func(c *gin.Context) {
		list, err := s.ListParts(c.Request.Context())
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	})
	r.GET("/parts/:id", func(c *gin.Context) {
		p, err := s.GetPart(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	})
	r.POST("/parts", func(c *gin.Context) {
		var f parts.Fields
		if err := c.ShouldBindJSON(&f); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error(), "code": "bad_request"}})
			return
		}
		p, err := s.CreatePart(c.Request.Context(), f)
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, p)
	})
	r.PUT("/parts/:id", func(c *gin.Context) {
		var f parts.Fields
		if err := c.ShouldBindJSON(&f); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error(), "code": "bad_request"}})
			return
		}
		p, err := s.UpdatePart(c.Request.Context(), c.Param("id"), f)
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	})
	r.DELETE("/parts/:id", func(c *gin.Context) {
		if err := s.DeletePart(c.Request.Context(), c.Param("id")); err != nil {
			writeErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
	r.POST("/parts/usage", func(c *gin.Context) {
		var in parts.UsageInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error(), "code": "bad_request"}})
			return
		}
		edge, err := s.AddUsage(c.Request.Context(), in)
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"id":           edge.UsageID,
			"parentPartId": edge.ParentPartID,
			"childPartId":  edge.ChildPartID,
			"quantity":     edge.Quantity,
		})
	})
	r.DELETE("/parts/:id/usage/:childId", func(c *gin.Context) {
		if err := s.RemoveUsage(c.Request.Context(), c.Param("id"), c.Param("childId")); err != nil {
			writeErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
	return r
}

func writeErr(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal"
	var te *partclient.TransportError
	if errors.As(err, &te) && te.StatusCode > 0 {
		status, code = te.StatusCode, te.Code
	}
	msg := err.Error()
	if te != nil && te.Message != "" {
		msg = te.Message
	}
	c.JSON(status, gin.H{"error": gin.H{"message": msg, "code": code}})
}
