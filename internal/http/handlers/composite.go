package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/pawpal/composite-service/internal/composite"
	"github.com/pawpal/composite-service/internal/http/middleware"
	"github.com/pawpal/composite-service/internal/http/response"
	"github.com/pawpal/composite-service/internal/platform/logger"
	"github.com/pawpal/composite-service/internal/upstream"
)

type CompositeHandler struct {
	agg *composite.Aggregator
	log *logger.Logger
}

func NewCompositeHandler(log *logger.Logger, agg *composite.Aggregator) *CompositeHandler {
	return &CompositeHandler{agg: agg, log: log.With("handler", "composite")}
}

// GET /api/composite/principals/:id/dependents
func (h *CompositeHandler) GetPrincipalWithDependents(c *gin.Context) {
	result, err := h.agg.GetPrincipalWithDependents(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Err(c, err)
		return
	}
	response.OK(c, result)
}

// GET /api/composite/principals/:id/complete
func (h *CompositeHandler) GetPrincipalComplete(c *gin.Context) {
	result, err := h.agg.GetPrincipalComplete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Err(c, err)
		return
	}
	response.OK(c, result)
}

// GET /api/composite/principals?<filters>
func (h *CompositeHandler) ListPrincipals(c *gin.Context) {
	filters := map[string]string{}
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			filters[key] = values[0]
		}
	}
	entries, err := h.agg.ListPrincipalsWithDependents(c.Request.Context(), filters)
	if err != nil {
		response.Err(c, err)
		return
	}
	response.List(c, len(entries), entries)
}

// POST /api/composite/dependents (runs behind ValidateOwner)
func (h *CompositeHandler) CreateDependent(c *gin.Context) {
	created, err := h.agg.CreateDependent(c.Request.Context(), boundPayload(c))
	if err != nil {
		response.Err(c, err)
		return
	}
	response.Created(c, created)
}

// PUT /api/composite/dependents/:id (runs behind ValidateOwnerIfPresent)
func (h *CompositeHandler) UpdateDependent(c *gin.Context) {
	updated, err := h.agg.UpdateDependent(c.Request.Context(), c.Param("id"), boundPayload(c))
	if err != nil {
		response.Err(c, err)
		return
	}
	response.OK(c, updated)
}

// DELETE /api/composite/principals/:id (runs behind ValidatePrincipalExists)
func (h *CompositeHandler) DeletePrincipalCascade(c *gin.Context) {
	result, err := h.agg.DeletePrincipalCascade(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Err(c, err)
		return
	}
	response.OK(c, result)
}

// GET /api/composite/stats
func (h *CompositeHandler) GetStats(c *gin.Context) {
	stats, err := h.agg.GetAggregateStats(c.Request.Context())
	if err != nil {
		response.Err(c, err)
		return
	}
	response.OK(c, stats)
}

// boundPayload returns the body the guard middleware already parsed.
func boundPayload(c *gin.Context) upstream.Record {
	if v, ok := c.Get(middleware.ContextKeyPayload); ok {
		if payload, ok := v.(upstream.Record); ok {
			return payload
		}
	}
	return upstream.Record{}
}
