package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/boxoffice/internal/authorization"
	inventorydomain "github.com/smallbiznis/boxoffice/internal/inventory/domain"
)

type increaseCapacityRequest struct {
	Delta int32 `json:"delta"`
}

func (s *Server) CreateTier(c *gin.Context) {
	if !s.authorize(c, authorization.ObjectTier, authorization.ActionTierCreate) {
		return
	}

	var req inventorydomain.CreateTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req.EventID = strings.TrimSpace(req.EventID)
	req.Name = strings.TrimSpace(req.Name)
	req.Currency = strings.TrimSpace(req.Currency)

	resp, err := s.inventorySvc.CreateTier(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, authorization.ActionTierCreate, authorization.ObjectTier, resp.ID.String(), map[string]any{
		"event_id":      resp.EventID.String(),
		"total_tickets": resp.TotalTickets,
	})

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetTierSummary(c *gin.Context) {
	id, err := parseIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.inventorySvc.GetTierSummary(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListEventTiers(c *gin.Context) {
	eventID, err := parseIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.inventorySvc.ListEventTierSummaries(c.Request.Context(), eventID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) IncreaseCapacity(c *gin.Context) {
	if !s.authorize(c, authorization.ObjectTier, authorization.ActionTierCapacity) {
		return
	}

	id, err := parseIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req increaseCapacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.inventorySvc.IncreaseCapacity(c.Request.Context(), id, req.Delta)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, authorization.ActionTierCapacity, authorization.ObjectTier, id.String(), map[string]any{
		"delta":         req.Delta,
		"total_tickets": resp.TotalTickets,
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTierDrift(c *gin.Context) {
	if !s.authorize(c, authorization.ObjectInventory, authorization.ActionInventoryView) {
		return
	}

	id, err := parseIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.inventorySvc.DiffTierInventory(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ReconcileTier(c *gin.Context) {
	if !s.authorize(c, authorization.ObjectInventory, authorization.ActionInventoryReconcile) {
		return
	}

	id, err := parseIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.inventorySvc.RecalculateTierInventory(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, authorization.ActionInventoryReconcile, authorization.ObjectInventory, id.String(), nil)

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
