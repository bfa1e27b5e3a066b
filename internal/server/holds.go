package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	inventorydomain "github.com/smallbiznis/boxoffice/internal/inventory/domain"
)

type createHoldRequest struct {
	Quantity int32 `json:"quantity"`
}

type holdResponse struct {
	*inventorydomain.TicketHold
	CheckoutTimerSeconds int64 `json:"checkout_timer_seconds"`
}

func (s *Server) CreateHold(c *gin.Context) {
	tierID, err := parseIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req createHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	checkout := s.checkout.Get()
	if req.Quantity > checkout.MaxHoldQuantity {
		AbortWithError(c, newValidationError("quantity", "invalid_quantity", "quantity exceeds the per-hold limit"))
		return
	}

	hold, err := s.inventorySvc.CreateHold(c.Request.Context(), inventorydomain.CreateHoldRequest{
		TierID:      tierID,
		Quantity:    req.Quantity,
		UserID:      optionalUserID(c),
		Fingerprint: fingerprintFromContext(c),
		Duration:    checkout.HoldDuration,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": s.holdResponse(hold)})
}

func (s *Server) GetHold(c *gin.Context) {
	hold, ok := s.loadOwnedHold(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": s.holdResponse(hold)})
}

func (s *Server) ReleaseHold(c *gin.Context) {
	hold, ok := s.loadOwnedHold(c)
	if !ok {
		return
	}

	released, err := s.inventorySvc.ReleaseHold(c.Request.Context(), hold.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !released {
		AbortWithError(c, ErrNotFound)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) loadOwnedHold(c *gin.Context) (*inventorydomain.TicketHold, bool) {
	id, err := parseIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}

	hold, err := s.inventorySvc.GetHold(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	if !ownedBy(c, hold.UserID, hold.Fingerprint) && !s.isStaff(c) {
		// Holds belonging to someone else are reported as missing.
		AbortWithError(c, ErrNotFound)
		return nil, false
	}
	return hold, true
}

func (s *Server) holdResponse(hold *inventorydomain.TicketHold) holdResponse {
	return holdResponse{
		TicketHold:           hold,
		CheckoutTimerSeconds: int64(s.checkout.Get().CheckoutTimer.Seconds()),
	}
}
