package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/smallbiznis/boxoffice/internal/order/domain"
)

func (s *Server) CreateOrder(c *gin.Context) {
	var req orderdomain.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.UserID = optionalUserID(c)
	req.Fingerprint = fingerprintFromContext(c)

	resp, err := s.orderSvc.CreateOrder(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetOrder(c *gin.Context) {
	view, ok := s.loadOwnedOrder(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (s *Server) GetOrderTicketsPDF(c *gin.Context) {
	view, ok := s.loadOwnedOrder(c)
	if !ok {
		return
	}

	pdf, err := s.orderSvc.OrderTicketsPDF(c.Request.Context(), view.Order.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", "inline; filename=\"tickets-"+view.Order.ID.String()+".pdf\"")
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (s *Server) loadOwnedOrder(c *gin.Context) (*orderdomain.OrderView, bool) {
	id, err := parseIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}

	view, err := s.orderSvc.GetOrder(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	if !ownedBy(c, view.Order.UserID, view.Order.Fingerprint) && !s.isStaff(c) {
		AbortWithError(c, ErrNotFound)
		return nil, false
	}
	return view, true
}
