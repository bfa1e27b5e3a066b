package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/boxoffice/internal/authorization"
)

const (
	defaultQRSize = 256
	maxQRSize     = 1024
)

func (s *Server) GetTicket(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	resp, err := s.orderSvc.GetTicket(c.Request.Context(), code)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTicketQRCode(c *gin.Context) {
	size, err := parseOptionalInt(c.Query("size"), "size")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if size == 0 {
		size = defaultQRSize
	}
	if size < 64 || size > maxQRSize {
		AbortWithError(c, newValidationError("size", "invalid_size", "size must be between 64 and 1024"))
		return
	}

	code := strings.TrimSpace(c.Param("code"))
	png, err := s.orderSvc.TicketQRCode(c.Request.Context(), code, size)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

func (s *Server) RedeemTicket(c *gin.Context) {
	if !s.authorize(c, authorization.ObjectTicket, authorization.ActionTicketRedeem) {
		return
	}

	code := strings.TrimSpace(c.Param("code"))
	resp, err := s.orderSvc.RedeemTicket(c.Request.Context(), code)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, authorization.ActionTicketRedeem, authorization.ObjectTicket, resp.ID.String(), nil)

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelTicket(c *gin.Context) {
	if !s.authorize(c, authorization.ObjectTicket, authorization.ActionTicketCancel) {
		return
	}

	code := strings.TrimSpace(c.Param("code"))
	resp, err := s.orderSvc.CancelTicket(c.Request.Context(), code)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, authorization.ActionTicketCancel, authorization.ObjectTicket, resp.ID.String(), nil)

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
