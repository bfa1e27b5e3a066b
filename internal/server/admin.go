package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/boxoffice/internal/authorization"
)

type roleAssignmentRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (s *Server) AssignRole(c *gin.Context) {
	req, ok := s.bindRoleAssignment(c)
	if !ok {
		return
	}

	if err := s.authzSvc.AssignRole(c.Request.Context(), req.UserID, req.Role); err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, "role.assign", "user", req.UserID, map[string]any{"role": req.Role})

	s.respondWithRoles(c, req.UserID)
}

func (s *Server) RevokeRole(c *gin.Context) {
	req, ok := s.bindRoleAssignment(c)
	if !ok {
		return
	}

	removed, err := s.authzSvc.RevokeRole(c.Request.Context(), req.UserID, req.Role)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !removed {
		AbortWithError(c, ErrNotFound)
		return
	}
	s.recordAudit(c, "role.revoke", "user", req.UserID, map[string]any{"role": req.Role})

	s.respondWithRoles(c, req.UserID)
}

func (s *Server) bindRoleAssignment(c *gin.Context) (roleAssignmentRequest, bool) {
	if !s.authorize(c, authorization.ObjectRole, authorization.ActionRoleAssign) {
		return roleAssignmentRequest{}, false
	}

	var req roleAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return roleAssignmentRequest{}, false
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.Role = strings.ToLower(strings.TrimSpace(req.Role))
	if req.UserID == "" {
		AbortWithError(c, newValidationError("user_id", "invalid_user_id", "user_id is required"))
		return roleAssignmentRequest{}, false
	}
	return req, true
}

func (s *Server) respondWithRoles(c *gin.Context, userID string) {
	roles, err := s.authzSvc.RolesFor(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"user_id": userID, "roles": roles}})
}
