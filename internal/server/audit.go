package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/boxoffice/internal/audit/domain"
	"github.com/smallbiznis/boxoffice/internal/authorization"
	"github.com/smallbiznis/boxoffice/pkg/db/pagination"
	"go.uber.org/zap"
)

// recordAudit writes an audit entry for a privileged change. Failures are
// logged and never fail the request.
func (s *Server) recordAudit(c *gin.Context, action, targetType, targetID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	err := s.auditSvc.Record(c.Request.Context(), auditdomain.Entry{
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   metadata,
	})
	if err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	if !s.authorize(c, authorization.ObjectAudit, authorization.ActionAuditView) {
		return
	}
	if s.auditSvc == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	pageSize, err := parseOptionalInt(c.Query("page_size"), "page_size")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	startAt, err := parseOptionalTime(c.Query("start_at"), "start_at")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	endAt, err := parseOptionalTime(c.Query("end_at"), "end_at")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListAuditLogRequest{
		Filter: auditdomain.Filter{
			Action:     strings.TrimSpace(c.Query("action")),
			TargetType: strings.TrimSpace(c.Query("target_type")),
			TargetID:   strings.TrimSpace(c.Query("target_id")),
			ActorID:    strings.TrimSpace(c.Query("actor_id")),
			StartAt:    startAt,
			EndAt:      endAt,
		},
		Pagination: pagination.Pagination{
			PageToken: c.Query("page_token"),
			PageSize:  pageSize,
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.AuditLogs, "page_info": resp.PageInfo})
}

func parseOptionalTime(value string, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, newValidationError(field, "invalid_"+field, "invalid timestamp")
	}
	return &parsed, nil
}
