package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/boxoffice/internal/audit/domain"
	"github.com/smallbiznis/boxoffice/internal/clock"
	obscontext "github.com/smallbiznis/boxoffice/internal/observability/context"
	"github.com/smallbiznis/boxoffice/internal/observability/logger"
	"github.com/smallbiznis/boxoffice/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 250
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// Record stores entry attributed to the context actor, or to the system when
// the context carries none.
func (s *Service) Record(ctx context.Context, entry auditdomain.Entry) error {
	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}

	row := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		ActorType:  string(auditdomain.ActorTypeSystem),
		Action:     action,
		TargetType: strings.TrimSpace(entry.TargetType),
		TargetID:   optional(entry.TargetID),
		Metadata:   datatypes.JSONMap{},
		CreatedAt:  s.clock.Now().UTC(),
	}
	if row.TargetType == "" {
		row.TargetType = "unknown"
	}
	if actorType, actorID := obscontext.ActorFromContext(ctx); actorType != "" {
		row.ActorType = actorType
		row.ActorID = optional(actorID)
	}
	client := auditdomain.ClientFromContext(ctx)
	row.IPAddress = optional(client.IPAddress)
	row.UserAgent = optional(client.UserAgent)

	for k, v := range entry.Metadata {
		if k != "" {
			row.Metadata[k] = v
		}
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		row.Metadata["request_id"] = requestID
	}

	if err := s.repo.Insert(ctx, s.db, &row); err != nil {
		logger.WithContext(ctx, s.log).Warn("audit insert failed",
			zap.String("action", action),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidTimeRange
	}
	after, err := pagination.DecodeCursor(req.PageToken)
	if errors.Is(err, pagination.ErrInvalidToken) || (after != nil && after.CreatedAt.IsZero()) {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
	}

	size := req.Size(defaultPageSize, maxPageSize)
	rows, err := s.repo.List(ctx, s.db, req.Filter, after, size+1)
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}
	rows, info := pagination.Page(rows, size, func(row *auditdomain.AuditLog) pagination.Cursor {
		return pagination.Cursor{ID: row.ID, CreatedAt: row.CreatedAt}
	})

	logs := make([]auditdomain.AuditLog, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, *row)
	}
	return auditdomain.ListAuditLogResponse{AuditLogs: logs, PageInfo: info}, nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
