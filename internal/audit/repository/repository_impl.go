package repository

import (
	"context"

	"github.com/smallbiznis/boxoffice/internal/audit/domain"
	"github.com/smallbiznis/boxoffice/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.Filter, after *pagination.Cursor, limit int) ([]*domain.AuditLog, error) {
	q := db.WithContext(ctx).Model(&domain.AuditLog{})
	for column, value := range map[string]string{
		"action":      filter.Action,
		"target_type": filter.TargetType,
		"target_id":   filter.TargetID,
		"actor_id":    filter.ActorID,
	} {
		if value != "" {
			q = q.Where(column+" = ?", value)
		}
	}
	if filter.StartAt != nil {
		q = q.Where("created_at >= ?", filter.StartAt.UTC())
	}
	if filter.EndAt != nil {
		q = q.Where("created_at <= ?", filter.EndAt.UTC())
	}
	if after != nil {
		q = q.Where("(created_at < ? OR (created_at = ? AND id < ?))", after.CreatedAt, after.CreatedAt, after.ID)
	}

	var logs []*domain.AuditLog
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
