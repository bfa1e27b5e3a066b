package authorization

import (
	"context"
	"errors"
)

type Service interface {
	// Authorize returns ErrForbidden when actor may not perform action on object.
	Authorize(ctx context.Context, actor string, object string, action string) error
	AssignRole(ctx context.Context, userID string, role string) error
	RevokeRole(ctx context.Context, userID string, role string) (bool, error)
	RolesFor(ctx context.Context, userID string) ([]string, error)
	// IsStaff reports whether the user holds staff or a role that inherits it.
	IsStaff(ctx context.Context, userID string) (bool, error)
}

const (
	RoleAdmin    = "admin"
	RoleStaff    = "staff"
	RoleReviewer = "reviewer"
)

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrInvalidRole   = errors.New("invalid_role")
)
