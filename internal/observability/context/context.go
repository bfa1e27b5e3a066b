package obscontext

import (
	"context"
	"strings"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	actorTypeKey ctxKey = "actor_type"
	actorIDKey   ctxKey = "actor_id"
)

// WithRequestID stores the request correlation id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// WithActor stores who is acting on the request, e.g. ("user", "42") or ("system", "scheduler").
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	ctx = context.WithValue(ctx, actorTypeKey, strings.TrimSpace(actorType))
	return context.WithValue(ctx, actorIDKey, strings.TrimSpace(actorID))
}

func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	actorType, _ := ctx.Value(actorTypeKey).(string)
	actorID, _ := ctx.Value(actorIDKey).(string)
	return actorType, actorID
}

var routeEntities = map[string]string{
	"tiers":       "tier_id",
	"holds":       "hold_id",
	"events":      "event_id",
	"orders":      "order_id",
	"tickets":     "ticket_code",
	"submissions": "submission_id",
	"artists":     "artist_id",
	"venues":      "venue_id",
}

// RouteEntity returns the log/span field for the resource addressed by a
// route such as "/api/tiers/:id/holds", or "" for collection routes.
func RouteEntity(route string) string {
	parts := strings.Split(strings.Trim(route, "/"), "/")
	if len(parts) < 3 || parts[0] != "api" || !strings.HasPrefix(parts[2], ":") {
		return ""
	}
	return routeEntities[parts[1]]
}
