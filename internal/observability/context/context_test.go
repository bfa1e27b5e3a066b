package obscontext

import (
	"context"
	"testing"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), " req-1 ")
	ctx = WithActor(ctx, "user", "42")

	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("expected trimmed request id, got %q", got)
	}
	actorType, actorID := ActorFromContext(ctx)
	if actorType != "user" || actorID != "42" {
		t.Fatalf("unexpected actor %q/%q", actorType, actorID)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty request id, got %q", got)
	}
}

func TestRouteEntity(t *testing.T) {
	cases := map[string]string{
		"/api/tiers/:id":              "tier_id",
		"/api/tiers/:id/holds":        "tier_id",
		"/api/holds/:id":              "hold_id",
		"/api/tickets/:code/qr.png":   "ticket_code",
		"/api/submissions/:id/review": "submission_id",
		"/api/submissions/ranked":     "",
		"/api/orders":                 "",
		"/api/admin/roles":            "",
		"/metrics":                    "",
		"":                            "",
	}
	for route, want := range cases {
		if got := RouteEntity(route); got != want {
			t.Fatalf("RouteEntity(%q) = %q, want %q", route, got, want)
		}
	}
}
