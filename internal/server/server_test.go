package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	auditrepo "github.com/smallbiznis/boxoffice/internal/audit/repository"
	auditservice "github.com/smallbiznis/boxoffice/internal/audit/service"
	"github.com/smallbiznis/boxoffice/internal/authorization"
	"github.com/smallbiznis/boxoffice/internal/clock"
	"github.com/smallbiznis/boxoffice/internal/config"
	inventoryrepo "github.com/smallbiznis/boxoffice/internal/inventory/repository"
	inventoryservice "github.com/smallbiznis/boxoffice/internal/inventory/service"
	"github.com/smallbiznis/boxoffice/internal/migration"
	"github.com/smallbiznis/boxoffice/internal/observability"
	orderdomain "github.com/smallbiznis/boxoffice/internal/order/domain"
	orderrepo "github.com/smallbiznis/boxoffice/internal/order/repository"
	orderservice "github.com/smallbiznis/boxoffice/internal/order/service"
	paymentdomain "github.com/smallbiznis/boxoffice/internal/payment/domain"
	screeningrepo "github.com/smallbiznis/boxoffice/internal/screening/repository"
	screeningservice "github.com/smallbiznis/boxoffice/internal/screening/service"
	"github.com/smallbiznis/boxoffice/internal/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

type stubPayments struct {
	err      error
	outcome  paymentdomain.IngestOutcome
	provider string
	payload  []byte
}

func (s *stubPayments) IngestWebhook(_ context.Context, provider string, payload []byte, _ http.Header) (paymentdomain.IngestOutcome, error) {
	s.provider = provider
	s.payload = payload
	if s.err != nil {
		return "", s.err
	}
	if s.outcome == "" {
		return paymentdomain.OutcomeProcessed, nil
	}
	return s.outcome, nil
}

type testEnv struct {
	server   *Server
	authz    authorization.Service
	orders   orderdomain.Service
	payments *stubPayments
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:server_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migration.Migrate(db))
	_, err = seed.EnsureScreeningConfig(db)
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 5, 10, 19, 0, 0, 0, time.UTC))
	checkout := config.NewStaticCheckoutConfigHolder(config.CheckoutConfig{
		HoldDuration:    540 * time.Second,
		CheckoutTimer:   600 * time.Second,
		MaxHoldQuantity: 8,
	})

	enforcer, err := authorization.NewEnforcer(db)
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{DB: db, Log: zap.NewNop(), Enforcer: enforcer})
	ctx := context.Background()
	require.NoError(t, authz.AssignRole(ctx, "admin-1", authorization.RoleAdmin))
	require.NoError(t, authz.AssignRole(ctx, "staff-1", authorization.RoleStaff))
	require.NoError(t, authz.AssignRole(ctx, "reviewer-1", authorization.RoleReviewer))

	inventory := inventoryservice.New(inventoryservice.Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Repo:     inventoryrepo.Provide(),
		Checkout: checkout,
	})
	orders := orderservice.New(orderservice.Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Repo:      orderrepo.Provide(),
		Inventory: inventory,
	})
	screening := screeningservice.New(screeningservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  screeningrepo.Provide(),
	})
	payments := &stubPayments{}
	audits := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  auditrepo.Provide(),
	})

	srv := NewServer(ServerParams{
		Gin:          NewEngine(observability.Config{}, nil),
		Cfg:          config.Config{},
		Log:          zap.NewNop(),
		Checkout:     checkout,
		AuthzSvc:     authz,
		AuditSvc:     audits,
		InventorySvc: inventory,
		OrderSvc:     orders,
		ScreeningSvc: screening,
		PaymentSvc:   payments,
	})

	return &testEnv{server: srv, authz: authz, orders: orders, payments: payments}
}

type requestOpts struct {
	userID      string
	fingerprint string
}

func (e *testEnv) do(t *testing.T, method, path string, body any, opts requestOpts) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if opts.userID != "" {
		req.Header.Set(HeaderUserID, opts.userID)
	}
	if opts.fingerprint != "" {
		req.Header.Set(HeaderFingerprint, opts.fingerprint)
	}
	w := httptest.NewRecorder()
	e.server.Engine().ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Data
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Error
}

func (e *testEnv) createTier(t *testing.T, total int32) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/tiers", inventoryTierBody(total), requestOpts{userID: "admin-1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeData(t, w)["id"].(string)
}

func inventoryTierBody(total int32) map[string]any {
	return map[string]any{
		"event_id":      "1001",
		"name":          "General Admission",
		"total_tickets": total,
		"price_cents":   2500,
		"currency":      "usd",
	}
}

func TestCreateTierRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/tiers", inventoryTierBody(10), requestOpts{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/tiers", inventoryTierBody(10), requestOpts{userID: "staff-1"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/api/tiers", inventoryTierBody(10), requestOpts{userID: "admin-1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := decodeData(t, w)
	assert.Equal(t, "USD", data["currency"])
	assert.EqualValues(t, 10, data["available_inventory"])
}

func TestCreateTierValidation(t *testing.T) {
	env := newTestEnv(t)

	body := inventoryTierBody(10)
	body["name"] = "  "
	w := env.do(t, http.MethodPost, "/api/tiers", body, requestOpts{userID: "admin-1"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	payload := decodeError(t, w)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_name", payload.Errors[0].Code)
	assert.Equal(t, "name", payload.Errors[0].Field)
}

func TestHoldLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	tierID := env.createTier(t, 5)
	buyer := requestOpts{fingerprint: "device-a"}

	w := env.do(t, http.MethodPost, "/api/tiers/"+tierID+"/holds", map[string]any{"quantity": 2}, buyer)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	hold := decodeData(t, w)
	holdID := hold["id"].(string)
	assert.EqualValues(t, 600, hold["checkout_timer_seconds"])
	assert.EqualValues(t, 2, hold["quantity"])

	w = env.do(t, http.MethodGet, "/api/tiers/"+tierID, nil, requestOpts{})
	require.Equal(t, http.StatusOK, w.Code)
	summary := decodeData(t, w)
	assert.EqualValues(t, 3, summary["available"])
	assert.EqualValues(t, 2, summary["reserved"])

	w = env.do(t, http.MethodGet, "/api/holds/"+holdID, nil, requestOpts{fingerprint: "device-b"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/holds/"+holdID, nil, buyer)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodDelete, "/api/holds/"+holdID, nil, buyer)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodDelete, "/api/holds/"+holdID, nil, buyer)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/tiers/"+tierID, nil, requestOpts{})
	summary = decodeData(t, w)
	assert.EqualValues(t, 5, summary["available"])
	assert.EqualValues(t, 0, summary["reserved"])
}

func TestCreateHoldInsufficientInventory(t *testing.T) {
	env := newTestEnv(t)
	tierID := env.createTier(t, 3)

	w := env.do(t, http.MethodPost, "/api/tiers/"+tierID+"/holds", map[string]any{"quantity": 4}, requestOpts{fingerprint: "device-a"})
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	payload := decodeError(t, w)
	assert.Equal(t, "insufficient_inventory", payload.Type)
	assert.EqualValues(t, 4, payload.Details["requested"])
	assert.EqualValues(t, 3, payload.Details["available"])
}

func TestCreateHoldRejectsQuantityAboveLimit(t *testing.T) {
	env := newTestEnv(t)
	tierID := env.createTier(t, 50)

	w := env.do(t, http.MethodPost, "/api/tiers/"+tierID+"/holds", map[string]any{"quantity": 9}, requestOpts{fingerprint: "device-a"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_quantity", decodeError(t, w).Errors[0].Code)
}

func TestInvalidIDParam(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/tiers/not-a-number", nil, requestOpts{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_id", decodeError(t, w).Errors[0].Code)
}

func TestUnknownRouteReturnsJSONNotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/nowhere", nil, requestOpts{})
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeError(t, w).Type)
}

func TestOrderTicketRedemptionFlow(t *testing.T) {
	env := newTestEnv(t)
	tierID := env.createTier(t, 10)
	buyer := requestOpts{userID: "buyer-1"}

	w := env.do(t, http.MethodPost, "/api/tiers/"+tierID+"/holds", map[string]any{"quantity": 2}, buyer)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	holdID := decodeData(t, w)["id"].(string)

	w = env.do(t, http.MethodPost, "/api/orders", map[string]any{
		"hold_ids": []string{holdID},
		"email":    "fan@example.com",
	}, buyer)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decodeData(t, w)["order"].(map[string]any)
	orderID := order["id"].(string)
	assert.Equal(t, "pending", order["status"])
	assert.EqualValues(t, 5000, order["total_cents"])

	w = env.do(t, http.MethodGet, "/api/orders/"+orderID, nil, requestOpts{userID: "someone-else"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	parsedOrderID, err := snowflake.ParseString(orderID)
	require.NoError(t, err)
	view, err := env.orders.ConfirmPayment(context.Background(), orderdomain.ConfirmPaymentRequest{
		OrderID:           parsedOrderID,
		AmountCents:       5000,
		Currency:          "USD",
		Provider:          "stripe",
		ProviderPaymentID: "pi_123",
	})
	require.NoError(t, err)
	require.Len(t, view.Tickets, 2)
	code := view.Tickets[0].Code

	w = env.do(t, http.MethodGet, "/api/tickets/"+code+"/qr.png", nil, requestOpts{})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	w = env.do(t, http.MethodPost, "/api/tickets/"+code+"/redeem", nil, buyer)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/api/tickets/"+code+"/redeem", nil, requestOpts{userID: "staff-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "used", decodeData(t, w)["status"])

	w = env.do(t, http.MethodPost, "/api/tickets/"+code+"/redeem", nil, requestOpts{userID: "staff-1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodGet, "/api/orders/"+orderID+"/tickets.pdf", nil, buyer)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
}

func TestScreeningReviewPermissions(t *testing.T) {
	env := newTestEnv(t)
	artist := requestOpts{userID: "artist-1"}

	w := env.do(t, http.MethodPost, "/api/submissions", map[string]any{
		"artist_id":     "2001",
		"recording_url": "https://example.com/demo.mp3",
		"context":       map[string]any{"type": "general"},
	}, artist)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	submissionID := decodeData(t, w)["id"].(string)

	review := map[string]any{"rating": 8, "listen_duration_seconds": 120}
	w = env.do(t, http.MethodPost, "/api/submissions/"+submissionID+"/reviews", review, artist)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/api/submissions/"+submissionID+"/reviews", map[string]any{"rating": 11, "listen_duration_seconds": 120}, requestOpts{userID: "reviewer-1"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_rating", decodeError(t, w).Errors[0].Code)

	w = env.do(t, http.MethodPost, "/api/submissions/"+submissionID+"/reviews", review, requestOpts{userID: "reviewer-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/submissions/"+submissionID+"/decision", map[string]any{"decision": "approved"}, requestOpts{userID: "reviewer-1"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/api/submissions/"+submissionID+"/decision", map[string]any{"decision": "approved"}, requestOpts{userID: "staff-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "approved", decodeData(t, w)["status"])

	w = env.do(t, http.MethodPost, "/api/submissions/"+submissionID+"/decision", map[string]any{"decision": "rejected"}, requestOpts{userID: "staff-1"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpdateSubmissionRestrictedToSubmitter(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/submissions", map[string]any{
		"artist_id":     "2001",
		"recording_url": "https://example.com/demo.mp3",
	}, requestOpts{userID: "artist-1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	submissionID := decodeData(t, w)["id"].(string)

	patch := map[string]any{"context": map[string]any{"type": "venue", "venue_id": "3001"}}
	w = env.do(t, http.MethodPatch, "/api/submissions/"+submissionID, patch, requestOpts{userID: "artist-2"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPatch, "/api/submissions/"+submissionID, patch, requestOpts{userID: "artist-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "venue", decodeData(t, w)["context_type"])
}

func TestScreeningConfigUpdateRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/screening/config", nil, requestOpts{userID: "staff-1"})
	require.Equal(t, http.StatusOK, w.Code)
	cfg := decodeData(t, w)
	cfg["half_life_days"] = 30

	w = env.do(t, http.MethodPut, "/api/screening/config", cfg, requestOpts{userID: "staff-1"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPut, "/api/screening/config", cfg, requestOpts{userID: "admin-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 30, decodeData(t, w)["half_life_days"])

	cfg["decay_floor"] = 2
	w = env.do(t, http.MethodPut, "/api/screening/config", cfg, requestOpts{userID: "admin-1"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_decay_floor", decodeError(t, w).Errors[0].Code)
}

func TestAssignRole(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]any{"user_id": "new-reviewer", "role": "reviewer"}

	w := env.do(t, http.MethodPost, "/api/admin/roles", body, requestOpts{userID: "staff-1"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/api/admin/roles", body, requestOpts{userID: "admin-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []any{"reviewer"}, decodeData(t, w)["roles"])

	w = env.do(t, http.MethodPost, "/api/admin/roles", map[string]any{"user_id": "x", "role": "owner"}, requestOpts{userID: "admin-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodDelete, "/api/admin/roles", body, requestOpts{userID: "admin-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []any{}, decodeData(t, w)["roles"])
}

func TestPaymentWebhook(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/payments/webhooks/stripe", map[string]any{"id": "evt_1"}, requestOpts{})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stripe", env.payments.provider)
	assert.JSONEq(t, `{"id":"evt_1"}`, string(env.payments.payload))
	assert.JSONEq(t, `{"status":"ok","outcome":"processed"}`, w.Body.String())

	env.payments.outcome = paymentdomain.OutcomeDuplicate
	w = env.do(t, http.MethodPost, "/api/payments/webhooks/stripe", map[string]any{"id": "evt_1"}, requestOpts{})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","outcome":"duplicate"}`, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/payments/webhooks/stripe", map[string]any{"blob": strings.Repeat("x", maxWebhookBodyBytes)}, requestOpts{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.payments.err = paymentdomain.ErrInvalidSignature
	w = env.do(t, http.MethodPost, "/api/payments/webhooks/stripe", map[string]any{"id": "evt_2"}, requestOpts{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_signature", decodeError(t, w).Errors[0].Code)
}

func TestMapErrorStatuses(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{orderdomain.ErrHoldNotOwned, http.StatusForbidden},
		{orderdomain.ErrHoldExpired, http.StatusConflict},
		{orderdomain.ErrTicketNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", gorm.ErrRecordNotFound), http.StatusNotFound},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, _ := mapError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
	}
}

func TestClassifyErrorForLog(t *testing.T) {
	errType, code := classifyErrorForLog(orderdomain.ErrHoldExpired)
	assert.Equal(t, "conflict", errType)
	assert.Equal(t, "hold_expired", code)

	errType, code = classifyErrorForLog(fmt.Errorf("db down"))
	assert.Equal(t, "internal_error", errType)
	assert.Equal(t, "internal_error", code)
}

func TestPrivilegedChangesAreAudited(t *testing.T) {
	env := newTestEnv(t)
	tierID := env.createTier(t, 10)

	w := env.do(t, http.MethodPost, "/api/tiers/"+tierID+"/capacity", map[string]any{"delta": 5}, requestOpts{userID: "admin-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/admin/audit-logs", nil, requestOpts{userID: "staff-1"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/admin/audit-logs?target_id="+tierID, nil, requestOpts{userID: "admin-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)

	actions := []any{body.Data[0]["action"], body.Data[1]["action"]}
	assert.ElementsMatch(t, []any{"tier.create", "tier.capacity"}, actions)
	assert.Equal(t, "admin-1", body.Data[0]["actor_id"])

	w = env.do(t, http.MethodGet, "/api/admin/audit-logs?start_at=yesterday", nil, requestOpts{userID: "admin-1"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_start_at", decodeError(t, w).Errors[0].Code)
}
