package service_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/boxoffice/internal/clock"
	"github.com/smallbiznis/boxoffice/internal/config"
	inventorydomain "github.com/smallbiznis/boxoffice/internal/inventory/domain"
	inventoryrepo "github.com/smallbiznis/boxoffice/internal/inventory/repository"
	inventoryservice "github.com/smallbiznis/boxoffice/internal/inventory/service"
	orderdomain "github.com/smallbiznis/boxoffice/internal/order/domain"
	orderrepo "github.com/smallbiznis/boxoffice/internal/order/repository"
	orderservice "github.com/smallbiznis/boxoffice/internal/order/service"
	"github.com/smallbiznis/boxoffice/internal/payment/adapters"
	"github.com/smallbiznis/boxoffice/internal/payment/adapters/stripe"
	paymentdomain "github.com/smallbiznis/boxoffice/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/boxoffice/internal/payment/repository"
	paymentservice "github.com/smallbiznis/boxoffice/internal/payment/service"
	paymentwebhook "github.com/smallbiznis/boxoffice/internal/payment/webhook"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const stripeSecret = "whsec_test"

type fixture struct {
	db        *gorm.DB
	node      *snowflake.Node
	inventory inventorydomain.Service
	orders    orderdomain.Service
	webhook   paymentdomain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)

	node, err := snowflake.NewNode(10)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	clk := clock.NewSystemClock()

	inventorySvc := inventoryservice.New(inventoryservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  inventoryrepo.Provide(),
		Checkout: config.NewStaticCheckoutConfigHolder(config.CheckoutConfig{
			HoldDuration:    540 * time.Second,
			CheckoutTimer:   600 * time.Second,
			MaxHoldQuantity: 10,
		}),
	})
	orderSvc := orderservice.New(orderservice.Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Repo:      orderrepo.Provide(),
		Inventory: inventorySvc,
	})
	paymentSvc := paymentservice.NewService(paymentservice.Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Repo:     paymentrepo.Provide(),
		OrderSvc: orderSvc,
	})

	cfg := config.Config{Payment: config.PaymentConfig{StripeWebhookSecret: stripeSecret}}
	webhookSvc := paymentwebhook.NewService(paymentwebhook.Params{
		Log:        zap.NewNop(),
		PaymentSvc: paymentSvc,
		Adapters:   adapters.NewRegistry(stripe.NewFactory()),
		Cfg:        cfg,
	})

	return &fixture{db: db, node: node, inventory: inventorySvc, orders: orderSvc, webhook: webhookSvc}
}

func (f *fixture) pendingOrder(t *testing.T, qty int32) *orderdomain.OrderView {
	t.Helper()
	ctx := context.Background()
	tier, err := f.inventory.CreateTier(ctx, inventorydomain.CreateTierRequest{
		EventID:      f.node.Generate().String(),
		Name:         "Balcony",
		TotalTickets: 10,
		PriceCents:   1000,
		Currency:     "USD",
	})
	if err != nil {
		t.Fatalf("create tier: %v", err)
	}
	hold, err := f.inventory.CreateHold(ctx, inventorydomain.CreateHoldRequest{TierID: tier.ID, Quantity: qty, Fingerprint: "fp"})
	if err != nil {
		t.Fatalf("create hold: %v", err)
	}
	view, err := f.orders.CreateOrder(ctx, orderdomain.CreateOrderRequest{
		HoldIDs:     []string{hold.ID.String()},
		Fingerprint: "fp",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return view
}

func (f *fixture) deliver(t *testing.T, payload []byte) (paymentdomain.IngestOutcome, error) {
	t.Helper()
	header := http.Header{}
	header.Set("Stripe-Signature", buildStripeSignatureHeader(stripeSecret, payload, time.Now().Unix()))
	return f.webhook.IngestWebhook(context.Background(), "stripe", payload, header)
}

func (f *fixture) mustDeliver(t *testing.T, payload []byte, want paymentdomain.IngestOutcome) {
	t.Helper()
	outcome, err := f.deliver(t, payload)
	if err != nil {
		t.Fatalf("ingest webhook: %v", err)
	}
	if outcome != want {
		t.Fatalf("expected outcome %s, got %s", want, outcome)
	}
}

func intentPayload(eventID, eventType string, orderID snowflake.ID, amount int64) []byte {
	now := time.Now().Unix()
	return []byte(fmt.Sprintf(`{"id":"%s","type":"%s","created":%d,"data":{"object":{"id":"pi_1","amount":%d,"amount_received":%d,"currency":"usd","created":%d,"metadata":{"order_id":"%s"}}}}`,
		eventID, eventType, now, amount, amount, now, orderID.String()))
}

func TestIngestWebhookPaysOrderOnce(t *testing.T) {
	f := newFixture(t)
	view := f.pendingOrder(t, 2)
	payload := intentPayload("evt_1", "payment_intent.succeeded", view.Order.ID, view.Order.TotalCents)

	f.mustDeliver(t, payload, paymentdomain.OutcomeProcessed)
	f.mustDeliver(t, payload, paymentdomain.OutcomeDuplicate)

	assertCount(t, f.db, "SELECT COUNT(1) FROM payment_events", 1)
	assertCount(t, f.db, "SELECT COUNT(1) FROM tickets", 2)
	assertCount(t, f.db, "SELECT COUNT(1) FROM ticket_holds", 0)

	paid, err := f.orders.GetOrder(context.Background(), view.Order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if paid.Order.Status != orderdomain.OrderStatusPaid {
		t.Fatalf("expected paid order, got %s", paid.Order.Status)
	}
	if paid.Order.ProviderPaymentID == nil || *paid.Order.ProviderPaymentID != "pi_1" {
		t.Fatalf("expected provider payment id pi_1")
	}

	assertCount(t, f.db, "SELECT COUNT(1) FROM payment_events WHERE processed_at IS NOT NULL AND attempts = 1", 1)
}

func TestIngestWebhookFailureThenRefund(t *testing.T) {
	f := newFixture(t)
	view := f.pendingOrder(t, 1)

	f.mustDeliver(t, intentPayload("evt_f", "payment_intent.payment_failed", view.Order.ID, view.Order.TotalCents), paymentdomain.OutcomeProcessed)
	failed, err := f.orders.GetOrder(context.Background(), view.Order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if failed.Order.Status != orderdomain.OrderStatusFailed {
		t.Fatalf("expected failed order, got %s", failed.Order.Status)
	}

	f.mustDeliver(t, intentPayload("evt_s", "payment_intent.succeeded", view.Order.ID, view.Order.TotalCents), paymentdomain.OutcomeProcessed)

	refund := []byte(fmt.Sprintf(`{"id":"evt_r","type":"charge.refunded","data":{"object":{"id":"ch_1","payment_intent":"pi_1","amount":%d,"amount_refunded":%d,"currency":"usd","metadata":{"order_id":"%s"}}}}`,
		view.Order.TotalCents, view.Order.TotalCents, view.Order.ID.String()))
	f.mustDeliver(t, refund, paymentdomain.OutcomeProcessed)

	refunded, err := f.orders.GetOrder(context.Background(), view.Order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if refunded.Order.Status != orderdomain.OrderStatusRefunded {
		t.Fatalf("expected refunded order, got %s", refunded.Order.Status)
	}
	assertCount(t, f.db, "SELECT COUNT(1) FROM tickets WHERE status = 'refunded'", 1)
	assertCount(t, f.db, "SELECT COUNT(1) FROM payment_events WHERE processed_at IS NOT NULL", 3)
}

func TestIngestWebhookRejectsBadSignatureAndIgnoresUnknownTypes(t *testing.T) {
	f := newFixture(t)
	view := f.pendingOrder(t, 1)
	payload := intentPayload("evt_x", "payment_intent.succeeded", view.Order.ID, view.Order.TotalCents)

	header := http.Header{}
	header.Set("Stripe-Signature", buildStripeSignatureHeader("wrong", payload, time.Now().Unix()))
	_, err := f.webhook.IngestWebhook(context.Background(), "stripe", payload, header)
	if !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}

	f.mustDeliver(t, []byte(`{"id":"evt_c","type":"customer.created","data":{"object":{}}}`), paymentdomain.OutcomeIgnored)

	_, err = f.webhook.IngestWebhook(context.Background(), "adyen", payload, header)
	if !errors.Is(err, paymentdomain.ErrProviderNotFound) {
		t.Fatalf("expected provider not found, got %v", err)
	}
	assertCount(t, f.db, "SELECT COUNT(1) FROM payment_events", 0)
}

func TestIngestWebhookAcknowledgesUnknownOrder(t *testing.T) {
	f := newFixture(t)
	f.mustDeliver(t, intentPayload("evt_u", "payment_intent.succeeded", f.node.Generate(), 500), paymentdomain.OutcomeIgnored)
	assertCount(t, f.db, "SELECT COUNT(1) FROM payment_events WHERE processed_at IS NOT NULL", 1)
}

func TestIngestWebhookRecordsFailedAttempts(t *testing.T) {
	f := newFixture(t)
	view := f.pendingOrder(t, 1)
	payload := intentPayload("evt_m", "payment_intent.succeeded", view.Order.ID, view.Order.TotalCents)
	if err := f.db.Exec("DROP TABLE order_items").Error; err != nil {
		t.Fatalf("drop order items: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := f.deliver(t, payload); err == nil {
			t.Fatalf("expected ticket issuance to fail")
		}
	}

	var record paymentdomain.EventRecord
	if err := f.db.Where("provider_event_id = ?", "evt_m").Take(&record).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if record.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", record.Attempts)
	}
	if record.LastError == nil || *record.LastError == "" {
		t.Fatalf("expected last error to be kept")
	}
	if record.ProcessedAt != nil {
		t.Fatalf("failed event must stay unprocessed")
	}
}

func TestWebhookWithoutSecretDisablesProvider(t *testing.T) {
	f := newFixture(t)
	svc := paymentwebhook.NewService(paymentwebhook.Params{
		Log:      zap.NewNop(),
		Adapters: adapters.NewRegistry(stripe.NewFactory()),
		Cfg:      config.Config{},
	})
	payload := intentPayload("evt_n", "payment_intent.succeeded", f.node.Generate(), 100)
	if _, err := svc.IngestWebhook(context.Background(), "stripe", payload, http.Header{}); !errors.Is(err, paymentdomain.ErrProviderNotFound) {
		t.Fatalf("expected provider not found, got %v", err)
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(
		&inventorydomain.TicketTier{},
		&inventorydomain.TicketHold{},
		&orderdomain.Order{},
		&orderdomain.OrderItem{},
		&orderdomain.HoldClaim{},
		&orderdomain.Ticket{},
		&paymentdomain.EventRecord{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func buildStripeSignatureHeader(secret string, payload []byte, timestamp int64) string {
	signedPayload := fmt.Sprintf("%d.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signedPayload))
	signature := hex.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, signature)
}

func assertCount(t *testing.T, db *gorm.DB, query string, expected int64) {
	t.Helper()

	var count int64
	if err := db.Raw(query).Scan(&count).Error; err != nil {
		t.Fatalf("query count: %v", err)
	}
	if count != expected {
		t.Fatalf("expected %d, got %d", expected, count)
	}
}
