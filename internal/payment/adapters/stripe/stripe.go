package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/boxoffice/internal/payment/domain"
)

const (
	providerName    = "stripe"
	signatureHeader = "Stripe-Signature"

	// signatures older than this are rejected to limit replay
	defaultTolerance = 5 * time.Minute
)

// Stripe event types mapped to ledger event types.
var trackedEvents = map[string]string{
	"payment_intent.succeeded":      paymentdomain.EventTypePaymentSucceeded,
	"payment_intent.payment_failed": paymentdomain.EventTypePaymentFailed,
	"charge.refunded":               paymentdomain.EventTypeRefunded,
}

type Factory struct {
	now func() time.Time
}

func NewFactory() *Factory {
	return &Factory{now: time.Now}
}

func (f *Factory) Provider() string {
	return providerName
}

func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.PaymentAdapter, error) {
	secret := strings.TrimSpace(cfg.WebhookSecret)
	if secret == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}
	tolerance := cfg.SignatureTolerance
	if tolerance <= 0 {
		tolerance = defaultTolerance
	}
	now := f.now
	if now == nil {
		now = time.Now
	}
	return &Adapter{secret: []byte(secret), tolerance: tolerance, now: now}, nil
}

type Adapter struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// Verify checks the `t=<unix>,v1=<hex hmac>` header. Any v1 entry may match,
// which lets Stripe roll secrets.
func (a *Adapter) Verify(_ context.Context, payload []byte, headers http.Header) error {
	ts, signatures := parseSignatureHeader(headers.Get(signatureHeader))
	if ts == "" || len(signatures) == 0 {
		return paymentdomain.ErrInvalidSignature
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}
	if age := a.now().Sub(time.Unix(unix, 0)); age > a.tolerance || age < -a.tolerance {
		return paymentdomain.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, sig := range signatures {
		decoded, err := hex.DecodeString(sig)
		if err == nil && hmac.Equal(decoded, expected) {
			return nil
		}
	}
	return paymentdomain.ErrInvalidSignature
}

type envelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object object `json:"object"`
	} `json:"data"`
}

// object covers the payment_intent and charge fields the ledger needs.
type object struct {
	ID             string            `json:"id"`
	PaymentIntent  string            `json:"payment_intent"`
	Amount         int64             `json:"amount"`
	AmountReceived int64             `json:"amount_received"`
	AmountRefunded int64             `json:"amount_refunded"`
	Currency       string            `json:"currency"`
	Created        int64             `json:"created"`
	Metadata       map[string]string `json:"metadata"`
}

func (a *Adapter) Parse(_ context.Context, payload []byte) (*paymentdomain.PaymentEvent, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(env.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}
	eventType, ok := trackedEvents[strings.TrimSpace(env.Type)]
	if !ok {
		return nil, paymentdomain.ErrEventIgnored
	}

	obj := env.Data.Object
	orderID, err := snowflake.ParseString(strings.TrimSpace(obj.Metadata["order_id"]))
	if err != nil || orderID == 0 {
		return nil, paymentdomain.ErrInvalidOrder
	}

	event := &paymentdomain.PaymentEvent{
		Provider:          providerName,
		ProviderEventID:   env.ID,
		ProviderPaymentID: obj.ID,
		Type:              eventType,
		OrderID:           orderID,
		Amount:            obj.Amount,
		Currency:          strings.ToUpper(strings.TrimSpace(obj.Currency)),
		OccurredAt:        a.occurredAt(obj.Created, env.Created),
	}
	switch eventType {
	case paymentdomain.EventTypePaymentSucceeded:
		if obj.AmountReceived > 0 {
			event.Amount = obj.AmountReceived
		}
	case paymentdomain.EventTypeRefunded:
		if obj.AmountRefunded > 0 {
			event.Amount = obj.AmountRefunded
		}
		// refunds reference the charge; orders store the payment intent
		if obj.PaymentIntent != "" {
			event.ProviderPaymentID = obj.PaymentIntent
		}
	}
	return event, nil
}

func (a *Adapter) occurredAt(candidates ...int64) time.Time {
	for _, unix := range candidates {
		if unix > 0 {
			return time.Unix(unix, 0).UTC()
		}
	}
	return a.now().UTC()
}

func parseSignatureHeader(header string) (string, []string) {
	var (
		ts         string
		signatures []string
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "t":
			ts = strings.TrimSpace(value)
		case "v1":
			signatures = append(signatures, strings.TrimSpace(value))
		}
	}
	return ts, signatures
}
