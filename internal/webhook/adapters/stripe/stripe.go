// Package stripe adapts Stripe webhook deliveries to subscription events.
package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	licensedomain "github.com/connorodea/aidentalnotes/internal/license/domain"
	"github.com/connorodea/aidentalnotes/internal/webhook/domain"
)

// SignatureHeader carries the timestamp and HMAC signatures of a delivery.
const SignatureHeader = "Stripe-Signature"

// Adapter verifies Stripe signatures and normalizes subscription events.
type Adapter struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// New constructs a Stripe adapter for the given webhook signing secret.
// Deliveries older than tolerance are rejected to limit replay windows.
func New(secret string, tolerance time.Duration) *Adapter {
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	return &Adapter{
		secret:    []byte(strings.TrimSpace(secret)),
		tolerance: tolerance,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Verify checks the Stripe-Signature header: HMAC-SHA256 over
// "<timestamp>.<payload>" with the shared signing secret.
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	if len(a.secret) == 0 {
		return domain.ErrInvalidSignature
	}

	header := strings.TrimSpace(headers.Get(SignatureHeader))
	if header == "" {
		return domain.ErrInvalidSignature
	}

	var timestamp int64
	var signatures [][]byte
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return domain.ErrInvalidSignature
			}
			timestamp = parsed
		case "v1":
			decoded, err := hex.DecodeString(value)
			if err != nil {
				continue
			}
			signatures = append(signatures, decoded)
		}
	}
	if timestamp == 0 || len(signatures) == 0 {
		return domain.ErrInvalidSignature
	}

	sent := time.Unix(timestamp, 0)
	if drift := a.now().Sub(sent); drift > a.tolerance || drift < -a.tolerance {
		return domain.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, signature := range signatures {
		if subtle.ConstantTimeCompare(expected, signature) == 1 {
			return nil
		}
	}
	return domain.ErrInvalidSignature
}

type envelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type subscriptionObject struct {
	ID                 string            `json:"id"`
	Customer           string            `json:"customer"`
	Status             string            `json:"status"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	Metadata           map[string]string `json:"metadata"`
	Items              struct {
		Data []struct {
			Price struct {
				LookupKey string            `json:"lookup_key"`
				Nickname  string            `json:"nickname"`
				Metadata  map[string]string `json:"metadata"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

type invoiceObject struct {
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
}

// Parse maps subscription lifecycle and payment-failure events. Every other
// Stripe event type returns ErrEventIgnored.
func (a *Adapter) Parse(ctx context.Context, payload []byte) (*domain.SubscriptionEvent, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(env.ID) == "" || strings.TrimSpace(env.Type) == "" {
		return nil, domain.ErrInvalidPayload
	}

	event := &domain.SubscriptionEvent{
		Provider:        "stripe",
		ProviderEventID: env.ID,
		OccurredAt:      time.Unix(env.Created, 0).UTC(),
	}
	if env.Created == 0 {
		event.OccurredAt = a.now()
	}

	switch env.Type {
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub subscriptionObject
		if err := json.Unmarshal(env.Data.Object, &sub); err != nil {
			return nil, domain.ErrInvalidPayload
		}
		event.CustomerID = strings.TrimSpace(sub.Customer)
		event.SubscriptionID = strings.TrimSpace(sub.ID)
		if event.SubscriptionID == "" {
			return nil, domain.ErrInvalidPayload
		}
		if sub.CurrentPeriodStart > 0 {
			event.PeriodStart = time.Unix(sub.CurrentPeriodStart, 0).UTC()
		}
		if sub.CurrentPeriodEnd > 0 {
			event.PeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		}
		event.PlanTier = planTier(sub)

		switch env.Type {
		case "customer.subscription.created":
			event.Type = domain.EventTypeSubscriptionCreated
			event.Status = billingStatus(sub.Status)
		case "customer.subscription.updated":
			event.Type = domain.EventTypeSubscriptionUpdated
			event.Status = billingStatus(sub.Status)
		default:
			event.Type = domain.EventTypeSubscriptionDeleted
			event.Status = licensedomain.BillingStatusCanceled
		}
		if event.Status == "" {
			return nil, domain.ErrInvalidEvent
		}
		return event, nil

	case "invoice.payment_failed":
		var inv invoiceObject
		if err := json.Unmarshal(env.Data.Object, &inv); err != nil {
			return nil, domain.ErrInvalidPayload
		}
		event.Type = domain.EventTypePaymentFailed
		event.CustomerID = strings.TrimSpace(inv.Customer)
		event.SubscriptionID = strings.TrimSpace(inv.Subscription)
		event.Status = licensedomain.BillingStatusPastDue
		if event.SubscriptionID == "" && event.CustomerID == "" {
			return nil, domain.ErrInvalidPayload
		}
		return event, nil
	}

	return nil, domain.ErrEventIgnored
}

func planTier(sub subscriptionObject) licensedomain.PlanTier {
	candidates := []string{sub.Metadata["plan"]}
	if len(sub.Items.Data) > 0 {
		price := sub.Items.Data[0].Price
		candidates = append(candidates, price.Metadata["plan"], price.LookupKey, price.Nickname)
	}
	for _, candidate := range candidates {
		tier := licensedomain.PlanTier(strings.ToLower(strings.TrimSpace(candidate)))
		if licensedomain.ValidTier(tier) {
			return tier
		}
	}
	return ""
}

func billingStatus(status string) licensedomain.BillingStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active":
		return licensedomain.BillingStatusActive
	case "trialing":
		return licensedomain.BillingStatusTrialing
	case "past_due", "unpaid", "incomplete":
		return licensedomain.BillingStatusPastDue
	case "canceled", "incomplete_expired":
		return licensedomain.BillingStatusCanceled
	}
	return ""
}
