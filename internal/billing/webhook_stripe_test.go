package billing

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/microagenda/platform/pkg/logging"
)

type stubStore struct {
	statusUpdates map[string]string // provider_sub_id -> status
	payments      []Payment
	owner         uuid.UUID
	updateErr     error
}

func newStubStore() *stubStore {
	return &stubStore{statusUpdates: map[string]string{}, owner: uuid.New()}
}

func (s *stubStore) UpsertSubscription(_ context.Context, sub Subscription) (*Subscription, error) {
	sub.ProfessionalID = s.owner
	return &sub, nil
}

func (s *stubStore) UpdateSubscriptionStatus(_ context.Context, provider, providerSubID, status string) (*Subscription, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	s.statusUpdates[providerSubID] = status
	return &Subscription{
		ID:             uuid.New(),
		ProfessionalID: s.owner,
		Provider:       provider,
		ProviderSubID:  providerSubID,
		Status:         status,
	}, nil
}

func (s *stubStore) RecordPayment(_ context.Context, p Payment) (bool, error) {
	for _, existing := range s.payments {
		if existing.Provider == p.Provider && existing.ProviderRef == p.ProviderRef {
			return false, nil
		}
	}
	s.payments = append(s.payments, p)
	return true, nil
}

type stubProcessed struct {
	seen map[string]bool
}

func newStubProcessed() *stubProcessed {
	return &stubProcessed{seen: map[string]bool{}}
}

func (s *stubProcessed) AlreadyProcessed(_ context.Context, provider, eventID string) (bool, error) {
	return s.seen[provider+":"+eventID], nil
}

func (s *stubProcessed) MarkProcessed(_ context.Context, provider, eventID string) (bool, error) {
	key := provider + ":" + eventID
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}

type stubOutbox struct {
	types []string
}

func (s *stubOutbox) Insert(_ context.Context, _ string, eventType string, _ any) (uuid.UUID, error) {
	s.types = append(s.types, eventType)
	return uuid.New(), nil
}

func stripeSig(secret string, payload []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func postStripe(h *StripeWebhookHandler, payload []byte, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	if sig != "" {
		req.Header.Set("Stripe-Signature", sig)
	}
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

func TestStripeWebhookInvoicePaid(t *testing.T) {
	secret := "whsec_test"
	store := newStubStore()
	processed := newStubProcessed()
	outbox := &stubOutbox{}
	h := NewStripeWebhookHandler(secret, store, processed, outbox, logging.Default())

	payload := []byte(`{
		"id": "evt_1",
		"type": "invoice.paid",
		"created": 1767225600,
		"data": {"object": {
			"id": "in_1",
			"subscription": "sub_123",
			"payment_intent": "pi_9",
			"amount_paid": 4990,
			"currency": "brl"
		}}
	}`)
	rec := postStripe(h, payload, stripeSig(secret, payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	if store.statusUpdates["sub_123"] != StatusActive {
		t.Errorf("subscription status = %q, want active", store.statusUpdates["sub_123"])
	}
	if len(store.payments) != 1 || store.payments[0].ProviderRef != "pi_9" || store.payments[0].AmountCents != 4990 {
		t.Errorf("payments = %+v", store.payments)
	}
	if len(outbox.types) != 1 || outbox.types[0] != "payment_succeeded.v1" {
		t.Errorf("outbox types = %v", outbox.types)
	}
	if !processed.seen["stripe:evt_1"] {
		t.Error("event should be marked processed")
	}
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	store := newStubStore()
	h := NewStripeWebhookHandler("whsec_test", store, newStubProcessed(), &stubOutbox{}, logging.Default())

	payload := []byte(`{"id": "evt_1", "type": "invoice.paid", "data": {"object": {}}}`)
	rec := postStripe(h, payload, "t=123,v1=deadbeef")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if len(store.statusUpdates) != 0 {
		t.Error("no store calls expected")
	}
}

func TestStripeWebhookDuplicateEventIsAcknowledged(t *testing.T) {
	secret := "whsec_test"
	store := newStubStore()
	processed := newStubProcessed()
	processed.seen["stripe:evt_dup"] = true
	outbox := &stubOutbox{}
	h := NewStripeWebhookHandler(secret, store, processed, outbox, logging.Default())

	payload := []byte(`{"id": "evt_dup", "type": "invoice.paid", "data": {"object": {"subscription": "sub_123"}}}`)
	rec := postStripe(h, payload, stripeSig(secret, payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(store.statusUpdates) != 0 || len(outbox.types) != 0 {
		t.Error("duplicate event must not touch the store or outbox")
	}
}

func TestStripeWebhookPaymentFailedMarksPastDue(t *testing.T) {
	secret := "whsec_test"
	store := newStubStore()
	outbox := &stubOutbox{}
	h := NewStripeWebhookHandler(secret, store, newStubProcessed(), outbox, logging.Default())

	payload := []byte(`{
		"id": "evt_2",
		"type": "invoice.payment_failed",
		"created": 1767225600,
		"data": {"object": {"id": "in_2", "subscription": "sub_123"}}
	}`)
	rec := postStripe(h, payload, stripeSig(secret, payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if store.statusUpdates["sub_123"] != StatusPastDue {
		t.Errorf("subscription status = %q, want past_due", store.statusUpdates["sub_123"])
	}
	if len(outbox.types) != 1 || outbox.types[0] != "subscription_past_due.v1" {
		t.Errorf("outbox types = %v", outbox.types)
	}
}

func TestStripeWebhookSubscriptionDeleted(t *testing.T) {
	secret := "whsec_test"
	store := newStubStore()
	h := NewStripeWebhookHandler(secret, store, newStubProcessed(), &stubOutbox{}, logging.Default())

	payload := []byte(`{
		"id": "evt_3",
		"type": "customer.subscription.deleted",
		"data": {"object": {"id": "sub_123"}}
	}`)
	rec := postStripe(h, payload, stripeSig(secret, payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if store.statusUpdates["sub_123"] != StatusCanceled {
		t.Errorf("subscription status = %q, want canceled", store.statusUpdates["sub_123"])
	}
}

func TestStripeWebhookIgnoresOtherEventTypes(t *testing.T) {
	secret := "whsec_test"
	store := newStubStore()
	h := NewStripeWebhookHandler(secret, store, newStubProcessed(), &stubOutbox{}, logging.Default())

	payload := []byte(`{"id": "evt_4", "type": "charge.refunded", "data": {"object": {}}}`)
	rec := postStripe(h, payload, stripeSig(secret, payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(store.statusUpdates) != 0 {
		t.Error("ignored event must not touch the store")
	}
}
