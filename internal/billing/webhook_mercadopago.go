package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/microagenda/platform/internal/events"
	"github.com/microagenda/platform/internal/observability/metrics"
	"github.com/microagenda/platform/pkg/logging"
)

// MercadoPagoWebhookHandler handles Mercado Pago payment notifications.
// The notification body only carries a payment id; the payment itself is
// fetched from the REST API before anything is recorded.
type MercadoPagoWebhookHandler struct {
	webhookSecret string
	accessToken   string
	baseURL       string
	httpClient    *http.Client
	store         subscriptionStore
	processed     processedTracker
	outbox        outboxWriter
	logger        *logging.Logger
	metrics       *metrics.WebhookMetrics
}

// NewMercadoPagoWebhookHandler creates a new handler for Mercado Pago webhooks.
func NewMercadoPagoWebhookHandler(
	webhookSecret, accessToken, baseURL string,
	store subscriptionStore,
	processed processedTracker,
	outbox outboxWriter,
	logger *logging.Logger,
) *MercadoPagoWebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if baseURL == "" {
		baseURL = "https://api.mercadopago.com"
	}
	return &MercadoPagoWebhookHandler{
		webhookSecret: webhookSecret,
		accessToken:   accessToken,
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		store:         store,
		processed:     processed,
		outbox:        outbox,
		logger:        logger,
	}
}

// WithMetrics attaches webhook metrics.
func (h *MercadoPagoWebhookHandler) WithMetrics(m *metrics.WebhookMetrics) *MercadoPagoWebhookHandler {
	h.metrics = m
	return h
}

// WithHTTPClient overrides the API client, used by tests.
func (h *MercadoPagoWebhookHandler) WithHTTPClient(c *http.Client) *MercadoPagoWebhookHandler {
	if c != nil {
		h.httpClient = c
	}
	return h
}

type mpNotification struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

type mpPayment struct {
	ID                int64             `json:"id"`
	Status            string            `json:"status"`
	TransactionAmount float64           `json:"transaction_amount"`
	CurrencyID        string            `json:"currency_id"`
	ExternalReference string            `json:"external_reference"`
	Metadata          map[string]string `json:"metadata"`
	DateApproved      string            `json:"date_approved"`
}

// Handle processes incoming Mercado Pago webhook notifications.
func (h *MercadoPagoWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	var notif mpNotification
	if err := json.Unmarshal(payload, &notif); err != nil {
		h.logger.Error("failed to decode mercadopago notification", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if notif.Data.ID == "" {
		http.Error(w, "missing data id", http.StatusBadRequest)
		return
	}

	if !verifyMercadoPagoSignature(h.webhookSecret, notif.Data.ID, r.Header.Get("x-request-id"), r.Header.Get("x-signature")) {
		h.metrics.ObserveWebhook("mercadopago", "bad_signature")
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	if notif.Type != "payment" {
		w.WriteHeader(http.StatusOK)
		return
	}

	if processed, err := h.processed.AlreadyProcessed(r.Context(), "mercadopago", notif.Data.ID); err != nil {
		h.logger.Error("processed lookup failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	} else if processed {
		w.WriteHeader(http.StatusOK)
		return
	}

	payment, err := h.fetchPayment(r.Context(), notif.Data.ID)
	if err != nil {
		h.logger.Error("mercadopago payment fetch failed", "error", err, "payment_id", notif.Data.ID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	professionalID, err := uuid.Parse(payment.ExternalReference)
	if err != nil {
		h.logger.Warn("mercadopago payment without professional reference",
			"payment_id", notif.Data.ID, "external_reference", payment.ExternalReference)
		// Acknowledge; retrying will never fix the reference.
		w.WriteHeader(http.StatusOK)
		return
	}

	switch payment.Status {
	case "approved":
		err = h.approved(r.Context(), notif.Data.ID, professionalID, payment)
	case "rejected", "cancelled":
		err = h.rejected(r.Context(), notif.Data.ID, professionalID, payment)
	default:
		// pending / in_process: wait for the terminal notification.
		w.WriteHeader(http.StatusOK)
		return
	}
	if err != nil {
		h.metrics.ObserveWebhook("mercadopago", "error")
		h.logger.Error("mercadopago webhook handling failed", "error", err, "payment_id", notif.Data.ID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	if _, err := h.processed.MarkProcessed(r.Context(), "mercadopago", notif.Data.ID); err != nil {
		h.logger.Error("failed to record processed event", "error", err)
	}
	h.metrics.ObserveWebhook("mercadopago", "processed")

	w.WriteHeader(http.StatusOK)
}

func (h *MercadoPagoWebhookHandler) approved(ctx context.Context, paymentID string, professionalID uuid.UUID, payment *mpPayment) error {
	if subID := payment.Metadata["subscription_id"]; subID != "" {
		if _, err := h.store.UpdateSubscriptionStatus(ctx, "mercadopago", subID, StatusActive); err != nil {
			return fmt.Errorf("activate subscription %s: %w", subID, err)
		}
	}

	amountCents := int64(math.Round(payment.TransactionAmount * 100))
	inserted, err := h.store.RecordPayment(ctx, Payment{
		ProfessionalID: professionalID,
		Provider:       "mercadopago",
		ProviderRef:    paymentID,
		AmountCents:    amountCents,
		Currency:       payment.CurrencyID,
		Status:         "succeeded",
	})
	if err != nil {
		return fmt.Errorf("record payment: %w", err)
	}
	if !inserted {
		return nil
	}

	event := events.PaymentSucceededV1{
		EventID:        paymentID,
		ProfessionalID: professionalID.String(),
		Provider:       "mercadopago",
		ProviderRef:    paymentID,
		AmountCents:    amountCents,
		OccurredAt:     time.Now().UTC(),
	}
	if _, err := h.outbox.Insert(ctx, professionalID.String(), events.TypePaymentSucceeded, event); err != nil {
		return fmt.Errorf("enqueue outbox: %w", err)
	}
	return nil
}

func (h *MercadoPagoWebhookHandler) rejected(ctx context.Context, paymentID string, professionalID uuid.UUID, payment *mpPayment) error {
	subID := payment.Metadata["subscription_id"]
	if subID == "" {
		return nil
	}
	if _, err := h.store.UpdateSubscriptionStatus(ctx, "mercadopago", subID, StatusPastDue); err != nil {
		return fmt.Errorf("mark past due %s: %w", subID, err)
	}
	event := events.SubscriptionPastDueV1{
		EventID:        paymentID,
		ProfessionalID: professionalID.String(),
		Provider:       "mercadopago",
		SubscriptionID: subID,
		OccurredAt:     time.Now().UTC(),
	}
	if _, err := h.outbox.Insert(ctx, professionalID.String(), events.TypeSubscriptionPastDue, event); err != nil {
		return fmt.Errorf("enqueue outbox: %w", err)
	}
	return nil
}

func (h *MercadoPagoWebhookHandler) fetchPayment(ctx context.Context, id string) (*mpPayment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/v1/payments/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.accessToken)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("api status %d: %s", resp.StatusCode, string(body))
	}

	var payment mpPayment
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return nil, fmt.Errorf("decode payment: %w", err)
	}
	return &payment, nil
}

// verifyMercadoPagoSignature checks the x-signature header. Mercado Pago
// signs the manifest "id:<data.id>;request-id:<request-id>;ts:<ts>;" with
// HMAC-SHA256 and sends it as: ts=<timestamp>,v1=<signature>
func verifyMercadoPagoSignature(secret, dataID, requestID, header string) bool {
	if secret == "" {
		return true // bypass for development
	}
	if header == "" {
		return false
	}

	var ts, v1 string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "ts":
			ts = kv[1]
		case "v1":
			v1 = kv[1]
		}
	}
	if ts == "" || v1 == "" {
		return false
	}

	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", dataID, requestID, ts)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(v1), []byte(expected))
}
