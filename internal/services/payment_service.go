package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cankoseoglu/fax-web-app/internal/config"
)

// PaymentEvent types delivered by the payment gateway webhook.
const (
	PaymentEventSessionCompleted = "checkout.session.completed"
)

// signatureTolerance bounds how old a signed webhook timestamp may be
// before it is rejected as a possible replay.
const signatureTolerance = 5 * time.Minute

// PaymentGateway is the narrow contract the orchestrator depends on.
type PaymentGateway interface {
	CreateSession(ctx context.Context, amount decimal.Decimal, description string, metadata map[string]string) (string, error)
	VerifyWebhook(payload []byte, signatureHeader string) (*PaymentEvent, error)
}

// PaymentEvent is a verified event parsed from a payment webhook.
type PaymentEvent struct {
	Type      string
	SessionID string
	// AmountTotal is the captured amount in minor currency units.
	AmountTotal int64
}

// PaymentService talks to the external payment processor. Instances are
// constructed explicitly at startup and carry their own credentials.
type PaymentService struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	successURL    string
	cancelURL     string
	currency      string
	client        *http.Client
}

// NewPaymentService builds a payment gateway client from config.
func NewPaymentService(cfg *config.Config) *PaymentService {
	return &PaymentService{
		baseURL:       strings.TrimRight(cfg.PaymentAPIURL, "/"),
		apiKey:        cfg.PaymentAPIKey,
		webhookSecret: cfg.PaymentWebhookSecret,
		successURL:    cfg.PaymentSuccessURL,
		cancelURL:     cfg.PaymentCancelURL,
		currency:      cfg.Currency,
		client:        &http.Client{Timeout: 15 * time.Second},
	}
}

type checkoutSessionRequest struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	SuccessURL  string            `json:"success_url"`
	CancelURL   string            `json:"cancel_url"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type checkoutSessionResponse struct {
	ID string `json:"id"`
}

// CreateSession requests a checkout session for the given amount and
// returns the gateway's session id.
func (s *PaymentService) CreateSession(ctx context.Context, amount decimal.Decimal, description string, metadata map[string]string) (string, error) {
	minorUnits := amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	if minorUnits <= 0 {
		return "", fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}

	payload := checkoutSessionRequest{
		Amount:      minorUnits,
		Currency:    s.currency,
		Description: description,
		SuccessURL:  s.successURL,
		CancelURL:   s.cancelURL,
		Metadata:    metadata,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal checkout session payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create checkout session request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: gateway rejected session: %s", ErrInvalidAmount, strings.TrimSpace(string(respBody)))
	default:
		return "", fmt.Errorf("%w: checkout session returned status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var result checkoutSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode checkout session response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("%w: checkout session response missing id", ErrGatewayUnavailable)
	}

	return result.ID, nil
}

type paymentWebhookEnvelope struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID          string `json:"id"`
			AmountTotal int64  `json:"amount_total"`
		} `json:"object"`
	} `json:"data"`
}

// VerifyWebhook authenticates a raw webhook payload against the shared
// webhook secret and parses the event. The signature header carries a
// unix timestamp and one or more HMAC-SHA256 signatures over
// "<timestamp>.<payload>", in the form "t=<unix>,v1=<hex>".
func (s *PaymentService) VerifyWebhook(payload []byte, signatureHeader string) (*PaymentEvent, error) {
	if s.webhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", ErrSignatureInvalid)
	}

	timestamp, signatures, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return nil, err
	}

	age := time.Since(time.Unix(timestamp, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return nil, fmt.Errorf("%w: timestamp outside tolerance", ErrSignatureInvalid)
	}

	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	fmt.Fprintf(mac, "%d.%s", timestamp, payload)
	expected := mac.Sum(nil)

	verified := false
	for _, sig := range signatures {
		decoded, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			verified = true
			break
		}
	}
	if !verified {
		return nil, ErrSignatureInvalid
	}

	var envelope paymentWebhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("parse webhook payload: %w", err)
	}

	return &PaymentEvent{
		Type:        envelope.Type,
		SessionID:   envelope.Data.Object.ID,
		AmountTotal: envelope.Data.Object.AmountTotal,
	}, nil
}

func parseSignatureHeader(header string) (int64, []string, error) {
	var timestamp int64 = -1
	var signatures []string

	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			parsed, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: bad timestamp", ErrSignatureInvalid)
			}
			timestamp = parsed
		case "v1":
			signatures = append(signatures, kv[1])
		default:
			// Unknown scheme versions are ignored for forward compatibility.
			log.Printf("[Payment] Ignoring unknown signature element %q", kv[0])
		}
	}

	if timestamp < 0 || len(signatures) == 0 {
		return 0, nil, fmt.Errorf("%w: malformed signature header", ErrSignatureInvalid)
	}

	return timestamp, signatures, nil
}
