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
	"net/http"
	"strings"
	"time"

	"github.com/cankoseoglu/fax-web-app/internal/config"
)

// FaxGateway is the narrow contract the orchestrator depends on.
type FaxGateway interface {
	Submit(ctx context.Context, documents [][]byte, recipientNumber string) (string, error)
	ParseWebhook(payload []byte, signatureHeader string) (*DeliveryEvent, error)
}

// Delivery statuses reported by the fax carrier webhook.
const (
	DeliveryStatusCompleted = "completed"
	DeliveryStatusFailed    = "failed"
)

// DeliveryEvent is a fax-status event correlated by the carrier's fax id.
type DeliveryEvent struct {
	ProviderID string
	Status     string
	Reason     string
}

// Completed reports whether the carrier confirmed delivery.
func (e *DeliveryEvent) Completed() bool {
	return e.Status == DeliveryStatusCompleted
}

// Failed reports whether the carrier gave up on delivery.
func (e *DeliveryEvent) Failed() bool {
	return e.Status == DeliveryStatusFailed
}

// FaxService talks to the external fax carrier.
type FaxService struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	client        *http.Client
}

// NewFaxService builds a fax gateway client from config.
func NewFaxService(cfg *config.Config) *FaxService {
	return &FaxService{
		baseURL:       strings.TrimRight(cfg.FaxAPIURL, "/"),
		apiKey:        cfg.FaxAPIKey,
		webhookSecret: cfg.FaxWebhookSecret,
		client:        &http.Client{Timeout: 30 * time.Second},
	}
}

type createFaxRequest struct {
	To      string `json:"to"`
	Quality string `json:"quality"`
}

type createFaxResponse struct {
	ID string `json:"id"`
}

// Submit transmits the documents to the recipient through the carrier.
// The carrier flow is create fax job, upload each page as an attachment,
// then trigger the send. Returns the carrier's fax id.
func (s *FaxService) Submit(ctx context.Context, documents [][]byte, recipientNumber string) (string, error) {
	if len(documents) == 0 {
		return "", fmt.Errorf("%w: no documents to send", ErrInvalidDocument)
	}

	body, err := json.Marshal(createFaxRequest{To: recipientNumber, Quality: "high"})
	if err != nil {
		return "", fmt.Errorf("marshal fax request: %w", err)
	}

	resp, err := s.do(ctx, http.MethodPost, "/faxes", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	if err := checkFaxStatus(resp, ErrInvalidRecipient); err != nil {
		return "", err
	}

	var created createFaxResponse
	if err := json.Unmarshal(resp.body, &created); err != nil {
		return "", fmt.Errorf("decode fax response: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("%w: carrier response missing fax id", ErrGatewayUnavailable)
	}

	for i, doc := range documents {
		resp, err := s.do(ctx, http.MethodPost, "/faxes/"+created.ID+"/attachments", "application/pdf", bytes.NewReader(doc))
		if err != nil {
			return "", err
		}
		if err := checkFaxStatus(resp, ErrInvalidDocument); err != nil {
			return "", fmt.Errorf("attachment %d: %w", i+1, err)
		}
	}

	resp, err = s.do(ctx, http.MethodPost, "/faxes/"+created.ID+"/send", "application/json", nil)
	if err != nil {
		return "", err
	}
	if err := checkFaxStatus(resp, ErrGatewayUnavailable); err != nil {
		return "", err
	}

	return created.ID, nil
}

type faxResponse struct {
	status int
	body   []byte
}

func (s *FaxService) do(ctx context.Context, method, path, contentType string, body io.Reader) (*faxResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create fax request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read carrier response: %v", ErrGatewayUnavailable, err)
	}

	return &faxResponse{status: resp.StatusCode, body: respBody}, nil
}

// checkFaxStatus maps carrier HTTP statuses onto the adapter error set.
// badRequestErr names the error a 4xx should surface as, since the same
// status means a bad recipient on job creation and a bad page on upload.
func checkFaxStatus(resp *faxResponse, badRequestErr error) error {
	switch {
	case resp.status >= 200 && resp.status < 300:
		return nil
	case resp.status == http.StatusUnauthorized:
		return fmt.Errorf("%w: carrier authentication failed", ErrGatewayUnavailable)
	case resp.status >= 400 && resp.status < 500:
		return fmt.Errorf("%w: %s", badRequestErr, strings.TrimSpace(string(resp.body)))
	default:
		return fmt.Errorf("%w: carrier returned status %d", ErrGatewayUnavailable, resp.status)
	}
}

type faxWebhookPayload struct {
	FaxID        string `json:"faxId"`
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage"`
}

// ParseWebhook parses a fax-status callback. When a webhook secret is
// configured the payload must carry a hex HMAC-SHA256 signature of the
// body; the unsigned carrier default is accepted only with no secret set.
func (s *FaxService) ParseWebhook(payload []byte, signatureHeader string) (*DeliveryEvent, error) {
	if s.webhookSecret != "" {
		mac := hmac.New(sha256.New, []byte(s.webhookSecret))
		mac.Write(payload)
		expected := mac.Sum(nil)

		decoded, err := hex.DecodeString(strings.TrimSpace(signatureHeader))
		if err != nil || !hmac.Equal(decoded, expected) {
			return nil, ErrSignatureInvalid
		}
	}

	var body faxWebhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("%w: parse fax webhook payload: %v", ErrValidation, err)
	}
	if body.FaxID == "" {
		return nil, fmt.Errorf("%w: fax webhook missing faxId", ErrValidation)
	}

	event := &DeliveryEvent{ProviderID: body.FaxID, Reason: body.ErrorMessage}

	switch strings.ToLower(body.Status) {
	case "completed", "delivered", "success":
		event.Status = DeliveryStatusCompleted
	case "failed", "failure", "error":
		event.Status = DeliveryStatusFailed
		if event.Reason == "" {
			event.Reason = "fax delivery failed"
		}
	default:
		event.Status = strings.ToLower(body.Status)
	}

	return event, nil
}
