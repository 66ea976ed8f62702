package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/cankoseoglu/fax-web-app/internal/models"
)

// recipientPattern accepts E.164-style numbers with an optional leading +.
var recipientPattern = regexp.MustCompile(`^\+?[1-9][0-9]{5,14}$`)

// TransactionService owns the payment-to-delivery state machine. Every
// mutation goes through the compare-and-set transition primitive, which is
// both the concurrency control and the idempotency mechanism: for any
// transaction at most one transition out of pending and at most one out of
// processing ever succeeds, no matter how often a webhook is redelivered.
type TransactionService struct {
	db      *gorm.DB
	pricing *PricingService
	payment PaymentGateway
	fax     FaxGateway
}

// NewTransactionService wires the orchestrator with its injected adapters.
func NewTransactionService(db *gorm.DB, pricing *PricingService, payment PaymentGateway, fax FaxGateway) *TransactionService {
	return &TransactionService{db: db, pricing: pricing, payment: payment, fax: fax}
}

// CreateParams captures the client submission.
type CreateParams struct {
	CountryCode     string
	RecipientNumber string
	Documents       [][]byte
}

// Create validates the submission, quotes the price, opens a checkout
// session with the payment gateway and persists the transaction as pending.
// The quoted amount is not stored: the record keeps "0" until the gateway
// confirms what was actually captured.
func (s *TransactionService) Create(ctx context.Context, params CreateParams) (*models.Transaction, error) {
	countryCode := strings.ToUpper(strings.TrimSpace(params.CountryCode))
	recipient := strings.TrimSpace(params.RecipientNumber)

	if !recipientPattern.MatchString(recipient) {
		return nil, fmt.Errorf("%w: recipient number %q", ErrValidation, recipient)
	}
	if len(params.Documents) == 0 {
		return nil, fmt.Errorf("%w: at least one document is required", ErrValidation)
	}
	for i, doc := range params.Documents {
		if len(doc) == 0 {
			return nil, fmt.Errorf("%w: document %d is empty", ErrValidation, i+1)
		}
	}

	pageCount := len(params.Documents)

	quote, err := s.pricing.Quote(countryCode, pageCount)
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf("%d page fax to %s", pageCount, countryCode)
	if pageCount > 1 {
		description = fmt.Sprintf("%d pages fax to %s", pageCount, countryCode)
	}

	sessionID, err := s.payment.CreateSession(ctx, quote, description, map[string]string{
		"country_code": countryCode,
		"page_count":   fmt.Sprintf("%d", pageCount),
	})
	if err != nil {
		return nil, fmt.Errorf("create payment session: %w", err)
	}

	txn := &models.Transaction{
		Status:           models.StatusPending,
		RecipientNumber:  recipient,
		CountryCode:      countryCode,
		PageCount:        pageCount,
		Amount:           "0",
		PaymentSessionID: sessionID,
	}
	for i, doc := range params.Documents {
		txn.Documents = append(txn.Documents, models.TransactionDocument{Seq: i, Content: doc})
	}

	if err := s.db.WithContext(ctx).Create(txn).Error; err != nil {
		return nil, fmt.Errorf("persist transaction: %w", err)
	}

	return txn, nil
}

// Get returns a transaction by id for client status polling.
func (s *TransactionService) Get(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	if err := s.db.WithContext(ctx).First(&txn, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &txn, nil
}

// GetBySessionID looks a transaction up by its payment session id.
func (s *TransactionService) GetBySessionID(ctx context.Context, sessionID string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := s.db.WithContext(ctx).First(&txn, "payment_session_id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &txn, nil
}

// GetByProviderID looks a transaction up by the carrier's fax id.
func (s *TransactionService) GetByProviderID(ctx context.Context, providerID string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := s.db.WithContext(ctx).First(&txn, "fax_provider_id = ?", providerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &txn, nil
}

// transition performs the compare-and-set status update: it applies only
// if the record still holds the expected prior status. Zero affected rows
// means another delivery already advanced the record.
func (s *TransactionService) transition(ctx context.Context, id uuid.UUID, from, to models.Status, updates map[string]any) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	if updates == nil {
		updates = map[string]any{}
	}
	updates["status"] = to

	res := s.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleTransition
	}

	return nil
}

// HandlePaymentEvent consumes a verified payment webhook event. It returns
// the transaction when the caller should go on to dispatch the fax, and
// nil when the event is a no-op: unknown session, unrelated event type, or
// a replay of an already-processed webhook. The compare-and-set happens
// before any fax submission, so duplicate deliveries can never trigger two
// submissions.
func (s *TransactionService) HandlePaymentEvent(ctx context.Context, event *PaymentEvent) (*models.Transaction, error) {
	if event.Type != PaymentEventSessionCompleted {
		log.Printf("[Payment] Ignoring event type %q", event.Type)
		return nil, nil
	}

	txn, err := s.GetBySessionID(ctx, event.SessionID)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			log.Printf("[Payment] No transaction for session %s, acknowledging", event.SessionID)
			return nil, nil
		}
		return nil, err
	}

	amount := decimal.New(event.AmountTotal, -2).StringFixed(2)

	err = s.transition(ctx, txn.ID, models.StatusPending, models.StatusProcessing, map[string]any{
		"amount": amount,
	})
	if err != nil {
		if errors.Is(err, ErrStaleTransition) {
			log.Printf("[Payment] Session %s already processed, acknowledging replay", event.SessionID)
			return nil, nil
		}
		return nil, err
	}

	txn.Status = models.StatusProcessing
	txn.Amount = amount
	return txn, nil
}

// DispatchFax submits the transaction's documents to the fax carrier. It
// runs off the webhook response path; the payment acknowledgment must not
// wait on the carrier round trip. A submission failure moves the
// transaction to failed with the adapter error recorded. The captured
// payment is deliberately not refunded here.
func (s *TransactionService) DispatchFax(ctx context.Context, txn *models.Transaction) {
	var documents []models.TransactionDocument
	if err := s.db.WithContext(ctx).
		Where("transaction_id = ?", txn.ID).
		Order("seq asc").
		Find(&documents).Error; err != nil {
		log.Printf("[Fax] Failed to load documents for transaction %s: %v", txn.ID, err)
		s.failProcessing(ctx, txn.ID, "failed to load documents")
		return
	}

	contents := make([][]byte, 0, len(documents))
	for _, doc := range documents {
		contents = append(contents, doc.Content)
	}

	providerID, err := s.fax.Submit(ctx, contents, txn.RecipientNumber)
	if err != nil {
		log.Printf("[Fax] Submission failed for transaction %s: %v", txn.ID, err)
		s.failProcessing(ctx, txn.ID, err.Error())
		return
	}

	// Not a status transition: the record stays processing until the
	// carrier's delivery webhook arrives. The status guard keeps a racing
	// terminal transition from being overwritten.
	res := s.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", txn.ID, models.StatusProcessing).
		Update("fax_provider_id", providerID)
	if res.Error != nil {
		log.Printf("[Fax] Failed to record fax id %s for transaction %s: %v", providerID, txn.ID, res.Error)
		return
	}

	log.Printf("[Fax] Transaction %s submitted as fax %s", txn.ID, providerID)
}

func (s *TransactionService) failProcessing(ctx context.Context, id uuid.UUID, reason string) {
	err := s.transition(ctx, id, models.StatusProcessing, models.StatusFailed, map[string]any{
		"error": reason,
	})
	if err != nil && !errors.Is(err, ErrStaleTransition) {
		log.Printf("[Fax] Failed to mark transaction %s failed: %v", id, err)
	}
}

// HandleFaxEvent consumes a delivery-status event from the fax carrier.
// Events for unknown fax ids are logged and reported as not found without
// touching any transaction.
func (s *TransactionService) HandleFaxEvent(ctx context.Context, event *DeliveryEvent) error {
	txn, err := s.GetByProviderID(ctx, event.ProviderID)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			log.Printf("[Fax] No transaction for fax %s, discarding event", event.ProviderID)
		}
		return err
	}

	switch {
	case event.Completed():
		err = s.transition(ctx, txn.ID, models.StatusProcessing, models.StatusCompleted, nil)
	case event.Failed():
		err = s.transition(ctx, txn.ID, models.StatusProcessing, models.StatusFailed, map[string]any{
			"error": event.Reason,
		})
	default:
		log.Printf("[Fax] Ignoring status %q for fax %s", event.Status, event.ProviderID)
		return nil
	}

	if errors.Is(err, ErrStaleTransition) {
		log.Printf("[Fax] Transaction %s already terminal, ignoring fax %s event", txn.ID, event.ProviderID)
		return nil
	}

	return err
}

// ListFilter narrows the admin transaction listing.
type ListFilter struct {
	Status      string
	CountryCode string
}

// List returns transactions for the admin surface, newest first.
func (s *TransactionService) List(ctx context.Context, filter ListFilter, limit, offset int) ([]models.Transaction, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Transaction{})

	if filter.Status != "" {
		status := models.Status(filter.Status)
		if !status.Valid() {
			return nil, 0, fmt.Errorf("%w: status %q", ErrValidation, filter.Status)
		}
		query = query.Where("status = ?", status)
	}
	if filter.CountryCode != "" {
		query = query.Where("country_code = ?", strings.ToUpper(filter.CountryCode))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txns []models.Transaction
	if err := query.
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&txns).Error; err != nil {
		return nil, 0, err
	}

	return txns, total, nil
}
