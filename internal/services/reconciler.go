package services

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/cankoseoglu/fax-web-app/internal/models"
)

// Reconciler expires transactions whose checkout was abandoned: pending
// records older than the configured TTL are moved to failed through the
// same compare-and-set primitive the webhook path uses, so a payment
// webhook racing the sweep still wins exactly once.
type Reconciler struct {
	svc      *TransactionService
	ttl      time.Duration
	interval time.Duration
}

// NewReconciler builds the sweep with the configured policy.
func NewReconciler(svc *TransactionService, ttl, interval time.Duration) *Reconciler {
	return &Reconciler{svc: svc, ttl: ttl, interval: interval}
}

// Run loops the sweep until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	if r.ttl <= 0 {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Printf("[Reconciler] Expiring pending transactions older than %s every %s", r.ttl, r.interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := r.ExpirePending(ctx); err != nil {
				log.Printf("[Reconciler] Sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("[Reconciler] Expired %d abandoned transactions", n)
			}
		}
	}
}

// ExpirePending fails every pending transaction created before the TTL
// cutoff and returns how many it expired.
func (r *Reconciler) ExpirePending(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-r.ttl)

	var stale []models.Transaction
	err := r.svc.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.StatusPending, cutoff).
		Find(&stale).Error
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, txn := range stale {
		err := r.svc.transition(ctx, txn.ID, models.StatusPending, models.StatusFailed, map[string]any{
			"error": "payment not completed before expiry",
		})
		if err != nil {
			if errors.Is(err, ErrStaleTransition) || errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return expired, err
		}
		expired++
	}

	return expired, nil
}
