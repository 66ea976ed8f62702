package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Status is the lifecycle state of a fax transaction.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// statusEdges owns every legal transition. Anything not listed here is
// rejected, which keeps the lifecycle monotonic: no edge returns to an
// earlier state and terminal states have no outgoing edges.
var statusEdges = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether moving from s to next is a legal edge.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range statusEdges[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return len(statusEdges[s]) == 0
}

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// BaseModel provides shared columns for all tables.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures UUIDs are generated for new records.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Transaction records one fax-send attempt from creation through its
// terminal delivery outcome.
type Transaction struct {
	BaseModel
	Status          Status `gorm:"type:varchar(16);index" json:"status"`
	RecipientNumber string `gorm:"column:recipient_number" json:"recipient_number"`
	CountryCode     string `gorm:"type:varchar(2)" json:"country_code"`
	PageCount       int    `json:"page_count"`
	// Amount stays "0" until the payment gateway reports the captured total.
	Amount           string                `gorm:"type:numeric(10,2);default:'0'" json:"amount"`
	PaymentSessionID string                `gorm:"column:payment_session_id;uniqueIndex" json:"payment_session_id"`
	FaxProviderID    string                `gorm:"column:fax_provider_id;index" json:"fax_provider_id"`
	Error            string                `json:"error,omitempty"`
	Documents        []TransactionDocument `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// TransactionDocument is one uploaded page, stored at creation and never
// modified afterwards.
type TransactionDocument struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TransactionID uuid.UUID `gorm:"type:uuid;index" json:"transaction_id"`
	Seq           int       `json:"seq"`
	Content       []byte    `gorm:"type:bytea" json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}
