package models

import (
	"encoding/json"
	"time"
)

// PaymentStatus is the closed set of payment transaction states.
// It is distinct from order fulfillment status on purpose.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusCreated PaymentStatus = "CREATED"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCreated, PaymentStatusSuccess, PaymentStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is a final state. Terminal transactions are
// never mutated again.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed
}

// TransactionItem is a single purchased line item kept in transaction metadata.
type TransactionItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

// TransactionMetadata is the free-form payload attached at creation time.
// ReferenceCode is the provider-assigned code used as a last-resort webhook
// lookup key.
type TransactionMetadata struct {
	Description   string            `json:"description,omitempty"`
	Items         []TransactionItem `json:"items,omitempty"`
	BankAccount   string            `json:"bank_account,omitempty"`
	CustomerEmail string            `json:"customer_email,omitempty"`
	ReferenceCode string            `json:"reference_code,omitempty"`
}

// TransactionErrorLog is one append-only entry recording a failed attempt.
type TransactionErrorLog struct {
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
}

// Transaction tracks a single payment attempt from creation through gateway
// response and provider webhook confirmation. Rows are never deleted.
type Transaction struct {
	BaseModel
	TransactionID string        `gorm:"column:transaction_id;uniqueIndex" json:"transaction_id"`
	Status        PaymentStatus `gorm:"type:varchar(16);index" json:"status"`
	Amount        int64         `json:"amount"`
	QRCodeURL     string        `gorm:"column:qr_code_url" json:"qr_code_url"`
	CheckoutURL   string        `gorm:"column:checkout_url" json:"checkout_url"`
	Metadata      []byte        `gorm:"type:jsonb" json:"metadata"`
	ErrorLogs     []byte        `gorm:"type:jsonb" json:"error_logs"`
}

// SetMetadata serializes meta into the jsonb column.
func (t *Transaction) SetMetadata(meta TransactionMetadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	t.Metadata = data
	return nil
}

// DecodeMetadata deserializes the jsonb metadata column. An empty column
// yields a zero value, not an error.
func (t *Transaction) DecodeMetadata() (TransactionMetadata, error) {
	var meta TransactionMetadata
	if len(t.Metadata) == 0 {
		return meta, nil
	}
	err := json.Unmarshal(t.Metadata, &meta)
	return meta, err
}

// DecodeErrorLogs deserializes the jsonb error log column.
func (t *Transaction) DecodeErrorLogs() ([]TransactionErrorLog, error) {
	var logs []TransactionErrorLog
	if len(t.ErrorLogs) == 0 {
		return nil, nil
	}
	err := json.Unmarshal(t.ErrorLogs, &logs)
	return logs, err
}

// AppendErrorLog adds an entry to the serialized error log list.
func (t *Transaction) AppendErrorLog(entry TransactionErrorLog) error {
	logs, err := t.DecodeErrorLogs()
	if err != nil {
		return err
	}
	logs = append(logs, entry)
	data, err := json.Marshal(logs)
	if err != nil {
		return err
	}
	t.ErrorLogs = data
	return nil
}
