package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/example/thtstore/internal/models"
)

// TransactionRepo is the GORM-backed transaction store.
type TransactionRepo struct {
	db *gorm.DB
}

// NewTransactionRepo constructs a TransactionRepo.
func NewTransactionRepo(db *gorm.DB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

// Create inserts a new transaction row.
func (r *TransactionRepo) Create(ctx context.Context, txn *models.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

// FindByTransactionID looks a transaction up by its external id.
func (r *TransactionRepo) FindByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// FindByReferenceCode looks a transaction up by the provider reference code
// stored in its metadata.
func (r *TransactionRepo) FindByReferenceCode(ctx context.Context, code string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).
		Where("metadata->>'reference_code' = ?", code).
		First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// SetOutcome records the gateway adapter result on the row.
func (r *TransactionRepo) SetOutcome(ctx context.Context, transactionID string, status models.PaymentStatus, qrURL, checkoutURL string) error {
	return r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("transaction_id = ?", transactionID).
		Updates(map[string]interface{}{
			"status":       status,
			"qr_code_url":  qrURL,
			"checkout_url": checkoutURL,
		}).Error
}

// RecordFailure marks the transaction FAILED and appends an error log entry.
func (r *TransactionRepo) RecordFailure(ctx context.Context, transactionID string, entry models.TransactionErrorLog) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txn models.Transaction
		if err := tx.Where("transaction_id = ?", transactionID).First(&txn).Error; err != nil {
			return err
		}

		if err := txn.AppendErrorLog(entry); err != nil {
			return err
		}

		return tx.Model(&models.Transaction{}).
			Where("transaction_id = ?", transactionID).
			Updates(map[string]interface{}{
				"status":     models.PaymentStatusFailed,
				"error_logs": txn.ErrorLogs,
			}).Error
	})
}

// ApplyStatus updates status and amount unless the row already reached a
// terminal state. The guard lives in the WHERE clause so concurrent webhook
// deliveries cannot both win.
func (r *TransactionRepo) ApplyStatus(ctx context.Context, transactionID string, status models.PaymentStatus, amount int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("transaction_id = ? AND status NOT IN ?", transactionID,
			[]models.PaymentStatus{models.PaymentStatusSuccess, models.PaymentStatusFailed}).
		Updates(map[string]interface{}{
			"status": status,
			"amount": amount,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
