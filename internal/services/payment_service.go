package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/example/thtstore/internal/config"
	"github.com/example/thtstore/internal/models"
	"github.com/example/thtstore/internal/realtime"
)

var (
	// ErrTransactionNotFound means no transaction matches the given key.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrNoBankAccount means neither the request nor configuration supplied
	// a bank account for QR generation.
	ErrNoBankAccount = errors.New("no bank account available for transaction")
)

// TransactionStore is the persistence boundary of the payment workflow.
// The store exclusively owns transaction rows; rows are never deleted.
type TransactionStore interface {
	Create(ctx context.Context, txn *models.Transaction) error
	FindByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error)
	FindByReferenceCode(ctx context.Context, code string) (*models.Transaction, error)
	SetOutcome(ctx context.Context, transactionID string, status models.PaymentStatus, qrURL, checkoutURL string) error
	RecordFailure(ctx context.Context, transactionID string, entry models.TransactionErrorLog) error
	// ApplyStatus performs a conditional status update that no-ops when the
	// row already reached a terminal state. Reports whether the update
	// actually happened.
	ApplyStatus(ctx context.Context, transactionID string, status models.PaymentStatus, amount int64) (bool, error)
}

// EventPublisher broadcasts transaction state changes to connected clients.
type EventPublisher interface {
	Broadcast(event string, data interface{})
}

// EmailEnqueuer accepts outbound email for asynchronous delivery.
type EmailEnqueuer interface {
	Enqueue(ctx context.Context, msg EmailMessage) error
}

// TransactionUpdate is the realtime payload emitted on every state change.
type TransactionUpdate struct {
	TransactionID string               `json:"transactionId"`
	Status        models.PaymentStatus `json:"status"`
	QRCodeURL     string               `json:"qrCodeUrl,omitempty"`
	CheckoutURL   string               `json:"checkoutUrl,omitempty"`
	Error         string               `json:"error,omitempty"`
}

// PaymentService drives the payment transaction lifecycle: creation through
// the gateway adapter, webhook reconciliation, and status queries. All
// collaborators are injected.
type PaymentService struct {
	store      TransactionStore
	mail       EmailEnqueuer
	events     EventPublisher
	gateway    *GatewayClient
	cfg        *config.Config
	refPattern *regexp.Regexp
	log        *logrus.Logger
}

// NewPaymentService wires the payment workflow. In "api" mode a remote
// gateway client is constructed from configuration.
func NewPaymentService(store TransactionStore, mail EmailEnqueuer, events EventPublisher, cfg *config.Config, log *logrus.Logger) (*PaymentService, error) {
	pattern, err := regexp.Compile(cfg.RefPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction reference pattern %q: %w", cfg.RefPattern, err)
	}

	svc := &PaymentService{
		store:      store,
		mail:       mail,
		events:     events,
		cfg:        cfg,
		refPattern: pattern,
		log:        log,
	}

	if cfg.GatewayMode == config.GatewayModeAPI {
		svc.gateway = NewGatewayClient(cfg.GatewayBaseURL, cfg.GatewayClientID, cfg.GatewayAPIKey)
	}

	return svc, nil
}

// CreateTransactionRequest carries the client parameters for a new payment.
type CreateTransactionRequest struct {
	TransactionID string
	Amount        int64
	Description   string
	Items         []models.TransactionItem
	BankAccount   json.RawMessage
	CustomerEmail string
}

// CreateTransactionResult is returned to the client on success.
type CreateTransactionResult struct {
	TransactionID string
	QRCodeURL     string
	CheckoutURL   string
}

// CreateTransaction persists a PENDING transaction, asks the gateway adapter
// for payment URLs and records the outcome: CREATED with URLs, or FAILED
// with an error log entry. A realtime event is broadcast either way, so the
// row is never left PENDING once this returns.
func (s *PaymentService) CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*CreateTransactionResult, error) {
	meta := models.TransactionMetadata{
		Description:   req.Description,
		Items:         req.Items,
		BankAccount:   NormalizeBankAccount(req.BankAccount, s.cfg.FallbackBankAccount),
		CustomerEmail: req.CustomerEmail,
	}

	txn := models.Transaction{
		TransactionID: req.TransactionID,
		Status:        models.PaymentStatusPending,
		Amount:        req.Amount,
	}
	if err := txn.SetMetadata(meta); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, &txn); err != nil {
		return nil, fmt.Errorf("persist transaction: %w", err)
	}

	urls, err := s.buildPaymentURLs(ctx, req, meta)
	if err != nil {
		s.failTransaction(ctx, req.TransactionID, err)
		return nil, err
	}

	if err := s.store.SetOutcome(ctx, req.TransactionID, models.PaymentStatusCreated, urls.QRCodeURL, urls.CheckoutURL); err != nil {
		return nil, fmt.Errorf("record transaction outcome: %w", err)
	}

	s.events.Broadcast(realtime.EventTransactionUpdate, TransactionUpdate{
		TransactionID: req.TransactionID,
		Status:        models.PaymentStatusCreated,
		QRCodeURL:     urls.QRCodeURL,
		CheckoutURL:   urls.CheckoutURL,
	})

	return &CreateTransactionResult{
		TransactionID: req.TransactionID,
		QRCodeURL:     urls.QRCodeURL,
		CheckoutURL:   urls.CheckoutURL,
	}, nil
}

func (s *PaymentService) buildPaymentURLs(ctx context.Context, req CreateTransactionRequest, meta models.TransactionMetadata) (*GatewayURLs, error) {
	if s.gateway != nil {
		return s.gateway.CreatePaymentRequest(ctx, req.TransactionID, req.Amount, req.Description, req.Items)
	}

	if meta.BankAccount == "" {
		return nil, ErrNoBankAccount
	}

	params := url.Values{}
	params.Set("acc", meta.BankAccount)
	params.Set("bank", s.cfg.BankCode)
	params.Set("amount", strconv.FormatInt(req.Amount, 10))
	params.Set("des", req.TransactionID)

	return &GatewayURLs{
		QRCodeURL: fmt.Sprintf("%s/img?%s", s.cfg.QRBaseURL, params.Encode()),
	}, nil
}

func (s *PaymentService) failTransaction(ctx context.Context, transactionID string, cause error) {
	entry := models.TransactionErrorLog{
		Timestamp: time.Now(),
		Error:     cause.Error(),
	}
	if err := s.store.RecordFailure(ctx, transactionID, entry); err != nil {
		s.log.WithError(err).WithField("transaction_id", transactionID).Error("failed to record transaction failure")
	}

	s.log.WithError(cause).WithField("transaction_id", transactionID).Error("transaction creation failed")

	s.events.Broadcast(realtime.EventTransactionUpdate, TransactionUpdate{
		TransactionID: transactionID,
		Status:        models.PaymentStatusFailed,
		Error:         cause.Error(),
	})
}

// WebhookEvent is a provider callback normalized to one shape.
type WebhookEvent struct {
	// TransactionID is the explicit internal id, when the provider sends one.
	TransactionID string
	// ReferenceID is the provider-assigned id, used as the last-resort
	// lookup against stored metadata.
	ReferenceID string
	Status      models.PaymentStatus
	Amount      int64
	Description string
	Content     string
}

// WebhookResult reports what reconciliation did.
type WebhookResult struct {
	TransactionID string
	Status        models.PaymentStatus
	Applied       bool
}

// HandleWebhook reconciles a provider callback against the transaction
// store. Resolution order: explicit transaction id, then a reference token
// extracted from free text, then the stored provider reference code.
// Unknown transactions are rejected, never materialized. Terminal rows are
// final: a re-delivered webhook no-ops and triggers no side effects, so the
// confirmation email is enqueued at most once per transaction.
func (s *PaymentService) HandleWebhook(ctx context.Context, evt WebhookEvent) (*WebhookResult, error) {
	txn, err := s.resolveTransaction(ctx, evt)
	if err != nil {
		return nil, err
	}

	applied := false
	if !txn.Status.Terminal() {
		applied, err = s.store.ApplyStatus(ctx, txn.TransactionID, evt.Status, evt.Amount)
		if err != nil {
			return nil, fmt.Errorf("apply webhook status: %w", err)
		}
	}

	status := evt.Status
	if !applied {
		// Lost the race or the row was already terminal; report what is stored.
		current, err := s.store.FindByTransactionID(ctx, txn.TransactionID)
		if err == nil {
			status = current.Status
		}
		s.log.WithFields(logrus.Fields{
			"transaction_id": txn.TransactionID,
			"status":         status,
		}).Info("webhook ignored, transaction already settled")
	}

	if applied && evt.Status == models.PaymentStatusSuccess {
		s.enqueueConfirmation(ctx, txn, evt.Amount)
	}

	s.events.Broadcast(realtime.EventTransactionUpdate, TransactionUpdate{
		TransactionID: txn.TransactionID,
		Status:        status,
	})

	return &WebhookResult{
		TransactionID: txn.TransactionID,
		Status:        status,
		Applied:       applied,
	}, nil
}

func (s *PaymentService) resolveTransaction(ctx context.Context, evt WebhookEvent) (*models.Transaction, error) {
	if evt.TransactionID != "" {
		txn, err := s.store.FindByTransactionID(ctx, evt.TransactionID)
		if err == nil {
			return txn, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	text := evt.Description
	if text == "" {
		text = evt.Content
	}
	if text != "" {
		if ref := s.refPattern.FindString(text); ref != "" {
			txn, err := s.store.FindByTransactionID(ctx, ref)
			if err == nil {
				return txn, nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
		}
	}

	if evt.ReferenceID != "" {
		txn, err := s.store.FindByReferenceCode(ctx, evt.ReferenceID)
		if err == nil {
			return txn, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	s.log.WithFields(logrus.Fields{
		"transaction_id": evt.TransactionID,
		"reference_id":   evt.ReferenceID,
	}).Warn("webhook for unknown transaction rejected")

	return nil, ErrTransactionNotFound
}

func (s *PaymentService) enqueueConfirmation(ctx context.Context, txn *models.Transaction, amount int64) {
	meta, err := txn.DecodeMetadata()
	if err != nil {
		s.log.WithError(err).WithField("transaction_id", txn.TransactionID).Error("cannot decode transaction metadata")
		return
	}

	if meta.CustomerEmail == "" {
		s.log.WithField("transaction_id", txn.TransactionID).Warn("no customer email on transaction, skipping confirmation")
		return
	}

	msg := PaymentConfirmationEmail(txn.TransactionID, amount, meta)
	if err := s.mail.Enqueue(ctx, msg); err != nil {
		// Payment confirmation must not be blocked on email delivery.
		s.log.WithError(err).WithField("transaction_id", txn.TransactionID).Error("confirmation email enqueue failed")
		return
	}

	s.log.WithField("transaction_id", txn.TransactionID).Info("confirmation email enqueued")
}

// GetTransaction returns a transaction by its external id. Read-only.
func (s *PaymentService) GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error) {
	txn, err := s.store.FindByTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return txn, nil
}

// NormalizeBankAccount reduces the observed bank_account request shapes (a
// plain string, an object with one of several key names, or absent) to a
// single account number string, falling back to the configured account.
func NormalizeBankAccount(raw json.RawMessage, fallback string) string {
	if len(raw) == 0 {
		return fallback
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if str != "" {
			return str
		}
		return fallback
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, key := range []string{"account", "number", "id", "value"} {
			if v, ok := obj[key]; ok {
				if s, _ := v.(string); s != "" {
					return s
				}
			}
		}
	}

	return fallback
}
