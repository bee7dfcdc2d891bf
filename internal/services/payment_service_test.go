package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/thtstore/internal/config"
	"github.com/example/thtstore/internal/models"
)

type fakeStore struct {
	mu   sync.Mutex
	txns map[string]*models.Transaction
}

func newFakeStore() *fakeStore {
	return &fakeStore{txns: make(map[string]*models.Transaction)}
}

func (s *fakeStore) Create(_ context.Context, txn *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txns[txn.TransactionID]; ok {
		return fmt.Errorf("duplicate transaction %s", txn.TransactionID)
	}
	copy := *txn
	s.txns[txn.TransactionID] = &copy
	return nil
}

func (s *fakeStore) FindByTransactionID(_ context.Context, transactionID string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.txns[transactionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copy := *txn
	return &copy, nil
}

func (s *fakeStore) FindByReferenceCode(_ context.Context, code string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, txn := range s.txns {
		meta, err := txn.DecodeMetadata()
		if err != nil {
			continue
		}
		if meta.ReferenceCode != "" && meta.ReferenceCode == code {
			copy := *txn
			return &copy, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeStore) SetOutcome(_ context.Context, transactionID string, status models.PaymentStatus, qrURL, checkoutURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.txns[transactionID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	txn.Status = status
	txn.QRCodeURL = qrURL
	txn.CheckoutURL = checkoutURL
	return nil
}

func (s *fakeStore) RecordFailure(_ context.Context, transactionID string, entry models.TransactionErrorLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.txns[transactionID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if err := txn.AppendErrorLog(entry); err != nil {
		return err
	}
	txn.Status = models.PaymentStatusFailed
	return nil
}

func (s *fakeStore) ApplyStatus(_ context.Context, transactionID string, status models.PaymentStatus, amount int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.txns[transactionID]
	if !ok || txn.Status.Terminal() {
		return false, nil
	}
	txn.Status = status
	txn.Amount = amount
	return true, nil
}

type fakeMail struct {
	mu       sync.Mutex
	messages []EmailMessage
}

func (m *fakeMail) Enqueue(_ context.Context, msg EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *fakeMail) sent() []EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EmailMessage(nil), m.messages...)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []TransactionUpdate
}

func (p *fakePublisher) Broadcast(_ string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if update, ok := data.(TransactionUpdate); ok {
		p.events = append(p.events, update)
	}
}

func (p *fakePublisher) last() TransactionUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return TransactionUpdate{}
	}
	return p.events[len(p.events)-1]
}

func testConfig() *config.Config {
	return &config.Config{
		GatewayMode:         config.GatewayModeQR,
		QRBaseURL:           "https://qr.sepay.vn",
		BankCode:            "MBBank",
		FallbackBankAccount: "0123456789",
		RefPattern:          `THT\d+`,
	}
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestService(t *testing.T, cfg *config.Config) (*PaymentService, *fakeStore, *fakeMail, *fakePublisher) {
	t.Helper()
	store := newFakeStore()
	mail := &fakeMail{}
	events := &fakePublisher{}
	svc, err := NewPaymentService(store, mail, events, cfg, testLogger())
	require.NoError(t, err)
	return svc, store, mail, events
}

func seedTransaction(t *testing.T, store *fakeStore, id string, status models.PaymentStatus, meta models.TransactionMetadata) {
	t.Helper()
	txn := models.Transaction{TransactionID: id, Status: status, Amount: 50000}
	require.NoError(t, txn.SetMetadata(meta))
	require.NoError(t, store.Create(context.Background(), &txn))
}

func TestCreateTransactionBuildsQRCode(t *testing.T) {
	svc, store, _, events := newTestService(t, testConfig())

	result, err := svc.CreateTransaction(context.Background(), CreateTransactionRequest{
		TransactionID: "THT100",
		Amount:        150000,
		Description:   "don hang 100",
	})
	require.NoError(t, err)

	assert.Equal(t, "THT100", result.TransactionID)
	assert.Equal(t, "https://qr.sepay.vn/img?acc=0123456789&amount=150000&bank=MBBank&des=THT100", result.QRCodeURL)
	assert.Empty(t, result.CheckoutURL)

	stored, err := store.FindByTransactionID(context.Background(), "THT100")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCreated, stored.Status)
	assert.Equal(t, result.QRCodeURL, stored.QRCodeURL)

	assert.Equal(t, models.PaymentStatusCreated, events.last().Status)
}

func TestCreateTransactionUsesRequestBankAccount(t *testing.T) {
	svc, _, _, _ := newTestService(t, testConfig())

	result, err := svc.CreateTransaction(context.Background(), CreateTransactionRequest{
		TransactionID: "THT101",
		Amount:        99000,
		BankAccount:   json.RawMessage(`"9876543210"`),
	})
	require.NoError(t, err)
	assert.Contains(t, result.QRCodeURL, "acc=9876543210")
}

func TestCreateTransactionNoBankAccountFails(t *testing.T) {
	cfg := testConfig()
	cfg.FallbackBankAccount = ""
	svc, store, _, events := newTestService(t, cfg)

	_, err := svc.CreateTransaction(context.Background(), CreateTransactionRequest{
		TransactionID: "THT102",
		Amount:        10000,
	})
	require.ErrorIs(t, err, ErrNoBankAccount)

	stored, err := store.FindByTransactionID(context.Background(), "THT102")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, stored.Status)

	logs, err := stored.DecodeErrorLogs()
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Error, "no bank account")

	assert.Equal(t, models.PaymentStatusFailed, events.last().Status)
}

func TestCreateTransactionGatewayModeWithoutCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.GatewayMode = config.GatewayModeAPI
	svc, store, _, _ := newTestService(t, cfg)

	_, err := svc.CreateTransaction(context.Background(), CreateTransactionRequest{
		TransactionID: "THT103",
		Amount:        20000,
	})
	require.ErrorIs(t, err, ErrMissingCredentials)

	stored, err := store.FindByTransactionID(context.Background(), "THT103")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, stored.Status)
}

func TestHandleWebhookSuccessEnqueuesEmail(t *testing.T) {
	svc, store, mail, events := newTestService(t, testConfig())
	seedTransaction(t, store, "THT200", models.PaymentStatusCreated, models.TransactionMetadata{
		CustomerEmail: "khach@example.com",
		Items:         []models.TransactionItem{{Name: "Áo thun", Quantity: 2, Price: 120000}},
	})

	result, err := svc.HandleWebhook(context.Background(), WebhookEvent{
		TransactionID: "THT200",
		Status:        models.PaymentStatusSuccess,
		Amount:        240000,
	})
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, models.PaymentStatusSuccess, result.Status)

	messages := mail.sent()
	require.Len(t, messages, 1)
	assert.Equal(t, "khach@example.com", messages[0].To)
	assert.Contains(t, messages[0].Body, "THT200")
	assert.Contains(t, messages[0].Body, "Áo thun (x2): 120000 VND")

	assert.Equal(t, models.PaymentStatusSuccess, events.last().Status)
}

func TestHandleWebhookRedeliveryIsIdempotent(t *testing.T) {
	svc, store, mail, _ := newTestService(t, testConfig())
	seedTransaction(t, store, "THT201", models.PaymentStatusCreated, models.TransactionMetadata{
		CustomerEmail: "khach@example.com",
	})

	evt := WebhookEvent{TransactionID: "THT201", Status: models.PaymentStatusSuccess, Amount: 50000}

	first, err := svc.HandleWebhook(context.Background(), evt)
	require.NoError(t, err)
	assert.True(t, first.Applied)

	second, err := svc.HandleWebhook(context.Background(), evt)
	require.NoError(t, err)
	assert.False(t, second.Applied)
	assert.Equal(t, models.PaymentStatusSuccess, second.Status)

	assert.Len(t, mail.sent(), 1)
}

func TestHandleWebhookTerminalRowStaysFinal(t *testing.T) {
	svc, store, _, _ := newTestService(t, testConfig())
	seedTransaction(t, store, "THT202", models.PaymentStatusFailed, models.TransactionMetadata{})

	result, err := svc.HandleWebhook(context.Background(), WebhookEvent{
		TransactionID: "THT202",
		Status:        models.PaymentStatusSuccess,
		Amount:        50000,
	})
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Equal(t, models.PaymentStatusFailed, result.Status)

	stored, err := store.FindByTransactionID(context.Background(), "THT202")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, stored.Status)
}

func TestHandleWebhookResolvesFromDescription(t *testing.T) {
	svc, store, _, _ := newTestService(t, testConfig())
	seedTransaction(t, store, "THT300", models.PaymentStatusCreated, models.TransactionMetadata{})

	result, err := svc.HandleWebhook(context.Background(), WebhookEvent{
		ReferenceID: "bank-9981",
		Status:      models.PaymentStatusSuccess,
		Amount:      75000,
		Description: "chuyen khoan THT300 qua ngan hang",
	})
	require.NoError(t, err)
	assert.Equal(t, "THT300", result.TransactionID)
	assert.True(t, result.Applied)
}

func TestHandleWebhookResolvesFromContent(t *testing.T) {
	svc, store, _, _ := newTestService(t, testConfig())
	seedTransaction(t, store, "THT301", models.PaymentStatusCreated, models.TransactionMetadata{})

	result, err := svc.HandleWebhook(context.Background(), WebhookEvent{
		ReferenceID: "bank-9982",
		Status:      models.PaymentStatusSuccess,
		Amount:      75000,
		Content:     "TKThe :123, tai MBBank. THT301 GD tien vao",
	})
	require.NoError(t, err)
	assert.Equal(t, "THT301", result.TransactionID)
}

func TestHandleWebhookResolvesFromReferenceCode(t *testing.T) {
	svc, store, _, _ := newTestService(t, testConfig())
	seedTransaction(t, store, "THT302", models.PaymentStatusCreated, models.TransactionMetadata{
		ReferenceCode: "bank-5521",
	})

	result, err := svc.HandleWebhook(context.Background(), WebhookEvent{
		ReferenceID: "bank-5521",
		Status:      models.PaymentStatusSuccess,
		Amount:      30000,
		Description: "noi dung khong chua ma",
	})
	require.NoError(t, err)
	assert.Equal(t, "THT302", result.TransactionID)
}

func TestHandleWebhookUnknownTransaction(t *testing.T) {
	svc, _, mail, events := newTestService(t, testConfig())

	_, err := svc.HandleWebhook(context.Background(), WebhookEvent{
		ReferenceID: "bank-0000",
		Status:      models.PaymentStatusSuccess,
		Amount:      10000,
		Description: "NOPE",
	})
	require.ErrorIs(t, err, ErrTransactionNotFound)
	assert.Empty(t, mail.sent())
	assert.Empty(t, events.events)
}

func TestHandleWebhookNoEmailWithoutAddress(t *testing.T) {
	svc, store, mail, _ := newTestService(t, testConfig())
	seedTransaction(t, store, "THT303", models.PaymentStatusCreated, models.TransactionMetadata{})

	result, err := svc.HandleWebhook(context.Background(), WebhookEvent{
		TransactionID: "THT303",
		Status:        models.PaymentStatusSuccess,
		Amount:        5000,
	})
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Empty(t, mail.sent())
}

func TestGetTransactionNotFound(t *testing.T) {
	svc, _, _, _ := newTestService(t, testConfig())

	_, err := svc.GetTransaction(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestNormalizeBankAccount(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		fallback string
		want     string
	}{
		{name: "absent uses fallback", raw: "", fallback: "111", want: "111"},
		{name: "plain string", raw: `"222"`, fallback: "111", want: "222"},
		{name: "empty string uses fallback", raw: `""`, fallback: "111", want: "111"},
		{name: "object with account key", raw: `{"account":"333"}`, fallback: "111", want: "333"},
		{name: "object with number key", raw: `{"number":"444"}`, fallback: "111", want: "444"},
		{name: "object with id key", raw: `{"id":"555"}`, fallback: "111", want: "555"},
		{name: "object with value key", raw: `{"value":"666"}`, fallback: "111", want: "666"},
		{name: "object without known key", raw: `{"other":"777"}`, fallback: "111", want: "111"},
		{name: "no fallback", raw: "", fallback: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeBankAccount(json.RawMessage(tt.raw), tt.fallback)
			assert.Equal(t, tt.want, got)
		})
	}
}
