package handlers

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/example/thtstore/internal/models"
	"github.com/example/thtstore/internal/services"
)

// PaymentHandler manages payment transaction endpoints.
type PaymentHandler struct {
	payments *services.PaymentService
	log      *logrus.Logger
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(payments *services.PaymentService, log *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, log: log}
}

type createTransactionRequest struct {
	TransactionID string                   `json:"transaction_id"`
	Amount        int64                    `json:"amount"`
	Description   string                   `json:"description"`
	Items         []models.TransactionItem `json:"items"`
	BankAccount   json.RawMessage          `json:"bank_account"`
	CustomerEmail string                   `json:"customerEmail"`
}

// CreateTransaction starts a new payment: the gateway adapter produces the
// payment URLs and the transaction is persisted as CREATED or FAILED.
func (h *PaymentHandler) CreateTransaction(c *fiber.Ctx) error {
	var req createTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.TransactionID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "transaction_id is required")
	}
	if req.Amount <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid amount")
	}

	result, err := h.payments.CreateTransaction(c.Context(), services.CreateTransactionRequest{
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
		Description:   req.Description,
		Items:         req.Items,
		BankAccount:   req.BankAccount,
		CustomerEmail: req.CustomerEmail,
	})
	if err != nil {
		// The id is echoed back so the client can correlate and poll later.
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success":       false,
			"error":         fmt.Sprintf("không thể tạo giao dịch: %v", err),
			"transactionId": req.TransactionID,
		})
	}

	resp := fiber.Map{
		"success":       true,
		"transactionId": result.TransactionID,
		"qrCodeUrl":     result.QRCodeURL,
	}
	if result.CheckoutURL != "" {
		resp["checkoutUrl"] = result.CheckoutURL
	}

	return c.JSON(resp)
}

// webhookRequest accepts both observed provider payload shapes: the
// canonical {transaction_id, status, amount} and the bank transfer
// {id, transferAmount, transferType, description|content}.
type webhookRequest struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`

	ID             json.RawMessage `json:"id"`
	TransferAmount int64           `json:"transferAmount"`
	TransferType   string          `json:"transferType"`
	Description    string          `json:"description"`
	Content        string          `json:"content"`
}

// Webhook ingests an asynchronous provider callback. Signature verification
// happens in middleware before this runs.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	var req webhookRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "dữ liệu webhook không hợp lệ")
	}

	evt, err := normalizeWebhook(req)
	if err != nil {
		h.log.WithError(err).Warn("malformed webhook payload")
		return fiber.NewError(fiber.StatusBadRequest, "dữ liệu webhook không hợp lệ")
	}

	result, err := h.payments.HandleWebhook(c.Context(), evt)
	if err != nil {
		if errors.Is(err, services.ErrTransactionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   "không tìm thấy giao dịch",
			})
		}
		return err
	}

	h.log.WithFields(logrus.Fields{
		"transaction_id": result.TransactionID,
		"status":         result.Status,
		"applied":        result.Applied,
	}).Info("webhook processed")

	return c.JSON(fiber.Map{
		"success": true,
		"message": "webhook nhận và xử lý thành công",
	})
}

func normalizeWebhook(req webhookRequest) (services.WebhookEvent, error) {
	if req.TransactionID != "" && req.Status != "" {
		status := models.PaymentStatus(req.Status)
		if !status.Valid() {
			return services.WebhookEvent{}, fmt.Errorf("unknown payment status %q", req.Status)
		}
		return services.WebhookEvent{
			TransactionID: req.TransactionID,
			Status:        status,
			Amount:        req.Amount,
		}, nil
	}

	if req.TransferType != "" && len(req.ID) > 0 {
		status := models.PaymentStatusPending
		if req.TransferType == "in" {
			status = models.PaymentStatusSuccess
		}
		return services.WebhookEvent{
			ReferenceID: rawToString(req.ID),
			Status:      status,
			Amount:      req.TransferAmount,
			Description: req.Description,
			Content:     req.Content,
		}, nil
	}

	return services.WebhookEvent{}, errors.New("unrecognized webhook payload shape")
}

// rawToString renders the provider id, which arrives as either a JSON
// string or a number.
func rawToString(raw json.RawMessage) string {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}

	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		return num.String()
	}

	return string(raw)
}

// GetTransaction returns the status of a transaction by its external id.
func (h *PaymentHandler) GetTransaction(c *fiber.Ctx) error {
	transactionID := c.Params("transactionId")

	txn, err := h.payments.GetTransaction(c.Context(), transactionID)
	if err != nil {
		if errors.Is(err, services.ErrTransactionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   "không tìm thấy giao dịch",
			})
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"transaction": fiber.Map{
			"id":        txn.TransactionID,
			"status":    txn.Status,
			"amount":    txn.Amount,
			"createdAt": txn.CreatedAt,
		},
	})
}
