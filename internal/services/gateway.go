package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/example/thtstore/internal/models"
)

// ErrMissingCredentials means the remote gateway credentials are absent from
// configuration. Surfaced before any network call is attempted.
var ErrMissingCredentials = errors.New("payment gateway credentials not configured")

// GatewayClient calls the remote payment service to create checkout links.
// The timeout is fixed: a slow gateway marks the attempt failed, retry is
// left to the client.
type GatewayClient struct {
	baseURL    string
	clientID   string
	apiKey     string
	httpClient *http.Client
}

// NewGatewayClient constructs a client for the remote payment API.
func NewGatewayClient(baseURL, clientID, apiKey string) *GatewayClient {
	return &GatewayClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		clientID:   clientID,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// GatewayURLs is the usable output of a successful payment request.
type GatewayURLs struct {
	CheckoutURL string
	QRCodeURL   string
}

type gatewayPaymentRequest struct {
	TransactionID string                   `json:"transactionId"`
	Amount        int64                    `json:"amount"`
	Description   string                   `json:"description,omitempty"`
	Items         []models.TransactionItem `json:"items,omitempty"`
}

type gatewayPaymentResponse struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
	Data struct {
		CheckoutURL string `json:"checkoutUrl"`
		QRCode      string `json:"qrCode"`
	} `json:"data"`
}

// CreatePaymentRequest asks the gateway for a checkout URL. Fails fast on
// missing credentials; network errors, non-2xx statuses and responses
// without a checkout URL are all surfaced as errors.
func (g *GatewayClient) CreatePaymentRequest(ctx context.Context, transactionID string, amount int64, description string, items []models.TransactionItem) (*GatewayURLs, error) {
	if g.clientID == "" || g.apiKey == "" {
		return nil, ErrMissingCredentials
	}

	payload, err := json.Marshal(gatewayPaymentRequest{
		TransactionID: transactionID,
		Amount:        amount,
		Description:   description,
		Items:         items,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway request marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v2/payment-requests", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("gateway request build: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-client-id", g.clientID)
	req.Header.Set("x-api-key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(body))
	}

	var result gatewayPaymentResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("gateway response unmarshal: %w", err)
	}

	if result.Code != "" && result.Code != "00" {
		return nil, fmt.Errorf("gateway rejected request: %s (%s)", result.Desc, result.Code)
	}

	if result.Data.CheckoutURL == "" {
		return nil, errors.New("gateway response missing checkout url")
	}

	return &GatewayURLs{
		CheckoutURL: result.Data.CheckoutURL,
		QRCodeURL:   result.Data.QRCode,
	}, nil
}
