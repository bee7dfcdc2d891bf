package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/thtstore/internal/models"
)

func TestGatewayClientMissingCredentials(t *testing.T) {
	client := NewGatewayClient("https://gateway.example.com", "", "")

	_, err := client.CreatePaymentRequest(context.Background(), "THT1", 10000, "", nil)
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestGatewayClientSuccess(t *testing.T) {
	var gotPath, gotClientID, gotAPIKey string
	var gotBody gatewayPaymentRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotClientID = r.Header.Get("x-client-id")
		gotAPIKey = r.Header.Get("x-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code": "00",
			"desc": "success",
			"data": map[string]string{
				"checkoutUrl": "https://pay.example.com/checkout/abc",
				"qrCode":      "https://pay.example.com/qr/abc",
			},
		})
	}))
	defer server.Close()

	client := NewGatewayClient(server.URL, "client-1", "key-1")
	urls, err := client.CreatePaymentRequest(context.Background(), "THT1", 50000, "don hang", []models.TransactionItem{
		{Name: "Áo thun", Quantity: 1, Price: 50000},
	})
	require.NoError(t, err)

	assert.Equal(t, "/v2/payment-requests", gotPath)
	assert.Equal(t, "client-1", gotClientID)
	assert.Equal(t, "key-1", gotAPIKey)
	assert.Equal(t, "THT1", gotBody.TransactionID)
	assert.Equal(t, int64(50000), gotBody.Amount)

	assert.Equal(t, "https://pay.example.com/checkout/abc", urls.CheckoutURL)
	assert.Equal(t, "https://pay.example.com/qr/abc", urls.QRCodeURL)
}

func TestGatewayClientNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewGatewayClient(server.URL, "client-1", "key-1")
	_, err := client.CreatePaymentRequest(context.Background(), "THT1", 10000, "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestGatewayClientRejectionCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code": "42",
			"desc": "merchant suspended",
		})
	}))
	defer server.Close()

	client := NewGatewayClient(server.URL, "client-1", "key-1")
	_, err := client.CreatePaymentRequest(context.Background(), "THT1", 10000, "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "merchant suspended")
}

func TestGatewayClientMissingCheckoutURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code": "00",
			"data": map[string]string{},
		})
	}))
	defer server.Close()

	client := NewGatewayClient(server.URL, "client-1", "key-1")
	_, err := client.CreatePaymentRequest(context.Background(), "THT1", 10000, "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing checkout url")
}
