package middleware

import (
	"bytes"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func webhookTestApp(secret string) *fiber.App {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	app := fiber.New()
	app.Post("/webhook", WebhookSignature(secret, logger), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true})
	})
	return app
}

func TestWebhookSignatureDisabledWithoutSecret(t *testing.T) {
	app := webhookTestApp("")

	req := httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(`{"status":"SUCCESS"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestWebhookSignatureAccepted(t *testing.T) {
	secret := "topsecret"
	body := []byte(`{"status":"SUCCESS"}`)
	app := webhookTestApp(secret)

	req := httptest.NewRequest("POST", "/webhook", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", SignBody(secret, body))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestWebhookSignatureRejected(t *testing.T) {
	app := webhookTestApp("topsecret")

	req := httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(`{"status":"SUCCESS"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", "deadbeef")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestWebhookSignatureMissingHeaderRejected(t *testing.T) {
	app := webhookTestApp("topsecret")

	req := httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestVerifySignature(t *testing.T) {
	secret := "s3cret"
	body := []byte("payload")

	sig := SignBody(secret, body)
	assert.True(t, VerifySignature(secret, body, sig))
	assert.False(t, VerifySignature(secret, []byte("tampered"), sig))
	assert.False(t, VerifySignature("wrong", body, sig))
}
