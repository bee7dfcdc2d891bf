package realtime

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpgradeRequired(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	hub := NewHub(logger)

	app := fiber.New()
	app.Use("/ws", UpgradeRequired)
	app.Get("/ws", hub.Handler())

	req := httptest.NewRequest("GET", "/ws", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestBroadcastWithoutClients(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	hub := NewHub(logger)

	// No clients connected: broadcasting must be a harmless no-op.
	hub.Broadcast(EventTransactionUpdate, map[string]string{"transactionId": "THT1"})
	assert.Equal(t, 0, hub.ClientCount())
}
