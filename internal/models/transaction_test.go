package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentStatusValid(t *testing.T) {
	assert.True(t, PaymentStatusPending.Valid())
	assert.True(t, PaymentStatusCreated.Valid())
	assert.True(t, PaymentStatusSuccess.Valid())
	assert.True(t, PaymentStatusFailed.Valid())
	assert.False(t, PaymentStatus("COMPLETED").Valid())
	assert.False(t, PaymentStatus("").Valid())
}

func TestPaymentStatusTerminal(t *testing.T) {
	assert.False(t, PaymentStatusPending.Terminal())
	assert.False(t, PaymentStatusCreated.Terminal())
	assert.True(t, PaymentStatusSuccess.Terminal())
	assert.True(t, PaymentStatusFailed.Terminal())
}

func TestTransactionMetadataRoundTrip(t *testing.T) {
	var txn Transaction

	meta, err := txn.DecodeMetadata()
	require.NoError(t, err)
	assert.Empty(t, meta.CustomerEmail)

	require.NoError(t, txn.SetMetadata(TransactionMetadata{
		Description:   "don hang 1",
		CustomerEmail: "khach@example.com",
		ReferenceCode: "bank-77",
		Items:         []TransactionItem{{Name: "Áo thun", Quantity: 2, Price: 120000}},
	}))

	meta, err = txn.DecodeMetadata()
	require.NoError(t, err)
	assert.Equal(t, "khach@example.com", meta.CustomerEmail)
	assert.Equal(t, "bank-77", meta.ReferenceCode)
	require.Len(t, meta.Items, 1)
	assert.Equal(t, int64(120000), meta.Items[0].Price)
}

func TestAppendErrorLog(t *testing.T) {
	var txn Transaction

	logs, err := txn.DecodeErrorLogs()
	require.NoError(t, err)
	assert.Empty(t, logs)

	require.NoError(t, txn.AppendErrorLog(TransactionErrorLog{Timestamp: time.Now(), Error: "first"}))
	require.NoError(t, txn.AppendErrorLog(TransactionErrorLog{Timestamp: time.Now(), Error: "second"}))

	logs, err = txn.DecodeErrorLogs()
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "first", logs[0].Error)
	assert.Equal(t, "second", logs[1].Error)
}
