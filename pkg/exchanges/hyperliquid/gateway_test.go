package hyperliquid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hl "github.com/sonirico/go-hyperliquid"

	"github.com/veiloq/exchange-service/pkg/exchange"
)

func TestAckFromStatusRestingOrder(t *testing.T) {
	// A GTC order that rests carries only Resting; Filled stays nil.
	ack, err := ackFromStatus(hl.OrderStatus{
		Resting: &hl.OrderStatusResting{Oid: 777, Status: "resting"},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(777), ack.OID)
	assert.False(t, ack.Filled)
	assert.Nil(t, ack.FilledQty)
	assert.Nil(t, ack.AvgPrice)
}

func TestAckFromStatusImmediateFill(t *testing.T) {
	ack, err := ackFromStatus(hl.OrderStatus{
		Filled: &hl.OrderStatusFilled{Oid: 42, TotalSz: "0.8", AvgPx: "50000.5"},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(42), ack.OID)
	assert.True(t, ack.Filled)
	require.NotNil(t, ack.FilledQty)
	assert.Equal(t, "0.8", ack.FilledQty.String())
	require.NotNil(t, ack.AvgPrice)
	assert.Equal(t, "50000.5", ack.AvgPrice.String())
}

func TestAckFromStatusVenueRejection(t *testing.T) {
	msg := "Insufficient margin to place order"
	_, err := ackFromStatus(hl.OrderStatus{Error: &msg})
	assert.ErrorIs(t, err, exchange.ErrInsufficientBalance)
}

func TestAckFromStatusEmptyAcknowledgment(t *testing.T) {
	_, err := ackFromStatus(hl.OrderStatus{})
	assert.ErrorIs(t, err, exchange.ErrExchange)
}
