package websockets

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	written []interface{}
	failErr error
	closed  bool
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	if c.failErr != nil {
		return c.failErr
	}
	c.written = append(c.written, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestHub(t *testing.T) {
	ctx := context.Background()
	msg := Message{
		Type:    MessageTypeCreditUpdate,
		Payload: CreditUpdatePayload{CustomerID: "c1", VendorID: "v1", Change: -400, AvailableCredit: 100},
	}

	t.Run("Publishes To All", func(t *testing.T) {
		hub := NewHub()
		a, b := &fakeConn{}, &fakeConn{}
		require.NoError(t, hub.AddConnection(ctx, "a", a))
		require.NoError(t, hub.AddConnection(ctx, "b", b))

		assert.NoError(t, hub.Publish(ctx, msg))

		assert.Equal(t, []interface{}{msg}, a.written)
		assert.Equal(t, []interface{}{msg}, b.written)
	})

	t.Run("Drops Stale Connections", func(t *testing.T) {
		hub := NewHub()
		good, stale := &fakeConn{}, &fakeConn{failErr: errors.New("broken pipe")}
		require.NoError(t, hub.AddConnection(ctx, "good", good))
		require.NoError(t, hub.AddConnection(ctx, "stale", stale))

		assert.NoError(t, hub.Publish(ctx, msg))

		assert.Equal(t, 1, hub.Len())
		assert.True(t, stale.closed)
		assert.Len(t, good.written, 1)
	})

	t.Run("Duplicate And Remove", func(t *testing.T) {
		hub := NewHub()
		require.NoError(t, hub.AddConnection(ctx, "a", &fakeConn{}))
		assert.Error(t, hub.AddConnection(ctx, "a", &fakeConn{}))

		assert.NoError(t, hub.RemoveConnection(ctx, "a"))
		assert.NoError(t, hub.RemoveConnection(ctx, "a"))
		assert.Equal(t, 0, hub.Len())
	})

	t.Run("NoOp", func(t *testing.T) {
		var p Publisher = &NoOpPublisher{}
		assert.NoError(t, p.Publish(ctx, msg))
	})
}
