package analytics

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tapcard/cardshop/internal/orders"
)

var day = time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return &Service{Redis: rdb, ServiceName: "analytics"}, mr
}

func created(orderID string, typ orders.OrderType) orders.Envelope {
	return orders.NewEnvelope(orders.EventTypeOrderCreated, "api", orderID, "", orders.OrderCreatedPayload{
		OrderID: orderID, OrderType: typ, Quantity: 1, TotalCents: 53000, Currency: "MAD",
	}, day)
}

func changed(orderID string, ev orders.Event, from, to orders.Status) orders.Envelope {
	return orders.NewEnvelope(orders.EventTypeOrderStatusChanged, "api", orderID, "", orders.OrderStatusChangedPayload{
		OrderID: orderID, Event: ev, From: from, To: to, TotalCents: 53000, Currency: "MAD",
	}, day)
}

func TestApplyCountsLifecycle(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	envs := []orders.Envelope{
		created("o1", orders.OrderTypeStandard),
		created("o2", orders.OrderTypePersonalized),
		changed("o1", orders.EventConfirm, orders.StatusPending, orders.StatusPaid),
		changed("o1", orders.EventStartProduction, orders.StatusPaid, orders.StatusInProduction),
		changed("o1", orders.EventShip, orders.StatusInProduction, orders.StatusShipped),
		changed("o1", orders.EventConfirmDelivery, orders.StatusShipped, orders.StatusDelivered),
		changed("o2", orders.EventReject, orders.StatusPending, orders.StatusRejected),
	}
	for _, env := range envs {
		applied, err := s.Apply(ctx, env)
		require.NoError(t, err)
		assert.True(t, applied)
	}

	r, err := s.Report(ctx, 2, day)
	require.NoError(t, err)
	assert.Equal(t, int64(0), r.Statuses["pending"])
	assert.Equal(t, int64(1), r.Statuses["delivered"])
	assert.Equal(t, int64(1), r.Statuses["rejected"])
	assert.Equal(t, int64(2), r.Events["created"])
	assert.Equal(t, int64(1), r.Events["reject"])
	assert.Equal(t, map[string]int64{"MAD": 53000}, r.Revenue)

	require.Len(t, r.Days, 2)
	assert.Equal(t, "2026-10-17", r.Days[0].Date)
	assert.Equal(t, DayStat{Date: "2026-10-18", Created: 2, Personalized: 1, Delivered: 1}, r.Days[1])
}

func TestApplyDeduplicatesByEventID(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	env := changed("o1", orders.EventConfirm, orders.StatusPending, orders.StatusPaid)

	applied, err := s.Apply(ctx, env)
	require.NoError(t, err)
	assert.True(t, applied)
	applied, err = s.Apply(ctx, env)
	require.NoError(t, err)
	assert.False(t, applied)

	r, err := s.Report(ctx, 1, day)
	require.NoError(t, err)
	assert.Equal(t, int64(53000), r.Revenue["MAD"])
}

func TestApplyReleasesDedupOnBadPayload(t *testing.T) {
	s, mr := newTestService(t)
	env := created("o1", orders.OrderTypeStandard)
	env.Payload = []byte(`{"quantity":"many"}`)

	_, err := s.Apply(context.Background(), env)
	require.ErrorIs(t, err, ErrBadPayload)
	assert.False(t, mr.Exists("dedup:analytics:"+env.EventID))

	// retrying cannot succeed, so the handler drops it
	b, err := json.Marshal(env)
	require.NoError(t, err)
	assert.NoError(t, s.HandleLifecycleEvent(context.Background(), kafkago.Message{Value: b}))
}

func TestHandleLifecycleEventReturnsRedisErrors(t *testing.T) {
	s, mr := newTestService(t)
	mr.Close()

	b, err := json.Marshal(created("o2", orders.OrderTypeStandard))
	require.NoError(t, err)
	assert.Error(t, s.HandleLifecycleEvent(context.Background(), kafkago.Message{Value: b}))
}

func TestHandleLifecycleEventSkipsPoisonMessages(t *testing.T) {
	s, _ := newTestService(t)

	err := s.HandleLifecycleEvent(context.Background(), kafkago.Message{Value: []byte("not json")})
	assert.NoError(t, err)

	b, err := json.Marshal(created("o9", orders.OrderTypeStandard))
	require.NoError(t, err)
	require.NoError(t, s.HandleLifecycleEvent(context.Background(), kafkago.Message{Value: b}))

	r, err := s.Report(context.Background(), 1, day)
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.Statuses["pending"])
}
