package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleRetriesUntilSuccess(t *testing.T) {
	c := &Consumer{retryMin: time.Millisecond, retryMax: 2 * time.Millisecond}
	calls := 0
	h := func(_ context.Context, m kafka.Message) error {
		calls++
		if calls < 4 {
			return errors.New("redis down")
		}
		return nil
	}

	err := c.handle(context.Background(), 0, h, kafka.Message{Partition: 1, Offset: 7})
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
}

func TestHandleGivesUpOnlyWhenCancelled(t *testing.T) {
	c := &Consumer{retryMin: time.Millisecond, retryMax: time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	h := func(context.Context, kafka.Message) error {
		calls++
		if calls == 3 {
			cancel()
		}
		return errors.New("still failing")
	}

	err := c.handle(ctx, 0, h, kafka.Message{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, calls)
}
