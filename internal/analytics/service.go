// Package analytics folds order lifecycle events into Redis counters that back
// the admin dashboard.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/tapcard/cardshop/internal/kafka"
	"github.com/tapcard/cardshop/internal/logger"
	"github.com/tapcard/cardshop/internal/orders"
	"github.com/tapcard/cardshop/internal/redisx"
)

const dayLayout = "2006-01-02"

// ErrBadPayload marks an event whose payload cannot be decoded. Retrying it
// never helps.
var ErrBadPayload = errors.New("analytics: bad payload")

type Service struct {
	Redis       *redis.Client
	ServiceName string
}

// HandleLifecycleEvent is the consumer handler for the lifecycle topic.
func (s *Service) HandleLifecycleEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := kafkax.Decode(m.Value, &env); err != nil {
		// poison message; committing it is the only way forward
		logger.Error("drop undecodable event", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	_, err := s.Apply(ctx, env)
	if errors.Is(err, ErrBadPayload) {
		logger.Error("drop event with bad payload",
			zap.Int64("offset", m.Offset), zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	return err
}

// Apply records one event. Each event id is counted at most once; applied is
// false for duplicates and unknown event types.
func (s *Service) Apply(ctx context.Context, env orders.Envelope) (applied bool, err error) {
	if env.EventType != orders.EventTypeOrderCreated && env.EventType != orders.EventTypeOrderStatusChanged {
		return false, nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	fresh, err := s.Redis.SetNX(ctx, dkey, "1", redisx.TTLDedup).Result()
	if err != nil {
		return false, err
	}
	if !fresh {
		return false, nil
	}
	defer func() {
		if err != nil {
			// allow the redelivery to count it
			_ = s.Redis.Del(context.WithoutCancel(ctx), dkey).Err()
		}
	}()

	day := env.OccurredAt.UTC().Format(dayLayout)
	switch env.EventType {
	case orders.EventTypeOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		createdKey := fmt.Sprintf(redisx.KeyDailyCreated, day)
		_, err = s.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HIncrBy(ctx, redisx.KeyStatusCounts, string(orders.StatusPending), 1)
			pipe.HIncrBy(ctx, redisx.KeyEventCounts, "created", 1)
			pipe.HIncrBy(ctx, createdKey, string(p.OrderType), 1)
			pipe.Expire(ctx, createdKey, redisx.TTLDaily)
			return nil
		})
		if err != nil {
			return false, err
		}

	case orders.EventTypeOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		deliveredKey := fmt.Sprintf(redisx.KeyDailyDelivered, day)
		_, err = s.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HIncrBy(ctx, redisx.KeyStatusCounts, string(p.From), -1)
			pipe.HIncrBy(ctx, redisx.KeyStatusCounts, string(p.To), 1)
			pipe.HIncrBy(ctx, redisx.KeyEventCounts, string(p.Event), 1)
			if p.To == orders.StatusPaid {
				pipe.HIncrBy(ctx, redisx.KeyRevenue, p.Currency, p.TotalCents)
			}
			if p.To == orders.StatusDelivered {
				pipe.HIncrBy(ctx, deliveredKey, "count", 1)
				pipe.Expire(ctx, deliveredKey, redisx.TTLDaily)
			}
			return nil
		})
		if err != nil {
			return false, err
		}
	}

	logger.Debug("event counted",
		zap.String("event_id", env.EventID),
		zap.String("event_type", env.EventType),
		zap.String("order_id", env.CorrelationID),
	)
	return true, nil
}

type DayStat struct {
	Date         string `json:"date"`
	Created      int64  `json:"created"`
	Personalized int64  `json:"personalized"`
	Delivered    int64  `json:"delivered"`
}

type Report struct {
	Statuses map[string]int64 `json:"statuses"`
	Events   map[string]int64 `json:"events"`
	Revenue  map[string]int64 `json:"revenue_cents"`
	Days     []DayStat        `json:"days"`
}

// Report reads the counters, with one DayStat per day for the last days days
// ending at now.
func (s *Service) Report(ctx context.Context, days int, now time.Time) (Report, error) {
	if days <= 0 {
		days = 30
	}
	var (
		r   Report
		err error
	)
	if r.Statuses, err = s.hashInts(ctx, redisx.KeyStatusCounts); err != nil {
		return Report{}, err
	}
	if r.Events, err = s.hashInts(ctx, redisx.KeyEventCounts); err != nil {
		return Report{}, err
	}
	if r.Revenue, err = s.hashInts(ctx, redisx.KeyRevenue); err != nil {
		return Report{}, err
	}

	now = now.UTC()
	for i := days - 1; i >= 0; i-- {
		day := now.AddDate(0, 0, -i).Format(dayLayout)
		created, err := s.hashInts(ctx, fmt.Sprintf(redisx.KeyDailyCreated, day))
		if err != nil {
			return Report{}, err
		}
		delivered, err := s.hashInts(ctx, fmt.Sprintf(redisx.KeyDailyDelivered, day))
		if err != nil {
			return Report{}, err
		}
		d := DayStat{Date: day, Delivered: delivered["count"]}
		for typ, n := range created {
			d.Created += n
			if typ == string(orders.OrderTypePersonalized) {
				d.Personalized += n
			}
		}
		r.Days = append(r.Days, d)
	}
	return r, nil
}

func (s *Service) hashInts(ctx context.Context, key string) (map[string]int64, error) {
	raw, err := s.Redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s[%s]: %w", key, k, err)
		}
		out[k] = n
	}
	return out, nil
}
