// Package orderstest provides an in-memory orders.Store for tests.
package orderstest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tapcard/cardshop/internal/orders"
)

type MemStore struct {
	mu     sync.Mutex
	orders map[string]*orders.Order

	// Err, when set, is returned by every call.
	Err error
	// Transitions counts successful ApplyTransition calls.
	Transitions int
}

var _ orders.Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{orders: map[string]*orders.Order{}}
}

// Put stores a copy of o as is, bypassing every check.
func (m *MemStore) Put(o *orders.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = clone(o)
}

func clone(o *orders.Order) *orders.Order {
	c := *o
	c.Items = append([]orders.OrderItem(nil), o.Items...)
	c.Notes = append([]orders.Note(nil), o.Notes...)
	for _, p := range []**time.Time{&c.PaidAt, &c.ProductionStartedAt, &c.ShippedAt, &c.DeliveredAt, &c.RejectedAt} {
		if *p != nil {
			t := **p
			*p = &t
		}
	}
	if o.TrackingNumber != nil {
		t := *o.TrackingNumber
		c.TrackingNumber = &t
	}
	return &c
}

func (m *MemStore) Create(_ context.Context, o *orders.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, x := range m.orders {
		if x.ID == o.ID || x.OrderNumber == o.OrderNumber || (o.ExternalID != "" && x.ExternalID == o.ExternalID) {
			return fmt.Errorf("%w: %s", orders.ErrDuplicate, o.OrderNumber)
		}
	}
	m.orders[o.ID] = clone(o)
	return nil
}

func (m *MemStore) find(match func(*orders.Order) bool) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, o := range m.orders {
		if match(o) {
			return clone(o), nil
		}
	}
	return nil, orders.ErrNotFound
}

func (m *MemStore) Get(_ context.Context, id string) (*orders.Order, error) {
	return m.find(func(o *orders.Order) bool { return o.ID == id })
}

func (m *MemStore) GetByNumber(_ context.Context, n string) (*orders.Order, error) {
	return m.find(func(o *orders.Order) bool { return o.OrderNumber == n })
}

func (m *MemStore) FindByExternalID(_ context.Context, ext string) (*orders.Order, error) {
	return m.find(func(o *orders.Order) bool { return ext != "" && o.ExternalID == ext })
}

func (m *MemStore) List(_ context.Context, f orders.ListFilter) ([]orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []orders.Order
	for _, o := range m.orders {
		if f.Status == "" || o.Status == f.Status {
			out = append(out, *clone(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemStore) ApplyTransition(_ context.Context, u orders.TransitionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	o, ok := m.orders[u.OrderID]
	if !ok {
		return orders.ErrNotFound
	}
	if o.Status != u.From || o.TimestampFor(u.To) != nil {
		return fmt.Errorf("%w: now %s", orders.ErrConflict, o.Status)
	}
	at := u.At
	switch u.To {
	case orders.StatusPaid:
		o.PaidAt = &at
	case orders.StatusInProduction:
		o.ProductionStartedAt = &at
	case orders.StatusShipped:
		o.ShippedAt = &at
	case orders.StatusDelivered:
		o.DeliveredAt = &at
	case orders.StatusRejected:
		o.RejectedAt = &at
	}
	o.Status = u.To
	o.UpdatedAt = at
	if u.TrackingNumber != nil {
		t := *u.TrackingNumber
		o.TrackingNumber = &t
	}
	if u.Note != nil {
		o.Notes = append(o.Notes, *u.Note)
	}
	m.Transitions++
	return nil
}

func (m *MemStore) AppendNote(_ context.Context, orderID string, n orders.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	o, ok := m.orders[orderID]
	if !ok {
		return orders.ErrNotFound
	}
	o.Notes = append(o.Notes, n)
	return nil
}

func (m *MemStore) UpdateTracking(_ context.Context, orderID, tracking string, allowed []orders.Status, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	o, ok := m.orders[orderID]
	if !ok {
		return orders.ErrNotFound
	}
	for _, s := range allowed {
		if o.Status == s {
			o.TrackingNumber = &tracking
			o.UpdatedAt = at
			return nil
		}
	}
	return fmt.Errorf("%w: now %s", orders.ErrConflict, o.Status)
}
