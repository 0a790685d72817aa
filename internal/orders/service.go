package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tapcard/cardshop/internal/apperr"
	"github.com/tapcard/cardshop/internal/logger"
	"github.com/tapcard/cardshop/internal/pricing"
)

// RejectedNotePrefix marks the note written when an order is rejected.
const RejectedNotePrefix = "[REJETÉE]"

const maxNoteLen = 5000

var validate = validator.New()

// TrackingCache caches the public tracking view by order number. A miss
// returns nil and no error.
type TrackingCache interface {
	GetTracking(ctx context.Context, orderNumber string) (*Tracking, error)
	SetTracking(ctx context.Context, t Tracking) error
	InvalidateTracking(ctx context.Context, orderNumber string) error
}

type EventPublisher interface {
	PublishJSON(key []byte, v any) error
}

// Service is the admin action layer: it runs the state machine against the
// store and fires the side effects of committed transitions. Cache, Events
// and OnNotifyError are optional.
type Service struct {
	Store    Store
	Pricing  *pricing.Calculator
	Notifier Notifier
	Cache    TrackingCache
	Events   EventPublisher

	Producer      string
	DefaultLocale string
	Now           func() time.Time
	NewNumber     func(at time.Time) string
	OnNotifyError func(o *Order, ev NotificationEvent, err error)
}

// Outcome is the result of a mutating operation. NotifyErr is set when the
// change committed but its notification failed.
type Outcome struct {
	Order        *Order        `json:"order"`
	Replayed     bool          `json:"replayed,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	NotifyErr    error         `json:"-"`
}

// CreateRequest is a storefront checkout or a manual admin entry.
type CreateRequest struct {
	ExternalID string     `json:"external_id" validate:"omitempty,max=128"`
	Locale     string     `json:"locale" validate:"omitempty,max=35"`
	Customer   Customer   `json:"customer"`
	Card       CardConfig `json:"card"`

	CustomerType    pricing.CustomerType     `json:"customer_type" validate:"omitempty,oneof=individual professional bulk"`
	Tier            string                   `json:"tier" validate:"required"`
	Quantity        int                      `json:"quantity" validate:"min=1,max=10000"`
	AddOns          []pricing.AddOnSelection `json:"addons" validate:"max=50,dive"`
	MaintenancePlan string                   `json:"maintenance_plan"`
	Currency        string                   `json:"currency" validate:"required,len=3"`
	Elite           bool                     `json:"elite"`

	Note string `json:"note,omitempty" validate:"max=5000"`
}

func (r CreateRequest) Cart() pricing.Cart {
	return pricing.Cart{
		CustomerType:    r.CustomerType,
		Tier:            r.Tier,
		Quantity:        r.Quantity,
		AddOns:          r.AddOns,
		MaintenancePlan: r.MaintenancePlan,
		Currency:        r.Currency,
		Elite:           r.Elite,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// DefaultOrderNumber formats NFC-YYMMDD-XXXXXX.
func DefaultOrderNumber(at time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "NFC-" + at.Format("060102") + "-" + strings.ToUpper(id[:6])
}

func (s *Service) orderNumber(at time.Time) string {
	if s.NewNumber != nil {
		return s.NewNumber(at)
	}
	return DefaultOrderNumber(at)
}

// Quote prices a cart without persisting anything.
func (s *Service) Quote(cart pricing.Cart) (pricing.Quote, error) {
	return s.Pricing.Compute(cart)
}

// Create places a storefront order. A repeated external id returns the
// original order with Replayed set.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Outcome, error) {
	return s.create(ctx, req, nil)
}

// CreateManual places an order on behalf of a customer and records who did.
func (s *Service) CreateManual(ctx context.Context, actor Actor, req CreateRequest) (Outcome, error) {
	text := "Commande créée manuellement"
	if req.Note != "" {
		text += " : " + req.Note
	}
	return s.create(ctx, req, &actor, text)
}

func (s *Service) create(ctx context.Context, req CreateRequest, actor *Actor, notes ...string) (Outcome, error) {
	const op = "orders.Create"

	cart := req.Cart()
	if err := s.Pricing.Validate(cart); err != nil {
		return Outcome{}, err
	}
	if err := validate.Struct(req); err != nil {
		return Outcome{}, apperr.Validation(op, "%s", validationMessage(err))
	}

	if req.ExternalID != "" {
		existing, err := s.Store.FindByExternalID(ctx, req.ExternalID)
		switch {
		case err == nil:
			return Outcome{Order: existing, Replayed: true}, nil
		case !errors.Is(err, ErrNotFound):
			return Outcome{}, apperr.Persistence(op, err)
		}
	}

	q, err := s.Pricing.Compute(cart)
	if err != nil {
		return Outcome{}, err
	}

	now := s.now()
	o := &Order{
		ID:                  uuid.NewString(),
		ExternalID:          req.ExternalID,
		OrderType:           OrderTypeStandard,
		Status:              StatusPending,
		Locale:              s.locale(req.Locale),
		Customer:            trimCustomer(req.Customer),
		Card:                req.Card,
		Quantity:            req.Quantity,
		Currency:            q.Currency,
		UnitPriceCents:      q.Lines[0].UnitPrice,
		ShippingFeeCents:    q.ShippingFee,
		TotalPriceCents:     q.Total,
		MaintenancePlan:     q.MaintenancePlan,
		MaintenanceFeeCents: q.MaintenanceFee,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if req.Card.LogoURL != "" || req.Card.BackgroundType == "image" {
		o.OrderType = OrderTypePersonalized
	}
	for _, l := range q.Lines {
		o.Items = append(o.Items, OrderItem{ProductID: l.ID, Name: l.Name, Quantity: l.Quantity, UnitPriceCents: l.UnitPrice})
	}
	author := "storefront"
	if actor != nil {
		author = actor.Name()
	}
	for _, text := range notes {
		o.Notes = append(o.Notes, Note{ID: uuid.NewString(), Author: author, Text: text, CreatedAt: now})
	}

	const attempts = 3
	for i := 0; ; i++ {
		o.OrderNumber = s.orderNumber(now)
		err = s.Store.Create(ctx, o)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrDuplicate) || i == attempts-1 {
			return Outcome{}, apperr.Persistence(op, err)
		}
		if req.ExternalID != "" {
			if existing, ferr := s.Store.FindByExternalID(ctx, req.ExternalID); ferr == nil {
				return Outcome{Order: existing, Replayed: true}, nil
			}
		}
	}

	logger.Info("order created",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.String("order_type", string(o.OrderType)),
		zap.Int64("total_cents", o.TotalPriceCents),
		zap.String("currency", o.Currency),
	)
	s.publish(ctx, o.ID, EventTypeOrderCreated, OrderCreatedPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		OrderType:   o.OrderType,
		Quantity:    o.Quantity,
		TotalCents:  o.TotalPriceCents,
		Currency:    o.Currency,
	}, now)

	out := Outcome{Order: o}
	s.notify(ctx, o, NotifyOrderConfirmation, &out)
	return out, nil
}

func (s *Service) locale(requested string) string {
	l := strings.ToLower(strings.TrimSpace(requested))
	if l == "" {
		l = s.DefaultLocale
	}
	if l == "" {
		l = "fr"
	}
	return l
}

func trimCustomer(c Customer) Customer {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	return c
}

func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		msg := strings.ToLower(field) + " failed " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		parts = append(parts, msg)
	}
	return strings.Join(parts, "; ")
}

func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	o, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, storeErr("orders.Get", "order", id, err)
	}
	return o, nil
}

func (s *Service) GetByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	o, err := s.Store.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, storeErr("orders.GetByNumber", "order", orderNumber, err)
	}
	return o, nil
}

// Track serves the public tracking view, reading through the cache.
func (s *Service) Track(ctx context.Context, orderNumber string) (Tracking, error) {
	if s.Cache != nil {
		t, err := s.Cache.GetTracking(ctx, orderNumber)
		if err != nil {
			logger.Warn("tracking cache read failed", zap.String("order_number", orderNumber), zap.Error(err))
		}
		if t != nil {
			return *t, nil
		}
	}
	o, err := s.GetByNumber(ctx, orderNumber)
	if err != nil {
		return Tracking{}, err
	}
	t := o.Tracking()
	if s.Cache != nil {
		if err := s.Cache.SetTracking(ctx, t); err != nil {
			logger.Warn("tracking cache write failed", zap.String("order_number", orderNumber), zap.Error(err))
		}
	}
	return t, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Order, error) {
	const op = "orders.List"
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation(op, "unknown status %q", f.Status)
	}
	if f.Limit < 0 || f.Offset < 0 {
		return nil, apperr.Validation(op, "limit and offset must not be negative")
	}
	out, err := s.Store.List(ctx, f)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	return out, nil
}

func (s *Service) Confirm(ctx context.Context, actor Actor, id string) (Outcome, error) {
	return s.transition(ctx, actor, id, EventConfirm, nil, "")
}

func (s *Service) StartProduction(ctx context.Context, actor Actor, id string) (Outcome, error) {
	return s.transition(ctx, actor, id, EventStartProduction, nil, "")
}

// Ship moves an order to shipped. An empty tracking number leaves it unset.
func (s *Service) Ship(ctx context.Context, actor Actor, id, tracking string) (Outcome, error) {
	var tn *string
	if t := strings.TrimSpace(tracking); t != "" {
		tn = &t
	}
	return s.transition(ctx, actor, id, EventShip, tn, "")
}

func (s *Service) ConfirmDelivery(ctx context.Context, actor Actor, id string) (Outcome, error) {
	return s.transition(ctx, actor, id, EventConfirmDelivery, nil, "")
}

// Reject closes a pending order. The reason is kept as a note that starts
// with RejectedNotePrefix.
func (s *Service) Reject(ctx context.Context, actor Actor, id, reason string) (Outcome, error) {
	text := RejectedNotePrefix
	if r := strings.TrimSpace(reason); r != "" {
		text += " " + r
	}
	return s.transition(ctx, actor, id, EventReject, nil, text)
}

func (s *Service) transition(ctx context.Context, actor Actor, id string, ev Event, tracking *string, noteText string) (Outcome, error) {
	op := "orders." + string(ev)

	o, err := s.Get(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	from := o.Status
	to, err := Next(from, ev)
	if err != nil {
		return Outcome{}, err
	}

	at := s.now()
	u := TransitionUpdate{OrderID: o.ID, From: from, To: to, At: at, TrackingNumber: tracking}
	if noteText != "" {
		u.Note = &Note{ID: uuid.NewString(), Author: actor.Name(), Text: noteText, CreatedAt: at}
	}
	if err := s.Store.ApplyTransition(ctx, u); err != nil {
		if errors.Is(err, ErrConflict) {
			// lost the race; report the guard that now fails
			return Outcome{}, apperr.InvalidTransition(op, transitions[ev].precondition)
		}
		return Outcome{}, storeErr(op, "order", id, err)
	}

	o.Status = to
	o.setTimestamp(to, at)
	o.UpdatedAt = at
	if tracking != nil {
		o.TrackingNumber = tracking
	}
	if u.Note != nil {
		o.Notes = append(o.Notes, *u.Note)
	}

	logger.Info("order status changed",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.String("event", string(ev)),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor", actor.Name()),
	)
	s.invalidate(ctx, o.OrderNumber)
	s.publish(ctx, o.ID, EventTypeOrderStatusChanged, OrderStatusChangedPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Event:       ev,
		From:        from,
		To:          to,
		Actor:       actor.Name(),
		TotalCents:  o.TotalPriceCents,
		Currency:    o.Currency,
	}, at)

	out := Outcome{Order: o}
	if nev, ok := notificationFor[to]; ok {
		s.notify(ctx, o, nev, &out)
	}
	return out, nil
}

// AddNote appends to the admin log. Notes are never edited in place.
func (s *Service) AddNote(ctx context.Context, actor Actor, id, text string) (Note, error) {
	const op = "orders.AddNote"
	text = strings.TrimSpace(text)
	if text == "" {
		return Note{}, apperr.Validation(op, "note text is required")
	}
	if len(text) > maxNoteLen {
		return Note{}, apperr.Validation(op, "note is longer than %d bytes", maxNoteLen)
	}
	n := Note{ID: uuid.NewString(), Author: actor.Name(), Text: text, CreatedAt: s.now()}
	if err := s.Store.AppendNote(ctx, id, n); err != nil {
		return Note{}, storeErr(op, "order", id, err)
	}
	return n, nil
}

// UpdateTracking corrects the tracking number of a shipped or delivered order.
func (s *Service) UpdateTracking(ctx context.Context, actor Actor, id, tracking string) (*Order, error) {
	const op = "orders.UpdateTracking"
	tracking = strings.TrimSpace(tracking)
	if tracking == "" {
		return nil, apperr.Validation(op, "tracking number is required")
	}
	at := s.now()
	err := s.Store.UpdateTracking(ctx, id, tracking, []Status{StatusShipped, StatusDelivered}, at)
	if errors.Is(err, ErrConflict) {
		return nil, apperr.InvalidTransition(op, "cannot set a tracking number before the order has shipped")
	}
	if err != nil {
		return nil, storeErr(op, "order", id, err)
	}
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	logger.Info("tracking number updated",
		zap.String("order_number", o.OrderNumber), zap.String("actor", actor.Name()))
	s.invalidate(ctx, o.OrderNumber)
	return o, nil
}

// Notify re-sends a message for an order. Unlike transitions, a transport
// failure is returned as the error.
func (s *Service) Notify(ctx context.Context, actor Actor, id string, ev NotificationEvent, locale string) (Notification, error) {
	const op = "orders.Notify"
	if !ev.Valid() {
		return Notification{}, apperr.Validation(op, "unknown notification event %q", ev)
	}
	o, err := s.Get(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if locale == "" {
		locale = o.Locale
	}
	logger.Info("manual notification",
		zap.String("order_number", o.OrderNumber), zap.String("event", string(ev)), zap.String("actor", actor.Name()))
	return s.Notifier.Notify(ctx, o, ev, locale)
}

// PrintSpec is what the print shop needs to produce the cards.
type PrintSpec struct {
	OrderNumber     string    `json:"order_number"`
	OrderType       OrderType `json:"order_type"`
	Quantity        int       `json:"quantity"`
	Template        string    `json:"template"`
	BackgroundType  string    `json:"background_type"`
	BackgroundColor string    `json:"background_color"`
	LogoURL         string    `json:"logo_url,omitempty"`
	Name            string    `json:"name"`
	Phone           string    `json:"phone"`
	Email           string    `json:"email,omitempty"`
}

// PrintFile is available once production has started.
func (s *Service) PrintFile(ctx context.Context, id string) (PrintSpec, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return PrintSpec{}, err
	}
	if !o.PrintReady() {
		return PrintSpec{}, apperr.InvalidTransition("orders.PrintFile", "cannot generate print files before production has started")
	}
	return PrintSpec{
		OrderNumber:     o.OrderNumber,
		OrderType:       o.OrderType,
		Quantity:        o.Quantity,
		Template:        o.Card.Template,
		BackgroundType:  o.Card.BackgroundType,
		BackgroundColor: o.Card.BackgroundColor,
		LogoURL:         o.Card.LogoURL,
		Name:            o.Customer.Name,
		Phone:           o.Customer.Phone,
		Email:           o.Customer.Email,
	}, nil
}

func (s *Service) notify(ctx context.Context, o *Order, ev NotificationEvent, out *Outcome) {
	if s.Notifier == nil {
		return
	}
	res, err := s.Notifier.Notify(ctx, o, ev, o.Locale)
	out.Notification = &res
	if err == nil {
		return
	}
	out.NotifyErr = err
	logger.Error("notification failed after commit",
		zap.String("order_number", o.OrderNumber),
		zap.String("event", string(ev)),
		zap.Error(err),
	)
	if s.OnNotifyError != nil {
		s.OnNotifyError(o, ev, err)
	}
}

func (s *Service) invalidate(ctx context.Context, orderNumber string) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.InvalidateTracking(ctx, orderNumber); err != nil {
		logger.Warn("tracking cache invalidate failed", zap.String("order_number", orderNumber), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, orderID, eventType string, payload any, at time.Time) {
	if s.Events == nil {
		return
	}
	env := NewEnvelope(eventType, s.Producer, orderID, TraceID(ctx), payload, at)
	if err := s.Events.PublishJSON(PartitionKey(orderID), env); err != nil {
		logger.Warn("publish order event failed",
			zap.String("order_id", orderID), zap.String("event_type", eventType), zap.Error(err))
	}
}

func storeErr(op, what, id string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound(op, what, id)
	}
	return apperr.Persistence(op, fmt.Errorf("%s %s: %w", what, id, err))
}

type traceKey struct{}

// WithTraceID attaches a request id that is copied onto published events.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
