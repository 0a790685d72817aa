package orders

import "time"

type OrderType string

const (
	OrderTypeStandard     OrderType = "standard"
	OrderTypePersonalized OrderType = "personalized"
)

// Customer is copied onto the order when it is placed and never synced back
// from a profile, so history stays accurate.
type Customer struct {
	Name       string `json:"name" validate:"required,max=200"`
	Phone      string `json:"phone" validate:"required,max=40"`
	Email      string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Address    string `json:"address" validate:"required,max=500"`
	City       string `json:"city" validate:"required,max=120"`
	PostalCode string `json:"postal_code" validate:"max=20"`
	Country    string `json:"country" validate:"required,max=80"`
}

// CardConfig is the card design captured at order time.
type CardConfig struct {
	Template        string `json:"template" validate:"required,max=64"`
	BackgroundType  string `json:"background_type" validate:"omitempty,oneof=color gradient image"`
	BackgroundColor string `json:"background_color" validate:"omitempty,max=32"`
	LogoURL         string `json:"logo_url,omitempty" validate:"omitempty,url,max=2048"`
}

type OrderItem struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// Note is one entry of an order's append-only admin log.
type Note struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type Order struct {
	ID          string    `json:"id"`
	ExternalID  string    `json:"external_id,omitempty"`
	OrderNumber string    `json:"order_number"`
	OrderType   OrderType `json:"order_type"`
	Status      Status    `json:"status"`
	Locale      string    `json:"locale"`

	Customer Customer   `json:"customer"`
	Card     CardConfig `json:"card"`

	Quantity            int         `json:"quantity"`
	Currency            string      `json:"currency"`
	UnitPriceCents      int64       `json:"unit_price_cents"`
	ShippingFeeCents    int64       `json:"shipping_fee_cents"`
	TotalPriceCents     int64       `json:"total_price_cents"`
	MaintenancePlan     string      `json:"maintenance_plan"`
	MaintenanceFeeCents int64       `json:"maintenance_fee_cents"`
	Items               []OrderItem `json:"order_items"`

	TrackingNumber      *string    `json:"tracking_number"`
	PaidAt              *time.Time `json:"paid_at"`
	ProductionStartedAt *time.Time `json:"production_started_at"`
	ShippedAt           *time.Time `json:"shipped_at"`
	DeliveredAt         *time.Time `json:"delivered_at"`
	RejectedAt          *time.Time `json:"rejected_at"`

	Notes     []Note    `json:"admin_notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TimestampFor returns the lifecycle timestamp recorded for entering s.
func (o *Order) TimestampFor(s Status) *time.Time {
	switch s {
	case StatusPaid:
		return o.PaidAt
	case StatusInProduction:
		return o.ProductionStartedAt
	case StatusShipped:
		return o.ShippedAt
	case StatusDelivered:
		return o.DeliveredAt
	case StatusRejected:
		return o.RejectedAt
	case StatusPending:
		t := o.CreatedAt
		return &t
	}
	return nil
}

func (o *Order) setTimestamp(s Status, at time.Time) {
	switch s {
	case StatusPaid:
		o.PaidAt = &at
	case StatusInProduction:
		o.ProductionStartedAt = &at
	case StatusShipped:
		o.ShippedAt = &at
	case StatusDelivered:
		o.DeliveredAt = &at
	case StatusRejected:
		o.RejectedAt = &at
	}
}

// PrintReady reports whether print files may be generated for the order.
func (o *Order) PrintReady() bool {
	return o.Status != StatusRejected && o.Status.Reached(StatusInProduction)
}

// Tracking is the public view served to customers by order number.
type Tracking struct {
	OrderNumber    string     `json:"order_number"`
	Status         Status     `json:"status"`
	TrackingNumber *string    `json:"tracking_number,omitempty"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	ShippedAt      *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (o *Order) Tracking() Tracking {
	return Tracking{
		OrderNumber:    o.OrderNumber,
		Status:         o.Status,
		TrackingNumber: o.TrackingNumber,
		PaidAt:         o.PaidAt,
		ShippedAt:      o.ShippedAt,
		DeliveredAt:    o.DeliveredAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

// Actor is the authenticated caller of an admin operation. It is passed to
// every operation explicitly.
type Actor struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (a Actor) Name() string {
	if a.Email != "" {
		return a.Email
	}
	if a.ID != "" {
		return a.ID
	}
	return "system"
}

// ListFilter narrows List. Zero Status means every status.
type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}
