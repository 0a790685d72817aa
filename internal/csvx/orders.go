package csvx

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/tapcard/cardshop/internal/orders"
)

var orderHeader = []string{
	"order_number", "external_id", "status", "order_type", "locale", "created_at",
	"customer_name", "customer_phone", "customer_email",
	"address", "city", "postal_code", "country",
	"template", "background_type", "background_color", "logo_url",
	"quantity", "currency", "unit_price", "shipping_fee", "total",
	"maintenance_plan", "maintenance_fee",
	"tracking_number", "paid_at", "production_started_at", "shipped_at", "delivered_at", "rejected_at",
}

var orderRequired = []string{"order_number", "customer_name", "customer_phone", "quantity", "currency", "total"}

// ExportOrders writes one row per order. Amounts are major units with two
// decimals, timestamps RFC 3339 in UTC.
func ExportOrders(w io.Writer, list []orders.Order) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(orderHeader); err != nil {
		return err
	}
	for _, o := range list {
		tracking := ""
		if o.TrackingNumber != nil {
			tracking = *o.TrackingNumber
		}
		row := []string{
			o.OrderNumber, o.ExternalID, string(o.Status), string(o.OrderType), o.Locale, formatTime(&o.CreatedAt),
			o.Customer.Name, o.Customer.Phone, o.Customer.Email,
			o.Customer.Address, o.Customer.City, o.Customer.PostalCode, o.Customer.Country,
			o.Card.Template, o.Card.BackgroundType, o.Card.BackgroundColor, o.Card.LogoURL,
			strconv.Itoa(o.Quantity), o.Currency, formatCents(o.UnitPriceCents), formatCents(o.ShippingFeeCents), formatCents(o.TotalPriceCents),
			o.MaintenancePlan, formatCents(o.MaintenanceFeeCents),
			tracking, formatTime(o.PaidAt), formatTime(o.ProductionStartedAt), formatTime(o.ShippedAt), formatTime(o.DeliveredAt), formatTime(o.RejectedAt),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// OrderRecord is one imported row.
type OrderRecord struct {
	Line  int
	Order orders.Order
}

// ImportOrders parses an export. Rows that fail are reported in the second
// return value and skipped; the rest are returned.
func ImportOrders(r io.Reader) ([]OrderRecord, []RowError) {
	t, errs := openTable(r, orderAliases, orderRequired...)
	if t == nil {
		return nil, errs
	}
	var out []OrderRecord
	for {
		rec, rowErr, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			errs = append(errs, RowError{Line: rec.line, Reason: err.Error()})
			break
		}
		if rowErr != nil {
			errs = append(errs, *rowErr)
			continue
		}
		if rec.blank() {
			continue
		}
		o, reason := parseOrder(rec)
		if reason != "" {
			errs = append(errs, RowError{Line: rec.line, Reason: reason})
			continue
		}
		out = append(out, OrderRecord{Line: rec.line, Order: o})
	}
	return out, errs
}

var orderAliases = map[string]string{
	"numéro de commande": "order_number",
	"order number":       "order_number",
	"nom":                "customer_name",
	"name":               "customer_name",
	"téléphone":          "customer_phone",
	"phone":              "customer_phone",
	"email":              "customer_email",
	"e-mail":             "customer_email",
}

func parseOrder(rec record) (orders.Order, string) {
	o := orders.Order{
		OrderNumber: rec.get("order_number"),
		ExternalID:  rec.get("external_id"),
		Status:      orders.Status(rec.get("status")),
		OrderType:   orders.OrderType(rec.get("order_type")),
		Locale:      rec.get("locale"),
		Customer: orders.Customer{
			Name:       rec.get("customer_name"),
			Phone:      rec.get("customer_phone"),
			Email:      rec.get("customer_email"),
			Address:    rec.get("address"),
			City:       rec.get("city"),
			PostalCode: rec.get("postal_code"),
			Country:    rec.get("country"),
		},
		Card: orders.CardConfig{
			Template:        rec.get("template"),
			BackgroundType:  rec.get("background_type"),
			BackgroundColor: rec.get("background_color"),
			LogoURL:         rec.get("logo_url"),
		},
		Currency:        rec.get("currency"),
		MaintenancePlan: rec.get("maintenance_plan"),
	}
	for _, f := range []struct{ name, v string }{
		{"order_number", o.OrderNumber},
		{"customer_name", o.Customer.Name},
		{"customer_phone", o.Customer.Phone},
		{"currency", o.Currency},
	} {
		if f.v == "" {
			return o, f.name + " is required"
		}
	}
	if o.Status == "" {
		o.Status = orders.StatusPending
	}
	if !o.Status.Valid() {
		return o, "unknown status " + strconv.Quote(string(o.Status))
	}
	if o.OrderType == "" {
		o.OrderType = orders.OrderTypeStandard
	}
	if o.OrderType != orders.OrderTypeStandard && o.OrderType != orders.OrderTypePersonalized {
		return o, "unknown order type " + strconv.Quote(string(o.OrderType))
	}

	q, err := strconv.Atoi(rec.get("quantity"))
	if err != nil || q <= 0 {
		return o, "quantity must be a positive integer"
	}
	o.Quantity = q

	for _, f := range []struct {
		name     string
		dst      *int64
		required bool
	}{
		{"total", &o.TotalPriceCents, true},
		{"unit_price", &o.UnitPriceCents, false},
		{"shipping_fee", &o.ShippingFeeCents, false},
		{"maintenance_fee", &o.MaintenanceFeeCents, false},
	} {
		v := rec.get(f.name)
		if v == "" && !f.required {
			continue
		}
		c, err := parseCents(v)
		if err != nil {
			return o, f.name + ": " + err.Error()
		}
		*f.dst = c
	}

	if tn := rec.get("tracking_number"); tn != "" {
		o.TrackingNumber = &tn
	}
	for _, f := range []struct {
		name string
		dst  **time.Time
	}{
		{"paid_at", &o.PaidAt},
		{"production_started_at", &o.ProductionStartedAt},
		{"shipped_at", &o.ShippedAt},
		{"delivered_at", &o.DeliveredAt},
		{"rejected_at", &o.RejectedAt},
	} {
		v := rec.get(f.name)
		if v == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return o, f.name + ": invalid timestamp " + strconv.Quote(v)
		}
		*f.dst = &ts
	}
	if v := rec.get("created_at"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return o, "created_at: invalid timestamp " + strconv.Quote(v)
		}
		o.CreatedAt = ts
	}
	return o, ""
}
