package csvx

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tapcard/cardshop/internal/orders"
)

func exportFixture() []orders.Order {
	created := time.Date(2026, 10, 1, 8, 30, 0, 0, time.UTC)
	paid := created.Add(2 * time.Hour)
	shipped := created.Add(48 * time.Hour)
	tn := "MA123456789"
	return []orders.Order{
		{
			OrderNumber: "NFC-261001-AAAAAA", ExternalID: "chk-1", Status: orders.StatusShipped,
			OrderType: orders.OrderTypePersonalized, Locale: "ar", CreatedAt: created,
			Customer: orders.Customer{Name: "Hajar, El Fassi", Phone: "+212600000001", Email: "hajar@example.com",
				Address: "3 \"Résidence\" Nour", City: "Fès", PostalCode: "30000", Country: "MA"},
			Card:     orders.CardConfig{Template: "modern", BackgroundType: "image", LogoURL: "https://cdn.example.com/l.png"},
			Quantity: 2, Currency: "MAD", UnitPriceCents: 90000, ShippingFeeCents: 3000, TotalPriceCents: 183000,
			MaintenancePlan: "pro", MaintenanceFeeCents: 9900,
			TrackingNumber: &tn, PaidAt: &paid, ProductionStartedAt: &paid, ShippedAt: &shipped,
		},
		{
			OrderNumber: "NFC-261001-BBBBBB", Status: orders.StatusPending, OrderType: orders.OrderTypeStandard,
			Locale: "fr", CreatedAt: created,
			Customer: orders.Customer{Name: "Karim", Phone: "0611223344", Address: "x", City: "Rabat", Country: "MA"},
			Card:     orders.CardConfig{Template: "classic"},
			Quantity: 1, Currency: "EUR", UnitPriceCents: 4500, ShippingFeeCents: 500, TotalPriceCents: 5000,
			MaintenancePlan: "none",
		},
	}
}

func TestOrdersRoundTrip(t *testing.T) {
	in := exportFixture()
	var buf bytes.Buffer
	require.NoError(t, ExportOrders(&buf, in))
	assert.True(t, strings.HasPrefix(buf.String(), bom+"order_number,"))

	recs, errs := ImportOrders(&buf)
	require.Empty(t, errs)
	require.Len(t, recs, len(in))

	for i, rec := range recs {
		want, got := in[i], rec.Order
		assert.Equal(t, i+2, rec.Line)
		assert.Equal(t, want.OrderNumber, got.OrderNumber)
		assert.Equal(t, want.ExternalID, got.ExternalID)
		assert.Equal(t, want.Status, got.Status)
		assert.Equal(t, want.OrderType, got.OrderType)
		assert.Equal(t, want.Customer, got.Customer)
		assert.Equal(t, want.Card, got.Card)
		assert.Equal(t, want.Quantity, got.Quantity)
		assert.Equal(t, want.Currency, got.Currency)
		assert.Equal(t, want.UnitPriceCents, got.UnitPriceCents)
		assert.Equal(t, want.ShippingFeeCents, got.ShippingFeeCents)
		assert.Equal(t, want.TotalPriceCents, got.TotalPriceCents)
		assert.Equal(t, want.MaintenanceFeeCents, got.MaintenanceFeeCents)
		assert.Equal(t, want.TrackingNumber, got.TrackingNumber)
		assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
		assert.Equal(t, want.PaidAt == nil, got.PaidAt == nil)
		if want.ShippedAt != nil {
			assert.True(t, want.ShippedAt.Equal(*got.ShippedAt))
		}
	}
}

func TestImportOrdersReportsRowsIndividually(t *testing.T) {
	src := "order_number,customer_name,customer_phone,quantity,currency,total,status\n" +
		"N1,Ali,0600,1,MAD,530.00,paid\n" +
		"N2,,0600,1,MAD,530,\n" +
		"N3,Sara,0600,0,MAD,530,\n" +
		"N4,Sara,0600,2,MAD,abc,\n" +
		"N5,Sara,0600,2,MAD,\"1 060,50\",archived\n" +
		"\n" +
		"N6,Yassine,0600,3,EUR,\"1 060,50\",\n"

	recs, errs := ImportOrders(strings.NewReader(src))

	require.Len(t, recs, 2)
	assert.Equal(t, "N1", recs[0].Order.OrderNumber)
	assert.Equal(t, int64(53000), recs[0].Order.TotalPriceCents)
	assert.Equal(t, orders.StatusPaid, recs[0].Order.Status)
	assert.Equal(t, int64(106050), recs[1].Order.TotalPriceCents)
	assert.Equal(t, orders.StatusPending, recs[1].Order.Status)

	require.Len(t, errs, 4)
	assert.Equal(t, RowError{Line: 3, Reason: "customer_name is required"}, errs[0])
	assert.Equal(t, 4, errs[1].Line)
	assert.Contains(t, errs[1].Reason, "quantity")
	assert.Equal(t, 5, errs[2].Line)
	assert.Contains(t, errs[2].Reason, "total")
	assert.Contains(t, errs[3].Reason, "archived")
}

func TestImportOrdersMissingColumns(t *testing.T) {
	recs, errs := ImportOrders(strings.NewReader("order_number,total\nN1,10\n"))
	assert.Nil(t, recs)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Reason, "customer_name")
	assert.Contains(t, errs[0].Error(), "line 1")
}

func TestImportEmptyFile(t *testing.T) {
	_, errs := ImportOrders(strings.NewReader(""))
	require.Len(t, errs, 1)
	assert.Equal(t, "empty file", errs[0].Reason)
}

func TestImportContacts(t *testing.T) {
	src := bom + "Prénom;Nom\n"
	// semicolon files are not supported; the header is a single unknown column
	_, errs := ImportContacts(strings.NewReader(src))
	require.Len(t, errs, 1)

	src = bom + "Prénom,Nom,E-mail,Téléphone,Société\n" +
		"Nadia,Alaoui,Nadia@Example.com,0612,Atlas SARL\n" +
		",Tazi,omar@example.com,,\n" +
		"Omar,Tazi,not-an-email,,\n" +
		"Rim,\"Ben \"\"Q\"\" Ali\",,,\n" +
		"Bad,\"unterminated,,,\n"

	cs, errs := ImportContacts(strings.NewReader(src))
	require.Len(t, cs, 2)
	assert.Equal(t, orders.Contact{FirstName: "Nadia", LastName: "Alaoui", Email: "nadia@example.com", Phone: "0612", Company: "Atlas SARL"}, cs[0])
	assert.Equal(t, `Ben "Q" Ali`, cs[1].LastName)

	require.GreaterOrEqual(t, len(errs), 3)
	assert.Equal(t, 3, errs[0].Line)
	assert.Contains(t, errs[0].Reason, "firstname failed required")
	assert.Equal(t, 4, errs[1].Line)
	assert.Contains(t, errs[1].Reason, "email")
	assert.Equal(t, 6, errs[2].Line)
}

func TestParseCents(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"500", 50000, true},
		{"500.5", 50050, true},
		{"500,50", 50050, true},
		{"1 200.00", 120000, true},
		{"0.001", 0, false},
		{"-3", 0, false},
		{"", 0, false},
		{"92233720368547758.08", 0, false},
		{"92233720368547758.07", 9223372036854775807, true},
	}
	for _, tt := range tests {
		got, err := parseCents(tt.in)
		if !tt.ok {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
