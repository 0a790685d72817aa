package httpx_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tapcard/cardshop/internal/analytics"
	"github.com/tapcard/cardshop/internal/auth"
	"github.com/tapcard/cardshop/internal/httpx"
	"github.com/tapcard/cardshop/internal/orders"
	"github.com/tapcard/cardshop/internal/orders/orderstest"
	"github.com/tapcard/cardshop/internal/pricing"
)

type stubNotifier struct {
	mu     sync.Mutex
	events []orders.NotificationEvent
	err    error
}

func (s *stubNotifier) Notify(_ context.Context, _ *orders.Order, ev orders.NotificationEvent, locale string) (orders.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return orders.Notification{Event: ev, Locale: locale}, s.err
}

type stubContacts struct {
	got []orders.Contact
}

func (s *stubContacts) Insert(_ context.Context, cs []orders.Contact) (int, error) {
	s.got = append(s.got, cs...)
	// pretend the first one already existed
	if len(cs) == 0 {
		return 0, nil
	}
	return len(cs) - 1, nil
}

type stubAnalytics struct {
	days int
}

func (s *stubAnalytics) Report(_ context.Context, days int, _ time.Time) (analytics.Report, error) {
	s.days = days
	return analytics.Report{Statuses: map[string]int64{"pending": 2}}, nil
}

var today = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

type env struct {
	srv      *httptest.Server
	svc      *orders.Service
	store    *orderstest.MemStore
	notifier *stubNotifier
	auth     *auth.Service
	contacts *stubContacts
	stats    *stubAnalytics
}

func newEnv(t *testing.T, burst int) *env {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret!"), bcrypt.MinCost)
	require.NoError(t, err)
	as, err := auth.NewService("test-secret", time.Hour, "admin@tapcard.ma", string(hash))
	require.NoError(t, err)

	e := &env{
		store:    orderstest.NewMemStore(),
		notifier: &stubNotifier{},
		auth:     as,
		contacts: &stubContacts{},
		stats:    &stubAnalytics{},
	}
	e.svc = &orders.Service{
		Store:         e.store,
		Pricing:       pricing.NewCalculator(pricing.DefaultCatalog()),
		Notifier:      e.notifier,
		DefaultLocale: "fr",
		Now:           func() time.Time { return today },
	}
	e.srv = httptest.NewServer(httpx.NewRouter(httpx.Deps{
		Orders:        e.svc,
		Auth:          as,
		Contacts:      e.contacts,
		Analytics:     e.stats,
		RatePerSecond: 0.001,
		RateBurst:     burst,
		Now:           func() time.Time { return today },
	}))
	t.Cleanup(e.srv.Close)
	return e
}

func (e *env) token(t *testing.T) string {
	t.Helper()
	tok, _, err := e.auth.Issue(orders.Actor{ID: "admin@tapcard.ma", Email: "admin@tapcard.ma", Role: auth.RoleAdmin})
	require.NoError(t, err)
	return tok
}

func (e *env) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func decode[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&v))
	return v
}

type outcome struct {
	Order             orders.Order         `json:"order"`
	Replayed          bool                 `json:"replayed"`
	Notification      *orders.Notification `json:"notification"`
	NotificationError string               `json:"notification_error"`
}

type errBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func checkout() orders.CreateRequest {
	return orders.CreateRequest{
		ExternalID: "cart-42",
		Customer: orders.Customer{
			Name: "Amina Benali", Phone: "+212612345678", Email: "amina@example.com",
			Address: "5 rue Atlas", City: "Marrakech", Country: "MA",
		},
		Card:     orders.CardConfig{Template: "modern", BackgroundType: "color", BackgroundColor: "#112233"},
		Tier:     "standard",
		Quantity: 1,
		AddOns:   []pricing.AddOnSelection{{ID: "seo"}},
		Currency: "EUR",
	}
}

func (e *env) placeOrder(t *testing.T) orders.Order {
	t.Helper()
	res := e.do(t, http.MethodPost, "/orders", "", checkout())
	require.Equal(t, http.StatusCreated, res.StatusCode)
	return decode[outcome](t, res).Order
}

func TestHealthz(t *testing.T) {
	e := newEnv(t, 10)
	res := e.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestCatalogDefaultsToMAD(t *testing.T) {
	e := newEnv(t, 10)

	res := e.do(t, http.MethodGet, "/catalog", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	view := decode[pricing.CatalogView](t, res)
	assert.Equal(t, "MAD", view.Currency)
	assert.Equal(t, int64(3000), view.ShippingFee)

	res = e.do(t, http.MethodGet, "/catalog?currency=gbp", "", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestQuoteMatchesCalculator(t *testing.T) {
	e := newEnv(t, 10)
	cart := checkout().Cart()
	want, err := e.svc.Quote(cart)
	require.NoError(t, err)

	res := e.do(t, http.MethodPost, "/quote", "", cart)
	require.Equal(t, http.StatusOK, res.StatusCode)
	got := decode[struct {
		Total        int64  `json:"total"`
		TotalDisplay string `json:"total_display"`
	}](t, res)
	assert.Equal(t, want.Total, got.Total)
	assert.Equal(t, pricing.FormatAmount(want.Total, "EUR"), got.TotalDisplay)
}

func TestQuoteRejectsUnknownFields(t *testing.T) {
	e := newEnv(t, 10)
	res := e.do(t, http.MethodPost, "/quote", "", `{"tier":"standard","discount":50}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestCheckoutIsIdempotentAndTrackable(t *testing.T) {
	e := newEnv(t, 10)

	first := e.placeOrder(t)
	assert.Equal(t, orders.StatusPending, first.Status)
	assert.Equal(t, []orders.NotificationEvent{orders.NotifyOrderConfirmation}, e.notifier.events)

	res := e.do(t, http.MethodPost, "/orders", "", checkout())
	require.Equal(t, http.StatusOK, res.StatusCode)
	again := decode[outcome](t, res)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.OrderNumber, again.Order.OrderNumber)

	res = e.do(t, http.MethodGet, "/orders/"+first.OrderNumber+"/track", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	tr := decode[orders.Tracking](t, res)
	assert.Equal(t, orders.StatusPending, tr.Status)

	res = e.do(t, http.MethodGet, "/orders/NFC-000000-ZZZZZZ/track", "", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestCheckoutValidationError(t *testing.T) {
	e := newEnv(t, 10)
	req := checkout()
	req.Customer.Phone = ""

	res := e.do(t, http.MethodPost, "/orders", "", req)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	body := decode[errBody](t, res)
	assert.Equal(t, "validation", body.Kind)
	assert.Contains(t, body.Error, "phone")
}

func TestCheckoutIsRateLimited(t *testing.T) {
	e := newEnv(t, 1)
	e.placeOrder(t)

	res := e.do(t, http.MethodPost, "/orders", "", checkout())
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)
	assert.Equal(t, "1", res.Header.Get("Retry-After"))
}

func TestForwardedHeadersDoNotResetTheLimit(t *testing.T) {
	e := newEnv(t, 1)

	for i, ip := range []string{"203.0.113.1", "203.0.113.2"} {
		raw, err := json.Marshal(checkout())
		require.NoError(t, err)
		req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/orders", bytes.NewReader(raw))
		require.NoError(t, err)
		req.Header.Set("X-Forwarded-For", ip)
		req.Header.Set("X-Real-IP", ip)
		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		res.Body.Close()
		if i == 0 {
			assert.Equal(t, http.StatusCreated, res.StatusCode)
		} else {
			assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)
		}
	}
}

func TestAdminRoutesNeedAnAdminToken(t *testing.T) {
	e := newEnv(t, 10)

	res := e.do(t, http.MethodGet, "/admin/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res = e.do(t, http.MethodGet, "/admin/orders", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	viewer, _, err := e.auth.Issue(orders.Actor{ID: "v", Email: "v@tapcard.ma", Role: "viewer"})
	require.NoError(t, err)
	res = e.do(t, http.MethodGet, "/admin/orders", viewer, nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestLoginThenConfirm(t *testing.T) {
	e := newEnv(t, 10)
	o := e.placeOrder(t)

	res := e.do(t, http.MethodPost, "/admin/login", "", map[string]string{"email": "admin@tapcard.ma", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res = e.do(t, http.MethodPost, "/admin/login", "", map[string]string{"email": "admin@tapcard.ma", "password": "s3cret!"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	sess := decode[auth.Session](t, res)
	require.NotEmpty(t, sess.Token)

	res = e.do(t, http.MethodPost, "/admin/orders/"+o.ID+"/confirm", sess.Token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	out := decode[outcome](t, res)
	assert.Equal(t, orders.StatusPaid, out.Order.Status)
	require.NotNil(t, out.Notification)
	assert.Equal(t, orders.NotifyPaymentConfirmed, out.Notification.Event)

	res = e.do(t, http.MethodPost, "/admin/orders/"+o.ID+"/confirm", sess.Token, nil)
	require.Equal(t, http.StatusConflict, res.StatusCode)
	assert.Equal(t, "invalid_transition", decode[errBody](t, res).Kind)
}

func TestLifecycleOverHTTP(t *testing.T) {
	e := newEnv(t, 10)
	tok := e.token(t)
	o := e.placeOrder(t)
	base := "/admin/orders/" + o.ID

	res := e.do(t, http.MethodGet, base+"/print-file", tok, nil)
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	for _, step := range []string{"/confirm", "/start-production"} {
		res = e.do(t, http.MethodPost, base+step, tok, nil)
		require.Equal(t, http.StatusOK, res.StatusCode, step)
	}

	res = e.do(t, http.MethodGet, base+"/print-file", tok, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "modern", decode[orders.PrintSpec](t, res).Template)

	res = e.do(t, http.MethodPost, base+"/ship", tok, map[string]string{"tracking_number": "MA123456789"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	shipped := decode[outcome](t, res)
	require.NotNil(t, shipped.Order.TrackingNumber)
	assert.Equal(t, "MA123456789", *shipped.Order.TrackingNumber)

	res = e.do(t, http.MethodPut, base+"/tracking", tok, map[string]string{"tracking_number": "MA987654321"})
	require.Equal(t, http.StatusOK, res.StatusCode)

	res = e.do(t, http.MethodPost, base+"/deliver", tok, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res = e.do(t, http.MethodGet, base, tok, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	final := decode[orders.Order](t, res)
	assert.Equal(t, orders.StatusDelivered, final.Status)
	assert.Equal(t, "MA987654321", *final.TrackingNumber)
	assert.NotNil(t, final.DeliveredAt)
}

func TestRejectWithoutBody(t *testing.T) {
	e := newEnv(t, 10)
	o := e.placeOrder(t)

	res := e.do(t, http.MethodPost, "/admin/orders/"+o.ID+"/reject", e.token(t), nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	out := decode[outcome](t, res)
	assert.Equal(t, orders.StatusRejected, out.Order.Status)
	assert.Nil(t, out.Notification)
}

func TestNotificationFailureIsReportedNotFatal(t *testing.T) {
	e := newEnv(t, 10)
	o := e.placeOrder(t)
	e.notifier.err = errors.New("provider down")

	res := e.do(t, http.MethodPost, "/admin/orders/"+o.ID+"/confirm", e.token(t), nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	out := decode[outcome](t, res)
	assert.Equal(t, orders.StatusPaid, out.Order.Status)
	assert.NotEmpty(t, out.NotificationError)
}

func TestNotesAndManualNotify(t *testing.T) {
	e := newEnv(t, 10)
	tok := e.token(t)
	o := e.placeOrder(t)

	res := e.do(t, http.MethodPost, "/admin/orders/"+o.ID+"/notes", tok, map[string]string{"text": "client rappelé"})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, "admin@tapcard.ma", decode[orders.Note](t, res).Author)

	res = e.do(t, http.MethodPost, "/admin/orders/"+o.ID+"/notify", tok, map[string]string{"event": "welcome", "locale": "ar"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, orders.NotifyWelcome, decode[orders.Notification](t, res).Event)

	res = e.do(t, http.MethodPost, "/admin/orders/"+o.ID+"/notify", tok, map[string]string{"event": "newsletter"})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestListValidatesQuery(t *testing.T) {
	e := newEnv(t, 10)
	tok := e.token(t)
	e.placeOrder(t)

	res := e.do(t, http.MethodGet, "/admin/orders?status=pending&limit=10", tok, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	page := decode[struct {
		Orders []orders.Order `json:"orders"`
		Limit  int            `json:"limit"`
	}](t, res)
	assert.Len(t, page.Orders, 1)
	assert.Equal(t, 10, page.Limit)

	res = e.do(t, http.MethodGet, "/admin/orders?status=lost", tok, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	res = e.do(t, http.MethodGet, "/admin/orders?limit=ten", tok, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestManualCreateKeepsNote(t *testing.T) {
	e := newEnv(t, 10)
	req := checkout()
	req.ExternalID = ""
	req.Note = "commande téléphonique"

	res := e.do(t, http.MethodPost, "/admin/orders", e.token(t), req)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	o := decode[outcome](t, res).Order
	require.Len(t, o.Notes, 1)
	assert.Contains(t, o.Notes[0].Text, "commande téléphonique")
}

func TestExportThenImportOrders(t *testing.T) {
	src := newEnv(t, 10)
	src.placeOrder(t)

	res := src.do(t, http.MethodGet, "/admin/orders/export.csv", src.token(t), nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", res.Header.Get("Content-Type"))
	assert.Contains(t, res.Header.Get("Content-Disposition"), "commandes-20261018.csv")
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("\ufeff")))

	dst := newEnv(t, 10)
	tok := dst.token(t)
	res = dst.do(t, http.MethodPost, "/admin/orders/import", tok, string(raw))
	require.Equal(t, http.StatusOK, res.StatusCode)
	body := decode[struct {
		Imported int `json:"imported"`
		Skipped  int `json:"skipped"`
	}](t, res)
	assert.Equal(t, 1, body.Imported)
	assert.Empty(t, dst.notifier.events)

	// a second import finds the order number taken
	res = dst.do(t, http.MethodPost, "/admin/orders/import", tok, string(raw))
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 1, decode[struct {
		Skipped int `json:"skipped"`
	}](t, res).Skipped)
}

func TestImportContactsMultipart(t *testing.T) {
	e := newEnv(t, 10)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "contacts.csv")
	require.NoError(t, err)
	_, err = io.WriteString(fw, "Prénom,Nom,Email\nSara,Alaoui,SARA@example.com\nOmar,Tazi,omar@example.com\n,Sans,x@example.com\n")
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/admin/contacts/import", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+e.token(t))
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	body := decode[struct {
		Inserted int `json:"inserted"`
		Skipped  int `json:"skipped"`
		Errors   []struct {
			Line int `json:"line"`
		} `json:"errors"`
	}](t, res)
	assert.Equal(t, 1, body.Inserted)
	assert.Equal(t, 1, body.Skipped)
	require.Len(t, body.Errors, 1)
	assert.Equal(t, 4, body.Errors[0].Line)
	require.Len(t, e.contacts.got, 2)
	assert.Equal(t, "sara@example.com", e.contacts.got[0].Email)
}

func TestAnalyticsReport(t *testing.T) {
	e := newEnv(t, 10)
	tok := e.token(t)

	res := e.do(t, http.MethodGet, "/admin/analytics?days=7", tok, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 7, e.stats.days)
	assert.Equal(t, int64(2), decode[analytics.Report](t, res).Statuses["pending"])

	res = e.do(t, http.MethodGet, "/admin/analytics?days=0", tok, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}
