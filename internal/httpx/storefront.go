package httpx

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tapcard/cardshop/internal/apperr"
	"github.com/tapcard/cardshop/internal/orders"
	"github.com/tapcard/cardshop/internal/pricing"
)

type storefrontHandler struct {
	svc *orders.Service
}

func (h *storefrontHandler) Register(r chi.Router, limit func(http.Handler) http.Handler) {
	r.Get("/catalog", h.catalog)
	r.Post("/quote", h.quote)
	r.With(limit).Post("/orders", h.createOrder)
	r.Get("/orders/{number}/track", h.track)
}

func (h *storefrontHandler) catalog(w http.ResponseWriter, r *http.Request) {
	cur := strings.ToUpper(r.URL.Query().Get("currency"))
	if cur == "" {
		cur = "MAD"
	}
	view, ok := h.svc.Pricing.Catalog().View(cur)
	if !ok {
		writeError(w, r, apperr.NotFound("httpx.catalog", "currency", cur))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type quoteResponse struct {
	pricing.Quote
	TotalDisplay       string `json:"total_display"`
	MaintenanceDisplay string `json:"maintenance_display"`
}

func (h *storefrontHandler) quote(w http.ResponseWriter, r *http.Request) {
	var cart pricing.Cart
	if !decodeJSON(w, r, &cart) {
		return
	}
	q, err := h.svc.Quote(cart)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{
		Quote:              q,
		TotalDisplay:       pricing.FormatAmount(q.Total, q.Currency),
		MaintenanceDisplay: pricing.FormatAmount(q.MaintenanceFee, q.Currency),
	})
}

type outcomeResponse struct {
	Order             *orders.Order        `json:"order"`
	Replayed          bool                 `json:"replayed,omitempty"`
	Notification      *orders.Notification `json:"notification,omitempty"`
	NotificationError string               `json:"notification_error,omitempty"`
}

func toResponse(out orders.Outcome) outcomeResponse {
	resp := outcomeResponse{Order: out.Order, Replayed: out.Replayed, Notification: out.Notification}
	if out.NotifyErr != nil {
		resp.NotificationError = apperr.Message(out.NotifyErr)
	}
	return resp
}

func (h *storefrontHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.CreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	// the storefront cannot write admin notes
	req.Note = ""
	if req.Locale == "" {
		req.Locale = r.Header.Get("Accept-Language")
		if i := strings.IndexAny(req.Locale, ",;"); i >= 0 {
			req.Locale = req.Locale[:i]
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	out, err := h.svc.Create(ctx, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	code := http.StatusCreated
	if out.Replayed {
		code = http.StatusOK
	}
	writeJSON(w, code, toResponse(out))
}

func (h *storefrontHandler) track(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	t, err := h.svc.Track(ctx, number)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
