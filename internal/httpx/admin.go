package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tapcard/cardshop/internal/apperr"
	"github.com/tapcard/cardshop/internal/auth"
	"github.com/tapcard/cardshop/internal/csvx"
	"github.com/tapcard/cardshop/internal/logger"
	"github.com/tapcard/cardshop/internal/orders"
)

const (
	maxUpload    = 10 << 20
	defaultLimit = 50
	maxLimit     = 500
)

type adminHandler struct {
	svc       *orders.Service
	auth      Authenticator
	contacts  ContactStore
	analytics AnalyticsReader
	now       func() time.Time
}

func (h *adminHandler) Register(r chi.Router, limit func(http.Handler) http.Handler) {
	r.With(limit).Post("/admin/login", h.login)

	r.Group(func(r chi.Router) {
		r.Use(requireAdmin(h.auth))

		r.Get("/admin/orders", h.list)
		r.Post("/admin/orders", h.createManual)
		r.Get("/admin/orders/export.csv", h.exportCSV)
		r.Post("/admin/orders/import", h.importCSV)

		r.Route("/admin/orders/{id}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Post("/confirm", h.confirm)
			r.Post("/start-production", h.startProduction)
			r.Post("/ship", h.ship)
			r.Post("/deliver", h.deliver)
			r.Post("/reject", h.reject)
			r.Post("/notes", h.addNote)
			r.Put("/tracking", h.updateTracking)
			r.Post("/notify", h.notify)
			r.Get("/print-file", h.printFile)
		})

		r.Post("/admin/contacts/import", h.importContacts)
		r.Get("/admin/analytics", h.report)
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *adminHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			logger.Warn("admin login refused", zap.String("remote", r.RemoteAddr))
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid credentials"})
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.Validation("httpx.query", "%s must be an integer", name)
	}
	return n, nil
}

func listFilter(r *http.Request) (orders.ListFilter, error) {
	f := orders.ListFilter{Status: orders.Status(r.URL.Query().Get("status"))}
	var err error
	if f.Limit, err = queryInt(r, "limit", defaultLimit); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(r, "offset", 0); err != nil {
		return f, err
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	return f, nil
}

func (h *adminHandler) list(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.svc.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": list, "limit": f.Limit, "offset": f.Offset})
}

func (h *adminHandler) createManual(w http.ResponseWriter, r *http.Request) {
	var req orders.CreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.svc.CreateManual(r.Context(), actorFrom(r), req)
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

func (h *adminHandler) get(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *adminHandler) confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, a orders.Actor, id string) (orders.Outcome, error) {
		return h.svc.Confirm(ctx, a, id)
	})
}

func (h *adminHandler) startProduction(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, a orders.Actor, id string) (orders.Outcome, error) {
		return h.svc.StartProduction(ctx, a, id)
	})
}

type shipRequest struct {
	TrackingNumber string `json:"tracking_number"`
}

func (h *adminHandler) ship(w http.ResponseWriter, r *http.Request) {
	var req shipRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	h.transition(w, r, func(ctx context.Context, a orders.Actor, id string) (orders.Outcome, error) {
		return h.svc.Ship(ctx, a, id, req.TrackingNumber)
	})
}

func (h *adminHandler) deliver(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, a orders.Actor, id string) (orders.Outcome, error) {
		return h.svc.ConfirmDelivery(ctx, a, id)
	})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *adminHandler) reject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	h.transition(w, r, func(ctx context.Context, a orders.Actor, id string) (orders.Outcome, error) {
		return h.svc.Reject(ctx, a, id, req.Reason)
	})
}

func (h *adminHandler) transition(w http.ResponseWriter, r *http.Request, do func(context.Context, orders.Actor, string) (orders.Outcome, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	out, err := do(ctx, actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(out))
}

type noteRequest struct {
	Text string `json:"text"`
}

func (h *adminHandler) addNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.svc.AddNote(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *adminHandler) updateTracking(w http.ResponseWriter, r *http.Request) {
	var req shipRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	o, err := h.svc.UpdateTracking(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req.TrackingNumber)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type notifyRequest struct {
	Event  orders.NotificationEvent `json:"event"`
	Locale string                   `json:"locale"`
}

func (h *adminHandler) notify(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	n, err := h.svc.Notify(ctx, actorFrom(r), chi.URLParam(r, "id"), req.Event, req.Locale)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *adminHandler) printFile(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.PrintFile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *adminHandler) exportCSV(w http.ResponseWriter, r *http.Request) {
	f := orders.ListFilter{Status: orders.Status(r.URL.Query().Get("status"))}
	list, err := h.svc.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	name := fmt.Sprintf("commandes-%s.csv", h.now().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	if err := csvx.ExportOrders(w, list); err != nil {
		// headers are gone, all we can do is log
		logger.Error("csv export failed", zap.String("request_id", requestID(r)), zap.Error(err))
	}
}

type importError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

type importResponse struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []importError `json:"errors"`
}

func rowErrors(errs []csvx.RowError) []importError {
	out := make([]importError, 0, len(errs))
	for _, e := range errs {
		out = append(out, importError{Line: e.Line, Reason: e.Reason})
	}
	return out
}

func (h *adminHandler) importCSV(w http.ResponseWriter, r *http.Request) {
	body, closeFn, err := upload(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer closeFn()

	recs, errs := csvx.ImportOrders(body)
	list := make([]orders.Order, len(recs))
	for i, rec := range recs {
		list[i] = rec.Order
	}
	res, err := h.svc.Import(r.Context(), actorFrom(r), list)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := importResponse{Imported: res.Imported, Skipped: res.Skipped, Errors: rowErrors(errs)}
	for _, f := range res.Failures {
		resp.Errors = append(resp.Errors, importError{Line: recs[f.Index].Line, Reason: f.Reason})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *adminHandler) importContacts(w http.ResponseWriter, r *http.Request) {
	if h.contacts == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "contacts are not configured"})
		return
	}
	body, closeFn, err := upload(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer closeFn()

	cs, errs := csvx.ImportContacts(body)
	n, err := h.contacts.Insert(r.Context(), cs)
	if err != nil {
		writeError(w, r, apperr.Persistence("httpx.importContacts", err))
		return
	}
	logger.Info("contacts imported",
		zap.String("actor", actorFrom(r).Name()), zap.Int("inserted", n), zap.Int("rejected", len(errs)))
	writeJSON(w, http.StatusOK, map[string]any{
		"inserted": n,
		"skipped":  len(cs) - n,
		"errors":   rowErrors(errs),
	})
}

// upload returns the "file" part of a multipart form, or the raw body for
// any other content type.
func upload(w http.ResponseWriter, r *http.Request) (io.Reader, func(), error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "multipart/form-data" {
		return http.MaxBytesReader(w, r.Body, maxUpload), func() {}, nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		return nil, nil, apperr.Validation("httpx.upload", "invalid multipart form: %v", err)
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, nil, apperr.Validation("httpx.upload", "missing file field")
	}
	return f, func() { _ = f.Close() }, nil
}

func (h *adminHandler) report(w http.ResponseWriter, r *http.Request) {
	if h.analytics == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "analytics are not configured"})
		return
	}
	days, err := queryInt(r, "days", 30)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if days < 1 || days > 366 {
		writeError(w, r, apperr.Validation("httpx.report", "days must be between 1 and 366"))
		return
	}
	rep, err := h.analytics.Report(r.Context(), days, h.now())
	if err != nil {
		writeError(w, r, apperr.Persistence("httpx.report", err))
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
