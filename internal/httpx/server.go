package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tapcard/cardshop/internal/analytics"
	"github.com/tapcard/cardshop/internal/auth"
	"github.com/tapcard/cardshop/internal/orders"
)

type Authenticator interface {
	TokenParser
	Login(email, password string) (auth.Session, error)
}

type ContactStore interface {
	Insert(ctx context.Context, cs []orders.Contact) (int, error)
}

type AnalyticsReader interface {
	Report(ctx context.Context, days int, now time.Time) (analytics.Report, error)
}

// Deps wires the handlers. Contacts and Analytics may be nil; their routes
// then answer 503.
type Deps struct {
	Orders    *orders.Service
	Auth      Authenticator
	Contacts  ContactStore
	Analytics AnalyticsReader

	RatePerSecond float64
	RateBurst     int

	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Only set it behind a proxy that overwrites those headers.
	TrustProxy bool
	Now        func() time.Time
}

func NewRouter(d Deps) *chi.Mux {
	if d.Now == nil {
		d.Now = time.Now
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if d.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(accessLog, middleware.Recoverer)
	if sentry.CurrentHub().Client() != nil {
		r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	}
	r.Use(traceContext)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	limit := newIPLimiter(d.RatePerSecond, d.RateBurst)

	sf := &storefrontHandler{svc: d.Orders}
	sf.Register(r, limit.middleware)

	ad := &adminHandler{svc: d.Orders, auth: d.Auth, contacts: d.Contacts, analytics: d.Analytics, now: d.Now}
	ad.Register(r, limit.middleware)
	return r
}
