package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tapcard/cardshop/internal/apperr"
	"github.com/tapcard/cardshop/internal/logger"
	"github.com/tapcard/cardshop/internal/pricing"
)

// ImportFailure names the input index that could not be imported.
type ImportFailure struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

type ImportResult struct {
	Imported int             `json:"imported"`
	Skipped  int             `json:"skipped"`
	Failures []ImportFailure `json:"failures,omitempty"`
}

// Import stores orders taken from a spreadsheet as they are, lifecycle
// included. Orders whose number already exists are skipped. No notification
// is sent and no event is published.
func (s *Service) Import(ctx context.Context, actor Actor, list []Order) (ImportResult, error) {
	const op = "orders.Import"
	var res ImportResult
	now := s.now()
	for i := range list {
		o := list[i]
		if reason := checkImported(&o); reason != "" {
			res.Failures = append(res.Failures, ImportFailure{Index: i, Reason: reason})
			continue
		}
		o.ID = uuid.NewString()
		if o.CreatedAt.IsZero() {
			o.CreatedAt = now
		}
		o.UpdatedAt = o.CreatedAt
		o.Locale = s.locale(o.Locale)
		if o.MaintenancePlan == "" {
			o.MaintenancePlan = "none"
		}
		o.Notes = []Note{{ID: uuid.NewString(), Author: actor.Name(), Text: "Importée depuis un fichier CSV", CreatedAt: now}}

		err := s.Store.Create(ctx, &o)
		switch {
		case err == nil:
			res.Imported++
		case errors.Is(err, ErrDuplicate):
			res.Skipped++
		default:
			return res, apperr.Persistence(op, err)
		}
	}
	logger.Info("orders imported",
		zap.String("actor", actor.Name()),
		zap.Int("imported", res.Imported),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", len(res.Failures)),
	)
	return res, nil
}

// checkImported enforces the lifecycle invariants on foreign data: every
// status passed through has its timestamp and tracking implies shipped.
func checkImported(o *Order) string {
	if !o.Status.Valid() {
		return fmt.Sprintf("unknown status %q", o.Status)
	}
	if o.Quantity <= 0 || o.Quantity > pricing.MaxQuantity {
		return fmt.Sprintf("quantity must be between 1 and %d", pricing.MaxQuantity)
	}
	if strings.TrimSpace(o.Customer.Name) == "" || strings.TrimSpace(o.Customer.Phone) == "" {
		return "customer name and phone are required"
	}
	o.Currency = strings.ToUpper(strings.TrimSpace(o.Currency))
	for _, st := range []Status{StatusPaid, StatusInProduction, StatusShipped, StatusDelivered, StatusRejected} {
		reached := o.Status.Reached(st)
		has := o.TimestampFor(st) != nil
		if reached && !has {
			return fmt.Sprintf("status %s requires %s", o.Status, timestampColumn[st])
		}
		if !reached && has {
			return fmt.Sprintf("%s is set but status is %s", timestampColumn[st], o.Status)
		}
	}
	if o.TrackingNumber != nil && o.ShippedAt == nil {
		return "tracking_number requires shipped_at"
	}
	return ""
}
