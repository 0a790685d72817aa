package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the part of *pgxpool.Pool the repositories use.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

type Repo struct{ DB DBTX }

var _ Store = (*Repo)(nil)

const orderColumns = `id, COALESCE(external_id, ''), order_number, order_type, status, locale,
	customer_name, customer_phone, customer_email, address, city, postal_code, country,
	template, background_type, background_color, logo_url,
	quantity, currency, unit_price_cents, shipping_fee_cents, total_price_cents,
	maintenance_plan, maintenance_fee_cents,
	tracking_number, paid_at, production_started_at, shipped_at, delivered_at, rejected_at,
	created_at, updated_at`

var timestampColumn = map[Status]string{
	StatusPaid:         "paid_at",
	StatusInProduction: "production_started_at",
	StatusShipped:      "shipped_at",
	StatusDelivered:    "delivered_at",
	StatusRejected:     "rejected_at",
}

const (
	fkViolation     = "23503"
	uniqueViolation = "23505"
)

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o         Order
		orderType string
		status    string
	)
	err := row.Scan(
		&o.ID, &o.ExternalID, &o.OrderNumber, &orderType, &status, &o.Locale,
		&o.Customer.Name, &o.Customer.Phone, &o.Customer.Email, &o.Customer.Address,
		&o.Customer.City, &o.Customer.PostalCode, &o.Customer.Country,
		&o.Card.Template, &o.Card.BackgroundType, &o.Card.BackgroundColor, &o.Card.LogoURL,
		&o.Quantity, &o.Currency, &o.UnitPriceCents, &o.ShippingFeeCents, &o.TotalPriceCents,
		&o.MaintenancePlan, &o.MaintenanceFeeCents,
		&o.TrackingNumber, &o.PaidAt, &o.ProductionStartedAt, &o.ShippedAt, &o.DeliveredAt, &o.RejectedAt,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.OrderType = OrderType(orderType)
	o.Status = Status(status)
	return &o, nil
}

func (r *Repo) Create(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, external_id, order_number, order_type, status, locale,
			customer_name, customer_phone, customer_email, address, city, postal_code, country,
			template, background_type, background_color, logo_url,
			quantity, currency, unit_price_cents, shipping_fee_cents, total_price_cents,
			maintenance_plan, maintenance_fee_cents,
			tracking_number, paid_at, production_started_at, shipped_at, delivered_at, rejected_at,
			created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24,
			$25, $26, $27, $28, $29, $30, $31, $31)`,
		o.ID, o.ExternalID, o.OrderNumber, string(o.OrderType), string(o.Status), o.Locale,
		o.Customer.Name, o.Customer.Phone, o.Customer.Email, o.Customer.Address,
		o.Customer.City, o.Customer.PostalCode, o.Customer.Country,
		o.Card.Template, o.Card.BackgroundType, o.Card.BackgroundColor, o.Card.LogoURL,
		o.Quantity, o.Currency, o.UnitPriceCents, o.ShippingFeeCents, o.TotalPriceCents,
		o.MaintenancePlan, o.MaintenanceFeeCents,
		o.TrackingNumber, o.PaidAt, o.ProductionStartedAt, o.ShippedAt, o.DeliveredAt, o.RejectedAt,
		o.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i, it := range o.Items {
		if _, err = tx.Exec(ctx, `
			INSERT INTO order_items(order_id, position, product_id, name, quantity, unit_price_cents)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			o.ID, i, it.ProductID, it.Name, it.Quantity, it.UnitPriceCents,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	for _, n := range o.Notes {
		if err := insertNote(ctx, tx, o.ID, n); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func insertNote(ctx context.Context, db interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
}, orderID string, n Note) error {
	_, err := db.Exec(ctx, `
		INSERT INTO order_notes(id, order_id, author, body, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		n.ID, orderID, n.Author, n.Text, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (*Order, error) {
	return r.getWhere(ctx, "id", id)
}

func (r *Repo) GetByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	return r.getWhere(ctx, "order_number", orderNumber)
}

func (r *Repo) FindByExternalID(ctx context.Context, externalID string) (*Order, error) {
	return r.getWhere(ctx, "external_id", externalID)
}

func (r *Repo) getWhere(ctx context.Context, column, value string) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+column+`=$1`, value))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if o.Items, err = r.items(ctx, o.ID); err != nil {
		return nil, err
	}
	if o.Notes, err = r.notes(ctx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) items(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT product_id, name, quantity, unit_price_cents
		FROM order_items WHERE order_id=$1 ORDER BY position`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Quantity, &it.UnitPriceCents); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repo) notes(ctx context.Context, orderID string) ([]Note, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, author, body, created_at
		FROM order_notes WHERE order_id=$1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.Author, &n.Text, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *Repo) List(ctx context.Context, f ListFilter) ([]Order, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, "status=$"+strconv.Itoa(len(args)))
	}
	sql := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY created_at DESC, id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		sql += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		sql += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := r.attach(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attach loads items and notes for a page of orders with one query each.
func (r *Repo) attach(ctx context.Context, list []Order) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, len(list))
	index := make(map[string]int, len(list))
	for i, o := range list {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := r.DB.Query(ctx, `
		SELECT order_id, product_id, name, quantity, unit_price_cents
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`, ids)
	if err != nil {
		return fmt.Errorf("list order items: %w", err)
	}
	for rows.Next() {
		var (
			orderID string
			it      OrderItem
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.Name, &it.Quantity, &it.UnitPriceCents); err != nil {
			rows.Close()
			return err
		}
		if i, ok := index[orderID]; ok {
			list[i].Items = append(list[i].Items, it)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.DB.Query(ctx, `
		SELECT order_id, id, author, body, created_at
		FROM order_notes WHERE order_id = ANY($1) ORDER BY created_at, id`, ids)
	if err != nil {
		return fmt.Errorf("list order notes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID string
			n       Note
		)
		if err := rows.Scan(&orderID, &n.ID, &n.Author, &n.Text, &n.CreatedAt); err != nil {
			return err
		}
		if i, ok := index[orderID]; ok {
			list[i].Notes = append(list[i].Notes, n)
		}
	}
	return rows.Err()
}

// ApplyTransition is a compare-and-set on status. The timestamp column must
// still be NULL, so a timestamp is never overwritten.
func (r *Repo) ApplyTransition(ctx context.Context, u TransitionUpdate) error {
	col, ok := timestampColumn[u.To]
	if !ok {
		return fmt.Errorf("no timestamp column for status %q", u.To)
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE orders
		SET status=$1, `+col+`=$2, tracking_number=COALESCE($3, tracking_number), updated_at=$2
		WHERE id=$4 AND status=$5 AND `+col+` IS NULL`,
		string(u.To), u.At, u.TrackingNumber, u.OrderID, string(u.From),
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return missingOrConflict(ctx, tx, u.OrderID)
	}

	if u.Note != nil {
		if err := insertNote(ctx, tx, u.OrderID, *u.Note); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func missingOrConflict(ctx context.Context, db interface {
	QueryRow(context.Context, string, ...any) pgx.Row
}, orderID string) error {
	var status string
	err := db.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, orderID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: now %s", ErrConflict, status)
}

func (r *Repo) AppendNote(ctx context.Context, orderID string, n Note) error {
	err := insertNote(ctx, r.DB, orderID, n)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == fkViolation {
		return ErrNotFound
	}
	return err
}

func (r *Repo) UpdateTracking(ctx context.Context, orderID, tracking string, allowed []Status, at time.Time) error {
	statuses := make([]string, len(allowed))
	for i, s := range allowed {
		statuses[i] = string(s)
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET tracking_number=$1, updated_at=$2
		WHERE id=$3 AND status = ANY($4)`,
		tracking, at, orderID, statuses,
	)
	if err != nil {
		return fmt.Errorf("update tracking: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return missingOrConflict(ctx, r.DB, orderID)
	}
	return nil
}
