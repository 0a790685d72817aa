package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Contact is a prospect imported from a spreadsheet.
type Contact struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name" validate:"required,max=120"`
	LastName  string    `json:"last_name" validate:"required,max=120"`
	Email     string    `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Phone     string    `json:"phone,omitempty" validate:"max=40"`
	Company   string    `json:"company,omitempty" validate:"max=200"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidateContact checks c with the same rules as order input.
func ValidateContact(c Contact) error {
	if err := validate.Struct(c); err != nil {
		return errors.New(validationMessage(err))
	}
	return nil
}

type ContactRepo struct {
	DB  DBTX
	Now func() time.Time
}

// Insert stores contacts in one transaction. Rows whose email is already
// known are skipped; inserted counts the rest. Missing ids and creation times
// are filled in.
func (r *ContactRepo) Insert(ctx context.Context, cs []Contact) (inserted int, err error) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, c := range cs {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now().UTC()
		}
		ct, err := tx.Exec(ctx, `
			INSERT INTO contacts(id, first_name, last_name, email, phone, company, created_at)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
			ON CONFLICT (lower(email)) WHERE email IS NOT NULL DO NOTHING`,
			c.ID, c.FirstName, c.LastName, c.Email, c.Phone, c.Company, c.CreatedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("insert contact: %w", err)
		}
		inserted += int(ct.RowsAffected())
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}
