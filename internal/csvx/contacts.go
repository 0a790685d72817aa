package csvx

import (
	"errors"
	"io"
	"strings"

	"github.com/tapcard/cardshop/internal/orders"
)

var contactAliases = map[string]string{
	"firstname":  "first_name",
	"first name": "first_name",
	"prénom":     "first_name",
	"prenom":     "first_name",
	"lastname":   "last_name",
	"last name":  "last_name",
	"nom":        "last_name",
	"e-mail":     "email",
	"mail":       "email",
	"téléphone":  "phone",
	"telephone":  "phone",
	"entreprise": "company",
	"société":    "company",
}

// ImportContacts reads a contact list. first_name and last_name are required
// per row; an invalid row never aborts the batch.
func ImportContacts(r io.Reader) ([]orders.Contact, []RowError) {
	t, errs := openTable(r, contactAliases, "first_name", "last_name")
	if t == nil {
		return nil, errs
	}
	var out []orders.Contact
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
		c := orders.Contact{
			FirstName: rec.get("first_name"),
			LastName:  rec.get("last_name"),
			Email:     strings.ToLower(rec.get("email")),
			Phone:     rec.get("phone"),
			Company:   rec.get("company"),
		}
		if err := orders.ValidateContact(c); err != nil {
			errs = append(errs, RowError{Line: rec.line, Reason: err.Error()})
			continue
		}
		out = append(out, c)
	}
	return out, errs
}
