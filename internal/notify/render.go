package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strconv"
	"strings"
	"text/template"

	"github.com/tapcard/cardshop/internal/apperr"
	"github.com/tapcard/cardshop/internal/orders"
	"github.com/tapcard/cardshop/internal/pricing"
)

const layoutHTML = `<!DOCTYPE html>
<html lang="{{.Lang}}" dir="{{.Dir}}">
<head><meta charset="utf-8"><title>{{.Subject}}</title></head>
<body style="font-family: Arial, Helvetica, sans-serif; text-align: start;">
<h2>{{.Heading}}</h2>
<p>{{.Greeting}}</p>
{{range .Paragraphs}}<p>{{.}}</p>
{{end}}{{if .Rows}}<table dir="{{.Dir}}" cellpadding="6" style="border-collapse: collapse;">
{{range .Rows}}<tr><th style="text-align: start;">{{.Label}}</th><td>{{.Value}}</td></tr>
{{end}}</table>
{{end}}<p>{{.Signature}}</p>
</body>
</html>
`

var layout = htmltemplate.Must(htmltemplate.New("layout").Parse(layoutHTML))

// View is the order data exposed to message snippets.
type View struct {
	OrderNumber    string
	CustomerName   string
	Status         string
	Quantity       int
	Total          string
	Shipping       string
	TrackingNumber string
}

func viewOf(o *orders.Order) View {
	v := View{
		OrderNumber:  o.OrderNumber,
		CustomerName: o.Customer.Name,
		Status:       string(o.Status),
		Quantity:     o.Quantity,
		Total:        pricing.FormatAmount(o.TotalPriceCents, o.Currency),
		Shipping:     pricing.FormatAmount(o.ShippingFeeCents, o.Currency),
	}
	if o.TrackingNumber != nil {
		v.TrackingNumber = *o.TrackingNumber
	}
	return v
}

type row struct {
	Label string
	Value string
}

type page struct {
	Lang       string
	Dir        Direction
	Subject    string
	Heading    string
	Greeting   string
	Paragraphs []string
	Rows       []row
	Signature  string
}

// Email is a rendered message ready for a Transport.
type Email struct {
	Subject string
	HTML    string
	Locale  Locale
}

// Renderer turns an order and an event into an Email. Rendering has no side
// effects.
type Renderer struct {
	snippets map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	r := &Renderer{snippets: map[string]*template.Template{}}
	add := func(key, src string) error {
		if _, ok := r.snippets[src]; ok {
			return nil
		}
		t, err := template.New(key).Option("missingkey=error").Parse(src)
		if err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}
		r.snippets[src] = t
		return nil
	}
	for ev, byLocale := range catalog {
		for code, m := range byLocale {
			key := string(ev) + "/" + code
			if err := add(key+"/subject", m.Subject); err != nil {
				return nil, err
			}
			if err := add(key+"/heading", m.Heading); err != nil {
				return nil, err
			}
			for i, p := range m.Paragraphs {
				if err := add(key+"/p"+strconv.Itoa(i), p); err != nil {
					return nil, err
				}
			}
		}
	}
	for code, l := range localeLabels {
		if err := add("greeting/"+code, l.Greeting); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Renderer) exec(src string, v View) (string, error) {
	t, ok := r.snippets[src]
	if !ok {
		return "", fmt.Errorf("snippet not registered: %q", src)
	}
	var b strings.Builder
	if err := t.Execute(&b, v); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Render selects the copy for (event, locale). internal marks the operator
// copy, which also lists the customer contact details.
func (r *Renderer) Render(o *orders.Order, ev orders.NotificationEvent, loc Locale, internal bool) (Email, error) {
	const op = "notify.Render"
	byLocale, ok := catalog[ev]
	if !ok {
		return Email{}, apperr.Validation(op, "unknown notification event %q", ev)
	}
	m, ok := byLocale[loc.Code]
	if !ok {
		return Email{}, apperr.Validation(op, "no %s copy for locale %q", ev, loc.Code)
	}
	l := localeLabels[loc.Code]
	v := viewOf(o)

	p := page{Lang: loc.Code, Dir: loc.Dir, Signature: l.Signature}
	var err error
	if p.Subject, err = r.exec(m.Subject, v); err != nil {
		return Email{}, err
	}
	if p.Heading, err = r.exec(m.Heading, v); err != nil {
		return Email{}, err
	}
	if p.Greeting, err = r.exec(l.Greeting, v); err != nil {
		return Email{}, err
	}
	for _, src := range m.Paragraphs {
		s, err := r.exec(src, v)
		if err != nil {
			return Email{}, err
		}
		p.Paragraphs = append(p.Paragraphs, s)
	}
	if m.Summary || internal {
		p.Rows = summaryRows(o, v, l)
	}
	if internal {
		p.Subject = "[Admin] " + p.Subject
		p.Rows = append(p.Rows,
			row{l.Customer, o.Customer.Name},
			row{l.Phone, o.Customer.Phone},
			row{l.Email, o.Customer.Email},
			row{l.Address, strings.Join(nonEmpty(o.Customer.Address, o.Customer.PostalCode, o.Customer.City, o.Customer.Country), ", ")},
		)
	}

	var buf bytes.Buffer
	if err := layout.Execute(&buf, p); err != nil {
		return Email{}, fmt.Errorf("render %s/%s: %w", ev, loc.Code, err)
	}
	return Email{Subject: p.Subject, HTML: buf.String(), Locale: loc}, nil
}

func summaryRows(o *orders.Order, v View, l labels) []row {
	rows := []row{
		{l.OrderNumber, v.OrderNumber},
		{l.Status, v.Status},
		{l.Quantity, strconv.Itoa(v.Quantity)},
		{l.Shipping, v.Shipping},
		{l.Total, v.Total},
	}
	if o.MaintenancePlan != "" && o.MaintenancePlan != pricing.PlanNone {
		rows = append(rows, row{l.Maintenance, o.MaintenancePlan + " (" + pricing.FormatAmount(o.MaintenanceFeeCents, o.Currency) + ")"})
	}
	if v.TrackingNumber != "" {
		rows = append(rows, row{l.Tracking, v.TrackingNumber})
	}
	return rows
}

func nonEmpty(parts ...string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
