package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tapcard/cardshop/internal/apperr"
)

type CustomerType string

const (
	CustomerIndividual   CustomerType = "individual"
	CustomerProfessional CustomerType = "professional"
	CustomerBulk         CustomerType = "bulk"
)

// MaxQuantity caps cards and quantity-bearing add-ons per order. It keeps
// every amount well inside int64 and the quantity column inside INT.
const MaxQuantity = 10000

type AddOnSelection struct {
	ID       string `json:"id" yaml:"id" validate:"required"`
	Quantity int    `json:"quantity" yaml:"quantity" validate:"min=0,max=10000"`
}

// Cart is the in-memory quote configuration. It is never persisted; placing
// an order snapshots the computed quote onto the order row.
type Cart struct {
	CustomerType    CustomerType     `json:"customer_type"`
	Tier            string           `json:"tier"`
	Quantity        int              `json:"quantity"`
	AddOns          []AddOnSelection `json:"addons"`
	MaintenancePlan string           `json:"maintenance_plan"`
	Currency        string           `json:"currency"`
	Elite           bool             `json:"elite"`
}

type QuoteLine struct {
	Kind      string `json:"kind"` // tier | addon
	ID        string `json:"id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Amount    int64  `json:"amount"`
}

type Quote struct {
	Currency        string      `json:"currency"`
	Subtotal        int64       `json:"subtotal"`
	ShippingFee     int64       `json:"shipping_fee"`
	FreeShipping    bool        `json:"free_shipping"`
	MaintenancePlan string      `json:"maintenance_plan"`
	MaintenanceFee  int64       `json:"maintenance_fee"`
	Total           int64       `json:"total"`
	Lines           []QuoteLine `json:"lines"`
}

// FreeShippingRule reports whether the cart ships for free. Rules must be
// pure functions of their inputs.
type FreeShippingRule func(c Cart, tier Tier) bool

// EliteOrder waives shipping for elite tiers and carts flagged elite.
func EliteOrder(c Cart, tier Tier) bool { return c.Elite || tier.Elite }

type Calculator struct {
	catalog *Catalog
	rules   []FreeShippingRule
}

// NewCalculator uses EliteOrder when no rules are given.
func NewCalculator(catalog *Catalog, rules ...FreeShippingRule) *Calculator {
	if len(rules) == 0 {
		rules = []FreeShippingRule{EliteOrder}
	}
	return &Calculator{catalog: catalog, rules: rules}
}

func (c *Calculator) Catalog() *Catalog { return c.catalog }

const op = "pricing.Compute"

// Compute prices a cart. Quantities are checked before any lookup.
func (c *Calculator) Compute(cart Cart) (Quote, error) {
	if err := c.Validate(cart); err != nil {
		return Quote{}, err
	}

	cur := strings.ToUpper(strings.TrimSpace(cart.Currency))
	if !c.catalog.HasCurrency(cur) {
		return Quote{}, apperr.NotFound(op, "currency", cart.Currency)
	}
	tier, ok := c.catalog.Tier(cart.Tier)
	if !ok {
		return Quote{}, apperr.NotFound(op, "tier", cart.Tier)
	}
	planID := cart.MaintenancePlan
	if planID == "" {
		planID = PlanNone
	}
	plan, ok := c.catalog.Plan(planID)
	if !ok {
		return Quote{}, apperr.NotFound(op, "maintenance plan", planID)
	}

	q := Quote{Currency: cur, MaintenancePlan: plan.ID}

	unit := tier.Prices[cur]
	q.Lines = append(q.Lines, QuoteLine{
		Kind: "tier", ID: tier.ID, Name: tier.Name,
		Quantity: cart.Quantity, UnitPrice: unit, Amount: unit * int64(cart.Quantity),
	})
	q.Subtotal += unit * int64(cart.Quantity)

	for _, sel := range cart.AddOns {
		a, ok := c.catalog.AddOn(sel.ID)
		if !ok {
			return Quote{}, apperr.NotFound(op, "add-on", sel.ID)
		}
		qty := 1
		if a.QuantityBearing {
			qty = sel.Quantity
		}
		price := a.Prices[cur]
		q.Lines = append(q.Lines, QuoteLine{
			Kind: "addon", ID: a.ID, Name: a.Name,
			Quantity: qty, UnitPrice: price, Amount: price * int64(qty),
		})
		q.Subtotal += price * int64(qty)
	}

	q.ShippingFee = c.catalog.Shipping[cur]
	for _, rule := range c.rules {
		if rule(cart, tier) {
			q.ShippingFee = 0
			q.FreeShipping = true
			break
		}
	}
	q.MaintenanceFee = plan.Monthly[cur]
	q.Total = q.Subtotal + q.ShippingFee
	return q, nil
}

func validateCart(cart Cart) error {
	if cart.Quantity <= 0 {
		return apperr.Validation(op, "quantity must be at least 1, got %d", cart.Quantity)
	}
	if cart.Quantity > MaxQuantity {
		return apperr.Validation(op, "quantity must be at most %d, got %d", MaxQuantity, cart.Quantity)
	}
	switch cart.CustomerType {
	case "", CustomerIndividual, CustomerProfessional, CustomerBulk:
	default:
		return apperr.Validation(op, "unknown customer type %q", cart.CustomerType)
	}
	if strings.TrimSpace(cart.Tier) == "" {
		return apperr.Validation(op, "tier is required")
	}
	if strings.TrimSpace(cart.Currency) == "" {
		return apperr.Validation(op, "currency is required")
	}
	for _, sel := range cart.AddOns {
		if sel.Quantity < 0 {
			return apperr.Validation(op, "add-on %q quantity must not be negative", sel.ID)
		}
		if sel.Quantity > MaxQuantity {
			return apperr.Validation(op, "add-on %q quantity must be at most %d", sel.ID, MaxQuantity)
		}
	}
	return nil
}

// Validate applies the quantity rules that need the catalog: quantity-bearing
// add-ons must carry a positive quantity.
func (c *Calculator) Validate(cart Cart) error {
	if err := validateCart(cart); err != nil {
		return err
	}
	for _, sel := range cart.AddOns {
		if a, ok := c.catalog.AddOn(sel.ID); ok && a.QuantityBearing && sel.Quantity <= 0 {
			return apperr.Validation(op, "add-on %q quantity must be at least 1", sel.ID)
		}
	}
	return nil
}

// FormatAmount renders minor units for display, e.g. 50000 MAD -> "500.00 MAD".
func FormatAmount(minor int64, currency string) string {
	return decimal.New(minor, -2).StringFixed(2) + " " + strings.ToUpper(currency)
}
