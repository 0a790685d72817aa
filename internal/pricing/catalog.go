package pricing

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// PlanNone is the maintenance plan that costs nothing in every currency.
const PlanNone = "none"

// Tier is a product level with a base price per card, keyed by currency.
type Tier struct {
	ID     string           `yaml:"id" json:"id"`
	Name   string           `yaml:"name" json:"name"`
	Elite  bool             `yaml:"elite" json:"elite"`
	Prices map[string]int64 `yaml:"prices" json:"-"`
}

type AddOn struct {
	ID              string           `yaml:"id" json:"id"`
	Name            string           `yaml:"name" json:"name"`
	QuantityBearing bool             `yaml:"quantity_bearing" json:"quantity_bearing"`
	Prices          map[string]int64 `yaml:"prices" json:"-"`
}

// MaintenancePlan is billed monthly and never folded into a one-time total.
type MaintenancePlan struct {
	ID      string           `yaml:"id" json:"id"`
	Name    string           `yaml:"name" json:"name"`
	Monthly map[string]int64 `yaml:"monthly" json:"-"`
}

// Catalog is the only place prices come from. Every currency has its own
// explicit amounts; nothing is converted.
type Catalog struct {
	Currencies []string          `yaml:"currencies"`
	Shipping   map[string]int64  `yaml:"shipping"`
	Tiers      []Tier            `yaml:"tiers"`
	AddOns     []AddOn           `yaml:"addons"`
	Plans      []MaintenancePlan `yaml:"plans"`

	tiers  map[string]Tier
	addOns map[string]AddOn
	plans  map[string]MaintenancePlan
}

func DefaultCatalog() *Catalog {
	c := &Catalog{
		Currencies: []string{"MAD", "EUR", "USD"},
		Shipping:   map[string]int64{"MAD": 3000, "EUR": 500, "USD": 500},
		Tiers: []Tier{
			{ID: "standard", Name: "Standard", Prices: map[string]int64{"MAD": 50000, "EUR": 4500, "USD": 5000}},
			{ID: "premium", Name: "Premium", Prices: map[string]int64{"MAD": 90000, "EUR": 8500, "USD": 9000}},
			{ID: "elite", Name: "Elite", Elite: true, Prices: map[string]int64{"MAD": 150000, "EUR": 14000, "USD": 15000}},
		},
		AddOns: []AddOn{
			{ID: "seo", Name: "SEO", Prices: map[string]int64{"MAD": 5000, "EUR": 500, "USD": 500}},
			{ID: "logo_design", Name: "Logo design", Prices: map[string]int64{"MAD": 20000, "EUR": 1800, "USD": 2000}},
			{ID: "extra_pages", Name: "Extra pages", QuantityBearing: true, Prices: map[string]int64{"MAD": 10000, "EUR": 900, "USD": 1000}},
			{ID: "extra_card", Name: "Extra card", QuantityBearing: true, Prices: map[string]int64{"MAD": 15000, "EUR": 1400, "USD": 1500}},
		},
		Plans: []MaintenancePlan{
			{ID: PlanNone, Name: "None", Monthly: map[string]int64{"MAD": 0, "EUR": 0, "USD": 0}},
			{ID: "basic", Name: "Basic", Monthly: map[string]int64{"MAD": 4900, "EUR": 450, "USD": 500}},
			{ID: "pro", Name: "Pro", Monthly: map[string]int64{"MAD": 9900, "EUR": 900, "USD": 1000}},
		},
	}
	if err := c.index(); err != nil {
		panic(err)
	}
	return c
}

// LoadCatalogFile reads a YAML catalog. The file replaces the built-in table
// entirely.
func LoadCatalogFile(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(b)
}

func ParseCatalog(b []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) index() error {
	if len(c.Currencies) == 0 {
		return fmt.Errorf("catalog: no currencies")
	}
	for i, cur := range c.Currencies {
		c.Currencies[i] = strings.ToUpper(cur)
	}
	c.Shipping = upperKeys(c.Shipping)

	c.tiers = make(map[string]Tier, len(c.Tiers))
	c.addOns = make(map[string]AddOn, len(c.AddOns))
	c.plans = make(map[string]MaintenancePlan, len(c.Plans)+1)

	for _, cur := range c.Currencies {
		if _, ok := c.Shipping[cur]; !ok {
			return fmt.Errorf("catalog: no shipping fee for %s", cur)
		}
	}
	for i := range c.Tiers {
		t := &c.Tiers[i]
		t.Prices = upperKeys(t.Prices)
		if err := c.complete("tier", t.ID, t.Prices); err != nil {
			return err
		}
		c.tiers[t.ID] = *t
	}
	for i := range c.AddOns {
		a := &c.AddOns[i]
		a.Prices = upperKeys(a.Prices)
		if err := c.complete("add-on", a.ID, a.Prices); err != nil {
			return err
		}
		c.addOns[a.ID] = *a
	}
	for i := range c.Plans {
		p := &c.Plans[i]
		p.Monthly = upperKeys(p.Monthly)
		if err := c.complete("plan", p.ID, p.Monthly); err != nil {
			return err
		}
		c.plans[p.ID] = *p
	}
	if _, ok := c.plans[PlanNone]; !ok {
		none := MaintenancePlan{ID: PlanNone, Name: "None", Monthly: map[string]int64{}}
		for _, cur := range c.Currencies {
			none.Monthly[cur] = 0
		}
		c.Plans = append(c.Plans, none)
		c.plans[PlanNone] = none
	}
	return nil
}

func (c *Catalog) complete(kind, id string, prices map[string]int64) error {
	if id == "" {
		return fmt.Errorf("catalog: %s without id", kind)
	}
	for _, cur := range c.Currencies {
		p, ok := prices[cur]
		if !ok {
			return fmt.Errorf("catalog: %s %q has no %s price", kind, id, cur)
		}
		if p < 0 {
			return fmt.Errorf("catalog: %s %q has negative %s price", kind, id, cur)
		}
	}
	return nil
}

func (c *Catalog) HasCurrency(cur string) bool {
	for _, x := range c.Currencies {
		if x == cur {
			return true
		}
	}
	return false
}

func (c *Catalog) Tier(id string) (Tier, bool) {
	t, ok := c.tiers[id]
	return t, ok
}

func (c *Catalog) AddOn(id string) (AddOn, bool) {
	a, ok := c.addOns[id]
	return a, ok
}

func (c *Catalog) Plan(id string) (MaintenancePlan, bool) {
	p, ok := c.plans[id]
	return p, ok
}

// PricedItem is a catalog entry with its amount in one currency.
type PricedItem struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Amount          int64  `json:"amount"`
	Elite           bool   `json:"elite,omitempty"`
	QuantityBearing bool   `json:"quantity_bearing,omitempty"`
}

type CatalogView struct {
	Currency    string       `json:"currency"`
	ShippingFee int64        `json:"shipping_fee"`
	Tiers       []PricedItem `json:"tiers"`
	AddOns      []PricedItem `json:"addons"`
	Plans       []PricedItem `json:"maintenance_plans"`
}

// View flattens the catalog for one currency, sorted by id.
func (c *Catalog) View(currency string) (CatalogView, bool) {
	cur := strings.ToUpper(currency)
	if !c.HasCurrency(cur) {
		return CatalogView{}, false
	}
	v := CatalogView{Currency: cur, ShippingFee: c.Shipping[cur]}
	for _, t := range c.Tiers {
		v.Tiers = append(v.Tiers, PricedItem{ID: t.ID, Name: t.Name, Amount: t.Prices[cur], Elite: t.Elite})
	}
	for _, a := range c.AddOns {
		v.AddOns = append(v.AddOns, PricedItem{ID: a.ID, Name: a.Name, Amount: a.Prices[cur], QuantityBearing: a.QuantityBearing})
	}
	for _, p := range c.Plans {
		v.Plans = append(v.Plans, PricedItem{ID: p.ID, Name: p.Name, Amount: p.Monthly[cur]})
	}
	byID := func(s []PricedItem) {
		sort.Slice(s, func(i, j int) bool { return s[i].ID < s[j].ID })
	}
	byID(v.Tiers)
	byID(v.AddOns)
	byID(v.Plans)
	return v, true
}

func upperKeys(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[strings.ToUpper(k)] = v
	}
	return out
}
