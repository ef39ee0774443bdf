package payments

import (
	"fmt"
	"sort"
	"strings"
)

// Plan identifiers of the default catalog.
const (
	PlanBasic   = "basic"
	PlanPremium = "premium"
)

// Plan is a purchasable tier: a one time price in minor units of the
// currency and the credits granted once it is paid.
type Plan struct {
	ID      string `json:"id"`
	Price   int64  `json:"price"`
	Credits int64  `json:"credits"`
}

// ProductName is the human readable name shown on the checkout page.
func (p Plan) ProductName() string {
	if p.ID == "" {
		return "Plan"
	}
	return strings.ToUpper(p.ID[:1]) + p.ID[1:] + " Plan"
}

// Description is the line item description shown on the checkout page.
func (p Plan) Description() string {
	return fmt.Sprintf("One-time payment for %d credits", p.Credits)
}

// Catalog maps plan identifiers to plans. It is static configuration.
type Catalog map[string]Plan

// DefaultCatalog returns the plans sold by the service.
func DefaultCatalog() Catalog {
	return Catalog{
		PlanBasic:   {ID: PlanBasic, Price: 5000, Credits: 500},
		PlanPremium: {ID: PlanPremium, Price: 10000, Credits: 1000},
	}
}

// Plan returns the plan with the given identifier.
func (c Catalog) Plan(id string) (Plan, error) {
	plan, ok := c[id]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownPlan, id)
	}
	return plan, nil
}

// List returns the plans ordered by price.
func (c Catalog) List() []Plan {
	plans := make([]Plan, 0, len(c))
	for _, p := range c {
		plans = append(plans, p)
	}
	sort.Slice(plans, func(i, j int) bool {
		if plans[i].Price == plans[j].Price {
			return plans[i].ID < plans[j].ID
		}
		return plans[i].Price < plans[j].Price
	})
	return plans
}

func (c Catalog) validate() error {
	if len(c) == 0 {
		return fmt.Errorf("empty plan catalog")
	}
	for id, p := range c {
		if id == "" || p.ID != id {
			return fmt.Errorf("plan %q registered as %q", p.ID, id)
		}
		if p.Price <= 0 || p.Credits <= 0 {
			return fmt.Errorf("plan %q must have a positive price and credits", id)
		}
	}
	return nil
}
