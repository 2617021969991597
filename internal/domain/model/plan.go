package model

import (
	"strings"

	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain"
)

// Plan is a purchasable catalog entry. Prices are in whole currency units.
type Plan struct {
	ID                 string
	Name               string
	Tier               Tier
	MonthlyPrice       int64
	AnnualPrice        int64
	Currency           string
	GatewayPlanMonthly string
	GatewayPlanAnnual  string
}

func NewPlan(id, name string, tier Tier, monthly, annual int64, currency string) (*Plan, error) {
	if id == "" || name == "" || monthly < 0 || annual < 0 {
		return nil, domain.ErrInvalidArgument
	}
	if tier != TierFree && tier != TierPremium {
		return nil, domain.ErrInvalidArgument
	}
	if currency == "" {
		currency = "INR"
	}
	return &Plan{ID: id, Name: name, Tier: tier, MonthlyPrice: monthly, AnnualPrice: annual, Currency: strings.ToUpper(currency)}, nil
}

func (p *Plan) Price(c BillingCycle) int64 {
	if c == BillingCycleAnnually {
		return p.AnnualPrice
	}
	return p.MonthlyPrice
}

func (p *Plan) GatewayPlan(c BillingCycle) string {
	if c == BillingCycleAnnually {
		return p.GatewayPlanAnnual
	}
	return p.GatewayPlanMonthly
}

// Catalog resolves plans by id.
type Catalog struct {
	plans map[string]*Plan
}

func NewCatalog(plans ...*Plan) *Catalog {
	c := &Catalog{plans: make(map[string]*Plan, len(plans))}
	for _, p := range plans {
		if p != nil {
			c.plans[p.ID] = p
		}
	}
	return c
}

func (c *Catalog) Find(id string) (*Plan, error) {
	p, ok := c.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}
