//go:build !integration

package main

import (
	"testing"

	"github.com/dheerurajpoot/quote-generator-sub001/internal/config"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/model"
)

func TestBuildCatalog(t *testing.T) {
	t.Run("should default the tier and keep gateway plan ids", func(t *testing.T) {
		cat, err := buildCatalog([]config.PlanConfig{{
			ID: "premium", Name: "Premium", MonthlyPrice: 499, AnnualPrice: 4999,
			Currency: "inr", GatewayPlanMonthly: "plan_m",
		}})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		p, err := cat.Find("premium")
		if err != nil {
			t.Fatalf("expected the plan to be registered: %v", err)
		}
		if p.Tier != model.TierPremium || p.Currency != "INR" || p.GatewayPlan(model.BillingCycleMonthly) != "plan_m" {
			t.Errorf("unexpected plan %+v", p)
		}
	})

	t.Run("should refuse an empty catalog", func(t *testing.T) {
		if _, err := buildCatalog(nil); err == nil {
			t.Error("expected an error for no plans")
		}
	})

	t.Run("should name the offending plan", func(t *testing.T) {
		if _, err := buildCatalog([]config.PlanConfig{{ID: "bad", Name: "Bad", MonthlyPrice: -1}}); err == nil {
			t.Error("expected an error for a negative price")
		}
	})
}
