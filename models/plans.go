package models

import (
	"os"
)

const (
	PLAN_FREE       string = "free"
	PLAN_PRO        string = "pro"
	PLAN_ENTERPRISE string = "enterprise"
	PLAN_UNKNOWN    string = "unknown"
)

// PlanResolver maps Stripe price ids to the plan tiers the control-plane
// reports on.
type PlanResolver struct {
	plans map[string]string
}

func NewPlanResolver(freePriceID, proPriceID, enterprisePriceID string) *PlanResolver {
	plans := make(map[string]string)

	if freePriceID != "" {
		plans[freePriceID] = PLAN_FREE
	}
	if proPriceID != "" {
		plans[proPriceID] = PLAN_PRO
	}
	if enterprisePriceID != "" {
		plans[enterprisePriceID] = PLAN_ENTERPRISE
	}

	return &PlanResolver{
		plans: plans,
	}
}

func NewPlanResolverFromEnv() *PlanResolver {
	return NewPlanResolver(
		os.Getenv("STRIPE_PRICE_ID_FREE"),
		os.Getenv("STRIPE_PRICE_ID_PRO"),
		os.Getenv("STRIPE_PRICE_ID_ENTERPRISE"),
	)
}

func (r *PlanResolver) Resolve(stripePriceID string) string {
	if plan, found := r.plans[stripePriceID]; found {
		return plan
	}

	return PLAN_UNKNOWN
}
