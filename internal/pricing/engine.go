package pricing

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuantity is returned when a line requests fewer than one unit.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrInvalidPrice is returned when a line carries a negative consumer price.
	ErrInvalidPrice = errors.New("consumer price must not be negative")
)

// LineError identifies the request line that failed validation. A single bad
// line rejects the whole calculation; no partial results are produced.
type LineError struct {
	Index int
	Field string
	Err   error
}

// Error implements the error interface.
func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s: %v", e.Index, e.Field, e.Err)
}

// Unwrap allows errors.Is to match the underlying sentinel.
func (e *LineError) Unwrap() error {
	return e.Err
}

// Line is one requested cart entry. Duplicate product codes are treated as
// independent lines until group aggregation.
type Line struct {
	ProductCode   string
	ConsumerPrice Money
	Qty           int
}

// Group is a discount group snapshot: a named product set sharing one tier
// ladder keyed on the combined purchased quantity of its members.
type Group struct {
	ID      int64           `json:"id"`
	Name    string          `json:"name"`
	Members map[string]bool `json:"members"`
	Tiers   Ladder          `json:"tiers"`
}

// PlanTiers carries the tiers one active pricing plan attaches to a product.
type PlanTiers struct {
	PlanID   int64  `json:"planId"`
	PlanName string `json:"planName"`
	Tiers    Ladder `json:"tiers"`
}

// Snapshot is the read-only catalog slice needed to price one cart. Plan
// activation windows are resolved by the catalog layer; only active tiers
// appear here.
type Snapshot struct {
	Groups []Group                `json:"groups"`
	Plans  map[string][]PlanTiers `json:"plans"`
}

// DiscountSource identifies which mechanism produced the effective rate.
type DiscountSource string

const (
	// SourceNone means no discount candidate qualified.
	SourceNone DiscountSource = "none"
	// SourceGroup means the group volume tier won arbitration.
	SourceGroup DiscountSource = "group"
	// SourcePlan means a pricing-plan tier won arbitration.
	SourcePlan DiscountSource = "plan"
)

// Candidate pairs a qualifying tier with its origin.
type Candidate struct {
	Tier     Tier
	Source   DiscountSource
	PlanID   int64
	PlanName string
}

// Arbitrate combines the group and plan candidates for one line into the
// single effective discount. The larger rate wins; equal rates prefer the
// group candidate, which rewards cross-product loyalty and is the system
// default. Absent both, the zero-rate candidate is returned.
func Arbitrate(group, plan *Candidate) Candidate {
	switch {
	case group == nil && plan == nil:
		return Candidate{Source: SourceNone}
	case group == nil:
		return *plan
	case plan == nil:
		return *group
	case plan.Tier.RateBps > group.Tier.RateBps:
		return *plan
	default:
		return *group
	}
}

// LineResult is the authoritative pricing outcome for one cart line.
type LineResult struct {
	ProductCode     string
	Qty             int
	StoreBasePrice  Money
	UnitPrice       Money
	TotalPrice      Money
	DiscountAmount  Money
	RateBps         int32
	Source          DiscountSource
	TierDescription string
}

// GroupSummary explains, once per group touched by the cart, which tier the
// aggregate quantity unlocked and the full ladder so callers can surface
// "buy N more to unlock better pricing".
type GroupSummary struct {
	GroupID     int64
	GroupName   string
	AppliedTier *Tier
	Description string
	Tiers       Ladder
}

// AppliedPlan names the plan tier that granted the largest discount across
// the cart. Display metadata only; per-line rates are in the line results.
type AppliedPlan struct {
	PlanID   int64
	PlanName string
	Tier     Tier
}

// CartResult aggregates line results and cart-level totals.
type CartResult struct {
	Subtotal    Money
	Discount    Money
	FinalAmount Money
	Lines       []LineResult
	AppliedPlan *AppliedPlan
	Groups      []GroupSummary
}

// Calculate prices a cart against the catalog snapshot. Pure and idempotent:
// identical input always yields identical output, and line results preserve
// input order. The computation runs in two passes: group quantities are
// aggregated across all lines first, then each line is resolved and priced.
func Calculate(lines []Line, snap Snapshot) (CartResult, error) {
	for i, line := range lines {
		if line.Qty < 1 {
			return CartResult{}, &LineError{Index: i, Field: "quantity", Err: ErrInvalidQuantity}
		}
		if line.ConsumerPrice < 0 {
			return CartResult{}, &LineError{Index: i, Field: "price", Err: ErrInvalidPrice}
		}
	}

	groupTotals := aggregateGroupQuantities(lines, snap.Groups)

	result := CartResult{Lines: make([]LineResult, 0, len(lines))}
	var (
		bestPlan       *AppliedPlan
		bestPlanAmount Money
	)
	for _, line := range lines {
		groupCand := groupCandidate(line.ProductCode, snap.Groups, groupTotals)
		planCand := planCandidate(line, snap.Plans)
		winner := Arbitrate(groupCand, planCand)

		lr := priceLine(line, winner)
		result.Lines = append(result.Lines, lr)

		result.Subtotal += lr.StoreBasePrice * Money(lr.Qty)
		result.Discount += lr.DiscountAmount

		if winner.Source == SourcePlan && (bestPlan == nil || lr.DiscountAmount > bestPlanAmount) {
			bestPlan = &AppliedPlan{PlanID: winner.PlanID, PlanName: winner.PlanName, Tier: winner.Tier}
			bestPlanAmount = lr.DiscountAmount
		}
	}
	result.FinalAmount = result.Subtotal - result.Discount
	result.AppliedPlan = bestPlan
	result.Groups = groupSummaries(snap.Groups, groupTotals)
	return result, nil
}

// aggregateGroupQuantities sums line quantities per discount group across the
// whole cart. Every member line contributes, not just the line being priced,
// which is why no line can be finally priced before this pass completes.
func aggregateGroupQuantities(lines []Line, groups []Group) map[int64]int {
	totals := make(map[int64]int)
	for _, group := range groups {
		for _, line := range lines {
			if group.Members[line.ProductCode] {
				totals[group.ID] += line.Qty
			}
		}
	}
	return totals
}

// groupCandidate resolves the group tier applicable to a line. The lookup
// quantity is the group aggregate, not the line's own quantity.
func groupCandidate(code string, groups []Group, totals map[int64]int) *Candidate {
	for i := range groups {
		group := &groups[i]
		if !group.Members[code] {
			continue
		}
		tier, ok := group.Tiers.Select(totals[group.ID])
		if !ok {
			return nil
		}
		return &Candidate{Tier: tier, Source: SourceGroup}
	}
	return nil
}

// planCandidate evaluates every active plan attaching tiers to the line's
// product against the line's own quantity and keeps the best qualifying rate.
func planCandidate(line Line, plans map[string][]PlanTiers) *Candidate {
	var best *Candidate
	for _, plan := range plans[line.ProductCode] {
		tier, ok := plan.Tiers.Select(line.Qty)
		if !ok {
			continue
		}
		if best == nil || tier.RateBps > best.Tier.RateBps {
			best = &Candidate{Tier: tier, Source: SourcePlan, PlanID: plan.PlanID, PlanName: plan.PlanName}
		}
	}
	return best
}

// priceLine applies the wholesale margin and the arbitrated discount.
// Rounding happens at the unit price only, so the line total is always an
// exact integer multiple of the unit price.
func priceLine(line Line, winner Candidate) LineResult {
	base := StoreBasePrice(line.ConsumerPrice)
	unit := base
	var rate int32
	var description string
	if winner.Source != SourceNone {
		rate = winner.Tier.RateBps
		description = winner.Tier.Description
		unit = discountByRate(base, rate)
	}
	qty := Money(line.Qty)
	return LineResult{
		ProductCode:     line.ProductCode,
		Qty:             line.Qty,
		StoreBasePrice:  base,
		UnitPrice:       unit,
		TotalPrice:      unit * qty,
		DiscountAmount:  (base - unit) * qty,
		RateBps:         rate,
		Source:          winner.Source,
		TierDescription: description,
	}
}

// groupSummaries builds one summary per group with at least one touched line,
// in snapshot order for deterministic output.
func groupSummaries(groups []Group, totals map[int64]int) []GroupSummary {
	summaries := make([]GroupSummary, 0, len(totals))
	for _, group := range groups {
		total, touched := totals[group.ID]
		if !touched || total == 0 {
			continue
		}
		summary := GroupSummary{
			GroupID:   group.ID,
			GroupName: group.Name,
			Tiers:     group.Tiers,
		}
		if tier, ok := group.Tiers.Select(total); ok {
			applied := tier
			summary.AppliedTier = &applied
			summary.Description = tier.Description
		}
		summaries = append(summaries, summary)
	}
	return summaries
}
