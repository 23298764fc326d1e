package catalog

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-grosir/internal/pricing"
)

// Store reads the pricing catalog from Postgres. All reads are batched: one
// query per entity type per calculation call, regardless of cart size.
type Store struct {
	Pool *pgxpool.Pool
}

// KnownCodes reports which of the requested product codes exist in the
// catalog. Absent codes are priced with zero discount, not rejected.
func (s Store) KnownCodes(ctx context.Context, codes []string) (map[string]bool, error) {
	known := make(map[string]bool, len(codes))
	if len(codes) == 0 {
		return known, nil
	}
	rows, err := s.Pool.Query(ctx, `SELECT code FROM products WHERE code = ANY($1)`, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		known[code] = true
	}
	return known, rows.Err()
}

// GroupsForCodes loads every discount group owning at least one of the
// requested codes, including full membership and the complete tier ladder.
// Full membership is required because any cart line belonging to the group
// contributes to its aggregate quantity.
func (s Store) GroupsForCodes(ctx context.Context, codes []string) ([]pricing.Group, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT g.id, g.name, m.product_code
		FROM discount_groups g
		JOIN discount_group_members m ON m.group_id = g.id
		WHERE g.id IN (
			SELECT group_id FROM discount_group_members WHERE product_code = ANY($1)
		)
		ORDER BY g.id`, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []pricing.Group
	index := make(map[int64]int)
	for rows.Next() {
		var (
			id   int64
			name string
			code string
		)
		if err := rows.Scan(&id, &name, &code); err != nil {
			return nil, err
		}
		pos, ok := index[id]
		if !ok {
			pos = len(groups)
			index[id] = pos
			groups = append(groups, pricing.Group{ID: id, Name: name, Members: map[string]bool{}})
		}
		groups[pos].Members[code] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	tierRows, err := s.Pool.Query(ctx, `
		SELECT group_id, min_qty, rate_bps, description
		FROM discount_group_tiers
		WHERE group_id = ANY($1)
		ORDER BY group_id, min_qty`, ids)
	if err != nil {
		return nil, err
	}
	defer tierRows.Close()
	for tierRows.Next() {
		var (
			groupID int64
			tier    pricing.Tier
		)
		if err := tierRows.Scan(&groupID, &tier.MinQty, &tier.RateBps, &tier.Description); err != nil {
			return nil, err
		}
		pos := index[groupID]
		groups[pos].Tiers = append(groups[pos].Tiers, tier)
	}
	return groups, tierRows.Err()
}

// PlanTiersForCodes loads tiers from plans active at the provided instant
// for the requested codes, keyed by product code.
func (s Store) PlanTiersForCodes(ctx context.Context, codes []string, now time.Time) (map[string][]pricing.PlanTiers, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT t.product_code, p.id, p.name, t.min_qty, t.rate_bps, t.description
		FROM pricing_plan_tiers t
		JOIN pricing_plans p ON p.id = t.plan_id
		WHERE t.product_code = ANY($1)
		  AND p.is_active
		  AND p.valid_from <= $2
		  AND (p.valid_to IS NULL OR p.valid_to >= $2)
		ORDER BY t.product_code, p.id, t.min_qty`, codes, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plans := make(map[string][]pricing.PlanTiers)
	for rows.Next() {
		var (
			code     string
			planID   int64
			planName string
			tier     pricing.Tier
		)
		if err := rows.Scan(&code, &planID, &planName, &tier.MinQty, &tier.RateBps, &tier.Description); err != nil {
			return nil, err
		}
		entries := plans[code]
		if n := len(entries); n > 0 && entries[n-1].PlanID == planID {
			entries[n-1].Tiers = append(entries[n-1].Tiers, tier)
		} else {
			entries = append(entries, pricing.PlanTiers{PlanID: planID, PlanName: planName, Tiers: pricing.Ladder{tier}})
		}
		plans[code] = entries
	}
	return plans, rows.Err()
}
