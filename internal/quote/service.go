package quote

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-grosir/internal/catalog"
	"github.com/noah-isme/backend-grosir/internal/common"
	"github.com/noah-isme/backend-grosir/internal/obs"
	"github.com/noah-isme/backend-grosir/internal/pricing"
)

type snapshotter interface {
	Snapshot(ctx context.Context, codes []string) (catalog.Snapshot, error)
}

// Service prices carts against the catalog. Stateless: every call is an
// independent, idempotent computation, safe to retry and to run concurrently.
type Service struct {
	Catalog snapshotter
	Logger  zerolog.Logger
}

// Result is the calculation outcome plus degradation metadata for the
// transport layer.
type Result struct {
	Cart         pricing.CartResult
	UnknownCodes []string
	Degraded     bool
}

// Calculate resolves the catalog snapshot for the cart and runs the pricing
// engine. Catalog unavailability never fails the call: pricing degrades to
// zero discounts, equivalent to no promotions being active.
func (s *Service) Calculate(ctx context.Context, lines []pricing.Line) (Result, error) {
	if s == nil || s.Catalog == nil {
		return Result{}, errors.New("quote service not configured")
	}
	codes := make([]string, 0, len(lines))
	for _, line := range lines {
		codes = append(codes, line.ProductCode)
	}

	var degraded bool
	snap, err := s.Catalog.Snapshot(ctx, codes)
	if err != nil {
		if !errors.Is(err, catalog.ErrUnavailable) {
			return Result{}, common.NewAppError("CATALOG_ERROR", "catalog lookup failed", http.StatusServiceUnavailable, err)
		}
		degraded = true
		snap = catalog.Snapshot{}
		s.Logger.Warn().Msg("catalog unavailable, pricing without promotions")
		if obs.PricingCatalogFallbackTotal != nil {
			obs.PricingCatalogFallbackTotal.Inc()
		}
	}

	cart, err := pricing.Calculate(lines, snap.Pricing)
	if err != nil {
		return Result{}, err
	}

	var unknown []string
	if !degraded {
		seen := make(map[string]bool)
		for _, line := range lines {
			if snap.Known[line.ProductCode] || seen[line.ProductCode] {
				continue
			}
			seen[line.ProductCode] = true
			unknown = append(unknown, line.ProductCode)
			s.Logger.Warn().Str("product_code", line.ProductCode).Msg("pricing unknown product code")
			if obs.PricingUnknownProductTotal != nil {
				obs.PricingUnknownProductTotal.Inc()
			}
		}
	}

	return Result{Cart: cart, UnknownCodes: unknown, Degraded: degraded}, nil
}
