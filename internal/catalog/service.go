package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-grosir/internal/common"
	"github.com/noah-isme/backend-grosir/internal/pricing"
	"github.com/noah-isme/backend-grosir/internal/resilience"
)

// ErrUnavailable is returned when the catalog cannot be read, either because
// the circuit breaker is open or the underlying queries failed. Callers
// degrade to zero-discount pricing instead of failing the cart.
var ErrUnavailable = errors.New("catalog unavailable")

type reader interface {
	KnownCodes(ctx context.Context, codes []string) (map[string]bool, error)
	GroupsForCodes(ctx context.Context, codes []string) ([]pricing.Group, error)
	PlanTiersForCodes(ctx context.Context, codes []string, now time.Time) (map[string][]pricing.PlanTiers, error)
}

// Snapshot bundles the engine input with the known-code set used for
// unknown-product reporting.
type Snapshot struct {
	Pricing pricing.Snapshot `json:"pricing"`
	Known   map[string]bool  `json:"known"`
}

// Service assembles read-only pricing snapshots from the catalog, fronted by
// a Redis JSON cache and guarded by a circuit breaker.
type Service struct {
	Store   reader
	Cache   *Cache
	Breaker *resilience.Breaker
	Logger  zerolog.Logger
	Now     func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Snapshot loads everything needed to price a cart touching the provided
// product codes. Duplicate codes are collapsed; the result is independent of
// code order so repeated calls for the same cart hit the same cache key.
func (s *Service) Snapshot(ctx context.Context, codes []string) (Snapshot, error) {
	if s == nil || s.Store == nil {
		return Snapshot{}, errors.New("catalog service not configured")
	}
	unique := dedupe(codes)

	key := snapshotKey(unique)
	var cached Snapshot
	hit, err := s.Cache.GetJSON(ctx, key, &cached)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("catalog cache read failed")
	} else if hit {
		return cached, nil
	}

	if s.Breaker != nil && !s.Breaker.Allow(ctx) {
		return Snapshot{}, ErrUnavailable
	}
	snap, err := s.load(ctx, unique)
	if s.Breaker != nil {
		s.Breaker.Report(ctx, err == nil)
	}
	if err != nil {
		s.Logger.Error().Err(err).Msg("catalog read failed")
		return Snapshot{}, ErrUnavailable
	}

	if err := s.Cache.SetJSON(ctx, key, snap); err != nil {
		s.Logger.Warn().Err(err).Msg("catalog cache write failed")
	}
	return snap, nil
}

func (s *Service) load(ctx context.Context, codes []string) (Snapshot, error) {
	known, err := s.Store.KnownCodes(ctx, codes)
	if err != nil {
		return Snapshot{}, err
	}
	groups, err := s.Store.GroupsForCodes(ctx, codes)
	if err != nil {
		return Snapshot{}, err
	}
	plans, err := s.Store.PlanTiersForCodes(ctx, codes, s.now())
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Pricing: pricing.Snapshot{Groups: groups, Plans: plans},
		Known:   known,
	}, nil
}

func dedupe(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

func snapshotKey(sortedCodes []string) string {
	if len(sortedCodes) == 0 {
		return ""
	}
	return "pricing:snapshot:" + common.Sha256Hex(strings.Join(sortedCodes, "|"))
}
