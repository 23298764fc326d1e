package catalog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-grosir/internal/catalog"
	"github.com/noah-isme/backend-grosir/internal/pricing"
	"github.com/noah-isme/backend-grosir/internal/resilience"
)

type fakeStore struct {
	calls int
	err   error
}

func (f *fakeStore) KnownCodes(_ context.Context, codes []string) (map[string]bool, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	known := map[string]bool{}
	for _, code := range codes {
		if code != "GHOST" {
			known[code] = true
		}
	}
	return known, nil
}

func (f *fakeStore) GroupsForCodes(context.Context, []string) ([]pricing.Group, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []pricing.Group{{
		ID:      1,
		Name:    "Beverages",
		Members: map[string]bool{"KOPI-01": true},
		Tiers:   pricing.NewLadder(pricing.Tier{MinQty: 3, RateBps: 1000}),
	}}, nil
}

func (f *fakeStore) PlanTiersForCodes(context.Context, []string, time.Time) (map[string][]pricing.PlanTiers, error) {
	if f.err != nil {
		return nil, f.err
	}
	return map[string][]pricing.PlanTiers{
		"KOPI-01": {{PlanID: 9, PlanName: "promo", Tiers: pricing.NewLadder(pricing.Tier{MinQty: 2, RateBps: 500})}},
	}, nil
}

func TestSnapshotAssemblesAndCaches(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	store := &fakeStore{}
	svc := &catalog.Service{
		Store:  store,
		Cache:  catalog.NewCache(client, time.Minute),
		Logger: zerolog.Nop(),
	}

	ctx := context.Background()
	snap, err := svc.Snapshot(ctx, []string{"KOPI-01", "GHOST", "KOPI-01"})
	require.NoError(t, err)
	require.True(t, snap.Known["KOPI-01"])
	require.False(t, snap.Known["GHOST"])
	require.Len(t, snap.Pricing.Groups, 1)
	require.Contains(t, snap.Pricing.Plans, "KOPI-01")
	require.Equal(t, 1, store.calls)

	// Same cart in any order hits the cache, not the store.
	again, err := svc.Snapshot(ctx, []string{"GHOST", "KOPI-01"})
	require.NoError(t, err)
	require.Equal(t, 1, store.calls)
	require.Equal(t, snap.Pricing.Groups[0].Name, again.Pricing.Groups[0].Name)
}

func TestSnapshotUnavailableOnStoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	svc := &catalog.Service{Store: store, Logger: zerolog.Nop()}

	_, err := svc.Snapshot(context.Background(), []string{"KOPI-01"})
	require.ErrorIs(t, err, catalog.ErrUnavailable)
}

func TestSnapshotOpenBreakerShortCircuits(t *testing.T) {
	store := &fakeStore{err: errors.New("timeout")}
	breaker := resilience.NewBreaker(1, 0.5, time.Minute).WithTarget("catalog")
	svc := &catalog.Service{Store: store, Breaker: breaker, Logger: zerolog.Nop()}

	ctx := context.Background()
	_, err := svc.Snapshot(ctx, []string{"KOPI-01"})
	require.ErrorIs(t, err, catalog.ErrUnavailable)

	// Breaker is now open: the store must not be touched again.
	calls := store.calls
	_, err = svc.Snapshot(ctx, []string{"KOPI-01"})
	require.ErrorIs(t, err, catalog.ErrUnavailable)
	require.Equal(t, calls, store.calls)
}
