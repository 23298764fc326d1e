package quote_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-grosir/internal/catalog"
	"github.com/noah-isme/backend-grosir/internal/pricing"
	"github.com/noah-isme/backend-grosir/internal/quote"
)

type fakeCatalog struct {
	snap catalog.Snapshot
	err  error
}

func (f fakeCatalog) Snapshot(context.Context, []string) (catalog.Snapshot, error) {
	return f.snap, f.err
}

type calcResponse struct {
	Subtotal    int64 `json:"subtotal"`
	Discount    int64 `json:"discount"`
	FinalAmount int64 `json:"finalAmount"`
	ItemPrices  []struct {
		ProductCode            string  `json:"productCode"`
		Quantity               int     `json:"quantity"`
		StoreBasePrice         int64   `json:"storeBasePrice"`
		UnitPrice              int64   `json:"unitPrice"`
		TotalPrice             int64   `json:"totalPrice"`
		DiscountAmount         int64   `json:"discountAmount"`
		AppliedDiscountRate    float64 `json:"appliedDiscountRate"`
		DiscountSource         string  `json:"discountSource"`
		AppliedTierDescription string  `json:"appliedTierDescription"`
	} `json:"itemPrices"`
	AppliedPlan *struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"appliedPlan"`
	AppliedTier *struct {
		MinQuantity  int     `json:"minQuantity"`
		DiscountRate float64 `json:"discountRate"`
	} `json:"appliedTier"`
	GroupDiscounts []struct {
		GroupName   string `json:"groupName"`
		AppliedTier *struct {
			MinQuantity  int     `json:"minQuantity"`
			DiscountRate float64 `json:"discountRate"`
		} `json:"appliedTier"`
		GroupTiers []struct {
			MinQuantity int `json:"minQuantity"`
		} `json:"groupTiers"`
	} `json:"groupDiscounts"`
	Warnings []string `json:"warnings"`
}

func calculate(t *testing.T, handler *quote.Handler, body string) (*httptest.ResponseRecorder, calcResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pricing/calculate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Calculate(rec, req)
	var resp calcResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestCalculatePlanTier(t *testing.T) {
	snap := catalog.Snapshot{
		Pricing: pricing.Snapshot{
			Plans: map[string][]pricing.PlanTiers{
				"SKU-1": {{
					PlanID:   3,
					PlanName: "volume promo",
					Tiers:    pricing.NewLadder(pricing.Tier{MinQty: 10, RateBps: 800, Description: "10+ units"}),
				}},
			},
		},
		Known: map[string]bool{"SKU-1": true},
	}
	handler := quote.NewHandler(&quote.Service{Catalog: fakeCatalog{snap: snap}, Logger: zerolog.Nop()})

	rec, resp := calculate(t, handler, `{"cartItems":[{"product":{"code":"SKU-1","price":100000},"quantity":10}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.ItemPrices, 1)

	item := resp.ItemPrices[0]
	require.Equal(t, int64(87700), item.StoreBasePrice)
	require.Equal(t, int64(80684), item.UnitPrice)
	require.Equal(t, int64(806840), item.TotalPrice)
	require.Equal(t, int64(70160), item.DiscountAmount)
	require.InDelta(t, 0.08, item.AppliedDiscountRate, 1e-9)
	require.Equal(t, "plan", item.DiscountSource)
	require.Equal(t, "10+ units", item.AppliedTierDescription)

	require.NotNil(t, resp.AppliedPlan)
	require.Equal(t, int64(3), resp.AppliedPlan.ID)
	require.NotNil(t, resp.AppliedTier)
	require.Equal(t, 10, resp.AppliedTier.MinQuantity)
	require.Equal(t, resp.Subtotal-resp.Discount, resp.FinalAmount)
	require.Empty(t, resp.Warnings)
}

func TestCalculateGroupDiscounts(t *testing.T) {
	snap := catalog.Snapshot{
		Pricing: pricing.Snapshot{
			Groups: []pricing.Group{{
				ID:      1,
				Name:    "Beverages",
				Members: map[string]bool{"KOPI-01": true, "TEH-02": true},
				Tiers: pricing.NewLadder(
					pricing.Tier{MinQty: 3, RateBps: 1000, Description: "3+ combined"},
					pricing.Tier{MinQty: 6, RateBps: 1500, Description: "6+ combined"},
				),
			}},
		},
		Known: map[string]bool{"KOPI-01": true, "TEH-02": true},
	}
	handler := quote.NewHandler(&quote.Service{Catalog: fakeCatalog{snap: snap}, Logger: zerolog.Nop()})

	rec, resp := calculate(t, handler,
		`{"cartItems":[{"product":{"code":"KOPI-01","price":10000},"quantity":2},{"product":{"code":"TEH-02","price":20000},"quantity":3}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.ItemPrices, 2)
	for _, item := range resp.ItemPrices {
		require.Equal(t, "group", item.DiscountSource)
		require.InDelta(t, 0.10, item.AppliedDiscountRate, 1e-9)
	}
	require.Len(t, resp.GroupDiscounts, 1)
	group := resp.GroupDiscounts[0]
	require.Equal(t, "Beverages", group.GroupName)
	require.NotNil(t, group.AppliedTier)
	require.Equal(t, 3, group.AppliedTier.MinQuantity)
	require.Len(t, group.GroupTiers, 2)
	require.Nil(t, resp.AppliedPlan)
}

func TestCalculateUnknownProductStillPriced(t *testing.T) {
	snap := catalog.Snapshot{Known: map[string]bool{}}
	handler := quote.NewHandler(&quote.Service{Catalog: fakeCatalog{snap: snap}, Logger: zerolog.Nop()})

	rec, resp := calculate(t, handler, `{"cartItems":[{"product":{"code":"GHOST","price":10000},"quantity":2}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.ItemPrices, 1)
	require.Equal(t, "GHOST", resp.ItemPrices[0].ProductCode)
	require.Zero(t, resp.ItemPrices[0].AppliedDiscountRate)
	require.Equal(t, int64(8770), resp.ItemPrices[0].UnitPrice)
}

func TestCalculateDegradesWhenCatalogUnavailable(t *testing.T) {
	handler := quote.NewHandler(&quote.Service{Catalog: fakeCatalog{err: catalog.ErrUnavailable}, Logger: zerolog.Nop()})

	rec, resp := calculate(t, handler, `{"cartItems":[{"product":{"code":"SKU-1","price":100000},"quantity":10}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.ItemPrices, 1)
	require.Equal(t, int64(87700), resp.ItemPrices[0].UnitPrice)
	require.Zero(t, resp.ItemPrices[0].AppliedDiscountRate)
	require.NotEmpty(t, resp.Warnings)
}

func TestCalculateCatalogErrorMapsToServiceUnavailable(t *testing.T) {
	handler := quote.NewHandler(&quote.Service{Catalog: fakeCatalog{err: errors.New("boom")}, Logger: zerolog.Nop()})

	rec, _ := calculate(t, handler, `{"cartItems":[{"product":{"code":"SKU-1","price":1000},"quantity":1}]}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "CATALOG_ERROR")
}

func TestCalculateValidation(t *testing.T) {
	handler := quote.NewHandler(&quote.Service{Catalog: fakeCatalog{}, Logger: zerolog.Nop()})

	rec, _ := calculate(t, handler, `{"cartItems":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = calculate(t, handler, `{"cartItems":[{"product":{"code":"","price":1000},"quantity":1}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = calculate(t, handler, `{"cartItems":[{"product":{"code":"SKU-1","price":1000},"quantity":0}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = calculate(t, handler, `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalculateIdempotent(t *testing.T) {
	snap := catalog.Snapshot{
		Pricing: pricing.Snapshot{
			Plans: map[string][]pricing.PlanTiers{
				"SKU-1": {{PlanID: 3, PlanName: "promo", Tiers: pricing.NewLadder(pricing.Tier{MinQty: 2, RateBps: 500})}},
			},
		},
		Known: map[string]bool{"SKU-1": true},
	}
	handler := quote.NewHandler(&quote.Service{Catalog: fakeCatalog{snap: snap}, Logger: zerolog.Nop()})

	body := `{"cartItems":[{"product":{"code":"SKU-1","price":25000},"quantity":4}]}`
	first, _ := calculate(t, handler, body)
	second, _ := calculate(t, handler, body)
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, first.Body.String(), second.Body.String())
}
