package quote

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-grosir/internal/common"
	"github.com/noah-isme/backend-grosir/internal/obs"
	"github.com/noah-isme/backend-grosir/internal/pricing"
)

// Handler wires the pricing calculation service to HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// NewHandler constructs a handler with a ready validator instance.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc, Validate: validator.New()}
}

type calcProduct struct {
	Code  string `json:"code" validate:"required"`
	Price int64  `json:"price" validate:"min=0"`
}

type calcItem struct {
	Product  calcProduct `json:"product"`
	Quantity int         `json:"quantity" validate:"required,min=1"`
}

type calcRequest struct {
	CartItems []calcItem `json:"cartItems" validate:"required,min=1,dive"`
}

type tierPayload struct {
	MinQuantity  int     `json:"minQuantity"`
	DiscountRate float64 `json:"discountRate"`
	Description  string  `json:"description"`
}

type itemPricePayload struct {
	ProductCode            string  `json:"productCode"`
	Quantity               int     `json:"quantity"`
	StoreBasePrice         int64   `json:"storeBasePrice"`
	UnitPrice              int64   `json:"unitPrice"`
	TotalPrice             int64   `json:"totalPrice"`
	DiscountAmount         int64   `json:"discountAmount"`
	AppliedDiscountRate    float64 `json:"appliedDiscountRate"`
	DiscountSource         string  `json:"discountSource"`
	AppliedTierDescription string  `json:"appliedTierDescription,omitempty"`
}

type planPayload struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type groupDiscountPayload struct {
	GroupName   string        `json:"groupName"`
	Description string        `json:"description"`
	GroupTiers  []tierPayload `json:"groupTiers"`
	AppliedTier *tierPayload  `json:"appliedTier"`
}

type calcResponse struct {
	Subtotal       int64                  `json:"subtotal"`
	Discount       int64                  `json:"discount"`
	FinalAmount    int64                  `json:"finalAmount"`
	ItemPrices     []itemPricePayload     `json:"itemPrices"`
	AppliedPlan    *planPayload           `json:"appliedPlan,omitempty"`
	AppliedTier    *tierPayload           `json:"appliedTier,omitempty"`
	GroupDiscounts []groupDiscountPayload `json:"groupDiscounts"`
	Warnings       []string               `json:"warnings,omitempty"`
}

// Calculate handles POST /api/v1/pricing/calculate. The endpoint is a pure
// function of cart contents: order-entry surfaces re-request it on every
// quantity change and rely on identical carts producing identical results.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	start := time.Now()

	var payload calcRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.record("bad_request", start)
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			h.record("validation_error", start)
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid cart items", validationDetails(err))
			return
		}
	}

	lines := make([]pricing.Line, 0, len(payload.CartItems))
	for _, item := range payload.CartItems {
		lines = append(lines, pricing.Line{
			ProductCode:   item.Product.Code,
			ConsumerPrice: item.Product.Price,
			Qty:           item.Quantity,
		})
	}

	result, err := h.Svc.Calculate(r.Context(), lines)
	if err != nil {
		var lineErr *pricing.LineError
		if errors.As(err, &lineErr) {
			h.record("validation_error", start)
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", lineErr.Error(), map[string]any{
				"line":  lineErr.Index,
				"field": lineErr.Field,
			})
			return
		}
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			h.record("error", start)
			common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
			return
		}
		h.record("error", start)
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to calculate pricing", nil)
		return
	}

	if obs.PricingLinesPerCart != nil {
		obs.PricingLinesPerCart.Observe(float64(len(lines)))
	}
	if result.Degraded {
		h.record("degraded", start)
	} else {
		h.record("ok", start)
	}
	common.JSON(w, http.StatusOK, buildResponse(result))
}

func (h *Handler) record(result string, start time.Time) {
	if obs.PricingCalcTotal != nil {
		obs.PricingCalcTotal.WithLabelValues(result).Inc()
	}
	if obs.PricingCalcDuration != nil {
		obs.PricingCalcDuration.Observe(obs.DurationMillis(time.Since(start)))
	}
}

func buildResponse(result Result) calcResponse {
	cart := result.Cart
	resp := calcResponse{
		Subtotal:       cart.Subtotal,
		Discount:       cart.Discount,
		FinalAmount:    cart.FinalAmount,
		ItemPrices:     make([]itemPricePayload, 0, len(cart.Lines)),
		GroupDiscounts: make([]groupDiscountPayload, 0, len(cart.Groups)),
	}
	for _, line := range cart.Lines {
		resp.ItemPrices = append(resp.ItemPrices, itemPricePayload{
			ProductCode:            line.ProductCode,
			Quantity:               line.Qty,
			StoreBasePrice:         line.StoreBasePrice,
			UnitPrice:              line.UnitPrice,
			TotalPrice:             line.TotalPrice,
			DiscountAmount:         line.DiscountAmount,
			AppliedDiscountRate:    pricing.RateFraction(line.RateBps),
			DiscountSource:         string(line.Source),
			AppliedTierDescription: line.TierDescription,
		})
	}
	if cart.AppliedPlan != nil {
		resp.AppliedPlan = &planPayload{ID: cart.AppliedPlan.PlanID, Name: cart.AppliedPlan.PlanName}
		tier := tierToPayload(cart.AppliedPlan.Tier)
		resp.AppliedTier = &tier
	}
	for _, group := range cart.Groups {
		entry := groupDiscountPayload{
			GroupName:   group.GroupName,
			Description: group.Description,
			GroupTiers:  make([]tierPayload, 0, len(group.Tiers)),
		}
		for _, tier := range group.Tiers {
			entry.GroupTiers = append(entry.GroupTiers, tierToPayload(tier))
		}
		if group.AppliedTier != nil {
			tier := tierToPayload(*group.AppliedTier)
			entry.AppliedTier = &tier
		}
		resp.GroupDiscounts = append(resp.GroupDiscounts, entry)
	}
	if result.Degraded {
		resp.Warnings = append(resp.Warnings, "promotions temporarily unavailable; prices calculated without discounts")
	}
	return resp
}

func tierToPayload(tier pricing.Tier) tierPayload {
	return tierPayload{
		MinQuantity:  tier.MinQty,
		DiscountRate: pricing.RateFraction(tier.RateBps),
		Description:  tier.Description,
	}
}

func validationDetails(err error) any {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	details := make([]map[string]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, map[string]string{
			"field": fe.Namespace(),
			"rule":  fe.Tag(),
		})
	}
	return details
}
