package pricing

// Money represents a monetary value stored in whole currency units.
type Money = int64

// WholesaleMarginBps is the system-wide wholesale margin in basis points
// (12.3%). Every consumer list price is converted into a store base price by
// subtracting this margin. Client-side fallbacks mirror this value; it must
// only change here.
const WholesaleMarginBps int32 = 1230

// rateScale is the basis-point denominator used for all rate arithmetic.
const rateScale = 10000

// StoreBasePrice derives the wholesale store base price from a consumer list
// price. Rounds half-up to the nearest whole currency unit. Negative input is
// a caller contract violation and is clamped to zero.
func StoreBasePrice(consumerPrice Money) Money {
	if consumerPrice < 0 {
		return 0
	}
	return discountByRate(consumerPrice, WholesaleMarginBps)
}

// discountByRate reduces amount by rate basis points, rounding half-up.
func discountByRate(amount Money, rateBps int32) Money {
	if rateBps <= 0 {
		return amount
	}
	if rateBps >= rateScale {
		return 0
	}
	return (amount*Money(rateScale-int64(rateBps)) + rateScale/2) / rateScale
}

// RateFraction converts a basis-point rate into the decimal fraction used in
// API payloads (800 -> 0.08).
func RateFraction(rateBps int32) float64 {
	return float64(rateBps) / rateScale
}
