package service

// Shipping fee policy: flat fee below the free-shipping threshold, free at or
// above it. Applied to the discounted subtotal.
const (
	FreeShippingThresholdCents int64 = 50000
	BaseShippingFeeCents       int64 = 3000
)

// ShippingFee returns the shipping fee for a discounted subtotal.
func ShippingFee(discountedSubtotalCents int64) int64 {
	if discountedSubtotalCents >= FreeShippingThresholdCents {
		return 0
	}
	return BaseShippingFeeCents
}
