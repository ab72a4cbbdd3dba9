package domain

// PricingBreakdown captures the aggregated monetary results of pricing a cart.
// All amounts are integer minor currency units.
type PricingBreakdown struct {
	Currency string
	Subtotal int64
	Discount int64
	Shipping int64
	Total    int64
}
