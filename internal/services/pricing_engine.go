package services

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrPricingInvalidInput signals bad pricing data such as negative prices or non-positive quantities.
	ErrPricingInvalidInput = errors.New("pricing: invalid input")
	// ErrPricingOverflow is returned when a line or cart total exceeds the int64 range.
	ErrPricingOverflow = errors.New("pricing: amount overflow")
)

// ComputeTotals derives the monetary breakdown for a cart snapshot. All
// arithmetic is in integer minor currency units. The function is pure;
// the same inputs always produce the same breakdown.
//
// AmountOff takes precedence over PercentOff when a coupon carries both.
// Percentage discounts are floored. The final total never goes below zero.
func ComputeTotals(items []CartItem, delivery *DeliveryMethod, coupon *Coupon) (PricingBreakdown, error) {
	subtotal, err := subtotalOf(items)
	if err != nil {
		return PricingBreakdown{}, err
	}

	discount, err := discountOf(coupon, subtotal)
	if err != nil {
		return PricingBreakdown{}, err
	}

	var shipping int64
	if delivery != nil {
		if delivery.Price < 0 {
			return PricingBreakdown{}, fmt.Errorf("%w: delivery price %d is negative", ErrPricingInvalidInput, delivery.Price)
		}
		shipping = delivery.Price
	}

	total := subtotal - discount + shipping
	if total < 0 {
		total = 0
	}

	return PricingBreakdown{
		Subtotal: subtotal,
		Discount: discount,
		Shipping: shipping,
		Total:    total,
	}, nil
}

func subtotalOf(items []CartItem) (int64, error) {
	var subtotal int64
	for _, item := range items {
		if item.Quantity <= 0 {
			return 0, fmt.Errorf("%w: quantity %d for product %s", ErrPricingInvalidInput, item.Quantity, item.ProductID)
		}
		if item.UnitPrice < 0 {
			return 0, fmt.Errorf("%w: unit price %d for product %s", ErrPricingInvalidInput, item.UnitPrice, item.ProductID)
		}

		quantity := int64(item.Quantity)
		if item.UnitPrice > 0 && quantity > math.MaxInt64/item.UnitPrice {
			return 0, fmt.Errorf("%w: line for product %s", ErrPricingOverflow, item.ProductID)
		}
		line := item.UnitPrice * quantity
		if subtotal > math.MaxInt64-line {
			return 0, ErrPricingOverflow
		}
		subtotal += line
	}
	return subtotal, nil
}

func discountOf(coupon *Coupon, subtotal int64) (int64, error) {
	if coupon == nil {
		return 0, nil
	}
	if coupon.AmountOff < 0 {
		return 0, fmt.Errorf("%w: amountOff %d", ErrPricingInvalidInput, coupon.AmountOff)
	}
	if coupon.PercentOff < 0 || coupon.PercentOff > 100 {
		return 0, fmt.Errorf("%w: percentOff %v", ErrPricingInvalidInput, coupon.PercentOff)
	}

	if coupon.AmountOff > 0 {
		return coupon.AmountOff, nil
	}
	if coupon.PercentOff > 0 {
		return int64(math.Floor(float64(subtotal) * coupon.PercentOff / 100)), nil
	}
	return 0, nil
}
