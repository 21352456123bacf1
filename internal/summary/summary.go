// Package summary derives display-ready cart totals from collection lines and
// an optional authoritative summary returned by the backend.
package summary

import "math"

// Line is the minimal view of a collection item needed for totals
type Line struct {
	PriceCents int64
	Quantity   int
}

// Authoritative holds the totals computed by the backend.
// A nil field means the backend did not report it.
type Authoritative struct {
	ItemCount *int   `json:"itemCount,omitempty"`
	Subtotal  *int64 `json:"subtotal,omitempty"`
	Tax       *int64 `json:"tax,omitempty"`
	Shipping  *int64 `json:"shipping,omitempty"`
	Discount  *int64 `json:"discount,omitempty"`
	Total     *int64 `json:"total,omitempty"`
}

// Summary is the projected set of totals, all amounts in cents
type Summary struct {
	ItemCount int   `json:"itemCount"`
	Subtotal  int64 `json:"subtotal"`
	Tax       int64 `json:"tax"`
	Shipping  int64 `json:"shipping"`
	Discount  int64 `json:"discount"`
	Total     int64 `json:"total"`
}

// Rules parameterize the local computation
type Rules struct {
	TaxRate               float64 `json:"taxRate" yaml:"taxRate"`
	ShippingFlatCents     int64   `json:"shippingFlatCents" yaml:"shippingFlatCents"`
	FreeShippingThreshold int64   `json:"freeShippingThreshold" yaml:"freeShippingThreshold"`
}

// DefaultRules returns 20% tax and 4.99 flat shipping, free from 50.00
func DefaultRules() Rules {
	return Rules{
		TaxRate:               0.20,
		ShippingFlatCents:     499,
		FreeShippingThreshold: 5000,
	}
}

// Project resolves every field independently: an authoritative value wins,
// an absent one is computed locally from lines.
func Project(lines []Line, auth *Authoritative, rules Rules) Summary {
	if auth == nil {
		auth = &Authoritative{}
	}

	var s Summary

	if auth.ItemCount != nil {
		s.ItemCount = *auth.ItemCount
	} else {
		for _, l := range lines {
			s.ItemCount += l.Quantity
		}
	}

	if auth.Subtotal != nil {
		s.Subtotal = *auth.Subtotal
	} else {
		s.Subtotal = LocalSubtotal(lines)
	}

	if auth.Tax != nil {
		s.Tax = *auth.Tax
	} else {
		s.Tax = int64(math.Round(float64(s.Subtotal) * rules.TaxRate))
	}

	if auth.Shipping != nil {
		s.Shipping = *auth.Shipping
	} else {
		s.Shipping = localShipping(s.Subtotal, rules)
	}

	if auth.Discount != nil {
		s.Discount = *auth.Discount
	}

	if auth.Total != nil {
		s.Total = *auth.Total
	} else {
		s.Total = s.Subtotal + s.Tax + s.Shipping - s.Discount
	}

	return s
}

// LocalSubtotal sums price * quantity over lines
func LocalSubtotal(lines []Line) int64 {
	var total int64
	for _, l := range lines {
		total += l.PriceCents * int64(l.Quantity)
	}
	return total
}

func localShipping(subtotal int64, rules Rules) int64 {
	if subtotal <= 0 {
		return 0
	}
	if rules.FreeShippingThreshold > 0 && subtotal >= rules.FreeShippingThreshold {
		return 0
	}
	return rules.ShippingFlatCents
}

// WithoutLineTotals keeps only the fields that cannot be derived from the
// lines. Totals reported for a set of lines no longer shown locally would
// otherwise hide the local change.
func (a *Authoritative) WithoutLineTotals() *Authoritative {
	if a == nil {
		return nil
	}
	return &Authoritative{Discount: a.Discount}
}

// Authoritize converts a computed Summary into an Authoritative with every field set
func Authoritize(s Summary) *Authoritative {
	return &Authoritative{
		ItemCount: &s.ItemCount,
		Subtotal:  &s.Subtotal,
		Tax:       &s.Tax,
		Shipping:  &s.Shipping,
		Discount:  &s.Discount,
		Total:     &s.Total,
	}
}
