// Package tax holds the tax arithmetic shared by the ledger tools: inclusive
// VAT decomposition, progressive income tax estimation and the statutory
// filing calendar.
package tax

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidRate is returned for negative or non-finite rates.
var ErrInvalidRate = errors.New("tax: invalid rate")

// InclusiveVAT splits a tax-inclusive gross amount into its net and VAT
// parts for a rate given in percent (20 means 20%). The VAT portion is
// gross*rate/(100+rate); net is gross minus VAT.
func InclusiveVAT(gross, ratePercent float64) (net, vat float64, err error) {
	if math.IsNaN(ratePercent) || math.IsInf(ratePercent, 0) || ratePercent < 0 {
		return 0, 0, fmt.Errorf("%w: %v", ErrInvalidRate, ratePercent)
	}
	if math.IsNaN(gross) || math.IsInf(gross, 0) {
		return 0, 0, fmt.Errorf("tax: invalid amount %v", gross)
	}
	vat = gross * ratePercent / (100 + ratePercent)
	return gross - vat, vat, nil
}

// ExclusiveVAT returns the VAT due on a net amount. Used when an amount is
// recorded without the tax-included flag.
func ExclusiveVAT(net, ratePercent float64) (float64, error) {
	if math.IsNaN(ratePercent) || math.IsInf(ratePercent, 0) || ratePercent < 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidRate, ratePercent)
	}
	return net * ratePercent / 100, nil
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
