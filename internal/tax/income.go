package tax

import (
	"errors"
	"fmt"
	"math"
)

// Bracket taxes the slice of profit between the previous bracket's Limit and
// this one's at Rate (a fraction, 0.15 means 15%).
type Bracket struct {
	Limit float64 `yaml:"limit" json:"limit"`
	Rate  float64 `yaml:"rate" json:"rate"`
}

// Brackets is an ascending bracket table. The last Limit is normally +Inf.
type Brackets []Bracket

// DefaultBrackets is the non-wage income tax table used when configuration
// does not override it.
var DefaultBrackets = Brackets{
	{Limit: 158000, Rate: 0.15},
	{Limit: 330000, Rate: 0.20},
	{Limit: 800000, Rate: 0.27},
	{Limit: 4300000, Rate: 0.35},
	{Limit: math.Inf(1), Rate: 0.40},
}

// ErrBrackets is returned by Validate for malformed tables.
var ErrBrackets = errors.New("tax: invalid brackets")

// Validate checks that limits are strictly ascending and positive and that
// every rate lies in [0, 1].
func (b Brackets) Validate() error {
	if len(b) == 0 {
		return fmt.Errorf("%w: empty", ErrBrackets)
	}
	var errs []error
	prev := 0.0
	for i, br := range b {
		if math.IsNaN(br.Limit) || br.Limit <= prev {
			errs = append(errs, fmt.Errorf("%w: bracket %d limit %v not above %v", ErrBrackets, i, br.Limit, prev))
		}
		if math.IsNaN(br.Rate) || br.Rate < 0 || br.Rate > 1 {
			errs = append(errs, fmt.Errorf("%w: bracket %d rate %v outside [0,1]", ErrBrackets, i, br.Rate))
		}
		prev = br.Limit
	}
	return errors.Join(errs...)
}

// Estimate is the result of EstimateIncomeTax.
type Estimate struct {
	Profit float64 `json:"profit"`
	Tax    float64 `json:"tax"`
	// EffectiveRate is Tax/Profit in percent.
	EffectiveRate float64 `json:"effectiveRate"`
	// MarginalRate is the rate of the highest bracket reached, in percent.
	MarginalRate float64 `json:"marginalRate"`
}

// EstimateIncomeTax applies the progressive table to income minus expense.
// A non-positive profit yields a zero estimate.
func EstimateIncomeTax(income, expense float64, brackets Brackets) Estimate {
	profit := income - expense
	if profit <= 0 || math.IsNaN(profit) {
		return Estimate{Profit: math.Max(profit, 0)}
	}

	est := Estimate{Profit: profit}
	remaining := profit
	prev := 0.0
	for _, br := range brackets {
		slice := math.Min(remaining, br.Limit-prev)
		if slice <= 0 {
			break
		}
		est.Tax += slice * br.Rate
		est.MarginalRate = br.Rate * 100
		remaining -= slice
		prev = br.Limit
		if remaining <= 0 {
			break
		}
	}
	est.EffectiveRate = est.Tax / profit * 100
	return est
}
