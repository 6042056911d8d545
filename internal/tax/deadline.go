package tax

import (
	"math"
	"slices"
	"time"
)

// DeadlineKind classifies a statutory deadline.
type DeadlineKind string

const (
	KindVAT         DeadlineKind = "vat"
	KindProvisional DeadlineKind = "provisional"
	KindAnnual      DeadlineKind = "annual"
)

// Deadline is an upcoming filing or payment date.
type Deadline struct {
	Kind          DeadlineKind `json:"type"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	Date          string       `json:"date"`
	RemainingDays int          `json:"remainingDays"`
}

// NextDeadlines returns the next monthly VAT return, the next provisional
// tax instalment and the next annual income tax instalment as seen from now,
// nearest first. Dates are evaluated in now's location.
func NextDeadlines(now time.Time) []Deadline {
	loc := now.Location()
	y, m, d := now.Date()
	day := func(year int, month time.Month, dd int) time.Time {
		return time.Date(year, month, dd, 0, 0, 0, 0, loc)
	}

	// VAT is filed on the 28th; once past it the next month's return is due.
	vat := day(y, m, 28)
	if d > 28 {
		vat = day(y, m+1, 28)
	}

	provisional := []time.Time{
		day(y, time.May, 17),
		day(y, time.August, 17),
		day(y, time.November, 17),
		day(y+1, time.February, 17),
	}
	nextProv := provisional[len(provisional)-1]
	for _, p := range provisional {
		if p.After(now) {
			nextProv = p
			break
		}
	}

	annual := day(y, time.March, 31)
	if now.After(annual) {
		annual = day(y+1, time.March, 31)
	}

	out := []Deadline{
		newDeadline(KindVAT, vat.Format("January")+" VAT return", "Monthly VAT return and payment", vat, now),
		newDeadline(KindProvisional, "Provisional tax", "Quarterly advance tax on profit to date", nextProv, now),
		newDeadline(KindAnnual, "Annual income tax (1st instalment)", "Annual income tax return and first instalment", annual, now),
	}
	slices.SortStableFunc(out, func(a, b Deadline) int { return a.RemainingDays - b.RemainingDays })
	return out
}

func newDeadline(kind DeadlineKind, title, desc string, at, now time.Time) Deadline {
	return Deadline{
		Kind:          kind,
		Title:         title,
		Description:   desc,
		Date:          at.Format(time.DateOnly),
		RemainingDays: int(math.Ceil(at.Sub(now).Hours() / 24)),
	}
}
