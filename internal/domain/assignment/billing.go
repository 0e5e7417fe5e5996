package assignment

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Strob0t/StaffForge/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Margin returns (clientRate - rate) / clientRate * 100 rounded to two
// places, or zero when no client rate is set.
func Margin(rate, clientRate decimal.Decimal) decimal.Decimal {
	if !clientRate.IsPositive() {
		return decimal.Zero
	}
	return clientRate.Sub(rate).Div(clientRate).Mul(hundred).Round(2)
}

// NewBilling derives billing terms from the requested input.
func NewBilling(in BillingInput, budget *BudgetInput) Billing {
	b := Billing{
		Rate:       in.Rate,
		RateType:   in.RateType,
		ClientRate: in.ClientRate,
		Margin:     Margin(in.Rate, in.ClientRate),
		Currency:   in.Currency,
		Billable:   true,
	}
	if b.RateType == "" {
		b.RateType = RateHourly
	}
	if in.Billable != nil {
		b.Billable = *in.Billable
	}
	if budget != nil && budget.Total.IsPositive() {
		thresholds := slices.Clone(budget.AlertThresholds)
		slices.Sort(thresholds)
		b.Budget = &Budget{
			Total:           budget.Total,
			Used:            decimal.Zero,
			Remaining:       budget.Total,
			AlertThresholds: thresholds,
			Alerted:         []int{},
		}
	}
	return b
}

// ApplyBilling replaces the commercial terms while keeping budget spend.
func (a *Assignment) ApplyBilling(in BillingInput) {
	budget := a.Billing.Budget
	a.Billing = NewBilling(in, nil)
	a.Billing.Budget = budget
}

// Cost returns the charge for hours worked under the billing terms. Fixed
// rates never accrue per hour.
func (b Billing) Cost(hours float64, hoursPerDay float64) decimal.Decimal {
	h := decimal.NewFromFloat(hours)
	switch b.RateType {
	case RateHourly:
		return b.Rate.Mul(h)
	case RateDaily:
		if hoursPerDay <= 0 {
			return decimal.Zero
		}
		return b.Rate.Mul(h).Div(decimal.NewFromFloat(hoursPerDay))
	default:
		return decimal.Zero
	}
}

// LogTime adds a time entry and charges billable hours to the budget. It
// returns the budget thresholds crossed by this entry.
func (a *Assignment) LogTime(e TimeEntry, hoursPerDay float64, actor string, now time.Time) ([]int, error) {
	if e.Hours <= 0 {
		return nil, domain.NewValidation("invalid time entry", domain.FieldError{Field: "hours", Message: "must be greater than 0"})
	}
	if a.Status != StatusActive {
		return nil, domain.Validationf("time can only be logged on active assignments, %s is %s", a.ID, a.Status)
	}
	a.TimeTracking.HoursLogged += e.Hours
	if e.Billable && a.Billing.Billable {
		a.TimeTracking.BillableHours += e.Hours
	} else {
		a.TimeTracking.NonBillableHours += e.Hours
	}
	a.TimeTracking.LastLoggedAt = &now
	a.touch(actor, now)

	b := a.Billing.Budget
	if b == nil || !e.Billable || !a.Billing.Billable {
		return nil, nil
	}
	b.Used = b.Used.Add(a.Billing.Cost(e.Hours, hoursPerDay))
	b.Remaining = b.Total.Sub(b.Used)

	used := b.Used.Div(b.Total).Mul(hundred)
	var crossed []int
	for _, t := range b.AlertThresholds {
		if slices.Contains(b.Alerted, t) {
			continue
		}
		if used.GreaterThanOrEqual(decimal.NewFromInt(int64(t))) {
			b.Alerted = append(b.Alerted, t)
			crossed = append(crossed, t)
		}
	}
	return crossed, nil
}
