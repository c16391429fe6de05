package account

import "time"

// Tariff tiers an account can be billed under.
const (
	TariffTier900  = "tier900"
	TariffTier1300 = "tier1300"
	TariffTier2200 = "tier2200"
	TariffOther    = "other"
)

// Defaults applied to accounts that never changed their budget settings.
const (
	DefaultMonthlyBudget = 250000.0
	DefaultTariffTier    = TariffTier1300
)

// Account is the slice of a user record the core needs: where to push
// notifications and how to evaluate the monthly budget.
type Account struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	PushTokens []string `json:"-"`

	// MonthlyBudget is in Rupiah. Zero disables budget warnings.
	MonthlyBudget float64 `json:"monthlyBudget"`
	TariffTier    string  `json:"tariffTier"`

	// BudgetNotified records the month the last budget warning went out.
	BudgetNotified BudgetMark `json:"budgetNotificationSent"`

	CreatedAt time.Time `json:"createdAt"`
}

// BudgetMark identifies a calendar month. The zero value means "never".
type BudgetMark struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// MarkFor returns the BudgetMark of t's calendar month.
func MarkFor(t time.Time) BudgetMark {
	return BudgetMark{Month: int(t.Month()), Year: t.Year()}
}

// NotifiedFor reports whether a budget warning already went out in t's month.
func (a *Account) NotifiedFor(t time.Time) bool {
	return a.BudgetNotified == MarkFor(t)
}

// ValidTariffTier reports whether tier is one of the known tariff tiers.
func ValidTariffTier(tier string) bool {
	switch tier {
	case TariffTier900, TariffTier1300, TariffTier2200, TariffOther:
		return true
	}
	return false
}
