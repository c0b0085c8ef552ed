package trade

import (
	"github.com/shopspring/decimal"
)

// UnitScale maps a currency code to the venue's fixed-point divisor for it.
// A divisor D means one native integer unit is 1/D of the currency.
type UnitScale map[string]int64

// ToUnits converts a decimal amount to the venue's integer encoding,
// rounding half away from zero. round(v*D)/D recovers v to within 1/D.
func (s UnitScale) ToUnits(currency string, v decimal.Decimal) (int64, error) {
	d, ok := s[currency]
	if !ok {
		return 0, Validationf("no unit divisor for currency %s", currency)
	}
	return v.Mul(decimal.NewFromInt(d)).Round(0).IntPart(), nil
}

// FromUnits converts a venue integer encoding back to a decimal amount.
func (s UnitScale) FromUnits(currency string, units int64) (decimal.Decimal, error) {
	d, ok := s[currency]
	if !ok {
		return decimal.Decimal{}, Validationf("no unit divisor for currency %s", currency)
	}
	return decimal.NewFromInt(units).Div(decimal.NewFromInt(d)), nil
}
