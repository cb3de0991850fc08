package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value carried as a decimal string. It never passes
// through float64.
type Amount string

// zero-decimal and three-decimal currencies as reported in minor units
var currencyExponents = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "JPY": 0, "KMF": 0, "KRW": 0, "MGA": 0,
	"PYG": 0, "RWF": 0, "UGX": 0, "VND": 0, "VUV": 0, "XAF": 0, "XOF": 0, "XPF": 0,
	"BHD": 3, "JOD": 3, "KWD": 3, "OMR": 3, "TND": 3,
}

// CurrencyExponent returns the number of minor-unit digits for an ISO currency
func CurrencyExponent(currency string) int32 {
	if exp, ok := currencyExponents[strings.ToUpper(currency)]; ok {
		return exp
	}
	return 2
}

// ParseAmount keeps the provider's precision and scale ("19.90" stays "19.90").
// Empty or unparseable input yields the empty amount.
func ParseAmount(s string) Amount {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ""
	}
	return AmountFromDecimal(d)
}

// AmountFromDecimal renders a decimal without dropping trailing zeros
func AmountFromDecimal(d decimal.Decimal) Amount {
	places := -d.Exponent()
	if places < 0 {
		places = 0
	}
	return Amount(d.StringFixed(places))
}

// AmountFromMinorUnits converts integer minor units (cents) exactly
func AmountFromMinorUnits(units int64, currency string) Amount {
	exp := CurrencyExponent(currency)
	return Amount(decimal.New(units, -exp).StringFixed(exp))
}

// RoundedAmount parses s and rounds half away from zero to the given places
func RoundedAmount(s string, places int32) Amount {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ""
	}
	return Amount(d.Round(places).StringFixed(places))
}

// Decimal returns the value as a decimal; ok is false for the empty amount
func (a Amount) Decimal() (decimal.Decimal, bool) {
	if a == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(string(a))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// SumAmounts adds amounts, skipping empty ones
func SumAmounts(amounts ...Amount) Amount {
	total := decimal.Zero
	seen := false
	for _, a := range amounts {
		if d, ok := a.Decimal(); ok {
			total = total.Add(d)
			seen = true
		}
	}
	if !seen {
		return ""
	}
	return AmountFromDecimal(total)
}

func (a Amount) String() string { return string(a) }
