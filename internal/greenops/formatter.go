package greenops

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// printer groups thousands with English separators.
//
//nolint:gochecknoglobals // Global printer is idiomatic for x/text/message usage.
var printer = message.NewPrinter(language.English)

// FormatNumber formats an integer with thousand separators: 18248 → "18,248".
func FormatNumber(n int64) string {
	return printer.Sprintf("%d", n)
}

// FormatFloat rounds f half away from zero to precision decimals and
// formats it with thousand separators: (1234.567, 2) → "1,234.57".
func FormatFloat(f float64, precision int) string {
	if precision <= 0 {
		return FormatNumber(int64(math.Round(f)))
	}
	scale := math.Pow(10, float64(precision))
	rounded := math.Round(f*scale) / scale

	digits := strconv.FormatFloat(math.Abs(rounded), 'f', precision, 64)
	intDigits, frac, _ := strings.Cut(digits, ".")
	n, err := strconv.ParseInt(intDigits, 10, 64)
	if err != nil {
		return digits
	}
	sign := ""
	if rounded < 0 {
		sign = "-"
	}
	return sign + FormatNumber(n) + "." + frac
}

// FormatKg formats a kilogram amount for display, switching to tonnes at
// or above 1,000 kg.
func FormatKg(kg float64) string {
	if kg >= TonsToKg {
		return FormatFloat(kg/TonsToKg, 2) + " t"
	}
	return FormatFloat(kg, 1) + " kg"
}

// FormatLarge abbreviates millions and billions ("~1.5 billion") and
// falls back to grouped integers below LargeNumberThreshold.
func FormatLarge(n float64) string {
	switch {
	case n >= BillionThreshold:
		return fmt.Sprintf("~%.1f billion", n/BillionThreshold)
	case n >= LargeNumberThreshold:
		return fmt.Sprintf("~%.1f million", n/LargeNumberThreshold)
	default:
		return FormatNumber(int64(math.Round(n)))
	}
}
