// Package money formats prices for display.
package money

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.Korean)

// FormatKRW renders an amount in won with thousands separators, e.g. ₩15,000.
func FormatKRW(amount int64) string {
	return printer.Sprintf("₩%d", amount)
}
