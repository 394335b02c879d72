package shared

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var moneyPrinter = message.NewPrinter(language.English)

// FormatAmount renders a minor-unit amount with thousand separators for
// audit descriptions and ledger notes.
func FormatAmount(amount int64) string {
	return moneyPrinter.Sprintf("%d", amount)
}
