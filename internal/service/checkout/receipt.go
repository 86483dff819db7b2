package checkout

import (
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

func dollars(minor int64) float64 {
	return float64(minor) / 100
}

// BuildReceipt печатает чек завершённой продажи из снимка корзины.
// Суммы хранятся в минимальных единицах и переводятся в доллары
// только при выводе.
func BuildReceipt(saleID int64, lines []domain.CartLine, subtotalMinor, totalMinor int64, method, reference string) string {
	var b strings.Builder

	b.WriteString("Receipt\n")
	fmt.Fprintf(&b, "Sale ID: %d\n", saleID)
	for _, l := range lines {
		lineTotal := int64(l.Qty) * l.UnitPriceMinor
		fmt.Fprintf(&b, " - %s x %d @ %.2f = %.2f\n", l.Name, l.Qty, dollars(l.UnitPriceMinor), dollars(lineTotal))
	}
	fmt.Fprintf(&b, "Subtotal: %.2f\n", dollars(subtotalMinor))
	fmt.Fprintf(&b, "Total: %.2f\n", dollars(totalMinor))
	fmt.Fprintf(&b, "Payment Method: %s\n", method)
	fmt.Fprintf(&b, "Payment Ref: %s\n", reference)

	return b.String()
}
