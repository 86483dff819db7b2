package app

import (
	"github.com/vladislavdragonenkov/retail/internal/domain"
)

// newTestProduct создаёт товар каталога для использования в тестах.
func newTestProduct() domain.Product {
	return domain.Product{
		Name:       "wireless-mouse",
		PriceMinor: 4999,
		Stock:      10,
	}
}
