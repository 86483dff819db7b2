package cart

import (
	"sync"
	"time"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

// Item — строка корзины с именем товара для печати чека.
type Item struct {
	ProductID int64
	Name      string
	Qty       int32
	// UnitPriceMinor фиксируется в момент добавления товара и не
	// перечитывается при checkout, даже если акция успела закончиться.
	UnitPriceMinor int64
}

// Cart — корзина покупателя. Безопасна для конкурентного использования.
// Порядок строк соответствует порядку добавления товаров.
type Cart struct {
	mu    sync.Mutex
	items []Item
}

// New создаёт пустую корзину.
func New() *Cart {
	return &Cart{}
}

// Add добавляет товар в корзину по эффективной цене на момент now.
// Повторное добавление того же товара увеличивает количество существующей
// строки, сохраняя её исходную цену. Проверка стока здесь только
// предупредительная: окончательное слово за атомарным резервом при checkout.
func (c *Cart) Add(p domain.Product, qty int32, now time.Time) error {
	if qty <= 0 {
		return domain.ErrQtyInvalid
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ProductID == p.ID {
			if c.items[i].Qty+qty > p.Stock {
				return domain.ErrInsufficientStock
			}
			c.items[i].Qty += qty
			return nil
		}
	}

	if qty > p.Stock {
		return domain.ErrInsufficientStock
	}

	c.items = append(c.items, Item{
		ProductID:      p.ID,
		Name:           p.Name,
		Qty:            qty,
		UnitPriceMinor: p.EffectivePriceMinor(now),
	})
	return nil
}

// Remove убирает строку товара целиком. Возвращает false, если товара
// в корзине не было.
func (c *Cart) Remove(productID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

// Clear опустошает корзину.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}

// Items возвращает копию строк корзины.
func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Len возвращает количество строк в корзине.
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// SubtotalMinor считает сумму корзины в минимальных единицах.
func (c *Cart) SubtotalMinor() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total int64
	for _, it := range c.items {
		total += int64(it.Qty) * it.UnitPriceMinor
	}
	return total
}

// Snapshot возвращает строки корзины в доменном представлении.
// Checkout работает со снимком, а не с живой корзиной.
func (c *Cart) Snapshot() []domain.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()

	lines := make([]domain.CartLine, 0, len(c.items))
	for _, it := range c.items {
		lines = append(lines, domain.CartLine{
			ProductID:      it.ProductID,
			Name:           it.Name,
			Qty:            it.Qty,
			UnitPriceMinor: it.UnitPriceMinor,
		})
	}
	return lines
}
