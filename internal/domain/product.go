package domain

import "time"

// Product описывает позицию каталога со стоком.
// Инвариант stock >= 0 поддерживается хранилищем: уменьшение стока
// допускается только через условный атомарный декремент (Reserve).
type Product struct {
	ID    int64
	Name  string
	// PriceMinor — базовая цена за единицу в минимальных денежных единицах.
	PriceMinor int64
	Stock      int32

	// PromoPriceMinor задаёт акционную цену; 0 означает "акции нет".
	PromoPriceMinor int64
	// PromoStart/PromoEnd ограничивают окно действия акционной цены.
	PromoStart time.Time
	PromoEnd   time.Time
}

// EffectivePriceMinor возвращает цену на момент now: акционную, если акция
// задана и окно активно, иначе базовую. Именно эта цена фиксируется в
// строке корзины при добавлении товара.
func (p *Product) EffectivePriceMinor(now time.Time) int64 {
	if p.PromoPriceMinor <= 0 {
		return p.PriceMinor
	}
	if now.Before(p.PromoStart) || !now.Before(p.PromoEnd) {
		return p.PriceMinor
	}
	return p.PromoPriceMinor
}

// Validate проверяет базовые инварианты товара.
func (p *Product) Validate() []error {
	var errs []error

	if p.PriceMinor < 0 {
		errs = append(errs, ErrPriceInvalid)
	}
	if p.PromoPriceMinor < 0 {
		errs = append(errs, ErrPriceInvalid)
	}

	return errs
}

// CartLine — строка корзины: товар, количество и цена, зафиксированная
// в момент добавления (не перечитывается при checkout). Name дублируется
// из каталога, чтобы чек печатался из того же снимка, что и продажа.
type CartLine struct {
	ProductID      int64
	Name           string
	Qty            int32
	UnitPriceMinor int64
}

// Validate проверяет корректность строки корзины.
func (l *CartLine) Validate() []error {
	var errs []error

	if l.Qty <= 0 {
		errs = append(errs, ErrQtyInvalid)
	}
	if l.UnitPriceMinor < 0 {
		errs = append(errs, ErrPriceInvalid)
	}

	return errs
}
