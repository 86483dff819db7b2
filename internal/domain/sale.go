package domain

import "time"

// SaleStatus описывает жизненный цикл продажи.
type SaleStatus string

const (
	// SaleStatusCompleted — продажа зафиксирована и оплачена.
	SaleStatusCompleted SaleStatus = "completed"
	// SaleStatusRefunded — по продаже оформлен возврат средств.
	// Это единственный допустимый переход из completed.
	SaleStatusRefunded SaleStatus = "refunded"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s SaleStatus) Valid() bool {
	switch s {
	case SaleStatusCompleted, SaleStatusRefunded:
		return true
	default:
		return false
	}
}

// SaleLine — неизменяемая строка продажи, создаётся один раз вместе с продажей.
type SaleLine struct {
	SaleID         int64
	ProductID      int64
	Qty            int32
	UnitPriceMinor int64
}

// Sale агрегирует зафиксированную продажу. После создания запись неизменна,
// кроме единственного перехода статуса completed → refunded.
type Sale struct {
	ID            int64
	UserID        int64
	Timestamp     time.Time
	SubtotalMinor int64
	TotalMinor    int64
	Status        SaleStatus
}

// ValidateInvariants проверяет согласованность продажи с её строками.
func (s *Sale) ValidateInvariants(lines []SaleLine) []error {
	var errs []error

	if s.UserID == 0 {
		errs = append(errs, ErrNotLoggedIn)
	}
	if len(lines) == 0 {
		errs = append(errs, ErrEmptyCart)
	}
	if s.TotalMinor < 0 || s.SubtotalMinor < 0 {
		errs = append(errs, ErrPriceInvalid)
	}

	// Сверяем сумму продажи с суммой строк: qty * unit price.
	var calc int64
	for _, line := range lines {
		if line.Qty <= 0 {
			errs = append(errs, ErrQtyInvalid)
		}
		if line.UnitPriceMinor < 0 {
			errs = append(errs, ErrPriceInvalid)
		}
		calc += int64(line.Qty) * line.UnitPriceMinor
	}
	if calc != s.SubtotalMinor {
		errs = append(errs, ErrPriceInvalid)
	}

	return errs
}

// LinesTotalMinor считает сумму строк в минимальных единицах.
func LinesTotalMinor(lines []SaleLine) int64 {
	var total int64
	for _, line := range lines {
		total += int64(line.Qty) * line.UnitPriceMinor
	}
	return total
}
