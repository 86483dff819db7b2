package domain

import "time"

// PaymentStatus описывает состояние платежа.
type PaymentStatus string

const (
	// PaymentStatusApproved — авторизация прошла успешно. Отклонённая попытка
	// записи не создаёт: в леджере живут только одобренные платежи.
	PaymentStatusApproved PaymentStatus = "approved"
)

// Payment описывает успешную авторизацию платежа по продаже.
// Именно на эту запись опирается workflow возвратов при расчёте суммы refund.
type Payment struct {
	ID          int64
	SaleID      int64
	Method      string
	Reference   string
	AmountMinor int64
	Status      PaymentStatus
	Timestamp   time.Time
}

// Validate проверяет корректность полей платежа.
func (p *Payment) Validate() []error {
	var errs []error

	if p.SaleID == 0 {
		errs = append(errs, ErrSaleNotFound)
	}
	if p.AmountMinor < 0 {
		errs = append(errs, ErrPriceInvalid)
	}

	return errs
}
