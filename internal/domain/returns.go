package domain

import "time"

// ReturnStatus описывает жизненный цикл заявки на возврат (RMA).
type ReturnStatus string

const (
	// ReturnStatusPending — заявка создана и ожидает решения.
	ReturnStatusPending ReturnStatus = "pending"
	// ReturnStatusApproved — возврат одобрен, средства возвращены.
	ReturnStatusApproved ReturnStatus = "approved"
	// ReturnStatusRejected — возврат отклонён; денежных и складских эффектов нет.
	ReturnStatusRejected ReturnStatus = "rejected"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s ReturnStatus) Valid() bool {
	switch s {
	case ReturnStatusPending, ReturnStatusApproved, ReturnStatusRejected:
		return true
	default:
		return false
	}
}

// Terminal сообщает, является ли статус конечным: из approved/rejected
// переходов больше нет.
func (s ReturnStatus) Terminal() bool {
	return s == ReturnStatusApproved || s == ReturnStatusRejected
}

// ReturnRequest — заявка на возврат по продаже. На одну продажу допускается
// не больше одной незакрытой (pending) заявки.
type ReturnRequest struct {
	ID        int64
	SaleID    int64
	UserID    int64
	RMANumber string
	// Reason — причина возврата, указанная покупателем при создании заявки.
	Reason      string
	Status      ReturnStatus
	RequestedAt time.Time
	// ResolvedAt заполняется при переходе в терминальный статус.
	ResolvedAt time.Time
	// RefundReference — ссылка на возврат средств; только для approved.
	RefundReference string
	// ResolutionNote фиксирует причину решения (например, отказ из-за
	// отсутствия записи о платеже).
	ResolutionNote string
}

// Validate проверяет корректность ключевых полей заявки.
func (r *ReturnRequest) Validate() []error {
	var errs []error

	if r.SaleID == 0 {
		errs = append(errs, ErrSaleNotFound)
	}
	if r.UserID == 0 {
		errs = append(errs, ErrNotLoggedIn)
	}
	if !r.Status.Valid() {
		errs = append(errs, ErrReturnWrongStatus)
	}

	return errs
}
