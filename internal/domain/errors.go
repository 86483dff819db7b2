package domain

import "errors"

var (
	// ErrNotLoggedIn — операция требует аутентифицированного пользователя.
	ErrNotLoggedIn = errors.New("user is not logged in")
	// ErrEmptyCart — попытка checkout с пустой корзиной.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrProductMissing — товар не найден в каталоге.
	ErrProductMissing = errors.New("product not found")
	// ErrInsufficientStock — на складе меньше товара, чем запрошено.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrCircuitOpen — платёжный circuit breaker открыт, попытка оплаты не выполнялась.
	ErrCircuitOpen = errors.New("circuit breaker open")
	// ErrPaymentDeclined — платёж отклонён стратегией или провайдером.
	ErrPaymentDeclined = errors.New("payment declined")
	// ErrStockConflict — конкурирующий checkout успел забрать сток между проверкой и коммитом.
	ErrStockConflict = errors.New("stock conflict")
	// ErrExternalService — внешний сервис (инвентарь/доставка) вернул ошибку после коммита.
	ErrExternalService = errors.New("external service error")
	// ErrRefundFailed — компенсирующий возврат средств не удался; фиксируется, но не
	// подменяет исходную причину провала.
	ErrRefundFailed = errors.New("refund failed")

	// ErrSaleNotFound — продажа не найдена в хранилище.
	ErrSaleNotFound = errors.New("sale not found")
	// ErrPaymentNotFound — для продажи нет записи о платеже.
	ErrPaymentNotFound = errors.New("no payment record for sale")

	// ErrReturnNotFound — заявка на возврат (RMA) не найдена.
	ErrReturnNotFound = errors.New("return request not found")
	// ErrReturnNotOwned — заявку пытается оформить не владелец заказа.
	ErrReturnNotOwned = errors.New("sale does not belong to requester")
	// ErrReturnWrongStatus — возврат возможен только для завершённой продажи.
	ErrReturnWrongStatus = errors.New("sale is not in completed status")
	// ErrReturnDuplicate — по продаже уже есть незакрытая заявка на возврат.
	ErrReturnDuplicate = errors.New("open return request already exists for sale")
	// ErrReturnAlreadyProcessed — заявка уже переведена в терминальный статус.
	ErrReturnAlreadyProcessed = errors.New("return request already processed")

	// ErrQtyInvalid — количество должно быть больше нуля.
	ErrQtyInvalid = errors.New("qty must be greater than zero")
	// ErrPriceInvalid — цена не может быть отрицательной.
	ErrPriceInvalid = errors.New("price must be non-negative")
	// ErrRestockQtyNegative — отрицательный restock является ошибкой программиста,
	// а не бизнес-сценарием.
	ErrRestockQtyNegative = errors.New("restock qty must be non-negative")
)

// FailureCode — машинно-читаемый код исхода checkout/возврата для метрик и событий.
type FailureCode string

const (
	FailureNone              FailureCode = ""
	FailureNotLoggedIn       FailureCode = "not_logged_in"
	FailureEmptyCart         FailureCode = "empty_cart"
	FailureProductMissing    FailureCode = "product_missing"
	FailureInsufficientStock FailureCode = "insufficient_stock"
	FailureCircuitOpen       FailureCode = "circuit_open"
	FailurePaymentDeclined   FailureCode = "payment_declined"
	FailureStockConflict     FailureCode = "stock_conflict"
	FailureDBError           FailureCode = "db_error"
	FailureExternalService   FailureCode = "external_service_error"
)

// ClassifyFailure сопоставляет ошибку ядра коду исхода. Неизвестные ошибки
// трактуются как ошибка хранилища: до авторизации платежа они безопасны,
// после — уже запускают компенсацию.
func ClassifyFailure(err error) FailureCode {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrNotLoggedIn):
		return FailureNotLoggedIn
	case errors.Is(err, ErrEmptyCart):
		return FailureEmptyCart
	case errors.Is(err, ErrProductMissing):
		return FailureProductMissing
	case errors.Is(err, ErrInsufficientStock):
		return FailureInsufficientStock
	case errors.Is(err, ErrCircuitOpen):
		return FailureCircuitOpen
	case errors.Is(err, ErrPaymentDeclined):
		return FailurePaymentDeclined
	case errors.Is(err, ErrStockConflict):
		return FailureStockConflict
	case errors.Is(err, ErrExternalService):
		return FailureExternalService
	default:
		return FailureDBError
	}
}

// IsCompensable сообщает, требует ли ошибка шага после авторизации
// компенсирующего возврата средств.
func IsCompensable(code FailureCode) bool {
	switch code {
	case FailureStockConflict, FailureDBError, FailureExternalService:
		return true
	default:
		return false
	}
}

// IsReturnPreconditionError проверяет, относится ли ошибка к нарушению
// предусловий заявки на возврат.
func IsReturnPreconditionError(err error) bool {
	return errors.Is(err, ErrNotLoggedIn) ||
		errors.Is(err, ErrSaleNotFound) ||
		errors.Is(err, ErrReturnNotOwned) ||
		errors.Is(err, ErrReturnWrongStatus) ||
		errors.Is(err, ErrReturnDuplicate)
}
