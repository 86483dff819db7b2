package domain

import (
	"context"
	"time"
)

// ProductCatalog описывает требования к хранилищу каталога со стоком.
type ProductCatalog interface {
	// Add сохраняет новый товар и возвращает его идентификатор.
	Add(p Product) (int64, error)
	// GetByID возвращает товар или ErrProductMissing, если его нет.
	GetByID(id int64) (Product, error)
	// List возвращает все товары каталога.
	List() ([]Product, error)
	// Reserve выполняет единственный безопасный путь уменьшения стока:
	// атомарный условный декремент "stock = stock - qty WHERE stock >= qty".
	// Возвращает true, если резерв удался. Раздельные read-then-write
	// запрещены: под конкурентными checkout они приводят к oversell.
	Reserve(id int64, qty int32) (bool, error)
	// Restock безусловно увеличивает сток. qty < 0 — ошибка программиста
	// (ErrRestockQtyNegative), а не бизнес-отказ.
	Restock(id int64, qty int32) (bool, error)
}

// SaleStore описывает требования к хранилищу продаж.
type SaleStore interface {
	// Create сохраняет продажу вместе со строками и возвращает её ID.
	Create(sale Sale, lines []SaleLine) (int64, error)
	// Get возвращает продажу или ErrSaleNotFound.
	Get(id int64) (Sale, error)
	// Lines возвращает строки продажи.
	Lines(saleID int64) ([]SaleLine, error)
	// SetStatus применяет переход статуса; false, если продажа не найдена.
	SetStatus(id int64, status SaleStatus) (bool, error)
}

// PaymentLedger хранит успешные авторизации платежей.
type PaymentLedger interface {
	// Record сохраняет платёж и возвращает его ID.
	Record(p Payment) (int64, error)
	// GetForSale возвращает платёж по продаже или ErrPaymentNotFound.
	GetForSale(saleID int64) (Payment, error)
}

// ReturnLedger хранит заявки на возврат.
type ReturnLedger interface {
	// Create сохраняет заявку; ErrReturnDuplicate, если по продаже уже есть
	// незакрытая заявка.
	Create(r ReturnRequest) (int64, error)
	// Get возвращает заявку или ErrReturnNotFound.
	Get(id int64) (ReturnRequest, error)
	// HasOpenForSale проверяет наличие pending-заявки по продаже.
	HasOpenForSale(saleID int64) (bool, error)
	// Resolve переводит pending-заявку в терминальный статус. Возвращает
	// false, если заявка не найдена или уже обработана: условие на статус
	// выполняется хранилищем атомарно, что исключает двойное одобрение.
	Resolve(id int64, status ReturnStatus, refundRef, note string, resolvedAt time.Time) (bool, error)
	// SetRefundReference записывает reference возврата средств по заявке;
	// false, если заявка не найдена.
	SetRefundReference(id int64, refundRef string) (bool, error)
	// ListForUser возвращает заявки пользователя; userID == 0 — все заявки.
	ListForUser(userID int64) ([]ReturnRequest, error)
}

// UnitOfWork даёт доступ к репозиториям внутри одной атомарной единицы работы.
type UnitOfWork interface {
	Catalog() ProductCatalog
	Sales() SaleStore
	Payments() PaymentLedger
	Returns() ReturnLedger
}

// Store агрегирует репозитории и умеет выполнять функцию атомарно:
// либо применяются все изменения fn, либо ни одно из них. Шаг Persisting
// checkout-саги выполняется строго внутри Atomically.
type Store interface {
	Catalog() ProductCatalog
	Sales() SaleStore
	Payments() PaymentLedger
	Returns() ReturnLedger
	Atomically(ctx context.Context, fn func(UnitOfWork) error) error
}

// PaymentGateway описывает взаимодействие саги с платёжным слоем.
type PaymentGateway interface {
	// Authorize пытается авторизовать платёж и возвращает reference.
	// Ошибки: ErrCircuitOpen (попытка не выполнялась) или обёрнутый
	// ErrPaymentDeclined с причиной отказа.
	Authorize(ctx context.Context, amountMinor int64, method string) (string, error)
	// Refund выполняет компенсирующий возврат средств. Breaker не
	// учитывается: возвраты корректирующие и не должны блокироваться.
	Refund(ctx context.Context, reference string, amountMinor int64) (string, error)
}

// InventorySyncNotifier синхронизирует сток с внешней системой после коммита.
type InventorySyncNotifier interface {
	Notify(ctx context.Context, saleID int64, lines []SaleLine) error
}

// ShipmentNotifier создаёт отгрузку во внешнем сервисе доставки.
type ShipmentNotifier interface {
	Create(ctx context.Context, saleID, userID int64, lines []SaleLine) error
}

// ResellerOrder — полезная нагрузка уведомления реселлера.
type ResellerOrder struct {
	SaleID int64
	UserID int64
	Lines  []SaleLine
}

// ResellerNotifier размещает заказ у реселлера. Вызов best-effort:
// ошибка логируется и никогда не проваливает checkout.
type ResellerNotifier interface {
	Place(ctx context.Context, name string, order ResellerOrder) error
}
