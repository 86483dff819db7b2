package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

// Store — in-memory реализация domain.Store для локальной разработки и тестов.
// Все карты защищены одним мьютексом; Atomically держит его на всю функцию
// и откатывает состояние из снимка при ошибке.
type Store struct {
	mu sync.RWMutex

	products  map[int64]domain.Product
	sales     map[int64]domain.Sale
	saleLines map[int64][]domain.SaleLine
	payments  map[int64]domain.Payment
	// paymentBySale ускоряет GetForSale: на продажу ровно один платёж.
	paymentBySale map[int64]int64
	returns       map[int64]domain.ReturnRequest
	// openReturnBySale отслеживает pending-заявки для запрета дублей.
	openReturnBySale map[int64]int64

	productSeq int64
	saleSeq    int64
	paymentSeq int64
	returnSeq  int64
}

var _ domain.Store = (*Store)(nil)

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{
		products:         make(map[int64]domain.Product),
		sales:            make(map[int64]domain.Sale),
		saleLines:        make(map[int64][]domain.SaleLine),
		payments:         make(map[int64]domain.Payment),
		paymentBySale:    make(map[int64]int64),
		returns:          make(map[int64]domain.ReturnRequest),
		openReturnBySale: make(map[int64]int64),
	}
}

// Catalog возвращает репозиторий каталога.
func (s *Store) Catalog() domain.ProductCatalog { return catalogView{s: s} }

// Sales возвращает репозиторий продаж.
func (s *Store) Sales() domain.SaleStore { return salesView{s: s} }

// Payments возвращает леджер платежей.
func (s *Store) Payments() domain.PaymentLedger { return paymentsView{s: s} }

// Returns возвращает леджер возвратов.
func (s *Store) Returns() domain.ReturnLedger { return returnsView{s: s} }

// Atomically выполняет fn под эксклюзивной блокировкой. При ошибке всё
// состояние восстанавливается из снимка, так что частичных записей не бывает.
func (s *Store) Atomically(ctx context.Context, fn func(domain.UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	uow := unitOfWork{s: s}
	if err := fn(uow); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type storeSnapshot struct {
	products         map[int64]domain.Product
	sales            map[int64]domain.Sale
	saleLines        map[int64][]domain.SaleLine
	payments         map[int64]domain.Payment
	paymentBySale    map[int64]int64
	returns          map[int64]domain.ReturnRequest
	openReturnBySale map[int64]int64
	productSeq       int64
	saleSeq          int64
	paymentSeq       int64
	returnSeq        int64
}

// snapshot копирует состояние, доступное внутри unit of work.
func (s *Store) snapshot() storeSnapshot {
	snap := storeSnapshot{
		products:         make(map[int64]domain.Product, len(s.products)),
		sales:            make(map[int64]domain.Sale, len(s.sales)),
		saleLines:        make(map[int64][]domain.SaleLine, len(s.saleLines)),
		payments:         make(map[int64]domain.Payment, len(s.payments)),
		paymentBySale:    make(map[int64]int64, len(s.paymentBySale)),
		returns:          make(map[int64]domain.ReturnRequest, len(s.returns)),
		openReturnBySale: make(map[int64]int64, len(s.openReturnBySale)),
		productSeq:       s.productSeq,
		saleSeq:          s.saleSeq,
		paymentSeq:       s.paymentSeq,
		returnSeq:        s.returnSeq,
	}
	for id, p := range s.products {
		snap.products[id] = p
	}
	for id, sale := range s.sales {
		snap.sales[id] = sale
	}
	for id, lines := range s.saleLines {
		cp := make([]domain.SaleLine, len(lines))
		copy(cp, lines)
		snap.saleLines[id] = cp
	}
	for id, p := range s.payments {
		snap.payments[id] = p
	}
	for saleID, id := range s.paymentBySale {
		snap.paymentBySale[saleID] = id
	}
	for id, r := range s.returns {
		snap.returns[id] = r
	}
	for saleID, id := range s.openReturnBySale {
		snap.openReturnBySale[saleID] = id
	}
	return snap
}

func (s *Store) restore(snap storeSnapshot) {
	s.products = snap.products
	s.sales = snap.sales
	s.saleLines = snap.saleLines
	s.payments = snap.payments
	s.paymentBySale = snap.paymentBySale
	s.returns = snap.returns
	s.openReturnBySale = snap.openReturnBySale
	s.productSeq = snap.productSeq
	s.saleSeq = snap.saleSeq
	s.paymentSeq = snap.paymentSeq
	s.returnSeq = snap.returnSeq
}

// unitOfWork отдаёт представления без блокировок: мьютекс уже удерживается
// Atomically на всё время транзакции.
type unitOfWork struct {
	s *Store
}

var _ domain.UnitOfWork = unitOfWork{}

func (u unitOfWork) Catalog() domain.ProductCatalog { return catalogView{s: u.s, inTx: true} }
func (u unitOfWork) Sales() domain.SaleStore        { return salesView{s: u.s, inTx: true} }
func (u unitOfWork) Payments() domain.PaymentLedger { return paymentsView{s: u.s, inTx: true} }
func (u unitOfWork) Returns() domain.ReturnLedger   { return returnsView{s: u.s, inTx: true} }

// --- каталог ---

type catalogView struct {
	s    *Store
	inTx bool
}

var _ domain.ProductCatalog = catalogView{}

func (v catalogView) Add(p domain.Product) (int64, error) {
	if !v.inTx {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
	}

	v.s.productSeq++
	p.ID = v.s.productSeq
	v.s.products[p.ID] = p
	return p.ID, nil
}

func (v catalogView) GetByID(id int64) (domain.Product, error) {
	if !v.inTx {
		v.s.mu.RLock()
		defer v.s.mu.RUnlock()
	}

	p, ok := v.s.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductMissing
	}
	return p, nil
}

func (v catalogView) List() ([]domain.Product, error) {
	if !v.inTx {
		v.s.mu.RLock()
		defer v.s.mu.RUnlock()
	}

	out := make([]domain.Product, 0, len(v.s.products))
	for _, p := range v.s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Reserve выполняет условный декремент под блокировкой хранилища:
// проверка и списание неразделимы, oversell невозможен.
func (v catalogView) Reserve(id int64, qty int32) (bool, error) {
	if !v.inTx {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
	}

	p, ok := v.s.products[id]
	if !ok {
		return false, domain.ErrProductMissing
	}
	if p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	v.s.products[id] = p
	return true, nil
}

func (v catalogView) Restock(id int64, qty int32) (bool, error) {
	if qty < 0 {
		return false, domain.ErrRestockQtyNegative
	}

	if !v.inTx {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
	}

	p, ok := v.s.products[id]
	if !ok {
		return false, domain.ErrProductMissing
	}
	p.Stock += qty
	v.s.products[id] = p
	return true, nil
}

// --- продажи ---

type salesView struct {
	s    *Store
	inTx bool
}

var _ domain.SaleStore = salesView{}

func (v salesView) Create(sale domain.Sale, lines []domain.SaleLine) (int64, error) {
	if !v.inTx {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
	}

	v.s.saleSeq++
	sale.ID = v.s.saleSeq
	v.s.sales[sale.ID] = sale

	cp := make([]domain.SaleLine, len(lines))
	copy(cp, lines)
	for i := range cp {
		cp[i].SaleID = sale.ID
	}
	v.s.saleLines[sale.ID] = cp
	return sale.ID, nil
}

func (v salesView) Get(id int64) (domain.Sale, error) {
	if !v.inTx {
		v.s.mu.RLock()
		defer v.s.mu.RUnlock()
	}

	sale, ok := v.s.sales[id]
	if !ok {
		return domain.Sale{}, domain.ErrSaleNotFound
	}
	return sale, nil
}

func (v salesView) Lines(saleID int64) ([]domain.SaleLine, error) {
	if !v.inTx {
		v.s.mu.RLock()
		defer v.s.mu.RUnlock()
	}

	lines, ok := v.s.saleLines[saleID]
	if !ok {
		return nil, domain.ErrSaleNotFound
	}
	out := make([]domain.SaleLine, len(lines))
	copy(out, lines)
	return out, nil
}

func (v salesView) SetStatus(id int64, status domain.SaleStatus) (bool, error) {
	if !v.inTx {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
	}

	sale, ok := v.s.sales[id]
	if !ok {
		return false, nil
	}
	sale.Status = status
	v.s.sales[id] = sale
	return true, nil
}

// --- платежи ---

type paymentsView struct {
	s    *Store
	inTx bool
}

var _ domain.PaymentLedger = paymentsView{}

func (v paymentsView) Record(p domain.Payment) (int64, error) {
	if !v.inTx {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
	}

	v.s.paymentSeq++
	p.ID = v.s.paymentSeq
	v.s.payments[p.ID] = p
	v.s.paymentBySale[p.SaleID] = p.ID
	return p.ID, nil
}

func (v paymentsView) GetForSale(saleID int64) (domain.Payment, error) {
	if !v.inTx {
		v.s.mu.RLock()
		defer v.s.mu.RUnlock()
	}

	id, ok := v.s.paymentBySale[saleID]
	if !ok {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return v.s.payments[id], nil
}

// --- возвраты ---

type returnsView struct {
	s    *Store
	inTx bool
}

var _ domain.ReturnLedger = returnsView{}

func (v returnsView) Create(r domain.ReturnRequest) (int64, error) {
	if !v.inTx {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
	}

	if _, exists := v.s.openReturnBySale[r.SaleID]; exists {
		return 0, domain.ErrReturnDuplicate
	}

	v.s.returnSeq++
	r.ID = v.s.returnSeq
	v.s.returns[r.ID] = r
	if r.Status == domain.ReturnStatusPending {
		v.s.openReturnBySale[r.SaleID] = r.ID
	}
	return r.ID, nil
}

func (v returnsView) Get(id int64) (domain.ReturnRequest, error) {
	if !v.inTx {
		v.s.mu.RLock()
		defer v.s.mu.RUnlock()
	}

	r, ok := v.s.returns[id]
	if !ok {
		return domain.ReturnRequest{}, domain.ErrReturnNotFound
	}
	return r, nil
}

func (v returnsView) HasOpenForSale(saleID int64) (bool, error) {
	if !v.inTx {
		v.s.mu.RLock()
		defer v.s.mu.RUnlock()
	}

	_, ok := v.s.openReturnBySale[saleID]
	return ok, nil
}

// Resolve переводит заявку в терминальный статус; условие "status == pending"
// проверяется под той же блокировкой, что и запись, поэтому две конкурентные
// попытки одобрения не могут пройти обе.
func (v returnsView) Resolve(id int64, status domain.ReturnStatus, refundRef, note string, resolvedAt time.Time) (bool, error) {
	if !v.inTx {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
	}

	r, ok := v.s.returns[id]
	if !ok || r.Status != domain.ReturnStatusPending {
		return false, nil
	}

	r.Status = status
	r.RefundReference = refundRef
	r.ResolutionNote = note
	r.ResolvedAt = resolvedAt
	v.s.returns[id] = r
	delete(v.s.openReturnBySale, r.SaleID)
	return true, nil
}

func (v returnsView) SetRefundReference(id int64, refundRef string) (bool, error) {
	if !v.inTx {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
	}

	r, ok := v.s.returns[id]
	if !ok {
		return false, nil
	}
	r.RefundReference = refundRef
	v.s.returns[id] = r
	return true, nil
}

func (v returnsView) ListForUser(userID int64) ([]domain.ReturnRequest, error) {
	if !v.inTx {
		v.s.mu.RLock()
		defer v.s.mu.RUnlock()
	}

	out := make([]domain.ReturnRequest, 0, len(v.s.returns))
	for _, r := range v.s.returns {
		if userID != 0 && r.UserID != userID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
