// Package memory 提供 store 接口的内存实现。
// 未配置数据库时（开发/演示模式）组合根使用该实现，测试也基于它。
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bitfantasy/medstock/internal/pharmacy/entity"
	"github.com/bitfantasy/medstock/internal/pharmacy/store"
)

// Store 内存存储，同时实现全部 store 接口。
type Store struct {
	mu sync.RWMutex

	orders    map[string]*entity.PurchaseOrder
	products  map[string]*entity.Product
	suppliers map[string]*entity.Supplier
	batches   map[string]*entity.ProductBatch
	movements []*entity.StockMovement
	sales     map[string]*entity.Sale
	logs      []*entity.ActivityLog

	orderSeq int
	saleSeq  int
	batchSeq map[string]int // 批次创建顺序，FIFO 排序用

	lockMu       sync.Mutex
	productLocks map[string]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		orders:       make(map[string]*entity.PurchaseOrder),
		products:     make(map[string]*entity.Product),
		suppliers:    make(map[string]*entity.Supplier),
		batches:      make(map[string]*entity.ProductBatch),
		sales:        make(map[string]*entity.Sale),
		batchSeq:     make(map[string]int),
		productLocks: make(map[string]*sync.Mutex),
	}
}

var (
	_ store.OrderStore = (*Store)(nil)
	_ store.AuditStore = (*Store)(nil)
)

// ---- OrderStore ----

func (s *Store) Create(ctx context.Context, order *entity.PurchaseOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	for i := range order.Items {
		order.Items[i].CreatedAt = now
		order.Items[i].UpdatedAt = now
	}
	s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (s *Store) Save(ctx context.Context, order *entity.PurchaseOrder, want string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.orders[order.ID]
	if !ok {
		return false, store.ErrNotFound
	}
	if stored.Status != want {
		return false, nil
	}
	order.Status = stored.Status
	order.UpdatedAt = time.Now()
	s.orders[order.ID] = cloneOrder(order)
	return true, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneOrder(order)
	if sup, ok := s.suppliers[order.SupplierID]; ok {
		cp := *sup
		out.Supplier = &cp
	}
	return out, nil
}

func (s *Store) FindBySupplier(ctx context.Context, supplierID string) ([]entity.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []entity.PurchaseOrder
	for _, o := range s.orders {
		if o.SupplierID == supplierID {
			result = append(result, *cloneOrder(o))
		}
	}
	sortOrders(result)
	return result, nil
}

func (s *Store) FindByDateRange(ctx context.Context, start, end time.Time) ([]entity.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []entity.PurchaseOrder
	for _, o := range s.orders {
		if !o.CreatedAt.Before(start) && !o.CreatedAt.After(end) {
			result = append(result, *cloneOrder(o))
		}
	}
	sortOrders(result)
	return result, nil
}

func (s *Store) List(ctx context.Context, q store.OrderQuery) ([]entity.PurchaseOrder, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []entity.PurchaseOrder
	for _, o := range s.orders {
		if q.SupplierID != "" && o.SupplierID != q.SupplierID {
			continue
		}
		if q.Status != "" && o.Status != q.Status {
			continue
		}
		if q.Start != nil && o.CreatedAt.Before(*q.Start) {
			continue
		}
		if q.End != nil && o.CreatedAt.After(*q.End) {
			continue
		}
		matched = append(matched, *cloneOrder(o))
	}
	sortOrders(matched)
	total := int64(len(matched))
	return paginate(matched, q.Page, q.Size), total, nil
}

func (s *Store) NextOrderNumber(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderSeq++
	return fmt.Sprintf("PO-%s-%04d", time.Now().Format("2006"), s.orderSeq), nil
}

func (s *Store) UpdateStatus(ctx context.Context, id, from, to string, patch store.OrderPatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if order.Status != from {
		return false, nil
	}
	order.Status = to
	if patch.ApprovedBy != nil {
		order.ApprovedBy = patch.ApprovedBy
		order.ApprovedAt = patch.ApprovedAt
	}
	if patch.ProcessedBy != nil {
		order.ProcessedBy = patch.ProcessedBy
		order.ProcessedAt = patch.ProcessedAt
	}
	if patch.CancelReason != nil {
		order.CancelReason = *patch.CancelReason
	}
	order.UpdatedAt = time.Now()
	return true, nil
}

func (s *Store) MarkItemStocked(ctx context.Context, itemID, batchID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		for i := range o.Items {
			if o.Items[i].ID == itemID {
				bid := batchID
				ts := at
				o.Items[i].StockedBatchID = &bid
				o.Items[i].StockedAt = &ts
				o.Items[i].UpdatedAt = time.Now()
				return nil
			}
		}
	}
	return store.ErrNotFound
}

// ---- BatchStore ----

func (s *Store) WithProductLock(ctx context.Context, productID string, fn func(bs store.BatchStore) error) error {
	s.lockMu.Lock()
	mu, ok := s.productLocks[productID]
	if !ok {
		mu = &sync.Mutex{}
		s.productLocks[productID] = mu
	}
	s.lockMu.Unlock()

	mu.Lock()
	defer mu.Unlock()
	return fn(s.Batches())
}

func (s *Store) FindBatch(ctx context.Context, id string) (*entity.ProductBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *Store) ListByProduct(ctx context.Context, productID string) ([]entity.ProductBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []entity.ProductBatch
	for _, b := range s.batches {
		if b.ProductID == productID {
			result = append(result, *b)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return s.batchSeq[result[i].ID] < s.batchSeq[result[j].ID]
	})
	return result, nil
}

func (s *Store) FindByProductAndBatchNo(ctx context.Context, productID, batchNo string) (*entity.ProductBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.batches {
		if b.ProductID == productID && b.BatchNo == batchNo {
			cp := *b
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateBatch(ctx context.Context, batch *entity.ProductBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	batch.CreatedAt = now
	batch.UpdatedAt = now
	cp := *batch
	s.batches[batch.ID] = &cp
	s.batchSeq[batch.ID] = len(s.batchSeq) + 1
	return nil
}

func (s *Store) UpdateQuantity(ctx context.Context, batchID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok {
		return store.ErrNotFound
	}
	b.Quantity = quantity
	b.UpdatedAt = time.Now()
	return nil
}

func (s *Store) SumOnHand(ctx context.Context, productID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, b := range s.batches {
		if b.ProductID == productID {
			total += b.Quantity
		}
	}
	return total, nil
}

func (s *Store) RecordMovement(ctx context.Context, m *entity.StockMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.CreatedAt = time.Now()
	cp := *m
	s.movements = append(s.movements, &cp)
	return nil
}

func (s *Store) FindMovementByReference(ctx context.Context, movementType, reference string) (*entity.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.movements {
		if m.MovementType == movementType && m.Reference == reference {
			cp := *m
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListMovements(ctx context.Context, productID string, page, size int) ([]entity.StockMovement, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []entity.StockMovement
	for _, m := range s.movements {
		if productID == "" || m.ProductID == productID {
			matched = append(matched, *m)
		}
	}
	// 流水按写入时间倒序返回
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	total := int64(len(matched))
	return paginate(matched, page, size), total, nil
}

// ---- ProductStore / SupplierStore ----

func (s *Store) CreateProduct(ctx context.Context, p *entity.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *Store) SaveProduct(ctx context.Context, p *entity.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; !ok {
		return store.ErrNotFound
	}
	p.UpdatedAt = time.Now()
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *Store) FindProduct(ctx context.Context, id string) (*entity.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) ListProducts(ctx context.Context, keyword string, page, size int) ([]entity.Product, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []entity.Product
	for _, p := range s.products {
		if keyword == "" || strings.Contains(p.Name, keyword) || strings.Contains(p.Code, keyword) {
			matched = append(matched, *p)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Code < matched[j].Code })
	total := int64(len(matched))
	return paginate(matched, page, size), total, nil
}

func (s *Store) ProductExists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.products[id]
	return ok, nil
}

func (s *Store) CreateSupplier(ctx context.Context, sup *entity.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	sup.CreatedAt = now
	sup.UpdatedAt = now
	cp := *sup
	s.suppliers[sup.ID] = &cp
	return nil
}

func (s *Store) SaveSupplier(ctx context.Context, sup *entity.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.suppliers[sup.ID]; !ok {
		return store.ErrNotFound
	}
	sup.UpdatedAt = time.Now()
	cp := *sup
	s.suppliers[sup.ID] = &cp
	return nil
}

func (s *Store) FindSupplier(ctx context.Context, id string) (*entity.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sup, ok := s.suppliers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *sup
	return &cp, nil
}

func (s *Store) ListSuppliers(ctx context.Context, keyword string, page, size int) ([]entity.Supplier, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []entity.Supplier
	for _, sup := range s.suppliers {
		if keyword == "" || strings.Contains(sup.Name, keyword) || strings.Contains(sup.Code, keyword) {
			matched = append(matched, *sup)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Code < matched[j].Code })
	total := int64(len(matched))
	return paginate(matched, page, size), total, nil
}

func (s *Store) SupplierExists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.suppliers[id]
	return ok, nil
}

// ---- SaleStore ----

func (s *Store) CreateSale(ctx context.Context, sale *entity.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	sale.CreatedAt = now
	sale.UpdatedAt = now
	for i := range sale.Items {
		sale.Items[i].CreatedAt = now
	}
	cp := *sale
	cp.Items = append([]entity.SaleItem(nil), sale.Items...)
	s.sales[sale.ID] = &cp
	return nil
}

func (s *Store) FindSale(ctx context.Context, id string) (*entity.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sale, ok := s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *sale
	cp.Items = append([]entity.SaleItem(nil), sale.Items...)
	return &cp, nil
}

func (s *Store) ListSales(ctx context.Context, start, end *time.Time, page, size int) ([]entity.Sale, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []entity.Sale
	for _, sale := range s.sales {
		if start != nil && sale.CreatedAt.Before(*start) {
			continue
		}
		if end != nil && sale.CreatedAt.After(*end) {
			continue
		}
		cp := *sale
		cp.Items = append([]entity.SaleItem(nil), sale.Items...)
		matched = append(matched, cp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := int64(len(matched))
	return paginate(matched, page, size), total, nil
}

func (s *Store) NextSaleNumber(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saleSeq++
	return fmt.Sprintf("SO-%s-%04d", time.Now().Format("20060102"), s.saleSeq), nil
}

// ---- AuditStore ----

func (s *Store) Emit(ctx context.Context, log *entity.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	log.CreatedAt = time.Now()
	cp := *log
	s.logs = append(s.logs, &cp)
	return nil
}

func (s *Store) ListByEntity(ctx context.Context, entityType, entityID string) ([]entity.ActivityLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []entity.ActivityLog
	for _, l := range s.logs {
		if l.EntityType == entityType && l.EntityID == entityID {
			result = append(result, *l)
		}
	}
	return result, nil
}

// ---- helpers ----

func cloneOrder(o *entity.PurchaseOrder) *entity.PurchaseOrder {
	cp := *o
	cp.Items = append([]entity.PurchaseOrderItem(nil), o.Items...)
	cp.Supplier = nil
	return &cp
}

func sortOrders(orders []entity.PurchaseOrder) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].OrderNumber > orders[j].OrderNumber
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

func paginate[T any](items []T, page, size int) []T {
	if size <= 0 {
		return items
	}
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * size
	if start >= len(items) {
		return nil
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
