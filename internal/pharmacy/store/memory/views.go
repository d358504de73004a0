package memory

import (
	"context"
	"time"

	"github.com/bitfantasy/medstock/internal/pharmacy/entity"
	"github.com/bitfantasy/medstock/internal/pharmacy/store"
)

// Store 自身实现 OrderStore 与 AuditStore；其余接口的方法名
// 互相冲突（Create/Save/FindByID），通过视图类型暴露。

func (s *Store) Orders() store.OrderStore  { return s }
func (s *Store) Audit() store.AuditStore   { return s }
func (s *Store) Batches() store.BatchStore { return batchView{s} }

func (s *Store) Products() store.ProductStore   { return productView{s} }
func (s *Store) Suppliers() store.SupplierStore { return supplierView{s} }
func (s *Store) Sales() store.SaleStore         { return saleView{s} }

type batchView struct{ *Store }

func (v batchView) Create(ctx context.Context, batch *entity.ProductBatch) error {
	return v.CreateBatch(ctx, batch)
}

type productView struct{ *Store }

func (v productView) Create(ctx context.Context, p *entity.Product) error {
	return v.CreateProduct(ctx, p)
}

func (v productView) Save(ctx context.Context, p *entity.Product) error {
	return v.SaveProduct(ctx, p)
}

func (v productView) FindByID(ctx context.Context, id string) (*entity.Product, error) {
	return v.FindProduct(ctx, id)
}

func (v productView) List(ctx context.Context, keyword string, page, size int) ([]entity.Product, int64, error) {
	return v.ListProducts(ctx, keyword, page, size)
}

func (v productView) Exists(ctx context.Context, id string) (bool, error) {
	return v.ProductExists(ctx, id)
}

type supplierView struct{ *Store }

func (v supplierView) Create(ctx context.Context, sup *entity.Supplier) error {
	return v.CreateSupplier(ctx, sup)
}

func (v supplierView) Save(ctx context.Context, sup *entity.Supplier) error {
	return v.SaveSupplier(ctx, sup)
}

func (v supplierView) FindByID(ctx context.Context, id string) (*entity.Supplier, error) {
	return v.FindSupplier(ctx, id)
}

func (v supplierView) List(ctx context.Context, keyword string, page, size int) ([]entity.Supplier, int64, error) {
	return v.ListSuppliers(ctx, keyword, page, size)
}

func (v supplierView) Exists(ctx context.Context, id string) (bool, error) {
	return v.SupplierExists(ctx, id)
}

type saleView struct{ *Store }

func (v saleView) Create(ctx context.Context, sale *entity.Sale) error {
	return v.CreateSale(ctx, sale)
}

func (v saleView) FindByID(ctx context.Context, id string) (*entity.Sale, error) {
	return v.FindSale(ctx, id)
}

func (v saleView) List(ctx context.Context, start, end *time.Time, page, size int) ([]entity.Sale, int64, error) {
	return v.ListSales(ctx, start, end, page, size)
}

var (
	_ store.BatchStore    = batchView{}
	_ store.ProductStore  = productView{}
	_ store.SupplierStore = supplierView{}
	_ store.SaleStore     = saleView{}
)
