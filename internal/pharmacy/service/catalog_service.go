package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bitfantasy/medstock/internal/pharmacy/entity"
	"github.com/bitfantasy/medstock/internal/pharmacy/store"
)

// ProductService 药品档案维护
type ProductService struct {
	products store.ProductStore
}

func NewProductService(products store.ProductStore) *ProductService {
	return &ProductService{products: products}
}

// CreateProductRequest 新建药品
type CreateProductRequest struct {
	Code        string  `json:"code" binding:"required"`
	Name        string  `json:"name" binding:"required"`
	GenericName string  `json:"generic_name"`
	Category    string  `json:"category"`
	Unit        string  `json:"unit"`
	Spec        string  `json:"spec"`
	ShelfLife   int     `json:"shelf_life_months" binding:"gte=0"`
	RetailPrice float64 `json:"retail_price" binding:"gte=0"`
	Notes       string  `json:"notes"`
}

func (s *ProductService) CreateProduct(ctx context.Context, req CreateProductRequest) (*entity.Product, error) {
	product := &entity.Product{
		ID:          uuid.New().String(),
		Code:        req.Code,
		Name:        req.Name,
		GenericName: req.GenericName,
		Category:    req.Category,
		Unit:        req.Unit,
		Spec:        req.Spec,
		ShelfLife:   req.ShelfLife,
		RetailPrice: req.RetailPrice,
		Status:      "active",
		Notes:       req.Notes,
	}
	if product.Unit == "" {
		product.Unit = "盒"
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("创建产品失败: %w", err)
	}
	return product, nil
}

// UpdateProductRequest 修改药品，nil 字段不变
type UpdateProductRequest struct {
	Name        *string  `json:"name"`
	GenericName *string  `json:"generic_name"`
	Category    *string  `json:"category"`
	Unit        *string  `json:"unit"`
	Spec        *string  `json:"spec"`
	ShelfLife   *int     `json:"shelf_life_months"`
	RetailPrice *float64 `json:"retail_price"`
	Status      *string  `json:"status"`
	Notes       *string  `json:"notes"`
}

func (s *ProductService) UpdateProduct(ctx context.Context, id string, req UpdateProductRequest) (*entity.Product, error) {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.GenericName != nil {
		product.GenericName = *req.GenericName
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if req.Unit != nil {
		product.Unit = *req.Unit
	}
	if req.Spec != nil {
		product.Spec = *req.Spec
	}
	if req.ShelfLife != nil {
		product.ShelfLife = *req.ShelfLife
	}
	if req.RetailPrice != nil {
		product.RetailPrice = *req.RetailPrice
	}
	if req.Status != nil {
		product.Status = *req.Status
	}
	if req.Notes != nil {
		product.Notes = *req.Notes
	}
	if err := s.products.Save(ctx, product); err != nil {
		return nil, fmt.Errorf("保存产品失败: %w", err)
	}
	return product, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id string) (*entity.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Entity: "产品", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("查询产品失败: %w", err)
	}
	return product, nil
}

func (s *ProductService) ListProducts(ctx context.Context, keyword string, page, size int) ([]entity.Product, int64, error) {
	return s.products.List(ctx, keyword, page, size)
}

// SupplierService 供应商维护
type SupplierService struct {
	suppliers store.SupplierStore
}

func NewSupplierService(suppliers store.SupplierStore) *SupplierService {
	return &SupplierService{suppliers: suppliers}
}

// CreateSupplierRequest 新建供应商
type CreateSupplierRequest struct {
	Code    string `json:"code" binding:"required"`
	Name    string `json:"name" binding:"required"`
	Contact string `json:"contact"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	License string `json:"license"`
	Notes   string `json:"notes"`
	ActorID string `json:"-"`
}

func (s *SupplierService) CreateSupplier(ctx context.Context, req CreateSupplierRequest) (*entity.Supplier, error) {
	supplier := &entity.Supplier{
		ID:        uuid.New().String(),
		Code:      req.Code,
		Name:      req.Name,
		Contact:   req.Contact,
		Phone:     req.Phone,
		Address:   req.Address,
		License:   req.License,
		Status:    "active",
		Notes:     req.Notes,
		CreatedBy: req.ActorID,
	}
	if err := s.suppliers.Create(ctx, supplier); err != nil {
		return nil, fmt.Errorf("创建供应商失败: %w", err)
	}
	return supplier, nil
}

// UpdateSupplierRequest 修改供应商，nil 字段不变
type UpdateSupplierRequest struct {
	Name    *string `json:"name"`
	Contact *string `json:"contact"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
	License *string `json:"license"`
	Status  *string `json:"status"`
	Notes   *string `json:"notes"`
}

func (s *SupplierService) UpdateSupplier(ctx context.Context, id string, req UpdateSupplierRequest) (*entity.Supplier, error) {
	supplier, err := s.GetSupplier(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		supplier.Name = *req.Name
	}
	if req.Contact != nil {
		supplier.Contact = *req.Contact
	}
	if req.Phone != nil {
		supplier.Phone = *req.Phone
	}
	if req.Address != nil {
		supplier.Address = *req.Address
	}
	if req.License != nil {
		supplier.License = *req.License
	}
	if req.Status != nil {
		supplier.Status = *req.Status
	}
	if req.Notes != nil {
		supplier.Notes = *req.Notes
	}
	if err := s.suppliers.Save(ctx, supplier); err != nil {
		return nil, fmt.Errorf("保存供应商失败: %w", err)
	}
	return supplier, nil
}

func (s *SupplierService) GetSupplier(ctx context.Context, id string) (*entity.Supplier, error) {
	supplier, err := s.suppliers.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Entity: "供应商", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("查询供应商失败: %w", err)
	}
	return supplier, nil
}

func (s *SupplierService) ListSuppliers(ctx context.Context, keyword string, page, size int) ([]entity.Supplier, int64, error) {
	return s.suppliers.List(ctx, keyword, page, size)
}
