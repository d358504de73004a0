package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/bitfantasy/medstock/internal/pharmacy/entity"
	"github.com/bitfantasy/medstock/internal/pharmacy/store"
	"github.com/bitfantasy/medstock/internal/pharmacy/store/memory"
)

func (e *orderTestEnv) stockUp(t *testing.T, productID string, qty int) {
	t.Helper()
	if _, err := e.stock.IncreaseStock(context.Background(), IncreaseStockRequest{
		ProductID: productID,
		Quantity:  qty,
	}); err != nil {
		t.Fatalf("stockUp %s: %v", productID, err)
	}
}

func TestCreateSale(t *testing.T) {
	env := newOrderTestEnv(t)
	ctx := context.Background()
	env.stockUp(t, "p1", 50)

	sale, err := env.sales.CreateSale(ctx, CreateSaleRequest{
		Items:   []SaleItemRequest{{ProductID: "p1", Quantity: 3}},
		ActorID: "clerk1",
	})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	if !strings.HasPrefix(sale.SaleNumber, "SO-") {
		t.Errorf("sale number = %s, want SO- prefix", sale.SaleNumber)
	}
	// 未传单价时取零售价
	if sale.TotalAmount != 3*12.5 {
		t.Errorf("total = %v, want %v", sale.TotalAmount, 3*12.5)
	}

	onHand, _ := env.stock.GetOnHand(ctx, "p1")
	if onHand != 47 {
		t.Errorf("on-hand = %d, want 47", onHand)
	}
}

func TestCreateSaleInsufficientStock(t *testing.T) {
	env := newOrderTestEnv(t)
	ctx := context.Background()
	env.stockUp(t, "p1", 2)

	_, err := env.sales.CreateSale(ctx, CreateSaleRequest{
		Items: []SaleItemRequest{{ProductID: "p1", Quantity: 5}},
	})
	var ise *InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("got %v, want InsufficientStockError", err)
	}

	// 销售被整体拒绝，库存不变
	onHand, _ := env.stock.GetOnHand(ctx, "p1")
	if onHand != 2 {
		t.Errorf("on-hand = %d, want 2", onHand)
	}
	sales, total, _ := env.sales.ListSales(ctx, nil, nil, 0, 0)
	if total != 0 || len(sales) != 0 {
		t.Errorf("sale persisted despite rejection")
	}
}

func TestCreateSaleUnknownProduct(t *testing.T) {
	env := newOrderTestEnv(t)

	_, err := env.sales.CreateSale(context.Background(), CreateSaleRequest{
		Items: []SaleItemRequest{{ProductID: "ghost", Quantity: 1}},
	})
	var nfe *NotFoundError
	if !errors.As(err, &nfe) {
		t.Errorf("got %v, want NotFoundError", err)
	}
}

// drainingSaleStore 在预检之后、逐行扣减之前掏空 p2 的库存，
// 模拟并发销售抢走后一行的货
type drainingSaleStore struct {
	store.SaleStore
	stock *StockService
	done  bool
}

func (d *drainingSaleStore) NextSaleNumber(ctx context.Context) (string, error) {
	if !d.done {
		d.done = true
		if _, err := d.stock.DecreaseStock(ctx, DecreaseStockRequest{
			ProductID:    "p2",
			Quantity:     5,
			MovementType: entity.MovementSaleOut,
			ActorID:      "rival",
		}); err != nil {
			return "", err
		}
	}
	return d.SaleStore.NextSaleNumber(ctx)
}

func TestCreateSaleCompensatesOnLostRace(t *testing.T) {
	st := memory.NewStore()
	drain := &drainingSaleStore{SaleStore: st.Sales()}
	svcs := New(Stores{
		Orders:    st.Orders(),
		Batches:   st.Batches(),
		Products:  st.Products(),
		Suppliers: st.Suppliers(),
		Sales:     drain,
		Audit:     st.Audit(),
	}, nil, zap.NewNop())
	drain.stock = svcs.Stock

	ctx := context.Background()
	st.CreateProduct(ctx, &entity.Product{ID: "p1", Code: "M001", Name: "药品一", RetailPrice: 10})
	st.CreateProduct(ctx, &entity.Product{ID: "p2", Code: "M002", Name: "药品二", RetailPrice: 8})
	for _, up := range []struct {
		productID string
		qty       int
	}{{"p1", 50}, {"p2", 5}} {
		if _, err := svcs.Stock.IncreaseStock(ctx, IncreaseStockRequest{ProductID: up.productID, Quantity: up.qty}); err != nil {
			t.Fatalf("IncreaseStock %s: %v", up.productID, err)
		}
	}

	_, err := svcs.Sales.CreateSale(ctx, CreateSaleRequest{
		Items: []SaleItemRequest{
			{ProductID: "p1", Quantity: 3},
			{ProductID: "p2", Quantity: 5},
		},
		ActorID: "clerk1",
	})
	var ise *InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("got %v, want InsufficientStockError", err)
	}

	// 第一行的扣减被冲正，库存回到销售前
	onHand, _ := svcs.Stock.GetOnHand(ctx, "p1")
	if onHand != 50 {
		t.Errorf("p1 on-hand = %d, want 50", onHand)
	}

	// 冲正留痕：p1 的流水为入库、出库、冲正各一条，净值为零
	movements, _, err := st.ListMovements(ctx, "p1", 0, 0)
	if err != nil {
		t.Fatalf("ListMovements: %v", err)
	}
	counts := make(map[string]int)
	net := 0
	for _, m := range movements {
		counts[m.MovementType]++
		net += m.Quantity
	}
	if counts[entity.MovementSaleOut] != 1 || counts[entity.MovementSaleReversal] != 1 {
		t.Errorf("movement counts = %v, want one SALE_OUT and one SALE_REVERSAL", counts)
	}
	if net != 50 {
		t.Errorf("movement net = %d, want 50", net)
	}

	// 销售单未落库
	if _, total, _ := st.ListSales(ctx, nil, nil, 0, 0); total != 0 {
		t.Errorf("sale persisted despite failure")
	}
}

func TestSaleConsumesOrderStockFIFO(t *testing.T) {
	env := newOrderTestEnv(t)
	ctx := context.Background()

	// 经采购流程入库
	order := env.createOrder(t)
	if _, err := env.orders.ApproveOrder(ctx, order.ID, "m1"); err != nil {
		t.Fatalf("ApproveOrder: %v", err)
	}
	if _, err := env.orders.ProcessOrder(ctx, order.ID, "k1"); err != nil {
		t.Fatalf("ProcessOrder: %v", err)
	}

	sale, err := env.sales.CreateSale(ctx, CreateSaleRequest{
		Items: []SaleItemRequest{
			{ProductID: "p1", Quantity: 30, UnitPrice: 10},
			{ProductID: "p2", Quantity: 5, UnitPrice: 6},
		},
		ActorID: "clerk1",
	})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	if sale.TotalAmount != 30*10+5*6 {
		t.Errorf("total = %v", sale.TotalAmount)
	}

	p1, _ := env.stock.GetOnHand(ctx, "p1")
	p2, _ := env.stock.GetOnHand(ctx, "p2")
	if p1 != 70 || p2 != 35 {
		t.Errorf("on-hand p1=%d p2=%d, want 70/35", p1, p2)
	}
}
