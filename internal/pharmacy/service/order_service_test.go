package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bitfantasy/medstock/internal/pharmacy/entity"
	"github.com/bitfantasy/medstock/internal/pharmacy/store"
	"github.com/bitfantasy/medstock/internal/pharmacy/store/memory"
)

type orderTestEnv struct {
	orders *OrderService
	stock  *StockService
	sales  *SaleService
	st     *memory.Store
}

func newOrderTestEnv(t *testing.T) *orderTestEnv {
	t.Helper()
	st := memory.NewStore()
	svcs := New(Stores{
		Orders:    st.Orders(),
		Batches:   st.Batches(),
		Products:  st.Products(),
		Suppliers: st.Suppliers(),
		Sales:     st.Sales(),
		Audit:     st.Audit(),
	}, nil, zap.NewNop())
	env := &orderTestEnv{orders: svcs.Orders, stock: svcs.Stock, sales: svcs.Sales, st: st}
	env.seed(t)
	return env
}

func (e *orderTestEnv) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if err := e.st.CreateSupplier(ctx, &entity.Supplier{ID: "sup1", Code: "S001", Name: "华东医药供应"}); err != nil {
		t.Fatalf("seed supplier: %v", err)
	}
	for _, p := range []entity.Product{
		{ID: "p1", Code: "M001", Name: "阿莫西林胶囊", RetailPrice: 12.5},
		{ID: "p2", Code: "M002", Name: "布洛芬缓释片", RetailPrice: 8.0},
	} {
		cp := p
		if err := e.st.CreateProduct(ctx, &cp); err != nil {
			t.Fatalf("seed product: %v", err)
		}
	}
}

func (e *orderTestEnv) createOrder(t *testing.T) *entity.PurchaseOrder {
	t.Helper()
	order, err := e.orders.CreateOrder(context.Background(), CreateOrderRequest{
		SupplierID: "sup1",
		Items: []OrderItemRequest{
			{ProductID: "p1", Quantity: 100, UnitPrice: 5.5},
			{ProductID: "p2", Quantity: 40, UnitPrice: 3.0},
		},
		ActorID: "buyer1",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	return order
}

func TestCreateOrder(t *testing.T) {
	env := newOrderTestEnv(t)
	order := env.createOrder(t)

	if order.Status != entity.OrderStatusPending {
		t.Errorf("status = %s, want pending", order.Status)
	}
	if !strings.HasPrefix(order.OrderNumber, "PO-") {
		t.Errorf("order number = %s, want PO- prefix", order.OrderNumber)
	}
	if order.TotalAmount != 100*5.5+40*3.0 {
		t.Errorf("total = %v, want %v", order.TotalAmount, 100*5.5+40*3.0)
	}
	if order.DueAmount != order.TotalAmount {
		t.Errorf("due = %v, want %v", order.DueAmount, order.TotalAmount)
	}
	if order.CreatedBy != "buyer1" {
		t.Errorf("created_by = %s, want buyer1", order.CreatedBy)
	}
	if len(order.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(order.Items))
	}
	// 创建订单不触碰库存
	onHand, _ := env.stock.GetOnHand(context.Background(), "p1")
	if onHand != 0 {
		t.Errorf("on-hand after create = %d, want 0", onHand)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	env := newOrderTestEnv(t)
	ctx := context.Background()

	var nfe *NotFoundError
	var ve *ValidationError

	_, err := env.orders.CreateOrder(ctx, CreateOrderRequest{
		SupplierID: "ghost",
		Items:      []OrderItemRequest{{ProductID: "p1", Quantity: 1, UnitPrice: 1}},
	})
	if !errors.As(err, &nfe) {
		t.Errorf("unknown supplier: got %v, want NotFoundError", err)
	}

	_, err = env.orders.CreateOrder(ctx, CreateOrderRequest{
		SupplierID: "sup1",
		Items:      []OrderItemRequest{{ProductID: "ghost", Quantity: 1, UnitPrice: 1}},
	})
	if !errors.As(err, &nfe) {
		t.Errorf("unknown product: got %v, want NotFoundError", err)
	}

	_, err = env.orders.CreateOrder(ctx, CreateOrderRequest{SupplierID: "sup1"})
	if !errors.As(err, &ve) {
		t.Errorf("no items: got %v, want ValidationError", err)
	}

	_, err = env.orders.CreateOrder(ctx, CreateOrderRequest{
		SupplierID: "sup1",
		Items:      []OrderItemRequest{{ProductID: "p1", Quantity: 0, UnitPrice: 1}},
	})
	if !errors.As(err, &ve) {
		t.Errorf("zero quantity: got %v, want ValidationError", err)
	}

	_, err = env.orders.CreateOrder(ctx, CreateOrderRequest{
		SupplierID: "sup1",
		Items:      []OrderItemRequest{{ProductID: "p1", Quantity: 1, UnitPrice: -2}},
	})
	if !errors.As(err, &ve) {
		t.Errorf("negative price: got %v, want ValidationError", err)
	}

	_, err = env.orders.CreateOrder(ctx, CreateOrderRequest{
		SupplierID: "sup1",
		Items:      []OrderItemRequest{{ProductID: "p1", Quantity: 1, UnitPrice: 0}},
	})
	if !errors.As(err, &ve) {
		t.Errorf("zero price: got %v, want ValidationError", err)
	}
}

func TestApproveOrder(t *testing.T) {
	env := newOrderTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t)

	approved, err := env.orders.ApproveOrder(ctx, order.ID, "manager1")
	if err != nil {
		t.Fatalf("ApproveOrder: %v", err)
	}
	if approved.Status != entity.OrderStatusApproved {
		t.Errorf("status = %s, want approved", approved.Status)
	}
	if approved.ApprovedBy == nil || *approved.ApprovedBy != "manager1" {
		t.Errorf("approved_by = %v, want manager1", approved.ApprovedBy)
	}
	if approved.ApprovedAt == nil {
		t.Error("approved_at not set")
	}

	// 二次审批被状态机拒绝
	_, err = env.orders.ApproveOrder(ctx, order.ID, "manager2")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double approve: got %v, want ErrInvalidTransition", err)
	}
}

func TestProcessOrder(t *testing.T) {
	env := newOrderTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t)

	// 未审批不能收货
	_, err := env.orders.ProcessOrder(ctx, order.ID, "keeper1")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("process pending: got %v, want ErrInvalidTransition", err)
	}

	if _, err := env.orders.ApproveOrder(ctx, order.ID, "manager1"); err != nil {
		t.Fatalf("ApproveOrder: %v", err)
	}
	processed, err := env.orders.ProcessOrder(ctx, order.ID, "keeper1")
	if err != nil {
		t.Fatalf("ProcessOrder: %v", err)
	}
	if processed.Status != entity.OrderStatusProcessed {
		t.Errorf("status = %s, want processed", processed.Status)
	}
	if processed.ProcessedBy == nil || *processed.ProcessedBy != "keeper1" {
		t.Errorf("processed_by = %v, want keeper1", processed.ProcessedBy)
	}

	// 每个行项都落为批次
	for _, item := range processed.Items {
		if item.StockedBatchID == nil || item.StockedAt == nil {
			t.Errorf("item %s not marked stocked", item.ID)
		}
	}
	for _, want := range []struct {
		productID string
		qty       int
	}{{"p1", 100}, {"p2", 40}} {
		onHand, err := env.stock.GetOnHand(ctx, want.productID)
		if err != nil {
			t.Fatalf("GetOnHand: %v", err)
		}
		if onHand != want.qty {
			t.Errorf("on-hand %s = %d, want %d", want.productID, onHand, want.qty)
		}
	}

	// 终态订单不能再收货或取消
	if _, err := env.orders.ProcessOrder(ctx, order.ID, "keeper1"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("re-process: got %v, want ErrInvalidTransition", err)
	}
	if _, err := env.orders.CancelOrder(ctx, order.ID, "不需要了", "buyer1"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("cancel processed: got %v, want ErrInvalidTransition", err)
	}
}

// flakyOrderStore 在前 failures 次 MarkItemStocked 调用上注入失败
type flakyOrderStore struct {
	store.OrderStore
	mu       sync.Mutex
	failures int
}

func (f *flakyOrderStore) MarkItemStocked(ctx context.Context, itemID, batchID string, at time.Time) error {
	f.mu.Lock()
	shouldFail := f.failures > 0
	if shouldFail {
		f.failures--
	}
	f.mu.Unlock()
	if shouldFail {
		return errors.New("storage offline")
	}
	return f.OrderStore.MarkItemStocked(ctx, itemID, batchID, at)
}

func TestProcessOrderRetryDoesNotDoubleStock(t *testing.T) {
	st := memory.NewStore()
	flaky := &flakyOrderStore{OrderStore: st.Orders(), failures: 1}
	svcs := New(Stores{
		Orders:    flaky,
		Batches:   st.Batches(),
		Products:  st.Products(),
		Suppliers: st.Suppliers(),
		Sales:     st.Sales(),
		Audit:     st.Audit(),
	}, nil, zap.NewNop())

	ctx := context.Background()
	st.CreateSupplier(ctx, &entity.Supplier{ID: "sup1", Code: "S001", Name: "供应商"})
	st.CreateProduct(ctx, &entity.Product{ID: "p1", Code: "M001", Name: "药品"})

	order, err := svcs.Orders.CreateOrder(ctx, CreateOrderRequest{
		SupplierID: "sup1",
		Items:      []OrderItemRequest{{ProductID: "p1", Quantity: 60, UnitPrice: 2}},
		ActorID:    "buyer1",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, err := svcs.Orders.ApproveOrder(ctx, order.ID, "m1"); err != nil {
		t.Fatalf("ApproveOrder: %v", err)
	}

	// 第一次收货：库存已增加但标记失败
	if _, err := svcs.Orders.ProcessOrder(ctx, order.ID, "k1"); err == nil {
		t.Fatal("expected first ProcessOrder to fail")
	}

	current, _ := svcs.Orders.GetOrder(ctx, order.ID)
	if current.Status != entity.OrderStatusApproved {
		t.Fatalf("status after failed process = %s, want approved", current.Status)
	}

	// 重试成功，且库存只增加一次
	processed, err := svcs.Orders.ProcessOrder(ctx, order.ID, "k1")
	if err != nil {
		t.Fatalf("retry ProcessOrder: %v", err)
	}
	if processed.Status != entity.OrderStatusProcessed {
		t.Errorf("status = %s, want processed", processed.Status)
	}

	onHand, _ := svcs.Stock.GetOnHand(ctx, "p1")
	if onHand != 60 {
		t.Errorf("on-hand = %d, want 60 (stock applied more than once)", onHand)
	}
}

func TestConcurrentApproveOnlyOneSucceeds(t *testing.T) {
	env := newOrderTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t)

	const workers = 10
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.orders.ApproveOrder(ctx, order.ID, "m1")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("%d approvals succeeded, want exactly 1", succeeded)
	}
}

func TestConcurrentProcessDoesNotDoubleStock(t *testing.T) {
	env := newOrderTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t)
	if _, err := env.orders.ApproveOrder(ctx, order.ID, "m1"); err != nil {
		t.Fatalf("ApproveOrder: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env.orders.ProcessOrder(ctx, order.ID, "k1")
		}()
	}
	wg.Wait()

	current, _ := env.orders.GetOrder(ctx, order.ID)
	if current.Status != entity.OrderStatusProcessed {
		t.Errorf("status = %s, want processed", current.Status)
	}
	onHand, _ := env.stock.GetOnHand(ctx, "p1")
	if onHand != 100 {
		t.Errorf("on-hand = %d, want 100", onHand)
	}
}

func TestCancelOrder(t *testing.T) {
	env := newOrderTestEnv(t)
	ctx := context.Background()

	// 取消 pending
	order := env.createOrder(t)
	cancelled, err := env.orders.CancelOrder(ctx, order.ID, "价格有变", "buyer1")
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if cancelled.Status != entity.OrderStatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}
	if cancelled.CancelReason != "价格有变" {
		t.Errorf("reason = %s", cancelled.CancelReason)
	}

	// 取消 approved
	order2 := env.createOrder(t)
	if _, err := env.orders.ApproveOrder(ctx, order2.ID, "m1"); err != nil {
		t.Fatalf("ApproveOrder: %v", err)
	}
	if _, err := env.orders.CancelOrder(ctx, order2.ID, "供应商断货", "buyer1"); err != nil {
		t.Fatalf("cancel approved: %v", err)
	}

	// 取消已取消的订单
	if _, err := env.orders.CancelOrder(ctx, order.ID, "再取消一次", "buyer1"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("cancel cancelled: got %v, want ErrInvalidTransition", err)
	}

	// 理由必填
	order3 := env.createOrder(t)
	var ve *ValidationError
	if _, err := env.orders.CancelOrder(ctx, order3.ID, "", "buyer1"); !errors.As(err, &ve) {
		t.Errorf("empty reason: got %v, want ValidationError", err)
	}

	// 取消不影响库存
	onHand, _ := env.stock.GetOnHand(ctx, "p1")
	if onHand != 0 {
		t.Errorf("on-hand = %d, want 0", onHand)
	}
}

func TestUpdateOrderPendingOnly(t *testing.T) {
	env := newOrderTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t)

	notes := "加急"
	updated, err := env.orders.UpdateOrder(ctx, order.ID, UpdateOrderRequest{
		Notes: &notes,
		Items: []OrderItemRequest{{ProductID: "p1", Quantity: 10, UnitPrice: 4}},
	})
	if err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	if updated.TotalAmount != 40 {
		t.Errorf("total = %v, want 40", updated.TotalAmount)
	}
	if len(updated.Items) != 1 {
		t.Errorf("items = %d, want 1", len(updated.Items))
	}

	if _, err := env.orders.ApproveOrder(ctx, order.ID, "m1"); err != nil {
		t.Fatalf("ApproveOrder: %v", err)
	}
	if _, err := env.orders.UpdateOrder(ctx, order.ID, UpdateOrderRequest{Notes: &notes}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("update approved: got %v, want ErrInvalidTransition", err)
	}
}

func TestAddItem(t *testing.T) {
	env := newOrderTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t)

	updated, err := env.orders.AddItem(ctx, order.ID, OrderItemRequest{
		ProductID: "p2", Quantity: 10, UnitPrice: 2.0,
	})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if len(updated.Items) != 3 {
		t.Fatalf("item count = %d, want 3", len(updated.Items))
	}
	want := 100*5.5 + 40*3.0 + 10*2.0
	if updated.TotalAmount != want {
		t.Errorf("total = %.2f, want %.2f", updated.TotalAmount, want)
	}

	if _, err := env.orders.AddItem(ctx, order.ID, OrderItemRequest{ProductID: "nope", Quantity: 1, UnitPrice: 1}); err == nil {
		t.Error("未知产品应报错")
	}

	if _, err := env.orders.ApproveOrder(ctx, order.ID, "mgr1"); err != nil {
		t.Fatalf("ApproveOrder: %v", err)
	}
	_, err = env.orders.AddItem(ctx, order.ID, OrderItemRequest{ProductID: "p1", Quantity: 5, UnitPrice: 1})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("非 pending 追加行项应返回状态错误, got %v", err)
	}
}

// racingOrderStore 在第一次 Save 前把订单审批通过，模拟
// 读取-修改-保存窗口内的并发状态迁移
type racingOrderStore struct {
	store.OrderStore
	once sync.Once
}

func (r *racingOrderStore) Save(ctx context.Context, order *entity.PurchaseOrder, want string) (bool, error) {
	r.once.Do(func() {
		actor := "m1"
		now := time.Now()
		r.OrderStore.UpdateStatus(ctx, order.ID, entity.OrderStatusPending, entity.OrderStatusApproved, store.OrderPatch{
			ApprovedBy: &actor,
			ApprovedAt: &now,
		})
	})
	return r.OrderStore.Save(ctx, order, want)
}

func TestAddItemLosesRaceAgainstApprove(t *testing.T) {
	st := memory.NewStore()
	racing := &racingOrderStore{OrderStore: st.Orders()}
	svcs := New(Stores{
		Orders:    racing,
		Batches:   st.Batches(),
		Products:  st.Products(),
		Suppliers: st.Suppliers(),
		Sales:     st.Sales(),
		Audit:     st.Audit(),
	}, nil, zap.NewNop())

	ctx := context.Background()
	st.CreateSupplier(ctx, &entity.Supplier{ID: "sup1", Code: "S001", Name: "供应商"})
	st.CreateProduct(ctx, &entity.Product{ID: "p1", Code: "M001", Name: "药品"})

	order, err := svcs.Orders.CreateOrder(ctx, CreateOrderRequest{
		SupplierID: "sup1",
		Items:      []OrderItemRequest{{ProductID: "p1", Quantity: 10, UnitPrice: 2}},
		ActorID:    "buyer1",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	// 追加行项在读到 pending 之后、保存之前被审批抢先
	_, err = svcs.Orders.AddItem(ctx, order.ID, OrderItemRequest{ProductID: "p1", Quantity: 5, UnitPrice: 1})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("AddItem after interleaved approve: got %v, want ErrInvalidTransition", err)
	}

	// 审批结果不被回退，行项保持不变
	current, err := svcs.Orders.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if current.Status != entity.OrderStatusApproved {
		t.Errorf("status = %s, want approved", current.Status)
	}
	if len(current.Items) != 1 {
		t.Errorf("item count = %d, want 1", len(current.Items))
	}
}

func TestRecordPayment(t *testing.T) {
	env := newOrderTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t) // total 670

	paid, err := env.orders.RecordPayment(ctx, order.ID, RecordPaymentRequest{Amount: 500, ActorID: "cashier1"})
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if paid.PaidAmount != 500 || paid.DueAmount != paid.TotalAmount-500 {
		t.Errorf("paid=%v due=%v total=%v", paid.PaidAmount, paid.DueAmount, paid.TotalAmount)
	}

	// 超付被拒绝
	var ve *ValidationError
	if _, err := env.orders.RecordPayment(ctx, order.ID, RecordPaymentRequest{Amount: 1000}); !errors.As(err, &ve) {
		t.Errorf("overpay: got %v, want ValidationError", err)
	}

	// 付清
	rest := paid.DueAmount
	paid, err = env.orders.RecordPayment(ctx, order.ID, RecordPaymentRequest{Amount: rest})
	if err != nil {
		t.Fatalf("final payment: %v", err)
	}
	if paid.DueAmount != 0 {
		t.Errorf("due = %v, want 0", paid.DueAmount)
	}

	// 已取消订单不能付款
	order2 := env.createOrder(t)
	env.orders.CancelOrder(ctx, order2.ID, "作废", "b1")
	if _, err := env.orders.RecordPayment(ctx, order2.ID, RecordPaymentRequest{Amount: 1}); !errors.As(err, &ve) {
		t.Errorf("pay cancelled: got %v, want ValidationError", err)
	}
}

func TestOrderHistory(t *testing.T) {
	env := newOrderTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t)
	env.orders.ApproveOrder(ctx, order.ID, "m1")
	env.orders.ProcessOrder(ctx, order.ID, "k1")

	logs, err := env.orders.OrderHistory(ctx, order.ID)
	if err != nil {
		t.Fatalf("OrderHistory: %v", err)
	}
	events := make([]string, len(logs))
	for i, l := range logs {
		events[i] = l.Event
	}
	want := []string{entity.EventOrderCreated, entity.EventOrderApproved, entity.EventOrderProcessed}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, events[i], want[i])
		}
	}
}

func TestListOrdersFilters(t *testing.T) {
	env := newOrderTestEnv(t)
	ctx := context.Background()
	o1 := env.createOrder(t)
	env.createOrder(t)
	env.orders.ApproveOrder(ctx, o1.ID, "m1")

	approved, total, err := env.orders.ListOrders(ctx, store.OrderQuery{Status: entity.OrderStatusApproved})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if total != 1 || len(approved) != 1 || approved[0].ID != o1.ID {
		t.Errorf("approved filter: total=%d len=%d", total, len(approved))
	}

	if _, _, err := env.orders.ListOrders(ctx, store.OrderQuery{Status: "bogus"}); err == nil {
		t.Error("unknown status accepted")
	}

	bySupplier, err := env.orders.GetOrdersBySupplier(ctx, "sup1")
	if err != nil {
		t.Fatalf("GetOrdersBySupplier: %v", err)
	}
	if len(bySupplier) != 2 {
		t.Errorf("supplier orders = %d, want 2", len(bySupplier))
	}

	var nfe *NotFoundError
	if _, err := env.orders.GetOrdersBySupplier(ctx, "ghost"); !errors.As(err, &nfe) {
		t.Errorf("unknown supplier: got %v, want NotFoundError", err)
	}
}
