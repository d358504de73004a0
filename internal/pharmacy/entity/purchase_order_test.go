package entity

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from string
		to   string
		want bool
	}{
		{OrderStatusPending, OrderStatusApproved, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusProcessed, false},
		{OrderStatusApproved, OrderStatusProcessed, true},
		{OrderStatusApproved, OrderStatusCancelled, true},
		{OrderStatusApproved, OrderStatusPending, false},
		{OrderStatusProcessed, OrderStatusCancelled, false},
		{OrderStatusProcessed, OrderStatusApproved, false},
		{OrderStatusCancelled, OrderStatusApproved, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusPending, OrderStatusPending, false},
		{"bogus", OrderStatusApproved, false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, terminal := range []string{OrderStatusProcessed, OrderStatusCancelled} {
		for _, to := range OrderStatuses() {
			if CanTransition(terminal, to) {
				t.Errorf("terminal state %s allows transition to %s", terminal, to)
			}
		}
	}
}

func TestRecalcTotals(t *testing.T) {
	order := &PurchaseOrder{
		PaidAmount: 30,
		Items: []PurchaseOrderItem{
			{OrderedQuantity: 10, UnitPrice: 2.5},
			{OrderedQuantity: 3, UnitPrice: 15},
		},
	}
	order.RecalcTotals()

	if order.Items[0].TotalPrice != 25 {
		t.Errorf("item 0 total = %v, want 25", order.Items[0].TotalPrice)
	}
	if order.Items[1].TotalPrice != 45 {
		t.Errorf("item 1 total = %v, want 45", order.Items[1].TotalPrice)
	}
	if order.TotalAmount != 70 {
		t.Errorf("total = %v, want 70", order.TotalAmount)
	}
	if order.DueAmount != 40 {
		t.Errorf("due = %v, want 40", order.DueAmount)
	}
}
