package service

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition 非法的订单状态迁移
var ErrInvalidTransition = errors.New("非法的状态迁移")

// ValidationError 入参校验失败
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("参数校验失败: %s %s", e.Field, e.Reason)
}

func invalidField(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError 目标实体不存在
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s不存在: %s", e.Entity, e.ID)
}

// InvalidTransitionError 携带迁移上下文的状态机错误，
// errors.Is(err, ErrInvalidTransition) 成立。
type InvalidTransitionError struct {
	OrderID string
	From    string
	To      string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("订单 %s 不允许从 %s 迁移到 %s", e.OrderID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// InsufficientStockError 库存不足，扣减被整体拒绝
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("库存不足: 产品 %s 需要 %d，现有 %d", e.ProductID, e.Requested, e.Available)
}
