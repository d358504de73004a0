package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/bitfantasy/medstock/internal/pharmacy/entity"
	"github.com/bitfantasy/medstock/internal/pharmacy/store"
)

// Auditor 工作流事件记录。写库失败只记日志，不影响已完成的业务操作。
type Auditor struct {
	audit  store.AuditStore
	logger *zap.Logger
}

func NewAuditor(audit store.AuditStore, logger *zap.Logger) *Auditor {
	return &Auditor{audit: audit, logger: logger}
}

func (a *Auditor) Emit(ctx context.Context, log *entity.ActivityLog) {
	if err := a.audit.Emit(ctx, log); err != nil {
		a.logger.Warn("activity log write failed",
			zap.String("entity_type", log.EntityType),
			zap.String("entity_id", log.EntityID),
			zap.String("event", log.Event),
			zap.Error(err))
		return
	}
	a.logger.Info("workflow event",
		zap.String("entity_type", log.EntityType),
		zap.String("entity_id", log.EntityID),
		zap.String("event", log.Event),
		zap.String("from", log.FromStatus),
		zap.String("to", log.ToStatus),
		zap.String("operator", log.OperatorID))
}

func (a *Auditor) History(ctx context.Context, entityType, entityID string) ([]entity.ActivityLog, error) {
	return a.audit.ListByEntity(ctx, entityType, entityID)
}
