// Package notify 提供护理团队通知边界
package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/paichuang/paichuang/pkg/logger"
	"github.com/paichuang/paichuang/pkg/model"
)

// Notifier 通知接口
// 发送失败不影响分配流程，调用方只记日志
type Notifier interface {
	NotifyTransfer(ctx context.Context, ownerID uuid.UUID, occupant *model.Occupant, toBed *model.Bed) error
	NotifyAssignment(ctx context.Context, ownerID uuid.UUID, entry *model.QueueEntry, bed *model.Bed) error
}

// LogNotifier 日志通知器：把通知写入结构化日志
// 对接院内消息系统前的默认实现
type LogNotifier struct{}

// NewLogNotifier 创建日志通知器
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// NotifyTransfer 通知护理团队患者转床
func (n *LogNotifier) NotifyTransfer(ctx context.Context, ownerID uuid.UUID, occupant *model.Occupant, toBed *model.Bed) error {
	logger.Info().
		Str("owner_id", ownerID.String()).
		Str("patient_id", occupant.PatientID.String()).
		Str("patient_name", occupant.Name).
		Str("to_bed", toBed.Number).
		Msg("通知: 在住患者转床")
	return nil
}

// NotifyAssignment 通知护理团队新患者入住
func (n *LogNotifier) NotifyAssignment(ctx context.Context, ownerID uuid.UUID, entry *model.QueueEntry, bed *model.Bed) error {
	logger.Info().
		Str("owner_id", ownerID.String()).
		Str("patient_id", entry.PatientID.String()).
		Str("token", entry.Token).
		Str("bed", bed.Number).
		Msg("通知: 紧急患者入住")
	return nil
}
