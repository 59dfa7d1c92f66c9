// Package allocator 提供床位分配算法
package allocator

import (
	"context"
	"time"

	"github.com/paichuang/paichuang/pkg/errors"
	"github.com/paichuang/paichuang/pkg/logger"
)

// BaselineScheduler 基线调度器：单次确定性贪心放置
type BaselineScheduler struct {
	logger *logger.AllocatorLogger
}

// NewBaselineScheduler 创建基线调度器
func NewBaselineScheduler() *BaselineScheduler {
	return &BaselineScheduler{
		logger: logger.NewAllocatorLogger(),
	}
}

// Name 返回调度器名称
func (s *BaselineScheduler) Name() string {
	return "BaselineScheduler"
}

// Run 执行基线分配
// 患者按急诊、严重程度、到达时间排序后依次放置；
// 给定相同输入，两次运行产出完全相同的方案
func (s *BaselineScheduler) Run(ctx context.Context, allocCtx *Context) (*Plan, error) {
	startTime := time.Now()

	if len(allocCtx.Patients) == 0 {
		return nil, errors.ErrNoPatients
	}
	if len(allocCtx.Beds) == 0 {
		return nil, errors.ErrNoBeds
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.logger.StartRun(allocCtx.OwnerID.String(), len(allocCtx.Patients), len(allocCtx.Beds))

	ordered := sortBaseline(allocCtx.Patients)
	availability := allocCtx.cloneAvailability()

	admissions, totalWaiting, skipped := placePatients(ordered, allocCtx.Beds, availability, allocCtx.OwnerID)
	for _, patientID := range skipped {
		s.logger.PlacementSkipped(patientID.String(), "无兼容床位")
	}

	plan := &Plan{
		Admissions:        admissions,
		TotalWaitingHours: totalWaiting,
		Duration:          time.Since(startTime),
	}
	plan.finalize()

	s.logger.RunComplete(allocCtx.OwnerID.String(), plan.Duration, plan.AdmittedCount, plan.TotalWaitingHours)

	return plan, nil
}
