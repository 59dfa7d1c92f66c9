// Package scenario 提供场景测试
package scenario

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paichuang/paichuang/pkg/allocator"
	"github.com/paichuang/paichuang/pkg/errors"
	"github.com/paichuang/paichuang/pkg/model"
)

// TestPredictQueueTail 队尾患者等待预测测试
// 轻症非急诊患者排在队尾，预测等待应明显大于零且区间自洽
func TestPredictQueueTail(t *testing.T) {
	ownerID := uuid.New()

	patients := []*model.Patient{
		createPatient("P001", model.SeverityCritical, true, 0, 4),
		createPatient("P002", model.SeverityHigh, false, time.Hour, 3),
		createPatient("P003", model.SeverityMedium, false, 2*time.Hour, 2),
		createPatient("P004", model.SeverityLow, false, 3*time.Hour, 1),
	}
	target := patients[3]

	allocCtx := allocator.NewContext(ownerID, epoch)
	allocCtx.SetPatients(patients)
	allocCtx.SetBeds([]*model.Bed{createBed("G-1", model.CategoryGeneral, false, false)})

	pred, err := allocator.NewPredictor(allocator.DefaultPredictIterations, 42).
		Predict(context.Background(), allocCtx, target.ID)
	if err != nil {
		t.Fatalf("等待预测失败: %v", err)
	}

	t.Logf("队列位次: %d / %d", pred.QueuePosition, pred.TotalQueueLength)
	t.Logf("预计等待 %d 小时 [%d, %d], 置信度 %s",
		pred.EstimatedWaitHours, pred.BestCaseHours, pred.WorstCaseHours, pred.Confidence)

	if pred.QueuePosition != 4 {
		t.Errorf("队列位次 = %d, expected 4", pred.QueuePosition)
	}
	if pred.SimulationRuns != allocator.DefaultPredictIterations {
		t.Errorf("模拟次数 = %d, expected %d", pred.SimulationRuns, allocator.DefaultPredictIterations)
	}
	if pred.BestCaseHours > pred.EstimatedWaitHours || pred.EstimatedWaitHours > pred.WorstCaseHours {
		t.Errorf("预测区间异常: [%d, %d, %d]",
			pred.BestCaseHours, pred.EstimatedWaitHours, pred.WorstCaseHours)
	}
	// 前面至少有一名患者占床，队尾等待不可能为零
	if pred.BestCaseHours <= 0 {
		t.Errorf("队尾最优等待 = %d, 应大于0", pred.BestCaseHours)
	}
}

// TestPredictHeadOfQueue 队首患者等待预测测试
func TestPredictHeadOfQueue(t *testing.T) {
	ownerID := uuid.New()

	target := createPatient("P001", model.SeverityCritical, true, 0, 3)
	patients := []*model.Patient{
		target,
		createPatient("P002", model.SeverityLow, false, time.Hour, 1),
	}

	allocCtx := allocator.NewContext(ownerID, epoch)
	allocCtx.SetPatients(patients)
	allocCtx.SetBeds([]*model.Bed{
		createBed("G-1", model.CategoryGeneral, false, false),
		createBed("G-2", model.CategoryGeneral, false, false),
	})

	pred, err := allocator.NewPredictor(allocator.DefaultPredictIterations, 7).
		Predict(context.Background(), allocCtx, target.ID)
	if err != nil {
		t.Fatalf("等待预测失败: %v", err)
	}

	if pred.QueuePosition != 1 {
		t.Errorf("队列位次 = %d, expected 1", pred.QueuePosition)
	}
	// 床位多于患者，每次试算等待都是0
	if pred.EstimatedWaitHours != 0 || pred.WorstCaseHours != 0 {
		t.Errorf("床位充足时等待应为0: %+v", pred)
	}
	if pred.Confidence != allocator.ConfidenceHigh {
		t.Errorf("常数样本置信度 = %s, expected high", pred.Confidence)
	}
}

// TestPredictIncompatiblePatient 无兼容床位患者预测测试
func TestPredictIncompatiblePatient(t *testing.T) {
	ownerID := uuid.New()

	target := createPatient("P001", model.SeverityCritical, false, 0, 3)
	target.NeedsDialysis = true

	allocCtx := allocator.NewContext(ownerID, epoch)
	allocCtx.SetPatients([]*model.Patient{target})
	allocCtx.SetBeds([]*model.Bed{createBed("G-1", model.CategoryGeneral, false, false)})

	_, err := allocator.NewPredictor(10, 1).Predict(context.Background(), allocCtx, target.ID)
	if !errors.Is(err, errors.CodeNoCompatibleResource) {
		t.Errorf("无兼容床位应返回NO_COMPATIBLE_RESOURCE, got %v", err)
	}
}

// TestPredictOccupiedWard 在住患者影响预测测试
// 床位被占到未来某时刻，预测应以出院时间为可用起点
func TestPredictOccupiedWard(t *testing.T) {
	ownerID := uuid.New()

	target := createPatient("P001", model.SeverityHigh, false, 0, 2)
	bed := createBed("G-1", model.CategoryGeneral, false, false)

	allocCtx := allocator.NewContext(ownerID, epoch)
	allocCtx.SetPatients([]*model.Patient{target})
	allocCtx.SetBeds([]*model.Bed{bed})
	// 在住患者明天上午出院
	allocCtx.SetAvailability(map[uuid.UUID]time.Time{bed.ID: epoch.AddDate(0, 0, 1)})

	pred, err := allocator.NewPredictor(10, 1).Predict(context.Background(), allocCtx, target.ID)
	if err != nil {
		t.Fatalf("等待预测失败: %v", err)
	}

	if pred.EstimatedWaitHours != 24 {
		t.Errorf("预计等待 = %d, expected 24", pred.EstimatedWaitHours)
	}
	if pred.Confidence != allocator.ConfidenceHigh {
		t.Errorf("单患者单床位置信度 = %s, expected high", pred.Confidence)
	}
}
