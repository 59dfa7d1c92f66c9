package allocator

import (
	"context"
	"math"
	"math/rand"

	"github.com/google/uuid"
	"github.com/paichuang/paichuang/pkg/errors"
	"github.com/paichuang/paichuang/pkg/model"
	"github.com/paichuang/paichuang/pkg/stats"
)

// 置信度档位
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// 置信度阈值（样本标准差，单位小时）
const (
	highConfidenceStdDev = 2.0
	lowConfidenceStdDev  = 6.0
)

// Prediction 等待时长预测结果
type Prediction struct {
	EstimatedWaitHours int    `json:"estimated_wait_hours"`
	BestCaseHours      int    `json:"best_case_hours"`
	WorstCaseHours     int    `json:"worst_case_hours"`
	Confidence         string `json:"confidence"`
	SimulationRuns     int    `json:"simulation_runs"`
	QueuePosition      int    `json:"queue_position"`
	TotalQueueLength   int    `json:"total_queue_length"`
}

// Predictor 等待时长预测器
// 用随机化试算做蒙特卡洛模拟，采样目标患者在各次试算中的等待时长
type Predictor struct {
	iterations int
	rng        *rand.Rand
}

// NewPredictor 创建预测器
func NewPredictor(iterations int, seed int64) *Predictor {
	if iterations <= 0 {
		iterations = DefaultPredictIterations
	}
	return &Predictor{
		iterations: iterations,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Predict 预测目标患者的等待时长
// 每次试算独立抽取随机优先级序后放置全部患者；
// 目标患者未获放置的试算不计入样本，样本为空时返回无兼容资源错误
func (pr *Predictor) Predict(ctx context.Context, allocCtx *Context, targetID uuid.UUID) (*Prediction, error) {
	if len(allocCtx.Patients) == 0 {
		return nil, errors.ErrNoPatients
	}
	if len(allocCtx.Beds) == 0 {
		return nil, errors.ErrNoBeds
	}

	target := findPatient(allocCtx.Patients, targetID)
	if target == nil {
		return nil, errors.NotFound("患者", targetID.String())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	samples := make([]float64, 0, pr.iterations)
	for i := 0; i < pr.iterations; i++ {
		ordered := randomPriorityOrder(pr.rng, allocCtx.Patients)
		availability := allocCtx.cloneAvailability()
		admissions, _, _ := placePatients(ordered, allocCtx.Beds, availability, allocCtx.OwnerID)
		for _, adm := range admissions {
			if adm.PatientID == targetID {
				samples = append(samples, float64(adm.WaitingHours))
				break
			}
		}
	}

	if len(samples) == 0 {
		return nil, errors.NoCompatibleResource("模拟中患者始终无法获得兼容床位")
	}

	summary := stats.Summarize(samples)

	return &Prediction{
		EstimatedWaitHours: int(math.Round(summary.Mean)),
		BestCaseHours:      int(summary.Min),
		WorstCaseHours:     int(summary.Max),
		Confidence:         confidenceLevel(summary.StdDev),
		SimulationRuns:     pr.iterations,
		QueuePosition:      queuePosition(allocCtx.Patients, targetID),
		TotalQueueLength:   len(allocCtx.Patients),
	}, nil
}

// confidenceLevel 由样本离散度折算置信度档位
func confidenceLevel(stdDev float64) string {
	switch {
	case stdDev < highConfidenceStdDev:
		return ConfidenceHigh
	case stdDev > lowConfidenceStdDev:
		return ConfidenceLow
	default:
		return ConfidenceMedium
	}
}

// queuePosition 计算目标患者在当前队列中的位次（按登记顺序，从1开始）
func queuePosition(patients []*model.Patient, targetID uuid.UUID) int {
	for i, p := range patients {
		if p.ID == targetID {
			return i + 1
		}
	}
	return len(patients)
}

func findPatient(patients []*model.Patient, id uuid.UUID) *model.Patient {
	for _, p := range patients {
		if p.ID == id {
			return p
		}
	}
	return nil
}
