// Package allocator 提供床位分配算法
package allocator

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/paichuang/paichuang/pkg/model"
)

// Context 分配上下文：一次运行的输入快照
type Context struct {
	OwnerID  uuid.UUID        `json:"owner_id"`
	Epoch    time.Time        `json:"epoch"` // 排程起点，未指定初始可用时间的床位从此刻空闲
	Patients []*model.Patient `json:"patients"`
	Beds     []*model.Bed     `json:"beds"`

	// 各床位的初始可用时间，为空时全部取 Epoch
	// 预测模式下由调用方按在住患者的出院时间填充
	Availability map[uuid.UUID]time.Time `json:"availability,omitempty"`
}

// NewContext 创建分配上下文
func NewContext(ownerID uuid.UUID, epoch time.Time) *Context {
	return &Context{
		OwnerID:  ownerID,
		Epoch:    epoch,
		Patients: make([]*model.Patient, 0),
		Beds:     make([]*model.Bed, 0),
	}
}

// SetPatients 设置患者列表
func (c *Context) SetPatients(patients []*model.Patient) {
	c.Patients = patients
}

// SetBeds 设置床位列表
func (c *Context) SetBeds(beds []*model.Bed) {
	c.Beds = beds
}

// SetAvailability 设置床位初始可用时间
func (c *Context) SetAvailability(availability map[uuid.UUID]time.Time) {
	c.Availability = availability
}

// cloneAvailability 为一次试算构建独立的可用时间表
// 每次试算都从快照重建，互不共享状态
func (c *Context) cloneAvailability() map[uuid.UUID]time.Time {
	availability := make(map[uuid.UUID]time.Time, len(c.Beds))
	for _, bed := range c.Beds {
		if t, ok := c.Availability[bed.ID]; ok {
			availability[bed.ID] = t
		} else {
			availability[bed.ID] = c.Epoch
		}
	}
	return availability
}

// Plan 分配方案
type Plan struct {
	Admissions          []*model.Admission `json:"admissions"`
	TotalWaitingHours   int                `json:"total_waiting_hours"`
	AdmittedCount       int                `json:"admitted_count"`
	AverageWaitingHours float64            `json:"average_waiting_hours"`
	OptimizationRuns    int                `json:"optimization_runs,omitempty"`
	Duration            time.Duration      `json:"duration"`
}

// finalize 计算方案的汇总统计
func (p *Plan) finalize() {
	p.AdmittedCount = len(p.Admissions)
	if p.AdmittedCount > 0 {
		p.AverageWaitingHours = float64(p.TotalWaitingHours) / float64(p.AdmittedCount)
	}
}

// sortBaseline 按基线排序键排序患者：急诊优先、严重程度降序、到达时间升序
func sortBaseline(patients []*model.Patient) []*model.Patient {
	ordered := make([]*model.Patient, len(patients))
	copy(ordered, patients)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Emergency != ordered[j].Emergency {
			return ordered[i].Emergency
		}
		ri, rj := ordered[i].SeverityRank(), ordered[j].SeverityRank()
		if ri != rj {
			return ri > rj
		}
		return ordered[i].ArrivalTime.Before(ordered[j].ArrivalTime)
	})
	return ordered
}

// placePatients 按给定顺序逐个放置患者
// 每个患者在兼容床位中选择 max(到达时间, 可用时间) 最早的一张，
// 相同时间取床位集中先遇到的一张；无兼容床位则跳过该患者。
// 返回入住记录、累计等待小时数和被跳过的患者ID
func placePatients(
	ordered []*model.Patient,
	beds []*model.Bed,
	availability map[uuid.UUID]time.Time,
	ownerID uuid.UUID,
) ([]*model.Admission, int, []uuid.UUID) {
	admissions := make([]*model.Admission, 0, len(ordered))
	totalWaiting := 0
	var skipped []uuid.UUID

	for _, patient := range ordered {
		var best *model.Bed
		var bestStart time.Time

		for _, bed := range beds {
			if !model.Compatible(patient, bed) {
				continue
			}
			start := availability[bed.ID]
			if patient.ArrivalTime.After(start) {
				start = patient.ArrivalTime
			}
			if best == nil || start.Before(bestStart) {
				best = bed
				bestStart = start
			}
		}

		if best == nil {
			skipped = append(skipped, patient.ID)
			continue
		}

		discharge := bestStart.AddDate(0, 0, patient.PredictedStayDays)
		waiting := int(bestStart.Sub(patient.ArrivalTime).Hours())

		admission := &model.Admission{
			BaseModel:     model.NewBaseModel(),
			OwnerID:       ownerID,
			PatientID:     patient.ID,
			BedID:         best.ID,
			AdmissionTime: bestStart,
			DischargeTime: discharge,
			WaitingHours:  waiting,
			StayDays:      patient.PredictedStayDays,
			Status:        model.AdmissionStatusPlanned,
		}
		admissions = append(admissions, admission)
		totalWaiting += waiting
		availability[best.ID] = discharge
	}

	return admissions, totalWaiting, skipped
}
