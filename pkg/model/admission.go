// Package model 定义床位分配引擎的核心数据模型
package model

import (
	"time"

	"github.com/google/uuid"
)

// Admission 入住记录（患者与床位的绑定）
type Admission struct {
	BaseModel
	OwnerID   uuid.UUID `json:"owner_id" db:"owner_id"`
	PatientID uuid.UUID `json:"patient_id" db:"patient_id"`
	BedID     uuid.UUID `json:"bed_id" db:"bed_id"`

	AdmissionTime time.Time `json:"admission_time" db:"admission_time"`
	DischargeTime time.Time `json:"discharge_time" db:"discharge_time"`
	// 等待时长 = 入住时间 - 到达时间，按小时向下取整
	// 原始差值不做截断，床位到达即空闲时为0
	WaitingHours int `json:"waiting_hours" db:"waiting_hours"`

	StayDays   int     `json:"stay_days" db:"stay_days"`
	Confidence float64 `json:"confidence,omitempty" db:"confidence"` // 出院时间预测置信度
	Status     string  `json:"status" db:"status"`                   // planned/active/discharged
	Notes      string  `json:"notes,omitempty" db:"notes"`
}

// Interval 返回入住占用的时间区间（半开）
func (a *Admission) Interval() TimeRange {
	return TimeRange{Start: a.AdmissionTime, End: a.DischargeTime}
}

// Occupant 在住患者（含最近一次查房状态）
type Occupant struct {
	AdmissionID   uuid.UUID `json:"admission_id" db:"admission_id"`
	PatientID     uuid.UUID `json:"patient_id" db:"patient_id"`
	BedID         uuid.UUID `json:"bed_id" db:"bed_id"`
	Name          string    `json:"name" db:"name"`
	Token         string    `json:"token" db:"token"`
	Diagnosis     string    `json:"diagnosis,omitempty" db:"diagnosis"`
	AdmittedAt    time.Time `json:"admitted_at" db:"admitted_at"`
	DischargeTime time.Time `json:"discharge_time" db:"discharge_time"`
	// 最近一次查房状态，没有查房记录时为空
	LatestRoundStatus string `json:"latest_round_status,omitempty" db:"latest_round_status"`
}

// IsTransferable 检查在住患者是否可转出（稳定或好转）
func (o *Occupant) IsTransferable() bool {
	return o.LatestRoundStatus == RoundStatusStable || o.LatestRoundStatus == RoundStatusImproving
}
