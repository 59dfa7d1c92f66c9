// Package model 定义床位分配引擎的核心数据模型
package model

import (
	"time"

	"github.com/google/uuid"
)

// BedCategory 床位类别
type BedCategory = string

const (
	CategoryICU     BedCategory = "ICU"     // 重症监护
	CategoryGeneral BedCategory = "GENERAL" // 普通病房
	CategoryOPD     BedCategory = "OPD"     // 门诊观察
)

// Severity 病情严重程度
type Severity string

const (
	SeverityCritical Severity = "Critical" // 危重
	SeverityHigh     Severity = "High"     // 重
	SeverityMedium   Severity = "Medium"   // 中
	SeverityLow      Severity = "Low"      // 轻
)

// Rank 返回严重程度的固定排序值（未知值排最低）
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// 床位状态
const (
	BedStatusFree     = "free"     // 空闲
	BedStatusOccupied = "occupied" // 占用
)

// 队列状态
const (
	QueueStatusWaiting   = "waiting"   // 等待分配
	QueueStatusAssigned  = "assigned"  // 已分配
	QueueStatusCancelled = "cancelled" // 已取消
)

// 入住记录状态
const (
	AdmissionStatusPlanned    = "planned"    // 计划中（排程产出）
	AdmissionStatusActive     = "active"     // 在住
	AdmissionStatusDischarged = "discharged" // 已出院
)

// 查房状态
const (
	RoundStatusStable        = "stable"        // 稳定
	RoundStatusImproving     = "improving"     // 好转
	RoundStatusDeteriorating = "deteriorating" // 恶化
)

// BaseModel 基础模型（包含通用字段）
type BaseModel struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"-" db:"deleted_at"`
}

// NewBaseModel 创建新的基础模型
func NewBaseModel() BaseModel {
	now := time.Now()
	return BaseModel{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Owner 资源归属方（医院/院区）
type Owner struct {
	BaseModel
	Name     string  `json:"name" db:"name"`
	Code     string  `json:"code" db:"code"`
	Settings JSONMap `json:"settings" db:"settings"`
}

// JSONMap 用于存储 JSONB 数据
type JSONMap map[string]interface{}

// TimeRange 时间范围
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration 返回时间范围的持续时间
func (tr TimeRange) Duration() time.Duration {
	return tr.End.Sub(tr.Start)
}

// Overlaps 检查两个时间范围是否重叠（半开区间）
func (tr TimeRange) Overlaps(other TimeRange) bool {
	return tr.Start.Before(other.End) && other.Start.Before(tr.End)
}

// Contains 检查时间范围是否包含某个时间点
func (tr TimeRange) Contains(t time.Time) bool {
	return !t.Before(tr.Start) && t.Before(tr.End)
}
