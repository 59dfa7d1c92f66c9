// Package model 定义床位分配引擎的核心数据模型
package model

import (
	"time"

	"github.com/google/uuid"
)

// Bed 床位
type Bed struct {
	BaseModel
	OwnerID  uuid.UUID   `json:"owner_id" db:"owner_id"`
	Number   string      `json:"number" db:"number"` // 床号
	Ward     string      `json:"ward,omitempty" db:"ward"`
	Category BedCategory `json:"category" db:"category"` // ICU/GENERAL/OPD

	// 设备能力
	HasVentilator bool `json:"has_ventilator" db:"has_ventilator"`
	HasDialysis   bool `json:"has_dialysis" db:"has_dialysis"`

	// 占用状态
	Status        string     `json:"status" db:"status"` // free/occupied
	AvailableFrom *time.Time `json:"available_from,omitempty" db:"available_from"`
}

// IsFree 检查床位是否空闲
func (b *Bed) IsFree() bool {
	return b.Status == BedStatusFree
}

// Compatible 检查患者与床位的硬性兼容
// 患者声明的每项硬性需求都必须被床位对应能力满足；未声明的需求不构成约束
func Compatible(p *Patient, b *Bed) bool {
	if p.NeedsVentilator && !b.HasVentilator {
		return false
	}
	if p.NeedsDialysis && !b.HasDialysis {
		return false
	}
	return true
}

// CompatibilityScore 计算床位与患者声明需求的匹配分
// 每项能力与需求完全一致计1分，用于紧急分配时挑选最合适的床位
func CompatibilityScore(p *Patient, b *Bed) int {
	score := 0
	if b.HasVentilator == p.NeedsVentilator {
		score++
	}
	if b.HasDialysis == p.NeedsDialysis {
		score++
	}
	return score
}
