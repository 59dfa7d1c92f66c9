// Package model 定义床位分配引擎的核心数据模型
package model

import (
	"time"

	"github.com/google/uuid"
)

// Patient 患者
type Patient struct {
	BaseModel
	OwnerID uuid.UUID `json:"owner_id" db:"owner_id"`
	Token   string    `json:"token" db:"token"` // 排队号
	Name    string    `json:"name" db:"name"`
	Phone   string    `json:"phone,omitempty" db:"phone"`

	// 分配相关
	ArrivalTime       time.Time `json:"arrival_time" db:"arrival_time"`
	Severity          Severity  `json:"severity" db:"severity"`
	Emergency         bool      `json:"emergency" db:"emergency"`
	NeedsVentilator   bool      `json:"needs_ventilator" db:"needs_ventilator"`
	NeedsDialysis     bool      `json:"needs_dialysis" db:"needs_dialysis"`
	PredictedStayDays int       `json:"predicted_stay_days" db:"predicted_stay_days"`
	Diagnosis         string    `json:"diagnosis,omitempty" db:"diagnosis"`

	// 临床属性（年龄、体征等），规则引擎按点号路径访问
	Attributes JSONMap `json:"attributes,omitempty" db:"attributes"`
}

// SeverityRank 返回患者严重程度排序值
func (p *Patient) SeverityRank() int {
	return p.Severity.Rank()
}

// View 返回规则引擎使用的属性视图
// 先铺开自定义临床属性，再覆盖固定字段（固定字段优先）
func (p *Patient) View() JSONMap {
	view := make(JSONMap, len(p.Attributes)+8)
	for k, v := range p.Attributes {
		view[k] = v
	}
	view["token"] = p.Token
	view["name"] = p.Name
	view["severity"] = string(p.Severity)
	view["emergency"] = p.Emergency
	view["needs_ventilator"] = p.NeedsVentilator
	view["needs_dialysis"] = p.NeedsDialysis
	view["predicted_stay_days"] = p.PredictedStayDays
	view["diagnosis"] = p.Diagnosis
	return view
}

// QueueEntry 排队记录
type QueueEntry struct {
	BaseModel
	OwnerID   uuid.UUID `json:"owner_id" db:"owner_id"`
	PatientID uuid.UUID `json:"patient_id" db:"patient_id"`
	Token     string    `json:"token" db:"token"`
	Status    string    `json:"status" db:"status"` // waiting/assigned/cancelled
	Position  int       `json:"position" db:"position"`
	BedID     *uuid.UUID `json:"bed_id,omitempty" db:"bed_id"`
	EnteredAt time.Time `json:"entered_at" db:"entered_at"`

	// 关联数据（查询时填充，不落库）
	Patient *Patient `json:"patient,omitempty" db:"-"`
}

// IsWaiting 检查是否仍在等待
func (q *QueueEntry) IsWaiting() bool {
	return q.Status == QueueStatusWaiting
}
