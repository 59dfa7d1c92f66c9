// Package model 定义床位分配引擎的核心数据模型
package model

import (
	"github.com/google/uuid"
)

// Operator 条件运算符
type Operator string

const (
	OpEQ      Operator = "EQ"      // 等于
	OpNEQ     Operator = "NEQ"     // 不等于
	OpGT      Operator = "GT"      // 大于
	OpGTE     Operator = "GTE"     // 大于等于
	OpLT      Operator = "LT"      // 小于
	OpLTE     Operator = "LTE"     // 小于等于
	OpIn      Operator = "IN"      // 属于集合
	OpNotIn   Operator = "NOT_IN"  // 不属于集合
	OpExists  Operator = "EXISTS"  // 字段存在
	OpMissing Operator = "MISSING" // 字段缺失
)

// Condition 规则条件
// Field 为患者属性视图中的点号路径，中间层缺失视为字段不存在，不报错
type Condition struct {
	Field    string      `json:"field"`
	Operator Operator    `json:"operator"`
	Value    interface{} `json:"value,omitempty"`
}

// PriorityRule 优先级规则：所有条件匹配时累加分值，可同时授予类别
type PriorityRule struct {
	Name       string      `json:"name"`
	Conditions []Condition `json:"conditions"`
	Score      float64     `json:"score"`
	Category   string      `json:"category,omitempty"`
}

// CategoryRule 类别资格规则：所有条件匹配时授予类别
type CategoryRule struct {
	Name       string      `json:"name"`
	Conditions []Condition `json:"conditions"`
	Category   string      `json:"category"`
}

// Policy 分配策略（编译后产物，发布后不可变；重新编译产生新版本）
type Policy struct {
	BaseModel
	OwnerID         uuid.UUID      `json:"owner_id" db:"owner_id"`
	Name            string         `json:"name" db:"name"`
	Version         int            `json:"version" db:"version"`
	Active          bool           `json:"active" db:"active"`
	PriorityRules   []PriorityRule `json:"priority_rules" db:"priority_rules"`
	CategoryRules   []CategoryRule `json:"category_rules" db:"category_rules"`
	DefaultCategory string         `json:"default_category,omitempty" db:"default_category"`
}
