// Package policytpl 提供常用分配策略模板
package policytpl

import (
	"github.com/paichuang/paichuang/pkg/model"
)

// Template 策略模板
type Template struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Policy      func() *model.Policy
}

// Catalog 返回内置策略模板目录
func Catalog() []Template {
	return []Template{
		{
			Key:         "standard",
			Name:        "标准分配策略",
			Description: "危重和急诊患者优先进ICU，其余按严重程度进普通病房",
			Policy:      Standard,
		},
		{
			Key:         "icu_strict",
			Name:        "ICU严格准入策略",
			Description: "仅危重或需要生命支持设备的患者可进ICU",
			Policy:      ICUStrict,
		},
		{
			Key:         "geriatric",
			Name:        "老年优先策略",
			Description: "在标准策略基础上提高高龄患者优先级",
			Policy:      Geriatric,
		},
	}
}

// Get 按键查找模板
func Get(key string) *Template {
	for _, t := range Catalog() {
		if t.Key == key {
			tpl := t
			return &tpl
		}
	}
	return nil
}

// Standard 标准分配策略
func Standard() *model.Policy {
	return &model.Policy{
		Name: "标准分配策略",
		PriorityRules: []model.PriorityRule{
			{
				Name: "危重患者",
				Conditions: []model.Condition{
					{Field: "severity", Operator: model.OpEQ, Value: "Critical"},
				},
				Score:    100,
				Category: model.CategoryICU,
			},
			{
				Name: "急诊患者",
				Conditions: []model.Condition{
					{Field: "emergency", Operator: model.OpEQ, Value: true},
				},
				Score:    50,
				Category: model.CategoryICU,
			},
			{
				Name: "重症患者",
				Conditions: []model.Condition{
					{Field: "severity", Operator: model.OpIn, Value: []string{"High", "Critical"}},
				},
				Score:    30,
				Category: model.CategoryGeneral,
			},
			{
				Name: "轻症门诊观察",
				Conditions: []model.Condition{
					{Field: "severity", Operator: model.OpEQ, Value: "Low"},
				},
				Score:    5,
				Category: model.CategoryOPD,
			},
		},
		CategoryRules: []model.CategoryRule{
			{
				Name: "中症可进普通病房",
				Conditions: []model.Condition{
					{Field: "severity", Operator: model.OpEQ, Value: "Medium"},
				},
				Category: model.CategoryGeneral,
			},
		},
		DefaultCategory: model.CategoryGeneral,
	}
}

// ICUStrict ICU严格准入策略
func ICUStrict() *model.Policy {
	return &model.Policy{
		Name: "ICU严格准入策略",
		PriorityRules: []model.PriorityRule{
			{
				Name: "危重患者进ICU",
				Conditions: []model.Condition{
					{Field: "severity", Operator: model.OpEQ, Value: "Critical"},
				},
				Score:    100,
				Category: model.CategoryICU,
			},
			{
				Name: "需要呼吸机进ICU",
				Conditions: []model.Condition{
					{Field: "needs_ventilator", Operator: model.OpEQ, Value: true},
				},
				Score:    80,
				Category: model.CategoryICU,
			},
			{
				Name: "需要透析进ICU",
				Conditions: []model.Condition{
					{Field: "needs_dialysis", Operator: model.OpEQ, Value: true},
				},
				Score:    80,
				Category: model.CategoryICU,
			},
		},
		CategoryRules: []model.CategoryRule{
			{
				Name: "其余患者进普通病房",
				Conditions: []model.Condition{
					{Field: "severity", Operator: model.OpNotIn, Value: []string{"Critical"}},
				},
				Category: model.CategoryGeneral,
			},
		},
		DefaultCategory: model.CategoryGeneral,
	}
}

// Geriatric 老年优先策略
func Geriatric() *model.Policy {
	p := Standard()
	p.Name = "老年优先策略"
	p.PriorityRules = append(p.PriorityRules, model.PriorityRule{
		Name: "高龄加权",
		Conditions: []model.Condition{
			{Field: "age", Operator: model.OpGTE, Value: 75},
		},
		Score: 20,
	})
	return p
}
