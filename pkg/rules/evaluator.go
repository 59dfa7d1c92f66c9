// Package rules 提供分配策略的规则求值
package rules

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/paichuang/paichuang/pkg/errors"
	"github.com/paichuang/paichuang/pkg/model"
)

// 分配建议状态
const (
	StatusAssigned   = "ASSIGNED"   // 已选定床位
	StatusWaitlisted = "WAITLISTED" // 无可用类别，进入等待
)

// ScoreResult 优先级计算结果
type ScoreResult struct {
	PriorityScore      float64  `json:"priority_score"`
	EligibleCategories []string `json:"eligible_categories"`
}

// AssignResult 确定性分配建议（仅建议，不修改床位状态）
type AssignResult struct {
	AssignedBedID *uuid.UUID `json:"assigned_bed_id,omitempty"`
	Category      string     `json:"category,omitempty"`
	PriorityScore float64    `json:"priority_score"`
	Status        string     `json:"status"`
}

// Evaluator 规则求值器
type Evaluator struct{}

// NewEvaluator 创建规则求值器
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// EvaluateCondition 对患者属性视图求值单个条件
// 点号路径中间层缺失视为字段不存在；数值比较要求两侧均为数值，否则条件不成立；
// 未识别的运算符属于策略配置缺陷，返回 VALIDATION_FAILED
func (e *Evaluator) EvaluateCondition(view model.JSONMap, cond model.Condition) (bool, error) {
	val, found := lookupPath(view, cond.Field)

	switch cond.Operator {
	case model.OpExists:
		return found, nil
	case model.OpMissing:
		return !found, nil
	case model.OpEQ:
		return found && valueEquals(val, cond.Value), nil
	case model.OpNEQ:
		return !(found && valueEquals(val, cond.Value)), nil
	case model.OpGT, model.OpGTE, model.OpLT, model.OpLTE:
		if !found {
			return false, nil
		}
		a, okA := toFloat(val)
		b, okB := toFloat(cond.Value)
		if !okA || !okB {
			return false, nil
		}
		switch cond.Operator {
		case model.OpGT:
			return a > b, nil
		case model.OpGTE:
			return a >= b, nil
		case model.OpLT:
			return a < b, nil
		default:
			return a <= b, nil
		}
	case model.OpIn, model.OpNotIn:
		set, ok := toSlice(cond.Value)
		if !ok {
			return false, errors.ValidationFailed(
				fmt.Sprintf("运算符 %s 的值必须是集合，字段 '%s'", cond.Operator, cond.Field))
		}
		member := found && sliceContains(set, val)
		if cond.Operator == model.OpIn {
			return member, nil
		}
		return !member, nil
	default:
		return false, errors.ValidationFailed(fmt.Sprintf("未识别的运算符 '%s'", cond.Operator))
	}
}

// matchAll 检查规则的所有条件是否同时满足（合取）
func (e *Evaluator) matchAll(view model.JSONMap, conditions []model.Condition) (bool, error) {
	for _, cond := range conditions {
		ok, err := e.EvaluateCondition(view, cond)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Score 计算患者的优先级分值与可用类别
// 分值为所有匹配优先级规则的累加；类别为匹配的优先级规则与类别规则授予类别的并集
func (e *Evaluator) Score(p *model.Patient, policy *model.Policy) (*ScoreResult, error) {
	view := p.View()
	result := &ScoreResult{EligibleCategories: make([]string, 0, 4)}
	seen := make(map[string]bool)

	addCategory := func(cat string) {
		if cat == "" || seen[cat] {
			return
		}
		seen[cat] = true
		result.EligibleCategories = append(result.EligibleCategories, cat)
	}

	for _, rule := range policy.PriorityRules {
		matched, err := e.matchAll(view, rule.Conditions)
		if err != nil {
			return nil, err
		}
		if matched {
			result.PriorityScore += rule.Score
			addCategory(rule.Category)
		}
	}

	for _, rule := range policy.CategoryRules {
		matched, err := e.matchAll(view, rule.Conditions)
		if err != nil {
			return nil, err
		}
		if matched {
			addCategory(rule.Category)
		}
	}

	return result, nil
}

// AssignDeterministic 依据策略给出确定性的床位建议
// 候选床位按类别名升序、伪随机权重降序、床位ID升序排序后取第一个；
// 权重 = 床位ID字符码求和 + 到达时间毫秒值模1000，稳定可跨运行复现
func (e *Evaluator) AssignDeterministic(p *model.Patient, beds []*model.Bed, policy *model.Policy) (*AssignResult, error) {
	score, err := e.Score(p, policy)
	if err != nil {
		return nil, err
	}

	eligible := score.EligibleCategories
	if len(eligible) == 0 && policy.DefaultCategory != "" {
		eligible = []string{policy.DefaultCategory}
	}
	if len(eligible) == 0 {
		return &AssignResult{PriorityScore: score.PriorityScore, Status: StatusWaitlisted}, nil
	}

	eligibleSet := make(map[string]bool, len(eligible))
	for _, cat := range eligible {
		eligibleSet[cat] = true
	}

	candidates := make([]*model.Bed, 0, len(beds))
	for _, bed := range beds {
		if eligibleSet[bed.Category] {
			candidates = append(candidates, bed)
		}
	}
	if len(candidates) == 0 {
		return &AssignResult{PriorityScore: score.PriorityScore, Status: StatusWaitlisted}, nil
	}

	arrivalMod := p.ArrivalTime.UnixMilli() % 1000
	weight := func(b *model.Bed) int64 {
		return int64(charSum(b.ID.String())) + arrivalMod
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Category != candidates[j].Category {
			return candidates[i].Category < candidates[j].Category
		}
		wi, wj := weight(candidates[i]), weight(candidates[j])
		if wi != wj {
			return wi > wj
		}
		return candidates[i].ID.String() < candidates[j].ID.String()
	})

	top := candidates[0]
	bedID := top.ID
	return &AssignResult{
		AssignedBedID: &bedID,
		Category:      top.Category,
		PriorityScore: score.PriorityScore,
		Status:        StatusAssigned,
	}, nil
}

// lookupPath 按点号路径解析属性视图，任意一层缺失返回不存在
func lookupPath(view model.JSONMap, path string) (interface{}, bool) {
	if path == "" {
		return nil, false
	}
	var current interface{} = map[string]interface{}(view)
	for _, seg := range strings.Split(path, ".") {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// asMap 兼容 JSONMap 与原始 map 两种形态
func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case model.JSONMap:
		return m, true
	default:
		return nil, false
	}
}

// valueEquals 比较两个属性值，数值按数值语义比较
func valueEquals(a, b interface{}) bool {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// toFloat 尝试把值转为数值
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// toSlice 检查值是否声明为集合
func toSlice(v interface{}) ([]interface{}, bool) {
	switch s := v.(type) {
	case []interface{}:
		return s, true
	case []string:
		out := make([]interface{}, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	default:
		return nil, false
	}
}

// sliceContains 检查集合成员关系
func sliceContains(set []interface{}, v interface{}) bool {
	for _, item := range set {
		if valueEquals(item, v) {
			return true
		}
	}
	return false
}

// charSum 计算字符串的字符码累加和（稳定、可移植的字符串散列）
func charSum(s string) int {
	sum := 0
	for _, c := range s {
		sum += int(c)
	}
	return sum
}
