// Package service 提供业务逻辑层
package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/paichuang/paichuang/internal/database"
	"github.com/paichuang/paichuang/internal/policytpl"
	"github.com/paichuang/paichuang/internal/repository"
	"github.com/paichuang/paichuang/pkg/errors"
	"github.com/paichuang/paichuang/pkg/model"
)

// PolicyService 分配策略服务
type PolicyService struct {
	db       *database.DB
	policies *repository.PolicyRepository
}

// NewPolicyService 创建策略服务
func NewPolicyService(db *database.DB) *PolicyService {
	return &PolicyService{
		db:       db,
		policies: repository.NewPolicyRepository(db),
	}
}

// Create 创建并激活新策略
// 策略发布后不可变，修改规则要创建新版本
func (s *PolicyService) Create(ctx context.Context, policy *model.Policy) error {
	if err := validatePolicy(policy); err != nil {
		return err
	}
	policy.Active = true

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		return s.policies.Create(ctx, tx, policy)
	})
}

// CreateFromTemplate 从内置模板创建并激活策略
func (s *PolicyService) CreateFromTemplate(ctx context.Context, ownerID uuid.UUID, templateKey string) (*model.Policy, error) {
	tpl := policytpl.Get(templateKey)
	if tpl == nil {
		return nil, errors.NotFound("策略模板", templateKey)
	}

	policy := tpl.Policy()
	policy.OwnerID = ownerID
	if err := s.Create(ctx, policy); err != nil {
		return nil, err
	}
	return policy, nil
}

// GetActive 获取资源方激活策略
func (s *PolicyService) GetActive(ctx context.Context, ownerID uuid.UUID) (*model.Policy, error) {
	policy, err := s.policies.GetActive(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "加载策略失败")
	}
	if policy == nil {
		return nil, errors.ErrPolicyNotFound
	}
	return policy, nil
}

// History 获取资源方策略版本历史
func (s *PolicyService) History(ctx context.Context, ownerID uuid.UUID) ([]*model.Policy, error) {
	policies, err := s.policies.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "加载策略历史失败")
	}
	return policies, nil
}

// Templates 返回内置模板目录
func (s *PolicyService) Templates() []policytpl.Template {
	return policytpl.Catalog()
}

// validatePolicy 校验策略配置
func validatePolicy(policy *model.Policy) error {
	ve := &errors.ValidationErrors{}

	if policy.OwnerID == uuid.Nil {
		ve.Add("owner_id", "资源方ID不能为空")
	}
	if policy.Name == "" {
		ve.Add("name", "策略名称不能为空")
	}

	for i, rule := range policy.PriorityRules {
		if rule.Name == "" {
			ve.Add(fmt.Sprintf("priority_rules[%d].name", i), "规则名称不能为空")
		}
		for j, cond := range rule.Conditions {
			if cond.Field == "" {
				ve.Add(fmt.Sprintf("priority_rules[%d].conditions[%d].field", i, j), "条件字段不能为空")
			}
			if !validOperator(cond.Operator) {
				ve.Add(fmt.Sprintf("priority_rules[%d].conditions[%d].operator", i, j),
					fmt.Sprintf("未识别的运算符 '%s'", cond.Operator))
			}
		}
	}

	for i, rule := range policy.CategoryRules {
		if rule.Category == "" {
			ve.Add(fmt.Sprintf("category_rules[%d].category", i), "类别不能为空")
		}
		for j, cond := range rule.Conditions {
			if cond.Field == "" {
				ve.Add(fmt.Sprintf("category_rules[%d].conditions[%d].field", i, j), "条件字段不能为空")
			}
			if !validOperator(cond.Operator) {
				ve.Add(fmt.Sprintf("category_rules[%d].conditions[%d].operator", i, j),
					fmt.Sprintf("未识别的运算符 '%s'", cond.Operator))
			}
		}
	}

	if ve.HasErrors() {
		return ve.ToAppError()
	}
	return nil
}

// validOperator 检查运算符是否受支持
func validOperator(op model.Operator) bool {
	switch op {
	case model.OpEQ, model.OpNEQ, model.OpGT, model.OpGTE, model.OpLT, model.OpLTE,
		model.OpIn, model.OpNotIn, model.OpExists, model.OpMissing:
		return true
	default:
		return false
	}
}
