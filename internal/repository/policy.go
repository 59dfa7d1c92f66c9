// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paichuang/paichuang/pkg/model"
)

// PolicyRepository 分配策略仓储
type PolicyRepository struct {
	db DB
}

// NewPolicyRepository 创建策略仓储
func NewPolicyRepository(db DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

const policyColumns = `id, owner_id, name, version, active, priority_rules, category_rules,
		default_category, created_at, updated_at`

// Create 创建策略
// 同一资源方同时只有一个激活策略：新策略激活时先停用旧策略
func (r *PolicyRepository) Create(ctx context.Context, tx Tx, p *model.Policy) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	if p.Active {
		deactivate := `
			UPDATE allocation_policies SET active = false, updated_at = $2
			WHERE owner_id = $1 AND active = true AND deleted_at IS NULL
		`
		if _, err := tx.ExecContext(ctx, deactivate, p.OwnerID, now); err != nil {
			return fmt.Errorf("停用旧策略失败: %w", err)
		}
	}

	var maxVersion sql.NullInt64
	versionQuery := `
		SELECT MAX(version) FROM allocation_policies
		WHERE owner_id = $1 AND deleted_at IS NULL
	`
	if err := tx.QueryRowContext(ctx, versionQuery, p.OwnerID).Scan(&maxVersion); err != nil {
		return fmt.Errorf("查询策略版本失败: %w", err)
	}
	p.Version = int(maxVersion.Int64) + 1

	priorityJSON, _ := json.Marshal(p.PriorityRules)
	categoryJSON, _ := json.Marshal(p.CategoryRules)

	query := `
		INSERT INTO allocation_policies (` + policyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := tx.ExecContext(ctx, query,
		p.ID, p.OwnerID, p.Name, p.Version, p.Active, priorityJSON, categoryJSON,
		p.DefaultCategory, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("创建策略失败: %w", err)
	}

	return nil
}

// GetByID 根据ID获取策略
func (r *PolicyRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Policy, error) {
	query := `
		SELECT ` + policyColumns + `
		FROM allocation_policies
		WHERE id = $1 AND deleted_at IS NULL
	`

	return r.scanPolicy(r.db.QueryRowContext(ctx, query, id))
}

// GetActive 获取资源方当前激活的策略
func (r *PolicyRepository) GetActive(ctx context.Context, ownerID uuid.UUID) (*model.Policy, error) {
	query := `
		SELECT ` + policyColumns + `
		FROM allocation_policies
		WHERE owner_id = $1 AND active = true AND deleted_at IS NULL
		ORDER BY version DESC
		LIMIT 1
	`

	return r.scanPolicy(r.db.QueryRowContext(ctx, query, ownerID))
}

// ListByOwner 获取资源方的策略历史（按版本降序）
func (r *PolicyRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.Policy, error) {
	query := `
		SELECT ` + policyColumns + `
		FROM allocation_policies
		WHERE owner_id = $1 AND deleted_at IS NULL
		ORDER BY version DESC
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("查询策略历史失败: %w", err)
	}
	defer rows.Close()

	var policies []*model.Policy
	for rows.Next() {
		p, err := r.scanPolicyRow(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}

	return policies, nil
}

// Deactivate 停用策略
func (r *PolicyRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE allocation_policies SET active = false, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("停用策略失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("策略不存在")
	}

	return nil
}

// scanPolicy 扫描单行策略数据
func (r *PolicyRepository) scanPolicy(row *sql.Row) (*model.Policy, error) {
	p := &model.Policy{}
	var priorityJSON, categoryJSON []byte

	err := row.Scan(
		&p.ID, &p.OwnerID, &p.Name, &p.Version, &p.Active, &priorityJSON, &categoryJSON,
		&p.DefaultCategory, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("扫描策略数据失败: %w", err)
	}

	if err := decodePolicyRules(p, priorityJSON, categoryJSON); err != nil {
		return nil, err
	}

	return p, nil
}

// scanPolicyRow 扫描Rows中的策略数据
func (r *PolicyRepository) scanPolicyRow(rows *sql.Rows) (*model.Policy, error) {
	p := &model.Policy{}
	var priorityJSON, categoryJSON []byte

	err := rows.Scan(
		&p.ID, &p.OwnerID, &p.Name, &p.Version, &p.Active, &priorityJSON, &categoryJSON,
		&p.DefaultCategory, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("扫描策略数据失败: %w", err)
	}

	if err := decodePolicyRules(p, priorityJSON, categoryJSON); err != nil {
		return nil, err
	}

	return p, nil
}

// decodePolicyRules 解析策略的规则列
// 规则列损坏时返回错误，避免把半成品策略当作激活策略使用
func decodePolicyRules(p *model.Policy, priorityJSON, categoryJSON []byte) error {
	if len(priorityJSON) > 0 {
		if err := json.Unmarshal(priorityJSON, &p.PriorityRules); err != nil {
			return fmt.Errorf("解析优先级规则失败: %w", err)
		}
	}
	if len(categoryJSON) > 0 {
		if err := json.Unmarshal(categoryJSON, &p.CategoryRules); err != nil {
			return fmt.Errorf("解析类别规则失败: %w", err)
		}
	}
	return nil
}
