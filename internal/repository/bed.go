// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paichuang/paichuang/pkg/model"
)

// BedRepository 床位仓储
type BedRepository struct {
	db DB
}

// NewBedRepository 创建床位仓储
func NewBedRepository(db DB) *BedRepository {
	return &BedRepository{db: db}
}

// Create 创建床位
func (r *BedRepository) Create(ctx context.Context, b *model.Bed) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	if b.Status == "" {
		b.Status = model.BedStatusFree
	}

	query := `
		INSERT INTO beds (
			id, owner_id, number, ward, category, has_ventilator, has_dialysis,
			status, available_from, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		b.ID, b.OwnerID, b.Number, b.Ward, b.Category, b.HasVentilator, b.HasDialysis,
		b.Status, b.AvailableFrom, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("创建床位失败: %w", err)
	}

	return nil
}

// GetByID 根据ID获取床位
func (r *BedRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Bed, error) {
	query := `
		SELECT id, owner_id, number, ward, category, has_ventilator, has_dialysis,
			status, available_from, created_at, updated_at
		FROM beds
		WHERE id = $1 AND deleted_at IS NULL
	`

	return r.scanBed(r.db.QueryRowContext(ctx, query, id))
}

// Update 更新床位
func (r *BedRepository) Update(ctx context.Context, b *model.Bed) error {
	b.UpdatedAt = time.Now()

	query := `
		UPDATE beds SET
			number = $2, ward = $3, category = $4, has_ventilator = $5,
			has_dialysis = $6, status = $7, available_from = $8, updated_at = $9
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		b.ID, b.Number, b.Ward, b.Category, b.HasVentilator,
		b.HasDialysis, b.Status, b.AvailableFrom, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("更新床位失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("床位不存在")
	}

	return nil
}

// Delete 软删除床位
func (r *BedRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE beds SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("删除床位失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("床位不存在")
	}

	return nil
}

// List 查询床位列表
func (r *BedRepository) List(ctx context.Context, filter ListFilter) ([]*model.Bed, int, error) {
	var conditions []string
	var args []interface{}
	argIndex := 1

	conditions = append(conditions, "deleted_at IS NULL")

	if filter.OwnerID != nil {
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", argIndex))
		args = append(args, *filter.OwnerID)
		argIndex++
	}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, filter.Status)
		argIndex++
	}

	// 类别过滤
	if cat, ok := filter.Extra["category"].(string); ok && cat != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIndex))
		args = append(args, cat)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	// 查询总数
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM beds WHERE %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("查询总数失败: %w", err)
	}

	// 查询列表
	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = "number"
	}
	orderDir := filter.OrderDir
	if orderDir == "" {
		orderDir = "asc"
	}

	query := fmt.Sprintf(`
		SELECT id, owner_id, number, ward, category, has_ventilator, has_dialysis,
			status, available_from, created_at, updated_at
		FROM beds
		WHERE %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, whereClause, orderBy, orderDir, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("查询列表失败: %w", err)
	}
	defer rows.Close()

	var beds []*model.Bed
	for rows.Next() {
		b, err := r.scanBedRow(rows)
		if err != nil {
			return nil, 0, err
		}
		beds = append(beds, b)
	}

	return beds, total, nil
}

// ListByOwner 获取资源方所有床位（按床号升序，供排程使用）
func (r *BedRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.Bed, error) {
	query := `
		SELECT id, owner_id, number, ward, category, has_ventilator, has_dialysis,
			status, available_from, created_at, updated_at
		FROM beds
		WHERE owner_id = $1 AND deleted_at IS NULL
		ORDER BY number ASC
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("查询床位失败: %w", err)
	}
	defer rows.Close()

	var beds []*model.Bed
	for rows.Next() {
		b, err := r.scanBedRow(rows)
		if err != nil {
			return nil, err
		}
		beds = append(beds, b)
	}

	return beds, nil
}

// ListFree 获取资源方指定类别的空闲床位（按床号升序）
func (r *BedRepository) ListFree(ctx context.Context, ownerID uuid.UUID, category model.BedCategory) ([]*model.Bed, error) {
	query := `
		SELECT id, owner_id, number, ward, category, has_ventilator, has_dialysis,
			status, available_from, created_at, updated_at
		FROM beds
		WHERE owner_id = $1 AND category = $2 AND status = 'free' AND deleted_at IS NULL
		ORDER BY number ASC
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID, category)
	if err != nil {
		return nil, fmt.Errorf("查询空闲床位失败: %w", err)
	}
	defer rows.Close()

	var beds []*model.Bed
	for rows.Next() {
		b, err := r.scanBedRow(rows)
		if err != nil {
			return nil, err
		}
		beds = append(beds, b)
	}

	return beds, nil
}

// SetStatus 更新床位占用状态
func (r *BedRepository) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `UPDATE beds SET status = $2, updated_at = $3 WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, status, time.Now())
	if err != nil {
		return fmt.Errorf("更新床位状态失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("床位不存在")
	}

	return nil
}

// scanBed 扫描单行床位数据
func (r *BedRepository) scanBed(row *sql.Row) (*model.Bed, error) {
	b := &model.Bed{}

	err := row.Scan(
		&b.ID, &b.OwnerID, &b.Number, &b.Ward, &b.Category, &b.HasVentilator, &b.HasDialysis,
		&b.Status, &b.AvailableFrom, &b.CreatedAt, &b.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("扫描床位数据失败: %w", err)
	}

	return b, nil
}

// scanBedRow 扫描Rows中的床位数据
func (r *BedRepository) scanBedRow(rows *sql.Rows) (*model.Bed, error) {
	b := &model.Bed{}

	err := rows.Scan(
		&b.ID, &b.OwnerID, &b.Number, &b.Ward, &b.Category, &b.HasVentilator, &b.HasDialysis,
		&b.Status, &b.AvailableFrom, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("扫描床位数据失败: %w", err)
	}

	return b, nil
}
